package uniswap

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// Pair contract ABI
const pairABIJson = `[{
	"constant": true,
	"inputs": [],
	"name": "getReserves",
	"outputs": [
		{"name": "reserve0", "type": "uint112"},
		{"name": "reserve1", "type": "uint112"},
		{"name": "blockTimestampLast", "type": "uint32"}
	],
	"payable": false,
	"stateMutability": "view",
	"type": "function"
}, {
	"constant": true,
	"inputs": [],
	"name": "token0",
	"outputs": [{"name": "", "type": "address"}],
	"payable": false,
	"stateMutability": "view",
	"type": "function"
}, {
	"constant": true,
	"inputs": [],
	"name": "token1",
	"outputs": [{"name": "", "type": "address"}],
	"payable": false,
	"stateMutability": "view",
	"type": "function"
}]`

var pairABI = mustParseABI(pairABIJson)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("failed to parse pair ABI: %v", err))
	}
	return parsed
}

// Pair is a read-only binding to a Uniswap V2 pair contract
type Pair struct {
	contract *bind.BoundContract
	address  common.Address
}

// NewPair binds the pair at address
func NewPair(address common.Address, caller bind.ContractCaller) *Pair {
	return &Pair{
		contract: bind.NewBoundContract(address, pairABI, caller, nil, nil),
		address:  address,
	}
}

func (p *Pair) Address() common.Address {
	return p.address
}

// GetReserves returns the current reserves of the pair
func (p *Pair) GetReserves(ctx context.Context) (*big.Int, *big.Int, uint32, error) {
	var out []interface{}
	err := p.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getReserves")
	if err != nil {
		return nil, nil, 0, fmt.Errorf("failed to get reserves: %w", err)
	}
	if len(out) != 3 {
		return nil, nil, 0, fmt.Errorf("unexpected getReserves output length %d", len(out))
	}

	// Parse results
	reserve0, ok := out[0].(*big.Int)
	if !ok {
		return nil, nil, 0, fmt.Errorf("failed to parse reserve0")
	}
	reserve1, ok := out[1].(*big.Int)
	if !ok {
		return nil, nil, 0, fmt.Errorf("failed to parse reserve1")
	}
	timestamp, ok := out[2].(uint32)
	if !ok {
		return nil, nil, 0, fmt.Errorf("failed to parse blockTimestampLast")
	}

	return reserve0, reserve1, timestamp, nil
}

// Token0 returns the address of token0
func (p *Pair) Token0(ctx context.Context) (common.Address, error) {
	return p.token(ctx, "token0")
}

// Token1 returns the address of token1
func (p *Pair) Token1(ctx context.Context) (common.Address, error) {
	return p.token(ctx, "token1")
}

func (p *Pair) token(ctx context.Context, method string) (common.Address, error) {
	var out []interface{}
	err := p.contract.Call(&bind.CallOpts{Context: ctx}, &out, method)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to get %s: %w", method, err)
	}

	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("failed to parse %s address", method)
	}

	return addr, nil
}
