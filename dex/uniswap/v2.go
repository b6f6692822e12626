package uniswap

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/michaelpento.lv/swaprouter/types"
	"github.com/michaelpento.lv/swaprouter/utils/math"
)

// Contract addresses
var (
	MainnetFactory  = common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f")
	MainnetInitCode = common.FromHex("0x96e8ac4277198ff8b6f785478aa9a39f403cb768dd02cbee326c3e7da348845f")
)

const (
	DefaultFeeBps      = 30
	DefaultGasEstimate = 120000
	poolConfidence     = 90
)

// Deployment describes one Uniswap-V2-style factory
type Deployment struct {
	Venue        string
	ChainID      uint64
	Factory      common.Address
	InitCodeHash []byte
	FeeBps       uint32
	GasEstimate  uint64
	MEVRisk      types.MEVRisk
}

// PairSpec is a pair to read from a deployment
type PairSpec struct {
	Deployment Deployment
	TokenA     types.Token
	TokenB     types.Token
}

// PoolSource reads reserves of configured V2 pairs from chain, throttled by a
// token bucket
type PoolSource struct {
	caller      bind.ContractCaller
	pairs       []PairSpec
	limiter     *rate.Limiter
	waitTimeout time.Duration
	logger      *zap.Logger

	bound map[common.Address]*Pair
	mu    sync.Mutex
}

// NewPoolSource creates a pool source. A nil limiter disables throttling.
func NewPoolSource(caller bind.ContractCaller, pairs []PairSpec, limiter *rate.Limiter, waitTimeout time.Duration, logger *zap.Logger) (*PoolSource, error) {
	if caller == nil {
		return nil, fmt.Errorf("contract caller is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	for i, spec := range pairs {
		if spec.TokenA.Equal(spec.TokenB) {
			return nil, fmt.Errorf("pair %d has identical tokens", i)
		}
		if len(spec.Deployment.InitCodeHash) != 32 {
			return nil, fmt.Errorf("pair %d: init code hash must be 32 bytes", i)
		}
	}

	return &PoolSource{
		caller:      caller,
		pairs:       pairs,
		limiter:     limiter,
		waitTimeout: waitTimeout,
		logger:      logger,
		bound:       make(map[common.Address]*Pair),
	}, nil
}

func (s *PoolSource) Name() string {
	return "uniswap-v2"
}

// Pools fetches reserves for every configured pair on chainID. Pairs that
// fail are reported in the combined error while the rest are returned.
func (s *PoolSource) Pools(ctx context.Context, chainID uint64) ([]types.LiquidityPool, error) {
	var (
		pools []types.LiquidityPool
		errs  error
	)

	for _, spec := range s.pairs {
		if spec.Deployment.ChainID != chainID {
			continue
		}
		if err := s.wait(ctx); err != nil {
			return pools, multierr.Append(errs, err)
		}

		pool, err := s.fetch(ctx, spec)
		if err != nil {
			if ctx.Err() != nil {
				return pools, multierr.Append(errs, ctx.Err())
			}
			s.logger.Warn("Failed to read pair reserves",
				zap.String("venue", spec.Deployment.Venue),
				zap.String("tokenA", spec.TokenA.String()),
				zap.String("tokenB", spec.TokenB.String()),
				zap.Error(err))
			errs = multierr.Append(errs, err)
			continue
		}
		pools = append(pools, pool)
	}

	return pools, errs
}

func (s *PoolSource) wait(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	waitCtx := ctx
	if s.waitTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, s.waitTimeout)
		defer cancel()
	}
	if err := s.limiter.Wait(waitCtx); err != nil {
		return fmt.Errorf("rate limit wait failed: %w", err)
	}
	return nil
}

func (s *PoolSource) fetch(ctx context.Context, spec PairSpec) (types.LiquidityPool, error) {
	d := spec.Deployment
	token0, token1 := SortTokens(spec.TokenA, spec.TokenB)
	address := PairFor(d.Factory, d.InitCodeHash, token0.Address, token1.Address)

	reserve0, reserve1, _, err := s.pair(address).GetReserves(ctx)
	if err != nil {
		return types.LiquidityPool{}, fmt.Errorf("pair %s on %s: %w", address.Hex(), d.Venue, err)
	}

	feeBps := d.FeeBps
	if feeBps == 0 {
		feeBps = DefaultFeeBps
	}
	gasEstimate := d.GasEstimate
	if gasEstimate == 0 {
		gasEstimate = DefaultGasEstimate
	}

	liquidity := math.USDValue(reserve0, token0.Decimals, token0.PriceUSD).
		Add(math.USDValue(reserve1, token1.Decimals, token1.PriceUSD))

	return types.LiquidityPool{
		Venue:        d.Venue,
		Address:      address,
		ChainID:      d.ChainID,
		Token0:       token0,
		Token1:       token1,
		Reserve0:     reserve0,
		Reserve1:     reserve1,
		FeeBps:       feeBps,
		LiquidityUSD: liquidity,
		GasEstimate:  gasEstimate,
		MEVRisk:      d.MEVRisk,
		Confidence:   poolConfidence,
	}, nil
}

func (s *PoolSource) pair(address common.Address) *Pair {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pair, ok := s.bound[address]; ok {
		return pair
	}
	pair := NewPair(address, s.caller)
	s.bound[address] = pair
	return pair
}

// SortTokens orders a pair the way the factory does, by address
func SortTokens(a, b types.Token) (types.Token, types.Token) {
	if bytes.Compare(a.Address.Bytes(), b.Address.Bytes()) > 0 {
		return b, a
	}
	return a, b
}

// PairFor calculates the CREATE2 pair address for two tokens
func PairFor(factory common.Address, initCodeHash []byte, tokenA, tokenB common.Address) common.Address {
	if bytes.Compare(tokenA.Bytes(), tokenB.Bytes()) > 0 {
		tokenA, tokenB = tokenB, tokenA
	}

	salt := crypto.Keccak256(tokenA.Bytes(), tokenB.Bytes())
	return common.BytesToAddress(crypto.Keccak256([]byte{
		0xff,
	}, factory.Bytes(), salt, initCodeHash))
}
