package types

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// MEVRisk is the MEV exposure tier of a venue or pool
type MEVRisk string

const (
	MEVRiskLow    MEVRisk = "low"
	MEVRiskMedium MEVRisk = "medium"
	MEVRiskHigh   MEVRisk = "high"
)

// Valid reports whether r is a known tier
func (r MEVRisk) Valid() bool {
	switch r {
	case MEVRiskLow, MEVRiskMedium, MEVRiskHigh:
		return true
	}
	return false
}

// Strategy tags the generator that produced a route
type Strategy string

const (
	StrategyDirect     Strategy = "direct"
	StrategyMultiHop   Strategy = "multi-hop"
	StrategySplit      Strategy = "split"
	StrategyCrossChain Strategy = "cross-chain"
	StrategyArbitrage  Strategy = "arbitrage"
)

// Strategies lists every strategy in generation order
var Strategies = []Strategy{
	StrategyDirect,
	StrategyMultiHop,
	StrategySplit,
	StrategyCrossChain,
	StrategyArbitrage,
}

// TokenKey identifies a token across chains
type TokenKey struct {
	Address common.Address
	ChainID uint64
}

// Token is an ERC20-like asset on a specific chain
type Token struct {
	Address  common.Address  `json:"address"`
	Symbol   string          `json:"symbol"`
	Decimals uint8           `json:"decimals"`
	ChainID  uint64          `json:"chainId"`
	PriceUSD decimal.Decimal `json:"priceUsd"`
}

// Key returns the identity of the token
func (t Token) Key() TokenKey {
	return TokenKey{Address: t.Address, ChainID: t.ChainID}
}

// Equal compares tokens by identity only
func (t Token) Equal(other Token) bool {
	return t.Key() == other.Key()
}

// HasPrice reports whether a USD price is known for the token
func (t Token) HasPrice() bool {
	return t.PriceUSD.IsPositive()
}

func (t Token) String() string {
	if t.Symbol != "" {
		return fmt.Sprintf("%s@%d", t.Symbol, t.ChainID)
	}
	return fmt.Sprintf("%s@%d", t.Address.Hex(), t.ChainID)
}

// Quote is a single venue's price for a swap
type Quote struct {
	Venue         string          `json:"venue"`
	AmountIn      *big.Int        `json:"amountIn"`
	AmountOut     *big.Int        `json:"amountOut"`
	Fee           decimal.Decimal `json:"fee"`         // USD
	Slippage      float64         `json:"slippage"`    // percent
	GasEstimate   uint64          `json:"gasEstimate"` // gas units
	ExecutionTime time.Duration   `json:"executionTime"`
	Confidence    float64         `json:"confidence"`  // 0-100
	PriceImpact   float64         `json:"priceImpact"` // percent
	LiquidityUSD  decimal.Decimal `json:"liquidityUsd"`
}

// Validate checks that the quote can be turned into a route step
func (q Quote) Validate() error {
	if q.Venue == "" {
		return errors.New("quote has no venue")
	}
	if q.AmountIn == nil || q.AmountIn.Sign() <= 0 {
		return fmt.Errorf("quote from %s has non-positive input amount", q.Venue)
	}
	if q.AmountOut == nil || q.AmountOut.Sign() <= 0 {
		return fmt.Errorf("quote from %s has non-positive output amount", q.Venue)
	}
	if q.Confidence < 0 || q.Confidence > 100 {
		return fmt.Errorf("quote from %s has confidence %.2f outside 0-100", q.Venue, q.Confidence)
	}
	if q.Slippage < 0 || q.PriceImpact < 0 {
		return fmt.Errorf("quote from %s has negative slippage or price impact", q.Venue)
	}
	if q.Fee.IsNegative() {
		return fmt.Errorf("quote from %s has negative fee", q.Venue)
	}
	return nil
}

// MarketConditions is a snapshot of the market used to perturb route metrics
type MarketConditions struct {
	Volatility     float64         `json:"volatility"`  // fraction, 0.05 = 5%
	GasPriceGwei   float64         `json:"gasPriceGwei"`
	Congestion     float64         `json:"congestion"` // 0-1
	LiquidityUSD   decimal.Decimal `json:"liquidityUsd"`
	NativePriceUSD decimal.Decimal `json:"nativePriceUsd"`
	Timestamp      time.Time       `json:"timestamp"`
}

// LiquidityPool is a two-token constant-product pool on one venue
type LiquidityPool struct {
	Venue        string          `json:"venue"`
	Address      common.Address  `json:"address"`
	ChainID      uint64          `json:"chainId"`
	Token0       Token           `json:"token0"`
	Token1       Token           `json:"token1"`
	Reserve0     *big.Int        `json:"reserve0"`
	Reserve1     *big.Int        `json:"reserve1"`
	FeeBps       uint32          `json:"feeBps"`
	LiquidityUSD decimal.Decimal `json:"liquidityUsd"`
	GasEstimate  uint64          `json:"gasEstimate"`
	MEVRisk      MEVRisk         `json:"mevRisk"`
	Confidence   float64         `json:"confidence"`
}

// Has reports whether the pool trades the token
func (p LiquidityPool) Has(t Token) bool {
	return p.Token0.Equal(t) || p.Token1.Equal(t)
}

// Other returns the counterpart of t in the pool
func (p LiquidityPool) Other(t Token) (Token, bool) {
	switch {
	case p.Token0.Equal(t):
		return p.Token1, true
	case p.Token1.Equal(t):
		return p.Token0, true
	}
	return Token{}, false
}

// Reserves returns the reserves oriented for a swap starting from tokenIn
func (p LiquidityPool) Reserves(tokenIn Token) (reserveIn, reserveOut *big.Int, ok bool) {
	if p.Reserve0 == nil || p.Reserve1 == nil {
		return nil, nil, false
	}
	switch {
	case p.Token0.Equal(tokenIn):
		return p.Reserve0, p.Reserve1, true
	case p.Token1.Equal(tokenIn):
		return p.Reserve1, p.Reserve0, true
	}
	return nil, nil, false
}

// Connects reports whether the pool trades exactly the given pair
func (p LiquidityPool) Connects(a, b Token) bool {
	return (p.Token0.Equal(a) && p.Token1.Equal(b)) || (p.Token0.Equal(b) && p.Token1.Equal(a))
}
