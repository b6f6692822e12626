package types

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// RouteStep is one atomic hop through one venue
type RouteStep struct {
	Venue          string          `json:"venue"`
	TokenIn        Token           `json:"tokenIn"`
	TokenOut       Token           `json:"tokenOut"`
	AmountIn       *big.Int        `json:"amountIn"`
	AmountOut      *big.Int        `json:"amountOut"`
	MinAmountOut   *big.Int        `json:"minAmountOut"`
	Fee            decimal.Decimal `json:"fee"`
	Slippage       float64         `json:"slippage"`
	GasEstimate    uint64          `json:"gasEstimate"`
	LiquidityUSD   decimal.Decimal `json:"liquidityUsd"`
	PriceImpact    float64         `json:"priceImpact"`
	ExecutionOrder int             `json:"executionOrder"`
	ExecutionTime  time.Duration   `json:"executionTime"`
	MEVRisk        MEVRisk         `json:"mevRisk"`
}

// RouteScore is the weighted breakdown of a route's desirability
type RouteScore struct {
	Output      float64 `json:"output"`
	Slippage    float64 `json:"slippage"`
	Gas         float64 `json:"gas"`
	Speed       float64 `json:"speed"`
	Reliability float64 `json:"reliability"`
	Liquidity   float64 `json:"liquidity"`
	Total       float64 `json:"total"`
}

// MultiHopInfo describes the token path of a multi-hop route
type MultiHopInfo struct {
	Path []Token `json:"path"`
}

// SplitInfo describes how the input was divided across legs
type SplitInfo struct {
	Legs             int           `json:"legs"`
	LegAmounts       []*big.Int    `json:"legAmounts"`
	CoordinationTime time.Duration `json:"coordinationTime"`
}

// CrossChainInfo describes the bridge hop
type CrossChainInfo struct {
	Protocol    string `json:"protocol"`
	SourceChain uint64 `json:"sourceChain"`
	DestChain   uint64 `json:"destChain"`
	FeeBps      int64  `json:"feeBps"`
}

// ArbitrageInfo describes a profitable cycle
type ArbitrageInfo struct {
	Cycle      []Token         `json:"cycle"`
	Profit     *big.Int        `json:"profit"`
	ProfitUSD  decimal.Decimal `json:"profitUsd"`
	CrossVenue bool            `json:"crossVenue"`
	// Atomic routes must be submitted as a single bundle so that a failing
	// later leg reverts the earlier ones.
	Atomic bool `json:"atomic"`
}

// Route is a candidate execution plan. Exactly one of the metadata pointers
// matching Strategy is set; direct routes carry none.
type Route struct {
	ID            string          `json:"id"`
	Strategy      Strategy        `json:"strategy"`
	TokenIn       Token           `json:"tokenIn"`
	TokenOut      Token           `json:"tokenOut"`
	AmountIn      *big.Int        `json:"amountIn"`
	Steps         []RouteStep     `json:"steps"`
	TotalOutput   *big.Int        `json:"totalOutput"`
	TotalGasCost  uint64          `json:"totalGasCost"`
	TotalSlippage float64         `json:"totalSlippage"`
	TotalFees     decimal.Decimal `json:"totalFees"`
	EstimatedTime time.Duration   `json:"estimatedTime"`
	Confidence    float64         `json:"confidence"`
	RiskScore     float64         `json:"riskScore"`
	LiquidityUSD  decimal.Decimal `json:"liquidityUsd"`
	MEVProtection bool            `json:"mevProtection"`
	Score         *RouteScore     `json:"score,omitempty"`

	MultiHop   *MultiHopInfo   `json:"multiHop,omitempty"`
	Split      *SplitInfo      `json:"split,omitempty"`
	CrossChain *CrossChainInfo `json:"crossChain,omitempty"`
	// Arbitrage is set on cycles, which return the input token
	Arbitrage  *ArbitrageInfo  `json:"arbitrage,omitempty"`

	mevAnnotated bool
}

// Validate checks the structure of the route
func (r *Route) Validate() error {
	if r == nil {
		return errors.New("nil route")
	}
	if len(r.Steps) == 0 {
		return fmt.Errorf("route %s has no steps", r.ID)
	}
	seen := make([]bool, len(r.Steps)+1)
	for _, step := range r.Steps {
		order := step.ExecutionOrder
		if order < 1 || order > len(r.Steps) || seen[order] {
			return fmt.Errorf("route %s has non-contiguous execution order %d", r.ID, order)
		}
		seen[order] = true
	}
	if r.TotalOutput == nil || r.AmountIn == nil {
		return fmt.Errorf("route %s is missing amounts", r.ID)
	}

	switch r.Strategy {
	case StrategyDirect:
		if len(r.Steps) != 1 {
			return fmt.Errorf("direct route %s has %d steps", r.ID, len(r.Steps))
		}
	case StrategyMultiHop:
		if r.MultiHop == nil {
			return fmt.Errorf("multi-hop route %s has no path metadata", r.ID)
		}
	case StrategySplit:
		if r.Split == nil || r.Split.Legs != len(r.Steps) {
			return fmt.Errorf("split route %s has inconsistent leg metadata", r.ID)
		}
	case StrategyCrossChain:
		if r.CrossChain == nil || len(r.Steps) != 1 {
			return fmt.Errorf("cross-chain route %s must have one bridge step", r.ID)
		}
	case StrategyArbitrage:
		if r.Arbitrage == nil {
			return fmt.Errorf("arbitrage route %s has no cycle metadata", r.ID)
		}
	default:
		return fmt.Errorf("route %s has unknown strategy %q", r.ID, r.Strategy)
	}
	return nil
}

// HasHighMEVRisk reports whether any step touches a high-risk venue
func (r *Route) HasHighMEVRisk() bool {
	for _, step := range r.Steps {
		if step.MEVRisk == MEVRiskHigh {
			return true
		}
	}
	return false
}

// AllLowMEVRisk reports whether every step is low risk
func (r *Route) AllLowMEVRisk() bool {
	for _, step := range r.Steps {
		if step.MEVRisk != MEVRiskLow {
			return false
		}
	}
	return true
}

// Venues returns the venue of every step in order
func (r *Route) Venues() []string {
	venues := make([]string, len(r.Steps))
	for i, step := range r.Steps {
		venues[i] = step.Venue
	}
	return venues
}

// MEVAnnotated reports whether the MEV protection penalty was already applied
func (r *Route) MEVAnnotated() bool {
	return r.mevAnnotated
}

// MarkMEVAnnotated records that the MEV protection penalty was applied
func (r *Route) MarkMEVAnnotated() {
	r.mevAnnotated = true
}

// Clone returns a deep copy of the route
func (r *Route) Clone() *Route {
	if r == nil {
		return nil
	}
	c := *r
	c.AmountIn = cloneInt(r.AmountIn)
	c.TotalOutput = cloneInt(r.TotalOutput)
	c.Steps = make([]RouteStep, len(r.Steps))
	for i, step := range r.Steps {
		step.AmountIn = cloneInt(step.AmountIn)
		step.AmountOut = cloneInt(step.AmountOut)
		step.MinAmountOut = cloneInt(step.MinAmountOut)
		c.Steps[i] = step
	}
	if r.Score != nil {
		score := *r.Score
		c.Score = &score
	}
	if r.MultiHop != nil {
		c.MultiHop = &MultiHopInfo{Path: append([]Token(nil), r.MultiHop.Path...)}
	}
	if r.Split != nil {
		split := *r.Split
		split.LegAmounts = make([]*big.Int, len(r.Split.LegAmounts))
		for i, amount := range r.Split.LegAmounts {
			split.LegAmounts[i] = cloneInt(amount)
		}
		c.Split = &split
	}
	if r.CrossChain != nil {
		cc := *r.CrossChain
		c.CrossChain = &cc
	}
	if r.Arbitrage != nil {
		arb := *r.Arbitrage
		arb.Cycle = append([]Token(nil), r.Arbitrage.Cycle...)
		arb.Profit = cloneInt(r.Arbitrage.Profit)
		c.Arbitrage = &arb
	}
	return &c
}

// CloneRoutes deep-copies a route list
func CloneRoutes(routes []*Route) []*Route {
	if routes == nil {
		return nil
	}
	out := make([]*Route, len(routes))
	for i, r := range routes {
		out[i] = r.Clone()
	}
	return out
}

func cloneInt(x *big.Int) *big.Int {
	if x == nil {
		return nil
	}
	return new(big.Int).Set(x)
}
