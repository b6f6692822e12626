package routing

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/michaelpento.lv/swaprouter/types"
	"github.com/michaelpento.lv/swaprouter/utils/math"
)

// Viability limits
const (
	maxViableSlippage   = 5.0
	maxViableGas        = 500000
	minViableConfidence = 70.0
	maxViableRisk       = 80.0
)

// Scoring reference points
const (
	slippageCap       = 2.0
	gasCap            = 200000.0
	speedCap          = 60.0
	crossChainSpeed   = 600.0
	liquidityCapUSD   = 1000000.0
	splitMaxBonus     = 5.0
	splitLegPenalty   = 2.0
	crossChainPenalty = 10.0
	crossChainBonus   = 5.0
)

var (
	riskLowLiquidity    = decimal.NewFromInt(100000)
	riskMediumLiquidity = decimal.NewFromInt(500000)
)

// weights of the six sub-scores
type weights struct {
	output, slippage, gas, speed, reliability, liquidity float64
}

var (
	generalWeights    = weights{output: 25, slippage: 20, gas: 15, speed: 15, reliability: 15, liquidity: 10}
	splitWeights      = weights{output: 30, slippage: 20, gas: 10, speed: 10, reliability: 15, liquidity: 10}
	crossChainWeights = weights{output: 25, slippage: 20, gas: 15, speed: 10, reliability: 20, liquidity: 10}
)

// isViable reports whether a route may be returned to callers
func isViable(r *types.Route) bool {
	return r.TotalSlippage <= maxViableSlippage &&
		r.TotalGasCost <= maxViableGas &&
		r.Confidence >= minViableConfidence &&
		r.RiskScore <= maxViableRisk
}

// riskScore accumulates per-step risk and clamps it to 100
func riskScore(steps []types.RouteStep) float64 {
	var risk float64
	for _, step := range steps {
		risk += 10

		switch step.MEVRisk {
		case types.MEVRiskHigh:
			risk += 30
		case types.MEVRiskMedium:
			risk += 15
		case types.MEVRiskLow:
			risk += 5
		}

		switch {
		case step.LiquidityUSD.LessThan(riskLowLiquidity):
			risk += 20
		case step.LiquidityUSD.LessThan(riskMediumLiquidity):
			risk += 10
		}

		switch {
		case step.PriceImpact > 5:
			risk += 25
		case step.PriceImpact > 2:
			risk += 15
		case step.PriceImpact > 1:
			risk += 5
		}
	}
	if risk > 100 {
		risk = 100
	}
	return risk
}

// scoreRoute picks the formula for the route's strategy. reference is the
// best single-venue output for the request and may be nil.
func scoreRoute(r *types.Route, reference *big.Int, maxSplits int) *types.RouteScore {
	switch r.Strategy {
	case types.StrategySplit:
		return scoreSplit(r, reference, maxSplits)
	case types.StrategyCrossChain:
		return scoreCrossChain(r, reference)
	case types.StrategyArbitrage:
		return scoreWith(generalWeights, r, outputRatio(r.TotalOutput, r.AmountIn), speedCap, 1)
	default:
		return scoreWith(generalWeights, r, outputRatio(r.TotalOutput, reference), speedCap, 1)
	}
}

func scoreSplit(r *types.Route, reference *big.Int, maxSplits int) *types.RouteScore {
	legs := len(r.Steps)
	score := scoreWith(splitWeights, r, outputRatio(r.TotalOutput, reference), speedCap, float64(legs))

	var bonus float64
	if maxSplits > 1 {
		bonus = splitMaxBonus * float64(legs-1) / float64(maxSplits-1)
		if bonus > splitMaxBonus {
			bonus = splitMaxBonus
		}
	}
	var penalty float64
	if legs > 2 {
		penalty = splitLegPenalty * float64(legs-2)
	}
	score.Total = clamp(score.Total+bonus-penalty, 0, 100)
	return score
}

func scoreCrossChain(r *types.Route, reference *big.Int) *types.RouteScore {
	score := scoreWith(crossChainWeights, r, outputRatio(r.TotalOutput, reference), crossChainSpeed, 1)
	total := score.Total - crossChainPenalty
	if r.MEVProtection {
		total += crossChainBonus
	}
	score.Total = clamp(total, 0, 100)
	return score
}

// scoreWith computes headroom sub-scores: each factor is 1 at the ideal and
// falls linearly to 0 at its cap. gasLegs scales the gas cap for routes
// with several independent transactions.
func scoreWith(w weights, r *types.Route, ratio, speedLimit, gasLegs float64) *types.RouteScore {
	liquidity, _ := r.LiquidityUSD.Float64()

	score := &types.RouteScore{
		Output:      w.output * clamp(ratio, 0, 1),
		Slippage:    w.slippage * clamp(1-r.TotalSlippage/slippageCap, 0, 1),
		Gas:         w.gas * clamp(1-float64(r.TotalGasCost)/(gasCap*gasLegs), 0, 1),
		Speed:       w.speed * clamp(1-r.EstimatedTime.Seconds()/speedLimit, 0, 1),
		Reliability: w.reliability * clamp(r.Confidence/100, 0, 1),
		Liquidity:   w.liquidity * clamp(liquidity/liquidityCapUSD, 0, 1),
	}
	score.Total = clamp(score.Output+score.Slippage+score.Gas+score.Speed+score.Reliability+score.Liquidity, 0, 100)
	return score
}

func outputRatio(output, reference *big.Int) float64 {
	if reference == nil || reference.Sign() <= 0 {
		return 0
	}
	return math.Ratio(output, reference)
}
