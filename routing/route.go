package routing

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/michaelpento.lv/swaprouter/types"
)

// newRoute aggregates sequential steps: output is the last step's output,
// gas and fees are summed, slippage is the worst step, time is summed and
// liquidity is the shallowest step
func newRoute(strategy types.Strategy, id string, req *Request, steps []types.RouteStep, confidence float64) *types.Route {
	route := &types.Route{
		ID:         id,
		Strategy:   strategy,
		TokenIn:    req.TokenIn,
		TokenOut:   steps[len(steps)-1].TokenOut,
		AmountIn:   new(big.Int).Set(req.AmountIn),
		Steps:      steps,
		Confidence: confidence,
	}
	route.TotalOutput = new(big.Int).Set(steps[len(steps)-1].AmountOut)
	aggregate(route)
	for _, step := range steps {
		route.EstimatedTime += step.ExecutionTime
	}
	return route
}

// aggregate fills the totals shared by every strategy
func aggregate(route *types.Route) {
	route.TotalGasCost = 0
	route.TotalSlippage = 0
	route.TotalFees = decimal.Zero
	for i, step := range route.Steps {
		route.TotalGasCost += step.GasEstimate
		if step.Slippage > route.TotalSlippage {
			route.TotalSlippage = step.Slippage
		}
		route.TotalFees = route.TotalFees.Add(step.Fee)
		if i == 0 || step.LiquidityUSD.LessThan(route.LiquidityUSD) {
			route.LiquidityUSD = step.LiquidityUSD
		}
	}
	route.RiskScore = riskScore(route.Steps)
}

func pathID(strategy types.Strategy, path []types.Token, venues []string) string {
	symbols := make([]string, len(path))
	for i, t := range path {
		symbols[i] = t.Symbol
		if symbols[i] == "" {
			symbols[i] = t.Address.Hex()[:10]
		}
	}
	return string(strategy) + ":" + strings.Join(symbols, ">") + "@" + strings.Join(venues, ",")
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
