package routing

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/michaelpento.lv/swaprouter/types"
	"github.com/michaelpento.lv/swaprouter/utils/math"
)

const (
	splitCoordinationTime = 10 * time.Second
	splitConfidencePerLeg = 5.0
)

// SplitThresholdUSD is the input value above which splits are considered
var SplitThresholdUSD = decimal.NewFromInt(100000)

// generateSplit divides large orders evenly across the best direct venues
func generateSplit(ctx context.Context, s *snapshot) ([]*types.Route, error) {
	req := s.req
	value := math.USDValue(req.AmountIn, req.TokenIn.Decimals, req.TokenIn.PriceUSD)
	if !value.GreaterThan(SplitThresholdUSD) {
		return nil, nil
	}

	base, err := buildDirectRoutes(s)
	if err != nil {
		return nil, err
	}
	viable := base[:0]
	for _, r := range base {
		if isViable(r) {
			r.Score = scoreRoute(r, s.reference, s.cfg.MaxSplits)
			viable = append(viable, r)
		}
	}
	sort.SliceStable(viable, func(i, j int) bool {
		return viable[i].Score.Total > viable[j].Score.Total
	})

	maxLegs := s.cfg.MaxSplits
	if len(viable) < maxLegs {
		maxLegs = len(viable)
	}

	var routes []*types.Route
	for k := 2; k <= maxLegs; k++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		route := buildSplit(req, viable[:k])
		if isViable(route) {
			routes = append(routes, route)
		}
	}
	return routes, nil
}

// buildSplit spreads the input over the legs; the last leg takes the
// remainder so leg inputs always sum to the request amount
func buildSplit(req *Request, legs []*types.Route) *types.Route {
	k := len(legs)
	amounts := math.SplitEvenly(req.AmountIn, k)

	steps := make([]types.RouteStep, k)
	venues := make([]string, k)
	totalOut := new(big.Int)
	confidence := 100.0
	var slowest time.Duration

	for i, leg := range legs {
		base := leg.Steps[0]
		share := math.Ratio(amounts[i], req.AmountIn)
		out := math.MulDiv(base.AmountOut, amounts[i], req.AmountIn)

		steps[i] = types.RouteStep{
			Venue:          base.Venue,
			TokenIn:        base.TokenIn,
			TokenOut:       base.TokenOut,
			AmountIn:       amounts[i],
			AmountOut:      out,
			MinAmountOut:   math.MinAmountOut(out, base.Slippage),
			Fee:            base.Fee.Mul(decimal.NewFromFloat(share)),
			Slippage:       base.Slippage,
			GasEstimate:    base.GasEstimate,
			LiquidityUSD:   base.LiquidityUSD,
			PriceImpact:    base.PriceImpact * share,
			ExecutionOrder: i + 1,
			ExecutionTime:  base.ExecutionTime,
			MEVRisk:        base.MEVRisk,
		}
		venues[i] = base.Venue
		totalOut.Add(totalOut, out)

		if leg.Confidence < confidence {
			confidence = leg.Confidence
		}
		if base.ExecutionTime > slowest {
			slowest = base.ExecutionTime
		}
	}

	legAmounts := make([]*big.Int, k)
	for i, a := range amounts {
		legAmounts[i] = new(big.Int).Set(a)
	}

	route := &types.Route{
		ID:            fmt.Sprintf("%s:%d:%s", types.StrategySplit, k, strings.Join(venues, ",")),
		Strategy:      types.StrategySplit,
		TokenIn:       req.TokenIn,
		TokenOut:      req.TokenOut,
		AmountIn:      new(big.Int).Set(req.AmountIn),
		Steps:         steps,
		TotalOutput:   totalOut,
		EstimatedTime: slowest + splitCoordinationTime,
		Confidence:    confidence - splitConfidencePerLeg*float64(k),
		Split: &types.SplitInfo{
			Legs:             k,
			LegAmounts:       legAmounts,
			CoordinationTime: splitCoordinationTime,
		},
	}
	aggregate(route)
	return route
}
