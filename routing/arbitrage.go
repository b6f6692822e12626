package routing

import (
	"context"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/michaelpento.lv/swaprouter/gas"
	"github.com/michaelpento.lv/swaprouter/types"
	"github.com/michaelpento.lv/swaprouter/utils/math"
)

const minCycleLength = 2

// generateArbitrage looks for profitable cycles. With tokenIn == tokenOut it
// searches the pool graph for cycles; otherwise it tries buying on one venue
// and selling back on another.
func generateArbitrage(ctx context.Context, s *snapshot) ([]*types.Route, error) {
	req := s.req
	if req.TokenIn.ChainID != req.TokenOut.ChainID {
		return nil, nil
	}

	if req.TokenIn.Equal(req.TokenOut) {
		return s.cycleArbitrage(ctx)
	}
	return s.crossVenueArbitrage(ctx)
}

func (s *snapshot) cycleArbitrage(ctx context.Context) ([]*types.Route, error) {
	req := s.req
	maxLen := s.cfg.MaxHops
	if maxLen < 3 {
		maxLen = 3
	}

	cycles, err := s.graph.Cycles(ctx, req.TokenIn, minCycleLength, maxLen, s.allowInterior(req.TokenIn.ChainID))
	if err != nil {
		return nil, err
	}

	var routes []*types.Route
	for _, cycle := range cycles {
		route, ok := s.quotePath(types.StrategyArbitrage, cycle, req.AmountIn)
		if !ok {
			continue
		}
		if s.markProfitable(route, cycle) {
			routes = append(routes, route)
		}
	}
	return routes, nil
}

func (s *snapshot) crossVenueArbitrage(ctx context.Context) ([]*types.Route, error) {
	req := s.req
	cycle := []types.Token{req.TokenIn, req.TokenOut, req.TokenIn}

	var routes []*types.Route
	for _, buy := range s.graph.PoolsBetween(req.TokenIn, req.TokenOut) {
		for _, sell := range s.graph.PoolsBetween(req.TokenOut, req.TokenIn) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if buy.Address == sell.Address || buy.Venue == sell.Venue {
				continue
			}
			route, ok := s.poolRoute(types.StrategyArbitrage, cycle, []types.LiquidityPool{buy, sell}, req.AmountIn)
			if !ok {
				continue
			}
			if s.markProfitable(route, cycle) {
				route.Arbitrage.CrossVenue = true
				routes = append(routes, route)
			}
		}
	}
	return routes, nil
}

// markProfitable attaches cycle metadata when the route returns more than it
// takes. When prices are known the gas bill must be covered as well; pool
// fees are already netted out of the quoted amounts.
func (s *snapshot) markProfitable(route *types.Route, cycle []types.Token) bool {
	req := s.req
	profit := new(big.Int).Sub(route.TotalOutput, req.AmountIn)
	if profit.Sign() <= 0 {
		return false
	}

	profitUSD := decimal.Zero
	if price := s.priceOf(req.TokenIn); price.IsPositive() {
		profitUSD = math.ToDecimal(profit, req.TokenIn.Decimals).Mul(price)

		if gasUSD, ok := gas.CostUSD(route.TotalGasCost, req.Conditions); ok {
			profitUSD = profitUSD.Sub(gasUSD)
			if !profitUSD.IsPositive() {
				return false
			}
		}
	}

	// every leg carries a min-out so the bundle reverts as a whole when a
	// later leg would fill short
	route.Arbitrage = &types.ArbitrageInfo{
		Cycle:     cycle,
		Profit:    profit,
		ProfitUSD: profitUSD,
		Atomic:    true,
	}
	return true
}
