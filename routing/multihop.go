package routing

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/michaelpento.lv/swaprouter/gas"
	"github.com/michaelpento.lv/swaprouter/types"
	"github.com/michaelpento.lv/swaprouter/utils/math"
)

const (
	// all hops of a pool path settle in one transaction
	blockTime = 12 * time.Second

	defaultPoolConfidence = 80.0
	poolSlippageTolerance = 0.5
)

// generateMultiHop searches the pool graph for paths of two or more hops
func generateMultiHop(ctx context.Context, s *snapshot) ([]*types.Route, error) {
	req := s.req
	if req.TokenIn.ChainID != req.TokenOut.ChainID || req.TokenIn.Equal(req.TokenOut) {
		return nil, nil
	}

	paths, err := s.graph.Paths(ctx, req.TokenIn, req.TokenOut, s.cfg.MaxHops, s.allowInterior(req.TokenIn.ChainID))
	if err != nil {
		return nil, err
	}

	var routes []*types.Route
	for _, path := range paths {
		if len(path) < 3 {
			continue
		}
		route, ok := s.quotePath(types.StrategyMultiHop, path, req.AmountIn)
		if !ok || !isViable(route) {
			continue
		}
		route.MultiHop = &types.MultiHopInfo{Path: path}
		routes = append(routes, route)
	}
	return routes, nil
}

// quotePath walks a token path through the best pool of every edge. A pool
// is never used twice on one path.
func (s *snapshot) quotePath(strategy types.Strategy, path []types.Token, amountIn *big.Int) (*types.Route, bool) {
	used := make(map[common.Address]bool)
	pools := make([]types.LiquidityPool, 0, len(path)-1)

	amount := amountIn
	for i := 0; i < len(path)-1; i++ {
		pool, out, ok := s.graph.BestPool(path[i], path[i+1], amount, used)
		if !ok {
			return nil, false
		}
		used[pool.Address] = true
		pools = append(pools, pool)
		amount = out
	}
	return s.poolRoute(strategy, path, pools, amountIn)
}

// poolRoute swaps amountIn along path through the given pools, one per hop
func (s *snapshot) poolRoute(strategy types.Strategy, path []types.Token, pools []types.LiquidityPool, amountIn *big.Int) (*types.Route, bool) {
	steps := make([]types.RouteStep, 0, len(pools))
	venues := make([]string, 0, len(pools))
	confidence := 100.0

	amount := amountIn
	for i, pool := range pools {
		from, to := path[i], path[i+1]
		reserveIn, reserveOut, ok := pool.Reserves(from)
		if !ok {
			return nil, false
		}
		out := math.GetAmountOut(amount, reserveIn, reserveOut, pool.FeeBps)
		if out.Sign() <= 0 {
			return nil, false
		}
		impact := math.PriceImpact(amount, reserveIn)

		gasEstimate := pool.GasEstimate
		if gasEstimate == 0 {
			gasEstimate = gas.HopGas
		}

		feeUSD := math.USDValue(amount, from.Decimals, s.priceOf(from)).
			Mul(decimal.NewFromInt(int64(pool.FeeBps))).
			Div(decimal.NewFromInt(math.BpsDenominator))

		steps = append(steps, types.RouteStep{
			Venue:          pool.Venue,
			TokenIn:        from,
			TokenOut:       to,
			AmountIn:       new(big.Int).Set(amount),
			AmountOut:      out,
			MinAmountOut:   math.MinAmountOut(out, poolSlippageTolerance),
			Fee:            feeUSD,
			Slippage:       impact,
			GasEstimate:    gasEstimate,
			LiquidityUSD:   pool.LiquidityUSD,
			PriceImpact:    impact,
			ExecutionOrder: i + 1,
			MEVRisk:        pool.MEVRisk,
		})
		venues = append(venues, pool.Venue)

		c := pool.Confidence
		if c <= 0 {
			c = defaultPoolConfidence
		}
		if c < confidence {
			confidence = c
		}
		amount = out
	}

	route := newRoute(strategy, pathID(strategy, path, venues), s.req, steps, confidence)
	route.EstimatedTime = blockTime
	return route, true
}
