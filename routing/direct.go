package routing

import (
	"context"
	"fmt"
	"math/big"

	"github.com/michaelpento.lv/swaprouter/types"
	"github.com/michaelpento.lv/swaprouter/utils/math"
)

// generateDirect builds one single-step route per quote. Quotes from venues
// missing in the registry are skipped; malformed quotes fail the generator.
func generateDirect(ctx context.Context, s *snapshot) ([]*types.Route, error) {
	return buildDirectRoutes(s)
}

func buildDirectRoutes(s *snapshot) ([]*types.Route, error) {
	req := s.req
	seen := make(map[string]int)

	var routes []*types.Route
	for _, q := range req.Quotes {
		venue, ok := s.venues[q.Venue]
		if !ok {
			continue
		}
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("malformed quote: %w", err)
		}

		out := scaleQuote(q, req.AmountIn)
		step := types.RouteStep{
			Venue:          q.Venue,
			TokenIn:        req.TokenIn,
			TokenOut:       req.TokenOut,
			AmountIn:       new(big.Int).Set(req.AmountIn),
			AmountOut:      out,
			MinAmountOut:   math.MinAmountOut(out, q.Slippage),
			Fee:            q.Fee,
			Slippage:       q.Slippage,
			GasEstimate:    q.GasEstimate,
			LiquidityUSD:   s.liquidityFor(q, venue),
			PriceImpact:    q.PriceImpact,
			ExecutionOrder: 1,
			ExecutionTime:  q.ExecutionTime,
			MEVRisk:        types.MEVRisk(venue.MEVRisk),
		}

		seen[q.Venue]++
		id := string(types.StrategyDirect) + ":" + q.Venue
		if n := seen[q.Venue]; n > 1 {
			id = fmt.Sprintf("%s#%d", id, n)
		}

		routes = append(routes, newRoute(types.StrategyDirect, id, req, []types.RouteStep{step}, q.Confidence))
	}
	return routes, nil
}

// scaleQuote returns the quote's output for amountIn, scaling linearly when
// the quote was taken for a different size
func scaleQuote(q types.Quote, amountIn *big.Int) *big.Int {
	if q.AmountIn.Cmp(amountIn) == 0 {
		return new(big.Int).Set(q.AmountOut)
	}
	return math.MulDiv(q.AmountOut, amountIn, q.AmountIn)
}
