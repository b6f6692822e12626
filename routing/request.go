package routing

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/michaelpento.lv/swaprouter/config"
	"github.com/michaelpento.lv/swaprouter/dex"
	"github.com/michaelpento.lv/swaprouter/types"
)

// Request is a swap to route. It mirrors the arguments of
// Engine.FindOptimalRoutes for callers that decode requests from files.
type Request struct {
	TokenIn    types.Token             `json:"tokenIn"`
	TokenOut   types.Token             `json:"tokenOut"`
	AmountIn   *big.Int                `json:"amountIn"`
	Quotes     []types.Quote           `json:"quotes"`
	Conditions *types.MarketConditions `json:"conditions,omitempty"`
}

func (r *Request) Validate() error {
	if r.AmountIn == nil || r.AmountIn.Sign() <= 0 {
		return fmt.Errorf("%w: amount in must be positive", ErrInvalidRequest)
	}
	if r.TokenIn.ChainID == 0 || r.TokenOut.ChainID == 0 {
		return fmt.Errorf("%w: chain id is required for both tokens", ErrInvalidRequest)
	}
	if r.Conditions != nil {
		c := r.Conditions
		if c.Volatility < 0 || c.Congestion < 0 || c.Congestion > 1 || c.GasPriceGwei < 0 {
			return fmt.Errorf("%w: market conditions out of range", ErrInvalidRequest)
		}
	}
	return nil
}

// snapshot is everything a generator may read. It is built once per request
// and shared read-only between generators.
type snapshot struct {
	req           *Request
	cfg           config.RoutingConfig
	venues        map[string]config.VenueConfig
	intermediates map[uint64][]types.Token
	bridge        config.BridgeConfig
	pools         []types.LiquidityPool
	graph         *dex.Graph
	// reference is the best quoted output, the denominator of the output
	// sub-score
	reference *big.Int
}

func newSnapshot(req *Request, cfg config.RoutingConfig, venues map[string]config.VenueConfig, intermediates map[uint64][]types.Token, bridge config.BridgeConfig, pools []types.LiquidityPool) *snapshot {
	s := &snapshot{
		req:           req,
		cfg:           cfg,
		venues:        venues,
		intermediates: intermediates,
		bridge:        bridge,
		pools:         pools,
		graph:         dex.NewGraph(pools, decimal.NewFromFloat(cfg.MinLiquidityUSD)),
	}
	for _, q := range req.Quotes {
		if _, ok := venues[q.Venue]; !ok || q.Validate() != nil {
			continue
		}
		out := scaleQuote(q, req.AmountIn)
		if s.reference == nil || out.Cmp(s.reference) > 0 {
			s.reference = out
		}
	}
	return s
}

// allowInterior restricts multi-hop interior tokens to the chain's
// intermediate list, when one is configured
func (s *snapshot) allowInterior(chainID uint64) func(types.Token) bool {
	tokens := s.intermediates[chainID]
	if len(tokens) == 0 {
		return nil
	}
	allowed := make(map[types.TokenKey]bool, len(tokens))
	for _, t := range tokens {
		allowed[t.Key()] = true
	}
	return func(t types.Token) bool {
		return allowed[t.Key()]
	}
}

// liquidityFor resolves the liquidity behind a quote: the quote's own value,
// then matching pools, then the venue default
func (s *snapshot) liquidityFor(q types.Quote, venue config.VenueConfig) decimal.Decimal {
	if q.LiquidityUSD.IsPositive() {
		return q.LiquidityUSD
	}
	total := decimal.Zero
	for _, pool := range s.pools {
		if pool.Venue == q.Venue && pool.Connects(s.req.TokenIn, s.req.TokenOut) {
			total = total.Add(pool.LiquidityUSD)
		}
	}
	if total.IsPositive() {
		return total
	}
	return decimal.NewFromFloat(venue.DefaultLiquidityUSD)
}

// priceOf returns the best known USD price of a token, preferring the
// request's tokens and falling back to the pool snapshot
func (s *snapshot) priceOf(t types.Token) decimal.Decimal {
	if t.HasPrice() {
		return t.PriceUSD
	}
	if known, ok := s.graph.Token(t.Key()); ok {
		return known.PriceUSD
	}
	return decimal.Zero
}
