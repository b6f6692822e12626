package routing

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelpento.lv/swaprouter/config"
	"github.com/michaelpento.lv/swaprouter/types"
	"github.com/michaelpento.lv/swaprouter/utils/metrics"
	"github.com/michaelpento.lv/swaprouter/utils/testutils"
)

func failing(kind types.Strategy, err error) generator {
	return generatorFunc{
		kind: kind,
		produce: func(ctx context.Context, s *snapshot) ([]*types.Route, error) {
			return nil, err
		},
	}
}

func TestNewEngine(t *testing.T) {
	_, err := NewEngine(nil)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	cfg := testConfig()
	cfg.Routing.MaxRoutes = 0
	_, err = NewEngine(cfg)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	cfg = testConfig()
	cfg.Venues["bad"] = config.VenueConfig{MEVRisk: "extreme"}
	_, err = NewEngine(cfg)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestFindOptimalRoutesRanksQuotes(t *testing.T) {
	e := newTestEngine(t)
	quotes := twoQuotes()

	routes, err := e.FindOptimalRoutes(context.Background(), testutils.WETH, testutils.USDC, testutils.Units(1, 18), quotes, nil)
	require.NoError(t, err)
	require.Len(t, routes, 2)

	assert.Equal(t, "direct:A", routes[0].ID)
	assert.InDelta(t, 83.25, routes[0].Score.Total, 1e-9)
	assert.Equal(t, "direct:B", routes[1].ID)
	assert.InDelta(t, 76.2083, routes[1].Score.Total, 1e-3)

	for i, r := range routes {
		assert.True(t, isViable(r))
		assert.False(t, r.MEVProtection, "low risk venues are not charged")
		if i > 0 {
			assert.GreaterOrEqual(t, routes[i-1].Score.Total, r.Score.Total)
		}
	}
}

func TestFindOptimalRoutesInvalidRequest(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.FindOptimalRoutes(ctx, testutils.WETH, testutils.USDC, big.NewInt(0), twoQuotes(), nil)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = e.FindOptimalRoutes(ctx, testutils.WETH, testutils.USDC, nil, twoQuotes(), nil)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = e.FindOptimalRoutes(ctx, testutils.WETH, testutils.USDC, testutils.Units(1, 18), twoQuotes(),
		&types.MarketConditions{Congestion: 1.5})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestFindOptimalRoutesEmpty(t *testing.T) {
	e := newTestEngine(t)

	routes, err := e.FindOptimalRoutes(context.Background(), testutils.WETH, testutils.USDC, testutils.Units(1, 18), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, routes)
}

func TestFindOptimalRoutesMaxRoutes(t *testing.T) {
	e := newTestEngine(t)
	one := 1
	require.NoError(t, e.UpdateConfig(config.RoutingConfigUpdate{MaxRoutes: &one}))

	routes, err := e.FindOptimalRoutes(context.Background(), testutils.WETH, testutils.USDC, testutils.Units(1, 18), twoQuotes(), nil)
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, "direct:A", routes[0].ID)
}

func TestFindOptimalRoutesCache(t *testing.T) {
	e := newTestEngine(t)
	counters := make([]*countingGenerator, len(e.generators))
	for i, g := range e.generators {
		counters[i] = &countingGenerator{generator: g}
		e.generators[i] = counters[i]
	}

	ctx := context.Background()
	amountIn := testutils.Units(1, 18)
	first, err := e.FindOptimalRoutes(ctx, testutils.WETH, testutils.USDC, amountIn, twoQuotes(), nil)
	require.NoError(t, err)
	second, err := e.FindOptimalRoutes(ctx, testutils.WETH, testutils.USDC, amountIn, twoQuotes(), nil)
	require.NoError(t, err)

	for _, c := range counters {
		assert.Equal(t, int32(1), c.calls.Load(), c.strategy())
	}
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Score.Total, second[i].Score.Total)
		assert.NotSame(t, first[i], second[i])
	}

	// callers may not corrupt the cache
	second[0].TotalOutput.SetInt64(1)
	third, err := e.FindOptimalRoutes(ctx, testutils.WETH, testutils.USDC, amountIn, twoQuotes(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, third[0].TotalOutput.Cmp(testutils.Units(3000, 6)))

	e.ClearCache()
	_, err = e.FindOptimalRoutes(ctx, testutils.WETH, testutils.USDC, amountIn, twoQuotes(), nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), counters[0].calls.Load())

	stats := e.GetPerformanceStats()
	assert.Equal(t, uint64(4), stats.TotalRoutes)
	assert.InDelta(t, 0.5, stats.CacheHitRate, 1e-9)
	assert.InDelta(t, 1, stats.SuccessRate, 1e-9)
	assert.Zero(t, stats.ErrorRate)
}

func TestFindOptimalRoutesMEVProtection(t *testing.T) {
	amountIn := testutils.Units(1, 18)
	quotes := []types.Quote{testutils.CreateMockQuote("H", amountIn, testutils.Units(3000, 6))}
	ctx := context.Background()

	plain := newTestEngine(t)
	off := false
	require.NoError(t, plain.UpdateConfig(config.RoutingConfigUpdate{EnableMEVProtection: &off}))
	unprotected, err := plain.FindOptimalRoutes(ctx, testutils.WETH, testutils.USDC, amountIn, quotes, nil)
	require.NoError(t, err)
	require.Len(t, unprotected, 1)
	assert.False(t, unprotected[0].MEVProtection)

	e := newTestEngine(t)
	for i := 0; i < 2; i++ {
		routes, err := e.FindOptimalRoutes(ctx, testutils.WETH, testutils.USDC, amountIn, quotes, nil)
		require.NoError(t, err)
		require.Len(t, routes, 1)

		r := routes[0]
		assert.True(t, r.MEVProtection)
		assert.Equal(t, unprotected[0].EstimatedTime+10*time.Second, r.EstimatedTime)
		assert.InDelta(t, unprotected[0].TotalSlippage+0.1, r.TotalSlippage, 1e-9)
	}
}

func TestFindOptimalRoutesMarketConditions(t *testing.T) {
	e := newTestEngine(t)
	conditions := &types.MarketConditions{Volatility: 0.1, Congestion: 0.9}

	routes, err := e.FindOptimalRoutes(context.Background(), testutils.WETH, testutils.USDC, testutils.Units(1, 18), twoQuotes(), conditions)
	require.NoError(t, err)
	require.Len(t, routes, 2)

	a := routes[0]
	assert.Equal(t, "direct:A", a.ID)
	assert.InDelta(t, 0.12, a.TotalSlippage, 1e-9)
	assert.InDelta(t, 85.5, a.Confidence, 1e-9)
	assert.Equal(t, uint64(225000), a.TotalGasCost)
	assert.Equal(t, 26*time.Second, a.EstimatedTime)
	assert.InDelta(t, 83.25*1.1, a.Score.Total, 1e-9)
}

func TestFindOptimalRoutesWithPools(t *testing.T) {
	e := newTestEngine(t, WithPoolSource(staticPools(testPools()...)))

	routes, err := e.FindOptimalRoutes(context.Background(), testutils.WETH, testutils.USDC, testutils.Units(1, 18), twoQuotes(), nil)
	require.NoError(t, err)
	require.NotEmpty(t, routes)
	require.LessOrEqual(t, len(routes), 5)

	strategies := make(map[types.Strategy]bool)
	for i, r := range routes {
		require.NoError(t, r.Validate())
		assert.True(t, isViable(r))
		strategies[r.Strategy] = true
		if r.Strategy == types.StrategyArbitrage {
			require.NotNil(t, r.Arbitrage)
			assert.True(t, r.Steps[len(r.Steps)-1].TokenOut.Equal(testutils.WETH), "cycles return the input token")
		}
		if i > 0 {
			assert.GreaterOrEqual(t, routes[i-1].Score.Total, r.Score.Total)
		}
	}
	assert.True(t, strategies[types.StrategyDirect])
	assert.True(t, strategies[types.StrategyMultiHop])
}

func TestFindOptimalRoutesCrossChain(t *testing.T) {
	e := newTestEngine(t)

	routes, err := e.FindOptimalRoutes(context.Background(), testutils.WETH, testutils.PolygonUSDC, testutils.Units(1, 18), nil, nil)
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, types.StrategyCrossChain, routes[0].Strategy)
	assert.NotNil(t, routes[0].Score)
}

func TestFindOptimalRoutesTimeout(t *testing.T) {
	e := newTestEngine(t)
	e.generators = []generator{generatorFunc{
		kind: types.StrategyDirect,
		produce: func(ctx context.Context, s *snapshot) ([]*types.Route, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}}
	timeout := 20 * time.Millisecond
	require.NoError(t, e.UpdateConfig(config.RoutingConfigUpdate{Timeout: &timeout}))

	_, err := e.FindOptimalRoutes(context.Background(), testutils.WETH, testutils.USDC, testutils.Units(1, 18), twoQuotes(), nil)
	assert.ErrorIs(t, err, ErrTimeout)

	stats := e.GetPerformanceStats()
	assert.InDelta(t, 1, stats.ErrorRate, 1e-9)
}

func TestFindOptimalRoutesCanceled(t *testing.T) {
	e := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.FindOptimalRoutes(ctx, testutils.WETH, testutils.USDC, testutils.Units(1, 18), twoQuotes(), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestFindOptimalRoutesGeneratorFailures(t *testing.T) {
	ctx := context.Background()
	amountIn := testutils.Units(1, 18)

	t.Run("all fail", func(t *testing.T) {
		e := newTestEngine(t)
		boom := errors.New("boom")
		e.generators = []generator{
			failing(types.StrategyDirect, boom),
			failing(types.StrategyMultiHop, boom),
		}

		_, err := e.FindOptimalRoutes(ctx, testutils.WETH, testutils.USDC, amountIn, twoQuotes(), nil)
		require.ErrorIs(t, err, ErrRoutingFailed)
		assert.ErrorIs(t, err, boom)

		var genErr *GeneratorError
		require.ErrorAs(t, err, &genErr)
		assert.Contains(t, []types.Strategy{types.StrategyDirect, types.StrategyMultiHop}, genErr.Strategy)
	})

	t.Run("one fails", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		e := newTestEngine(t, WithRegisterer(reg))
		e.generators = []generator{
			defaultGenerators()[0],
			failing(types.StrategySplit, errors.New("boom")),
		}

		routes, err := e.FindOptimalRoutes(ctx, testutils.WETH, testutils.USDC, amountIn, twoQuotes(), nil)
		require.NoError(t, err)
		assert.Len(t, routes, 2)
		assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.GeneratorFailures.WithLabelValues("split")))
	})

	t.Run("panic is isolated", func(t *testing.T) {
		e := newTestEngine(t)
		e.generators = []generator{
			defaultGenerators()[0],
			generatorFunc{
				kind: types.StrategyArbitrage,
				produce: func(ctx context.Context, s *snapshot) ([]*types.Route, error) {
					panic("unreachable pool state")
				},
			},
		}

		routes, err := e.FindOptimalRoutes(ctx, testutils.WETH, testutils.USDC, amountIn, twoQuotes(), nil)
		require.NoError(t, err)
		assert.Len(t, routes, 2)
	})
}

func TestFindOptimalRoutesPoolSourceFailure(t *testing.T) {
	e := newTestEngine(t, WithPoolSource(brokenSource{}))

	routes, err := e.FindOptimalRoutes(context.Background(), testutils.WETH, testutils.USDC, testutils.Units(1, 18), twoQuotes(), nil)
	require.NoError(t, err)
	assert.Len(t, routes, 2)
}

type brokenSource struct{}

func (brokenSource) Name() string { return "broken" }

func (brokenSource) Pools(ctx context.Context, chainID uint64) ([]types.LiquidityPool, error) {
	return nil, errors.New("rpc unavailable")
}

func TestUpdateConfig(t *testing.T) {
	e := newTestEngine(t)
	before := e.GetConfig()

	zero := 0
	err := e.UpdateConfig(config.RoutingConfigUpdate{MaxHops: &zero})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.Equal(t, before, e.GetConfig())

	hops := 2
	ttl := time.Minute
	require.NoError(t, e.UpdateConfig(config.RoutingConfigUpdate{MaxHops: &hops, CacheTTL: &ttl}))
	after := e.GetConfig()
	assert.Equal(t, 2, after.MaxHops)
	assert.Equal(t, time.Minute, after.CacheTTL)
	assert.Equal(t, before.MaxRoutes, after.MaxRoutes)
	assert.Equal(t, time.Minute, e.cache.TTL())
}

func TestUpdateConfigInvalidatesCache(t *testing.T) {
	e := newTestEngine(t, WithPoolSource(staticPools(testPools()...)))
	counters := make(map[types.Strategy]*countingGenerator)
	for i, g := range e.generators {
		c := &countingGenerator{generator: g}
		counters[g.strategy()] = c
		e.generators[i] = c
	}

	ctx := context.Background()
	amountIn := testutils.Units(1, 18)
	hasArbitrage := func(routes []*types.Route) bool {
		for _, r := range routes {
			if r.Strategy == types.StrategyArbitrage {
				return true
			}
		}
		return false
	}

	routes, err := e.FindOptimalRoutes(ctx, testutils.WETH, testutils.USDC, amountIn, twoQuotes(), nil)
	require.NoError(t, err)
	require.True(t, hasArbitrage(routes))

	// an update that changes nothing keeps the cache
	on := true
	require.NoError(t, e.UpdateConfig(config.RoutingConfigUpdate{EnableArbitrage: &on}))
	_, err = e.FindOptimalRoutes(ctx, testutils.WETH, testutils.USDC, amountIn, twoQuotes(), nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), counters[types.StrategyDirect].calls.Load())

	off := false
	require.NoError(t, e.UpdateConfig(config.RoutingConfigUpdate{EnableArbitrage: &off}))
	assert.Zero(t, e.cache.Len())

	routes, err = e.FindOptimalRoutes(ctx, testutils.WETH, testutils.USDC, amountIn, twoQuotes(), nil)
	require.NoError(t, err)
	assert.False(t, hasArbitrage(routes))
	assert.Equal(t, int32(2), counters[types.StrategyDirect].calls.Load())
	assert.Equal(t, int32(1), counters[types.StrategyArbitrage].calls.Load())
}

func TestNewEngineStrategyLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	newTestEngine(t, WithRegisterer(reg))

	summary, err := metrics.Summarize(reg)
	require.NoError(t, err)
	for _, strategy := range types.Strategies {
		failures, ok := summary["swaprouter_generator_failures_total{strategy="+string(strategy)+"}"]
		assert.True(t, ok, strategy)
		assert.Zero(t, failures)
		_, ok = summary["swaprouter_candidates_total{strategy="+string(strategy)+"}"]
		assert.True(t, ok, strategy)
	}
}

func TestFindOptimalRoutesCacheHitMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := newTestEngine(t, WithRegisterer(reg))

	ctx := context.Background()
	amountIn := testutils.Units(1, 18)
	for i := 0; i < 2; i++ {
		_, err := e.FindOptimalRoutes(ctx, testutils.WETH, testutils.USDC, amountIn, twoQuotes(), nil)
		require.NoError(t, err)
	}

	summary, err := metrics.Summarize(reg)
	require.NoError(t, err)
	assert.Equal(t, 1.0, summary["swaprouter_cache_hits_total"])
	assert.Equal(t, 2.0, summary["swaprouter_latency_seconds_count"])
	assert.Equal(t, 2.0, summary["swaprouter_routes_returned_count"])
	assert.Equal(t, 4.0, summary["swaprouter_routes_returned_sum"])
}

func TestRequestValidate(t *testing.T) {
	valid := func() *Request {
		return &Request{TokenIn: testutils.WETH, TokenOut: testutils.USDC, AmountIn: big.NewInt(1)}
	}

	tests := []struct {
		name   string
		mutate func(r *Request)
		ok     bool
	}{
		{"valid", func(r *Request) {}, true},
		{"negative amount", func(r *Request) { r.AmountIn = big.NewInt(-1) }, false},
		{"missing chain", func(r *Request) { r.TokenOut.ChainID = 0 }, false},
		{"negative volatility", func(r *Request) { r.Conditions = &types.MarketConditions{Volatility: -1} }, false},
		{"negative gas price", func(r *Request) { r.Conditions = &types.MarketConditions{GasPriceGwei: -1} }, false},
		{"conditions", func(r *Request) {
			r.Conditions = &types.MarketConditions{Volatility: 0.2, Congestion: 1, NativePriceUSD: decimal.NewFromInt(2000)}
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			tt.mutate(r)
			err := r.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidRequest)
			}
		})
	}
}
