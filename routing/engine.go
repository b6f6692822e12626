package routing

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/swaprouter/cache"
	"github.com/michaelpento.lv/swaprouter/config"
	"github.com/michaelpento.lv/swaprouter/dex"
	"github.com/michaelpento.lv/swaprouter/types"
	"github.com/michaelpento.lv/swaprouter/utils/metrics"
)

const metricsNamespace = "swaprouter"

// Engine ranks execution plans for swap requests. It owns its configuration,
// route cache and performance counters; all methods are safe for concurrent
// use.
type Engine struct {
	cfg           config.RoutingConfig
	venues        map[string]config.VenueConfig
	intermediates map[uint64][]types.Token
	bridge        config.BridgeConfig

	pools      dex.PoolSource
	cache      *cache.RouteCache
	metrics    *metrics.RoutingMetrics
	tracker    *metrics.PerformanceTracker
	logger     *zap.Logger
	registerer prometheus.Registerer
	now        func() time.Time
	generators []generator

	mu sync.RWMutex
}

type Option func(*Engine)

// WithPoolSource supplies pools for multi-hop, arbitrage and liquidity lookups
func WithPoolSource(source dex.PoolSource) Option {
	return func(e *Engine) {
		e.pools = source
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithRegisterer registers engine metrics on reg instead of a private registry
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(e *Engine) {
		e.registerer = reg
	}
}

// WithClock replaces the time source used for cache bucketing and expiry
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an engine from the process config
func NewEngine(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", config.ErrInvalidConfig)
	}
	if err := cfg.Routing.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:           cfg.Routing,
		venues:        make(map[string]config.VenueConfig, len(cfg.Venues)),
		intermediates: make(map[uint64][]types.Token, len(cfg.IntermediateTokens)),
		bridge:        cfg.Bridge,
		logger:        zap.NewNop(),
		now:           time.Now,
		generators:    defaultGenerators(),
	}
	for name, venue := range cfg.Venues {
		if err := venue.Validate(); err != nil {
			return nil, fmt.Errorf("%w: venue %s: %v", config.ErrInvalidConfig, name, err)
		}
		e.venues[name] = venue
	}
	for chainID, tokens := range cfg.IntermediateTokens {
		for _, t := range tokens {
			e.intermediates[chainID] = append(e.intermediates[chainID], t.Token(chainID))
		}
	}

	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}

	routeCache, err := e.newCache(e.cfg)
	if err != nil {
		return nil, err
	}
	e.cache = routeCache
	e.metrics = metrics.NewRoutingMetrics(metricsNamespace, e.registerer)
	for _, strategy := range types.Strategies {
		e.metrics.GeneratorFailures.WithLabelValues(string(strategy))
		e.metrics.Candidates.WithLabelValues(string(strategy))
	}
	e.tracker = metrics.NewPerformanceTracker(metrics.DefaultSampleSize)

	return e, nil
}

func (e *Engine) newCache(cfg config.RoutingConfig) (*cache.RouteCache, error) {
	c, err := cache.NewRouteCache(cfg.CacheSize, cfg.CacheTTL, e.logger)
	if err != nil {
		return nil, err
	}
	c.SetClock(e.now)
	return c, nil
}

// FindOptimalRoutes returns at most MaxRoutes viable routes ordered by
// descending score. Identical requests inside one cache window are served
// from the cache without running the generators again.
//
// With arbitrage enabled the list may hold cycles that start and end in
// tokenIn. Those are ranked with the swaps but do not deliver tokenOut;
// callers tell them apart by Strategy or a non-nil Arbitrage.
func (e *Engine) FindOptimalRoutes(ctx context.Context, tokenIn, tokenOut types.Token, amountIn *big.Int, quotes []types.Quote, conditions *types.MarketConditions) ([]*types.Route, error) {
	req := &Request{
		TokenIn:    tokenIn,
		TokenOut:   tokenOut,
		AmountIn:   amountIn,
		Quotes:     quotes,
		Conditions: conditions,
	}
	return e.Route(ctx, req)
}

// Route is FindOptimalRoutes taking a Request
func (e *Engine) Route(ctx context.Context, req *Request) ([]*types.Route, error) {
	start := time.Now()
	logger := e.logger.With(zap.String("requestId", uuid.NewString()))

	e.mu.RLock()
	cfg := e.cfg
	routeCache := e.cache
	e.mu.RUnlock()

	e.metrics.Requests.Inc()

	if err := req.Validate(); err != nil {
		e.fail(start, metrics.ErrorKindInvalidRequest)
		return nil, err
	}

	logger = logger.With(
		zap.String("tokenIn", req.TokenIn.String()),
		zap.String("tokenOut", req.TokenOut.String()),
		zap.String("amountIn", req.AmountIn.String()))

	key := routeCache.Key(req.TokenIn, req.TokenOut, req.AmountIn)
	if cached, ok := routeCache.Get(key); ok {
		result := top(cached, cfg.MaxRoutes)
		elapsed := time.Since(start)
		e.metrics.CacheHits.Inc()
		e.metrics.Latency.Observe(elapsed.Seconds())
		e.metrics.RoutesReturned.Observe(float64(len(result)))
		e.tracker.Record(elapsed, true, true)
		logger.Debug("Serving routes from cache", zap.Int("routes", len(cached)))
		return result, nil
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	routes, err := e.rank(timeoutCtx, logger, cfg, req)
	if err == nil && timeoutCtx.Err() != nil {
		err = timeoutCtx.Err()
	}
	if err != nil {
		switch {
		case ctx.Err() != nil:
			e.fail(start, metrics.ErrorKindCanceled)
			return nil, ctx.Err()
		case errors.Is(err, context.DeadlineExceeded):
			e.fail(start, metrics.ErrorKindTimeout)
			logger.Warn("Routing timed out", zap.Duration("timeout", cfg.Timeout))
			return nil, fmt.Errorf("%w after %s", ErrTimeout, cfg.Timeout)
		default:
			e.fail(start, metrics.ErrorKindRoutingFailed)
			logger.Error("Routing failed", zap.Error(err))
			return nil, err
		}
	}

	e.mu.RLock()
	current := e.cfg == cfg && e.cache == routeCache
	e.mu.RUnlock()
	if current {
		routeCache.Put(key, routes)
		e.metrics.CacheEntries.Set(float64(routeCache.Len()))
	}

	result := top(routes, cfg.MaxRoutes)
	elapsed := time.Since(start)
	e.metrics.Latency.Observe(elapsed.Seconds())
	e.metrics.RoutesReturned.Observe(float64(len(result)))
	e.tracker.Record(elapsed, true, false)

	logger.Info("Routes ranked",
		zap.Int("candidates", len(routes)),
		zap.Int("returned", len(result)),
		zap.Duration("elapsed", elapsed))

	return result, nil
}

func (e *Engine) fail(start time.Time, kind string) {
	e.metrics.Errors.WithLabelValues(kind).Inc()
	e.tracker.Record(time.Since(start), false, false)
}

// rank runs the generators and orders their viable candidates
func (e *Engine) rank(ctx context.Context, logger *zap.Logger, cfg config.RoutingConfig, req *Request) ([]*types.Route, error) {
	pools, err := e.loadPools(ctx, logger, req.TokenIn.ChainID)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	snap := newSnapshot(req, cfg, e.venues, e.intermediates, e.bridge, pools)
	e.mu.RUnlock()

	candidates, err := e.generate(ctx, logger, snap)
	if err != nil {
		return nil, err
	}

	reference := snap.reference
	if reference == nil {
		reference = bestOutput(candidates, req.TokenOut)
	}
	for _, r := range candidates {
		if r.Score == nil {
			r.Score = scoreRoute(r, reference, cfg.MaxSplits)
		}
	}
	sortRoutes(candidates)

	if req.Conditions != nil {
		for _, r := range candidates {
			applyMarketConditions(r, req.Conditions)
		}
	}
	if cfg.EnableMEVProtection {
		for _, r := range candidates {
			applyMEVProtection(r)
		}
	}

	viable := candidates[:0]
	for _, r := range candidates {
		if isViable(r) {
			viable = append(viable, r)
		}
	}
	sortRoutes(viable)

	return viable, nil
}

// loadPools reads the pool snapshot. A failing source only degrades the
// strategies that need pools.
func (e *Engine) loadPools(ctx context.Context, logger *zap.Logger, chainID uint64) ([]types.LiquidityPool, error) {
	if e.pools == nil {
		return nil, nil
	}
	pools, err := e.pools.Pools(ctx, chainID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.metrics.Errors.WithLabelValues(metrics.ErrorKindPoolSource).Inc()
		logger.Warn("Pool source failed, continuing with partial pools",
			zap.String("source", e.pools.Name()),
			zap.Int("pools", len(pools)),
			zap.Error(err))
	}
	return pools, nil
}

type generated struct {
	routes []*types.Route
	err    error
}

// generate fans the enabled generators out and isolates their failures. It
// returns as soon as ctx ends, abandoning stragglers.
func (e *Engine) generate(ctx context.Context, logger *zap.Logger, snap *snapshot) ([]*types.Route, error) {
	var enabled []generator
	for _, g := range e.generators {
		if g.enabled(snap.cfg) {
			enabled = append(enabled, g)
		}
	}
	if len(enabled) == 0 {
		return nil, nil
	}

	results := make([]generated, len(enabled))
	done := make(chan struct{})
	go func() {
		defer close(done)
		p := pool.New().WithMaxGoroutines(len(enabled))
		for idx, g := range enabled {
			i, gen := idx, g
			p.Go(func() {
				defer func() {
					if r := recover(); r != nil {
						results[i].err = fmt.Errorf("panic: %v", r)
					}
				}()
				routes, err := gen.generate(ctx, snap)
				results[i] = generated{routes: routes, err: err}
			})
		}
		p.Wait()
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-done:
	}

	var (
		candidates []*types.Route
		errs       error
		failures   int
	)
	for i, res := range results {
		kind := enabled[i].strategy()
		if res.err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failures++
			errs = multierr.Append(errs, &GeneratorError{Strategy: kind, Err: res.err})
			e.metrics.GeneratorFailures.WithLabelValues(string(kind)).Inc()
			logger.Warn("Route generator failed", zap.String("strategy", string(kind)), zap.Error(res.err))
			continue
		}
		e.metrics.Candidates.WithLabelValues(string(kind)).Add(float64(len(res.routes)))
		candidates = append(candidates, res.routes...)
	}

	if failures == len(enabled) {
		return nil, fmt.Errorf("%w: %w", ErrRoutingFailed, errs)
	}
	return candidates, nil
}

// bestOutput is the reference output when no quote supplied one
func bestOutput(routes []*types.Route, tokenOut types.Token) *big.Int {
	var best *big.Int
	for _, r := range routes {
		if r.Strategy == types.StrategyArbitrage || !r.TokenOut.Equal(tokenOut) {
			continue
		}
		if best == nil || r.TotalOutput.Cmp(best) > 0 {
			best = r.TotalOutput
		}
	}
	return best
}

// sortRoutes orders by descending total score, ties broken by ID
func sortRoutes(routes []*types.Route) {
	sort.SliceStable(routes, func(i, j int) bool {
		a, b := routes[i].Score.Total, routes[j].Score.Total
		if a != b {
			return a > b
		}
		return routes[i].ID < routes[j].ID
	})
}

func top(routes []*types.Route, n int) []*types.Route {
	if len(routes) > n {
		return routes[:n]
	}
	return routes
}

// GetPerformanceStats summarises the most recent requests
func (e *Engine) GetPerformanceStats() metrics.PerformanceStats {
	return e.tracker.Stats()
}

// ClearCache drops every cached route list
func (e *Engine) ClearCache() {
	e.mu.RLock()
	defer e.mu.RUnlock()
	e.cache.Clear()
	e.metrics.CacheEntries.Set(0)
}

// UpdateConfig applies a partial update. An invalid update returns an error
// wrapping config.ErrInvalidConfig and leaves the current config in place.
func (e *Engine) UpdateConfig(update config.RoutingConfigUpdate) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	next, err := e.cfg.Apply(update)
	if err != nil {
		return err
	}

	// cached lists were ranked under the old config
	switch {
	case next.CacheSize != e.cfg.CacheSize || next.CacheTTL != e.cfg.CacheTTL:
		routeCache, err := e.newCache(next)
		if err != nil {
			return fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
		}
		e.cache.Clear()
		e.cache = routeCache
		e.metrics.CacheEntries.Set(0)
	case next != e.cfg:
		e.cache.Clear()
		e.metrics.CacheEntries.Set(0)
	}

	e.cfg = next
	e.logger.Info("Routing config updated",
		zap.Int("maxRoutes", next.MaxRoutes),
		zap.Int("maxHops", next.MaxHops),
		zap.Duration("timeout", next.Timeout))
	return nil
}

// GetConfig returns a copy of the current routing config
func (e *Engine) GetConfig() config.RoutingConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// Close stops pending cache expiry timers
func (e *Engine) Close() error {
	e.ClearCache()
	return nil
}
