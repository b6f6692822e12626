package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// RoutingConfig holds the engine tunables
type RoutingConfig struct {
	MaxRoutes       int     `json:"max_routes" yaml:"max_routes"`
	MaxHops         int     `json:"max_hops" yaml:"max_hops"`
	MaxSplits       int     `json:"max_splits" yaml:"max_splits"`
	MinLiquidityUSD float64 `json:"min_liquidity_usd" yaml:"min_liquidity_usd"`

	EnableMEVProtection bool `json:"enable_mev_protection" yaml:"enable_mev_protection"`
	EnableCrossChain    bool `json:"enable_cross_chain" yaml:"enable_cross_chain"`
	EnableArbitrage     bool `json:"enable_arbitrage" yaml:"enable_arbitrage"`
	EnableMultiHop      bool `json:"enable_multi_hop" yaml:"enable_multi_hop"`
	EnableSplit         bool `json:"enable_split" yaml:"enable_split"`

	CacheTTL  time.Duration `json:"cache_ttl" yaml:"cache_ttl"`
	CacheSize int           `json:"cache_size" yaml:"cache_size"`
	Timeout   time.Duration `json:"timeout" yaml:"timeout"`
}

func DefaultRoutingConfig() RoutingConfig {
	return RoutingConfig{
		MaxRoutes:           5,
		MaxHops:             3,
		MaxSplits:           4,
		MinLiquidityUSD:     10000,
		EnableMEVProtection: true,
		EnableCrossChain:    true,
		EnableArbitrage:     true,
		EnableMultiHop:      true,
		EnableSplit:         true,
		CacheTTL:            30 * time.Second,
		CacheSize:           1024,
		Timeout:             5 * time.Second,
	}
}

// Validate returns an error wrapping ErrInvalidConfig listing every problem
func (r *RoutingConfig) Validate() error {
	if err := r.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (r *RoutingConfig) validate() error {
	var errs []string

	if r.MaxRoutes <= 0 {
		errs = append(errs, "max_routes must be positive")
	}
	if r.MaxHops < 1 {
		errs = append(errs, "max_hops must be at least 1")
	}
	if r.MaxSplits < 2 {
		errs = append(errs, "max_splits must be at least 2")
	}
	if r.MinLiquidityUSD < 0 {
		errs = append(errs, "min_liquidity_usd must not be negative")
	}
	if r.CacheTTL <= 0 {
		errs = append(errs, "cache_ttl must be positive")
	}
	if r.CacheSize <= 0 {
		errs = append(errs, "cache_size must be positive")
	}
	if r.Timeout <= 0 {
		errs = append(errs, "timeout must be positive")
	}

	if len(errs) > 0 {
		return errors.New("routing: " + strings.Join(errs, "; "))
	}
	return nil
}

// RoutingConfigUpdate is a partial update; nil fields keep their value
type RoutingConfigUpdate struct {
	MaxRoutes       *int     `json:"max_routes,omitempty"`
	MaxHops         *int     `json:"max_hops,omitempty"`
	MaxSplits       *int     `json:"max_splits,omitempty"`
	MinLiquidityUSD *float64 `json:"min_liquidity_usd,omitempty"`

	EnableMEVProtection *bool `json:"enable_mev_protection,omitempty"`
	EnableCrossChain    *bool `json:"enable_cross_chain,omitempty"`
	EnableArbitrage     *bool `json:"enable_arbitrage,omitempty"`
	EnableMultiHop      *bool `json:"enable_multi_hop,omitempty"`
	EnableSplit         *bool `json:"enable_split,omitempty"`

	CacheTTL  *time.Duration `json:"cache_ttl,omitempty"`
	CacheSize *int           `json:"cache_size,omitempty"`
	Timeout   *time.Duration `json:"timeout,omitempty"`
}

// Apply returns a copy of r with the update merged in and validated.
// r itself is never modified.
func (r RoutingConfig) Apply(u RoutingConfigUpdate) (RoutingConfig, error) {
	next := r
	if u.MaxRoutes != nil {
		next.MaxRoutes = *u.MaxRoutes
	}
	if u.MaxHops != nil {
		next.MaxHops = *u.MaxHops
	}
	if u.MaxSplits != nil {
		next.MaxSplits = *u.MaxSplits
	}
	if u.MinLiquidityUSD != nil {
		next.MinLiquidityUSD = *u.MinLiquidityUSD
	}
	if u.EnableMEVProtection != nil {
		next.EnableMEVProtection = *u.EnableMEVProtection
	}
	if u.EnableCrossChain != nil {
		next.EnableCrossChain = *u.EnableCrossChain
	}
	if u.EnableArbitrage != nil {
		next.EnableArbitrage = *u.EnableArbitrage
	}
	if u.EnableMultiHop != nil {
		next.EnableMultiHop = *u.EnableMultiHop
	}
	if u.EnableSplit != nil {
		next.EnableSplit = *u.EnableSplit
	}
	if u.CacheTTL != nil {
		next.CacheTTL = *u.CacheTTL
	}
	if u.CacheSize != nil {
		next.CacheSize = *u.CacheSize
	}
	if u.Timeout != nil {
		next.Timeout = *u.Timeout
	}

	if err := next.Validate(); err != nil {
		return r, err
	}
	return next, nil
}
