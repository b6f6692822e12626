package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.ValidateConfig())

	r := cfg.Routing
	assert.Equal(t, 5, r.MaxRoutes)
	assert.Equal(t, 3, r.MaxHops)
	assert.Equal(t, 4, r.MaxSplits)
	assert.Equal(t, 10000.0, r.MinLiquidityUSD)
	assert.True(t, r.EnableMEVProtection)
	assert.True(t, r.EnableCrossChain)
	assert.True(t, r.EnableArbitrage)
	assert.True(t, r.EnableMultiHop)
	assert.True(t, r.EnableSplit)
	assert.Equal(t, 30*time.Second, r.CacheTTL)
	assert.Equal(t, 5*time.Second, r.Timeout)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "defaults",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing chain",
			mutate:  func(c *Config) { c.ChainID = 0 },
			wantErr: "chain_id",
		},
		{
			name:    "bad venue risk",
			mutate:  func(c *Config) { c.Venues["curve"] = VenueConfig{MEVRisk: "extreme"} },
			wantErr: "venue curve",
		},
		{
			name: "bad intermediate token",
			mutate: func(c *Config) {
				c.IntermediateTokens[1] = append(c.IntermediateTokens[1], TokenConfig{Address: "nope", Symbol: "BAD"})
			},
			wantErr: "invalid address",
		},
		{
			name: "pair on venue without factory",
			mutate: func(c *Config) {
				weth := c.IntermediateTokens[1][0]
				usdc := c.IntermediateTokens[1][1]
				c.Pairs = []PairConfig{{Venue: "curve", Token0: weth, Token1: usdc}}
			},
			wantErr: "no factory deployment",
		},
		{
			name:    "rate limit",
			mutate:  func(c *Config) { c.RPCRateLimit.BurstSize = 0 },
			wantErr: "burst size",
		},
		{
			name:    "routing",
			mutate:  func(c *Config) { c.Routing.MaxRoutes = 0 },
			wantErr: "max_routes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.ValidateConfig()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRoutingConfigApply(t *testing.T) {
	base := DefaultRoutingConfig()

	maxRoutes := 8
	disabled := false
	next, err := base.Apply(RoutingConfigUpdate{MaxRoutes: &maxRoutes, EnableSplit: &disabled})
	require.NoError(t, err)
	assert.Equal(t, 8, next.MaxRoutes)
	assert.False(t, next.EnableSplit)
	assert.Equal(t, base.MaxHops, next.MaxHops)
	assert.True(t, base.EnableSplit, "receiver must not change")

	negative := -1
	kept, err := base.Apply(RoutingConfigUpdate{MaxRoutes: &maxRoutes, MaxHops: &negative})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, base, kept)

	zero := time.Duration(0)
	_, err = base.Apply(RoutingConfigUpdate{Timeout: &zero})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadConfigYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "router.yaml")
	data := `
chain_id: 137
routing:
  max_routes: 3
  timeout: 2s
  cache_ttl: 10s
venues:
  quickswap:
    mev_risk: medium
    default_liquidity_usd: 500000
bridge:
  protocol: test-bridge
  liquidity_usd: 1000000
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, uint64(137), cfg.ChainID)
	assert.Equal(t, 3, cfg.Routing.MaxRoutes)
	assert.Equal(t, 2*time.Second, cfg.Routing.Timeout)
	assert.Equal(t, 10*time.Second, cfg.Routing.CacheTTL)
	assert.True(t, cfg.Routing.EnableSplit, "unset fields keep defaults")
	assert.Equal(t, "medium", cfg.Venues["quickswap"].MEVRisk)
	assert.Contains(t, cfg.Venues, "uniswap-v2")
	assert.Equal(t, "test-bridge", cfg.Bridge.Protocol)
	assert.NotNil(t, cfg.Logger)
}

func TestLoadConfigJSONWithEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "router.json")
	require.NoError(t, SaveConfig(DefaultConfig(), path))

	t.Setenv(EnvMaxRoutes, "7")
	t.Setenv(EnvTimeout, "750ms")
	t.Setenv(EnvRPCURL, "http://node:8545")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Routing.MaxRoutes)
	assert.Equal(t, 750*time.Millisecond, cfg.Routing.Timeout)
	assert.Equal(t, "http://node:8545", cfg.RPCEndpoint)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "router.json")
	require.NoError(t, SaveConfig(DefaultConfig(), path))
	t.Setenv(EnvMaxRoutes, "many")
	_, err = LoadConfig(path)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
