package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"github.com/michaelpento.lv/swaprouter/types"
)

// ErrInvalidConfig is returned for any configuration that fails validation
var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	// Chain and network settings
	ChainID        uint64        `json:"chain_id" yaml:"chain_id"`
	RPCEndpoint    string        `json:"rpc_endpoint" yaml:"rpc_endpoint"`
	NetworkTimeout time.Duration `json:"network_timeout" yaml:"network_timeout"`

	// Engine tunables
	Routing RoutingConfig `json:"routing" yaml:"routing"`

	// Venue registry; quotes from venues not listed here are ignored
	Venues map[string]VenueConfig `json:"venues" yaml:"venues"`

	// Tokens allowed as interior nodes of multi-hop paths, per chain
	IntermediateTokens map[uint64][]TokenConfig `json:"intermediate_tokens" yaml:"intermediate_tokens"`

	// Pairs read from chain by the on-chain pool source
	Pairs []PairConfig `json:"pairs" yaml:"pairs"`

	Bridge       BridgeConfig    `json:"bridge" yaml:"bridge"`
	RPCRateLimit RateLimitConfig `json:"rpc_rate_limit" yaml:"rpc_rate_limit"`

	// Feature flags
	PrometheusEnabled  bool   `json:"prometheus_enabled" yaml:"prometheus_enabled"`
	PrometheusEndpoint string `json:"prometheus_endpoint" yaml:"prometheus_endpoint"`

	LogFile string `json:"log_file" yaml:"log_file"`
	Debug   bool   `json:"debug" yaml:"debug"`

	// Internal components
	Logger *zap.Logger `json:"-" yaml:"-"`
}

type VenueConfig struct {
	MEVRisk             string  `json:"mev_risk" yaml:"mev_risk"`
	DefaultLiquidityUSD float64 `json:"default_liquidity_usd" yaml:"default_liquidity_usd"`

	// Uniswap-V2-style deployment, only needed for the on-chain pool source
	Factory      string `json:"factory,omitempty" yaml:"factory,omitempty"`
	InitCodeHash string `json:"init_code_hash,omitempty" yaml:"init_code_hash,omitempty"`
	FeeBps       uint32 `json:"fee_bps,omitempty" yaml:"fee_bps,omitempty"`
	GasEstimate  uint64 `json:"gas_estimate,omitempty" yaml:"gas_estimate,omitempty"`
}

type TokenConfig struct {
	Address  string  `json:"address" yaml:"address"`
	Symbol   string  `json:"symbol" yaml:"symbol"`
	Decimals uint8   `json:"decimals" yaml:"decimals"`
	PriceUSD float64 `json:"price_usd,omitempty" yaml:"price_usd,omitempty"`
}

type PairConfig struct {
	Venue  string      `json:"venue" yaml:"venue"`
	Token0 TokenConfig `json:"token0" yaml:"token0"`
	Token1 TokenConfig `json:"token1" yaml:"token1"`
}

type BridgeConfig struct {
	Protocol     string  `json:"protocol" yaml:"protocol"`
	LiquidityUSD float64 `json:"liquidity_usd" yaml:"liquidity_usd"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64       `json:"requests_per_second" yaml:"requests_per_second"`
	BurstSize         int           `json:"burst_size" yaml:"burst_size"`
	WaitTimeout       time.Duration `json:"wait_timeout" yaml:"wait_timeout"`
}

func (c *Config) ValidateConfig() error {
	var errs []string

	if c.ChainID == 0 {
		errs = append(errs, "chain_id must be specified")
	}

	if err := c.Routing.validate(); err != nil {
		errs = append(errs, err.Error())
	}

	if len(c.Venues) == 0 {
		errs = append(errs, "at least one venue must be configured")
	}
	for name, venue := range c.Venues {
		if err := venue.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("venue %s: %v", name, err))
		}
	}

	for chainID, tokens := range c.IntermediateTokens {
		for _, token := range tokens {
			if err := token.Validate(); err != nil {
				errs = append(errs, fmt.Sprintf("intermediate token on chain %d: %v", chainID, err))
			}
		}
	}

	for i, pair := range c.Pairs {
		venue, ok := c.Venues[pair.Venue]
		if !ok {
			errs = append(errs, fmt.Sprintf("pair %d references unknown venue %s", i, pair.Venue))
			continue
		}
		if venue.Factory == "" || venue.InitCodeHash == "" {
			errs = append(errs, fmt.Sprintf("pair %d: venue %s has no factory deployment", i, pair.Venue))
		}
		if err := pair.Token0.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("pair %d token0: %v", i, err))
		}
		if err := pair.Token1.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("pair %d token1: %v", i, err))
		}
	}

	if c.Bridge.LiquidityUSD < 0 {
		errs = append(errs, "bridge liquidity_usd must not be negative")
	}

	if err := c.RPCRateLimit.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("RPC rate limit error: %v", err))
	}

	if c.PrometheusEnabled && c.PrometheusEndpoint == "" {
		errs = append(errs, "prometheus_endpoint must be specified when prometheus is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}

	return nil
}

func (v *VenueConfig) Validate() error {
	switch v.MEVRisk {
	case "low", "medium", "high":
	default:
		return fmt.Errorf("mev_risk must be low, medium or high, got %q", v.MEVRisk)
	}
	if v.DefaultLiquidityUSD < 0 {
		return fmt.Errorf("default liquidity must not be negative")
	}
	if v.FeeBps >= 10000 {
		return fmt.Errorf("fee must be below 10000 bps")
	}
	if v.Factory != "" && !common.IsHexAddress(v.Factory) {
		return fmt.Errorf("factory %q is not an address", v.Factory)
	}
	return nil
}

func (t *TokenConfig) Validate() error {
	if !common.IsHexAddress(t.Address) {
		return fmt.Errorf("token %s has invalid address %q", t.Symbol, t.Address)
	}
	if t.PriceUSD < 0 {
		return fmt.Errorf("token %s has negative price", t.Symbol)
	}
	return nil
}

// Token converts the entry into a token on chainID
func (t TokenConfig) Token(chainID uint64) types.Token {
	return types.Token{
		Address:  common.HexToAddress(t.Address),
		Symbol:   t.Symbol,
		Decimals: t.Decimals,
		ChainID:  chainID,
		PriceUSD: decimal.NewFromFloat(t.PriceUSD),
	}
}

func (r *RateLimitConfig) Validate() error {
	if r.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests per second must be positive")
	}
	if r.BurstSize <= 0 {
		return fmt.Errorf("burst size must be positive")
	}
	if r.WaitTimeout <= 0 {
		return fmt.Errorf("wait timeout must be positive")
	}

	return nil
}

// DefaultConfigPath returns $HOME/.swaprouter.json
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".swaprouter.json"), nil
}

// LoadConfig reads the config file on top of the defaults, applies
// environment overrides and validates the result. With no explicit file and
// no file at the default location the defaults are used.
func LoadConfig(cfgFile string) (*Config, error) {
	config := DefaultConfig()

	explicit := cfgFile != ""
	if !explicit {
		path, err := DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		cfgFile = path
	}

	if err := config.decodeFile(cfgFile); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	if err := ApplyEnv(config); err != nil {
		return nil, err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	config.Logger = logger

	if err := config.ValidateConfig(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) decodeFile(cfgFile string) error {
	file, err := os.Open(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(cfgFile)) {
	case ".yaml", ".yml":
		if err := yaml.NewDecoder(file).Decode(c); err != nil {
			return fmt.Errorf("failed to decode config file: %w", err)
		}
	default:
		if err := json.NewDecoder(file).Decode(c); err != nil {
			return fmt.Errorf("failed to decode config file: %w", err)
		}
	}
	return nil
}

func SaveConfig(cfg *Config, cfgFile string) error {
	if cfgFile == "" {
		path, err := DefaultConfigPath()
		if err != nil {
			return err
		}
		cfgFile = path
	}

	file, err := os.Create(cfgFile)
	if err != nil {
		return err
	}
	defer file.Close()

	if ext := strings.ToLower(filepath.Ext(cfgFile)); ext == ".yaml" || ext == ".yml" {
		return yaml.NewEncoder(file).Encode(cfg)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "    ")
	return encoder.Encode(cfg)
}

func DefaultConfig() *Config {
	return &Config{
		Logger:         zap.NewNop(),
		ChainID:        1,
		RPCEndpoint:    "http://localhost:8545",
		NetworkTimeout: 5 * time.Second,
		Routing:        DefaultRoutingConfig(),
		Venues: map[string]VenueConfig{
			"uniswap-v2": {
				MEVRisk:             "high",
				DefaultLiquidityUSD: 2000000,
				Factory:             "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f",
				InitCodeHash:        "0x96e8ac4277198ff8b6f785478aa9a39f403cb768dd02cbee326c3e7da348845f",
				FeeBps:              30,
				GasEstimate:         120000,
			},
			"sushiswap": {
				MEVRisk:             "high",
				DefaultLiquidityUSD: 800000,
				Factory:             "0xC0AEe478e3658e2610c5F7A4A2E1777cE9e4f2Ac",
				InitCodeHash:        "0xe18a34eb0e04b04f7a0ac29a6e80748dca96319b42c54d679cb821dca90c6303",
				FeeBps:              30,
				GasEstimate:         125000,
			},
			"uniswap-v3": {MEVRisk: "medium", DefaultLiquidityUSD: 5000000},
			"curve":      {MEVRisk: "low", DefaultLiquidityUSD: 3000000},
			"balancer":   {MEVRisk: "medium", DefaultLiquidityUSD: 1000000},
			"1inch":      {MEVRisk: "low", DefaultLiquidityUSD: 4000000},
			"cowswap":    {MEVRisk: "low", DefaultLiquidityUSD: 1500000},
		},
		IntermediateTokens: map[uint64][]TokenConfig{
			1: {
				{Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Symbol: "WETH", Decimals: 18},
				{Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Symbol: "USDC", Decimals: 6, PriceUSD: 1},
				{Address: "0xdAC17F958D2ee523a2206206994597C13D831ec7", Symbol: "USDT", Decimals: 6, PriceUSD: 1},
				{Address: "0x6B175474E89094C44Da98b954EedeAC495271d0F", Symbol: "DAI", Decimals: 18, PriceUSD: 1},
				{Address: "0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599", Symbol: "WBTC", Decimals: 8},
			},
			137: {
				{Address: "0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270", Symbol: "WMATIC", Decimals: 18},
				{Address: "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174", Symbol: "USDC", Decimals: 6, PriceUSD: 1},
			},
		},
		Bridge: BridgeConfig{
			Protocol:     "generic-bridge",
			LiquidityUSD: 5000000,
		},
		RPCRateLimit: RateLimitConfig{
			RequestsPerSecond: 10,
			BurstSize:         100,
			WaitTimeout:       time.Second,
		},
		PrometheusEnabled:  false,
		PrometheusEndpoint: ":9090",
	}
}
