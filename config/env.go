package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables
const (
	EnvRPCURL         = "SWAPROUTER_RPC_URL"
	EnvChainID        = "SWAPROUTER_CHAIN_ID"
	EnvMaxRoutes      = "SWAPROUTER_MAX_ROUTES"
	EnvMaxHops        = "SWAPROUTER_MAX_HOPS"
	EnvTimeout        = "SWAPROUTER_TIMEOUT"
	EnvCacheTTL       = "SWAPROUTER_CACHE_TTL"
	EnvMEVProtection  = "SWAPROUTER_MEV_PROTECTION"
	EnvPrometheusAddr = "SWAPROUTER_PROMETHEUS_ADDR"
	EnvLogFile        = "SWAPROUTER_LOG_FILE"
)

// LoadEnv loads environment variables from .env file
func LoadEnv(filenames ...string) error {
	return godotenv.Load(filenames...)
}

// GetEnvWithDefault gets an environment variable with a default value
func GetEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// ApplyEnv overrides config fields from SWAPROUTER_* variables. A .env file
// in the working directory is loaded first when present.
func ApplyEnv(cfg *Config) error {
	if err := LoadEnv(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load .env file: %w", err)
	}

	if v := os.Getenv(EnvRPCURL); v != "" {
		cfg.RPCEndpoint = v
	}
	if v := os.Getenv(EnvPrometheusAddr); v != "" {
		cfg.PrometheusEnabled = true
		cfg.PrometheusEndpoint = v
	}
	if v := os.Getenv(EnvLogFile); v != "" {
		cfg.LogFile = v
	}

	if v := os.Getenv(EnvChainID); v != "" {
		chainID, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvChainID, err)
		}
		cfg.ChainID = chainID
	}
	if err := envInt(EnvMaxRoutes, &cfg.Routing.MaxRoutes); err != nil {
		return err
	}
	if err := envInt(EnvMaxHops, &cfg.Routing.MaxHops); err != nil {
		return err
	}
	if err := envDuration(EnvTimeout, &cfg.Routing.Timeout); err != nil {
		return err
	}
	if err := envDuration(EnvCacheTTL, &cfg.Routing.CacheTTL); err != nil {
		return err
	}
	if v := os.Getenv(EnvMEVProtection); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvMEVProtection, err)
		}
		cfg.Routing.EnableMEVProtection = enabled
	}

	return nil
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}
	*dst = n
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}
	*dst = d
	return nil
}
