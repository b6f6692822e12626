package server

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/michaelpento.lv/swaprouter/config"
	"github.com/michaelpento.lv/swaprouter/dex"
	"github.com/michaelpento.lv/swaprouter/dex/uniswap"
	"github.com/michaelpento.lv/swaprouter/gas"
)

// Chain holds the node-backed collaborators of the engine
type Chain struct {
	Pools     dex.PoolSource
	Estimator *gas.Estimator
	client    *ethclient.Client
}

// Connect dials the configured RPC endpoint and builds the on-chain pool
// source for the configured pairs
func Connect(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Chain, error) {
	if cfg.RPCEndpoint == "" {
		return nil, fmt.Errorf("%w: rpc endpoint is not set", config.ErrInvalidConfig)
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.NetworkTimeout)
	defer cancel()

	client, err := ethclient.DialContext(dialCtx, cfg.RPCEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ethereum node: %w", err)
	}

	chain := &Chain{
		Estimator: gas.NewEstimator(client, logger),
		client:    client,
	}

	pairs, err := uniswap.PairsFromConfig(cfg)
	if err != nil {
		client.Close()
		return nil, err
	}
	if len(pairs) > 0 {
		limits := cfg.RPCRateLimit
		limiter := rate.NewLimiter(rate.Limit(limits.RequestsPerSecond), limits.BurstSize)
		source, err := uniswap.NewPoolSource(client, pairs, limiter, limits.WaitTimeout, logger)
		if err != nil {
			client.Close()
			return nil, err
		}
		chain.Pools = source
	}

	logger.Info("Connected to Ethereum node",
		zap.String("endpoint", cfg.RPCEndpoint),
		zap.Int("pairs", len(pairs)))
	return chain, nil
}

// Close releases the RPC connection
func (c *Chain) Close() {
	if c != nil && c.client != nil {
		c.client.Close()
	}
}
