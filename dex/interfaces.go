package dex

import (
	"context"
	"math/big"

	"github.com/michaelpento.lv/swaprouter/types"
)

// PoolSource provides liquidity pools for a chain
type PoolSource interface {
	// Name identifies the source in logs
	Name() string

	// Pools returns every known pool on the chain
	Pools(ctx context.Context, chainID uint64) ([]types.LiquidityPool, error)
}

// Reserves represents token pair reserves
type Reserves struct {
	Reserve0    *big.Int
	Reserve1    *big.Int
	BlockNumber uint32
}
