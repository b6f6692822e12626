package dex

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"github.com/michaelpento.lv/swaprouter/types"
)

// StaticPoolSource serves a fixed, in-memory pool set
type StaticPoolSource struct {
	name  string
	pools []types.LiquidityPool
	mu    sync.RWMutex
}

func NewStaticPoolSource(name string, pools ...types.LiquidityPool) *StaticPoolSource {
	return &StaticPoolSource{
		name:  name,
		pools: append([]types.LiquidityPool(nil), pools...),
	}
}

func (s *StaticPoolSource) Name() string {
	return s.name
}

// Add registers more pools
func (s *StaticPoolSource) Add(pools ...types.LiquidityPool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pools = append(s.pools, pools...)
}

func (s *StaticPoolSource) Pools(ctx context.Context, chainID uint64) ([]types.LiquidityPool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.LiquidityPool
	for _, pool := range s.pools {
		if pool.ChainID == chainID {
			out = append(out, pool)
		}
	}
	return out, nil
}

// MultiSource merges several sources. Every pool a source returns is kept,
// even when that source also reports an error, and the errors are combined.
type MultiSource []PoolSource

func (m MultiSource) Name() string {
	return "multi"
}

func (m MultiSource) Pools(ctx context.Context, chainID uint64) ([]types.LiquidityPool, error) {
	var (
		out  []types.LiquidityPool
		errs error
	)
	for _, source := range m {
		pools, err := source.Pools(ctx, chainID)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			errs = multierr.Append(errs, fmt.Errorf("pool source %s: %w", source.Name(), err))
		}
		// a source may return its healthy pools alongside per-pool errors
		out = append(out, pools...)
	}
	return out, errs
}
