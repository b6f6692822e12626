package routing

import (
	"context"

	"github.com/michaelpento.lv/swaprouter/config"
	"github.com/michaelpento.lv/swaprouter/types"
)

// generator turns a request snapshot into candidate routes. Generators must
// not mutate the snapshot.
type generator interface {
	strategy() types.Strategy
	enabled(cfg config.RoutingConfig) bool
	generate(ctx context.Context, s *snapshot) ([]*types.Route, error)
}

type generatorFunc struct {
	kind    types.Strategy
	flag    func(cfg config.RoutingConfig) bool
	produce func(ctx context.Context, s *snapshot) ([]*types.Route, error)
}

func (g generatorFunc) strategy() types.Strategy {
	return g.kind
}

func (g generatorFunc) enabled(cfg config.RoutingConfig) bool {
	return g.flag == nil || g.flag(cfg)
}

func (g generatorFunc) generate(ctx context.Context, s *snapshot) ([]*types.Route, error) {
	return g.produce(ctx, s)
}

func defaultGenerators() []generator {
	return []generator{
		generatorFunc{
			kind:    types.StrategyDirect,
			produce: generateDirect,
		},
		generatorFunc{
			kind:    types.StrategyMultiHop,
			flag:    func(cfg config.RoutingConfig) bool { return cfg.EnableMultiHop },
			produce: generateMultiHop,
		},
		generatorFunc{
			kind:    types.StrategySplit,
			flag:    func(cfg config.RoutingConfig) bool { return cfg.EnableSplit },
			produce: generateSplit,
		},
		generatorFunc{
			kind:    types.StrategyCrossChain,
			flag:    func(cfg config.RoutingConfig) bool { return cfg.EnableCrossChain },
			produce: generateCrossChain,
		},
		generatorFunc{
			kind:    types.StrategyArbitrage,
			flag:    func(cfg config.RoutingConfig) bool { return cfg.EnableArbitrage },
			produce: generateArbitrage,
		},
	}
}
