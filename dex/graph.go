package dex

import (
	"bytes"
	"context"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/michaelpento.lv/swaprouter/types"
	"github.com/michaelpento.lv/swaprouter/utils/math"
)

// DefaultMaxPaths bounds the number of paths a single search returns
const DefaultMaxPaths = 64

type edgeKey struct {
	from types.TokenKey
	to   types.TokenKey
}

// Graph is a read-only token graph over one pool snapshot. Parallel pools
// between the same pair share one edge.
type Graph struct {
	tokens   map[types.TokenKey]types.Token
	adj      map[types.TokenKey][]types.TokenKey
	pools    map[edgeKey][]types.LiquidityPool
	MaxPaths int
}

// NewGraph indexes every pool with known reserves and at least
// minLiquidityUSD of liquidity
func NewGraph(pools []types.LiquidityPool, minLiquidityUSD decimal.Decimal) *Graph {
	g := &Graph{
		tokens:   make(map[types.TokenKey]types.Token),
		adj:      make(map[types.TokenKey][]types.TokenKey),
		pools:    make(map[edgeKey][]types.LiquidityPool),
		MaxPaths: DefaultMaxPaths,
	}

	for _, pool := range pools {
		if pool.Reserve0 == nil || pool.Reserve1 == nil || pool.Reserve0.Sign() <= 0 || pool.Reserve1.Sign() <= 0 {
			continue
		}
		if pool.LiquidityUSD.LessThan(minLiquidityUSD) {
			continue
		}
		if pool.Token0.Equal(pool.Token1) {
			continue
		}
		g.addToken(pool.Token0)
		g.addToken(pool.Token1)
		g.addEdge(pool.Token0, pool.Token1, pool)
		g.addEdge(pool.Token1, pool.Token0, pool)
	}

	for from, neighbors := range g.adj {
		sort.Slice(neighbors, func(i, j int) bool {
			return bytes.Compare(neighbors[i].Address.Bytes(), neighbors[j].Address.Bytes()) < 0
		})
		g.adj[from] = neighbors
	}
	for key, parallel := range g.pools {
		sort.Slice(parallel, func(i, j int) bool {
			if parallel[i].Venue != parallel[j].Venue {
				return parallel[i].Venue < parallel[j].Venue
			}
			return bytes.Compare(parallel[i].Address.Bytes(), parallel[j].Address.Bytes()) < 0
		})
		g.pools[key] = parallel
	}

	return g
}

func (g *Graph) addToken(t types.Token) {
	existing, ok := g.tokens[t.Key()]
	if !ok || (!existing.HasPrice() && t.HasPrice()) {
		g.tokens[t.Key()] = t
	}
}

func (g *Graph) addEdge(from, to types.Token, pool types.LiquidityPool) {
	key := edgeKey{from: from.Key(), to: to.Key()}
	if _, ok := g.pools[key]; !ok {
		g.adj[from.Key()] = append(g.adj[from.Key()], to.Key())
	}
	g.pools[key] = append(g.pools[key], pool)
}

// Len returns the number of indexed tokens
func (g *Graph) Len() int {
	return len(g.tokens)
}

func (g *Graph) Token(key types.TokenKey) (types.Token, bool) {
	t, ok := g.tokens[key]
	return t, ok
}

// PoolsBetween returns the pools trading from -> to
func (g *Graph) PoolsBetween(from, to types.Token) []types.LiquidityPool {
	return g.pools[edgeKey{from: from.Key(), to: to.Key()}]
}

// BestPool quotes amountIn through every pool on the edge and returns the one
// with the largest output. Pools in exclude are skipped.
func (g *Graph) BestPool(from, to types.Token, amountIn *big.Int, exclude map[common.Address]bool) (types.LiquidityPool, *big.Int, bool) {
	var (
		best    types.LiquidityPool
		bestOut *big.Int
	)
	for _, pool := range g.PoolsBetween(from, to) {
		if exclude[pool.Address] {
			continue
		}
		reserveIn, reserveOut, ok := pool.Reserves(from)
		if !ok {
			continue
		}
		out := math.GetAmountOut(amountIn, reserveIn, reserveOut, pool.FeeBps)
		if out.Sign() <= 0 {
			continue
		}
		if bestOut == nil || out.Cmp(bestOut) > 0 {
			best, bestOut = pool, out
		}
	}
	return best, bestOut, bestOut != nil
}

// Paths enumerates simple token paths from -> to with at most maxHops edges.
// Interior tokens must satisfy allow (nil allows all) and never equal the
// endpoints.
func (g *Graph) Paths(ctx context.Context, from, to types.Token, maxHops int, allow func(types.Token) bool) ([][]types.Token, error) {
	s := &search{
		graph:       g,
		ctx:         ctx,
		target:      to.Key(),
		targetToken: to,
		maxHops:     maxHops,
		allow:       allow,
		visited:     map[types.TokenKey]bool{from.Key(): true},
	}
	if err := s.walk([]types.Token{from}); err != nil {
		return nil, err
	}
	return s.found, nil
}

// Cycles enumerates simple cycles start -> ... -> start with between minLen
// and maxLen edges
func (g *Graph) Cycles(ctx context.Context, start types.Token, minLen, maxLen int, allow func(types.Token) bool) ([][]types.Token, error) {
	s := &search{
		graph:       g,
		ctx:         ctx,
		target:      start.Key(),
		targetToken: start,
		maxHops:     maxLen,
		minHops:     minLen,
		allow:       allow,
		visited:     map[types.TokenKey]bool{},
	}
	if err := s.walk([]types.Token{start}); err != nil {
		return nil, err
	}
	return s.found, nil
}

type search struct {
	graph       *Graph
	ctx         context.Context
	target      types.TokenKey
	targetToken types.Token
	maxHops     int
	minHops     int
	allow       func(types.Token) bool
	visited     map[types.TokenKey]bool
	found       [][]types.Token
}

func (s *search) full() bool {
	return s.graph.MaxPaths > 0 && len(s.found) >= s.graph.MaxPaths
}

func (s *search) walk(path []types.Token) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}

	hops := len(path) - 1
	if hops >= s.maxHops || s.full() {
		return nil
	}

	current := path[len(path)-1]
	for _, next := range s.graph.adj[current.Key()] {
		if next == s.target {
			if hops+1 >= s.minHops {
				found := make([]types.Token, len(path)+1)
				copy(found, path)
				found[len(path)] = s.targetToken
				s.found = append(s.found, found)
				if s.full() {
					return nil
				}
			}
			continue
		}

		if s.visited[next] || next == path[0].Key() {
			continue
		}
		token := s.graph.tokens[next]
		if s.allow != nil && !s.allow(token) {
			continue
		}

		s.visited[next] = true
		err := s.walk(append(path, token))
		delete(s.visited, next)
		if err != nil {
			return err
		}
		if s.full() {
			return nil
		}
	}
	return nil
}
