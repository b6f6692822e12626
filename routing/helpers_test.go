package routing

import (
	"context"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/michaelpento.lv/swaprouter/config"
	"github.com/michaelpento.lv/swaprouter/dex"
	"github.com/michaelpento.lv/swaprouter/types"
	"github.com/michaelpento.lv/swaprouter/utils/testutils"
)

var fixedNow = time.Unix(1700000000, 0)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Venues["A"] = config.VenueConfig{MEVRisk: "low", DefaultLiquidityUSD: 2000000}
	cfg.Venues["B"] = config.VenueConfig{MEVRisk: "low", DefaultLiquidityUSD: 2000000}
	cfg.Venues["C"] = config.VenueConfig{MEVRisk: "medium", DefaultLiquidityUSD: 2000000}
	cfg.Venues["H"] = config.VenueConfig{MEVRisk: "high", DefaultLiquidityUSD: 2000000}
	return cfg
}

func testPools() []types.LiquidityPool {
	return []types.LiquidityPool{
		testutils.CreateMockPool("uniswap-v2", testutils.WETH, testutils.USDC, 1000, 2000000, types.MEVRiskHigh),
		testutils.CreateMockPool("sushiswap", testutils.WETH, testutils.USDC, 500, 1010000, types.MEVRiskHigh),
		testutils.CreateMockPool("uniswap-v2", testutils.WETH, testutils.DAI, 1000, 2000000, types.MEVRiskHigh),
		testutils.CreateMockPool("curve", testutils.DAI, testutils.USDC, 5000000, 5000000, types.MEVRiskLow),
		testutils.CreateMockPool("uniswap-v2", testutils.WBTC, testutils.WETH, 100, 2000, types.MEVRiskHigh),
		testutils.CreateMockPool("uniswap-v2", testutils.WBTC, testutils.USDC, 100, 4000000, types.MEVRiskHigh),
	}
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{
		WithLogger(zaptest.NewLogger(t)),
		WithClock(func() time.Time { return fixedNow }),
	}, opts...)
	e, err := NewEngine(testConfig(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

// twoQuotes is the WETH -> USDC scenario with venue A strictly better
func twoQuotes() []types.Quote {
	amountIn := testutils.Units(1, 18)
	a := testutils.CreateMockQuote("A", amountIn, testutils.Units(3000, 6))
	a.Slippage = 0.1
	a.Confidence = 95
	a.GasEstimate = 150000

	b := testutils.CreateMockQuote("B", amountIn, testutils.Units(2995, 6))
	b.Slippage = 0.5
	b.Confidence = 90
	b.GasEstimate = 180000
	return []types.Quote{a, b}
}

func testSnapshot(cfg *config.Config, req *Request, pools []types.LiquidityPool) *snapshot {
	intermediates := make(map[uint64][]types.Token)
	for chainID, tokens := range cfg.IntermediateTokens {
		for _, t := range tokens {
			intermediates[chainID] = append(intermediates[chainID], t.Token(chainID))
		}
	}
	return newSnapshot(req, cfg.Routing, cfg.Venues, intermediates, cfg.Bridge, pools)
}

func staticPools(pools ...types.LiquidityPool) dex.PoolSource {
	return dex.NewStaticPoolSource("test", pools...)
}

// countingGenerator records how often the wrapped generator runs
type countingGenerator struct {
	generator
	calls atomic.Int32
}

func (c *countingGenerator) generate(ctx context.Context, s *snapshot) ([]*types.Route, error) {
	c.calls.Add(1)
	return c.generator.generate(ctx, s)
}

func usd(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func sumAmounts(amounts []*big.Int) *big.Int {
	total := new(big.Int)
	for _, a := range amounts {
		total.Add(total, a)
	}
	return total
}
