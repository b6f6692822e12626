package testutils

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/michaelpento.lv/swaprouter/types"
	"github.com/michaelpento.lv/swaprouter/utils/math"
)

// Mainnet tokens with fixed prices
var (
	WETH = types.Token{
		Address:  common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
		Symbol:   "WETH",
		Decimals: 18,
		ChainID:  1,
		PriceUSD: decimal.NewFromInt(2000),
	}
	USDC = types.Token{
		Address:  common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
		Symbol:   "USDC",
		Decimals: 6,
		ChainID:  1,
		PriceUSD: decimal.NewFromInt(1),
	}
	DAI = types.Token{
		Address:  common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"),
		Symbol:   "DAI",
		Decimals: 18,
		ChainID:  1,
		PriceUSD: decimal.NewFromInt(1),
	}
	WBTC = types.Token{
		Address:  common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599"),
		Symbol:   "WBTC",
		Decimals: 8,
		ChainID:  1,
		PriceUSD: decimal.NewFromInt(40000),
	}
	// Polygon USDC, for cross-chain requests
	PolygonUSDC = types.Token{
		Address:  common.HexToAddress("0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"),
		Symbol:   "USDC",
		Decimals: 6,
		ChainID:  137,
		PriceUSD: decimal.NewFromInt(1),
	}
)

// Amount parses a human-readable amount into base units
func Amount(t testing.TB, value string, decimals uint8) *big.Int {
	t.Helper()
	d, err := decimal.NewFromString(value)
	require.NoError(t, err)
	return math.FromDecimal(d, decimals)
}

// Units returns whole token units in base units
func Units(units int64, decimals uint8) *big.Int {
	return math.FromDecimal(decimal.NewFromInt(units), decimals)
}

// CreateMockQuote returns a healthy quote that passes viability on its own
func CreateMockQuote(venue string, amountIn, amountOut *big.Int) types.Quote {
	return types.Quote{
		Venue:         venue,
		AmountIn:      new(big.Int).Set(amountIn),
		AmountOut:     new(big.Int).Set(amountOut),
		Fee:           decimal.NewFromInt(5),
		Slippage:      0.5,
		GasEstimate:   150000,
		ExecutionTime: 15 * time.Second,
		Confidence:    95,
		PriceImpact:   0.1,
		LiquidityUSD:  decimal.NewFromInt(5000000),
	}
}

// CreateMockPool returns a constant-product pool with the given reserves in
// whole token units
func CreateMockPool(venue string, token0, token1 types.Token, units0, units1 int64, mevRisk types.MEVRisk) types.LiquidityPool {
	reserve0 := Units(units0, token0.Decimals)
	reserve1 := Units(units1, token1.Decimals)

	liquidity := math.USDValue(reserve0, token0.Decimals, token0.PriceUSD).
		Add(math.USDValue(reserve1, token1.Decimals, token1.PriceUSD))

	seed := append([]byte(venue), token0.Address.Bytes()[:4]...)
	addr := common.BytesToAddress(append(seed, token1.Address.Bytes()[:4]...))

	return types.LiquidityPool{
		Venue:        venue,
		Address:      addr,
		ChainID:      token0.ChainID,
		Token0:       token0,
		Token1:       token1,
		Reserve0:     reserve0,
		Reserve1:     reserve1,
		FeeBps:       30,
		LiquidityUSD: liquidity,
		GasEstimate:  120000,
		MEVRisk:      mevRisk,
		Confidence:   90,
	}
}
