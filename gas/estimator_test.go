package gas

import (
	"context"
	"errors"
	"math/big"
	"testing"

	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/michaelpento.lv/swaprouter/types"
)

type fakeChain struct {
	header *ethtypes.Header
	tip    *big.Int
	err    error
	calls  int
}

func (f *fakeChain) HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.header, nil
}

func (f *fakeChain) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return f.tip, nil
}

func TestCostUSD(t *testing.T) {
	priced := &types.MarketConditions{GasPriceGwei: 30, NativePriceUSD: decimal.NewFromInt(2000)}

	tests := []struct {
		name       string
		conditions *types.MarketConditions
		want       string
		ok         bool
	}{
		{"priced", priced, "14.4", true},
		{"no conditions", nil, "0", false},
		{"no gas price", &types.MarketConditions{NativePriceUSD: decimal.NewFromInt(2000)}, "0", false},
		{"no native price", &types.MarketConditions{GasPriceGwei: 30}, "0", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cost, ok := CostUSD(240000, tt.conditions)
			assert.Equal(t, tt.ok, ok)
			assert.True(t, cost.Equal(decimal.RequireFromString(tt.want)), cost.String())
		})
	}
}

func TestEstimatorConditions(t *testing.T) {
	chain := &fakeChain{
		header: &ethtypes.Header{
			Number:   big.NewInt(100),
			GasLimit: 30000000,
			GasUsed:  27000000,
			BaseFee:  big.NewInt(28000000000),
		},
		tip: big.NewInt(2000000000),
	}
	e := NewEstimator(chain, zaptest.NewLogger(t))
	e.SetMarket(0.08, decimal.NewFromInt(2000))

	conditions, err := e.Conditions(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 30.0, conditions.GasPriceGwei, 1e-9)
	assert.InDelta(t, 0.9, conditions.Congestion, 1e-9)
	assert.Equal(t, 0.08, conditions.Volatility)
	assert.True(t, conditions.NativePriceUSD.Equal(decimal.NewFromInt(2000)))
	assert.False(t, conditions.Timestamp.IsZero())

	// cached after the first load
	_, err = e.Conditions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, chain.calls)

	assert.Equal(t, big.NewInt(30000000000), e.GasPrice())
}

func TestEstimatorUpdateError(t *testing.T) {
	e := NewEstimator(&fakeChain{err: errors.New("connection refused")}, nil)
	_, err := e.Conditions(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get latest block")
}
