package gas

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/swaprouter/types"
)

// HopGas approximates one DEX hop: storage reads (~2000), token
// transfers (~50000) and swap execution (~100000)
const HopGas = uint64(152000)

var (
	gwei          = decimal.New(1, 9)
	nativePerGwei = decimal.New(1, -9)
)

// ChainReader is the subset of ethclient.Client the estimator needs
type ChainReader interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
}

// ConditionsProvider supplies market snapshots to the router
type ConditionsProvider interface {
	Conditions(ctx context.Context) (*types.MarketConditions, error)
}

// Estimator tracks gas price and block congestion
type Estimator struct {
	client         ChainReader
	logger         *zap.Logger
	baseFee        *big.Int
	priorityFee    *big.Int
	congestion     float64
	volatility     float64
	nativePriceUSD decimal.Decimal
	updated        time.Time
	mu             sync.RWMutex
}

// NewEstimator creates a new gas estimator
func NewEstimator(client ChainReader, logger *zap.Logger) *Estimator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Estimator{
		client:      client,
		logger:      logger,
		baseFee:     new(big.Int),
		priorityFee: new(big.Int),
	}
}

// SetMarket sets the values the chain cannot tell: price volatility and the
// native token's USD price
func (e *Estimator) SetMarket(volatility float64, nativePriceUSD decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volatility = volatility
	e.nativePriceUSD = nativePriceUSD
}

// Start refreshes gas data every interval until ctx is done
func (e *Estimator) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.Update(ctx); err != nil {
				e.logger.Error("Failed to update gas prices", zap.Error(err))
			}
		}
	}
}

// Update fetches latest gas prices and block utilisation
func (e *Estimator) Update(ctx context.Context) error {
	header, err := e.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to get latest block: %w", err)
	}

	priorityFee, err := e.client.SuggestGasTipCap(ctx)
	if err != nil {
		return fmt.Errorf("failed to get priority fee: %w", err)
	}

	baseFee := new(big.Int)
	if header.BaseFee != nil {
		baseFee.Set(header.BaseFee)
	}

	var congestion float64
	if header.GasLimit > 0 {
		congestion = float64(header.GasUsed) / float64(header.GasLimit)
	}

	e.mu.Lock()
	e.baseFee = baseFee
	e.priorityFee = new(big.Int).Set(priorityFee)
	e.congestion = congestion
	e.updated = time.Now()
	e.mu.Unlock()

	e.logger.Debug("Gas data updated",
		zap.String("baseFee", baseFee.String()),
		zap.String("priorityFee", priorityFee.String()),
		zap.Float64("congestion", congestion))

	return nil
}

// GasPrice returns base fee plus priority fee in wei
func (e *Estimator) GasPrice() *big.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return new(big.Int).Add(e.baseFee, e.priorityFee)
}

// CostUSD prices gasUnits under the given conditions. ok is false when the
// conditions carry no gas price or no native token price.
func CostUSD(gasUnits uint64, conditions *types.MarketConditions) (cost decimal.Decimal, ok bool) {
	if conditions == nil || conditions.GasPriceGwei <= 0 || !conditions.NativePriceUSD.IsPositive() {
		return decimal.Zero, false
	}
	return decimal.NewFromBigInt(new(big.Int).SetUint64(gasUnits), 0).
		Mul(decimal.NewFromFloat(conditions.GasPriceGwei)).
		Mul(nativePerGwei).
		Mul(conditions.NativePriceUSD), true
}

// Conditions returns the current market snapshot, fetching gas data first
// if it was never loaded
func (e *Estimator) Conditions(ctx context.Context) (*types.MarketConditions, error) {
	e.mu.RLock()
	loaded := !e.updated.IsZero()
	e.mu.RUnlock()

	if !loaded {
		if err := e.Update(ctx); err != nil {
			return nil, err
		}
	}

	gasPrice, _ := decimal.NewFromBigInt(e.GasPrice(), 0).Div(gwei).Float64()

	e.mu.RLock()
	defer e.mu.RUnlock()
	return &types.MarketConditions{
		Volatility:     e.volatility,
		GasPriceGwei:   gasPrice,
		Congestion:     e.congestion,
		NativePriceUSD: e.nativePriceUSD,
		Timestamp:      e.updated,
	}, nil
}
