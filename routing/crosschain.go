package routing

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"github.com/michaelpento.lv/swaprouter/types"
	"github.com/michaelpento.lv/swaprouter/utils/math"
)

// Bridge model. These stand in for real bridge quotes.
const (
	bridgeFeeBps     = 20
	bridgeTime       = 300 * time.Second
	bridgeGas        = 250000
	bridgeSlippage   = 0.5
	bridgeConfidence = 85.0
)

// generateCrossChain emits a single bridge hop when the tokens live on
// different chains
func generateCrossChain(ctx context.Context, s *snapshot) ([]*types.Route, error) {
	req := s.req
	if req.TokenIn.ChainID == req.TokenOut.ChainID {
		return nil, nil
	}

	valueIn := math.USDValue(req.AmountIn, req.TokenIn.Decimals, req.TokenIn.PriceUSD)
	fee := valueIn.Mul(decimal.NewFromInt(bridgeFeeBps)).Div(decimal.NewFromInt(math.BpsDenominator))
	out := bridgeOutput(req, valueIn.Sub(fee))
	if out.Sign() <= 0 {
		return nil, nil
	}

	protocol := s.bridge.Protocol
	if protocol == "" {
		protocol = "bridge"
	}

	step := types.RouteStep{
		Venue:          protocol,
		TokenIn:        req.TokenIn,
		TokenOut:       req.TokenOut,
		AmountIn:       new(big.Int).Set(req.AmountIn),
		AmountOut:      out,
		MinAmountOut:   math.MinAmountOut(out, bridgeSlippage),
		Fee:            fee,
		Slippage:       bridgeSlippage,
		GasEstimate:    bridgeGas,
		LiquidityUSD:   decimal.NewFromFloat(s.bridge.LiquidityUSD),
		ExecutionOrder: 1,
		ExecutionTime:  bridgeTime,
		MEVRisk:        types.MEVRiskLow,
	}

	id := fmt.Sprintf("%s:%s:%d>%d", types.StrategyCrossChain, protocol, req.TokenIn.ChainID, req.TokenOut.ChainID)
	route := newRoute(types.StrategyCrossChain, id, req, []types.RouteStep{step}, bridgeConfidence)
	route.MEVProtection = true
	route.CrossChain = &types.CrossChainInfo{
		Protocol:    protocol,
		SourceChain: req.TokenIn.ChainID,
		DestChain:   req.TokenOut.ChainID,
		FeeBps:      bridgeFeeBps,
	}
	return []*types.Route{route}, nil
}

// bridgeOutput converts the post-fee input value into the destination token.
// Without both prices the amount is carried 1:1 across decimals.
func bridgeOutput(req *Request, valueAfterFee decimal.Decimal) *big.Int {
	if req.TokenIn.HasPrice() && req.TokenOut.HasPrice() {
		units := valueAfterFee.Div(req.TokenOut.PriceUSD)
		return math.FromDecimal(units, req.TokenOut.Decimals)
	}
	afterFee := math.ApplyBps(req.AmountIn, bridgeFeeBps)
	return math.ConvertDecimals(afterFee, req.TokenIn.Decimals, req.TokenOut.Decimals)
}
