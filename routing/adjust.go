package routing

import (
	"time"

	"github.com/michaelpento.lv/swaprouter/types"
)

const (
	volatilityThreshold = 0.05
	congestionThreshold = 0.8

	volatileSlippageFactor   = 1.2
	volatileConfidenceFactor = 0.9
	volatileDelay            = 5 * time.Second

	congestedGasFactor  = 1.5
	congestedTimeFactor = 1.3

	lowMEVScoreFactor = 1.1

	mevProtectionDelay    = 10 * time.Second
	mevProtectionSlippage = 0.1
)

// applyMarketConditions perturbs route metrics for the current market. The
// score is not recomputed; only the low-MEV boost touches it.
func applyMarketConditions(r *types.Route, c *types.MarketConditions) {
	if c.Volatility > volatilityThreshold {
		r.TotalSlippage *= volatileSlippageFactor
		r.Confidence *= volatileConfidenceFactor
		r.EstimatedTime += volatileDelay
	}

	if c.Congestion > congestionThreshold {
		r.TotalGasCost = uint64(float64(r.TotalGasCost) * congestedGasFactor)
		r.EstimatedTime = time.Duration(float64(r.EstimatedTime) * congestedTimeFactor)
	}

	if r.Score != nil && r.AllLowMEVRisk() {
		r.Score.Total *= lowMEVScoreFactor
	}
}

// applyMEVProtection charges routes touching a high-risk venue for private
// execution. It is a no-op on routes already charged.
func applyMEVProtection(r *types.Route) bool {
	if r.MEVAnnotated() || !r.HasHighMEVRisk() {
		return false
	}
	r.MEVProtection = true
	r.EstimatedTime += mevProtectionDelay
	r.TotalSlippage += mevProtectionSlippage
	r.MarkMEVAnnotated()
	return true
}
