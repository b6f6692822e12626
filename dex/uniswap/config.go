package uniswap

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/michaelpento.lv/swaprouter/config"
	"github.com/michaelpento.lv/swaprouter/types"
)

// PairsFromConfig resolves the configured pairs against their venues'
// factory deployments
func PairsFromConfig(cfg *config.Config) ([]PairSpec, error) {
	specs := make([]PairSpec, 0, len(cfg.Pairs))
	for i, pair := range cfg.Pairs {
		venue, ok := cfg.Venues[pair.Venue]
		if !ok {
			return nil, fmt.Errorf("pair %d: unknown venue %s", i, pair.Venue)
		}
		if !common.IsHexAddress(venue.Factory) {
			return nil, fmt.Errorf("pair %d: venue %s has no factory", i, pair.Venue)
		}
		initCode := common.FromHex(venue.InitCodeHash)
		if len(initCode) != 32 {
			return nil, fmt.Errorf("pair %d: venue %s has invalid init code hash", i, pair.Venue)
		}

		specs = append(specs, PairSpec{
			Deployment: Deployment{
				Venue:        pair.Venue,
				ChainID:      cfg.ChainID,
				Factory:      common.HexToAddress(venue.Factory),
				InitCodeHash: initCode,
				FeeBps:       venue.FeeBps,
				GasEstimate:  venue.GasEstimate,
				MEVRisk:      types.MEVRisk(venue.MEVRisk),
			},
			TokenA: pair.Token0.Token(cfg.ChainID),
			TokenB: pair.Token1.Token(cfg.ChainID),
		})
	}
	return specs, nil
}
