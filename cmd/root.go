package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/swaprouter/config"
	"github.com/michaelpento.lv/swaprouter/utils"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "swaprouter",
	Short: "Rank swap routes across DEX venues",
	Long: `swaprouter builds direct, multi-hop, split, cross-chain and arbitrage
routes for a swap from venue quotes and pool reserves, scores them and
returns the best viable candidates.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.swaprouter.json)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig reads the config and initializes the global logger, writing to
// the configured log file as well as stdout
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, nil, err
	}

	var paths []string
	if cfg.LogFile != "" {
		paths = append(paths, cfg.LogFile)
	}
	log := utils.InitLogger(debug || cfg.Debug, paths...)
	cfg.Logger = log
	return cfg, log, nil
}
