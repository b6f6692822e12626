package cmd

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/swaprouter/cmd/server"
)

var (
	listenAddr     string
	nativePriceUSD float64
	volatility     float64
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve routing requests over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		// main cancels the command context on SIGINT and SIGTERM
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		chain, err := server.Connect(ctx, cfg, log)
		if err != nil {
			log.Warn("Running without chain data", zap.Error(err))
		} else {
			defer chain.Close()
			chain.Estimator.SetMarket(volatility, decimal.NewFromFloat(nativePriceUSD))
		}

		srv, err := server.New(cfg, chain, listenAddr, log)
		if err != nil {
			return err
		}
		if err := srv.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()
		log.Info("Shutting down gracefully...")
		return srv.Stop()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&listenAddr, "listen", ":8080", "HTTP listen address")
	serveCmd.Flags().Float64Var(&nativePriceUSD, "native-price", 0, "native token USD price used for gas costs")
	serveCmd.Flags().Float64Var(&volatility, "volatility", 0, "market volatility fraction applied to requests without conditions")
}
