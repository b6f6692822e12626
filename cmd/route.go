package cmd

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/swaprouter/cmd/server"
	"github.com/michaelpento.lv/swaprouter/dex"
	"github.com/michaelpento.lv/swaprouter/routing"
	"github.com/michaelpento.lv/swaprouter/types"
	"github.com/michaelpento.lv/swaprouter/utils/metrics"
)

var (
	requestFile string
	onchain     bool
	showMetrics bool
)

// routeFile is a routing request plus an optional pool snapshot
type routeFile struct {
	routing.Request
	Pools []types.LiquidityPool `json:"pools,omitempty"`
}

type routeOutput struct {
	Routes  []*types.Route           `json:"routes"`
	Stats   metrics.PerformanceStats `json:"stats"`
	Metrics map[string]float64       `json:"metrics,omitempty"`
}

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Rank routes for a request file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		data, err := os.ReadFile(requestFile)
		if err != nil {
			return fmt.Errorf("failed to read request: %w", err)
		}
		var file routeFile
		if err := json.Unmarshal(data, &file); err != nil {
			return fmt.Errorf("failed to decode request %s: %w", requestFile, err)
		}

		ctx := cmd.Context()

		var chain *server.Chain
		if onchain {
			chain, err = server.Connect(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer chain.Close()

			if file.Conditions == nil {
				conditions, err := chain.Estimator.Conditions(ctx)
				if err != nil {
					log.Warn("Routing without market conditions", zap.Error(err))
				} else {
					file.Conditions = conditions
				}
			}
		}

		var extra []dex.PoolSource
		if len(file.Pools) > 0 {
			extra = append(extra, dex.NewStaticPoolSource("request", file.Pools...))
		}

		srv, err := server.New(cfg, chain, "", log, extra...)
		if err != nil {
			return err
		}
		engine := srv.Engine()
		defer engine.Close()

		routes, err := engine.Route(ctx, &file.Request)
		if err != nil {
			return fmt.Errorf("routing failed: %w", err)
		}
		if routes == nil {
			routes = []*types.Route{}
		}

		out := routeOutput{
			Routes: routes,
			Stats:  engine.GetPerformanceStats(),
		}
		if showMetrics {
			summary, err := metrics.Summarize(srv.Registry())
			if err != nil {
				return err
			}
			out.Metrics = summary
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	rootCmd.AddCommand(routeCmd)
	routeCmd.Flags().StringVar(&requestFile, "request", "", "JSON request file with tokens, amount, quotes and optional pools")
	routeCmd.Flags().BoolVar(&onchain, "onchain", false, "load configured pairs and gas data from the RPC endpoint")
	routeCmd.Flags().BoolVar(&showMetrics, "metrics", false, "include a metrics summary in the output")
	_ = routeCmd.MarkFlagRequired("request")
}
