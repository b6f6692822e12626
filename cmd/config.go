package cmd

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/michaelpento.lv/swaprouter/config"
)

var writeConfig string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Validate and print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		if writeConfig != "" {
			if err := config.SaveConfig(cfg, writeConfig); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Config written to %s\n", writeConfig)
		}

		out, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return err
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.Flags().StringVar(&writeConfig, "write", "", "also save the effective config to this file")
}
