package commands

import (
	"github.com/spf13/cobra"

	"github.com/Wa4h1h/go-bootserver/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}

		out, err := cfg.YAML()
		if err != nil {
			return err
		}

		cmd.Print(out)

		return nil
	},
}
