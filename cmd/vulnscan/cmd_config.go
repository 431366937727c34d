package main

import (
	"fmt"

	"github.com/spf13/cobra"

	yamladapter "github.com/ochairo/vulnscan/internal/external-adapters/yaml"
)

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration after applying defaults, the config file,
VULNSCAN_* environment variables and flags.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			if cfg.File != "" {
				fmt.Fprintf(a.out, "# %s\n", cfg.File)
			}
			if err := cfg.Policy.Validate(); err != nil {
				fmt.Fprintf(a.out, "# invalid policy: %v\n", err)
			}
			return yamladapter.Marshal(a.out, cfg)
		},
	}
}
