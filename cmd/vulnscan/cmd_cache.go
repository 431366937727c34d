package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ochairo/vulnscan/internal/external-adapters/sqlstore"
)

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the result cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Print the cached vulnerabilities of an artifact id",
		Long: `Print the vulnerabilities recorded for an artifact id (file name followed
by its content digest). A clean artifact prints "clean".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			store, err := sqlstore.Open(sqlstore.StoreConfig{Driver: cfg.Cache.Driver, DSN: cfg.Cache.DSN})
			if err != nil {
				return fmt.Errorf("result cache: %w", err)
			}
			//nolint:errcheck // Defer close on store
			defer store.Close()

			ids, err := store.ResultCache().Get(cmd.Context(), args[0])
			if errors.Is(err, sqlstore.ErrNotFound) {
				return fmt.Errorf("%s has not been scanned", args[0])
			}
			if err != nil {
				return err
			}

			if len(ids) == 0 {
				fmt.Fprintln(a.out, "clean")
				return nil
			}
			fmt.Fprintln(a.out, strings.Join(ids, "\n"))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "count",
		Short: "Print the number of cached results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			store, err := sqlstore.Open(sqlstore.StoreConfig{Driver: cfg.Cache.Driver, DSN: cfg.Cache.DSN})
			if err != nil {
				return fmt.Errorf("result cache: %w", err)
			}
			//nolint:errcheck // Defer close on store
			defer store.Close()

			n, err := store.ResultCache().Count(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, n)
			return nil
		},
	})

	return cmd
}
