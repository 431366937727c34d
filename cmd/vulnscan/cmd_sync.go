package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ochairo/vulnscan/internal/domain/interfaces"
	"github.com/ochairo/vulnscan/internal/external-adapters/sqlstore"
	yamladapter "github.com/ochairo/vulnscan/internal/external-adapters/yaml"
)

func newSyncCmd(a *app) *cobra.Command {
	var importFile string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize the local vulnerability database",
		Long: `Pull every record published since the last synchronization from the
update service, regardless of the configured update schedule.

With --import, records are read from a YAML or JSON file instead, which
allows seeding the database on hosts without network access.`,
		Example: `  vulnscan sync
  vulnscan sync --import records.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			logger, err := a.newLogger(cfg)
			if err != nil {
				return err
			}
			//nolint:errcheck // Defer close on log file
			defer logger.Close()

			store, err := sqlstore.Open(sqlstore.StoreConfig{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN})
			if err != nil {
				return fmt.Errorf("vulnerability database: %w", err)
			}
			//nolint:errcheck // Defer close on store
			defer store.Close()

			ctx := cmd.Context()
			records := store.VulnerabilityStore()

			if importFile != "" {
				parsed, err := yamladapter.NewRecordParser().ParseFile(importFile)
				if err != nil {
					return err
				}
				if err := records.ApplyUpdate(ctx, parsed, time.Now()); err != nil {
					return fmt.Errorf("failed to import records: %w", err)
				}
				logger.Info("Records imported", interfaces.F("file", importFile), interfaces.F("records", len(parsed)))
			} else {
				database, err := newVulnerabilityDatabase(cfg, store, logger)
				if err != nil {
					return err
				}
				if err := database.Synchronize(ctx); err != nil {
					return fmt.Errorf("synchronization failed: %w", err)
				}
			}

			count, err := records.Count(ctx)
			if err != nil {
				return err
			}
			updated, err := records.LastUpdated(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%d records, last updated %s\n", count, updated.Local().Format(time.RFC1123))
			return nil
		},
	}

	cmd.Flags().StringVar(&importFile, "import", "", "Import records from a YAML or JSON file instead of the update service")
	return cmd
}
