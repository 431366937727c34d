package main

import (
	"errors"
	"fmt"

	"github.com/ochairo/vulnscan/internal/config"
	"github.com/ochairo/vulnscan/internal/domain-adapters/gateways"
	orchestrators "github.com/ochairo/vulnscan/internal/domain-orchestrators"
	"github.com/ochairo/vulnscan/internal/domain/interfaces"
	domaingateways "github.com/ochairo/vulnscan/internal/domain/interfaces/gateways"
	"github.com/ochairo/vulnscan/internal/domain/services"
	"github.com/ochairo/vulnscan/internal/external-adapters/sqlstore"
)

// stack holds every layer of a configured scanner
type stack struct {
	database     domaingateways.VulnerabilityDatabase
	store        *sqlstore.DB
	cacheStore   *sqlstore.DB
	orchestrator *orchestrators.ScanOrchestrator
}

// openStores opens the vulnerability store and the result cache. Both views
// share one connection when they point at the same database.
func openStores(cfg *config.Config) (vulnDB, cacheDB *sqlstore.DB, err error) {
	vulnDB, err = sqlstore.Open(sqlstore.StoreConfig{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN})
	if err != nil {
		return nil, nil, fmt.Errorf("vulnerability database: %w", err)
	}

	if cfg.Cache.Driver == cfg.Database.Driver && cfg.Cache.DSN == cfg.Database.DSN {
		return vulnDB, vulnDB, nil
	}

	cacheDB, err = sqlstore.Open(sqlstore.StoreConfig{Driver: cfg.Cache.Driver, DSN: cfg.Cache.DSN})
	if err != nil {
		//nolint:errcheck // Close on failed setup
		vulnDB.Close()
		return nil, nil, fmt.Errorf("result cache: %w", err)
	}
	return vulnDB, cacheDB, nil
}

// newVulnerabilityDatabase composes the local store with the update feed
func newVulnerabilityDatabase(cfg *config.Config, store *sqlstore.DB, logger interfaces.Logger) (domaingateways.VulnerabilityDatabase, error) {
	var opts []gateways.UpdateFeedOption
	if len(cfg.Database.SigningKeys) > 0 {
		verifier, err := gateways.NewGPGVerifier(cfg.Database.SigningKeys...)
		if err != nil {
			return nil, err
		}
		logger.Debug("Update signatures required", interfaces.F("keys", verifier.KeyringSize()))
		opts = append(opts, gateways.WithSignatureVerifier(verifier))
	}

	feed := gateways.NewUpdateFeedGateway(cfg.Database.BaseURL, cfg.Database.EntryPoint, opts...)
	return gateways.NewVulnerabilityDatabaseWithDeps(
		store.VulnerabilityStore(),
		feed,
		logger,
		cfg.Database.LookupTimeout,
		nil,
	), nil
}

// buildStack wires the scanner from the inside out:
// adapters, then services, then the orchestrator
func buildStack(cfg *config.Config, logger interfaces.Logger) (*stack, error) {
	if err := gateways.ValidateAlgorithm(cfg.Identity.Algorithm); err != nil {
		return nil, fmt.Errorf("invalid identity.algorithm: %w", err)
	}

	vulnDB, cacheDB, err := openStores(cfg)
	if err != nil {
		return nil, err
	}
	s := &stack{store: vulnDB, cacheStore: cacheDB}

	s.database, err = newVulnerabilityDatabase(cfg, vulnDB, logger)
	if err != nil {
		//nolint:errcheck // Close on failed setup
		s.Close()
		return nil, err
	}

	inspector := gateways.NewJarInspector()
	identity := services.NewIdentityExtractor(gateways.NewContentDigester(), inspector, cfg.Identity.Algorithm)
	unit := services.NewScanUnit(s.database, inspector)
	updater := services.NewDatabaseUpdater(s.database, logger, nil)

	s.orchestrator = orchestrators.NewScanOrchestrator(
		identity,
		unit,
		updater,
		cacheDB.ResultCache(),
		logger,
		orchestrators.WithWorkers(cfg.Scan.Workers),
		orchestrators.WithPrintCheckedFiles(cfg.Scan.PrintCheckedFiles),
	)
	return s, nil
}

// Close closes every open store
func (s *stack) Close() error {
	var errs []error
	if s.cacheStore != nil && s.cacheStore != s.store {
		errs = append(errs, s.cacheStore.Close())
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	return errors.Join(errs...)
}
