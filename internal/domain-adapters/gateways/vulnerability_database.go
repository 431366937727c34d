package gateways

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ochairo/vulnscan/internal/domain/entities"
	"github.com/ochairo/vulnscan/internal/domain/interfaces"
	"github.com/ochairo/vulnscan/internal/domain/interfaces/gateways"
	"github.com/ochairo/vulnscan/internal/domain/interfaces/repositories"
)

// DefaultLookupTimeout bounds a single lookup against the local store
const DefaultLookupTimeout = 30 * time.Second

// vulnerabilityDatabase implements the VulnerabilityDatabase interface by
// composing the local record store with the upstream update feed
type vulnerabilityDatabase struct {
	store   repositories.VulnerabilityStore
	feed    gateways.UpdateFeed
	logger  interfaces.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewVulnerabilityDatabase creates a database over store, synchronized from feed.
// feed may be nil when the database is only used offline.
func NewVulnerabilityDatabase(store repositories.VulnerabilityStore, feed gateways.UpdateFeed, logger interfaces.Logger) gateways.VulnerabilityDatabase {
	return NewVulnerabilityDatabaseWithDeps(store, feed, logger, DefaultLookupTimeout, time.Now)
}

// NewVulnerabilityDatabaseWithDeps creates a database with a custom lookup timeout and clock
func NewVulnerabilityDatabaseWithDeps(
	store repositories.VulnerabilityStore,
	feed gateways.UpdateFeed,
	logger interfaces.Logger,
	timeout time.Duration,
	now func() time.Time,
) gateways.VulnerabilityDatabase {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	if now == nil {
		now = time.Now
	}
	return &vulnerabilityDatabase{
		store:   store,
		feed:    feed,
		logger:  logger,
		timeout: timeout,
		now:     now,
	}
}

// LookupByFingerprint matches the combined hash of a fingerprint record
func (d *vulnerabilityDatabase) LookupByFingerprint(ctx context.Context, record entities.FingerprintRecord) ([]string, error) {
	if record.Hash == "" {
		return []string{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	ids, err := d.store.MatchHash(ctx, strings.ToLower(record.Hash))
	if err != nil {
		return nil, fmt.Errorf("fingerprint lookup for %s failed: %w", record.Filename, err)
	}
	return entities.NormalizeIDs(ids), nil
}

// LookupByMetadata matches a library by name or title and version.
// A query without a version never matches.
func (d *vulnerabilityDatabase) LookupByMetadata(ctx context.Context, query entities.MetadataQuery) ([]string, error) {
	if query.Version == "" || (query.ArtifactName == "" && query.Title == "") {
		return []string{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	ids, err := d.store.MatchMetadata(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("metadata lookup for %s %s failed: %w", query.ArtifactName, query.Version, err)
	}
	return entities.NormalizeIDs(ids), nil
}

// LastSynchronized returns when the local store was last updated
func (d *vulnerabilityDatabase) LastSynchronized(ctx context.Context) (time.Time, error) {
	updated, err := d.store.LastUpdated(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read last update time: %w", err)
	}
	return updated, nil
}

// Synchronize fetches every record published since the last update and
// applies them to the local store
func (d *vulnerabilityDatabase) Synchronize(ctx context.Context) error {
	if d.feed == nil {
		return fmt.Errorf("no update feed configured")
	}

	since, err := d.LastSynchronized(ctx)
	if err != nil {
		return err
	}
	started := d.now()

	records, err := d.feed.Fetch(ctx, since)
	if err != nil {
		return err
	}

	if err := d.store.ApplyUpdate(ctx, records, started); err != nil {
		return fmt.Errorf("failed to apply update: %w", err)
	}

	d.logger.Info("Database synchronized",
		interfaces.F("records", len(records)),
		interfaces.F("since", since.Format(time.RFC3339)),
	)
	return nil
}
