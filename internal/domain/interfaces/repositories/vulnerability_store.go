package repositories

import (
	"context"
	"time"

	"github.com/ochairo/vulnscan/internal/domain/entities"
)

// VulnerabilityStore is the local copy of the vulnerability database
type VulnerabilityStore interface {
	// MatchHash returns the ids recorded for a combined fingerprint hash
	MatchHash(ctx context.Context, hash string) ([]string, error)

	// MatchMetadata returns the ids recorded for a library name (or title) and version
	MatchMetadata(ctx context.Context, query entities.MetadataQuery) ([]string, error)

	// LastUpdated returns the time of the last applied update (zero if never)
	LastUpdated(ctx context.Context) (time.Time, error)

	// ApplyUpdate upserts records and sets the last updated time atomically
	ApplyUpdate(ctx context.Context, records []entities.VulnerabilityRecord, updatedAt time.Time) error
}
