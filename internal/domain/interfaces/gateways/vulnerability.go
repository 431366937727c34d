// Package gateways defines interfaces for external service adapters.
package gateways

import (
	"context"
	"time"

	"github.com/ochairo/vulnscan/internal/domain/entities"
)

// VulnerabilityDatabase is the lookup client the scan core queries.
// A lookup that finds nothing returns an empty slice and no error; errors are
// reserved for I/O and protocol failures.
type VulnerabilityDatabase interface {
	// LookupByFingerprint returns the vulnerabilities matching a content fingerprint
	LookupByFingerprint(ctx context.Context, record entities.FingerprintRecord) ([]string, error)

	// LookupByMetadata returns the vulnerabilities matching a title/name/version tuple
	LookupByMetadata(ctx context.Context, query entities.MetadataQuery) ([]string, error)

	// LastSynchronized returns when the database was last updated (zero if never)
	LastSynchronized(ctx context.Context) (time.Time, error)

	// Synchronize pulls updates from the upstream service
	Synchronize(ctx context.Context) error
}

// FingerprintExtractor produces fingerprint records for an artifact's content
type FingerprintExtractor interface {
	Fingerprints(ctx context.Context, path string) ([]entities.FingerprintRecord, error)
}

// ManifestReader reads library metadata embedded in an artifact.
// ok is false when the artifact is not a library or has no manifest.
type ManifestReader interface {
	ReadManifest(path string) (title, version string, ok bool, err error)
}

// ContentDigester streams a file through a named digest algorithm
type ContentDigester interface {
	Digest(path, algorithm string) (string, error)
}

// UpdateFeed fetches vulnerability records published upstream since a point in time
type UpdateFeed interface {
	Fetch(ctx context.Context, since time.Time) ([]entities.VulnerabilityRecord, error)
}
