// Package services defines interfaces for domain service contracts.
package services

import (
	"context"

	"github.com/ochairo/vulnscan/internal/domain/entities"
)

// IdentityExtractor derives a stable identity and descriptor for an artifact
type IdentityExtractor interface {
	Extract(ctx context.Context, path string) (*entities.ArtifactDescriptor, error)
}

// ScanUnit checks a single artifact against the vulnerability database.
// A vulnerable artifact is reported through the result, not as an error.
type ScanUnit interface {
	Scan(ctx context.Context, artifact *entities.ArtifactDescriptor, policy entities.Policy) (entities.ScanResult, error)
}

// DatabaseUpdater applies the update schedule before a scan
type DatabaseUpdater interface {
	Update(ctx context.Context, schedule entities.UpdateSchedule) error
}
