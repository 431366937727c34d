// Package services implements domain business logic and use cases.
package services

import (
	"context"
	"path/filepath"
	"time"

	"github.com/ochairo/vulnscan/internal/domain/entities"
	"github.com/ochairo/vulnscan/internal/domain/interfaces/gateways"
	"github.com/ochairo/vulnscan/internal/domain/interfaces/services"
)

// identityExtractor builds artifact descriptors from files on disk
type identityExtractor struct {
	digester  gateways.ContentDigester
	manifests gateways.ManifestReader
	algorithm string
	now       func() time.Time
}

// NewIdentityExtractor creates an extractor that hashes with algorithm
// and reads manifests through manifests (nil disables metadata)
func NewIdentityExtractor(digester gateways.ContentDigester, manifests gateways.ManifestReader, algorithm string) services.IdentityExtractor {
	return &identityExtractor{
		digester:  digester,
		manifests: manifests,
		algorithm: algorithm,
		now:       time.Now,
	}
}

// Extract derives the id and metadata for the file at path.
// All failures are reported as *entities.IdentityExtractionError.
func (e *identityExtractor) Extract(_ context.Context, path string) (*entities.ArtifactDescriptor, error) {
	name := filepath.Base(path)

	digest, err := e.digester.Digest(path, e.algorithm)
	if err != nil {
		return nil, &entities.IdentityExtractionError{Path: path, Err: err}
	}

	artifact := &entities.ArtifactDescriptor{
		ID:            name + digest,
		CanonicalName: name,
		Path:          path,
		DiscoveredAt:  e.now(),
	}

	if e.manifests != nil {
		title, version, ok, err := e.manifests.ReadManifest(path)
		if err != nil {
			return nil, &entities.IdentityExtractionError{Path: path, Err: err}
		}
		if ok {
			artifact.Metadata = entities.NewArtifactMetadata(name, title, version)
		}
	}

	return artifact, nil
}
