package services

import (
	"context"
	"fmt"

	"github.com/ochairo/vulnscan/internal/domain/entities"
	"github.com/ochairo/vulnscan/internal/domain/interfaces/gateways"
	"github.com/ochairo/vulnscan/internal/domain/interfaces/services"
)

// scanUnit checks one artifact against the vulnerability database.
// It only reads its inputs; callers own every write that follows.
type scanUnit struct {
	database     gateways.VulnerabilityDatabase
	fingerprints gateways.FingerprintExtractor
}

// NewScanUnit creates a scan unit backed by database
func NewScanUnit(database gateways.VulnerabilityDatabase, fingerprints gateways.FingerprintExtractor) services.ScanUnit {
	return &scanUnit{
		database:     database,
		fingerprints: fingerprints,
	}
}

// Scan runs the enabled checks in order (fingerprint, then metadata) and
// stops at the first category that reports vulnerabilities
func (u *scanUnit) Scan(ctx context.Context, artifact *entities.ArtifactDescriptor, policy entities.Policy) (entities.ScanResult, error) {
	result := entities.ScanResult{Artifact: artifact}

	if policy.IsEnabled(entities.CategoryFingerprint) {
		ids, err := u.checkFingerprints(ctx, artifact)
		if err != nil {
			return result, err
		}
		if len(ids) > 0 {
			finding := entities.NewFindingRecord(artifact, entities.CategoryFingerprint, ids)
			result.Finding = &finding
			return result, nil
		}
	}

	if policy.IsEnabled(entities.CategoryMetadata) {
		ids, err := u.database.LookupByMetadata(ctx, artifact.MetadataQuery())
		if err != nil {
			return result, asLookupError("metadata", err)
		}
		if len(ids) > 0 {
			finding := entities.NewFindingRecord(artifact, entities.CategoryMetadata, ids)
			result.Finding = &finding
		}
	}

	return result, nil
}

func (u *scanUnit) checkFingerprints(ctx context.Context, artifact *entities.ArtifactDescriptor) ([]string, error) {
	records, err := u.fingerprints.Fingerprints(ctx, artifact.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint %s: %w", artifact.CanonicalName, err)
	}

	var ids []string
	for _, record := range records {
		found, err := u.database.LookupByFingerprint(ctx, record)
		if err != nil {
			return nil, asLookupError("fingerprint", err)
		}
		ids = append(ids, found...)
	}
	return entities.NormalizeIDs(ids), nil
}

func asLookupError(op string, err error) error {
	if _, ok := err.(*entities.LookupClientError); ok {
		return err
	}
	return &entities.LookupClientError{Op: op, Err: err}
}
