// Package entities defines core domain models and data structures.
package entities

import (
	"strings"
	"time"
	"unicode"
)

// ArtifactDescriptor represents one scannable file.
// It is created once per scan pass and never mutated afterwards.
type ArtifactDescriptor struct {
	ID            string // CanonicalName + hex digest of the file bytes
	CanonicalName string // base name of the file
	Metadata      *ArtifactMetadata
	Path          string
	DiscoveredAt  time.Time
}

// ArtifactMetadata holds manifest-derived information about a library artifact
type ArtifactMetadata struct {
	Title               string
	Version             string
	DerivedArtifactName string
}

// NewArtifactMetadata builds metadata for an artifact, deriving the artifact
// name from the canonical file name and the manifest version.
func NewArtifactMetadata(canonicalName, title, version string) *ArtifactMetadata {
	return &ArtifactMetadata{
		Title:               title,
		Version:             version,
		DerivedArtifactName: DerivedArtifactName(canonicalName, version),
	}
}

// DerivedArtifactName strips the version (first occurrence) and any trailing
// non-alphanumeric characters from a file name.
// An empty version leaves the name unmodified apart from the trailing strip.
func DerivedArtifactName(canonicalName, version string) string {
	name := canonicalName
	if version != "" {
		name, _, _ = strings.Cut(canonicalName, version)
	}
	return strings.TrimRightFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Title returns the manifest title or "" when no metadata is known
func (a *ArtifactDescriptor) Title() string {
	if a.Metadata == nil {
		return ""
	}
	return a.Metadata.Title
}

// Version returns the manifest version or "" when no metadata is known
func (a *ArtifactDescriptor) Version() string {
	if a.Metadata == nil {
		return ""
	}
	return a.Metadata.Version
}

// ArtifactName returns the derived artifact name, or "" when no metadata is known
func (a *ArtifactDescriptor) ArtifactName() string {
	if a.Metadata == nil {
		return ""
	}
	return a.Metadata.DerivedArtifactName
}

// MetadataQuery returns the lookup tuple for this artifact.
// Absent metadata yields empty fields rather than no query.
func (a *ArtifactDescriptor) MetadataQuery() MetadataQuery {
	return MetadataQuery{
		Title:        a.Title(),
		ArtifactName: a.ArtifactName(),
		Version:      a.Version(),
	}
}

func (a *ArtifactDescriptor) String() string {
	return "id: " + a.ID + ", file: " + a.CanonicalName + ", created on: " + a.DiscoveredAt.Format(time.RFC3339)
}
