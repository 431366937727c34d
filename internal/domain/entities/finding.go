package entities

import (
	"fmt"
	"sort"
	"strings"
)

// FingerprintRecord is a content-derived record used to match an artifact
// against known-vulnerable content signatures.
// Its fields are opaque to the scan core.
type FingerprintRecord struct {
	Algorithm string            // e.g. "SHA512"
	Hash      string            // combined hash over the record's content
	Filename  string            // artifact the record was taken from
	Entries   map[string]string // entry name -> hash, when the format has entries
}

// MetadataQuery is the {title, artifact name, version} tuple used for
// name/version based vulnerability matching
type MetadataQuery struct {
	Title        string
	ArtifactName string
	Version      string
}

// FindingRecord is produced when a scan unit or a cache hit reveals
// a non-empty set of vulnerability identifiers for an artifact
type FindingRecord struct {
	ArtifactID       string
	Category         Category
	VulnerabilityIDs []string // non-empty, sorted
	Summary          string
	Detail           string
	Cached           bool
}

// vulnerabilityURL is the public page for a CVE identifier
const vulnerabilityURL = "https://access.redhat.com/security/cve/%s"

// NewFindingRecord creates a finding for the artifact with human-readable
// summary and detail text. ids must be non-empty.
func NewFindingRecord(artifact *ArtifactDescriptor, category Category, ids []string) FindingRecord {
	sorted := NormalizeIDs(ids)

	summary := fmt.Sprintf("%s (%s) is vulnerable to: %s",
		displayName(artifact), artifact.Version(), strings.Join(sorted, ", "))

	var detail strings.Builder
	fmt.Fprintf(&detail, "Vulnerable dependency found by %s check: %s\n", category, artifact.ID)
	for _, id := range sorted {
		detail.WriteString("  ")
		fmt.Fprintf(&detail, vulnerabilityURL, id)
		detail.WriteString("\n")
	}

	return FindingRecord{
		ArtifactID:       artifact.ID,
		Category:         category,
		VulnerabilityIDs: sorted,
		Summary:          summary,
		Detail:           detail.String(),
	}
}

// NormalizeIDs returns a sorted copy of ids with duplicates and blanks removed
func NormalizeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func displayName(artifact *ArtifactDescriptor) string {
	if name := artifact.ArtifactName(); name != "" {
		return name
	}
	return artifact.CanonicalName
}
