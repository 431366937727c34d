package entities

import "strings"

// VulnerabilityRecord is one entry of the vulnerability database: a known
// vulnerable library identified by its combined fingerprint hash and by its
// coordinates, with the vulnerability ids affecting it.
type VulnerabilityRecord struct {
	Hash    string   `json:"hash" yaml:"hash"`
	Name    string   `json:"name" yaml:"name"`
	Version string   `json:"version" yaml:"version"`
	Title   string   `json:"title,omitempty" yaml:"title,omitempty"`
	CVEs    []string `json:"cves" yaml:"cves"`
}

// Key identifies the record in the local store. Records without a hash
// are keyed by their coordinates.
func (r VulnerabilityRecord) Key() string {
	if r.Hash != "" {
		return strings.ToLower(r.Hash)
	}
	return strings.ToLower(r.Name) + ":" + r.Version
}
