// Package yaml encodes scan reports and reads vulnerability record files in YAML.
package yaml

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ochairo/vulnscan/internal/domain/entities"
)

// Report is the serialized form of a scan outcome
type Report struct {
	RunID     string          `yaml:"run_id" json:"run_id"`
	Verdict   string          `yaml:"verdict" json:"verdict"`
	AbortedIn string          `yaml:"aborted_in,omitempty" json:"aborted_in,omitempty"`
	Error     string          `yaml:"error,omitempty" json:"error,omitempty"`
	Messages  []string        `yaml:"messages" json:"messages"`
	Findings  []ReportFinding `yaml:"findings" json:"findings"`
	Stats     ReportStats     `yaml:"stats" json:"stats"`
}

// ReportFinding is one vulnerable artifact
type ReportFinding struct {
	Artifact        string   `yaml:"artifact" json:"artifact"`
	Category        string   `yaml:"category" json:"category"`
	Cached          bool     `yaml:"cached" json:"cached"`
	Vulnerabilities []string `yaml:"vulnerabilities" json:"vulnerabilities"`
	Summary         string   `yaml:"summary" json:"summary"`
}

// ReportStats are the counters of the run
type ReportStats struct {
	Discovered int    `yaml:"discovered" json:"discovered"`
	Skipped    int    `yaml:"skipped" json:"skipped"`
	CacheHits  int    `yaml:"cache_hits" json:"cache_hits"`
	Dispatched int    `yaml:"dispatched" json:"dispatched"`
	Vulnerable int    `yaml:"vulnerable" json:"vulnerable"`
	Fatal      int    `yaml:"fatal" json:"fatal"`
	Duration   string `yaml:"duration" json:"duration"`
}

// NewReport converts an outcome into its serialized form
func NewReport(outcome *entities.ScanOutcome) Report {
	report := Report{
		RunID:     outcome.RunID,
		Verdict:   string(outcome.Verdict),
		AbortedIn: string(outcome.AbortedIn),
		Error:     outcome.ErrorMessage(),
		Messages:  outcome.Messages,
		Findings:  make([]ReportFinding, 0, len(outcome.Findings)),
		Stats: ReportStats{
			Discovered: outcome.Stats.Discovered,
			Skipped:    outcome.Stats.Skipped,
			CacheHits:  outcome.Stats.CacheHits,
			Dispatched: outcome.Stats.Dispatched,
			Vulnerable: outcome.Stats.Vulnerable,
			Fatal:      outcome.Stats.Fatal,
			Duration:   outcome.Stats.Duration.Round(time.Millisecond).String(),
		},
	}
	if report.Messages == nil {
		report.Messages = []string{}
	}

	for _, f := range outcome.Findings {
		report.Findings = append(report.Findings, ReportFinding{
			Artifact:        f.ArtifactID,
			Category:        string(f.Category),
			Cached:          f.Cached,
			Vulnerabilities: f.VulnerabilityIDs,
			Summary:         f.Summary,
		})
	}
	return report
}

// EncodeReport writes outcome as a YAML document
func EncodeReport(w io.Writer, outcome *entities.ScanOutcome) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(NewReport(outcome)); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return enc.Close()
}

// Marshal encodes any value as YAML with two space indentation
func Marshal(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return enc.Close()
}
