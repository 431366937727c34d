package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/ochairo/vulnscan/internal/domain/entities"
	yamladapter "github.com/ochairo/vulnscan/internal/external-adapters/yaml"
)

// Output formats of the scan report
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	fatalStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	warnStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	passStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	detailBorder = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
)

func validFormat(format string) error {
	switch format {
	case formatText, formatJSON, formatYAML:
		return nil
	default:
		return fmt.Errorf("unsupported format %q (want text, json or yaml)", format)
	}
}

// renderReport writes the outcome in the requested format
func renderReport(w io.Writer, format string, outcome *entities.ScanOutcome, policy entities.Policy) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(yamladapter.NewReport(outcome))
	case formatYAML:
		return yamladapter.EncodeReport(w, outcome)
	default:
		return renderText(w, outcome, policy)
	}
}

func renderText(w io.Writer, outcome *entities.ScanOutcome, policy entities.Policy) error {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Vulnerability scan") + " " + mutedStyle.Render(outcome.RunID) + "\n")

	for _, finding := range outcome.Findings {
		label := warnStyle.Render("WARNING")
		if policy.IsFatal(finding.Category) {
			label = fatalStyle.Render("FATAL")
		}
		sb.WriteString(label + " " + finding.Summary + "\n")
		sb.WriteString(detailBorder.Render(finding.Detail) + "\n")
	}

	stats := outcome.Stats
	sb.WriteString(mutedStyle.Render(fmt.Sprintf(
		"%d discovered, %d cached, %d scanned, %d skipped in %s",
		stats.Discovered, stats.CacheHits, stats.Dispatched, stats.Skipped,
		stats.Duration.Round(time.Millisecond),
	)) + "\n")

	switch outcome.Verdict {
	case entities.VerdictPassed:
		sb.WriteString(passStyle.Render("PASSED") + "\n")
	case entities.VerdictFailed:
		sb.WriteString(fatalStyle.Render("FAILED") + fmt.Sprintf(" %d fatal finding(s)\n", stats.Fatal))
	default:
		sb.WriteString(fatalStyle.Render("ABORTED") + fmt.Sprintf(" in %s: %s\n", outcome.AbortedIn, outcome.ErrorMessage()))
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
