package entities

import "time"

// Verdict is the terminal state of a scan run
type Verdict string

const (
	VerdictPassed  Verdict = "passed"
	VerdictFailed  Verdict = "failed"
	VerdictAborted Verdict = "aborted"
)

// ScanState is a phase of the scan orchestrator
type ScanState string

const (
	StateInitializing     ScanState = "initializing"
	StateUpdatingDatabase ScanState = "updating_database"
	StateDispatching      ScanState = "dispatching"
	StateCollecting       ScanState = "collecting"
	StateReporting        ScanState = "reporting"
)

// ScanResult is the outcome of one scan unit: clean, or vulnerable with a finding
type ScanResult struct {
	Artifact *ArtifactDescriptor
	Finding  *FindingRecord // nil when the artifact is clean
}

// Vulnerable reports whether the unit produced a finding
func (r ScanResult) Vulnerable() bool {
	return r.Finding != nil
}

// ScanOutcome is what a run returns to its caller
type ScanOutcome struct {
	RunID    string
	Verdict  Verdict
	Messages []string        // one human-readable message per finding, in report order
	Findings []FindingRecord // same order as Messages
	Err      error           // set only when Verdict is VerdictAborted

	// AbortedIn is the phase that failed for an aborted run
	AbortedIn ScanState
	Stats     ScanStats
}

// ScanStats counts what happened during a run
type ScanStats struct {
	Discovered int
	Skipped    int // identity extraction failures
	CacheHits  int
	Dispatched int
	Vulnerable int
	Fatal      int
	Duration   time.Duration
}

// ErrorMessage returns the operational error of an aborted run, or ""
func (o *ScanOutcome) ErrorMessage() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}
