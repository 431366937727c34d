// Package orchestrators coordinates complex workflows across multiple domain services.
package orchestrators

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ochairo/vulnscan/internal/domain/entities"
	"github.com/ochairo/vulnscan/internal/domain/interfaces"
	"github.com/ochairo/vulnscan/internal/domain/interfaces/repositories"
	"github.com/ochairo/vulnscan/internal/domain/interfaces/services"
)

// ScanOrchestrator drives a complete scan run: policy validation, database
// update, cache partitioning, concurrent scanning and the final verdict.
//
// The goroutine calling Run is the only writer of the result cache and of the
// findings list. Workers only execute scan units and hand their result back
// through a per-artifact handle.
type ScanOrchestrator struct {
	identity services.IdentityExtractor
	unit     services.ScanUnit
	updater  services.DatabaseUpdater
	cache    repositories.ResultCache
	logger   interfaces.Logger

	workers           int
	printCheckedFiles bool
	newRunID          func() string
}

// ScanOption configures a ScanOrchestrator
type ScanOption func(*ScanOrchestrator)

// WithWorkers sets the worker pool size (values < 1 mean runtime.NumCPU())
func WithWorkers(n int) ScanOption {
	return func(o *ScanOrchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithPrintCheckedFiles logs every discovered file and cache hit
func WithPrintCheckedFiles(enabled bool) ScanOption {
	return func(o *ScanOrchestrator) {
		o.printCheckedFiles = enabled
	}
}

// WithRunIDGenerator replaces the uuid based run id generator
func WithRunIDGenerator(gen func() string) ScanOption {
	return func(o *ScanOrchestrator) {
		o.newRunID = gen
	}
}

// NewScanOrchestrator creates a new scan orchestrator
func NewScanOrchestrator(
	identity services.IdentityExtractor,
	unit services.ScanUnit,
	updater services.DatabaseUpdater,
	cache repositories.ResultCache,
	logger interfaces.Logger,
	opts ...ScanOption,
) *ScanOrchestrator {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	o := &ScanOrchestrator{
		identity: identity,
		unit:     unit,
		updater:  updater,
		cache:    cache,
		logger:   logger,
		workers:  runtime.NumCPU(),
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// pendingScan is the handle of one dispatched scan unit
type pendingScan struct {
	artifact *entities.ArtifactDescriptor
	done     chan unitResult
}

type unitResult struct {
	result entities.ScanResult
	err    error
}

// run holds the mutable state of a single Run call
type run struct {
	policy   entities.Policy
	logger   interfaces.Logger
	outcome  *entities.ScanOutcome
	cached   []entities.FindingRecord
	scanned  []entities.FindingRecord
	fatal    bool
	pending  []pendingScan
	firstErr error
	failedIn entities.ScanState
}

// Run scans the artifacts at paths under policy and returns the outcome.
// Operational failures are reported through an Aborted outcome.
func (o *ScanOrchestrator) Run(ctx context.Context, policy entities.Policy, paths []string) *entities.ScanOutcome {
	start := time.Now()
	runID := o.newRunID()
	r := &run{
		policy:  policy,
		logger:  o.logger.With(interfaces.F("run_id", runID)),
		outcome: &entities.ScanOutcome{RunID: runID},
	}
	r.outcome.Stats.Discovered = len(paths)
	defer func() {
		r.outcome.Stats.Duration = time.Since(start)
	}()

	// Initializing
	if err := policy.Validate(); err != nil {
		return r.abort(entities.StateInitializing, err)
	}
	r.logger.Info("Scan configuration",
		interfaces.F("fingerprint", policy.Fingerprint.String()),
		interfaces.F("metadata", policy.Metadata.String()),
		interfaces.F("updates", policy.Updates.String()),
		interfaces.F("workers", o.workers),
	)

	// UpdatingDatabase
	if err := o.updater.Update(ctx, policy.UpdateSchedule()); err != nil {
		return r.abort(entities.StateUpdatingDatabase, err)
	}

	// Dispatching
	group := new(errgroup.Group)
	group.SetLimit(o.workers)
	o.dispatch(ctx, r, group, paths)

	// Collecting
	o.collect(ctx, r)
	_ = group.Wait()

	if r.firstErr != nil {
		return r.abort(r.failedIn, r.firstErr)
	}

	// Reporting
	return r.report()
}

// dispatch identifies every artifact, folds cache hits and submits cache
// misses to the pool. It stops dispatching on a cache read failure but keeps
// the handles already submitted so they can be drained.
func (o *ScanOrchestrator) dispatch(ctx context.Context, r *run, group *errgroup.Group, paths []string) {
	r.logger.Info("Scanning files", interfaces.F("count", len(paths)))

	for _, path := range paths {
		if o.printCheckedFiles {
			r.logger.Info("Checking file", interfaces.F("path", path))
		}

		artifact, err := o.identity.Extract(ctx, path)
		if err != nil {
			r.outcome.Stats.Skipped++
			r.logger.Error("Unable to identify artifact, skipping",
				interfaces.F("path", path),
				interfaces.F("error", err),
			)
			continue
		}

		hit, err := o.cache.Exists(ctx, artifact.ID)
		if err != nil {
			r.fail(entities.StateDispatching, fmt.Errorf("result cache lookup for %s failed: %w", artifact.ID, err))
			return
		}
		if hit {
			if err := o.foldCached(ctx, r, artifact); err != nil {
				r.fail(entities.StateDispatching, err)
				return
			}
			continue
		}

		handle := pendingScan{artifact: artifact, done: make(chan unitResult, 1)}
		r.pending = append(r.pending, handle)
		r.outcome.Stats.Dispatched++
		r.logger.Debug("Scanning", interfaces.F("artifact", artifact.CanonicalName))

		policy := r.policy
		group.Go(func() error {
			result, err := o.unit.Scan(ctx, handle.artifact, policy)
			handle.done <- unitResult{result: result, err: err}
			return nil
		})
	}
}

// foldCached adds a previously stored result to the aggregation
func (o *ScanOrchestrator) foldCached(ctx context.Context, r *run, artifact *entities.ArtifactDescriptor) error {
	r.outcome.Stats.CacheHits++
	if o.printCheckedFiles {
		r.logger.Info("Cached", interfaces.F("id", artifact.ID))
	}

	ids, err := o.cache.Get(ctx, artifact.ID)
	if err != nil {
		return fmt.Errorf("result cache read for %s failed: %w", artifact.ID, err)
	}
	if len(ids) == 0 {
		return nil
	}

	// The cache does not remember which check produced the ids
	finding := entities.NewFindingRecord(artifact, entities.CategoryFingerprint, ids)
	finding.Cached = true
	r.cached = append(r.cached, finding)
	r.record(finding)
	return nil
}

// collect drains every handle in submission order and writes each result
// to the cache. Errors are remembered and reported after all handles resolve.
func (o *ScanOrchestrator) collect(ctx context.Context, r *run) {
	for _, handle := range r.pending {
		res := <-handle.done
		if res.err != nil {
			r.logger.Error("Scan failed",
				interfaces.F("artifact", handle.artifact.ID),
				interfaces.F("error", res.err),
			)
			r.fail(entities.StateCollecting, res.err)
			continue
		}

		findings := []string{}
		if res.result.Vulnerable() {
			findings = res.result.Finding.VulnerabilityIDs
		}
		if err := o.cache.Put(ctx, handle.artifact.ID, findings); err != nil {
			r.fail(entities.StateCollecting, fmt.Errorf("result cache write for %s failed: %w", handle.artifact.ID, err))
			continue
		}

		if res.result.Vulnerable() {
			r.scanned = append(r.scanned, *res.result.Finding)
			r.record(*res.result.Finding)
		}
	}
}

// fail keeps the first operational error of the run
func (r *run) fail(state entities.ScanState, err error) {
	if r.firstErr == nil {
		r.firstErr = err
		r.failedIn = state
	}
}

// record logs a finding as it is aggregated and applies the fatal policy
func (r *run) record(finding entities.FindingRecord) {
	r.outcome.Stats.Vulnerable++
	r.logger.Warn(finding.Summary,
		interfaces.F("artifact", finding.ArtifactID),
		interfaces.F("category", string(finding.Category)),
		interfaces.F("cached", finding.Cached),
	)
	if r.policy.IsFatal(finding.Category) {
		r.outcome.Stats.Fatal++
		r.fatal = true
	}
}

func (r *run) report() *entities.ScanOutcome {
	findings := make([]entities.FindingRecord, 0, len(r.cached)+len(r.scanned))
	findings = append(findings, r.cached...)
	findings = append(findings, r.scanned...)

	messages := make([]string, 0, len(findings))
	for _, finding := range findings {
		messages = append(messages, finding.Summary)
		if r.policy.IsFatal(finding.Category) {
			r.logger.Error(finding.Detail)
		} else {
			r.logger.Warn(finding.Detail)
		}
	}

	r.outcome.Findings = findings
	r.outcome.Messages = messages
	r.outcome.Verdict = entities.VerdictPassed
	if r.fatal {
		r.outcome.Verdict = entities.VerdictFailed
		r.logger.Error("Vulnerable artifact found", interfaces.F("fatal", r.outcome.Stats.Fatal))
	}
	return r.outcome
}

// abort discards partial findings and reports a single operational error
func (r *run) abort(state entities.ScanState, err error) *entities.ScanOutcome {
	r.logger.Error("Scan aborted", interfaces.F("state", string(state)), interfaces.F("error", err))
	r.outcome.Verdict = entities.VerdictAborted
	r.outcome.AbortedIn = state
	r.outcome.Err = err
	r.outcome.Findings = nil
	r.outcome.Messages = nil
	return r.outcome
}
