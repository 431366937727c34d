package orchestrators

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ochairo/vulnscan/internal/domain/entities"
)

// barrierUnit holds the first `size` units until all of them are running
// and records the highest number of units in flight at once
type barrierUnit struct {
	size     int32
	inFlight atomic.Int32
	peak     atomic.Int32
	started  atomic.Int32
	barrier  chan struct{}
	once     sync.Once
}

func newBarrierUnit(size int) *barrierUnit {
	return &barrierUnit{size: int32(size), barrier: make(chan struct{})}
}

func (u *barrierUnit) Scan(_ context.Context, artifact *entities.ArtifactDescriptor, _ entities.Policy) (entities.ScanResult, error) {
	n := u.inFlight.Add(1)
	defer u.inFlight.Add(-1)
	for {
		peak := u.peak.Load()
		if n <= peak || u.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	if u.started.Add(1) >= u.size {
		u.once.Do(func() { close(u.barrier) })
	}
	select {
	case <-u.barrier:
	case <-time.After(5 * time.Second):
	}
	return entities.ScanResult{Artifact: artifact}, nil
}

func TestScanOrchestrator_PoolIsBoundedAndParallel(t *testing.T) {
	const workers = 3
	unit := newBarrierUnit(workers)
	cache := newMemoryCache()
	orchestrator := NewScanOrchestrator(&fakeIdentity{}, unit, &fakeUpdater{}, cache, nil,
		WithWorkers(workers),
		WithRunIDGenerator(fixedRunID),
	)

	paths := make([]string, 10)
	for i := range paths {
		paths[i] = fmt.Sprintf("/out/lib%d-1.0.jar", i)
	}

	outcome := orchestrator.Run(context.Background(), entities.DefaultPolicy(), paths)

	require.Equal(t, entities.VerdictPassed, outcome.Verdict)
	assert.Equal(t, int32(len(paths)), unit.started.Load())
	assert.Greater(t, unit.peak.Load(), int32(1), "units should run in parallel")
	assert.LessOrEqual(t, unit.peak.Load(), int32(workers), "no more than %d units in flight", workers)
	assert.Len(t, cache.puts, len(paths))
}

// fatalThenSlowUnit reports the first artifact at once and the second only
// after the first has returned
type fatalThenSlowUnit struct {
	fastDone chan struct{}
	calls    atomic.Int32
}

func (u *fatalThenSlowUnit) Scan(ctx context.Context, artifact *entities.ArtifactDescriptor, _ entities.Policy) (entities.ScanResult, error) {
	u.calls.Add(1)
	result := entities.ScanResult{Artifact: artifact}

	switch artifact.CanonicalName {
	case "fast-1.0.jar":
		defer close(u.fastDone)
		finding := entities.NewFindingRecord(artifact, entities.CategoryMetadata, []string{"CVE-2014-0001"})
		result.Finding = &finding
	case "slow-1.0.jar":
		<-u.fastDone
		time.Sleep(20 * time.Millisecond)
		if err := ctx.Err(); err != nil {
			return result, err
		}
		finding := entities.NewFindingRecord(artifact, entities.CategoryMetadata, []string{"CVE-2015-0002"})
		result.Finding = &finding
	}
	return result, nil
}

func TestScanOrchestrator_FatalFindingDoesNotCancelInFlightUnits(t *testing.T) {
	unit := &fatalThenSlowUnit{fastDone: make(chan struct{})}
	cache := newMemoryCache()
	orchestrator := NewScanOrchestrator(&fakeIdentity{}, unit, &fakeUpdater{}, cache, nil,
		WithWorkers(2),
		WithRunIDGenerator(fixedRunID),
	)
	policy := entities.Policy{Fingerprint: entities.SeverityFatal, Metadata: entities.SeverityFatal}

	outcome := orchestrator.Run(context.Background(), policy, []string{"/out/fast-1.0.jar", "/out/slow-1.0.jar"})

	assert.Equal(t, entities.VerdictFailed, outcome.Verdict)
	assert.NoError(t, outcome.Err)
	assert.Equal(t, int32(2), unit.calls.Load())
	assert.Equal(t, 2, outcome.Stats.Fatal)

	require.Len(t, outcome.Findings, 2)
	assert.Equal(t, "fast-1.0.jardigest", outcome.Findings[0].ArtifactID)
	assert.Equal(t, "slow-1.0.jardigest", outcome.Findings[1].ArtifactID)
	assert.Len(t, outcome.Messages, 2)

	assert.Equal(t, []string{"fast-1.0.jardigest", "slow-1.0.jardigest"}, cache.puts)
	assert.Equal(t, []string{"CVE-2015-0002"}, cache.entries["slow-1.0.jardigest"])
}
