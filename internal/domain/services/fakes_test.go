package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ochairo/vulnscan/internal/domain/entities"
)

type fakeDigester struct {
	digests map[string]string
}

func (f *fakeDigester) Digest(path, _ string) (string, error) {
	d, ok := f.digests[path]
	if !ok {
		return "", errors.New("no such file")
	}
	return d, nil
}

type fakeManifests struct {
	title, version string
	ok             bool
	err            error
}

func (f *fakeManifests) ReadManifest(_ string) (string, string, bool, error) {
	return f.title, f.version, f.ok, f.err
}

type fakeFingerprints struct {
	records []entities.FingerprintRecord
	err     error
}

func (f *fakeFingerprints) Fingerprints(_ context.Context, _ string) ([]entities.FingerprintRecord, error) {
	return f.records, f.err
}

// fakeDatabase answers lookups from maps and counts calls
type fakeDatabase struct {
	mu          sync.Mutex
	byHash      map[string][]string
	byVersion   map[string][]string
	lookupErr   error
	last        time.Time
	lastErr     error
	syncErr     error
	syncs       int
	hashCalls   int
	metaCalls   int
	lastQueries []entities.MetadataQuery
}

func (f *fakeDatabase) LookupByFingerprint(_ context.Context, record entities.FingerprintRecord) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hashCalls++
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	return f.byHash[record.Hash], nil
}

func (f *fakeDatabase) LookupByMetadata(_ context.Context, query entities.MetadataQuery) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metaCalls++
	f.lastQueries = append(f.lastQueries, query)
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	return f.byVersion[query.ArtifactName+":"+query.Version], nil
}

func (f *fakeDatabase) LastSynchronized(_ context.Context) (time.Time, error) {
	return f.last, f.lastErr
}

func (f *fakeDatabase) Synchronize(_ context.Context) error {
	f.syncs++
	return f.syncErr
}
