// Package repositories defines interfaces for data access layers.
package repositories

import "context"

// ResultCache is the durable mapping from artifact id to the vulnerability
// identifiers found for it. An empty set means the artifact was scanned and
// found clean; presence of the key is the only skip signal.
//
// The scan orchestrator is the only writer during a run.
type ResultCache interface {
	// Exists reports whether id has been scanned before
	Exists(ctx context.Context, id string) (bool, error)

	// Get returns the cached findings for id (empty when clean)
	Get(ctx context.Context, id string) ([]string, error)

	// Put inserts or replaces the findings for id
	Put(ctx context.Context, id string, findings []string) error
}
