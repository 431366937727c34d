package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ResultCache maps artifact ids to the vulnerability ids found for them.
// An empty list is stored as "[]" so a clean artifact is still a hit.
type ResultCache struct {
	store *DB
}

// Exists reports whether id has a stored result
func (c *ResultCache) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := c.store.db.QueryRowContext(ctx, c.store.rebind(`SELECT 1 FROM result_cache WHERE id = ?`), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query result cache: %w", err)
	}
	return true, nil
}

// Get returns the stored findings for id, or ErrNotFound
func (c *ResultCache) Get(ctx context.Context, id string) ([]string, error) {
	var raw string
	err := c.store.db.QueryRowContext(ctx, c.store.rebind(`SELECT findings FROM result_cache WHERE id = ?`), id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("result for %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query result cache: %w", err)
	}

	findings := []string{}
	if err := json.Unmarshal([]byte(raw), &findings); err != nil {
		return nil, fmt.Errorf("corrupt result cache entry for %s: %w", id, err)
	}
	return findings, nil
}

// Put inserts or replaces the findings for id
func (c *ResultCache) Put(ctx context.Context, id string, findings []string) error {
	if findings == nil {
		findings = []string{}
	}
	raw, err := json.Marshal(findings)
	if err != nil {
		return fmt.Errorf("failed to encode findings: %w", err)
	}

	query := `INSERT INTO result_cache (id, findings, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET findings = excluded.findings, updated_at = excluded.updated_at`
	if _, err := c.store.db.ExecContext(ctx, c.store.rebind(query), id, string(raw), time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("failed to write result cache: %w", err)
	}
	return nil
}

// Count returns the number of cached results
func (c *ResultCache) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM result_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count result cache: %w", err)
	}
	return n, nil
}
