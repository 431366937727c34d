package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ochairo/vulnscan/internal/domain/entities"
)

const lastUpdatedKey = "last_updated"

// VulnerabilityStore is the local copy of the vulnerability database
type VulnerabilityStore struct {
	store *DB
}

// MatchHash returns the ids recorded for a combined fingerprint hash
func (v *VulnerabilityStore) MatchHash(ctx context.Context, hash string) ([]string, error) {
	query := `SELECT DISTINCT c.cve FROM vuln_records r
		JOIN vuln_cves c ON c.record_key = r.record_key
		WHERE r.hash = ?
		ORDER BY c.cve`
	return v.queryIDs(ctx, query, strings.ToLower(hash))
}

// MatchMetadata returns the ids recorded for the version and either the
// derived artifact name or the manifest title
func (v *VulnerabilityStore) MatchMetadata(ctx context.Context, q entities.MetadataQuery) ([]string, error) {
	query := `SELECT DISTINCT c.cve FROM vuln_records r
		JOIN vuln_cves c ON c.record_key = r.record_key
		WHERE r.version = ?
		AND ((? <> '' AND LOWER(r.name) = LOWER(?)) OR (? <> '' AND r.title = ?))
		ORDER BY c.cve`
	return v.queryIDs(ctx, query, q.Version, q.ArtifactName, q.ArtifactName, q.Title, q.Title)
}

func (v *VulnerabilityStore) queryIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := v.store.db.QueryContext(ctx, v.store.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query vulnerability records: %w", err)
	}
	//nolint:errcheck // Defer close on result rows
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// LastUpdated returns the time of the last applied update (zero if never)
func (v *VulnerabilityStore) LastUpdated(ctx context.Context) (time.Time, error) {
	var raw string
	err := v.store.db.QueryRowContext(ctx, v.store.rebind(`SELECT value FROM sync_state WHERE key = ?`), lastUpdatedKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read sync state: %w", err)
	}

	updated, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt sync state %q: %w", raw, err)
	}
	return updated, nil
}

// ApplyUpdate upserts records, replaces their ids and sets the last
// updated time in a single transaction
func (v *VulnerabilityStore) ApplyUpdate(ctx context.Context, records []entities.VulnerabilityRecord, updatedAt time.Time) error {
	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin update: %w", err)
	}
	//nolint:errcheck // Rollback is a no-op after commit
	defer tx.Rollback()

	upsertRecord := v.store.rebind(`INSERT INTO vuln_records (record_key, hash, name, version, title) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (record_key) DO UPDATE SET hash = excluded.hash, name = excluded.name,
		version = excluded.version, title = excluded.title`)
	deleteCVEs := v.store.rebind(`DELETE FROM vuln_cves WHERE record_key = ?`)
	insertCVE := v.store.rebind(`INSERT INTO vuln_cves (record_key, cve) VALUES (?, ?) ON CONFLICT DO NOTHING`)

	for _, record := range records {
		key := record.Key()
		if _, err := tx.ExecContext(ctx, upsertRecord, key, strings.ToLower(record.Hash), record.Name, record.Version, record.Title); err != nil {
			return fmt.Errorf("failed to store record %s: %w", key, err)
		}
		if _, err := tx.ExecContext(ctx, deleteCVEs, key); err != nil {
			return fmt.Errorf("failed to replace ids of %s: %w", key, err)
		}
		for _, cve := range record.CVEs {
			if _, err := tx.ExecContext(ctx, insertCVE, key, cve); err != nil {
				return fmt.Errorf("failed to store id %s of %s: %w", cve, key, err)
			}
		}
	}

	setUpdated := v.store.rebind(`INSERT INTO sync_state (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`)
	if _, err := tx.ExecContext(ctx, setUpdated, lastUpdatedKey, updatedAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("failed to store sync state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit update: %w", err)
	}
	return nil
}

// Count returns the number of stored vulnerability records
func (v *VulnerabilityStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := v.store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vuln_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count vulnerability records: %w", err)
	}
	return n, nil
}
