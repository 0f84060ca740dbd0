package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/cloudplay/internal/models"
	"github.com/desertthunder/cloudplay/internal/shared"
)

// CacheEntryRepository persists integrity cache metadata in the cache_entries table.
//
// It implements cache.Index.
type CacheEntryRepository struct {
	db *sql.DB
}

// NewCacheEntryRepository creates a new CacheEntryRepository with the given database connection
func NewCacheEntryRepository(db *sql.DB) *CacheEntryRepository {
	return &CacheEntryRepository{db: db}
}

// Upsert inserts or replaces the row for entry.Key in namespace
func (r *CacheEntryRepository) Upsert(ctx context.Context, namespace string, entry models.CacheEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	query := `
		INSERT INTO cache_entries (namespace, cache_key, integrity_hash, size_bytes, last_access, seq)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (namespace, cache_key) DO UPDATE SET
			integrity_hash = excluded.integrity_hash,
			size_bytes = excluded.size_bytes,
			last_access = excluded.last_access,
			seq = excluded.seq
	`

	_, err := r.db.ExecContext(ctx, query,
		namespace,
		entry.Key,
		entry.IntegrityHash,
		entry.SizeBytes,
		entry.LastAccess.UTC(),
		entry.Seq,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cache entry: %w", err)
	}
	return nil
}

// Get retrieves the entry for key in namespace
func (r *CacheEntryRepository) Get(ctx context.Context, namespace, key string) (models.CacheEntry, error) {
	query := `
		SELECT cache_key, integrity_hash, size_bytes, last_access, seq
		FROM cache_entries
		WHERE namespace = ? AND cache_key = ?
	`

	entry, err := scanEntry(r.db.QueryRowContext(ctx, query, namespace, key))
	if errors.Is(err, sql.ErrNoRows) {
		return models.CacheEntry{}, fmt.Errorf("%w: cache entry %s/%s", shared.ErrNotFound, namespace, key)
	}
	return entry, err
}

// Touch records an access time for key
func (r *CacheEntryRepository) Touch(ctx context.Context, namespace, key string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE cache_entries SET last_access = ? WHERE namespace = ? AND cache_key = ?",
		at.UTC(), namespace, key,
	)
	if err != nil {
		return fmt.Errorf("failed to touch cache entry: %w", err)
	}
	return affectedOne(result, "cache entry "+namespace+"/"+key)
}

// Remove deletes the row for key. Removing an absent key is not an error.
func (r *CacheEntryRepository) Remove(ctx context.Context, namespace, key string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM cache_entries WHERE namespace = ? AND cache_key = ?", namespace, key)
	if err != nil {
		return fmt.Errorf("failed to remove cache entry: %w", err)
	}
	return nil
}

// Clear deletes every row in namespace
func (r *CacheEntryRepository) Clear(ctx context.Context, namespace string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM cache_entries WHERE namespace = ?", namespace); err != nil {
		return fmt.Errorf("failed to clear cache entries: %w", err)
	}
	return nil
}

// Load returns every entry in namespace ordered least recently used first
func (r *CacheEntryRepository) Load(ctx context.Context, namespace string) ([]models.CacheEntry, error) {
	return r.List(ctx, map[string]any{"namespace": namespace})
}

// List retrieves entries matching the given criteria.
//
// Supported criteria: "namespace" (string), "min_size" (int64), "accessed_before" (time.Time).
func (r *CacheEntryRepository) List(ctx context.Context, criteria map[string]any) ([]models.CacheEntry, error) {
	query := `
		SELECT cache_key, integrity_hash, size_bytes, last_access, seq
		FROM cache_entries
		WHERE 1 = 1
	`

	args := []any{}

	if namespace, ok := criteria["namespace"].(string); ok && namespace != "" {
		query += " AND namespace = ?"
		args = append(args, namespace)
	}

	if minSize, ok := criteria["min_size"].(int64); ok {
		query += " AND size_bytes >= ?"
		args = append(args, minSize)
	}

	if before, ok := criteria["accessed_before"].(time.Time); ok {
		query += " AND last_access < ?"
		args = append(args, before.UTC())
	}

	query += " ORDER BY last_access ASC, seq ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cache entries: %w", err)
	}
	defer rows.Close()

	var entries []models.CacheEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return entries, nil
}

// Namespaces returns the total bytes recorded per namespace
func (r *CacheEntryRepository) Namespaces(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT namespace, COALESCE(SUM(size_bytes), 0) FROM cache_entries GROUP BY namespace")
	if err != nil {
		return nil, fmt.Errorf("failed to query namespaces: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]int64)
	for rows.Next() {
		var ns string
		var total int64
		if err := rows.Scan(&ns, &total); err != nil {
			return nil, fmt.Errorf("failed to scan namespace total: %w", err)
		}
		totals[ns] = total
	}
	return totals, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

// scanEntry scans a row from [sql.Row] or [sql.Rows] into a [models.CacheEntry]
func scanEntry(row scanner) (models.CacheEntry, error) {
	var entry models.CacheEntry
	err := row.Scan(&entry.Key, &entry.IntegrityHash, &entry.SizeBytes, &entry.LastAccess, &entry.Seq)
	if errors.Is(err, sql.ErrNoRows) {
		return entry, err
	}
	if err != nil {
		return entry, fmt.Errorf("failed to scan cache entry: %w", err)
	}
	return entry, nil
}
