package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/cloudplay/internal/models"
	"github.com/desertthunder/cloudplay/internal/shared"
)

// QueueRepository stores the last known playback queue of each session.
type QueueRepository struct {
	db *sql.DB
}

// NewQueueRepository creates a new QueueRepository with the given database connection
func NewQueueRepository(db *sql.DB) *QueueRepository {
	return &QueueRepository{db: db}
}

// Save replaces the stored queue for sessionID with items, keeping their order
func (r *QueueRepository) Save(ctx context.Context, sessionID string, items []models.QueueItem) error {
	if sessionID == "" {
		return fmt.Errorf("%w: session id", shared.ErrMissingArgument)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM queue_items WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO queue_items (session_id, position, track_id, title, artists, source_playlist_id, cache_key, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i, item := range items {
		artists, err := json.Marshal(item.Artists)
		if err != nil {
			return fmt.Errorf("failed to encode artists: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, sessionID, i, item.TrackID, item.Title, string(artists), item.SourcePlaylistID, item.CacheKey, now); err != nil {
			return fmt.Errorf("failed to insert queue item %d: %w", item.TrackID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit queue: %w", err)
	}
	return nil
}

// Load returns the stored queue for sessionID in order
func (r *QueueRepository) Load(ctx context.Context, sessionID string) ([]models.QueueItem, error) {
	query := `
		SELECT track_id, title, artists, source_playlist_id, cache_key
		FROM queue_items
		WHERE session_id = ?
		ORDER BY position ASC
	`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query queue: %w", err)
	}
	defer rows.Close()

	var items []models.QueueItem
	for rows.Next() {
		var (
			item    models.QueueItem
			artists string
		)
		if err := rows.Scan(&item.TrackID, &item.Title, &artists, &item.SourcePlaylistID, &item.CacheKey); err != nil {
			return nil, fmt.Errorf("failed to scan queue item: %w", err)
		}
		if artists != "" {
			if err := json.Unmarshal([]byte(artists), &item.Artists); err != nil {
				return nil, fmt.Errorf("failed to decode artists for %d: %w", item.TrackID, err)
			}
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return items, nil
}

// Latest returns the session whose queue was saved most recently
func (r *QueueRepository) Latest(ctx context.Context) (string, error) {
	var sessionID string
	err := r.db.QueryRowContext(ctx, "SELECT session_id FROM queue_items ORDER BY saved_at DESC, rowid DESC LIMIT 1").Scan(&sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: no saved queue", shared.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to query latest session: %w", err)
	}
	return sessionID, nil
}

// Delete removes the stored queue for sessionID
func (r *QueueRepository) Delete(ctx context.Context, sessionID string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM queue_items WHERE session_id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete queue: %w", err)
	}
	return affectedOne(result, "queue for session "+sessionID)
}
