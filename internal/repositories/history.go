package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/resync/internal/shared"
)

// HistoryStatus is the lifecycle state of one sync run.
type HistoryStatus string

const (
	HistoryInProgress          HistoryStatus = "in_progress"
	HistoryCompleted           HistoryStatus = "completed"
	HistoryCompletedWithErrors HistoryStatus = "completed_with_errors"
	HistoryFailed              HistoryStatus = "failed"
)

// SyncHistory is one sync run: created in_progress, mutated exactly once to
// a terminal status.
type SyncHistory struct {
	ID                string
	UserID            string
	SpotifyPlaylistID string
	YouTubePlaylistID string // empty until resolved
	PlaylistName      string
	Status            HistoryStatus
	TotalSongs        int
	SongsSynced       int
	SongsFailed       int
	StartedAt         time.Time
	CompletedAt       *time.Time
	ErrorMessage      string
}

// HistoryRepository persists sync history records and provides the
// single-flight guard for concurrent syncs of the same playlist.
type HistoryRepository struct {
	db *sql.DB
}

// NewHistoryRepository creates a HistoryRepository with the given database connection
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Claim inserts an in_progress record for the playlist, but only if no
// other in_progress record exists for it. The existence check and the
// insert run as one statement, so two near-simultaneous syncs cannot both
// claim the playlist. Returns [shared.ErrSyncInProgress] when the claim is
// lost.
func (r *HistoryRepository) Claim(h *SyncHistory) error {
	h.ID = shared.GenerateID()
	h.Status = HistoryInProgress
	if h.StartedAt.IsZero() {
		h.StartedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO sync_history (id, user_id, spotify_playlist_id, youtube_playlist_id, playlist_name, status, total_songs, songs_synced, songs_failed, started_at)
		SELECT ?, ?, ?, ?, ?, 'in_progress', ?, 0, 0, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM sync_history
			WHERE spotify_playlist_id = ? AND status = 'in_progress'
		)
	`

	result, err := r.db.Exec(query,
		h.ID,
		nullString(h.UserID),
		h.SpotifyPlaylistID,
		nullString(h.YouTubePlaylistID),
		h.PlaylistName,
		h.TotalSongs,
		h.StartedAt,
		h.SpotifyPlaylistID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert sync history: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: playlist %s", shared.ErrSyncInProgress, h.SpotifyPlaylistID)
	}

	return nil
}

// Complete moves a record to a terminal status with its final counts.
func (r *HistoryRepository) Complete(id string, status HistoryStatus, youtubePlaylistID string, synced, failed int, errorMessage string) error {
	if status == HistoryInProgress {
		return fmt.Errorf("%w: %q is not a terminal status", shared.ErrInvalidInput, status)
	}

	query := `
		UPDATE sync_history
		SET status = ?, youtube_playlist_id = COALESCE(?, youtube_playlist_id), songs_synced = ?, songs_failed = ?, completed_at = ?, error_message = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		string(status),
		nullString(youtubePlaylistID),
		synced,
		failed,
		time.Now().UTC(),
		nullString(errorMessage),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update sync history: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("sync history not found: %s", id)
	}

	return nil
}

// Get retrieves a sync history record by ID.
func (r *HistoryRepository) Get(id string) (*SyncHistory, error) {
	query := selectHistory + " WHERE id = ?"

	row := r.db.QueryRow(query, id)
	h, err := scanHistoryRow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sync history not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return h, nil
}

// List retrieves sync history records newest-first, optionally filtered by
// playlist, capped at limit.
func (r *HistoryRepository) List(spotifyPlaylistID string, limit int) ([]SyncHistory, error) {
	if limit <= 0 {
		limit = 50
	}

	query := selectHistory
	args := []any{}

	if spotifyPlaylistID != "" {
		query += " WHERE spotify_playlist_id = ?"
		args = append(args, spotifyPlaylistID)
	}

	query += " ORDER BY started_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync history: %w", err)
	}
	defer rows.Close()

	var records []SyncHistory
	for rows.Next() {
		h, err := scanHistoryRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		records = append(records, *h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

const selectHistory = `
	SELECT id, user_id, spotify_playlist_id, youtube_playlist_id, playlist_name, status, total_songs, songs_synced, songs_failed, started_at, completed_at, error_message
	FROM sync_history
`

// scanHistoryRow scans one history row via the provided Scan function,
// which lets [sql.Row] and [sql.Rows] share the mapping.
func scanHistoryRow(scan func(dest ...any) error) (*SyncHistory, error) {
	var (
		h            SyncHistory
		userID       sql.NullString
		youtubeID    sql.NullString
		status       string
		completedAt  sql.NullTime
		errorMessage sql.NullString
	)

	err := scan(
		&h.ID,
		&userID,
		&h.SpotifyPlaylistID,
		&youtubeID,
		&h.PlaylistName,
		&status,
		&h.TotalSongs,
		&h.SongsSynced,
		&h.SongsFailed,
		&h.StartedAt,
		&completedAt,
		&errorMessage,
	)
	if err != nil {
		return nil, err
	}

	h.UserID = fromNull(userID)
	h.YouTubePlaylistID = fromNull(youtubeID)
	h.Status = HistoryStatus(status)
	h.ErrorMessage = fromNull(errorMessage)
	if completedAt.Valid {
		h.CompletedAt = &completedAt.Time
	}

	return &h, nil
}
