package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/resync/internal/shared"
)

// SyncStatus is the terminal state of one resolution attempt.
type SyncStatus string

const (
	StatusMatched  SyncStatus = "matched"
	StatusNotFound SyncStatus = "not_found"
	StatusError    SyncStatus = "error"
)

// SongMapping is one persisted resolution attempt linking a Spotify track to
// a YouTube video, or recording non-resolution.
type SongMapping struct {
	ID                  string
	SpotifyPlaylistID   string
	YouTubePlaylistID   string
	SpotifyTrackID      string
	YouTubeVideoID      string // empty if unresolved
	SpotifyTrackName    string
	SpotifyArtistName   string
	YouTubeVideoTitle   string // empty if unresolved
	YouTubeChannelTitle string // empty if unresolved
	SyncStatus          SyncStatus
	ErrorMessage        string
	CreatedAt           time.Time
}

// MappingRepository persists song mappings.
//
// The table is append-only: Append always inserts a new row, and there is no
// uniqueness constraint on (spotify_track_id, youtube_playlist_id). Readers
// must treat the newest row per pair as the current status; Current performs
// that fold.
type MappingRepository struct {
	db *sql.DB
}

// NewMappingRepository creates a MappingRepository with the given database connection
func NewMappingRepository(db *sql.DB) *MappingRepository {
	return &MappingRepository{db: db}
}

// Append inserts a new mapping row, generating its ID and timestamp.
// Existing rows for the same track are never updated.
func (r *MappingRepository) Append(m *SongMapping) error {
	if m.SyncStatus == "" {
		return fmt.Errorf("%w: sync status is required", shared.ErrInvalidInput)
	}

	m.ID = shared.GenerateID()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO song_mappings (id, spotify_playlist_id, youtube_playlist_id, spotify_track_id, youtube_video_id, spotify_track_name, spotify_artist_name, youtube_video_title, youtube_channel_title, sync_status, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		m.ID,
		m.SpotifyPlaylistID,
		m.YouTubePlaylistID,
		m.SpotifyTrackID,
		nullString(m.YouTubeVideoID),
		m.SpotifyTrackName,
		m.SpotifyArtistName,
		nullString(m.YouTubeVideoTitle),
		nullString(m.YouTubeChannelTitle),
		string(m.SyncStatus),
		nullString(m.ErrorMessage),
		m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert song mapping: %w", err)
	}

	return nil
}

// Query returns all mapping rows matching the supplied filters, newest
// first. Either filter may be empty; empty filters are ignored.
func (r *MappingRepository) Query(spotifyPlaylistID, youtubePlaylistID string) ([]SongMapping, error) {
	query := `
		SELECT id, spotify_playlist_id, youtube_playlist_id, spotify_track_id, youtube_video_id, spotify_track_name, spotify_artist_name, youtube_video_title, youtube_channel_title, sync_status, error_message, created_at
		FROM song_mappings
		WHERE 1 = 1
	`

	args := []any{}

	if spotifyPlaylistID != "" {
		query += " AND spotify_playlist_id = ?"
		args = append(args, spotifyPlaylistID)
	}
	if youtubePlaylistID != "" {
		query += " AND youtube_playlist_id = ?"
		args = append(args, youtubePlaylistID)
	}

	query += " ORDER BY created_at DESC, rowid DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query song mappings: %w", err)
	}
	defer rows.Close()

	var mappings []SongMapping
	for rows.Next() {
		mapping, err := scanMapping(rows)
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, mapping)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return mappings, nil
}

// Current folds the mapping rows for a (spotify, youtube) playlist pair to
// the latest row per spotify track id. This is the read-side compensation
// for the append-only table.
func (r *MappingRepository) Current(spotifyPlaylistID, youtubePlaylistID string) (map[string]SongMapping, error) {
	mappings, err := r.Query(spotifyPlaylistID, youtubePlaylistID)
	if err != nil {
		return nil, err
	}

	current := make(map[string]SongMapping, len(mappings))
	for _, mapping := range mappings {
		// Rows come back newest-first; the first row per track wins.
		if _, seen := current[mapping.SpotifyTrackID]; !seen {
			current[mapping.SpotifyTrackID] = mapping
		}
	}

	return current, nil
}

// Count returns the number of mapping rows for a playlist pair.
func (r *MappingRepository) Count(spotifyPlaylistID, youtubePlaylistID string) (int, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM song_mappings WHERE spotify_playlist_id = ? AND youtube_playlist_id = ?",
		spotifyPlaylistID, youtubePlaylistID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count song mappings: %w", err)
	}
	return count, nil
}

// scanMapping scans a row from [sql.Rows] into a [SongMapping]
func scanMapping(rows *sql.Rows) (SongMapping, error) {
	var (
		m            SongMapping
		videoID      sql.NullString
		videoTitle   sql.NullString
		channelTitle sql.NullString
		errMessage   sql.NullString
		status       string
	)

	err := rows.Scan(
		&m.ID,
		&m.SpotifyPlaylistID,
		&m.YouTubePlaylistID,
		&m.SpotifyTrackID,
		&videoID,
		&m.SpotifyTrackName,
		&m.SpotifyArtistName,
		&videoTitle,
		&channelTitle,
		&status,
		&errMessage,
		&m.CreatedAt,
	)
	if err != nil {
		return SongMapping{}, fmt.Errorf("failed to scan song mapping: %w", err)
	}

	m.YouTubeVideoID = fromNull(videoID)
	m.YouTubeVideoTitle = fromNull(videoTitle)
	m.YouTubeChannelTitle = fromNull(channelTitle)
	m.ErrorMessage = fromNull(errMessage)
	m.SyncStatus = SyncStatus(status)

	return m, nil
}
