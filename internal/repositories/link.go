package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PlaylistLink associates one Spotify playlist with the YouTube playlist
// created for it. The association is 1:1, keyed by the Spotify playlist id.
type PlaylistLink struct {
	SpotifyPlaylistID string
	YouTubePlaylistID string
	UserID            string
	Name              string
	Description       string
	PrivacyStatus     string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// LinkRepository persists playlist links.
type LinkRepository struct {
	db *sql.DB
}

// NewLinkRepository creates a LinkRepository with the given database connection
func NewLinkRepository(db *sql.DB) *LinkRepository {
	return &LinkRepository{db: db}
}

// Save inserts the link, replacing any existing link for the same Spotify
// playlist. Recreating a target playlist re-points the link in place.
func (r *LinkRepository) Save(link *PlaylistLink) error {
	now := time.Now().UTC()
	if link.CreatedAt.IsZero() {
		link.CreatedAt = now
	}
	link.UpdatedAt = now

	query := `
		INSERT INTO playlist_links (spotify_playlist_id, youtube_playlist_id, user_id, name, description, privacy_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (spotify_playlist_id) DO UPDATE SET
			youtube_playlist_id = excluded.youtube_playlist_id,
			user_id = excluded.user_id,
			name = excluded.name,
			description = excluded.description,
			privacy_status = excluded.privacy_status,
			updated_at = excluded.updated_at
	`

	_, err := r.db.Exec(query,
		link.SpotifyPlaylistID,
		link.YouTubePlaylistID,
		nullString(link.UserID),
		link.Name,
		nullString(link.Description),
		nullString(link.PrivacyStatus),
		link.CreatedAt,
		link.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save playlist link: %w", err)
	}

	return nil
}

// GetBySpotifyID retrieves the link for a Spotify playlist.
// Returns (nil, nil) when no link exists.
func (r *LinkRepository) GetBySpotifyID(spotifyPlaylistID string) (*PlaylistLink, error) {
	query := `
		SELECT spotify_playlist_id, youtube_playlist_id, user_id, name, description, privacy_status, created_at, updated_at
		FROM playlist_links
		WHERE spotify_playlist_id = ?
	`

	var (
		link          PlaylistLink
		userID        sql.NullString
		description   sql.NullString
		privacyStatus sql.NullString
	)

	err := r.db.QueryRow(query, spotifyPlaylistID).Scan(
		&link.SpotifyPlaylistID,
		&link.YouTubePlaylistID,
		&userID,
		&link.Name,
		&description,
		&privacyStatus,
		&link.CreatedAt,
		&link.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan playlist link: %w", err)
	}

	link.UserID = fromNull(userID)
	link.Description = fromNull(description)
	link.PrivacyStatus = fromNull(privacyStatus)

	return &link, nil
}

// Delete removes the link for a Spotify playlist.
func (r *LinkRepository) Delete(spotifyPlaylistID string) error {
	result, err := r.db.Exec("DELETE FROM playlist_links WHERE spotify_playlist_id = ?", spotifyPlaylistID)
	if err != nil {
		return fmt.Errorf("failed to delete playlist link: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("playlist link not found: %s", spotifyPlaylistID)
	}

	return nil
}
