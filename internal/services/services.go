package services

import "context"

// SourcePlaylist is the metadata snapshot of a playlist in the source catalog.
type SourcePlaylist struct {
	ID          string
	Name        string
	Description string
	TrackCount  int
}

// SourceTrack is one track in a source playlist, pulled fresh each run.
type SourceTrack struct {
	ID         string
	Title      string
	Artist     string // primary artist only
	PlaylistID string
}

// Candidate is a transient search result from the target catalog.
// Candidates are scored by the matcher and never persisted directly.
type Candidate struct {
	VideoID      string
	Title        string
	ChannelTitle string
}

// SourceService provides read access to the source catalog.
type SourceService interface {
	// GetPlaylist retrieves playlist metadata by ID.
	GetPlaylist(ctx context.Context, playlistID string) (*SourcePlaylist, error)

	// GetAllTracks retrieves the complete, ordered track list for a playlist,
	// paginating until the API reports no further pages. The pseudo-playlist
	// ID "liked_songs" reads the user's saved tracks instead.
	GetAllTracks(ctx context.Context, playlistID string) ([]SourceTrack, error)

	// Name returns the catalog name (e.g. "Spotify")
	Name() string
}

// TargetService provides search and playlist mutation against the target catalog.
type TargetService interface {
	// Search returns up to maxResults candidates for a free-text query.
	Search(ctx context.Context, query string, maxResults int) ([]Candidate, error)

	// CreatePlaylist creates a playlist and returns its ID.
	CreatePlaylist(ctx context.Context, title, description, privacy string) (string, error)

	// DeletePlaylist removes a playlist by ID.
	DeletePlaylist(ctx context.Context, playlistID string) error

	// InsertItem appends a video to a playlist.
	InsertItem(ctx context.Context, playlistID, videoID string) error

	// Name returns the catalog name (e.g. "YouTube")
	Name() string
}
