// Spotify implementation of [SourceService]
//
// Response types follow https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/desertthunder/resync/internal/shared"
	"golang.org/x/oauth2"
)

const spotifyBaseURL = "https://api.spotify.com/v1"

// LikedSongsID is the pseudo-playlist identifier for the user's saved
// tracks. [SpotifyService.GetAllTracks] switches to the saved-tracks
// endpoint when it sees this ID.
const LikedSongsID = "liked_songs"

const (
	playlistPageSize = 100
	savedPageSize    = 50
)

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Artists []SpotifyArtist `json:"artists"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
type SpotifyPlaylistTrack struct {
	AddedAt string       `json:"added_at"`
	Track   SpotifyTrack `json:"track"`
}

// SpotifyPaginatedTracks represents one page of playlist or saved tracks.
type SpotifyPaginatedTracks struct {
	Items  []SpotifyPlaylistTrack `json:"items"`
	Total  int                    `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
	Next   *string                `json:"next"`
}

type playlistTracks struct {
	Total int `json:"total"`
}

// SpotifyPlaylist represents a Spotify playlist.
type SpotifyPlaylist struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Tracks      playlistTracks `json:"tracks"`
}

// SpotifyService implements [SourceService] against the Spotify Web API.
//
// The client is built around a bearer token carried by an [oauth2] static
// token source; it is constructed fresh per sync invocation.
type SpotifyService struct {
	baseURL    string
	httpClient *http.Client
}

// NewSpotifyService creates a Spotify client for the given access token.
func NewSpotifyService(accessToken string) (*SpotifyService, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("%w: spotify access token", shared.ErrMissingCredentials)
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	return &SpotifyService{
		baseURL:    spotifyBaseURL,
		httpClient: oauth2.NewClient(context.Background(), src),
	}, nil
}

// SetBaseURL overrides the API base URL. Used in tests.
func (s *SpotifyService) SetBaseURL(u string) { s.baseURL = u }

func (s *SpotifyService) Name() string { return "Spotify" }

// doRequest performs an authenticated GET against the Spotify API and
// decodes the JSON response into result.
func (s *SpotifyService) doRequest(ctx context.Context, endpoint string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: spotify returned 401", shared.ErrNotAuthenticated)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: spotify returned 404", shared.ErrPlaylistNotFound)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: spotify status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// Playlist retrieves a raw playlist object by ID.
func (s *SpotifyService) Playlist(ctx context.Context, playlistID string) (*SpotifyPlaylist, error) {
	var playlist SpotifyPlaylist
	endpoint := fmt.Sprintf("/playlists/%s", url.PathEscape(playlistID))
	if err := s.doRequest(ctx, endpoint, &playlist); err != nil {
		return nil, err
	}
	return &playlist, nil
}

// PlaylistTracks retrieves one page of a playlist's tracks.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, playlistID string, limit, offset int) (*SpotifyPaginatedTracks, error) {
	endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=%d", url.PathEscape(playlistID), limit, offset)

	var page SpotifyPaginatedTracks
	if err := s.doRequest(ctx, endpoint, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// SavedTracks retrieves one page of the user's saved tracks.
func (s *SpotifyService) SavedTracks(ctx context.Context, limit, offset int) (*SpotifyPaginatedTracks, error) {
	endpoint := fmt.Sprintf("/me/tracks?limit=%d&offset=%d", limit, offset)

	var page SpotifyPaginatedTracks
	if err := s.doRequest(ctx, endpoint, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// SourceService interface implementation

// GetPlaylist retrieves playlist metadata by ID.
//
// The liked_songs pseudo-playlist reports its track count from the first
// saved-tracks page.
func (s *SpotifyService) GetPlaylist(ctx context.Context, playlistID string) (*SourcePlaylist, error) {
	if playlistID == LikedSongsID {
		page, err := s.SavedTracks(ctx, 1, 0)
		if err != nil {
			return nil, err
		}
		return &SourcePlaylist{
			ID:         LikedSongsID,
			Name:       "Liked Songs",
			TrackCount: page.Total,
		}, nil
	}

	sp, err := s.Playlist(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	return &SourcePlaylist{
		ID:          sp.ID,
		Name:        sp.Name,
		Description: sp.Description,
		TrackCount:  sp.Tracks.Total,
	}, nil
}

// GetAllTracks retrieves the complete, ordered track list for a playlist.
//
// Pagination continues until the response reports no next page. For
// liked_songs the saved-tracks endpoint is paged instead, ending on the
// first short page.
func (s *SpotifyService) GetAllTracks(ctx context.Context, playlistID string) ([]SourceTrack, error) {
	if playlistID == LikedSongsID {
		return s.allSavedTracks(ctx)
	}

	var all []SourceTrack
	offset := 0

	for {
		page, err := s.PlaylistTracks(ctx, playlistID, playlistPageSize, offset)
		if err != nil {
			return nil, err
		}

		all = append(all, flattenTracks(page.Items, playlistID)...)

		if page.Next == nil {
			break
		}
		offset += playlistPageSize
	}

	return all, nil
}

func (s *SpotifyService) allSavedTracks(ctx context.Context) ([]SourceTrack, error) {
	var all []SourceTrack
	offset := 0

	for {
		page, err := s.SavedTracks(ctx, savedPageSize, offset)
		if err != nil {
			return nil, err
		}

		all = append(all, flattenTracks(page.Items, LikedSongsID)...)

		if len(page.Items) < savedPageSize {
			break
		}
		offset += savedPageSize
	}

	return all, nil
}

// flattenTracks maps raw playlist items onto [SourceTrack], keeping the
// primary artist only.
func flattenTracks(items []SpotifyPlaylistTrack, playlistID string) []SourceTrack {
	tracks := make([]SourceTrack, 0, len(items))
	for _, item := range items {
		track := SourceTrack{
			ID:         item.Track.ID,
			Title:      item.Track.Name,
			PlaylistID: playlistID,
		}
		if len(item.Track.Artists) > 0 {
			track.Artist = item.Track.Artists[0].Name
		}
		tracks = append(tracks, track)
	}
	return tracks
}
