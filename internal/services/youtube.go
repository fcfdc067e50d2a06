// YouTube Data API v3 implementation of [TargetService]
//
// Response types follow https://developers.google.com/youtube/v3/docs
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/desertthunder/resync/internal/shared"
	"golang.org/x/oauth2"
)

const youtubeBaseURL = "https://www.googleapis.com/youtube/v3"

// musicCategoryID restricts searches to YouTube's Music category.
const musicCategoryID = "10"

type youtubeSnippet struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	ChannelTitle string `json:"channelTitle"`
}

type youtubeSearchID struct {
	Kind    string `json:"kind"`
	VideoID string `json:"videoId"`
}

type youtubeSearchItem struct {
	ID      youtubeSearchID `json:"id"`
	Snippet youtubeSnippet  `json:"snippet"`
}

type youtubeSearchResponse struct {
	Items []youtubeSearchItem `json:"items"`
}

type youtubeErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

// YouTubeService implements [TargetService] against the YouTube Data API.
//
// A 403 from the API is treated as quota exhaustion and surfaces as
// [shared.ErrQuotaExceeded]; transient 5xx responses on search are retried
// with capped exponential backoff before surfacing.
type YouTubeService struct {
	baseURL    string
	httpClient *http.Client
	maxRetry   time.Duration
}

// NewYouTubeService creates a YouTube client for the given access token.
func NewYouTubeService(accessToken string) (*YouTubeService, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("%w: youtube access token", shared.ErrMissingCredentials)
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	return &YouTubeService{
		baseURL:    youtubeBaseURL,
		httpClient: oauth2.NewClient(context.Background(), src),
		maxRetry:   10 * time.Second,
	}, nil
}

// SetBaseURL overrides the API base URL. Used in tests.
func (y *YouTubeService) SetBaseURL(u string) { y.baseURL = u }

// SetMaxRetry caps the total time spent retrying transient search failures.
func (y *YouTubeService) SetMaxRetry(d time.Duration) { y.maxRetry = d }

func (y *YouTubeService) Name() string { return "YouTube" }

// doRequest performs an authenticated request and decodes the JSON response
// into result. Non-2xx statuses are mapped onto the shared error taxonomy.
func (y *YouTubeService) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, y.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return y.mapError(resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// mapError converts an error response into the shared taxonomy. 403 means
// the request allotment is depleted, matching the catalog's quota signal.
func (y *YouTubeService) mapError(resp *http.Response) error {
	var apiErr youtubeErrorResponse
	detail := ""
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
		detail = ": " + apiErr.Error.Message
	}

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: youtube returned 403%s", shared.ErrQuotaExceeded, detail)
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: youtube returned 401%s", shared.ErrNotAuthenticated, detail)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: youtube returned 404%s", shared.ErrPlaylistNotFound, detail)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: youtube status %d%s (transient)", shared.ErrAPIRequest, resp.StatusCode, detail)
	default:
		return fmt.Errorf("%w: youtube status %d%s", shared.ErrAPIRequest, resp.StatusCode, detail)
	}
}

// Search returns up to maxResults video candidates for a free-text query,
// restricted to the Music category.
//
// Transient 5xx failures are retried with exponential backoff; quota and
// auth failures surface immediately.
func (y *YouTubeService) Search(ctx context.Context, query string, maxResults int) ([]Candidate, error) {
	if maxResults <= 0 {
		maxResults = 3
	}

	endpoint := fmt.Sprintf("/search?part=snippet&type=video&videoCategoryId=%s&maxResults=%d&q=%s",
		musicCategoryID, maxResults, url.QueryEscape(query))

	var response youtubeSearchResponse

	operation := func() error {
		response = youtubeSearchResponse{}
		err := y.doRequest(ctx, http.MethodGet, endpoint, nil, &response)
		if err == nil {
			return nil
		}
		if isTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.WithContext(backoff.NewExponentialBackOff(backoff.WithMaxElapsedTime(y.maxRetry)), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(response.Items))
	for _, item := range response.Items {
		if item.ID.VideoID == "" {
			continue
		}
		candidates = append(candidates, Candidate{
			VideoID:      item.ID.VideoID,
			Title:        item.Snippet.Title,
			ChannelTitle: item.Snippet.ChannelTitle,
		})
	}

	return candidates, nil
}

// isTransient reports whether an error is a retriable server-side failure.
// Quota, auth, and not-found errors are never retried.
func isTransient(err error) bool {
	for _, permanent := range []error{
		shared.ErrQuotaExceeded,
		shared.ErrNotAuthenticated,
		shared.ErrPlaylistNotFound,
	} {
		if errors.Is(err, permanent) {
			return false
		}
	}
	return errors.Is(err, shared.ErrAPIRequest)
}

// CreatePlaylist creates a playlist and returns its ID.
func (y *YouTubeService) CreatePlaylist(ctx context.Context, title, description, privacy string) (string, error) {
	if privacy == "" {
		privacy = "private"
	}

	body := map[string]any{
		"snippet": map[string]string{
			"title":       title,
			"description": description,
		},
		"status": map[string]string{
			"privacyStatus": privacy,
		},
	}

	var created struct {
		ID string `json:"id"`
	}

	if err := y.doRequest(ctx, http.MethodPost, "/playlists?part=snippet,status", body, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", fmt.Errorf("%w: playlist create returned no id", shared.ErrAPIRequest)
	}

	return created.ID, nil
}

// DeletePlaylist removes a playlist by ID.
func (y *YouTubeService) DeletePlaylist(ctx context.Context, playlistID string) error {
	endpoint := fmt.Sprintf("/playlists?id=%s", url.QueryEscape(playlistID))
	return y.doRequest(ctx, http.MethodDelete, endpoint, nil, nil)
}

// InsertItem appends a video to a playlist.
func (y *YouTubeService) InsertItem(ctx context.Context, playlistID, videoID string) error {
	body := map[string]any{
		"snippet": map[string]any{
			"playlistId": playlistID,
			"resourceId": map[string]string{
				"kind":    "youtube#video",
				"videoId": videoID,
			},
		},
	}

	return y.doRequest(ctx, http.MethodPost, "/playlistItems?part=snippet", body, nil)
}
