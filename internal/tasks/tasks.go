package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/resync/internal/matcher"
	"github.com/desertthunder/resync/internal/repositories"
	"github.com/desertthunder/resync/internal/services"
	"github.com/desertthunder/resync/internal/shared"
	"golang.org/x/time/rate"
)

// maxReportedErrors caps the per-track error list carried in a SyncResult.
const maxReportedErrors = 10

// SyncOptions controls how a sync run treats existing state.
type SyncOptions struct {
	// CreateNewPlaylist forces creation of a fresh target playlist,
	// deleting any previously linked one first.
	CreateNewPlaylist bool
	// UpdateExisting re-resolves tracks already matched in a prior run.
	UpdateExisting bool
	// SkipExisting skips tracks already matched even when UpdateExisting
	// is set.
	SkipExisting bool
	// RetryNotFound re-queries tracks previously recorded as not_found.
	// Off by default: the target index rarely gains a match, and each
	// retry spends search quota.
	RetryNotFound bool
}

// DefaultSyncOptions returns the option set used when the caller supplies none.
func DefaultSyncOptions() SyncOptions {
	return SyncOptions{UpdateExisting: true}
}

// TrackError is one per-track failure surfaced in a SyncResult.
type TrackError struct {
	Track string `json:"track"`
	Error string `json:"error"`
}

// SyncResult aggregates the outcome of one sync run.
type SyncResult struct {
	Success            bool         `json:"success"`
	TargetPlaylistID   string       `json:"youtubePlaylistId"`
	TargetPlaylistName string       `json:"youtubePlaylistName"`
	SongsSynced        int          `json:"songsSynced"`
	SongsFailed        int          `json:"songsFailed"`
	SongsSkipped       int          `json:"songsSkipped"`
	TotalSongs         int          `json:"totalSongs"`
	Errors             []TrackError `json:"errors,omitempty"`
}

// EngineOpts contains configuration for building an Engine.
type EngineOpts struct {
	Source   services.SourceService
	Target   services.TargetService
	Mappings *repositories.MappingRepository
	Links    *repositories.LinkRepository
	Logger   *log.Logger

	// RateLimit is the outbound request budget toward the target catalog
	// in requests per second. Defaults to 6.5 (roughly the original
	// 150ms inter-track delay).
	RateLimit float64
	// SearchLimit is the number of candidates requested per track.
	// Defaults to 3.
	SearchLimit int
	// PrivacyStatus for created target playlists. Defaults to "private".
	PrivacyStatus string
	// UserID attributed to playlist links created by this engine.
	UserID string
}

// Engine orchestrates one playlist's reconciliation.
type Engine struct {
	source   services.SourceService
	target   services.TargetService
	mappings *repositories.MappingRepository
	links    *repositories.LinkRepository
	limiter  *rate.Limiter
	logger   *log.Logger

	searchLimit int
	privacy     string
	userID      string
}

// NewEngine creates an Engine with the provided collaborators.
func NewEngine(opts EngineOpts) *Engine {
	if opts.RateLimit <= 0 {
		opts.RateLimit = 6.5
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = 3
	}
	if opts.PrivacyStatus == "" {
		opts.PrivacyStatus = "private"
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Engine{
		source:      opts.Source,
		target:      opts.Target,
		mappings:    opts.Mappings,
		links:       opts.Links,
		limiter:     rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
		logger:      opts.Logger,
		searchLimit: opts.SearchLimit,
		privacy:     opts.PrivacyStatus,
		userID:      opts.UserID,
	}
}

// SourcePlaylist retrieves source playlist metadata. Exposed for callers
// that need the name before starting a sync (history records).
func (e *Engine) SourcePlaylist(ctx context.Context, spotifyPlaylistID string) (*services.SourcePlaylist, error) {
	return e.source.GetPlaylist(ctx, spotifyPlaylistID)
}

// Sync reconciles one Spotify playlist into its linked YouTube playlist.
//
// Per-track failures are recorded and the loop continues; a quota-exceeded
// signal from the target aborts the remaining loop and propagates. Mappings
// written before an abort stay persisted.
func (e *Engine) Sync(ctx context.Context, spotifyPlaylistID string, opts SyncOptions) (*SyncResult, error) {
	playlist, err := e.source.GetPlaylist(ctx, spotifyPlaylistID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch source playlist: %w", err)
	}

	tracks, err := e.source.GetAllTracks(ctx, spotifyPlaylistID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch source tracks: %w", err)
	}
	e.logger.Info("fetched source playlist", "playlist", playlist.Name, "tracks", len(tracks))

	link, err := e.resolveLink(ctx, playlist, opts)
	if err != nil {
		return nil, err
	}

	current, err := e.mappings.Current(spotifyPlaylistID, link.YouTubePlaylistID)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing mappings: %w", err)
	}

	result := &SyncResult{
		TargetPlaylistID:   link.YouTubePlaylistID,
		TargetPlaylistName: link.Name,
		TotalSongs:         len(tracks),
	}

	for _, track := range tracks {
		if skip := e.classify(current, track, opts); skip {
			result.SongsSkipped++
			continue
		}

		err := e.resolveTrack(ctx, spotifyPlaylistID, link.YouTubePlaylistID, track, result)
		if err != nil {
			// Quota exhaustion is fatal: stop the loop, keep what was
			// already persisted, and let the caller mark the run failed.
			return nil, err
		}

		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("sync interrupted: %w", err)
		}
	}

	result.Success = result.SongsFailed == 0
	e.logger.Info("sync completed",
		"playlist", playlist.Name,
		"synced", result.SongsSynced,
		"failed", result.SongsFailed,
		"skipped", result.SongsSkipped,
	)

	return result, nil
}

// resolveLink finds or creates the YouTube playlist linked to the source
// playlist. With CreateNewPlaylist set, an existing linked playlist is
// deleted before the new one is created; the delete-create window is not
// transactional.
func (e *Engine) resolveLink(ctx context.Context, playlist *services.SourcePlaylist, opts SyncOptions) (*repositories.PlaylistLink, error) {
	link, err := e.links.GetBySpotifyID(playlist.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up playlist link: %w", err)
	}

	if link != nil && !opts.CreateNewPlaylist {
		e.logger.Debug("using existing target playlist", "youtube_playlist_id", link.YouTubePlaylistID)
		return link, nil
	}

	if link != nil {
		if err := e.target.DeletePlaylist(ctx, link.YouTubePlaylistID); err != nil {
			return nil, fmt.Errorf("failed to delete previous target playlist: %w", err)
		}
	}

	title := fmt.Sprintf("%s (Synced from Spotify)", playlist.Name)
	description := playlist.Description
	if description == "" {
		description = fmt.Sprintf("Synced playlist from Spotify: %s", playlist.Name)
	}

	youtubeID, err := e.target.CreatePlaylist(ctx, title, description, e.privacy)
	if err != nil {
		return nil, fmt.Errorf("failed to create target playlist: %w", err)
	}

	link = &repositories.PlaylistLink{
		SpotifyPlaylistID: playlist.ID,
		YouTubePlaylistID: youtubeID,
		UserID:            e.userID,
		Name:              title,
		Description:       description,
		PrivacyStatus:     e.privacy,
	}
	if err := e.links.Save(link); err != nil {
		return nil, fmt.Errorf("failed to save playlist link: %w", err)
	}

	e.logger.Info("created target playlist", "youtube_playlist_id", youtubeID, "title", title)
	return link, nil
}

// classify decides whether a track can be skipped based on its current
// mapping status and the run's options.
func (e *Engine) classify(current map[string]repositories.SongMapping, track services.SourceTrack, opts SyncOptions) bool {
	mapping, ok := current[track.ID]
	if !ok {
		return false
	}

	switch mapping.SyncStatus {
	case repositories.StatusMatched:
		if opts.SkipExisting || !opts.UpdateExisting {
			e.logger.Debug("skipping already synced track", "track", track.Title)
			return true
		}
	case repositories.StatusNotFound:
		if !opts.RetryNotFound {
			e.logger.Debug("skipping track previously not found", "track", track.Title)
			return true
		}
	}

	return false
}

// resolveTrack searches the target catalog for one track, scores the
// candidates, and persists the attempt. Only quota exhaustion (or a dead
// context) is returned as an error; anything else is folded into result.
func (e *Engine) resolveTrack(ctx context.Context, spotifyPlaylistID, youtubePlaylistID string, track services.SourceTrack, result *SyncResult) error {
	matched, err := e.matchAndInsert(ctx, youtubePlaylistID, track)

	mapping := repositories.SongMapping{
		SpotifyPlaylistID: spotifyPlaylistID,
		YouTubePlaylistID: youtubePlaylistID,
		SpotifyTrackID:    track.ID,
		SpotifyTrackName:  track.Title,
		SpotifyArtistName: track.Artist,
	}

	switch {
	case err == nil && matched != nil:
		mapping.SyncStatus = repositories.StatusMatched
		mapping.YouTubeVideoID = matched.VideoID
		mapping.YouTubeVideoTitle = matched.Title
		mapping.YouTubeChannelTitle = matched.ChannelTitle
		result.SongsSynced++
		e.logger.Info("synced track", "track", track.Title, "artist", track.Artist)

	case err == nil:
		// No candidate cleared the threshold. A not_found row is terminal
		// under the default retry policy.
		mapping.SyncStatus = repositories.StatusNotFound
		result.SongsFailed++
		result.SongsSkipped++
		e.logger.Warn("no match found", "track", track.Title, "artist", track.Artist)

	case errors.Is(err, shared.ErrQuotaExceeded), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err

	default:
		mapping.SyncStatus = repositories.StatusError
		mapping.ErrorMessage = err.Error()
		result.SongsFailed++
		if len(result.Errors) < maxReportedErrors {
			result.Errors = append(result.Errors, TrackError{Track: track.Title, Error: err.Error()})
		}
		e.logger.Error("failed to sync track", "track", track.Title, "err", err)
	}

	if err := e.mappings.Append(&mapping); err != nil {
		return fmt.Errorf("failed to persist mapping for %s: %w", track.ID, err)
	}

	return nil
}

// matchAndInsert runs the search-score-insert pipeline for one track.
// Returns (nil, nil) when no candidate clears the acceptance threshold.
func (e *Engine) matchAndInsert(ctx context.Context, youtubePlaylistID string, track services.SourceTrack) (*services.Candidate, error) {
	candidates, err := e.target.Search(ctx, matcher.Query(track), e.searchLimit)
	if err != nil {
		return nil, err
	}

	best, score, found := matcher.Best(candidates, track)
	if !found || !matcher.Acceptable(score) {
		return nil, nil
	}

	if err := e.target.InsertItem(ctx, youtubePlaylistID, best.VideoID); err != nil {
		return nil, err
	}

	return &best, nil
}
