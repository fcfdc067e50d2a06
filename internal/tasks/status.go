package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/resync/internal/repositories"
)

// maxSampleMissing caps the sample of missing tracks in a StatusReport.
const maxSampleMissing = 5

// MissingSong identifies one source track with no current match.
type MissingSong struct {
	Name   string `json:"name"`
	Artist string `json:"artist"`
}

// StatusReport describes how complete a playlist's sync is.
type StatusReport struct {
	Exists             bool          `json:"exists"`
	NeedsSync          bool          `json:"needsSync"`
	IsUpToDate         bool          `json:"isUpToDate"`
	TotalTracks        int           `json:"totalTracks"`
	SyncedTracks       int           `json:"syncedTracks"`
	MissingSongs       int           `json:"missingSongs"`
	TargetPlaylistID   string        `json:"youtubePlaylistId,omitempty"`
	TargetPlaylistName string        `json:"youtubePlaylistName,omitempty"`
	MissingSongsList   []MissingSong `json:"missingSongsList,omitempty"`
}

// Check computes sync completeness for a playlist without mutating
// anything: no mapping rows are appended, no link is created, and the
// target catalog is never touched.
func (e *Engine) Check(ctx context.Context, spotifyPlaylistID string) (*StatusReport, error) {
	link, err := e.links.GetBySpotifyID(spotifyPlaylistID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up playlist link: %w", err)
	}

	if link == nil {
		playlist, err := e.source.GetPlaylist(ctx, spotifyPlaylistID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch source playlist: %w", err)
		}
		return &StatusReport{
			Exists:       false,
			NeedsSync:    true,
			TotalTracks:  playlist.TrackCount,
			SyncedTracks: 0,
			MissingSongs: playlist.TrackCount,
		}, nil
	}

	tracks, err := e.source.GetAllTracks(ctx, spotifyPlaylistID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch source tracks: %w", err)
	}

	current, err := e.mappings.Current(spotifyPlaylistID, link.YouTubePlaylistID)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing mappings: %w", err)
	}

	report := &StatusReport{
		Exists:             true,
		TotalTracks:        len(tracks),
		TargetPlaylistID:   link.YouTubePlaylistID,
		TargetPlaylistName: link.Name,
	}

	for _, track := range tracks {
		mapping, ok := current[track.ID]
		if ok && mapping.SyncStatus == repositories.StatusMatched {
			report.SyncedTracks++
			continue
		}

		report.MissingSongs++
		if len(report.MissingSongsList) < maxSampleMissing {
			report.MissingSongsList = append(report.MissingSongsList, MissingSong{
				Name:   track.Title,
				Artist: track.Artist,
			})
		}
	}

	report.IsUpToDate = report.MissingSongs == 0
	report.NeedsSync = !report.IsUpToDate

	return report, nil
}
