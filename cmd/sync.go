package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/resync/internal/repositories"
	"github.com/desertthunder/resync/internal/shared"
	"github.com/desertthunder/resync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// SyncRun reconciles one Spotify playlist into its linked YouTube playlist.
func (r *Runner) SyncRun(ctx context.Context, cmd *cli.Command) error {
	playlistID := cmd.String("id")
	config := r.loadConfig(cmd)

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	engine, err := r.buildEngine(config, db)
	if err != nil {
		return err
	}

	playlist, err := engine.SourcePlaylist(ctx, playlistID)
	if err != nil {
		return fmt.Errorf("failed to fetch source playlist: %w", err)
	}

	history := repositories.NewHistoryRepository(db)
	record := &repositories.SyncHistory{
		SpotifyPlaylistID: playlistID,
		PlaylistName:      playlist.Name,
		TotalSongs:        playlist.TrackCount,
	}
	if err := history.Claim(record); err != nil {
		if errors.Is(err, shared.ErrSyncInProgress) {
			return fmt.Errorf("a sync is already in progress for playlist %s", playlistID)
		}
		return fmt.Errorf("failed to create sync history: %w", err)
	}

	opts := tasks.DefaultSyncOptions()
	opts.CreateNewPlaylist = cmd.Bool("create-new")
	opts.SkipExisting = cmd.Bool("skip-existing")
	opts.RetryNotFound = cmd.Bool("retry-not-found") || config.Sync.RetryNotFound

	r.writePlain("Syncing %s (%d tracks)...\n\n", playlist.Name, playlist.TrackCount)

	result, err := engine.Sync(ctx, playlistID, opts)
	if err != nil {
		if completeErr := history.Complete(record.ID, repositories.HistoryFailed, "", 0, 0, err.Error()); completeErr != nil {
			r.logger.Error("failed to finalize sync history", "err", completeErr)
		}
		return err
	}

	status := repositories.HistoryCompleted
	if !result.Success {
		status = repositories.HistoryCompletedWithErrors
	}
	if err := history.Complete(record.ID, status, result.TargetPlaylistID, result.SongsSynced, result.SongsFailed, ""); err != nil {
		r.logger.Error("failed to finalize sync history", "err", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, true)
	}

	r.writePlainHeader("Sync Complete")
	r.writePlain("Playlist: %s → %s\n", playlist.Name, result.TargetPlaylistName)
	r.writePlain("Synced: %d  Failed: %d  Skipped: %d  Total: %d\n",
		result.SongsSynced, result.SongsFailed, result.SongsSkipped, result.TotalSongs)

	if len(result.Errors) > 0 {
		r.writePlain("\nErrors:\n")
		for _, trackErr := range result.Errors {
			r.writePlain("  - %s: %s\n", trackErr.Track, trackErr.Error)
		}
	}

	return nil
}

// SyncCheck reports how complete a playlist's sync is without changing
// any local or remote state.
func (r *Runner) SyncCheck(ctx context.Context, cmd *cli.Command) error {
	playlistID := cmd.String("id")
	config := r.loadConfig(cmd)

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	engine, err := r.buildEngine(config, db)
	if err != nil {
		return err
	}

	report, err := engine.Check(ctx, playlistID)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(report, true)
	}

	r.writePlainHeader("Sync Status")
	if !report.Exists {
		r.writePlain("No linked YouTube playlist yet (%d tracks to sync).\n", report.TotalTracks)
		return nil
	}

	r.writePlain("YouTube playlist: %s\n", report.TargetPlaylistName)
	r.writePlain("Synced: %d/%d\n", report.SyncedTracks, report.TotalTracks)
	if report.IsUpToDate {
		r.writePlain("Up to date.\n")
		return nil
	}

	r.writePlain("Missing: %d\n", report.MissingSongs)
	for _, song := range report.MissingSongsList {
		r.writePlain("  - %s - %s\n", song.Artist, song.Name)
	}

	return nil
}

// SyncHistory lists past sync runs.
func (r *Runner) SyncHistory(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	history := repositories.NewHistoryRepository(db)
	records, err := history.List(cmd.String("id"), cmd.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to list sync history: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(records, true)
	}

	if len(records) == 0 {
		r.writePlain("No sync runs recorded.\n")
		return nil
	}

	r.writePlainHeader("Sync History")
	for _, record := range records {
		r.writePlain("%s  %s  %s  synced=%d failed=%d\n",
			record.StartedAt.Format("2006-01-02 15:04"),
			record.Status,
			record.PlaylistName,
			record.SongsSynced,
			record.SongsFailed,
		)
	}

	return nil
}
