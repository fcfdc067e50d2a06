package tasks

import (
	"context"
	"fmt"
	"testing"

	"github.com/desertthunder/resync/internal/repositories"
	"github.com/desertthunder/resync/internal/services"
)

func TestEngine_Check(t *testing.T) {
	t.Run("unlinked playlist needs a full sync", func(t *testing.T) {
		source := &mockSource{
			playlist: &services.SourcePlaylist{ID: "sp1", Name: "Road Trip", TrackCount: 7},
		}
		f := newFixture(t, source, &mockTarget{})

		report, err := f.engine.Check(context.Background(), "sp1")
		if err != nil {
			t.Fatalf("Check() error = %v", err)
		}

		if report.Exists {
			t.Error("exists = true, want false")
		}
		if !report.NeedsSync {
			t.Error("needsSync = false, want true")
		}
		if report.TotalTracks != 7 || report.MissingSongs != 7 || report.SyncedTracks != 0 {
			t.Errorf("counts = total %d missing %d synced %d, want 7/7/0", report.TotalTracks, report.MissingSongs, report.SyncedTracks)
		}
	})

	t.Run("partial sync reports missing tracks", func(t *testing.T) {
		var tracks []services.SourceTrack
		for i := 0; i < 7; i++ {
			tracks = append(tracks, services.SourceTrack{
				ID:     fmt.Sprintf("t%d", i),
				Title:  fmt.Sprintf("Song %d", i),
				Artist: "Artist",
			})
		}
		source := &mockSource{
			playlist: &services.SourcePlaylist{ID: "sp1", Name: "Road Trip", TrackCount: 7},
			tracks:   tracks,
		}
		f := newFixture(t, source, &mockTarget{})

		if err := f.links.Save(&repositories.PlaylistLink{SpotifyPlaylistID: "sp1", YouTubePlaylistID: "yt1", Name: "Road Trip (Synced from Spotify)"}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		for i := 0; i < 5; i++ {
			err := f.mappings.Append(&repositories.SongMapping{
				SpotifyPlaylistID: "sp1",
				YouTubePlaylistID: "yt1",
				SpotifyTrackID:    fmt.Sprintf("t%d", i),
				SpotifyTrackName:  fmt.Sprintf("Song %d", i),
				SpotifyArtistName: "Artist",
				YouTubeVideoID:    fmt.Sprintf("v%d", i),
				SyncStatus:        repositories.StatusMatched,
			})
			if err != nil {
				t.Fatalf("Append() error = %v", err)
			}
		}

		report, err := f.engine.Check(context.Background(), "sp1")
		if err != nil {
			t.Fatalf("Check() error = %v", err)
		}

		if !report.Exists {
			t.Error("exists = false, want true")
		}
		if report.SyncedTracks != 5 || report.MissingSongs != 2 {
			t.Errorf("counts = synced %d missing %d, want 5/2", report.SyncedTracks, report.MissingSongs)
		}
		if report.IsUpToDate || !report.NeedsSync {
			t.Errorf("isUpToDate = %v needsSync = %v, want false/true", report.IsUpToDate, report.NeedsSync)
		}
		if report.TargetPlaylistID != "yt1" {
			t.Errorf("youtube playlist = %q, want yt1", report.TargetPlaylistID)
		}
		if len(report.MissingSongsList) != 2 {
			t.Errorf("missing list = %d entries, want 2", len(report.MissingSongsList))
		}
	})

	t.Run("not_found and error rows count as missing", func(t *testing.T) {
		tracks := []services.SourceTrack{
			{ID: "t1", Title: "Song 1", Artist: "Artist"},
			{ID: "t2", Title: "Song 2", Artist: "Artist"},
		}
		source := &mockSource{
			playlist: &services.SourcePlaylist{ID: "sp1", Name: "P", TrackCount: 2},
			tracks:   tracks,
		}
		f := newFixture(t, source, &mockTarget{})

		if err := f.links.Save(&repositories.PlaylistLink{SpotifyPlaylistID: "sp1", YouTubePlaylistID: "yt1", Name: "n"}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		for id, status := range map[string]repositories.SyncStatus{
			"t1": repositories.StatusNotFound,
			"t2": repositories.StatusError,
		} {
			err := f.mappings.Append(&repositories.SongMapping{
				SpotifyPlaylistID: "sp1",
				YouTubePlaylistID: "yt1",
				SpotifyTrackID:    id,
				SpotifyTrackName:  id,
				SpotifyArtistName: "Artist",
				SyncStatus:        status,
			})
			if err != nil {
				t.Fatalf("Append() error = %v", err)
			}
		}

		report, err := f.engine.Check(context.Background(), "sp1")
		if err != nil {
			t.Fatalf("Check() error = %v", err)
		}
		if report.MissingSongs != 2 || report.SyncedTracks != 0 {
			t.Errorf("counts = missing %d synced %d, want 2/0", report.MissingSongs, report.SyncedTracks)
		}
	})

	t.Run("missing sample caps at five", func(t *testing.T) {
		var tracks []services.SourceTrack
		for i := 0; i < 9; i++ {
			tracks = append(tracks, services.SourceTrack{
				ID:     fmt.Sprintf("t%d", i),
				Title:  fmt.Sprintf("Song %d", i),
				Artist: "Artist",
			})
		}
		source := &mockSource{
			playlist: &services.SourcePlaylist{ID: "sp1", Name: "P", TrackCount: 9},
			tracks:   tracks,
		}
		f := newFixture(t, source, &mockTarget{})

		if err := f.links.Save(&repositories.PlaylistLink{SpotifyPlaylistID: "sp1", YouTubePlaylistID: "yt1", Name: "n"}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		report, err := f.engine.Check(context.Background(), "sp1")
		if err != nil {
			t.Fatalf("Check() error = %v", err)
		}
		if report.MissingSongs != 9 {
			t.Errorf("missing = %d, want 9", report.MissingSongs)
		}
		if len(report.MissingSongsList) != 5 {
			t.Errorf("missing list = %d entries, want cap of 5", len(report.MissingSongsList))
		}
	})

	t.Run("fully synced playlist is up to date", func(t *testing.T) {
		tracks := []services.SourceTrack{{ID: "t1", Title: "Song 1", Artist: "Artist"}}
		source := &mockSource{
			playlist: &services.SourcePlaylist{ID: "sp1", Name: "P", TrackCount: 1},
			tracks:   tracks,
		}
		f := newFixture(t, source, &mockTarget{})

		if err := f.links.Save(&repositories.PlaylistLink{SpotifyPlaylistID: "sp1", YouTubePlaylistID: "yt1", Name: "n"}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		err := f.mappings.Append(&repositories.SongMapping{
			SpotifyPlaylistID: "sp1",
			YouTubePlaylistID: "yt1",
			SpotifyTrackID:    "t1",
			SpotifyTrackName:  "Song 1",
			SpotifyArtistName: "Artist",
			YouTubeVideoID:    "v1",
			SyncStatus:        repositories.StatusMatched,
		})
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}

		report, err := f.engine.Check(context.Background(), "sp1")
		if err != nil {
			t.Fatalf("Check() error = %v", err)
		}
		if !report.IsUpToDate || report.NeedsSync {
			t.Errorf("isUpToDate = %v needsSync = %v, want true/false", report.IsUpToDate, report.NeedsSync)
		}
	})

	t.Run("Check never touches the target catalog or the store", func(t *testing.T) {
		tracks := []services.SourceTrack{{ID: "t1", Title: "Song 1", Artist: "Artist"}}
		source := &mockSource{
			playlist: &services.SourcePlaylist{ID: "sp1", Name: "P", TrackCount: 1},
			tracks:   tracks,
		}
		target := &mockTarget{}
		f := newFixture(t, source, target)

		if err := f.links.Save(&repositories.PlaylistLink{SpotifyPlaylistID: "sp1", YouTubePlaylistID: "yt1", Name: "n"}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		for i := 0; i < 2; i++ {
			if _, err := f.engine.Check(context.Background(), "sp1"); err != nil {
				t.Fatalf("Check() error = %v", err)
			}
		}

		if len(target.searchCalls) != 0 || len(target.createdCalls) != 0 || len(target.inserted) != 0 {
			t.Error("Check() should not call the target catalog")
		}
		count, err := f.mappings.Count("sp1", "yt1")
		if err != nil {
			t.Fatalf("Count() error = %v", err)
		}
		if count != 0 {
			t.Errorf("mapping rows = %d, want 0 after Check", count)
		}
	})
}
