package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/resync/internal/repositories"
	"github.com/desertthunder/resync/internal/services"
	"github.com/desertthunder/resync/internal/shared"
	"github.com/desertthunder/resync/internal/tasks"
)

type mockSyncer struct {
	playlist    *services.SourcePlaylist
	playlistErr error
	result      *tasks.SyncResult
	syncErr     error
	report      *tasks.StatusReport
	checkErr    error

	syncOpts *tasks.SyncOptions
}

func (m *mockSyncer) SourcePlaylist(ctx context.Context, spotifyPlaylistID string) (*services.SourcePlaylist, error) {
	if m.playlistErr != nil {
		return nil, m.playlistErr
	}
	return m.playlist, nil
}

func (m *mockSyncer) Sync(ctx context.Context, spotifyPlaylistID string, opts tasks.SyncOptions) (*tasks.SyncResult, error) {
	m.syncOpts = &opts
	if m.syncErr != nil {
		return nil, m.syncErr
	}
	return m.result, nil
}

func (m *mockSyncer) Check(ctx context.Context, spotifyPlaylistID string) (*tasks.StatusReport, error) {
	if m.checkErr != nil {
		return nil, m.checkErr
	}
	return m.report, nil
}

func newTestHandler(t *testing.T, syncer *mockSyncer, factoryErr error) (*SyncHandler, *repositories.HistoryRepository, *sql.DB) {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	history := repositories.NewHistoryRepository(db)
	factory := func() (Syncer, error) {
		if factoryErr != nil {
			return nil, factoryErr
		}
		return syncer, nil
	}

	return NewSyncHandler(factory, history, nil), history, db
}

func postJSON(t *testing.T, handler http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestSyncHandler_Sync(t *testing.T) {
	playlist := &services.SourcePlaylist{ID: "sp1", Name: "Road Trip", TrackCount: 3}

	t.Run("successful sync", func(t *testing.T) {
		syncer := &mockSyncer{
			playlist: playlist,
			result: &tasks.SyncResult{
				Success:          true,
				TargetPlaylistID: "yt1",
				SongsSynced:      3,
				TotalSongs:       3,
			},
		}
		handler, history, _ := newTestHandler(t, syncer, nil)

		rec := postJSON(t, handler, "/sync", `{"playlistId":"sp1"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
		}

		records, err := history.List("sp1", 10)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(records) != 1 {
			t.Fatalf("history records = %d, want 1", len(records))
		}
		if records[0].Status != repositories.HistoryCompleted {
			t.Errorf("history status = %q, want completed", records[0].Status)
		}
		if records[0].SongsSynced != 3 {
			t.Errorf("history synced = %d, want 3", records[0].SongsSynced)
		}
		if records[0].YouTubePlaylistID != "yt1" {
			t.Errorf("history youtube id = %q, want yt1", records[0].YouTubePlaylistID)
		}
	})

	t.Run("partial failure completes with errors", func(t *testing.T) {
		syncer := &mockSyncer{
			playlist: playlist,
			result: &tasks.SyncResult{
				Success:     false,
				SongsSynced: 2,
				SongsFailed: 1,
				TotalSongs:  3,
			},
		}
		handler, history, _ := newTestHandler(t, syncer, nil)

		rec := postJSON(t, handler, "/sync", `{"playlistId":"sp1"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}

		records, _ := history.List("sp1", 10)
		if records[0].Status != repositories.HistoryCompletedWithErrors {
			t.Errorf("history status = %q, want completed_with_errors", records[0].Status)
		}
	})

	t.Run("request options pass through", func(t *testing.T) {
		syncer := &mockSyncer{playlist: playlist, result: &tasks.SyncResult{Success: true}}
		handler, _, _ := newTestHandler(t, syncer, nil)

		rec := postJSON(t, handler, "/sync", `{"playlistId":"sp1","createNewPlaylist":true,"skipExisting":true,"retryNotFound":true}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}

		if syncer.syncOpts == nil {
			t.Fatal("Sync was not called")
		}
		if !syncer.syncOpts.CreateNewPlaylist || !syncer.syncOpts.SkipExisting || !syncer.syncOpts.RetryNotFound {
			t.Errorf("options = %+v, want all set", syncer.syncOpts)
		}
		if !syncer.syncOpts.UpdateExisting {
			t.Error("UpdateExisting should stay on by default")
		}
	})

	t.Run("missing playlist id returns 400", func(t *testing.T) {
		handler, _, _ := newTestHandler(t, &mockSyncer{}, nil)

		rec := postJSON(t, handler, "/sync", `{}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("malformed body returns 400", func(t *testing.T) {
		handler, _, _ := newTestHandler(t, &mockSyncer{}, nil)

		rec := postJSON(t, handler, "/sync", `{not json`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("missing credentials returns 401", func(t *testing.T) {
		handler, _, _ := newTestHandler(t, nil, fmt.Errorf("%w: no tokens", shared.ErrMissingCredentials))

		rec := postJSON(t, handler, "/sync", `{"playlistId":"sp1"}`)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("unknown playlist returns 404", func(t *testing.T) {
		syncer := &mockSyncer{playlistErr: fmt.Errorf("%w: sp1", shared.ErrPlaylistNotFound)}
		handler, _, _ := newTestHandler(t, syncer, nil)

		rec := postJSON(t, handler, "/sync", `{"playlistId":"sp1"}`)
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("concurrent sync returns 409", func(t *testing.T) {
		syncer := &mockSyncer{playlist: playlist, result: &tasks.SyncResult{Success: true}}
		handler, history, _ := newTestHandler(t, syncer, nil)

		record := repositories.SyncHistory{SpotifyPlaylistID: "sp1", PlaylistName: "Road Trip", TotalSongs: 3}
		if err := history.Claim(&record); err != nil {
			t.Fatalf("Claim() error = %v", err)
		}

		rec := postJSON(t, handler, "/sync", `{"playlistId":"sp1"}`)
		if rec.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", rec.Code)
		}
	})

	t.Run("fatal sync error marks history failed and returns 500", func(t *testing.T) {
		syncer := &mockSyncer{
			playlist: playlist,
			syncErr:  fmt.Errorf("%w: daily limit", shared.ErrQuotaExceeded),
		}
		handler, history, _ := newTestHandler(t, syncer, nil)

		rec := postJSON(t, handler, "/sync", `{"playlistId":"sp1"}`)
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", rec.Code)
		}

		records, _ := history.List("sp1", 10)
		if len(records) != 1 {
			t.Fatalf("history records = %d, want 1", len(records))
		}
		if records[0].Status != repositories.HistoryFailed {
			t.Errorf("history status = %q, want failed", records[0].Status)
		}
		if !strings.Contains(records[0].ErrorMessage, "limit") {
			t.Errorf("history error = %q, want the sync error", records[0].ErrorMessage)
		}
	})

	t.Run("GET is not allowed", func(t *testing.T) {
		handler, _, _ := newTestHandler(t, &mockSyncer{}, nil)

		req := httptest.NewRequest(http.MethodGet, "/sync", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("status = %d, want 405", rec.Code)
		}
	})
}

func TestSyncHandler_Check(t *testing.T) {
	t.Run("returns the status report", func(t *testing.T) {
		syncer := &mockSyncer{
			report: &tasks.StatusReport{
				Exists:       true,
				NeedsSync:    true,
				TotalTracks:  7,
				SyncedTracks: 5,
				MissingSongs: 2,
			},
		}
		handler, _, _ := newTestHandler(t, syncer, nil)

		rec := postJSON(t, handler, "/sync/check", `{"playlistId":"sp1"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}

		var report tasks.StatusReport
		if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if report.SyncedTracks != 5 || report.MissingSongs != 2 {
			t.Errorf("report = %+v", report)
		}
	})

	t.Run("missing playlist id returns 400", func(t *testing.T) {
		handler, _, _ := newTestHandler(t, &mockSyncer{}, nil)

		rec := postJSON(t, handler, "/sync/check", `{}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("unknown playlist returns 404", func(t *testing.T) {
		syncer := &mockSyncer{checkErr: fmt.Errorf("%w: sp1", shared.ErrPlaylistNotFound)}
		handler, _, _ := newTestHandler(t, syncer, nil)

		rec := postJSON(t, handler, "/sync/check", `{"playlistId":"sp1"}`)
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})
}

func TestSyncHandler_History(t *testing.T) {
	seed := func(t *testing.T, history *repositories.HistoryRepository, playlistID string, n int) {
		t.Helper()
		for i := 0; i < n; i++ {
			record := repositories.SyncHistory{SpotifyPlaylistID: playlistID, PlaylistName: "P", TotalSongs: i}
			if err := history.Claim(&record); err != nil {
				t.Fatalf("Claim() error = %v", err)
			}
			if err := history.Complete(record.ID, repositories.HistoryCompleted, "yt1", i, 0, ""); err != nil {
				t.Fatalf("Complete() error = %v", err)
			}
		}
	}

	t.Run("lists records", func(t *testing.T) {
		handler, history, _ := newTestHandler(t, &mockSyncer{}, nil)
		seed(t, history, "sp1", 3)

		req := httptest.NewRequest(http.MethodGet, "/sync/history?limit=2", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}

		var body struct {
			History []repositories.SyncHistory `json:"history"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(body.History) != 2 {
			t.Errorf("history entries = %d, want 2", len(body.History))
		}
	})

	t.Run("invalid limit returns 400", func(t *testing.T) {
		handler, _, _ := newTestHandler(t, &mockSyncer{}, nil)

		req := httptest.NewRequest(http.MethodGet, "/sync/history?limit=zero", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("POST is not allowed", func(t *testing.T) {
		handler, _, _ := newTestHandler(t, &mockSyncer{}, nil)

		rec := postJSON(t, handler, "/sync/history", `{}`)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("status = %d, want 405", rec.Code)
		}
	})
}

func TestBasicRouter(t *testing.T) {
	t.Run("middleware wraps handlers", func(t *testing.T) {
		router := NewBasicRouter()

		var order []string
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, "first")
				next.ServeHTTP(w, r)
			})
		})
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, "second")
				next.ServeHTTP(w, r)
			})
		})

		router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		want := []string{"first", "second", "handler"}
		if len(order) != len(want) {
			t.Fatalf("order = %v, want %v", order, want)
		}
		for i := range want {
			if order[i] != want[i] {
				t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
			}
		}
	})

	t.Run("method mismatch returns 405", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		req := httptest.NewRequest(http.MethodPost, "/ping", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("status = %d, want 405", rec.Code)
		}
	})

	t.Run("Handler registers all routes", func(t *testing.T) {
		router := NewBasicRouter()
		handler, _, _ := newTestHandler(t, &mockSyncer{report: &tasks.StatusReport{}}, nil)
		router.Handler(handler)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sync/check", strings.NewReader(`{"playlistId":"sp1"}`)))
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200 via router", rec.Code)
		}
	})
}
