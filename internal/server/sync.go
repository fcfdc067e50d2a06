package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/resync/internal/repositories"
	"github.com/desertthunder/resync/internal/services"
	"github.com/desertthunder/resync/internal/shared"
	"github.com/desertthunder/resync/internal/tasks"
)

// Syncer is the engine surface the HTTP layer depends on.
// Implemented by [tasks.Engine].
type Syncer interface {
	SourcePlaylist(ctx context.Context, spotifyPlaylistID string) (*services.SourcePlaylist, error)
	Sync(ctx context.Context, spotifyPlaylistID string, opts tasks.SyncOptions) (*tasks.SyncResult, error)
	Check(ctx context.Context, spotifyPlaylistID string) (*tasks.StatusReport, error)
}

// SyncerFactory builds a Syncer for one request. Catalog clients hold a
// credential and are constructed fresh per invocation; the factory returns
// [shared.ErrMissingCredentials] when either catalog's token is absent.
type SyncerFactory func() (Syncer, error)

// SyncHandler serves the sync endpoints: POST /sync, POST /sync/check, and
// GET /sync/history.
type SyncHandler struct {
	factory SyncerFactory
	history *repositories.HistoryRepository
	logger  *log.Logger
}

// NewSyncHandler creates a SyncHandler.
func NewSyncHandler(factory SyncerFactory, history *repositories.HistoryRepository, logger *log.Logger) *SyncHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &SyncHandler{factory: factory, history: history, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *SyncHandler) Routes() []string {
	return []string{"/sync", "/sync/check", "/sync/history"}
}

// syncRequest is the body of POST /sync and POST /sync/check.
type syncRequest struct {
	PlaylistID        string `json:"playlistId"`
	CreateNewPlaylist bool   `json:"createNewPlaylist"`
	SkipExisting      bool   `json:"skipExisting"`
	RetryNotFound     bool   `json:"retryNotFound"`
}

// ServeHTTP dispatches to the route-specific handlers.
func (h *SyncHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/sync":
		h.requirePost(w, r, h.handleSync)
	case "/sync/check":
		h.requirePost(w, r, h.handleCheck)
	case "/sync/history":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h.handleHistory(w, r)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (h *SyncHandler) requirePost(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request)) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	next(w, r)
}

// handleSync runs a full sync for one playlist.
//
// The in-progress claim is taken before any target-catalog mutation; losing
// it returns 409. Fatal sync errors leave the history record failed with
// the error message and return 500.
func (h *SyncHandler) handleSync(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	syncer, ok := h.buildSyncer(w)
	if !ok {
		return
	}

	playlist, err := syncer.SourcePlaylist(r.Context(), req.PlaylistID)
	if err != nil {
		h.writeUpstreamError(w, err)
		return
	}

	record := &repositories.SyncHistory{
		SpotifyPlaylistID: req.PlaylistID,
		PlaylistName:      playlist.Name,
		TotalSongs:        playlist.TrackCount,
	}
	if err := h.history.Claim(record); err != nil {
		if errors.Is(err, shared.ErrSyncInProgress) {
			writeError(w, http.StatusConflict, "A sync is already in progress for this playlist")
			return
		}
		h.logger.Error("failed to create sync history", "err", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	opts := tasks.DefaultSyncOptions()
	opts.CreateNewPlaylist = req.CreateNewPlaylist
	opts.SkipExisting = req.SkipExisting
	opts.RetryNotFound = req.RetryNotFound

	result, err := syncer.Sync(r.Context(), req.PlaylistID, opts)
	if err != nil {
		if completeErr := h.history.Complete(record.ID, repositories.HistoryFailed, "", 0, 0, err.Error()); completeErr != nil {
			h.logger.Error("failed to finalize sync history", "err", completeErr)
		}
		h.logger.Error("sync failed", "playlist", req.PlaylistID, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"message": "Sync failed",
			"error":   err.Error(),
		})
		return
	}

	status := repositories.HistoryCompleted
	message := "Playlist synced successfully"
	if !result.Success {
		status = repositories.HistoryCompletedWithErrors
		message = "Sync completed with errors"
	}
	if err := h.history.Complete(record.ID, status, result.TargetPlaylistID, result.SongsSynced, result.SongsFailed, ""); err != nil {
		h.logger.Error("failed to finalize sync history", "err", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": message,
		"result":  result,
	})
}

// handleCheck computes sync completeness without mutating any state.
func (h *SyncHandler) handleCheck(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	syncer, ok := h.buildSyncer(w)
	if !ok {
		return
	}

	report, err := syncer.Check(r.Context(), req.PlaylistID)
	if err != nil {
		h.writeUpstreamError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// handleHistory lists recent sync runs, newest first.
func (h *SyncHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}

	records, err := h.history.List(r.URL.Query().Get("playlistId"), limit)
	if err != nil {
		h.logger.Error("failed to list sync history", "err", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"history": records})
}

func (h *SyncHandler) decodeRequest(w http.ResponseWriter, r *http.Request) (*syncRequest, bool) {
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	if req.PlaylistID == "" {
		writeError(w, http.StatusBadRequest, "Playlist ID is required")
		return nil, false
	}
	return &req, true
}

func (h *SyncHandler) buildSyncer(w http.ResponseWriter) (Syncer, bool) {
	syncer, err := h.factory()
	if err != nil {
		if errors.Is(err, shared.ErrMissingCredentials) {
			writeError(w, http.StatusUnauthorized, "Both Spotify and YouTube accounts must be connected")
			return nil, false
		}
		h.logger.Error("failed to build sync engine", "err", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return nil, false
	}
	return syncer, true
}

// writeUpstreamError maps catalog-client errors onto HTTP statuses.
func (h *SyncHandler) writeUpstreamError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrPlaylistNotFound):
		writeError(w, http.StatusNotFound, "Spotify playlist not found")
	case errors.Is(err, shared.ErrNotAuthenticated), errors.Is(err, shared.ErrMissingCredentials):
		writeError(w, http.StatusUnauthorized, "Both Spotify and YouTube accounts must be connected")
	default:
		h.logger.Error("upstream request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		fmt.Fprintf(w, `{"message":"encoding error"}`)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
