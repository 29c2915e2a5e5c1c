package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hollowscene/spindl/internal/models"
	"github.com/hollowscene/spindl/internal/repositories"
	"github.com/hollowscene/spindl/internal/services"
	"github.com/hollowscene/spindl/internal/shared"
	"github.com/hollowscene/spindl/internal/tasks"
)

// APIHandler serves the playlist and download session endpoints.
type APIHandler struct {
	engine   *tasks.DownloadEngine
	sessions *repositories.SessionRepository
	logger   *log.Logger
}

// NewAPIHandler creates an APIHandler over the download engine.
func NewAPIHandler(engine *tasks.DownloadEngine, sessions *repositories.SessionRepository, logger *log.Logger) *APIHandler {
	return &APIHandler{engine: engine, sessions: sessions, logger: logger}
}

// Register wires the API routes into a router.
func (h *APIHandler) Register(router Router) {
	router.Handle(http.MethodPost, "/api/playlist/tracks/", http.HandlerFunc(h.PlaylistTracks))
	router.Handle(http.MethodPost, "/api/download/session/", http.HandlerFunc(h.CreateSession))
	router.Handle(http.MethodGet, "/api/download/session/{id}/{$}", http.HandlerFunc(h.GetSession))
	router.Handle(http.MethodPost, "/api/download/session/{id}/update/{$}", http.HandlerFunc(h.UpdateSession))
	router.Handle(http.MethodGet, "/health", http.HandlerFunc(h.Health))
}

type playlistTracksRequest struct {
	PlaylistURL string `json:"playlist_url"`
	Force       bool   `json:"force"`
}

type createSessionRequest struct {
	PlaylistURL string `json:"playlist_url"`
	Quality     string `json:"quality"`
	Force       bool   `json:"force"`
}

type playlistPayload struct {
	ID         string `json:"id"`
	SpotifyID  string `json:"spotify_id"`
	Name       string `json:"name"`
	Owner      string `json:"owner"`
	TrackCount int    `json:"track_count"`
	IsPublic   bool   `json:"is_public"`
	SourceURL  string `json:"source_url,omitempty"`
}

type trackPayload struct {
	SpotifyID  string   `json:"spotify_id"`
	Title      string   `json:"title"`
	Artists    []string `json:"artists"`
	Album      string   `json:"album"`
	DurationMS int      `json:"duration_ms"`
	Position   int      `json:"position"`
	PreviewURL string   `json:"preview_url,omitempty"`
}

type playlistTracksResponse struct {
	Playlist  playlistPayload `json:"playlist"`
	Tracks    []trackPayload  `json:"tracks"`
	Skipped   int             `json:"skipped"`
	Total     int             `json:"total"`
	FromCache bool            `json:"from_cache"`
}

type sessionPayload struct {
	SessionID        string     `json:"session_id"`
	PlaylistID       string     `json:"playlist_id"`
	PlaylistTitle    string     `json:"playlist_title,omitempty"`
	Status           string     `json:"status"`
	TracksTotal      int        `json:"tracks_total"`
	TracksProcessed  int        `json:"tracks_processed"`
	TracksSuccessful int        `json:"tracks_successful"`
	TracksFailed     int        `json:"tracks_failed"`
	Quality          string     `json:"quality"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	CompletedAt      *time.Time `json:"completed_at"`
}

// PlaylistTracks reconciles a playlist reference into a stored snapshot
// and returns it with its downloadable tracks.
func (h *APIHandler) PlaylistTracks(w http.ResponseWriter, r *http.Request) {
	var req playlistTracksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Join(shared.ErrValidation, err))
		return
	}

	result, err := h.engine.Reconcile(r.Context(), nil, req.PlaylistURL, req.Force)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reconcilePayload(result))
}

// CreateSession reconciles a playlist and creates a pending download session.
func (h *APIHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Join(shared.ErrValidation, err))
		return
	}

	quality, err := services.ParseQuality(req.Quality)
	if err != nil {
		writeError(w, err)
		return
	}

	session, reconciled, err := h.engine.StartSession(r.Context(), nil, req.PlaylistURL, quality, req.Force)
	if err != nil {
		writeError(w, err)
		return
	}

	payload := sessionToPayload(session)
	payload.PlaylistTitle = reconciled.Playlist.Name()
	writeJSON(w, http.StatusCreated, payload)
}

// GetSession returns a session's current status and counters.
func (h *APIHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionToPayload(session))
}

// UpdateSession applies a progress patch to a session.
func (h *APIHandler) UpdateSession(w http.ResponseWriter, r *http.Request) {
	var progress models.SessionProgress
	if err := json.NewDecoder(r.Body).Decode(&progress); err != nil {
		writeError(w, errors.Join(shared.ErrValidation, err))
		return
	}

	session, err := h.sessions.ApplyProgress(r.PathValue("id"), progress)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionToPayload(session))
}

// Health reports service liveness.
func (h *APIHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func reconcilePayload(result *tasks.ReconcileResult) playlistTracksResponse {
	tracks := make([]trackPayload, 0, len(result.Tracks))
	for _, track := range result.Tracks {
		tracks = append(tracks, trackPayload{
			SpotifyID:  track.SpotifyID(),
			Title:      track.Title(),
			Artists:    track.Artists(),
			Album:      track.Album(),
			DurationMS: track.DurationMS(),
			Position:   track.Position(),
			PreviewURL: track.PreviewURL(),
		})
	}

	return playlistTracksResponse{
		Playlist: playlistPayload{
			ID:         result.Playlist.ID(),
			SpotifyID:  result.Playlist.SpotifyID(),
			Name:       result.Playlist.Name(),
			Owner:      result.Playlist.Owner(),
			TrackCount: result.Playlist.TrackCount(),
			IsPublic:   result.Playlist.Public(),
			SourceURL:  result.Playlist.SourceURL(),
		},
		Tracks:    tracks,
		Skipped:   result.Skipped,
		Total:     result.Total,
		FromCache: result.FromCache,
	}
}

func sessionToPayload(session *models.DownloadSession) sessionPayload {
	return sessionPayload{
		SessionID:        session.ID(),
		PlaylistID:       session.PlaylistID(),
		Status:           string(session.Status()),
		TracksTotal:      session.TracksTotal(),
		TracksProcessed:  session.TracksProcessed(),
		TracksSuccessful: session.TracksSuccessful(),
		TracksFailed:     session.TracksFailed(),
		Quality:          session.Quality(),
		CreatedAt:        session.CreatedAt(),
		UpdatedAt:        session.UpdatedAt(),
		CompletedAt:      session.CompletedAt(),
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError maps an error onto the API's status codes and writes a
// JSON error body.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errorStatus(err), map[string]string{"error": err.Error()})
}

// errorStatus maps the shared error taxonomy onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, shared.ErrValidation),
		errors.Is(err, shared.ErrInvalidArgument),
		errors.Is(err, shared.ErrMissingArgument):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrInvalidTransition),
		errors.Is(err, shared.ErrUniqueViolation):
		return http.StatusConflict
	case errors.Is(err, shared.ErrUpstream),
		errors.Is(err, shared.ErrAuthFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
