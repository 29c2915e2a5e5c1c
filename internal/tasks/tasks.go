package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/hollowscene/spindl/internal/models"
	"github.com/hollowscene/spindl/internal/repositories"
	"github.com/hollowscene/spindl/internal/services"
	"github.com/hollowscene/spindl/internal/shared"
)

// ReconcileResult contains the stored snapshot produced by reconciling
// a fetched playlist against the local store.
type ReconcileResult struct {
	Playlist  *models.PersistedPlaylist // Stored playlist snapshot
	Tracks    []*models.PersistedTrack  // Downloadable tracks in playlist order
	Accepted  int                       // Entries accepted for download
	Skipped   int                       // Entries excluded (nil or missing metadata)
	Total     int                       // Raw entry count from the API
	FromCache bool                      // Snapshot served from the store without refetching
}

// TrackDownloadResult represents the outcome of downloading a single track.
type TrackDownloadResult struct {
	Track  *models.PersistedTrack
	Result *services.AudioResult // nil on failure
	Error  error                 // nil on success
}

// DownloadRunResult contains all data from a full session run.
type DownloadRunResult struct {
	Session      *models.DownloadSession
	Results      []TrackDownloadResult
	SuccessCount int
	FailedCount  int
	TotalTracks  int
}

// RunOptions tunes how a session run paces and bounds its downloads.
type RunOptions struct {
	RateLimit    float64       // Downloads per second, default 1
	TrackTimeout time.Duration // Per-track deadline, default 2 minutes
}

func (o *RunOptions) defaults() {
	if o.RateLimit <= 0 {
		o.RateLimit = 1.0
	}
	if o.TrackTimeout <= 0 {
		o.TrackTimeout = 2 * time.Minute
	}
}

// DownloadEngine orchestrates playlist reconciliation and download
// sessions over the catalog, fetcher and repositories.
type DownloadEngine struct {
	catalog   services.Catalog
	fetcher   services.AudioFetcher
	playlists *repositories.PlaylistRepository
	tracks    *repositories.TrackRepository
	sessions  *repositories.SessionRepository
	logger    *log.Logger
}

// NewDownloadEngine creates a DownloadEngine with the provided dependencies.
func NewDownloadEngine(
	catalog services.Catalog,
	fetcher services.AudioFetcher,
	playlists *repositories.PlaylistRepository,
	tracks *repositories.TrackRepository,
	sessions *repositories.SessionRepository,
	logger *log.Logger,
) *DownloadEngine {
	return &DownloadEngine{
		catalog:   catalog,
		fetcher:   fetcher,
		playlists: playlists,
		tracks:    tracks,
		sessions:  sessions,
		logger:    logger,
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *DownloadEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Reconcile resolves a playlist reference to a stored snapshot.
//
// An existing snapshot for the same Spotify ID is returned as-is unless
// force is set, in which case it is replaced. Fetched entries without a
// playable track or without title and artist metadata are counted as
// skipped and excluded from the snapshot. Losing a concurrent insert
// race resolves to the winner's snapshot.
func (e *DownloadEngine) Reconcile(ctx context.Context, progress chan<- ProgressUpdate, playlistRef string, force bool) (*ReconcileResult, error) {
	playlistID, err := services.ExtractPlaylistID(playlistRef)
	if err != nil {
		return nil, err
	}

	existing, err := e.playlists.GetBySpotifyID(playlistID)
	if err == nil && !force {
		return e.resultFromStore(existing, true)
	}
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
		existing = nil
	}

	e.sendProgress(progress, fetchPlaylistUpdate(playlistID))
	playlist, err := e.catalog.GetPlaylist(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	e.sendProgress(progress, fetchTracksUpdate(playlist.Name, playlist.TrackCount))
	entries, err := e.catalog.GetPlaylistTracks(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	accepted := make([]models.Track, 0, len(entries))
	skipped := 0
	for _, entry := range entries {
		if entry.Track == nil || !entry.Track.Downloadable() {
			skipped++
			continue
		}
		accepted = append(accepted, *entry.Track)
	}

	e.sendProgress(progress, reconcileUpdate(len(accepted), skipped))

	// The stored snapshot is only replaced once the upstream fetch has
	// succeeded, and the swap is one transaction.
	persisted := models.NewPersistedPlaylist(0, *playlist)
	var tracks []*models.PersistedTrack
	if existing != nil {
		tracks, err = e.playlists.ReplaceWithTracks(existing.ID(), persisted, accepted)
	} else {
		tracks, err = e.playlists.CreateWithTracks(persisted, accepted)
	}
	if errors.Is(err, shared.ErrUniqueViolation) {
		winner, lookupErr := e.playlists.GetBySpotifyID(playlistID)
		if lookupErr != nil {
			return nil, lookupErr
		}
		return e.resultFromStore(winner, true)
	}
	if err != nil {
		return nil, err
	}

	e.logger.Info("stored playlist snapshot",
		"playlist_id", playlistID, "name", playlist.Name,
		"accepted", len(accepted), "skipped", skipped)

	return &ReconcileResult{
		Playlist: persisted,
		Tracks:   tracks,
		Accepted: len(accepted),
		Skipped:  skipped,
		Total:    len(entries),
	}, nil
}

// resultFromStore rebuilds a ReconcileResult from a stored snapshot.
func (e *DownloadEngine) resultFromStore(playlist *models.PersistedPlaylist, cached bool) (*ReconcileResult, error) {
	tracks, err := e.tracks.ListByPlaylist(playlist.ID())
	if err != nil {
		return nil, err
	}
	return &ReconcileResult{
		Playlist:  playlist,
		Tracks:    tracks,
		Accepted:  len(tracks),
		Total:     len(tracks),
		FromCache: cached,
	}, nil
}

// StartSession reconciles a playlist and creates a pending download
// session sized to its downloadable tracks.
func (e *DownloadEngine) StartSession(ctx context.Context, progress chan<- ProgressUpdate, playlistRef string, quality services.Quality, force bool) (*models.DownloadSession, *ReconcileResult, error) {
	reconciled, err := e.Reconcile(ctx, progress, playlistRef, force)
	if err != nil {
		return nil, nil, err
	}

	session := models.NewDownloadSession(0, reconciled.Playlist.ID(), len(reconciled.Tracks), string(quality))
	if err := e.sessions.Create(session); err != nil {
		return nil, nil, err
	}

	e.sendProgress(progress, sessionCreatedUpdate(session))
	return session, reconciled, nil
}

// Run executes a download session track by track.
//
// The session moves to processing, then each track is fetched under the
// configured rate limit and per-track timeout. A track failure counts
// against the session but does not stop the run. The stored session is
// reloaded before each track so an externally failed or completed
// session halts the run. Cancellation marks the session failed with the
// counters reached so far.
func (e *DownloadEngine) Run(ctx context.Context, progress chan<- ProgressUpdate, sessionID string, opts RunOptions) (*DownloadRunResult, error) {
	opts.defaults()

	session, err := e.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status().IsTerminal() {
		return nil, fmt.Errorf("%w: session already %s", shared.ErrInvalidTransition, session.Status())
	}

	// A session whose playlist was deleted out from under it carries an
	// empty playlist ID. That is a fatal lookup failure, not an empty
	// track list.
	if session.PlaylistID() == "" {
		result := &DownloadRunResult{Session: session}
		return e.failSession(sessionID, result, session.TracksSuccessful(), session.TracksFailed(),
			fmt.Errorf("%w: playlist for session %s", shared.ErrNotFound, sessionID))
	}

	tracks, err := e.tracks.ListByPlaylist(session.PlaylistID())
	if err != nil {
		result := &DownloadRunResult{Session: session}
		return e.failSession(sessionID, result, session.TracksSuccessful(), session.TracksFailed(), err)
	}

	quality, err := services.ParseQuality(session.Quality())
	if err != nil {
		return nil, err
	}

	session, err = e.sessions.ApplyProgress(sessionID, models.SessionProgress{
		Processed:  session.TracksProcessed(),
		Successful: session.TracksSuccessful(),
		Failed:     session.TracksFailed(),
		Status:     models.StatusProcessing,
	})
	if err != nil {
		return nil, err
	}

	result := &DownloadRunResult{
		Session:     session,
		TotalTracks: len(tracks),
		Results:     make([]TrackDownloadResult, 0, len(tracks)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	successful := session.TracksSuccessful()
	failed := session.TracksFailed()
	total := len(tracks)

	for i, track := range tracks {
		// Pick up external terminal transitions before spending a download.
		current, err := e.sessions.Get(sessionID)
		if err != nil {
			return result, err
		}
		if current.Status().IsTerminal() {
			e.logger.Warn("session moved to terminal state externally", "session_id", sessionID, "status", current.Status())
			result.Session = current
			result.SuccessCount = successful
			result.FailedCount = failed
			return result, nil
		}

		if err := limiter.Wait(ctx); err != nil {
			return e.failSession(sessionID, result, successful, failed, err)
		}

		e.sendProgress(progress, downloadingUpdate(i+1, total, track))

		outcome := TrackDownloadResult{Track: track}
		trackCtx, cancel := context.WithTimeout(ctx, opts.TrackTimeout)
		audio, fetchErr := e.fetcher.Fetch(trackCtx, track.DTO().SearchQuery(), quality, downloadFilename(track))
		cancel()

		if fetchErr != nil {
			if ctx.Err() != nil {
				return e.failSession(sessionID, result, successful, failed, ctx.Err())
			}
			failed++
			outcome.Error = fetchErr
			e.logger.Warn("track download failed", "session_id", sessionID, "track", track.Title(), "error", fetchErr)
			e.sendProgress(progress, trackFailedUpdate(i+1, total, track, fetchErr))
		} else {
			successful++
			outcome.Result = audio
			e.sendProgress(progress, trackDoneUpdate(i+1, total, track))
		}
		result.Results = append(result.Results, outcome)

		session, err = e.sessions.ApplyProgress(sessionID, models.SessionProgress{
			Processed:  successful + failed,
			Successful: successful,
			Failed:     failed,
			Status:     models.StatusProcessing,
		})
		if err != nil {
			return result, err
		}
		result.Session = session
	}

	session, err = e.sessions.ApplyProgress(sessionID, models.SessionProgress{
		Processed:  successful + failed,
		Successful: successful,
		Failed:     failed,
		Status:     models.StatusCompleted,
	})
	if err != nil {
		return result, err
	}

	result.Session = session
	result.SuccessCount = successful
	result.FailedCount = failed

	e.sendProgress(progress, finalizeUpdate(session))
	e.logger.Info("download session finished",
		"session_id", sessionID, "successful", successful, "failed", failed)
	return result, nil
}

// failSession marks a session failed with the counters reached so far.
func (e *DownloadEngine) failSession(sessionID string, result *DownloadRunResult, successful, failed int, cause error) (*DownloadRunResult, error) {
	session, err := e.sessions.ApplyProgress(sessionID, models.SessionProgress{
		Processed:  successful + failed,
		Successful: successful,
		Failed:     failed,
		Status:     models.StatusFailed,
	})
	if err != nil {
		e.logger.Error("failed to mark session failed", "session_id", sessionID, "error", err)
		return result, cause
	}

	result.Session = session
	result.SuccessCount = successful
	result.FailedCount = failed
	return result, cause
}

// downloadFilename builds the "Artists - Title" filename stem for a track.
func downloadFilename(track *models.PersistedTrack) string {
	return fmt.Sprintf("%s - %s", strings.Join(track.Artists(), ", "), track.Title())
}
