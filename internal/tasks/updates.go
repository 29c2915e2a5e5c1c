package tasks

import (
	"fmt"

	"github.com/hollowscene/spindl/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchPlaylist Phase = iota
	FetchTracks
	Reconcile
	CreateSession
	DownloadTracks
	Finalize
)

func (p Phase) String() string {
	switch p {
	case FetchPlaylist:
		return "fetch_playlist"
	case FetchTracks:
		return "fetch_tracks"
	case Reconcile:
		return "reconcile"
	case CreateSession:
		return "create_session"
	case DownloadTracks:
		return "download_tracks"
	case Finalize:
		return "finalize"
	default:
		return ""
	}
}

func fetchPlaylistUpdate(playlistID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching playlist %s from Spotify...", playlistID),
	}
}

func fetchTracksUpdate(name string, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchTracks,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching tracks for %s (%d entries)...", name, total),
	}
}

func reconcileUpdate(accepted, skipped int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Reconcile,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Reconciled tracks: %d downloadable, %d unavailable", accepted, skipped),
	}
}

func sessionCreatedUpdate(session *models.DownloadSession) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreateSession,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Created download session %s (%d tracks)", session.ID(), session.TracksTotal()),
		Data:    session,
	}
}

func downloadingUpdate(step, total int, track *models.PersistedTrack) ProgressUpdate {
	return ProgressUpdate{
		Phase:   DownloadTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s", step, total, track.Title()),
	}
}

func trackDoneUpdate(step, total int, track *models.PersistedTrack) ProgressUpdate {
	return ProgressUpdate{
		Phase:   DownloadTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s", step, total, track.Title()),
	}
}

func trackFailedUpdate(step, total int, track *models.PersistedTrack, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   DownloadTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, track.Title(), err),
	}
}

func finalizeUpdate(session *models.DownloadSession) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Finalize,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Session %s %s: %d successful, %d failed", session.ID(), session.Status(), session.TracksSuccessful(), session.TracksFailed()),
		Data:    session,
	}
}
