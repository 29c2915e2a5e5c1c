package models

import (
	"fmt"
	"time"

	"github.com/hollowscene/spindl/internal/shared"
)

// SessionStatus is the lifecycle state of a download session.
type SessionStatus string

const (
	StatusPending    SessionStatus = "pending"
	StatusProcessing SessionStatus = "processing"
	StatusCompleted  SessionStatus = "completed"
	StatusFailed     SessionStatus = "failed"
)

// ParseSessionStatus validates a raw status string.
func ParseSessionStatus(raw string) (SessionStatus, error) {
	switch s := SessionStatus(raw); s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return s, nil
	default:
		return "", fmt.Errorf("%w: unknown session status %q", shared.ErrValidation, raw)
	}
}

// IsTerminal reports whether no further transitions are allowed from this status.
func (s SessionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether the session may move from s to next.
// Processing may repeat itself so progress updates can land while a
// download is underway.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing || next == StatusFailed
	case StatusProcessing:
		return next == StatusProcessing || next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// SessionProgress is a progress patch applied to a session, mirroring
// the body of the session update endpoint.
type SessionProgress struct {
	Processed  int           `json:"tracks_processed"`
	Successful int           `json:"tracks_successful"`
	Failed     int           `json:"tracks_failed"`
	Status     SessionStatus `json:"status"`
}

// DownloadSession tracks the lifecycle and counters of one playlist
// download run. The model ID doubles as the public session identifier.
type DownloadSession struct {
	id               string
	sequence         int
	playlistID       string
	status           SessionStatus
	tracksTotal      int
	tracksProcessed  int
	tracksSuccessful int
	tracksFailed     int
	quality          string
	createdAt        time.Time
	updatedAt        time.Time
	completedAt      *time.Time
}

// NewDownloadSession creates a pending session for a playlist with the
// given number of downloadable tracks.
func NewDownloadSession(sequence int, playlistID string, tracksTotal int, quality string) *DownloadSession {
	now := time.Now()
	return &DownloadSession{
		sequence:    sequence,
		playlistID:  playlistID,
		status:      StatusPending,
		tracksTotal: tracksTotal,
		quality:     quality,
		createdAt:   now,
		updatedAt:   now,
	}
}

func (s *DownloadSession) ID() string            { return s.id }
func (s *DownloadSession) Sequence() int         { return s.sequence }
func (s *DownloadSession) PlaylistID() string    { return s.playlistID }
func (s *DownloadSession) Status() SessionStatus { return s.status }
func (s *DownloadSession) TracksTotal() int      { return s.tracksTotal }
func (s *DownloadSession) TracksProcessed() int  { return s.tracksProcessed }
func (s *DownloadSession) TracksSuccessful() int { return s.tracksSuccessful }
func (s *DownloadSession) TracksFailed() int     { return s.tracksFailed }
func (s *DownloadSession) Quality() string       { return s.quality }
func (s *DownloadSession) CreatedAt() time.Time  { return s.createdAt }
func (s *DownloadSession) UpdatedAt() time.Time  { return s.updatedAt }

// CompletedAt returns when the session reached a terminal status, or nil.
func (s *DownloadSession) CompletedAt() *time.Time { return s.completedAt }

func (s *DownloadSession) SetID(id string)             { s.id = id }
func (s *DownloadSession) SetCreatedAt(t time.Time)    { s.createdAt = t }
func (s *DownloadSession) SetUpdatedAt(t time.Time)    { s.updatedAt = t }
func (s *DownloadSession) SetCompletedAt(t *time.Time) { s.completedAt = t }

// SetStatus restores a status from storage without transition checks.
// Use ApplyProgress for lifecycle changes.
func (s *DownloadSession) SetStatus(status SessionStatus) { s.status = status }

// SetCounters restores counter values from storage without validation.
func (s *DownloadSession) SetCounters(processed, successful, failed int) {
	s.tracksProcessed = processed
	s.tracksSuccessful = successful
	s.tracksFailed = failed
}

// Validate checks that the session has the fields required for persistence.
func (s *DownloadSession) Validate() error {
	if s.playlistID == "" {
		return fmt.Errorf("%w: session playlist_id is required", shared.ErrValidation)
	}
	if _, err := ParseSessionStatus(string(s.status)); err != nil {
		return err
	}
	if s.tracksTotal < 0 {
		return fmt.Errorf("%w: session tracks_total cannot be negative", shared.ErrValidation)
	}
	if s.tracksProcessed != s.tracksSuccessful+s.tracksFailed {
		return fmt.Errorf("%w: tracks_processed must equal tracks_successful + tracks_failed", shared.ErrValidation)
	}
	return nil
}

// ApplyProgress applies a progress patch, validating counters and the
// status transition. Counters only move forward and never past the
// track total. Entering a terminal status stamps CompletedAt.
func (s *DownloadSession) ApplyProgress(progress SessionProgress) error {
	if s.status.IsTerminal() {
		return fmt.Errorf("%w: session already %s", shared.ErrInvalidTransition, s.status)
	}

	// A patch without an explicit status keeps the current one; the
	// first update moves a pending session into processing.
	next := progress.Status
	if next == "" {
		next = s.status
		if next == StatusPending {
			next = StatusProcessing
		}
	} else if _, err := ParseSessionStatus(string(next)); err != nil {
		return err
	}

	if progress.Processed != progress.Successful+progress.Failed {
		return fmt.Errorf("%w: tracks_processed must equal tracks_successful + tracks_failed", shared.ErrValidation)
	}
	if progress.Processed > s.tracksTotal {
		return fmt.Errorf("%w: tracks_processed %d exceeds total %d", shared.ErrValidation, progress.Processed, s.tracksTotal)
	}
	if progress.Processed < s.tracksProcessed || progress.Successful < s.tracksSuccessful || progress.Failed < s.tracksFailed {
		return fmt.Errorf("%w: progress counters cannot decrease", shared.ErrValidation)
	}

	if !s.status.CanTransitionTo(next) {
		return fmt.Errorf("%w: cannot move from %s to %s", shared.ErrInvalidTransition, s.status, next)
	}

	now := time.Now()
	s.tracksProcessed = progress.Processed
	s.tracksSuccessful = progress.Successful
	s.tracksFailed = progress.Failed
	s.status = next
	s.updatedAt = now

	if next.IsTerminal() {
		s.completedAt = &now
	}

	return nil
}
