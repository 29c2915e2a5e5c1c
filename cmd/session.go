package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/hollowscene/spindl/internal/models"
	"github.com/hollowscene/spindl/internal/repositories"
	"github.com/hollowscene/spindl/internal/shared"
)

type sessionJSON struct {
	SessionID        string     `json:"session_id"`
	PlaylistID       string     `json:"playlist_id"`
	Status           string     `json:"status"`
	TracksTotal      int        `json:"tracks_total"`
	TracksProcessed  int        `json:"tracks_processed"`
	TracksSuccessful int        `json:"tracks_successful"`
	TracksFailed     int        `json:"tracks_failed"`
	Quality          string     `json:"quality"`
	CreatedAt        time.Time  `json:"created_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

func sessionSummary(session *models.DownloadSession) sessionJSON {
	return sessionJSON{
		SessionID:        session.ID(),
		PlaylistID:       session.PlaylistID(),
		Status:           string(session.Status()),
		TracksTotal:      session.TracksTotal(),
		TracksProcessed:  session.TracksProcessed(),
		TracksSuccessful: session.TracksSuccessful(),
		TracksFailed:     session.TracksFailed(),
		Quality:          session.Quality(),
		CreatedAt:        session.CreatedAt(),
		CompletedAt:      session.CompletedAt(),
	}
}

// SessionStatus shows a single session's status and counters.
func (r *Runner) SessionStatus(ctx context.Context, cmd *cli.Command) error {
	sessionID := cmd.StringArg("id")
	if sessionID == "" {
		return fmt.Errorf("%w: session id", shared.ErrMissingArgument)
	}

	r.reloadConfig(cmd)

	db, err := r.openDatabase()
	if err != nil {
		return err
	}

	session, err := repositories.NewSessionRepository(db).Get(sessionID)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(sessionSummary(session), true)
	}

	r.writePlainHeader(fmt.Sprintf("Session %s", session.ID()))
	r.writePlain("Status: %s\n", session.Status())
	r.writePlain("Quality: %s\n", session.Quality())
	r.writePlain("Progress: %d/%d processed (%d ok, %d failed)\n",
		session.TracksProcessed(), session.TracksTotal(), session.TracksSuccessful(), session.TracksFailed())
	r.writePlain("Created: %s\n", session.CreatedAt().Format(time.RFC3339))
	if completed := session.CompletedAt(); completed != nil {
		r.writePlain("Completed: %s\n", completed.Format(time.RFC3339))
	}

	return nil
}

// SessionList lists download sessions, optionally filtered by status.
func (r *Runner) SessionList(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)

	db, err := r.openDatabase()
	if err != nil {
		return err
	}

	criteria := map[string]any{}
	if status := cmd.String("status"); status != "" {
		if _, err := models.ParseSessionStatus(status); err != nil {
			return err
		}
		criteria["status"] = status
	}

	sessions, err := repositories.NewSessionRepository(db).List(criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		summaries := make([]sessionJSON, 0, len(sessions))
		for _, session := range sessions {
			summaries = append(summaries, sessionSummary(session))
		}
		return r.writeJSON(summaries, true)
	}

	if len(sessions) == 0 {
		r.writePlain("No sessions found\n")
		return nil
	}

	for _, session := range sessions {
		r.writePlain("%s  %-10s  %d/%d tracks  %s\n",
			session.ID(), session.Status(), session.TracksProcessed(), session.TracksTotal(),
			session.CreatedAt().Format(time.RFC3339))
	}

	return nil
}
