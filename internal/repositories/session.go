package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/hollowscene/spindl/internal/models"
	"github.com/hollowscene/spindl/internal/shared"
)

// SessionRepository implements models.Repository[*models.DownloadSession]
// for download session tracking.
//
// ApplyProgress is the write path used while a download runs; it reads,
// validates and updates the session inside one transaction so concurrent
// progress reports cannot interleave.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SessionRepository with the given database connection
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// nullableID maps an empty ID to NULL so detached sessions do not
// trip the playlist foreign key.
func nullableID(id string) any {
	if id == "" {
		return nil
	}
	return id
}

// Create inserts a new download session with generated ID and sequence
func (r *SessionRepository) Create(session *models.DownloadSession) error {
	sequence, err := NextSequence(r.db, "sessions")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	session.SetID(id)

	if err := session.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO sessions (
			id, sequence, playlist_id, status, tracks_total,
			tracks_processed, tracks_successful, tracks_failed,
			quality, created_at, updated_at, completed_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		nullableID(session.PlaylistID()),
		session.Status(),
		session.TracksTotal(),
		session.TracksProcessed(),
		session.TracksSuccessful(),
		session.TracksFailed(),
		session.Quality(),
		session.CreatedAt(),
		session.UpdatedAt(),
		session.CompletedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	return nil
}

// Get retrieves a session by ID
func (r *SessionRepository) Get(id string) (*models.DownloadSession, error) {
	query := `
		SELECT id, sequence, playlist_id, status, tracks_total,
			tracks_processed, tracks_successful, tracks_failed,
			quality, created_at, updated_at, completed_at
		FROM sessions
		WHERE id = ?
	`

	return scanSession(r.db.QueryRow(query, id))
}

// Update persists the session's current counters and status
func (r *SessionRepository) Update(session *models.DownloadSession) error {
	if err := session.Validate(); err != nil {
		return err
	}

	now := time.Now()
	session.SetUpdatedAt(now)

	query := `
		UPDATE sessions
		SET status = ?, tracks_processed = ?, tracks_successful = ?,
			tracks_failed = ?, updated_at = ?, completed_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		session.Status(),
		session.TracksProcessed(),
		session.TracksSuccessful(),
		session.TracksFailed(),
		now,
		session.CompletedAt(),
		session.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: session %s", shared.ErrNotFound, session.ID())
	}

	return nil
}

// ApplyProgress loads a session, applies the progress patch through its
// state machine, and persists the result, all within one transaction.
// Returns the updated session.
func (r *SessionRepository) ApplyProgress(id string, progress models.SessionProgress) (*models.DownloadSession, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		SELECT id, sequence, playlist_id, status, tracks_total,
			tracks_processed, tracks_successful, tracks_failed,
			quality, created_at, updated_at, completed_at
		FROM sessions
		WHERE id = ?
	`

	session, err := scanSession(tx.QueryRow(query, id))
	if err != nil {
		return nil, err
	}

	if err := session.ApplyProgress(progress); err != nil {
		return nil, err
	}

	update := `
		UPDATE sessions
		SET status = ?, tracks_processed = ?, tracks_successful = ?,
			tracks_failed = ?, updated_at = ?, completed_at = ?
		WHERE id = ?
	`

	_, err = tx.Exec(update,
		session.Status(),
		session.TracksProcessed(),
		session.TracksSuccessful(),
		session.TracksFailed(),
		session.UpdatedAt(),
		session.CompletedAt(),
		session.ID(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit session transaction: %w", err)
	}

	return session, nil
}

// Delete removes a session by ID
func (r *SessionRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: session %s", shared.ErrNotFound, id)
	}

	return nil
}

// List retrieves all sessions matching the given criteria, newest first
func (r *SessionRepository) List(criteria map[string]any) ([]*models.DownloadSession, error) {
	query := `
		SELECT id, sequence, playlist_id, status, tracks_total,
			tracks_processed, tracks_successful, tracks_failed,
			quality, created_at, updated_at, completed_at
		FROM sessions
		WHERE 1 = 1
	`

	args := []any{}

	if playlistID, ok := criteria["playlist_id"].(string); ok && playlistID != "" {
		query += " AND playlist_id = ?"
		args = append(args, playlistID)
	}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	query += " ORDER BY sequence DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.DownloadSession
	for rows.Next() {
		session, err := scanSessionRow(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return sessions, nil
}

// scanSession scans a single row into a [models.DownloadSession]
func scanSession(row *sql.Row) (*models.DownloadSession, error) {
	var (
		id          string
		sequence    int
		playlistID  sql.NullString
		status      string
		total       int
		processed   int
		successful  int
		failed      int
		quality     string
		createdAt   time.Time
		updatedAt   time.Time
		completedAt sql.NullTime
	)

	err := row.Scan(&id, &sequence, &playlistID, &status, &total, &processed, &successful, &failed, &quality, &createdAt, &updatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: session", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	return restoreSession(id, sequence, playlistID, status, total, processed, successful, failed, quality, createdAt, updatedAt, completedAt), nil
}

// scanSessionRow scans a row from [sql.Rows] into a [models.DownloadSession]
func scanSessionRow(rows *sql.Rows) (*models.DownloadSession, error) {
	var (
		id          string
		sequence    int
		playlistID  sql.NullString
		status      string
		total       int
		processed   int
		successful  int
		failed      int
		quality     string
		createdAt   time.Time
		updatedAt   time.Time
		completedAt sql.NullTime
	)

	err := rows.Scan(&id, &sequence, &playlistID, &status, &total, &processed, &successful, &failed, &quality, &createdAt, &updatedAt, &completedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	return restoreSession(id, sequence, playlistID, status, total, processed, successful, failed, quality, createdAt, updatedAt, completedAt), nil
}

func restoreSession(id string, sequence int, playlistID sql.NullString, status string, total, processed, successful, failed int, quality string, createdAt, updatedAt time.Time, completedAt sql.NullTime) *models.DownloadSession {
	session := models.NewDownloadSession(sequence, playlistID.String, total, quality)
	session.SetID(id)
	session.SetStatus(models.SessionStatus(status))
	session.SetCounters(processed, successful, failed)
	session.SetCreatedAt(createdAt)
	session.SetUpdatedAt(updatedAt)
	if completedAt.Valid {
		session.SetCompletedAt(&completedAt.Time)
	}
	return session
}
