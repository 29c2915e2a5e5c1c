package repositories

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hollowscene/spindl/internal/models"
	"github.com/hollowscene/spindl/internal/shared"
)

// TrackRepository implements models.Repository[*models.PersistedTrack].
//
// Tracks are written in bulk through PlaylistRepository.CreateWithTracks;
// this repository covers reads and the occasional standalone write.
type TrackRepository struct {
	db *sql.DB
}

// NewTrackRepository creates a new TrackRepository with the given database connection
func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{db: db}
}

// Create inserts a new [models.PersistedTrack] into the database with generated ID and sequence
func (r *TrackRepository) Create(track *models.PersistedTrack) error {
	sequence, err := NextSequence(r.db, "tracks")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	track.SetID(id)

	if err := track.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO tracks (id, sequence, playlist_id, spotify_id, title, artists, album, duration_ms, position, preview_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		track.PlaylistID(),
		track.SpotifyID(),
		track.Title(),
		strings.Join(track.Artists(), artistSeparator),
		track.Album(),
		track.DurationMS(),
		track.Position(),
		track.PreviewURL(),
		track.CreatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert track: %w", err)
	}

	return nil
}

// Get retrieves a track by ID
func (r *TrackRepository) Get(id string) (*models.PersistedTrack, error) {
	query := `
		SELECT id, sequence, playlist_id, spotify_id, title, artists, album, duration_ms, position, preview_url, created_at
		FROM tracks
		WHERE id = ?
	`

	return r.scanOne(r.db.QueryRow(query, id))
}

// Update is not supported; track rows are immutable snapshots replaced
// wholesale when their playlist is refetched.
func (r *TrackRepository) Update(track *models.PersistedTrack) error {
	return fmt.Errorf("%w: tracks are immutable, refetch the playlist instead", shared.ErrInvalidArgument)
}

// Delete removes a track by ID
func (r *TrackRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM tracks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete track: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: track %s", shared.ErrNotFound, id)
	}

	return nil
}

// List retrieves all tracks matching the given criteria in playlist order
func (r *TrackRepository) List(criteria map[string]any) ([]*models.PersistedTrack, error) {
	query := `
		SELECT id, sequence, playlist_id, spotify_id, title, artists, album, duration_ms, position, preview_url, created_at
		FROM tracks
		WHERE 1 = 1
	`

	args := []any{}

	if playlistID, ok := criteria["playlist_id"].(string); ok && playlistID != "" {
		query += " AND playlist_id = ?"
		args = append(args, playlistID)
	}

	query += " ORDER BY position ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*models.PersistedTrack
	for rows.Next() {
		track, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tracks, nil
}

// ListByPlaylist retrieves every track belonging to a playlist in position order
func (r *TrackRepository) ListByPlaylist(playlistID string) ([]*models.PersistedTrack, error) {
	return r.List(map[string]any{"playlist_id": playlistID})
}

// scanOne scans a single row into a [models.PersistedTrack]
func (r *TrackRepository) scanOne(row *sql.Row) (*models.PersistedTrack, error) {
	var (
		id         string
		sequence   int
		playlistID string
		spotifyID  string
		title      string
		artists    string
		album      string
		durationMS int
		position   int
		previewURL string
		createdAt  time.Time
	)

	err := row.Scan(&id, &sequence, &playlistID, &spotifyID, &title, &artists, &album, &durationMS, &position, &previewURL, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: track", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}

	return restoreTrack(id, sequence, playlistID, spotifyID, title, artists, album, durationMS, position, previewURL, createdAt), nil
}

// scanRow scans a row from [sql.Rows] into a [models.PersistedTrack]
func (r *TrackRepository) scanRow(rows *sql.Rows) (*models.PersistedTrack, error) {
	var (
		id         string
		sequence   int
		playlistID string
		spotifyID  string
		title      string
		artists    string
		album      string
		durationMS int
		position   int
		previewURL string
		createdAt  time.Time
	)

	err := rows.Scan(&id, &sequence, &playlistID, &spotifyID, &title, &artists, &album, &durationMS, &position, &previewURL, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}

	return restoreTrack(id, sequence, playlistID, spotifyID, title, artists, album, durationMS, position, previewURL, createdAt), nil
}

func restoreTrack(id string, sequence int, playlistID, spotifyID, title, artists, album string, durationMS, position int, previewURL string, createdAt time.Time) *models.PersistedTrack {
	dto := models.Track{
		SpotifyID:  spotifyID,
		Title:      title,
		Artists:    strings.Split(artists, artistSeparator),
		Album:      album,
		DurationMS: durationMS,
		Position:   position,
		PreviewURL: previewURL,
	}

	track := models.NewPersistedTrack(sequence, playlistID, dto)
	track.SetID(id)
	track.SetCreatedAt(createdAt)
	return track
}
