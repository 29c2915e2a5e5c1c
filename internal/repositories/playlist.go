package repositories

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hollowscene/spindl/internal/models"
	"github.com/hollowscene/spindl/internal/shared"
)

// artistSeparator joins artist names into the single artists column.
const artistSeparator = ", "

// PlaylistRepository implements models.Repository[*models.PersistedPlaylist].
//
// Handles playlist CRUD operations plus the atomic playlist-with-tracks
// snapshot used when a fetched playlist is stored.
type PlaylistRepository struct {
	db *sql.DB
}

// NewPlaylistRepository creates a new PlaylistRepository with the given database connection
func NewPlaylistRepository(db *sql.DB) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

// Create inserts a new playlist into the database with generated ID and sequence
func (r *PlaylistRepository) Create(playlist *models.PersistedPlaylist) error {
	sequence, err := NextSequence(r.db, "playlists")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	playlist.SetID(id)

	if err := playlist.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO playlists (id, sequence, spotify_id, name, owner, track_count, is_public, source_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		playlist.SpotifyID(),
		playlist.Name(),
		playlist.Owner(),
		playlist.TrackCount(),
		playlist.Public(),
		playlist.SourceURL(),
		playlist.CreatedAt(),
		playlist.UpdatedAt(),
	)
	if err != nil {
		if werr := wrapConstraint(err, "playlist "+playlist.SpotifyID()); werr != err {
			return werr
		}
		return fmt.Errorf("failed to insert playlist: %w", err)
	}

	return nil
}

// CreateWithTracks stores a playlist snapshot and its tracks in a single
// transaction. Either the playlist and every track land together or
// nothing is written.
func (r *PlaylistRepository) CreateWithTracks(playlist *models.PersistedPlaylist, tracks []models.Track) ([]*models.PersistedTrack, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	persisted, err := insertWithTracksTx(tx, playlist, tracks)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit playlist transaction: %w", err)
	}

	return persisted, nil
}

// ReplaceWithTracks swaps an existing playlist snapshot for a fresh one
// in a single transaction. The old playlist row is deleted (cascading
// its tracks and detaching its sessions) and the new snapshot is
// inserted; a failure rolls back to the old snapshot intact.
func (r *PlaylistRepository) ReplaceWithTracks(oldID string, playlist *models.PersistedPlaylist, tracks []models.Track) ([]*models.PersistedTrack, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM playlists WHERE id = ?", oldID); err != nil {
		return nil, fmt.Errorf("failed to delete playlist %s: %w", oldID, err)
	}

	persisted, err := insertWithTracksTx(tx, playlist, tracks)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit playlist transaction: %w", err)
	}

	return persisted, nil
}

func insertWithTracksTx(tx *sql.Tx, playlist *models.PersistedPlaylist, tracks []models.Track) ([]*models.PersistedTrack, error) {
	sequence, err := nextSequenceTx(tx, "playlists")
	if err != nil {
		return nil, err
	}

	id := shared.GenerateID()
	playlist.SetID(id)

	if err := playlist.Validate(); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO playlists (id, sequence, spotify_id, name, owner, track_count, is_public, source_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.Exec(query,
		id,
		sequence,
		playlist.SpotifyID(),
		playlist.Name(),
		playlist.Owner(),
		playlist.TrackCount(),
		playlist.Public(),
		playlist.SourceURL(),
		playlist.CreatedAt(),
		playlist.UpdatedAt(),
	)
	if err != nil {
		if werr := wrapConstraint(err, "playlist "+playlist.SpotifyID()); werr != err {
			return nil, werr
		}
		return nil, fmt.Errorf("failed to insert playlist: %w", err)
	}

	trackQuery := `
		INSERT INTO tracks (id, sequence, playlist_id, spotify_id, title, artists, album, duration_ms, position, preview_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	persisted := make([]*models.PersistedTrack, 0, len(tracks))
	for _, dto := range tracks {
		trackSeq, err := nextSequenceTx(tx, "tracks")
		if err != nil {
			return nil, err
		}

		track := models.NewPersistedTrack(trackSeq, id, dto)
		track.SetID(shared.GenerateID())

		if err := track.Validate(); err != nil {
			return nil, err
		}

		_, err = tx.Exec(trackQuery,
			track.ID(),
			trackSeq,
			id,
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
			return nil, fmt.Errorf("failed to insert track %s: %w", track.SpotifyID(), err)
		}

		persisted = append(persisted, track)
	}

	return persisted, nil
}

// Get retrieves a playlist by ID
func (r *PlaylistRepository) Get(id string) (*models.PersistedPlaylist, error) {
	query := `
		SELECT id, sequence, spotify_id, name, owner, track_count, is_public, source_url, created_at, updated_at
		FROM playlists
		WHERE id = ?
	`

	return r.scanOne(r.db.QueryRow(query, id))
}

// GetBySpotifyID retrieves a playlist by its Spotify identifier
func (r *PlaylistRepository) GetBySpotifyID(spotifyID string) (*models.PersistedPlaylist, error) {
	query := `
		SELECT id, sequence, spotify_id, name, owner, track_count, is_public, source_url, created_at, updated_at
		FROM playlists
		WHERE spotify_id = ?
	`

	return r.scanOne(r.db.QueryRow(query, spotifyID))
}

// Update modifies an existing playlist in the database
func (r *PlaylistRepository) Update(playlist *models.PersistedPlaylist) error {
	if err := playlist.Validate(); err != nil {
		return err
	}

	now := time.Now()
	playlist.SetUpdatedAt(now)

	query := `
		UPDATE playlists
		SET name = ?, owner = ?, track_count = ?, is_public = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		playlist.Name(),
		playlist.Owner(),
		playlist.TrackCount(),
		playlist.Public(),
		now,
		playlist.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update playlist: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: playlist %s", shared.ErrNotFound, playlist.ID())
	}

	return nil
}

// Delete removes a playlist by ID. Tracks cascade with the playlist.
func (r *PlaylistRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM playlists WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: playlist %s", shared.ErrNotFound, id)
	}

	return nil
}

// List retrieves all playlists matching the given criteria
func (r *PlaylistRepository) List(criteria map[string]any) ([]*models.PersistedPlaylist, error) {
	query := `
		SELECT id, sequence, spotify_id, name, owner, track_count, is_public, source_url, created_at, updated_at
		FROM playlists
		WHERE 1 = 1
	`

	args := []any{}

	if owner, ok := criteria["owner"].(string); ok && owner != "" {
		query += " AND owner = ?"
		args = append(args, owner)
	}

	if spotifyID, ok := criteria["spotify_id"].(string); ok && spotifyID != "" {
		query += " AND spotify_id = ?"
		args = append(args, spotifyID)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	var playlists []*models.PersistedPlaylist
	for rows.Next() {
		playlist, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, playlist)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return playlists, nil
}

// scanOne scans a single row into a [models.PersistedPlaylist]
func (r *PlaylistRepository) scanOne(row *sql.Row) (*models.PersistedPlaylist, error) {
	var (
		id         string
		sequence   int
		spotifyID  string
		name       string
		owner      string
		trackCount int
		public     bool
		sourceURL  string
		createdAt  time.Time
		updatedAt  time.Time
	)

	err := row.Scan(&id, &sequence, &spotifyID, &name, &owner, &trackCount, &public, &sourceURL, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: playlist", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}

	return restorePlaylist(id, sequence, spotifyID, name, owner, trackCount, public, sourceURL, createdAt, updatedAt), nil
}

// scanRow scans a row from [sql.Rows] into a [models.PersistedPlaylist]
func (r *PlaylistRepository) scanRow(rows *sql.Rows) (*models.PersistedPlaylist, error) {
	var (
		id         string
		sequence   int
		spotifyID  string
		name       string
		owner      string
		trackCount int
		public     bool
		sourceURL  string
		createdAt  time.Time
		updatedAt  time.Time
	)

	err := rows.Scan(&id, &sequence, &spotifyID, &name, &owner, &trackCount, &public, &sourceURL, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}

	return restorePlaylist(id, sequence, spotifyID, name, owner, trackCount, public, sourceURL, createdAt, updatedAt), nil
}

func restorePlaylist(id string, sequence int, spotifyID, name, owner string, trackCount int, public bool, sourceURL string, createdAt, updatedAt time.Time) *models.PersistedPlaylist {
	dto := models.Playlist{
		SpotifyID:  spotifyID,
		Name:       name,
		Owner:      owner,
		TrackCount: trackCount,
		Public:     public,
		SourceURL:  sourceURL,
	}

	playlist := models.NewPersistedPlaylist(sequence, dto)
	playlist.SetID(id)
	playlist.SetCreatedAt(createdAt)
	playlist.SetUpdatedAt(updatedAt)
	return playlist
}
