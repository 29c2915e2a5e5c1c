package repositories

import (
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/hollowscene/spindl/internal/models"
	"github.com/hollowscene/spindl/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	// A second pooled connection would see a different in-memory database.
	db.SetMaxOpenConns(1)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func testPlaylist() models.Playlist {
	return models.Playlist{
		SpotifyID:  "37i9dQZF1DXcBWIGoYBM5M",
		Name:       "Today's Top Hits",
		Owner:      "spotify",
		TrackCount: 2,
		Public:     true,
		SourceURL:  "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M",
	}
}

func testTracks() []models.Track {
	return []models.Track{
		{SpotifyID: "track-1", Title: "First", Artists: []string{"Alpha"}, Album: "A", DurationMS: 180000, Position: 0, PreviewURL: "https://p.scdn.co/mp3-preview/track-1"},
		{SpotifyID: "track-2", Title: "Second", Artists: []string{"Beta", "Gamma"}, Album: "B", DurationMS: 210000, Position: 1},
	}
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	first, err := NextSequence(db, "playlists")
	if err != nil {
		t.Fatalf("failed to get sequence: %v", err)
	}
	second, err := NextSequence(db, "playlists")
	if err != nil {
		t.Fatalf("failed to get sequence: %v", err)
	}

	if first != 1 || second != 2 {
		t.Errorf("expected sequences 1 and 2, got %d and %d", first, second)
	}
}

func TestPlaylistRepository(t *testing.T) {
	t.Run("Create And Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlaylistRepository(db)
		playlist := models.NewPersistedPlaylist(0, testPlaylist())

		if err := repo.Create(playlist); err != nil {
			t.Fatalf("failed to create playlist: %v", err)
		}
		if playlist.ID() == "" {
			t.Error("playlist ID should be set after creation")
		}

		got, err := repo.Get(playlist.ID())
		if err != nil {
			t.Fatalf("failed to get playlist: %v", err)
		}
		if got.Name() != "Today's Top Hits" || got.SpotifyID() != "37i9dQZF1DXcBWIGoYBM5M" {
			t.Errorf("unexpected playlist: %s / %s", got.Name(), got.SpotifyID())
		}
		if !got.Public() {
			t.Error("public flag should survive a round trip")
		}
		if got.SourceURL() != "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M" {
			t.Errorf("source URL should survive a round trip, got %q", got.SourceURL())
		}
	})

	t.Run("Get NotFound", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlaylistRepository(db)
		if _, err := repo.Get("missing"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Duplicate SpotifyID", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlaylistRepository(db)
		if err := repo.Create(models.NewPersistedPlaylist(0, testPlaylist())); err != nil {
			t.Fatalf("failed to create playlist: %v", err)
		}

		err := repo.Create(models.NewPersistedPlaylist(0, testPlaylist()))
		if !errors.Is(err, shared.ErrUniqueViolation) {
			t.Errorf("expected ErrUniqueViolation, got %v", err)
		}
	})

	t.Run("GetBySpotifyID", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlaylistRepository(db)
		playlist := models.NewPersistedPlaylist(0, testPlaylist())
		if err := repo.Create(playlist); err != nil {
			t.Fatalf("failed to create playlist: %v", err)
		}

		got, err := repo.GetBySpotifyID("37i9dQZF1DXcBWIGoYBM5M")
		if err != nil {
			t.Fatalf("failed to get playlist by spotify id: %v", err)
		}
		if got.ID() != playlist.ID() {
			t.Errorf("expected ID %s, got %s", playlist.ID(), got.ID())
		}
	})

	t.Run("CreateWithTracks", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlaylistRepository(db)
		playlist := models.NewPersistedPlaylist(0, testPlaylist())

		persisted, err := repo.CreateWithTracks(playlist, testTracks())
		if err != nil {
			t.Fatalf("failed to create playlist with tracks: %v", err)
		}
		if len(persisted) != 2 {
			t.Fatalf("expected 2 persisted tracks, got %d", len(persisted))
		}

		tracks := NewTrackRepository(db)
		got, err := tracks.ListByPlaylist(playlist.ID())
		if err != nil {
			t.Fatalf("failed to list tracks: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 tracks, got %d", len(got))
		}
		if got[0].Title() != "First" || got[1].Title() != "Second" {
			t.Errorf("tracks out of order: %s, %s", got[0].Title(), got[1].Title())
		}
		if len(got[1].Artists()) != 2 {
			t.Errorf("expected 2 artists on second track, got %v", got[1].Artists())
		}
		if got[0].PreviewURL() != "https://p.scdn.co/mp3-preview/track-1" {
			t.Errorf("preview URL should survive a round trip, got %q", got[0].PreviewURL())
		}
	})

	t.Run("CreateWithTracks Rolls Back On Duplicate", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlaylistRepository(db)
		if _, err := repo.CreateWithTracks(models.NewPersistedPlaylist(0, testPlaylist()), testTracks()); err != nil {
			t.Fatalf("failed to create first snapshot: %v", err)
		}

		_, err := repo.CreateWithTracks(models.NewPersistedPlaylist(0, testPlaylist()), testTracks())
		if !errors.Is(err, shared.ErrUniqueViolation) {
			t.Fatalf("expected ErrUniqueViolation, got %v", err)
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM tracks").Scan(&count); err != nil {
			t.Fatalf("failed to count tracks: %v", err)
		}
		if count != 2 {
			t.Errorf("expected duplicate snapshot to leave 2 tracks, got %d", count)
		}
	})

	t.Run("Delete Cascades To Tracks", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlaylistRepository(db)
		playlist := models.NewPersistedPlaylist(0, testPlaylist())
		if _, err := repo.CreateWithTracks(playlist, testTracks()); err != nil {
			t.Fatalf("failed to create playlist with tracks: %v", err)
		}

		if err := repo.Delete(playlist.ID()); err != nil {
			t.Fatalf("failed to delete playlist: %v", err)
		}

		tracks, err := NewTrackRepository(db).ListByPlaylist(playlist.ID())
		if err != nil {
			t.Fatalf("failed to list tracks: %v", err)
		}
		if len(tracks) != 0 {
			t.Errorf("expected tracks to cascade, found %d", len(tracks))
		}
	})

	t.Run("List", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlaylistRepository(db)
		if err := repo.Create(models.NewPersistedPlaylist(0, testPlaylist())); err != nil {
			t.Fatalf("failed to create playlist: %v", err)
		}

		other := testPlaylist()
		other.SpotifyID = "anotherplaylistid00001"
		other.Owner = "someone"
		if err := repo.Create(models.NewPersistedPlaylist(0, other)); err != nil {
			t.Fatalf("failed to create playlist: %v", err)
		}

		all, err := repo.List(map[string]any{})
		if err != nil {
			t.Fatalf("failed to list playlists: %v", err)
		}
		if len(all) != 2 {
			t.Errorf("expected 2 playlists, got %d", len(all))
		}

		mine, err := repo.List(map[string]any{"owner": "someone"})
		if err != nil {
			t.Fatalf("failed to list playlists by owner: %v", err)
		}
		if len(mine) != 1 {
			t.Errorf("expected 1 playlist for owner, got %d", len(mine))
		}
	})
}

func TestSessionRepository(t *testing.T) {
	createPlaylist := func(t *testing.T, db *sql.DB) *models.PersistedPlaylist {
		t.Helper()
		playlist := models.NewPersistedPlaylist(0, testPlaylist())
		if err := NewPlaylistRepository(db).Create(playlist); err != nil {
			t.Fatalf("failed to create playlist: %v", err)
		}
		return playlist
	}

	t.Run("Create And Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		playlist := createPlaylist(t, db)
		repo := NewSessionRepository(db)
		session := models.NewDownloadSession(0, playlist.ID(), 2, "standard")

		if err := repo.Create(session); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}
		if session.ID() == "" {
			t.Error("session ID should be set after creation")
		}

		got, err := repo.Get(session.ID())
		if err != nil {
			t.Fatalf("failed to get session: %v", err)
		}
		if got.Status() != models.StatusPending {
			t.Errorf("expected pending session, got %s", got.Status())
		}
		if got.TracksTotal() != 2 {
			t.Errorf("expected 2 total tracks, got %d", got.TracksTotal())
		}
		if got.CompletedAt() != nil {
			t.Error("pending session should not have completed_at")
		}
	})

	t.Run("Get NotFound", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewSessionRepository(db)
		if _, err := repo.Get("missing"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ApplyProgress", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		playlist := createPlaylist(t, db)
		repo := NewSessionRepository(db)
		session := models.NewDownloadSession(0, playlist.ID(), 2, "standard")
		if err := repo.Create(session); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}

		updated, err := repo.ApplyProgress(session.ID(), models.SessionProgress{
			Processed: 1, Successful: 1, Failed: 0, Status: models.StatusProcessing,
		})
		if err != nil {
			t.Fatalf("failed to apply progress: %v", err)
		}
		if updated.Status() != models.StatusProcessing || updated.TracksProcessed() != 1 {
			t.Errorf("unexpected session state: %s processed=%d", updated.Status(), updated.TracksProcessed())
		}

		final, err := repo.ApplyProgress(session.ID(), models.SessionProgress{
			Processed: 2, Successful: 1, Failed: 1, Status: models.StatusCompleted,
		})
		if err != nil {
			t.Fatalf("failed to complete session: %v", err)
		}
		if final.CompletedAt() == nil {
			t.Error("expected completed_at after completion")
		}

		stored, err := repo.Get(session.ID())
		if err != nil {
			t.Fatalf("failed to reload session: %v", err)
		}
		if stored.Status() != models.StatusCompleted || stored.TracksFailed() != 1 {
			t.Errorf("persisted state mismatch: %s failed=%d", stored.Status(), stored.TracksFailed())
		}
	})

	t.Run("ApplyProgress Errors", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		playlist := createPlaylist(t, db)
		repo := NewSessionRepository(db)
		session := models.NewDownloadSession(0, playlist.ID(), 2, "standard")
		if err := repo.Create(session); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}

		_, err := repo.ApplyProgress("missing", models.SessionProgress{Status: models.StatusProcessing})
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound for unknown session, got %v", err)
		}

		_, err = repo.ApplyProgress(session.ID(), models.SessionProgress{
			Processed: 1, Successful: 0, Failed: 0, Status: models.StatusProcessing,
		})
		if !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected ErrValidation for inconsistent counters, got %v", err)
		}

		_, err = repo.ApplyProgress(session.ID(), models.SessionProgress{
			Processed: 0, Successful: 0, Failed: 0, Status: models.StatusCompleted,
		})
		if !errors.Is(err, shared.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition for pending to completed, got %v", err)
		}

		stored, err := repo.Get(session.ID())
		if err != nil {
			t.Fatalf("failed to reload session: %v", err)
		}
		if stored.Status() != models.StatusPending || stored.TracksProcessed() != 0 {
			t.Errorf("rejected patches should not persist, got %s processed=%d", stored.Status(), stored.TracksProcessed())
		}
	})

	t.Run("List By Status", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		playlist := createPlaylist(t, db)
		repo := NewSessionRepository(db)

		first := models.NewDownloadSession(0, playlist.ID(), 1, "standard")
		second := models.NewDownloadSession(0, playlist.ID(), 1, "high")
		if err := repo.Create(first); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}
		if err := repo.Create(second); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}

		if _, err := repo.ApplyProgress(first.ID(), models.SessionProgress{Status: models.StatusProcessing}); err != nil {
			t.Fatalf("failed to start session: %v", err)
		}

		pending, err := repo.List(map[string]any{"status": "pending"})
		if err != nil {
			t.Fatalf("failed to list sessions: %v", err)
		}
		if len(pending) != 1 || pending[0].ID() != second.ID() {
			t.Errorf("expected only the second session pending, got %d", len(pending))
		}
	})
}

// setupPooledTestDB opens a file-backed database with the connection pool
// left on, the way the server runs it. Idle connections are disabled so
// successive statements land on fresh connections.
func setupPooledTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(filepath.Join(t.TempDir(), "spindl.db"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	shared.ConfigureDatabase(db, 8, 0)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func TestTrackCascadeAcrossPool(t *testing.T) {
	db := setupPooledTestDB(t)
	defer db.Close()

	repo := NewPlaylistRepository(db)
	playlist := models.NewPersistedPlaylist(0, testPlaylist())
	tracks, err := repo.CreateWithTracks(playlist, testTracks())
	if err != nil {
		t.Fatalf("failed to create playlist with tracks: %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(tracks))
	}

	if err := repo.Delete(playlist.ID()); err != nil {
		t.Fatalf("failed to delete playlist: %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM tracks").Scan(&count); err != nil {
		t.Fatalf("failed to count tracks: %v", err)
	}
	if count != 0 {
		t.Errorf("expected track rows to cascade with their playlist, found %d", count)
	}
}

func TestApplyProgressConcurrent(t *testing.T) {
	db := setupPooledTestDB(t)
	defer db.Close()

	playlist := models.NewPersistedPlaylist(0, testPlaylist())
	if err := NewPlaylistRepository(db).Create(playlist); err != nil {
		t.Fatalf("failed to create playlist: %v", err)
	}

	const steps = 8
	repo := NewSessionRepository(db)
	session := models.NewDownloadSession(0, playlist.ID(), steps, "standard")
	if err := repo.Create(session); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	var wg sync.WaitGroup
	for i := 1; i <= steps; i++ {
		wg.Add(1)
		go func(step int) {
			defer wg.Done()
			_, err := repo.ApplyProgress(session.ID(), models.SessionProgress{
				Processed: step, Successful: step, Status: models.StatusProcessing,
			})
			// A step landing after a larger one reads as a counter
			// regression. Anything else means an update was dropped.
			if err != nil && !errors.Is(err, shared.ErrValidation) {
				t.Errorf("step %d: %v", step, err)
			}
		}(i)
	}
	wg.Wait()

	stored, err := repo.Get(session.ID())
	if err != nil {
		t.Fatalf("failed to reload session: %v", err)
	}
	if stored.TracksProcessed() != steps {
		t.Errorf("expected the highest step %d to survive, got processed=%d", steps, stored.TracksProcessed())
	}
	if stored.TracksProcessed() != stored.TracksSuccessful()+stored.TracksFailed() {
		t.Errorf("counters diverged: processed=%d successful=%d failed=%d",
			stored.TracksProcessed(), stored.TracksSuccessful(), stored.TracksFailed())
	}
	if stored.Status() != models.StatusProcessing {
		t.Errorf("expected processing session, got %s", stored.Status())
	}
}
