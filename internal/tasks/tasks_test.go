package tasks

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/hollowscene/spindl/internal/models"
	"github.com/hollowscene/spindl/internal/repositories"
	"github.com/hollowscene/spindl/internal/services"
	"github.com/hollowscene/spindl/internal/shared"
	mocks "github.com/hollowscene/spindl/internal/testing"
)

const testPlaylistID = "37i9dQZF1DXcBWIGoYBM5M"

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func newTestEngine(t *testing.T, db *sql.DB, catalog services.Catalog, fetcher services.AudioFetcher) *DownloadEngine {
	t.Helper()
	return NewDownloadEngine(
		catalog,
		fetcher,
		repositories.NewPlaylistRepository(db),
		repositories.NewTrackRepository(db),
		repositories.NewSessionRepository(db),
		shared.NewLogger(io.Discard),
	)
}

// threeEntryCatalog returns a catalog with a playlist of three entries
// where the middle entry has no playable track.
func threeEntryCatalog() *mocks.MockCatalog {
	return &mocks.MockCatalog{
		Playlists: map[string]models.Playlist{
			testPlaylistID: {
				SpotifyID:  testPlaylistID,
				Name:       "Mixed Bag",
				Owner:      "spotify",
				TrackCount: 3,
			},
		},
		Entries: map[string][]services.PlaylistEntry{
			testPlaylistID: {
				{Track: &models.Track{SpotifyID: "t1", Title: "First", Artists: []string{"Alpha"}, Position: 0}},
				{Track: nil},
				{Track: &models.Track{SpotifyID: "t3", Title: "Third", Artists: []string{"Gamma"}, Position: 2}},
			},
		},
	}
}

func TestReconcile(t *testing.T) {
	t.Run("Excludes Unavailable Entries", func(t *testing.T) {
		db := setupTestDB(t)
		engine := newTestEngine(t, db, threeEntryCatalog(), &mocks.MockFetcher{})

		result, err := engine.Reconcile(context.Background(), nil, testPlaylistID, false)
		if err != nil {
			t.Fatalf("reconcile failed: %v", err)
		}

		if result.Total != 3 || result.Accepted != 2 || result.Skipped != 1 {
			t.Errorf("expected 3 total / 2 accepted / 1 skipped, got %d/%d/%d", result.Total, result.Accepted, result.Skipped)
		}
		if len(result.Tracks) != 2 {
			t.Fatalf("expected 2 stored tracks, got %d", len(result.Tracks))
		}
		if result.Tracks[0].Title() != "First" || result.Tracks[1].Title() != "Third" {
			t.Errorf("unexpected track order: %s, %s", result.Tracks[0].Title(), result.Tracks[1].Title())
		}
		if result.FromCache {
			t.Error("first reconcile should not come from cache")
		}
	})

	t.Run("Excludes Tracks Missing Metadata", func(t *testing.T) {
		db := setupTestDB(t)
		catalog := threeEntryCatalog()
		catalog.Entries[testPlaylistID] = append(catalog.Entries[testPlaylistID],
			services.PlaylistEntry{Track: &models.Track{SpotifyID: "t4", Title: "", Artists: []string{"Delta"}}},
			services.PlaylistEntry{Track: &models.Track{SpotifyID: "t5", Title: "Untitled", Artists: nil}},
		)
		engine := newTestEngine(t, db, catalog, &mocks.MockFetcher{})

		result, err := engine.Reconcile(context.Background(), nil, testPlaylistID, false)
		if err != nil {
			t.Fatalf("reconcile failed: %v", err)
		}
		if result.Accepted != 2 || result.Skipped != 3 {
			t.Errorf("expected 2 accepted / 3 skipped, got %d/%d", result.Accepted, result.Skipped)
		}
	})

	t.Run("Excludes Unplayable Tracks", func(t *testing.T) {
		db := setupTestDB(t)
		unplayable := false
		catalog := threeEntryCatalog()
		catalog.Entries[testPlaylistID] = append(catalog.Entries[testPlaylistID],
			services.PlaylistEntry{Track: &models.Track{SpotifyID: "t4", Title: "Region Locked", Artists: []string{"Delta"}, Playable: &unplayable}},
		)
		engine := newTestEngine(t, db, catalog, &mocks.MockFetcher{})

		result, err := engine.Reconcile(context.Background(), nil, testPlaylistID, false)
		if err != nil {
			t.Fatalf("reconcile failed: %v", err)
		}
		if result.Accepted != 2 || result.Skipped != 2 {
			t.Errorf("expected 2 accepted / 2 skipped, got %d/%d", result.Accepted, result.Skipped)
		}
	})

	t.Run("Second Reconcile Uses Store", func(t *testing.T) {
		db := setupTestDB(t)
		catalog := threeEntryCatalog()
		engine := newTestEngine(t, db, catalog, &mocks.MockFetcher{})

		if _, err := engine.Reconcile(context.Background(), nil, testPlaylistID, false); err != nil {
			t.Fatalf("first reconcile failed: %v", err)
		}

		// A catalog failure now proves the second call never hits the API.
		catalog.Err = errors.New("catalog should not be called")

		result, err := engine.Reconcile(context.Background(), nil, testPlaylistID, false)
		if err != nil {
			t.Fatalf("second reconcile failed: %v", err)
		}
		if !result.FromCache {
			t.Error("expected cached snapshot")
		}
		if len(result.Tracks) != 2 {
			t.Errorf("expected 2 tracks from store, got %d", len(result.Tracks))
		}
	})

	t.Run("Force Refetches", func(t *testing.T) {
		db := setupTestDB(t)
		catalog := threeEntryCatalog()
		engine := newTestEngine(t, db, catalog, &mocks.MockFetcher{})

		if _, err := engine.Reconcile(context.Background(), nil, testPlaylistID, false); err != nil {
			t.Fatalf("first reconcile failed: %v", err)
		}

		entry := catalog.Entries[testPlaylistID]
		catalog.Entries[testPlaylistID] = append(entry,
			services.PlaylistEntry{Track: &models.Track{SpotifyID: "t6", Title: "Fourth", Artists: []string{"Delta"}, Position: 3}})

		result, err := engine.Reconcile(context.Background(), nil, testPlaylistID, true)
		if err != nil {
			t.Fatalf("forced reconcile failed: %v", err)
		}
		if result.FromCache {
			t.Error("forced reconcile should not come from cache")
		}
		if len(result.Tracks) != 3 {
			t.Errorf("expected 3 tracks after refetch, got %d", len(result.Tracks))
		}
	})

	t.Run("Failed Force Refetch Keeps Snapshot", func(t *testing.T) {
		db := setupTestDB(t)
		catalog := threeEntryCatalog()
		engine := newTestEngine(t, db, catalog, &mocks.MockFetcher{})

		if _, err := engine.Reconcile(context.Background(), nil, testPlaylistID, false); err != nil {
			t.Fatalf("first reconcile failed: %v", err)
		}

		catalog.Err = errors.New("spotify is down")
		if _, err := engine.Reconcile(context.Background(), nil, testPlaylistID, true); err == nil {
			t.Fatal("expected forced reconcile to fail")
		}

		catalog.Err = nil
		result, err := engine.Reconcile(context.Background(), nil, testPlaylistID, false)
		if err != nil {
			t.Fatalf("reconcile after failed refresh failed: %v", err)
		}
		if !result.FromCache {
			t.Error("stored snapshot should have survived the failed refresh")
		}
		if len(result.Tracks) != 2 {
			t.Errorf("expected the original 2 tracks, got %d", len(result.Tracks))
		}
	})

	t.Run("Accepts Playlist URL", func(t *testing.T) {
		db := setupTestDB(t)
		engine := newTestEngine(t, db, threeEntryCatalog(), &mocks.MockFetcher{})

		url := "https://open.spotify.com/playlist/" + testPlaylistID + "?si=xyz"
		result, err := engine.Reconcile(context.Background(), nil, url, false)
		if err != nil {
			t.Fatalf("reconcile by URL failed: %v", err)
		}
		if result.Playlist.SpotifyID() != testPlaylistID {
			t.Errorf("expected spotify ID %s, got %s", testPlaylistID, result.Playlist.SpotifyID())
		}
	})

	t.Run("Invalid Reference", func(t *testing.T) {
		db := setupTestDB(t)
		engine := newTestEngine(t, db, threeEntryCatalog(), &mocks.MockFetcher{})

		_, err := engine.Reconcile(context.Background(), nil, "", false)
		if !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected validation error, got %v", err)
		}
	})
}

func TestStartSession(t *testing.T) {
	db := setupTestDB(t)
	engine := newTestEngine(t, db, threeEntryCatalog(), &mocks.MockFetcher{})

	session, reconciled, err := engine.StartSession(context.Background(), nil, testPlaylistID, services.QualityStandard, false)
	if err != nil {
		t.Fatalf("start session failed: %v", err)
	}

	if session.Status() != models.StatusPending {
		t.Errorf("expected pending session, got %s", session.Status())
	}
	if session.TracksTotal() != 2 {
		t.Errorf("expected session sized to 2 downloadable tracks, got %d", session.TracksTotal())
	}
	if session.PlaylistID() != reconciled.Playlist.ID() {
		t.Error("session should reference the stored playlist")
	}
	if session.Quality() != "standard" {
		t.Errorf("expected standard quality, got %s", session.Quality())
	}
}

func TestRun(t *testing.T) {
	start := func(t *testing.T, engine *DownloadEngine) *models.DownloadSession {
		t.Helper()
		session, _, err := engine.StartSession(context.Background(), nil, testPlaylistID, services.QualityStandard, false)
		if err != nil {
			t.Fatalf("start session failed: %v", err)
		}
		return session
	}

	opts := RunOptions{RateLimit: 1000, TrackTimeout: time.Second}

	t.Run("All Tracks Succeed", func(t *testing.T) {
		db := setupTestDB(t)
		fetcher := &mocks.MockFetcher{}
		engine := newTestEngine(t, db, threeEntryCatalog(), fetcher)
		session := start(t, engine)

		result, err := engine.Run(context.Background(), nil, session.ID(), opts)
		if err != nil {
			t.Fatalf("run failed: %v", err)
		}

		if result.Session.Status() != models.StatusCompleted {
			t.Errorf("expected completed session, got %s", result.Session.Status())
		}
		if result.SuccessCount != 2 || result.FailedCount != 0 {
			t.Errorf("expected 2 successful / 0 failed, got %d/%d", result.SuccessCount, result.FailedCount)
		}
		if result.Session.TracksProcessed() != 2 {
			t.Errorf("expected 2 processed, got %d", result.Session.TracksProcessed())
		}
		if result.Session.CompletedAt() == nil {
			t.Error("expected completed_at to be stamped")
		}
		if fetcher.FetchCount() != 2 {
			t.Errorf("expected 2 fetches, got %d", fetcher.FetchCount())
		}
	})

	t.Run("Partial Failure Still Completes", func(t *testing.T) {
		db := setupTestDB(t)
		fetcher := &mocks.MockFetcher{
			FailQueries: map[string]error{"Gamma Third": errors.New("no stream")},
		}
		engine := newTestEngine(t, db, threeEntryCatalog(), fetcher)
		session := start(t, engine)

		result, err := engine.Run(context.Background(), nil, session.ID(), opts)
		if err != nil {
			t.Fatalf("run failed: %v", err)
		}

		if result.Session.Status() != models.StatusCompleted {
			t.Errorf("expected completed session despite failure, got %s", result.Session.Status())
		}
		if result.Session.TracksProcessed() != 2 || result.Session.TracksSuccessful() != 1 || result.Session.TracksFailed() != 1 {
			t.Errorf("expected processed=2 successful=1 failed=1, got %d/%d/%d",
				result.Session.TracksProcessed(), result.Session.TracksSuccessful(), result.Session.TracksFailed())
		}

		var sawFailure bool
		for _, outcome := range result.Results {
			if outcome.Error != nil {
				sawFailure = true
				if outcome.Track.Title() != "Third" {
					t.Errorf("expected failure on Third, got %s", outcome.Track.Title())
				}
			}
		}
		if !sawFailure {
			t.Error("expected a failed track result")
		}
	})

	t.Run("Builds Search Queries From Track Metadata", func(t *testing.T) {
		db := setupTestDB(t)
		fetcher := &mocks.MockFetcher{}
		engine := newTestEngine(t, db, threeEntryCatalog(), fetcher)
		session := start(t, engine)

		if _, err := engine.Run(context.Background(), nil, session.ID(), opts); err != nil {
			t.Fatalf("run failed: %v", err)
		}

		if len(fetcher.Queries) != 2 || fetcher.Queries[0] != "Alpha First" || fetcher.Queries[1] != "Gamma Third" {
			t.Errorf("unexpected queries: %v", fetcher.Queries)
		}
	})

	t.Run("Cancellation Fails Session", func(t *testing.T) {
		db := setupTestDB(t)
		fetcher := &mocks.MockFetcher{}
		engine := newTestEngine(t, db, threeEntryCatalog(), fetcher)
		session := start(t, engine)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := engine.Run(ctx, nil, session.ID(), opts)
		if err == nil {
			t.Fatal("expected error from canceled run")
		}

		stored, err := repositories.NewSessionRepository(db).Get(session.ID())
		if err != nil {
			t.Fatalf("failed to reload session: %v", err)
		}
		if stored.Status() != models.StatusFailed {
			t.Errorf("expected failed session after cancellation, got %s", stored.Status())
		}
	})

	t.Run("External Terminal State Halts Run", func(t *testing.T) {
		db := setupTestDB(t)
		fetcher := &mocks.MockFetcher{}
		engine := newTestEngine(t, db, threeEntryCatalog(), fetcher)
		session := start(t, engine)

		sessions := repositories.NewSessionRepository(db)
		if _, err := sessions.ApplyProgress(session.ID(), models.SessionProgress{Status: models.StatusFailed}); err != nil {
			t.Fatalf("failed to fail session externally: %v", err)
		}

		_, err := engine.Run(context.Background(), nil, session.ID(), opts)
		if !errors.Is(err, shared.ErrInvalidTransition) {
			t.Errorf("expected invalid transition for terminal session, got %v", err)
		}
		if fetcher.FetchCount() != 0 {
			t.Errorf("expected no fetches on terminal session, got %d", fetcher.FetchCount())
		}
	})

	t.Run("Unknown Session", func(t *testing.T) {
		db := setupTestDB(t)
		engine := newTestEngine(t, db, threeEntryCatalog(), &mocks.MockFetcher{})

		_, err := engine.Run(context.Background(), nil, "missing", opts)
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})

	t.Run("Detached Session Fails", func(t *testing.T) {
		db := setupTestDB(t)
		engine := newTestEngine(t, db, threeEntryCatalog(), &mocks.MockFetcher{})

		// A deleted playlist leaves its sessions with a NULL reference.
		sessions := repositories.NewSessionRepository(db)
		session := models.NewDownloadSession(0, "", 3, "standard")
		if err := sessions.Create(session); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}

		result, err := engine.Run(context.Background(), nil, session.ID(), opts)
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
		if result == nil || result.Session.Status() != models.StatusFailed {
			t.Error("session without a playlist should be marked failed")
		}
		if result != nil && len(result.Results) != 0 {
			t.Errorf("no tracks should have been attempted, got %d", len(result.Results))
		}
	})

	t.Run("Empty Playlist Completes Immediately", func(t *testing.T) {
		db := setupTestDB(t)
		catalog := &mocks.MockCatalog{
			Playlists: map[string]models.Playlist{
				testPlaylistID: {SpotifyID: testPlaylistID, Name: "Empty", Owner: "spotify"},
			},
			Entries: map[string][]services.PlaylistEntry{testPlaylistID: {}},
		}
		engine := newTestEngine(t, db, catalog, &mocks.MockFetcher{})
		session := start(t, engine)

		result, err := engine.Run(context.Background(), nil, session.ID(), opts)
		if err != nil {
			t.Fatalf("run failed: %v", err)
		}
		if result.Session.Status() != models.StatusCompleted || result.TotalTracks != 0 {
			t.Errorf("expected immediate completion, got %s with %d tracks", result.Session.Status(), result.TotalTracks)
		}
	})

	t.Run("Emits Progress Updates", func(t *testing.T) {
		db := setupTestDB(t)
		engine := newTestEngine(t, db, threeEntryCatalog(), &mocks.MockFetcher{})
		session := start(t, engine)

		progress := make(chan ProgressUpdate, 64)
		if _, err := engine.Run(context.Background(), progress, session.ID(), opts); err != nil {
			t.Fatalf("run failed: %v", err)
		}
		close(progress)

		var phases []Phase
		for update := range progress {
			phases = append(phases, update.Phase)
		}
		if len(phases) == 0 {
			t.Fatal("expected progress updates")
		}
		if phases[len(phases)-1] != Finalize {
			t.Errorf("expected final update to be finalize, got %s", phases[len(phases)-1])
		}
	})
}
