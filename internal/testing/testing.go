// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/hollowscene/spindl/internal/models"
	"github.com/hollowscene/spindl/internal/services"
)

// MockCatalog is a test double for [services.Catalog].
//
// Responses are keyed by playlist ID; unknown IDs return the configured
// Err or a generic not found error.
type MockCatalog struct {
	Playlists map[string]models.Playlist
	Entries   map[string][]services.PlaylistEntry
	Err       error
}

func (m *MockCatalog) GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	playlist, ok := m.Playlists[playlistID]
	if !ok {
		return nil, fmt.Errorf("playlist not found: %s", playlistID)
	}
	return &playlist, nil
}

func (m *MockCatalog) GetPlaylistTracks(ctx context.Context, playlistID string) ([]services.PlaylistEntry, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	entries, ok := m.Entries[playlistID]
	if !ok {
		return nil, fmt.Errorf("playlist not found: %s", playlistID)
	}
	return entries, nil
}

// MockFetcher is a test double for [services.AudioFetcher].
//
// FailQueries lists search queries that should fail; everything else
// succeeds with a synthetic result. Calls are recorded for assertions.
type MockFetcher struct {
	FailQueries map[string]error
	Err         error

	mu      sync.Mutex
	Queries []string
}

func (m *MockFetcher) Fetch(ctx context.Context, query string, quality services.Quality, filename string) (*services.AudioResult, error) {
	m.mu.Lock()
	m.Queries = append(m.Queries, query)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if err, ok := m.FailQueries[query]; ok {
		return nil, err
	}

	return &services.AudioResult{
		VideoID: "video-" + filename,
		Title:   query,
		Path:    filename + ".m4a",
		Bytes:   1024,
	}, nil
}

// FetchCount returns how many fetches were attempted.
func (m *MockFetcher) FetchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Queries)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory: %v", err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
