package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/hollowscene/spindl/internal/shared"
)

func TestParseQuality(t *testing.T) {
	cases := []struct {
		input   string
		want    Quality
		bitrate int
		wantErr bool
	}{
		{"", QualityStandard, 192, false},
		{"low", QualityLow, 96, false},
		{"standard", QualityStandard, 192, false},
		{"high", QualityHigh, 320, false},
		{"ultra", "", 0, true},
		{"192", "", 0, true},
	}

	for _, tc := range cases {
		got, err := ParseQuality(tc.input)
		if tc.wantErr {
			if !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("ParseQuality(%q): expected ErrInvalidArgument, got %v", tc.input, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseQuality(%q): unexpected error %v", tc.input, err)
			continue
		}
		if got != tc.want || got.Bitrate() != tc.bitrate {
			t.Errorf("ParseQuality(%q) = %q (%d kbps), want %q (%d kbps)", tc.input, got, got.Bitrate(), tc.want, tc.bitrate)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"Daft Punk - Get Lucky", "Daft Punk - Get Lucky"},
		{"AC/DC - Back In Black", "AC-DC - Back In Black"},
		{"What? <Why> | \"How\"", "What Why  How"},
		{"  padded  ", "padded"},
		{"///", "---"},
		{"", "track"},
	}

	for _, tc := range cases {
		if got := SanitizeFilename(tc.input); got != tc.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestYouTubeFetcherDownload(t *testing.T) {
	logger := shared.NewLogger(io.Discard)

	t.Run("Writes Stream To Disk", func(t *testing.T) {
		payload := []byte("fake audio bytes")
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write(payload)
		}))
		defer server.Close()

		dir := t.TempDir()
		fetcher := NewYouTubeFetcher("key", dir, logger)

		path := filepath.Join(dir, "song.m4a")
		bytes, err := fetcher.download(context.Background(), server.URL, path)
		if err != nil {
			t.Fatalf("download failed: %v", err)
		}
		if bytes != int64(len(payload)) {
			t.Errorf("expected %d bytes, got %d", len(payload), bytes)
		}

		written, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read downloaded file: %v", err)
		}
		if string(written) != string(payload) {
			t.Error("downloaded content does not match stream")
		}
	})

	t.Run("Maps HTTP Errors To Upstream", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer server.Close()

		dir := t.TempDir()
		fetcher := NewYouTubeFetcher("key", dir, logger)

		_, err := fetcher.download(context.Background(), server.URL, filepath.Join(dir, "song.m4a"))
		if !errors.Is(err, shared.ErrUpstream) {
			t.Errorf("expected ErrUpstream, got %v", err)
		}
	})

	t.Run("Respects Context Cancellation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("slow"))
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		dir := t.TempDir()
		fetcher := NewYouTubeFetcher("key", dir, logger)

		_, err := fetcher.download(ctx, server.URL, filepath.Join(dir, "song.m4a"))
		if err == nil {
			t.Error("expected error from canceled context")
		}
	})
}
