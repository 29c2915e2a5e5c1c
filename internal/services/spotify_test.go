package services

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/zmb3/spotify/v2"

	"github.com/hollowscene/spindl/internal/shared"
)

func TestExtractPlaylistID(t *testing.T) {
	t.Run("Accepted Inputs", func(t *testing.T) {
		cases := []struct {
			name  string
			input string
			want  string
		}{
			{"full url", "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M", "37i9dQZF1DXcBWIGoYBM5M"},
			{"url with query", "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M?si=abc123", "37i9dQZF1DXcBWIGoYBM5M"},
			{"url with trailing slash", "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M/", "37i9dQZF1DXcBWIGoYBM5M"},
			{"spotify uri", "spotify:playlist:37i9dQZF1DXcBWIGoYBM5M", "37i9dQZF1DXcBWIGoYBM5M"},
			{"bare id", "37i9dQZF1DXcBWIGoYBM5M", "37i9dQZF1DXcBWIGoYBM5M"},
			{"whitespace", "  37i9dQZF1DXcBWIGoYBM5M\n", "37i9dQZF1DXcBWIGoYBM5M"},
			{"short id passthrough", "myplaylist", "myplaylist"},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				got, err := ExtractPlaylistID(tc.input)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got != tc.want {
					t.Errorf("expected %q, got %q", tc.want, got)
				}
			})
		}
	})

	t.Run("Rejected Inputs", func(t *testing.T) {
		cases := []struct {
			name  string
			input string
		}{
			{"empty", ""},
			{"whitespace only", "   "},
			{"url without id", "https://open.spotify.com/playlist/"},
			{"unrelated url", "https://example.com/something"},
			{"garbage with spaces", "not a playlist"},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := ExtractPlaylistID(tc.input)
				if !errors.Is(err, shared.ErrValidation) {
					t.Errorf("expected validation error, got %v", err)
				}
			})
		}
	})
}

func TestMapSpotifyError(t *testing.T) {
	t.Run("Typed NotFound", func(t *testing.T) {
		err := mapSpotifyError(spotify.Error{Message: "Not found.", Status: 404}, "playlist abc")
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Typed Upstream", func(t *testing.T) {
		err := mapSpotifyError(spotify.Error{Message: "Server error.", Status: 500}, "playlist abc")
		if !errors.Is(err, shared.ErrUpstream) {
			t.Errorf("expected ErrUpstream, got %v", err)
		}
	})

	t.Run("Untyped 404 Is Upstream", func(t *testing.T) {
		// Only a typed API error carries a trustworthy status code.
		err := mapSpotifyError(errors.New("spotify: HTTP 404: Not Found"), "playlist abc")
		if !errors.Is(err, shared.ErrUpstream) {
			t.Errorf("expected ErrUpstream, got %v", err)
		}
		if errors.Is(err, shared.ErrNotFound) {
			t.Errorf("untyped error should not map to ErrNotFound, got %v", err)
		}
	})

	t.Run("Untyped Upstream", func(t *testing.T) {
		err := mapSpotifyError(errors.New("connection reset"), "playlist abc")
		if !errors.Is(err, shared.ErrUpstream) {
			t.Errorf("expected ErrUpstream, got %v", err)
		}
	})
}

func TestNewSpotifyCatalog(t *testing.T) {
	t.Run("Missing Credentials", func(t *testing.T) {
		logger := shared.NewLogger(io.Discard)
		_, err := NewSpotifyCatalog(context.Background(), shared.SpotifyConfig{}, logger)
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})
}

func TestConvertEntry(t *testing.T) {
	t.Run("Maps Track Fields", func(t *testing.T) {
		unplayable := false
		item := spotify.PlaylistItem{
			Track: spotify.PlaylistItemTrack{
				Track: &spotify.FullTrack{
					SimpleTrack: spotify.SimpleTrack{
						ID:         "track-1",
						Name:       "Song",
						Artists:    []spotify.SimpleArtist{{Name: "Alpha"}, {Name: "Beta"}},
						Duration:   180000,
						PreviewURL: "https://p.scdn.co/mp3-preview/track-1",
					},
					Album:      spotify.SimpleAlbum{Name: "Album"},
					IsPlayable: &unplayable,
				},
			},
		}

		entry := convertEntry(item, 4)
		if entry.Track == nil {
			t.Fatal("expected a mapped track")
		}
		track := entry.Track
		if track.SpotifyID != "track-1" || track.Title != "Song" || track.Album != "Album" {
			t.Errorf("unexpected mapping: %+v", track)
		}
		if len(track.Artists) != 2 || track.Artists[0] != "Alpha" {
			t.Errorf("unexpected artists: %v", track.Artists)
		}
		if track.DurationMS != 180000 || track.Position != 4 {
			t.Errorf("unexpected duration/position: %d/%d", track.DurationMS, track.Position)
		}
		if track.PreviewURL != "https://p.scdn.co/mp3-preview/track-1" {
			t.Errorf("unexpected preview url: %q", track.PreviewURL)
		}
		if track.Playable == nil || *track.Playable {
			t.Error("playable flag should carry through as false")
		}
		if track.Downloadable() {
			t.Error("unplayable track should not be downloadable")
		}
	})

	t.Run("Nil Inner Track", func(t *testing.T) {
		entry := convertEntry(spotify.PlaylistItem{}, 0)
		if entry.Track != nil {
			t.Errorf("expected empty entry, got %+v", entry.Track)
		}
	})
}
