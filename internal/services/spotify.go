// Spotify implementation of [Catalog] on top of zmb3/spotify.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/hollowscene/spindl/internal/models"
	"github.com/hollowscene/spindl/internal/shared"
)

// spotifyIDLength is the length of a base62 Spotify resource ID.
const spotifyIDLength = 22

// ExtractPlaylistID extracts the playlist ID from a Spotify playlist URL,
// URI or bare ID.
//
// Accepted forms:
//   - https://open.spotify.com/playlist/<id>?si=...
//   - spotify:playlist:<id>
//   - <id> (22 base62 characters, or anything else ID-shaped)
func ExtractPlaylistID(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: playlist URL or ID is required", shared.ErrValidation)
	}

	if idx := strings.Index(trimmed, "playlist/"); idx >= 0 {
		id := trimmed[idx+len("playlist/"):]
		if q := strings.IndexAny(id, "?/&#"); q >= 0 {
			id = id[:q]
		}
		if id == "" {
			return "", fmt.Errorf("%w: no playlist ID in URL %q", shared.ErrValidation, raw)
		}
		return id, nil
	}

	if idx := strings.Index(trimmed, "playlist:"); idx >= 0 {
		id := trimmed[idx+len("playlist:"):]
		if id == "" {
			return "", fmt.Errorf("%w: no playlist ID in URI %q", shared.ErrValidation, raw)
		}
		return id, nil
	}

	if isBase62(trimmed) && len(trimmed) == spotifyIDLength {
		return trimmed, nil
	}

	// Not a recognized URL or canonical ID. Assume the caller passed an
	// ID directly, but reject strings that cannot possibly be one.
	if strings.ContainsAny(trimmed, " /:?") {
		return "", fmt.Errorf("%w: %q is not a playlist URL or ID", shared.ErrValidation, raw)
	}
	return trimmed, nil
}

func isBase62(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		default:
			return false
		}
	}
	return len(s) > 0
}

// SpotifyCatalog implements [Catalog] against the Spotify Web API.
type SpotifyCatalog struct {
	client *spotify.Client
	logger *log.Logger
}

// credentialStrategy is one way of obtaining an authenticated Spotify client.
// Strategies are tried in order and the first that authenticates wins.
type credentialStrategy struct {
	name  string
	build func(ctx context.Context) (*spotify.Client, error)
}

// NewSpotifyCatalog authenticates with Spotify and returns a catalog.
//
// A configured access token is tried first, falling back to the
// client-credentials flow. Failures from every strategy are aggregated
// into the returned error.
func NewSpotifyCatalog(ctx context.Context, creds shared.SpotifyConfig, logger *log.Logger) (*SpotifyCatalog, error) {
	var strategies []credentialStrategy

	if creds.AccessToken != "" {
		strategies = append(strategies, credentialStrategy{
			name: "access_token",
			build: func(ctx context.Context) (*spotify.Client, error) {
				token := &oauth2.Token{AccessToken: creds.AccessToken, TokenType: "Bearer"}
				client := spotify.New(spotifyauth.New().Client(ctx, token))
				if _, err := client.CurrentUser(ctx); err != nil {
					return nil, fmt.Errorf("token rejected: %w", err)
				}
				return client, nil
			},
		})
	}

	if creds.ClientID != "" && creds.ClientSecret != "" {
		strategies = append(strategies, credentialStrategy{
			name: "client_credentials",
			build: func(ctx context.Context) (*spotify.Client, error) {
				config := &clientcredentials.Config{
					ClientID:     creds.ClientID,
					ClientSecret: creds.ClientSecret,
					TokenURL:     spotifyauth.TokenURL,
				}
				token, err := config.Token(ctx)
				if err != nil {
					return nil, err
				}
				return spotify.New(spotifyauth.New().Client(ctx, token)), nil
			},
		})
	}

	if len(strategies) == 0 {
		return nil, fmt.Errorf("%w: set an access token or a client ID and secret", shared.ErrMissingCredentials)
	}

	var failures []error
	for _, strategy := range strategies {
		client, err := strategy.build(ctx)
		if err == nil {
			logger.Debug("authenticated with spotify", "strategy", strategy.name)
			return &SpotifyCatalog{client: client, logger: logger}, nil
		}
		logger.Warn("spotify credential strategy failed", "strategy", strategy.name, "error", err)
		failures = append(failures, fmt.Errorf("%s: %w", strategy.name, err))
	}

	return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, errors.Join(failures...))
}

// GetPlaylist retrieves playlist metadata by Spotify ID.
func (c *SpotifyCatalog) GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	playlist, err := c.client.GetPlaylist(ctx, spotify.ID(playlistID))
	if err != nil {
		return nil, mapSpotifyError(err, "playlist "+playlistID)
	}

	return &models.Playlist{
		SpotifyID:  playlist.ID.String(),
		Name:       playlist.Name,
		Owner:      playlist.Owner.DisplayName,
		TrackCount: int(playlist.Tracks.Total),
		Public:     playlist.IsPublic,
		SourceURL:  playlist.ExternalURLs["spotify"],
	}, nil
}

// GetPlaylistTracks retrieves every entry of a playlist, following
// pagination until the API reports no more pages.
func (c *SpotifyCatalog) GetPlaylistTracks(ctx context.Context, playlistID string) ([]PlaylistEntry, error) {
	page, err := c.client.GetPlaylistItems(ctx, spotify.ID(playlistID), spotify.Limit(50))
	if err != nil {
		return nil, mapSpotifyError(err, "playlist "+playlistID)
	}

	var entries []PlaylistEntry
	position := 0

	for {
		for _, item := range page.Items {
			entries = append(entries, convertEntry(item, position))
			position++
		}

		err = c.client.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, mapSpotifyError(err, "playlist "+playlistID)
		}
	}

	c.logger.Debug("fetched playlist entries", "playlist_id", playlistID, "entries", len(entries))
	return entries, nil
}

// convertEntry converts a playlist item to a PlaylistEntry. Episodes,
// local files and removed tracks come through with a nil inner track
// and are preserved as empty entries.
func convertEntry(item spotify.PlaylistItem, position int) PlaylistEntry {
	track := item.Track.Track
	if track == nil {
		return PlaylistEntry{}
	}

	artists := make([]string, 0, len(track.Artists))
	for _, artist := range track.Artists {
		artists = append(artists, artist.Name)
	}

	return PlaylistEntry{
		Track: &models.Track{
			SpotifyID:  track.ID.String(),
			Title:      track.Name,
			Artists:    artists,
			Album:      track.Album.Name,
			DurationMS: int(track.Duration),
			Position:   position,
			PreviewURL: track.PreviewURL,
			Playable:   track.IsPlayable,
		},
	}
}

// mapSpotifyError maps API failures onto the shared error taxonomy.
// zmb3/spotify surfaces a typed Error for HTTP failures; anything else
// is treated as an upstream fault.
func mapSpotifyError(err error, context string) error {
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		if apiErr.Status == http.StatusNotFound {
			return fmt.Errorf("%w: %s", shared.ErrNotFound, context)
		}
		return fmt.Errorf("%w: %s: %v", shared.ErrUpstream, context, err)
	}

	return fmt.Errorf("%w: %s: %v", shared.ErrUpstream, context, err)
}
