package services

import (
	"context"
	"fmt"

	"github.com/hollowscene/spindl/internal/models"
	"github.com/hollowscene/spindl/internal/shared"
)

// Catalog defines the interface for fetching playlist metadata and
// entries from a music service.
type Catalog interface {
	// GetPlaylist retrieves playlist metadata by service ID.
	GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error)

	// GetPlaylistTracks retrieves every entry of a playlist in order,
	// following pagination. Entries whose content is not a playable
	// track carry a nil Track.
	GetPlaylistTracks(ctx context.Context, playlistID string) ([]PlaylistEntry, error)
}

// PlaylistEntry is one raw playlist slot as returned by the service.
// Track is nil for episodes, local files and content removed from the
// catalog.
type PlaylistEntry struct {
	Track *models.Track
}

// AudioFetcher defines the interface for locating and downloading the
// audio of a single track.
type AudioFetcher interface {
	// Fetch searches for the query, resolves an audio stream and writes
	// the result to disk. The filename stem has no extension; the
	// fetcher picks one based on the stream format.
	Fetch(ctx context.Context, query string, quality Quality, filename string) (*AudioResult, error)
}

// AudioResult describes a downloaded audio file.
type AudioResult struct {
	VideoID string
	Title   string
	Path    string
	Bytes   int64
}

// Quality selects the target audio bitrate for downloads.
type Quality string

const (
	QualityLow      Quality = "low"
	QualityStandard Quality = "standard"
	QualityHigh     Quality = "high"
)

// ParseQuality validates a raw quality string. Empty input defaults to
// standard.
func ParseQuality(raw string) (Quality, error) {
	switch Quality(raw) {
	case "":
		return QualityStandard, nil
	case QualityLow, QualityStandard, QualityHigh:
		return Quality(raw), nil
	default:
		return "", fmt.Errorf("%w: unknown quality %q (want low, standard or high)", shared.ErrInvalidArgument, raw)
	}
}

// Bitrate returns the quality's target bitrate in kbps.
func (q Quality) Bitrate() int {
	switch q {
	case QualityLow:
		return 96
	case QualityHigh:
		return 320
	default:
		return 192
	}
}
