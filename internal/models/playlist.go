package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/hollowscene/spindl/internal/shared"
)

// Playlist is the DTO shape of a playlist fetched from Spotify.
type Playlist struct {
	SpotifyID  string `json:"spotify_id"`
	Name       string `json:"name"`
	Owner      string `json:"owner"`
	TrackCount int    `json:"track_count"`
	Public     bool   `json:"is_public"`
	SourceURL  string `json:"source_url,omitempty"`
}

// Track is the DTO shape of a single playlist entry fetched from Spotify.
//
// Position is the zero-based index of the entry within its playlist.
// Playable mirrors the API's tri-state region flag: nil means the API
// did not report one, which counts as playable.
type Track struct {
	SpotifyID  string   `json:"spotify_id"`
	Title      string   `json:"title"`
	Artists    []string `json:"artists"`
	Album      string   `json:"album"`
	DurationMS int      `json:"duration_ms"`
	Position   int      `json:"position"`
	PreviewURL string   `json:"preview_url,omitempty"`
	Playable   *bool    `json:"is_playable,omitempty"`
}

// Downloadable reports whether the entry carries enough metadata to
// search for and download audio. Entries removed from the catalog come
// back from the API without a title or artists, and region-blocked
// entries carry an explicit Playable=false.
func (t Track) Downloadable() bool {
	if t.Title == "" {
		return false
	}
	if t.Playable != nil && !*t.Playable {
		return false
	}
	for _, artist := range t.Artists {
		if artist != "" {
			return true
		}
	}
	return false
}

// SearchQuery builds the text used to search for this track on YouTube,
// artists first then title, e.g. "Daft Punk, Pharrell Williams Get Lucky".
func (t Track) SearchQuery() string {
	return fmt.Sprintf("%s %s", strings.Join(t.Artists, ", "), t.Title)
}

// PersistedPlaylist wraps a Playlist DTO with database identity.
type PersistedPlaylist struct {
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
}

// NewPersistedPlaylist creates a PersistedPlaylist from a playlist DTO.
// The ID is assigned by the repository on Create.
func NewPersistedPlaylist(sequence int, dto Playlist) *PersistedPlaylist {
	now := time.Now()
	return &PersistedPlaylist{
		sequence:   sequence,
		spotifyID:  dto.SpotifyID,
		name:       dto.Name,
		owner:      dto.Owner,
		trackCount: dto.TrackCount,
		public:     dto.Public,
		sourceURL:  dto.SourceURL,
		createdAt:  now,
		updatedAt:  now,
	}
}

func (p *PersistedPlaylist) ID() string           { return p.id }
func (p *PersistedPlaylist) Sequence() int        { return p.sequence }
func (p *PersistedPlaylist) SpotifyID() string    { return p.spotifyID }
func (p *PersistedPlaylist) Name() string         { return p.name }
func (p *PersistedPlaylist) Owner() string        { return p.owner }
func (p *PersistedPlaylist) TrackCount() int      { return p.trackCount }
func (p *PersistedPlaylist) Public() bool         { return p.public }
func (p *PersistedPlaylist) SourceURL() string    { return p.sourceURL }
func (p *PersistedPlaylist) CreatedAt() time.Time { return p.createdAt }
func (p *PersistedPlaylist) UpdatedAt() time.Time { return p.updatedAt }

func (p *PersistedPlaylist) SetID(id string)          { p.id = id }
func (p *PersistedPlaylist) SetName(name string)      { p.name = name }
func (p *PersistedPlaylist) SetOwner(owner string)    { p.owner = owner }
func (p *PersistedPlaylist) SetTrackCount(n int)      { p.trackCount = n }
func (p *PersistedPlaylist) SetPublic(public bool)    { p.public = public }
func (p *PersistedPlaylist) SetCreatedAt(t time.Time) { p.createdAt = t }
func (p *PersistedPlaylist) SetUpdatedAt(t time.Time) { p.updatedAt = t }

// Validate checks that the playlist has the fields required for persistence.
func (p *PersistedPlaylist) Validate() error {
	if p.spotifyID == "" {
		return fmt.Errorf("%w: playlist spotify_id is required", shared.ErrValidation)
	}
	if p.name == "" {
		return fmt.Errorf("%w: playlist name is required", shared.ErrValidation)
	}
	if p.trackCount < 0 {
		return fmt.Errorf("%w: playlist track_count cannot be negative", shared.ErrValidation)
	}
	return nil
}

// PersistedTrack wraps a Track DTO with database identity and the
// playlist it belongs to.
type PersistedTrack struct {
	id         string
	sequence   int
	playlistID string
	spotifyID  string
	title      string
	artists    []string
	album      string
	durationMS int
	position   int
	previewURL string
	createdAt  time.Time
	updatedAt  time.Time
}

// NewPersistedTrack creates a PersistedTrack from a track DTO belonging to playlistID.
func NewPersistedTrack(sequence int, playlistID string, dto Track) *PersistedTrack {
	now := time.Now()
	return &PersistedTrack{
		sequence:   sequence,
		playlistID: playlistID,
		spotifyID:  dto.SpotifyID,
		title:      dto.Title,
		artists:    dto.Artists,
		album:      dto.Album,
		durationMS: dto.DurationMS,
		position:   dto.Position,
		previewURL: dto.PreviewURL,
		createdAt:  now,
		updatedAt:  now,
	}
}

func (t *PersistedTrack) ID() string           { return t.id }
func (t *PersistedTrack) Sequence() int        { return t.sequence }
func (t *PersistedTrack) PlaylistID() string   { return t.playlistID }
func (t *PersistedTrack) SpotifyID() string    { return t.spotifyID }
func (t *PersistedTrack) Title() string        { return t.title }
func (t *PersistedTrack) Artists() []string    { return t.artists }
func (t *PersistedTrack) Album() string        { return t.album }
func (t *PersistedTrack) DurationMS() int      { return t.durationMS }
func (t *PersistedTrack) Position() int        { return t.position }
func (t *PersistedTrack) PreviewURL() string   { return t.previewURL }
func (t *PersistedTrack) CreatedAt() time.Time { return t.createdAt }
func (t *PersistedTrack) UpdatedAt() time.Time { return t.updatedAt }

func (t *PersistedTrack) SetID(id string)           { t.id = id }
func (t *PersistedTrack) SetCreatedAt(ts time.Time) { t.createdAt = ts }
func (t *PersistedTrack) SetUpdatedAt(ts time.Time) { t.updatedAt = ts }

// DTO converts the persisted track back to its DTO shape. Stored tracks
// passed the exclusion rules, so Playable is left nil.
func (t *PersistedTrack) DTO() Track {
	return Track{
		SpotifyID:  t.spotifyID,
		Title:      t.title,
		Artists:    t.artists,
		Album:      t.album,
		DurationMS: t.durationMS,
		Position:   t.position,
		PreviewURL: t.previewURL,
	}
}

// Validate checks that the track has the fields required for persistence.
func (t *PersistedTrack) Validate() error {
	if t.playlistID == "" {
		return fmt.Errorf("%w: track playlist_id is required", shared.ErrValidation)
	}
	if t.spotifyID == "" {
		return fmt.Errorf("%w: track spotify_id is required", shared.ErrValidation)
	}
	if t.title == "" {
		return fmt.Errorf("%w: track title is required", shared.ErrValidation)
	}
	if len(t.artists) == 0 {
		return fmt.Errorf("%w: track requires at least one artist", shared.ErrValidation)
	}
	return nil
}
