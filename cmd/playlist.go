package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/hollowscene/spindl/internal/formatter"
	"github.com/hollowscene/spindl/internal/shared"
	"github.com/hollowscene/spindl/internal/tasks"
)

// PlaylistFetch reconciles a playlist reference into a stored snapshot
// and prints or exports its downloadable tracks.
func (r *Runner) PlaylistFetch(ctx context.Context, cmd *cli.Command) error {
	playlistRef := cmd.StringArg("playlist")
	if playlistRef == "" {
		return fmt.Errorf("%w: playlist URL or ID", shared.ErrMissingArgument)
	}

	r.reloadConfig(cmd)

	engine, err := r.buildEngine(ctx)
	if err != nil {
		return err
	}

	progressCh := make(chan tasks.ProgressUpdate, 50)
	go func() {
		for update := range progressCh {
			r.writePlain("📥 %s\n", update.Message)
		}
	}()

	result, err := engine.Reconcile(ctx, progressCh, playlistRef, cmd.Bool("force"))
	close(progressCh)

	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlistSummary(result), true)
	}

	r.writePlain("\n")
	r.writePlainHeader(result.Playlist.Name())
	r.writePlain("Owner: %s\n", result.Playlist.Owner())
	r.writePlain("Tracks: %d downloadable", result.Accepted)
	if result.Skipped > 0 {
		r.writePlain(" (%d skipped)", result.Skipped)
	}
	if result.FromCache {
		r.writePlain(" [cached]")
	}
	r.writePlain("\n\n")

	for i, track := range result.Tracks {
		r.writePlain("  %d. %s - %s", i+1, strings.Join(track.Artists(), ", "), track.Title())
		if track.Album() != "" {
			r.writePlain(" (%s)", track.Album())
		}
		r.writePlain("\n")
	}

	if format := cmd.String("export"); format != "" {
		return r.exportSnapshot(result, format, cmd.String("output"))
	}

	return nil
}

// exportSnapshot writes the snapshot in the requested format.
func (r *Runner) exportSnapshot(result *tasks.ReconcileResult, format, output string) error {
	snapshot := &formatter.Snapshot{Playlist: result.Playlist, Tracks: result.Tracks}

	switch format {
	case "csv":
		written, err := formatter.WriteCSVExport(snapshot, output)
		if err != nil {
			return err
		}
		r.writePlain("\n✓ Exported to %s and %s\n", written.TracksFile, written.MetadataFile)
	case "markdown", "md":
		path, err := formatter.WriteMarkdownExport(snapshot, output)
		if err != nil {
			return err
		}
		r.writePlain("\n✓ Exported to %s\n", path)
	case "text", "txt":
		path, err := formatter.WriteTextExport(snapshot, output)
		if err != nil {
			return err
		}
		r.writePlain("\n✓ Exported to %s\n", path)
	default:
		return fmt.Errorf("%w: unknown export format '%s' (must be csv, markdown or text)", shared.ErrInvalidArgument, format)
	}

	return nil
}

type playlistJSON struct {
	ID         string      `json:"id"`
	SpotifyID  string      `json:"spotify_id"`
	Name       string      `json:"name"`
	Owner      string      `json:"owner"`
	TrackCount int         `json:"track_count"`
	IsPublic   bool        `json:"is_public"`
	SourceURL  string      `json:"source_url,omitempty"`
	Skipped    int         `json:"skipped"`
	FromCache  bool        `json:"from_cache"`
	Tracks     []trackJSON `json:"tracks"`
}

type trackJSON struct {
	SpotifyID  string   `json:"spotify_id"`
	Title      string   `json:"title"`
	Artists    []string `json:"artists"`
	Album      string   `json:"album"`
	DurationMS int      `json:"duration_ms"`
	Position   int      `json:"position"`
}

func playlistSummary(result *tasks.ReconcileResult) playlistJSON {
	tracks := make([]trackJSON, 0, len(result.Tracks))
	for _, track := range result.Tracks {
		tracks = append(tracks, trackJSON{
			SpotifyID:  track.SpotifyID(),
			Title:      track.Title(),
			Artists:    track.Artists(),
			Album:      track.Album(),
			DurationMS: track.DurationMS(),
			Position:   track.Position(),
		})
	}
	return playlistJSON{
		ID:         result.Playlist.ID(),
		SpotifyID:  result.Playlist.SpotifyID(),
		Name:       result.Playlist.Name(),
		Owner:      result.Playlist.Owner(),
		TrackCount: result.Playlist.TrackCount(),
		IsPublic:   result.Playlist.Public(),
		SourceURL:  result.Playlist.SourceURL(),
		Skipped:    result.Skipped,
		FromCache:  result.FromCache,
		Tracks:     tracks,
	}
}
