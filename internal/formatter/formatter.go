// package formatter exports playlist snapshots to various formats (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hollowscene/spindl/internal/models"
	"github.com/hollowscene/spindl/internal/shared"
)

// Snapshot bundles a stored playlist with its downloadable tracks for export.
type Snapshot struct {
	Playlist *models.PersistedPlaylist
	Tracks   []*models.PersistedTrack
}

// formatDuration renders a millisecond duration as m:ss.
func formatDuration(ms int) string {
	totalSeconds := ms / 1000
	return fmt.Sprintf("%d:%02d", totalSeconds/60, totalSeconds%60)
}

// joinArtists joins a track's artist list for display.
func joinArtists(artists []string) string {
	return strings.Join(artists, ", ")
}

// ExportToCSV converts a Snapshot to CSV format with columns: Position, Title, Artists, Album, Duration, SpotifyID
func ExportToCSV(snapshot *Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "Title", "Artists", "Album", "Duration", "SpotifyID"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range snapshot.Tracks {
		record := []string{
			strconv.Itoa(track.Position() + 1),
			track.Title(),
			joinArtists(track.Artists()),
			track.Album(),
			formatDuration(track.DurationMS()),
			track.SpotifyID(),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a Snapshot to Markdown format
func ExportToMarkdown(snapshot *Snapshot) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", snapshot.Playlist.Name()))

	if snapshot.Playlist.Owner() != "" {
		buf.WriteString(fmt.Sprintf("**Owner**: %s\n", snapshot.Playlist.Owner()))
	}
	buf.WriteString(fmt.Sprintf("**Visibility**: %s\n", shared.VisibilityString(snapshot.Playlist.Public())))
	buf.WriteString(fmt.Sprintf("**Tracks**: %d\n\n", len(snapshot.Tracks)))

	buf.WriteString("## Tracks\n\n")
	for i, track := range snapshot.Tracks {
		albumPart := ""
		if track.Album() != "" {
			albumPart = fmt.Sprintf(" (%s)", track.Album())
		}
		buf.WriteString(fmt.Sprintf("%d. %s - %s%s [%s]\n",
			i+1, joinArtists(track.Artists()), track.Title(), albumPart, formatDuration(track.DurationMS())))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a Snapshot to plain text format
func ExportToText(snapshot *Snapshot) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Playlist: %s\n", snapshot.Playlist.Name()))
	if snapshot.Playlist.Owner() != "" {
		buf.WriteString(fmt.Sprintf("Owner: %s\n", snapshot.Playlist.Owner()))
	}
	buf.WriteString(fmt.Sprintf("Tracks: %d\n\n", len(snapshot.Tracks)))

	for i, track := range snapshot.Tracks {
		buf.WriteString(fmt.Sprintf("%d. %s - %s\n", i+1, joinArtists(track.Artists()), track.Title()))
	}

	return buf.Bytes(), nil
}

// ToMetadataJSON generates a JSON representation of playlist metadata (without tracks)
func ToMetadataJSON(playlist *models.PersistedPlaylist) ([]byte, error) {
	payload := map[string]any{
		"id":          playlist.ID(),
		"spotify_id":  playlist.SpotifyID(),
		"name":        playlist.Name(),
		"owner":       playlist.Owner(),
		"track_count": playlist.TrackCount(),
		"is_public":   playlist.Public(),
		"source_url":  playlist.SourceURL(),
		"created_at":  playlist.CreatedAt(),
		"updated_at":  playlist.UpdatedAt(),
	}
	return json.MarshalIndent(payload, "", "  ")
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	TracksFile   string
	MetadataFile string
}

// WriteCSVExport exports a snapshot to CSV format with an accompanying metadata JSON file.
//
// Defaults to the Spotify playlist ID as the base filename & creates {base}_tracks.csv and {base}_metadata.json
func WriteCSVExport(snapshot *Snapshot, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = snapshot.Playlist.SpotifyID()
	}

	csvData, err := ExportToCSV(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	tracksFile := baseFilepath + "_tracks.csv"
	if err := os.WriteFile(tracksFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := ToMetadataJSON(snapshot.Playlist)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{
		TracksFile:   tracksFile,
		MetadataFile: metadataFile,
	}, nil
}

// WriteMarkdownExport exports a snapshot to Markdown in a dedicated directory.
//
// Directory name defaults to the Spotify playlist ID. Creates {dir}/README.md.
func WriteMarkdownExport(snapshot *Snapshot, outputDir string) (string, error) {
	if outputDir == "" {
		outputDir = snapshot.Playlist.SpotifyID()
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	mdData, err := ExportToMarkdown(snapshot)
	if err != nil {
		return "", fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return "", fmt.Errorf("failed to write Markdown file: %w", err)
	}

	return mdFile, nil
}

// WriteTextExport exports a snapshot to plain text format.
//
// Defaults to {spotifyID}_tracks.txt as the filename.
func WriteTextExport(snapshot *Snapshot, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s_tracks.txt", snapshot.Playlist.SpotifyID())
	}

	textData, err := ExportToText(snapshot)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(path, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return path, nil
}
