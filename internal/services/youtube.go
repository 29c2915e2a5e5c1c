// YouTube implementation of [AudioFetcher].
//
// Track audio is located with the YouTube Data API, the stream URL is
// resolved through yt-dlp, and the bytes are fetched over plain HTTP.
package services

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"google.golang.org/api/option"
	ytapi "google.golang.org/api/youtube/v3"

	"github.com/hollowscene/spindl/internal/shared"
)

// searchSuffix biases search results toward audio uploads over live
// performances and covers.
const searchSuffix = " (official music video|official audio|lyrics|audio|Audio)"

// musicCategoryID is YouTube's video category for music.
const musicCategoryID = "10"

// video is a search hit candidate for a track query.
type video struct {
	ID    string
	Title string
}

// YouTubeFetcher implements [AudioFetcher] using the YouTube Data API
// and a local yt-dlp binary.
type YouTubeFetcher struct {
	apiKey     string
	dir        string
	httpClient *http.Client
	logger     *log.Logger

	// resolveStream turns a video ID into a direct audio stream URL.
	// Swappable so tests do not shell out to yt-dlp.
	resolveStream func(videoID string, quality Quality) (string, error)
}

// NewYouTubeFetcher creates a fetcher that writes audio files under dir.
func NewYouTubeFetcher(apiKey, dir string, logger *log.Logger) *YouTubeFetcher {
	f := &YouTubeFetcher{
		apiKey:     apiKey,
		dir:        dir,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		logger:     logger,
	}
	f.resolveStream = f.resolveWithYtDlp
	return f
}

// Fetch searches YouTube for the query, resolves the best matching
// video's audio stream and downloads it to dir as filename plus an
// audio extension.
func (f *YouTubeFetcher) Fetch(ctx context.Context, query string, quality Quality, filename string) (*AudioResult, error) {
	match, err := f.search(ctx, query)
	if err != nil {
		return nil, err
	}

	streamURL, err := f.resolveStream(match.ID, quality)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving stream for %s: %v", shared.ErrUpstream, match.ID, err)
	}

	path := filepath.Join(f.dir, SanitizeFilename(filename)+".m4a")
	bytes, err := f.download(ctx, streamURL, path)
	if err != nil {
		return nil, err
	}

	f.logger.Debug("downloaded audio", "video_id", match.ID, "path", path, "bytes", bytes)
	return &AudioResult{
		VideoID: match.ID,
		Title:   match.Title,
		Path:    path,
		Bytes:   bytes,
	}, nil
}

// search queries the YouTube Data API for music videos matching the
// query and returns the top hit.
func (f *YouTubeFetcher) search(ctx context.Context, query string) (*video, error) {
	service, err := ytapi.NewService(ctx, option.WithAPIKey(f.apiKey))
	if err != nil {
		return nil, fmt.Errorf("%w: creating youtube client: %v", shared.ErrUpstream, err)
	}

	call := service.Search.List([]string{"snippet"}).
		Q(query + searchSuffix).
		MaxResults(5).
		Type("video").
		VideoCategoryId(musicCategoryID).
		Context(ctx)

	response, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("%w: searching youtube for %q: %v", shared.ErrUpstream, query, err)
	}

	for _, item := range response.Items {
		if item.Id.Kind == "youtube#video" {
			return &video{
				ID:    item.Id.VideoId,
				Title: html.UnescapeString(item.Snippet.Title),
			}, nil
		}
	}

	return nil, fmt.Errorf("%w: no youtube results for %q", shared.ErrNotFound, query)
}

// resolveWithYtDlp resolves a direct audio stream URL, retrying up to
// three times before giving up.
func (f *YouTubeFetcher) resolveWithYtDlp(videoID string, quality Quality) (string, error) {
	format := fmt.Sprintf("bestaudio[abr<=%d]/bestaudio", quality.Bitrate())
	watchURL := "https://www.youtube.com/watch?v=" + videoID

	var output []byte
	var err error
	for attempt := range 3 {
		cmd := exec.Command("yt-dlp",
			"-f", format,
			"--no-playlist",
			"--socket-timeout", "10",
			"--extractor-retries", "1",
			"--no-audio-multistreams",
			"-g",
			"--no-warnings",
			watchURL)

		output, err = cmd.CombinedOutput()
		if err == nil {
			break
		}
		f.logger.Warn("yt-dlp failed", "video_id", videoID, "attempt", attempt+1, "error", err)
		if attempt == 2 {
			return "", fmt.Errorf("yt-dlp error after 3 attempts: %v, output: %s", err, string(output))
		}
	}

	streamURL, _, _ := strings.Cut(strings.TrimSpace(string(output)), "\n")
	if streamURL == "" {
		return "", fmt.Errorf("yt-dlp returned no stream URL for %s", videoID)
	}
	return streamURL, nil
}

// download fetches the stream to path and returns the byte count.
func (f *YouTubeFetcher) download(ctx context.Context, streamURL, path string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: building stream request: %v", shared.ErrUpstream, err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: fetching stream: %v", shared.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: stream returned status %d", shared.ErrUpstream, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("failed to create download directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create audio file: %w", err)
	}
	defer file.Close()

	bytes, err := io.Copy(file, resp.Body)
	if err != nil {
		os.Remove(path)
		return 0, fmt.Errorf("%w: reading stream: %v", shared.ErrUpstream, err)
	}

	return bytes, nil
}

// SanitizeFilename strips characters that are unsafe in filenames.
func SanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "-",
		"\\", "-",
		":", "-",
		"*", "",
		"?", "",
		"\"", "",
		"<", "",
		">", "",
		"|", "",
		"\x00", "",
	)
	cleaned := strings.TrimSpace(replacer.Replace(name))
	if cleaned == "" {
		return "track"
	}
	return cleaned
}
