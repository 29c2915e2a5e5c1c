package main

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/hollowscene/spindl/internal/shared"
	"github.com/hollowscene/spindl/internal/tasks"
	"github.com/hollowscene/spindl/internal/ui"
)

// DownloadRun downloads every track in a playlist through a new session.
func (r *Runner) DownloadRun(ctx context.Context, cmd *cli.Command) error {
	playlistRef := cmd.StringArg("playlist")
	if playlistRef == "" {
		return fmt.Errorf("%w: playlist URL or ID", shared.ErrMissingArgument)
	}

	r.reloadConfig(cmd)
	if dir := cmd.String("output"); dir != "" {
		r.config.Downloads.Directory = dir
	}

	engine, err := r.buildEngine(ctx)
	if err != nil {
		return err
	}

	quality, err := r.resolveQuality(cmd)
	if err != nil {
		return err
	}

	r.logger.Info("starting download", "playlist", playlistRef, "quality", quality)
	r.writePlain("Starting playlist download...\n\n")

	progressCh := make(chan tasks.ProgressUpdate, 50)
	go func() {
		for update := range progressCh {
			switch update.Phase {
			case tasks.FetchPlaylist, tasks.FetchTracks, tasks.Reconcile:
				r.writePlain("📥 %s\n", update.Message)
			case tasks.CreateSession:
				r.writePlain("📝 %s\n\n", update.Message)
			case tasks.DownloadTracks:
				r.writePlain("   %s\n", update.Message)
			}
		}
	}()

	session, _, err := engine.StartSession(ctx, progressCh, playlistRef, quality, cmd.Bool("force"))
	if err != nil {
		close(progressCh)
		return err
	}

	result, err := engine.Run(ctx, progressCh, session.ID(), tasks.RunOptions{
		RateLimit: cmd.Float("rate-limit"),
	})
	close(progressCh)

	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Download Complete!")
	r.writePlain("Session: %s\n", result.Session.ID())
	r.writePlain("Downloaded: %d/%d tracks (quality: %s)\n", result.SuccessCount, result.TotalTracks, result.Session.Quality())

	if result.FailedCount > 0 {
		r.writePlain("\nFailed to download %d tracks:\n", result.FailedCount)
		for _, tr := range result.Results {
			if tr.Error != nil {
				r.writePlain("  - %s - %s\n", strings.Join(tr.Track.Artists(), ", "), tr.Track.Title())
			}
		}
	}

	return nil
}

// DownloadUI launches the interactive terminal UI for playlist download.
func (r *Runner) DownloadUI(ctx context.Context, cmd *cli.Command) error {
	playlistRef := cmd.StringArg("playlist")
	if playlistRef == "" {
		return fmt.Errorf("%w: playlist URL or ID", shared.ErrMissingArgument)
	}

	r.reloadConfig(cmd)
	if dir := cmd.String("output"); dir != "" {
		r.config.Downloads.Directory = dir
	}

	engine, err := r.buildEngine(ctx)
	if err != nil {
		return err
	}

	quality, err := r.resolveQuality(cmd)
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/spindl-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	model := ui.NewModel(ctx, engine, playlistRef, quality, cmd.Bool("force"), tasks.RunOptions{})
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
