package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/hollowscene/spindl/internal/repositories"
	"github.com/hollowscene/spindl/internal/services"
	"github.com/hollowscene/spindl/internal/shared"
	"github.com/hollowscene/spindl/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config  *shared.Config
	logger  *log.Logger
	output  io.Writer
	db      *sql.DB
	catalog services.Catalog
	fetcher services.AudioFetcher
	engine  *tasks.DownloadEngine
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Catalog, Fetcher, DB and Engine are optional injection points; when
// left nil they are built from the config on first use.
type RunnerOpts struct {
	Config  *shared.Config
	Logger  *log.Logger
	Output  io.Writer
	DB      *sql.DB
	Catalog services.Catalog
	Fetcher services.AudioFetcher
	Engine  *tasks.DownloadEngine
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:  opts.Config,
		logger:  opts.Logger,
		output:  opts.Output,
		db:      opts.DB,
		catalog: opts.Catalog,
		fetcher: opts.Fetcher,
		engine:  opts.Engine,
	}
}

// SetLogger swaps the runner's logger, for commands that redirect log output.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, playlistCommand, downloadCommand, sessionCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// reloadConfig replaces the runner's config from the command's --config
// flag when the file exists. Load failures keep the current config.
func (r *Runner) reloadConfig(cmd *cli.Command) {
	path := cmd.String("config")
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	config, err := shared.LoadConfig(path)
	if err != nil {
		r.logger.Warn("failed to load config, keeping current settings", "path", path, "error", err)
		return
	}
	r.config = config
}

// openDatabase opens the configured database and runs any pending migrations.
func (r *Runner) openDatabase() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	r.db = db
	return db, nil
}

// buildEngine assembles the download engine from the runner's config,
// reusing any injected catalog, fetcher or database.
func (r *Runner) buildEngine(ctx context.Context) (*tasks.DownloadEngine, error) {
	if r.engine != nil {
		return r.engine, nil
	}

	db, err := r.openDatabase()
	if err != nil {
		return nil, err
	}

	catalog := r.catalog
	if catalog == nil {
		spotifyCatalog, err := services.NewSpotifyCatalog(ctx, r.config.Credentials.Spotify, r.logger)
		if err != nil {
			return nil, err
		}
		catalog = spotifyCatalog
	}

	fetcher := r.fetcher
	if fetcher == nil {
		if r.config.Credentials.YouTube.APIKey == "" {
			return nil, fmt.Errorf("%w: YOUTUBE_API_KEY or credentials.youtube.api_key is required", shared.ErrMissingCredentials)
		}
		fetcher = services.NewYouTubeFetcher(r.config.Credentials.YouTube.APIKey, r.config.Downloads.Directory, r.logger)
	}

	r.engine = tasks.NewDownloadEngine(
		catalog,
		fetcher,
		repositories.NewPlaylistRepository(db),
		repositories.NewTrackRepository(db),
		repositories.NewSessionRepository(db),
		r.logger,
	)
	return r.engine, nil
}

// resolveQuality picks the quality from the command flag, falling back
// to the configured default.
func (r *Runner) resolveQuality(cmd *cli.Command) (services.Quality, error) {
	quality := cmd.String("quality")
	if quality == "" {
		quality = r.config.Downloads.Quality
	}
	return services.ParseQuality(quality)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
