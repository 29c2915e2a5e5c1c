package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/hollowscene/spindl/internal/repositories"
	"github.com/hollowscene/spindl/internal/server"
)

// Serve runs the HTTP API server until the context is cancelled.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)

	engine, err := r.buildEngine(ctx)
	if err != nil {
		return err
	}

	serverConfig := r.config.Server
	if port := cmd.Int("port"); port != 0 {
		serverConfig.Port = port
	}
	if host := cmd.String("host"); host != "" {
		serverConfig.Host = host
	}

	router := server.NewBasicRouter()
	router.Use(server.Recover(r.logger), server.Logging(r.logger), server.CORS())

	sessions := repositories.NewSessionRepository(r.db)
	server.NewAPIHandler(engine, sessions, r.logger).Register(router)

	return server.Serve(ctx, serverConfig, router, r.logger)
}
