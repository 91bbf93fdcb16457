// Package main provides the entry point for the application with CLI commands.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/SUNET/transcribe-backend/cmd/app/commands"
	"github.com/SUNET/transcribe-backend/internal/app"
	"github.com/SUNET/transcribe-backend/internal/config"
)

var version = "1.0.0"

func main() {
	cmd := &cli.Command{
		Name:    "transcribe-backend",
		Usage:   "Media transcription backend with encrypted storage",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:  "server",
				Usage: "Start the HTTP server and background workers",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunServer(ctx, version)
				},
			},
			{
				Name:  "migrate",
				Usage: "Run database migrations",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunMigrations()
				},
			},
			{
				Name:  "clean-stale-jobs",
				Usage: "Fail stalled jobs and remove jobs past their retention date",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg := config.Load()
					container := app.NewContainer(cfg)
					logger := container.Logger()
					defer commands.CloseContainer(container, logger)

					jobUseCase, err := container.JobUseCase()
					if err != nil {
						return fmt.Errorf("failed to initialize job use case: %w", err)
					}

					return commands.RunCleanStaleJobs(
						ctx, jobUseCase, logger, os.Stdout, cfg.StaleJobMaxAge,
					)
				},
			},
			{
				Name:  "reset-user-key",
				Usage: "Rotate a user's encryption keypair, purging their encrypted data",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "username",
						Aliases:  []string{"u"},
						Required: true,
						Usage:    "Username of the account to reset",
					},
					&cli.StringFlag{
						Name:     "passphrase",
						Aliases:  []string{"p"},
						Required: true,
						Usage:    "New passphrase protecting the generated private key",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg := config.Load()
					container := app.NewContainer(cfg)
					logger := container.Logger()
					defer commands.CloseContainer(container, logger)

					userRepo, err := container.UserRepository()
					if err != nil {
						return fmt.Errorf("failed to initialize user repository: %w", err)
					}
					keyUseCase, err := container.KeyUseCase()
					if err != nil {
						return fmt.Errorf("failed to initialize key use case: %w", err)
					}

					return commands.RunResetUserKey(
						ctx, userRepo, keyUseCase, logger, os.Stdout,
						cmd.String("username"), cmd.String("passphrase"),
					)
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.Any("error", err))
		os.Exit(1)
	}
}
