package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/nodeflow/nodeflow/pkg/cmd"
	"github.com/nodeflow/nodeflow/pkg/log"
)

func main() {
	command := &cli.Command{
		Name:                  "nodeflow-worker",
		EnableShellCompletion: true,
		Usage:                 "Execute workflows",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (postgres:// or a directory)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "encryption-key",
				Usage:   "Key that seals stored credentials",
				Sources: cli.EnvVars("ENCRYPTION_KEY"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json, pretty)",
				Value:   log.FormatText,
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
		},
		Before: func(ctx context.Context, command *cli.Command) (context.Context, error) {
			log.Setup(command.String("log-level"), command.String("log-format"))

			return ctx, nil
		},
		Commands: []*cli.Command{
			RunCommand(),
			ExecuteCommand(),
			CredentialCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := command.Run(ctx, os.Args); err != nil {
		log.WithModule("nodeflow-worker").Error("Exiting", "error", err)
		os.Exit(1)
	}
}

// engineFlags configure how runs are executed.
func engineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "step-journal-url",
			Usage:   "Redis URL for the step journal (defaults to the database)",
			Sources: cli.EnvVars("STEP_JOURNAL_URL"),
		},
		&cli.IntFlag{
			Name:    "step-attempts",
			Usage:   "Attempts per step before the node fails",
			Value:   3,
			Sources: cli.EnvVars("STEP_ATTEMPTS"),
		},
		&cli.IntFlag{
			Name:    "run-retries",
			Usage:   "Retries of a run that failed with a transient error (default 2 in production, 0 otherwise)",
			Sources: cli.EnvVars("RUN_RETRIES"),
		},
		&cli.StringFlag{
			Name:    "environment",
			Usage:   "Deployment environment (development, production)",
			Value:   "development",
			Sources: cli.EnvVars("ENVIRONMENT"),
		},
	}
}

func runRetries(command *cli.Command) int {
	if command.IsSet("run-retries") {
		return command.Int("run-retries")
	}

	return cmd.DefaultRunRetries(command.String("environment"))
}
