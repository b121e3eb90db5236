package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/nodeflow/nodeflow/pkg/cmd"
	"github.com/nodeflow/nodeflow/pkg/log"
	"github.com/nodeflow/nodeflow/pkg/status"
	"github.com/nodeflow/nodeflow/pkg/trigger"
	"github.com/nodeflow/nodeflow/pkg/worker"
)

const defaultPort = 9091

func main() {
	command := &cli.Command{
		Name:                  "nodeflow-api",
		Usage:                 "Accept manual runs and webhooks and report on executions",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (postgres:// or a directory)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   cmd.EventBusKafka,
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated Kafka brokers",
				Value:   "localhost:9092",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "encryption-key",
				Usage:   "Credential encryption key, used by the embedded worker",
				Sources: cli.EnvVars("ENCRYPTION_KEY"),
			},
			&cli.StringFlag{
				Name:    "step-journal-url",
				Usage:   "Redis URL for the step journal, used by the embedded worker",
				Sources: cli.EnvVars("STEP_JOURNAL_URL"),
			},
			&cli.StringFlag{
				Name:    "environment",
				Usage:   "Deployment environment (development, production)",
				Value:   "development",
				Sources: cli.EnvVars("ENVIRONMENT"),
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
			&cli.BoolFlag{
				Name:    "otel-enabled",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
		},
		Action: run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := command.Run(ctx, os.Args); err != nil {
		log.WithModule("nodeflow-api").Error("Exiting", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"), command.String("log-format"))

	logger := log.WithModule("nodeflow-api")
	logger.InfoContext(ctx, "Initializing nodeflow API")

	tracer, shutdownTracing, err := cmd.NewTracing(ctx, command.Bool("otel-enabled"), "nodeflow-api")
	if err != nil {
		return err
	}

	defer func() {
		if err := shutdownTracing(context.WithoutCancel(ctx)); err != nil {
			logger.ErrorContext(ctx, "Failed to flush traces", "error", err)
		}
	}()

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		if err := persistence.Close(context.WithoutCancel(ctx)); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	provider := command.String("event-bus")

	transport, err := cmd.NewTransport(provider, "nodeflow-api", strings.Split(command.String("kafka-brokers"), ","), logger)
	if err != nil {
		return err
	}

	eventBus := cmd.NewEventBus(transport, logger)
	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	registry, err := cmd.NewRegistry(logger, nil)
	if err != nil {
		return err
	}

	// An in-process bus has no other consumer, so the API runs the worker itself.
	if provider == cmd.EventBusGoChannel {
		coordinator, closeJournal, err := cmd.NewCoordinator(ctx, logger, persistence,
			status.NewPublisher(transport.Publisher, logger),
			cmd.EngineConfig{
				EncryptionKey:  command.String("encryption-key"),
				StepJournalURL: command.String("step-journal-url"),
				StepAttempts:   3,
				RunRetries:     cmd.DefaultRunRetries(command.String("environment")),
				Tracer:         tracer,
			})
		if err != nil {
			return err
		}

		defer func() { _ = closeJournal() }()

		embedded := worker.New("embedded", coordinator, eventBus, logger)

		go func() {
			if err := embedded.Start(ctx); err != nil {
				logger.ErrorContext(ctx, "Embedded worker stopped", "error", err)
			}
		}()
	}

	api := NewAPI(logger, persistence, registry, trigger.NewDispatcher(eventBus, logger))

	return api.Start(ctx, command.Int("port"))
}
