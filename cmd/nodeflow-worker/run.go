package main

import (
	"context"
	"strings"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/nodeflow/nodeflow/pkg/cmd"
	"github.com/nodeflow/nodeflow/pkg/log"
	"github.com/nodeflow/nodeflow/pkg/status"
	"github.com/nodeflow/nodeflow/pkg/worker"
)

func RunCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "worker-id",
			Aliases: []string{"id"},
			Usage:   "Custom worker ID (auto-generated if not provided)",
			Sources: cli.EnvVars("WORKER_ID"),
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
		&cli.BoolFlag{
			Name:    "otel-enabled",
			Usage:   "Export traces over OTLP/HTTP",
			Sources: cli.EnvVars("OTEL_ENABLED"),
		},
	}

	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Consume run requests from the event bus",
		Flags:   append(flags, engineFlags()...),
		Action: func(ctx context.Context, command *cli.Command) error {
			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("nodeflow-worker").With("worker_id", workerID)
			logger.InfoContext(ctx, "Initializing nodeflow worker")

			tracer, shutdownTracing, err := cmd.NewTracing(ctx, command.Bool("otel-enabled"), "nodeflow-worker")
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

			transport, err := cmd.NewTransport(command.String("event-bus"), "nodeflow-worker",
				strings.Split(command.String("kafka-brokers"), ","), logger)
			if err != nil {
				return err
			}

			eventBus := cmd.NewEventBus(transport, logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			coordinator, closeJournal, err := cmd.NewCoordinator(ctx, logger, persistence,
				status.NewPublisher(transport.Publisher, logger),
				cmd.EngineConfig{
					EncryptionKey:  command.String("encryption-key"),
					StepJournalURL: command.String("step-journal-url"),
					StepAttempts:   command.Int("step-attempts"),
					RunRetries:     runRetries(command),
					Tracer:         tracer,
				})
			if err != nil {
				return err
			}

			defer func() {
				if err := closeJournal(); err != nil {
					logger.ErrorContext(ctx, "Failed to close step journal", "error", err)
				}
			}()

			return worker.New(workerID, coordinator, eventBus, logger).Start(ctx)
		},
	}
}
