package cmd

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/nodeflow/nodeflow/pkg/engine"
	"github.com/nodeflow/nodeflow/pkg/otelhelper"
	"github.com/nodeflow/nodeflow/pkg/persistence"
	"github.com/nodeflow/nodeflow/pkg/protocol"
	"github.com/nodeflow/nodeflow/pkg/secrets"
)

// EnvironmentProduction turns on run retries unless they are configured explicitly.
const EnvironmentProduction = "production"

// DefaultRunRetries returns how often a transiently failed run is retried in environment.
func DefaultRunRetries(environment string) int {
	if environment == EnvironmentProduction {
		return 2
	}

	return 0
}

// EngineConfig collects what a process needs to run workflows.
type EngineConfig struct {
	EncryptionKey  string
	StepJournalURL string
	StepAttempts   int
	RunRetries     int
	Tracer         trace.Tracer // optional
}

// NewCoordinator wires registry, step journal and status publisher into a run
// coordinator. The returned func releases the step journal.
func NewCoordinator(
	ctx context.Context,
	logger *slog.Logger,
	p persistence.Persistence,
	publisher protocol.StatusPublisher,
	cfg EngineConfig,
) (*engine.Coordinator, func() error, error) {
	var store *secrets.Store

	if cfg.EncryptionKey != "" {
		var err error

		store, err = NewCredentialStore(p, cfg.EncryptionKey)
		if err != nil {
			return nil, nil, err
		}
	} else {
		logger.WarnContext(ctx, "No encryption key configured, AI nodes will fail to resolve credentials")
	}

	reg, err := NewRegistry(logger, store)
	if err != nil {
		return nil, nil, err
	}

	journal, closeJournal, err := NewStepJournal(ctx, p, cfg.StepJournalURL)
	if err != nil {
		return nil, nil, err
	}

	opts := []engine.Option{engine.WithRunRetries(cfg.RunRetries)}
	if cfg.Tracer != nil {
		opts = append(opts, engine.WithTracer(cfg.Tracer))
	}

	coordinator := engine.NewCoordinator(
		p.WorkflowRepository(),
		p.ExecutionRepository(),
		reg,
		NewStepRunner(journal, logger, cfg.StepAttempts),
		publisher,
		logger,
		opts...,
	)

	return coordinator, closeJournal, nil
}

// NewTracing installs the OTLP tracer when enabled. The returned func flushes it.
func NewTracing(ctx context.Context, enabled bool, serviceName string) (trace.Tracer, func(context.Context) error, error) {
	if !enabled {
		return nil, func(context.Context) error { return nil }, nil
	}

	tracer, shutdown, err := otelhelper.NewTracer(ctx, serviceName)
	if err != nil {
		return nil, nil, err
	}

	return tracer, shutdown, nil
}
