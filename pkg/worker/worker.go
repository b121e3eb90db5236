// Package worker consumes run requests from the event bus and drives them through the
// run coordinator.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/nodeflow/nodeflow/pkg/engine"
	"github.com/nodeflow/nodeflow/pkg/eventbus"
	"github.com/nodeflow/nodeflow/pkg/events"
	"github.com/nodeflow/nodeflow/pkg/models"
)

// Runner executes one run to a terminal state.
type Runner interface {
	Run(ctx context.Context, req engine.RunRequest) (*models.Execution, error)
}

// Bus is the part of the event bus a worker uses.
type Bus interface {
	eventbus.EventPublisher
	eventbus.EventSubscriber
}

type Worker struct {
	id     string
	runner Runner
	bus    Bus
	logger *slog.Logger
}

func New(id string, runner Runner, bus Bus, logger *slog.Logger) *Worker {
	return &Worker{
		id:     id,
		runner: runner,
		bus:    bus,
		logger: logger.With("module", "worker", "worker_id", id),
	}
}

// Start subscribes to run requests and blocks until ctx is done.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker")

	if err := w.bus.Handle(events.RunRequestedEvent, w.HandleRunRequested); err != nil {
		return err
	}

	if err := w.bus.Subscribe(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	<-ctx.Done()

	w.logger.InfoContext(ctx, "Shutting down worker")

	return nil
}

// HandleRunRequested runs the requested workflow and announces the outcome. It fails,
// and so asks for redelivery, only when the outcome could not be recorded.
func (w *Worker) HandleRunRequested(ctx context.Context, event any) error {
	requested, ok := event.(*events.RunRequested)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for RunRequested")

		return nil
	}

	logger := w.logger.With("run_id", requested.RunID, "workflow_id", requested.WorkflowID, "event_id", requested.ID)
	logger.InfoContext(ctx, "Processing run requested event")

	started := time.Now()

	execution, err := w.runner.Run(ctx, engine.RunRequest{
		RunID:          requested.RunID,
		WorkflowID:     requested.WorkflowID,
		InitialContext: requested.InitialContext,
	})
	if execution == nil {
		logger.ErrorContext(ctx, "Run outcome was not recorded, requesting redelivery", "error", err)

		return err
	}

	duration := time.Since(started)

	var outcome eventbus.Event

	switch execution.Status {
	case models.ExecutionStatusSuccess:
		succeeded := events.RunSucceeded{
			BaseEvent: events.NewBaseEvent(w.eventID(), events.RunSucceededEvent, requested.WorkflowID),
			RunID:     requested.RunID,
			Output:    execution.Output,
			Duration:  duration,
		}
		succeeded.WorkerID = w.id
		outcome = succeeded
	default:
		failed := events.RunFailed{
			BaseEvent: events.NewBaseEvent(w.eventID(), events.RunFailedEvent, requested.WorkflowID),
			RunID:     requested.RunID,
			Error:     execution.Error,
			Duration:  duration,
		}
		failed.WorkerID = w.id
		outcome = failed
	}

	if publishErr := w.bus.Publish(ctx, requested.RunID, outcome); publishErr != nil {
		logger.ErrorContext(ctx, "Failed to publish run outcome", "error", publishErr, "status", execution.Status)
	}

	logger.InfoContext(ctx, "Run finished", "status", execution.Status, "duration", duration)

	return nil
}

func (w *Worker) eventID() string {
	return watermill.NewULID()
}
