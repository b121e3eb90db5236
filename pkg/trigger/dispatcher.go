// Package trigger turns inbound requests into run requests on the event bus.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.jetify.com/typeid"

	"github.com/nodeflow/nodeflow/pkg/eventbus"
	"github.com/nodeflow/nodeflow/pkg/events"
	"github.com/nodeflow/nodeflow/pkg/models"
)

var ErrWorkflowIDRequired = errors.New("workflow id is required")

// NewRunID returns a fresh, sortable run id such as run_01h455vb4pex5vsknk084sn02q.
func NewRunID() (string, error) {
	id, err := typeid.WithPrefix("run")
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

func newEventID() string {
	id, err := typeid.WithPrefix("evt")
	if err != nil {
		panic(err)
	}

	return id.String()
}

// Dispatcher requests runs without waiting for them.
type Dispatcher struct {
	publisher eventbus.EventPublisher
	logger    *slog.Logger
}

func NewDispatcher(publisher eventbus.EventPublisher, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		publisher: publisher,
		logger:    logger.With("module", "trigger"),
	}
}

// Dispatch publishes a run request for workflowID and returns its run id. Events are
// keyed by run id so every delivery of one request lands on the same partition.
func (d *Dispatcher) Dispatch(ctx context.Context, workflowID string, initialContext models.Context) (string, error) {
	if workflowID == "" {
		return "", ErrWorkflowIDRequired
	}

	runID, err := NewRunID()
	if err != nil {
		return "", fmt.Errorf("failed to generate run id: %w", err)
	}

	if initialContext == nil {
		initialContext = models.Context{}
	}

	event := events.RunRequested{
		BaseEvent:      events.NewBaseEvent(newEventID(), events.RunRequestedEvent, workflowID),
		RunID:          runID,
		InitialContext: initialContext,
	}

	if err := d.publisher.Publish(ctx, runID, event); err != nil {
		d.logger.ErrorContext(ctx, "Failed to publish run request", "workflow_id", workflowID, "run_id", runID, "error", err)

		return "", fmt.Errorf("failed to publish run request: %w", err)
	}

	d.logger.InfoContext(ctx, "Run requested", "workflow_id", workflowID, "run_id", runID)

	return runID, nil
}
