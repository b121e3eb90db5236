package status

import (
	"context"
	"time"

	"github.com/nodeflow/nodeflow/pkg/models"
	"github.com/nodeflow/nodeflow/pkg/protocol"
)

// Track wraps executor so every invocation reports loading first, then exactly one of
// success or error. The executor's result and error pass through unchanged.
func Track(executor protocol.Executor, publisher protocol.StatusPublisher) protocol.Executor {
	return &tracked{Executor: executor, publisher: publisher}
}

type tracked struct {
	protocol.Executor

	publisher protocol.StatusPublisher
}

func (t *tracked) Execute(ctx context.Context, req protocol.Request) (models.Context, error) {
	t.emit(ctx, req.NodeID, models.NodeStatusLoading)

	out, err := t.Executor.Execute(ctx, req)
	if err != nil {
		t.emit(ctx, req.NodeID, models.NodeStatusError)

		return nil, err
	}

	t.emit(ctx, req.NodeID, models.NodeStatusSuccess)

	return out, nil
}

func (t *tracked) emit(ctx context.Context, nodeID string, status models.NodeStatus) {
	t.publisher.Publish(ctx, t.Channel(), models.NodeStatusEvent{
		NodeID:    nodeID,
		Status:    status,
		EmittedAt: time.Now().UTC(),
	})
}
