// Package trigger provides the executors for nodes that start a run. A trigger adds
// nothing to the run context: the payload that started the run is already the initial
// context, so each trigger records it as a step and hands it on unchanged.
package trigger

import (
	"context"

	"github.com/nodeflow/nodeflow/pkg/models"
	"github.com/nodeflow/nodeflow/pkg/protocol"
	"github.com/nodeflow/nodeflow/pkg/step"
)

// Executor is a passthrough trigger bound to its own status channel.
type Executor struct {
	channel string
	stepKey string
	schema  map[string]any
}

func newExecutor(kind string, schema map[string]any) *Executor {
	return &Executor{
		channel: kind + "-execution",
		stepKey: kind,
		schema:  schema,
	}
}

func (e *Executor) Channel() string {
	return e.channel
}

func (e *Executor) Schema() map[string]any {
	return e.schema
}

// Execute journals the incoming context so replays observe the same payload.
func (e *Executor) Execute(ctx context.Context, req protocol.Request) (models.Context, error) {
	return step.Do(ctx, req.Step, e.stepKey, func(context.Context) (models.Context, error) {
		if req.Context == nil {
			return models.Context{}, nil
		}

		return req.Context, nil
	})
}
