// Package protocol defines the contracts between the run coordinator and node executors.
package protocol

import (
	"context"

	"github.com/nodeflow/nodeflow/pkg/models"
)

// Executor performs the work of one node type.
//
// Execute receives a copy of the accumulated run context and returns the next context.
// Any side effect must happen inside req.Step so a retried run replays the recorded
// result instead of repeating the effect.
type Executor interface {
	// Channel returns the status channel the executor reports on, e.g. "http-request-execution"
	Channel() string

	// Schema returns the JSON schema for configuring this node type
	Schema() map[string]any

	// Execute runs the node and returns the context passed to the next node
	Execute(ctx context.Context, req Request) (models.Context, error)
}

// Request is everything an executor gets for a single node invocation.
type Request struct {
	NodeID   string
	NodeType models.NodeType
	RunID    string
	OwnerID  string
	Config   map[string]any
	Context  models.Context
	Step     StepRunner
}

// StepFunc is a unit of side-effecting work whose JSON-encodable result is journaled.
type StepFunc func(ctx context.Context) (any, error)

// StepRunner runs named steps at most once per run. A key that already has a
// recorded result returns that result without invoking fn.
type StepRunner interface {
	Run(ctx context.Context, key string, fn StepFunc) ([]byte, error)
}

// StatusPublisher delivers node status events. Delivery is best effort: Publish never
// fails the caller.
type StatusPublisher interface {
	Publish(ctx context.Context, channel string, event models.NodeStatusEvent)
}
