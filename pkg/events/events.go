// Package events defines the run lifecycle events exchanged between the trigger layer and workers.
package events

import (
	"time"

	"github.com/nodeflow/nodeflow/pkg/models"
)

type EventType string

// Topic carries every run lifecycle event.
const Topic = "nodeflow.runs"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	RunRequestedEvent EventType = "run.requested"
	RunSucceededEvent EventType = "run.succeeded"
	RunFailedEvent    EventType = "run.failed"
)

type BaseEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	WorkflowID string    `json:"workflow_id"`
	WorkerID   string    `json:"worker_id,omitempty"`
}

// RunRequested asks a worker to execute a workflow. RunID is assigned by the trigger
// layer, so a redelivered event maps onto the same run.
type RunRequested struct {
	BaseEvent

	RunID          string         `json:"run_id"`
	InitialContext models.Context `json:"initial_context,omitempty"`
}

func (e RunRequested) GetType() EventType {
	return RunRequestedEvent
}

type RunSucceeded struct {
	BaseEvent

	RunID    string         `json:"run_id"`
	Output   models.Context `json:"output,omitempty"`
	Duration time.Duration  `json:"duration"`
}

func (e RunSucceeded) GetType() EventType {
	return RunSucceededEvent
}

type RunFailed struct {
	BaseEvent

	RunID    string        `json:"run_id"`
	Error    string        `json:"error"`
	Duration time.Duration `json:"duration"`
}

func (e RunFailed) GetType() EventType {
	return RunFailedEvent
}

// NewBaseEvent stamps an event of the given type.
func NewBaseEvent(id string, eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         id,
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}
