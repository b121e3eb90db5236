package models

import "time"

// ExecutionStatus is the lifecycle state of a run.
type ExecutionStatus string

const (
	ExecutionStatusRunning ExecutionStatus = "running"
	ExecutionStatusSuccess ExecutionStatus = "success"
	ExecutionStatusFailed  ExecutionStatus = "failed"
)

func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusSuccess || s == ExecutionStatusFailed
}

// Execution is the persisted record of one run, keyed by the run id.
type Execution struct {
	ID          string          `json:"id"`
	WorkflowID  string          `json:"workflow_id"`
	Status      ExecutionStatus `json:"status"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Output      Context         `json:"output,omitempty"`
	Error       string          `json:"error,omitempty"`
	ErrorStack  string          `json:"error_stack,omitempty"`
	Attempts    int             `json:"attempts"`
}

// Completion carries the terminal state written once a run finishes.
type Completion struct {
	Status      ExecutionStatus
	CompletedAt time.Time
	Output      Context
	Error       string
	ErrorStack  string
	Attempts    int
}
