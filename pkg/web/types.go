package web

import "github.com/nodeflow/nodeflow/pkg/models"

// ExecuteWorkflowRequest is the optional body of a manual execution.
type ExecuteWorkflowRequest struct {
	InitialContext models.Context `json:"initialContext"`
}

// RunAcceptedResponse is returned once a run request is on the event bus.
type RunAcceptedResponse struct {
	RunID string `json:"runId"`
}

// WebhookResponse acknowledges an inbound webhook delivery.
type WebhookResponse struct {
	Success bool   `json:"success"`
	RunID   string `json:"runId"`
}

// WebhookQuery carries the target workflow of a webhook delivery.
type WebhookQuery struct {
	WorkflowID string `query:"workflowID" validate:"required"`
}

// ListExecutionsQuery bounds the executions listing.
type ListExecutionsQuery struct {
	Limit int `query:"limit" validate:"omitempty,min=1,max=100"`
}

// ValidationProblem is one reason a workflow would fail before any node runs.
type ValidationProblem struct {
	NodeID  string `json:"nodeId,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ValidationResponse reports the execution order of a workflow and what is wrong with it.
type ValidationResponse struct {
	Valid    bool                `json:"valid"`
	Order    []string            `json:"order"`
	Problems []ValidationProblem `json:"problems"`
}

// ExecutionsResponse lists the runs of one workflow, most recent first.
type ExecutionsResponse struct {
	Executions []*models.Execution `json:"executions"`
	Count      int                 `json:"count"`
}
