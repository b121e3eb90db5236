// Package persistence provides the storage abstraction for workflows, executions,
// step journals and credentials.
package persistence

import (
	"context"

	"github.com/nodeflow/nodeflow/pkg/models"
)

type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ExecutionRepository() ExecutionRepository
	StepRepository() StepRepository
	CredentialRepository() CredentialRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository reads workflow definitions. Workflows are authored elsewhere; Save
// exists for seeding and tooling.
type WorkflowRepository interface {
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error
}

// ExecutionRepository persists run records.
type ExecutionRepository interface {
	// CreateIfAbsent inserts execution unless a record with the same id exists. It returns
	// the stored record and whether this call created it.
	CreateIfAbsent(ctx context.Context, execution *models.Execution) (*models.Execution, bool, error)

	// Complete writes the terminal state of a running execution. It reports false without
	// error when the record is already terminal.
	Complete(ctx context.Context, id string, completion models.Completion) (bool, error)

	GetByID(ctx context.Context, id string) (*models.Execution, error)
	ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*models.Execution, error)
}

// StepRepository is the durable step journal, kept next to the execution records.
type StepRepository interface {
	LoadStep(ctx context.Context, runID, key string) ([]byte, bool, error)
	SaveStep(ctx context.Context, runID, key string, result []byte) error
}

type CredentialRepository interface {
	GetByID(ctx context.Context, id string) (*models.Credential, error)
	Save(ctx context.Context, credential *models.Credential) error
}
