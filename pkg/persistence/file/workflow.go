package file

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/nodeflow/nodeflow/pkg/models"
	"github.com/nodeflow/nodeflow/pkg/persistence"
)

// WorkflowRepository handles workflow-related file operations.
type WorkflowRepository struct {
	root string // File system root for storing workflows
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{root: root}
}

// GetByID retrieves a workflow, with its nodes and connections, from the file system.
func (wr *WorkflowRepository) GetByID(_ context.Context, workflowID string) (*models.Workflow, error) {
	if err := validateID("workflow", workflowID); err != nil {
		return nil, persistence.NewWorkflowError("GetByID", workflowID, err)
	}

	var workflow models.Workflow

	found, err := readJSON(wr.path(workflowID), &workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch workflow %s: %w", workflowID, err)
	}

	if !found {
		return nil, persistence.NewWorkflowError("GetByID", workflowID, persistence.ErrWorkflowNotFound)
	}

	return &workflow, nil
}

// Save saves a workflow to the file system, assigning an id when it has none.
func (wr *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	if workflow.ID == "" {
		workflow.ID = uuid.NewString()
	}

	if err := validateID("workflow", workflow.ID); err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	if err := writeJSON(wr.path(workflow.ID), workflow); err != nil {
		return fmt.Errorf("failed to write workflow %s: %w", workflow.ID, err)
	}

	return nil
}

func (wr *WorkflowRepository) path(workflowID string) string {
	return filepath.Join(wr.root, "workflows", workflowID+".json")
}
