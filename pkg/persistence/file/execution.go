package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/nodeflow/nodeflow/pkg/models"
	"github.com/nodeflow/nodeflow/pkg/persistence"
)

// ExecutionRepository stores one JSON file per run.
type ExecutionRepository struct {
	root string
	mu   sync.Mutex
}

func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{root: root}
}

// CreateIfAbsent uses an exclusive create so only the first writer of a run id succeeds.
func (er *ExecutionRepository) CreateIfAbsent(_ context.Context, execution *models.Execution) (*models.Execution, bool, error) {
	if err := validateID("execution", execution.ID); err != nil {
		return nil, false, persistence.NewExecutionError("CreateIfAbsent", execution.ID, err)
	}

	er.mu.Lock()
	defer er.mu.Unlock()

	dir := filepath.Join(er.root, "executions")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, false, fmt.Errorf("failed to create executions directory: %w", err)
	}

	data, err := json.MarshalIndent(execution, "", "  ")
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal execution %s: %w", execution.ID, err)
	}

	file, err := os.OpenFile(er.path(execution.ID), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			existing, err := er.load(execution.ID)
			if err != nil {
				return nil, false, err
			}

			return existing, false, nil
		}

		return nil, false, fmt.Errorf("failed to create execution %s: %w", execution.ID, err)
	}
	defer file.Close()

	if _, err := file.Write(data); err != nil {
		return nil, false, fmt.Errorf("failed to write execution %s: %w", execution.ID, err)
	}

	stored := *execution

	return &stored, true, nil
}

// Complete only transitions executions that are still running.
func (er *ExecutionRepository) Complete(_ context.Context, id string, completion models.Completion) (bool, error) {
	if err := validateID("execution", id); err != nil {
		return false, persistence.NewExecutionError("Complete", id, err)
	}

	er.mu.Lock()
	defer er.mu.Unlock()

	execution, err := er.load(id)
	if err != nil {
		return false, err
	}

	if execution.Status.IsTerminal() {
		return false, nil
	}

	completedAt := completion.CompletedAt
	execution.Status = completion.Status
	execution.CompletedAt = &completedAt
	execution.Output = completion.Output
	execution.Error = completion.Error
	execution.ErrorStack = completion.ErrorStack
	execution.Attempts = completion.Attempts

	if err := writeJSON(er.path(id), execution); err != nil {
		return false, fmt.Errorf("failed to write execution %s: %w", id, err)
	}

	return true, nil
}

func (er *ExecutionRepository) GetByID(_ context.Context, id string) (*models.Execution, error) {
	if err := validateID("execution", id); err != nil {
		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	er.mu.Lock()
	defer er.mu.Unlock()

	return er.load(id)
}

// ListByWorkflow returns the workflow's executions, most recent first.
func (er *ExecutionRepository) ListByWorkflow(_ context.Context, workflowID string, limit int) ([]*models.Execution, error) {
	er.mu.Lock()
	defer er.mu.Unlock()

	files, err := fs.Glob(os.DirFS(filepath.Join(er.root, "executions")), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list execution files: %w", err)
	}

	executions := make([]*models.Execution, 0)

	for _, name := range files {
		execution, err := er.load(strings.TrimSuffix(name, ".json"))
		if err != nil {
			return nil, err
		}

		if execution.WorkflowID == workflowID {
			executions = append(executions, execution)
		}
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].StartedAt.After(executions[j].StartedAt)
	})

	if limit > 0 && len(executions) > limit {
		executions = executions[:limit]
	}

	return executions, nil
}

func (er *ExecutionRepository) load(id string) (*models.Execution, error) {
	var execution models.Execution

	found, err := readJSON(er.path(id), &execution)
	if err != nil {
		return nil, fmt.Errorf("failed to read execution %s: %w", id, err)
	}

	if !found {
		return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
	}

	return &execution, nil
}

func (er *ExecutionRepository) path(id string) string {
	return filepath.Join(er.root, "executions", id+".json")
}
