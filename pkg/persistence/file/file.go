// Package file provides file-based persistence for local development and tests.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nodeflow/nodeflow/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root           string
	workflowRepo   *WorkflowRepository
	executionRepo  *ExecutionRepository
	stepRepo       *StepRepository
	credentialRepo *CredentialRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:           cleanRoot,
		workflowRepo:   NewWorkflowRepository(cleanRoot),
		executionRepo:  NewExecutionRepository(cleanRoot),
		stepRepo:       NewStepRepository(cleanRoot),
		credentialRepo: NewCredentialRepository(cleanRoot),
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return fp.workflowRepo
}

func (fp *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return fp.executionRepo
}

func (fp *Persistence) StepRepository() persistence.StepRepository {
	return fp.stepRepo
}

func (fp *Persistence) CredentialRepository() persistence.CredentialRepository {
	return fp.credentialRepo
}

// validateID rejects identifiers that are unsafe to use as file names.
func validateID(kind, id string) error {
	if id == "" {
		return fmt.Errorf("%s ID cannot be empty", kind)
	}

	// Check for path traversal attempts
	if strings.Contains(id, "..") || strings.Contains(id, "/") || strings.Contains(id, "\\") {
		return fmt.Errorf("%s ID contains invalid characters", kind)
	}

	return nil
}

// readJSON decodes the file at path into out. It reports false when the file does not exist.
func readJSON(path string, out any) (bool, error) {
	body, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}

		return false, err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return false, err
	}

	return true, nil
}

// writeJSON atomically replaces the file at path with the JSON encoding of value.
func writeJSON(path string, value any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}
