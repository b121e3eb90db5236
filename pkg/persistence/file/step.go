package file

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
)

// StepRepository keeps the step journal of each run in a single JSON file.
type StepRepository struct {
	root string
	mu   sync.Mutex
}

func NewStepRepository(root string) *StepRepository {
	return &StepRepository{root: root}
}

func (sr *StepRepository) LoadStep(_ context.Context, runID, key string) ([]byte, bool, error) {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	steps, err := sr.load(runID)
	if err != nil {
		return nil, false, err
	}

	result, ok := steps[key]

	return result, ok, nil
}

func (sr *StepRepository) SaveStep(_ context.Context, runID, key string, result []byte) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	steps, err := sr.load(runID)
	if err != nil {
		return err
	}

	if _, exists := steps[key]; exists {
		return nil
	}

	steps[key] = json.RawMessage(result)

	if err := writeJSON(sr.path(runID), steps); err != nil {
		return fmt.Errorf("failed to write steps for run %s: %w", runID, err)
	}

	return nil
}

func (sr *StepRepository) load(runID string) (map[string]json.RawMessage, error) {
	if err := validateID("run", runID); err != nil {
		return nil, err
	}

	steps := make(map[string]json.RawMessage)
	if _, err := readJSON(sr.path(runID), &steps); err != nil {
		return nil, fmt.Errorf("failed to read steps for run %s: %w", runID, err)
	}

	return steps, nil
}

func (sr *StepRepository) path(runID string) string {
	return filepath.Join(sr.root, "steps", runID+".json")
}
