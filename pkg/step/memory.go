package step

import (
	"context"
	"sync"
)

// MemoryJournal keeps step results in process memory.
type MemoryJournal struct {
	mu    sync.RWMutex
	steps map[string]map[string][]byte
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{steps: make(map[string]map[string][]byte)}
}

func (j *MemoryJournal) LoadStep(_ context.Context, runID, key string) ([]byte, bool, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	result, ok := j.steps[runID][key]
	if !ok {
		return nil, false, nil
	}

	return append([]byte(nil), result...), true, nil
}

func (j *MemoryJournal) SaveStep(_ context.Context, runID, key string, result []byte) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	run, ok := j.steps[runID]
	if !ok {
		run = make(map[string][]byte)
		j.steps[runID] = run
	}

	if _, exists := run[key]; !exists {
		run[key] = append([]byte(nil), result...)
	}

	return nil
}

// Keys returns the journaled keys of a run.
func (j *MemoryJournal) Keys(runID string) []string {
	j.mu.RLock()
	defer j.mu.RUnlock()

	keys := make([]string, 0, len(j.steps[runID]))
	for key := range j.steps[runID] {
		keys = append(keys, key)
	}

	return keys
}
