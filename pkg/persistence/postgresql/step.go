package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// StepRepository stores the step journal in the same database as the execution records.
type StepRepository struct {
	db *sql.DB
}

func NewStepRepository(db *sql.DB) *StepRepository {
	return &StepRepository{db: db}
}

func (r *StepRepository) LoadStep(ctx context.Context, runID, key string) ([]byte, bool, error) {
	var result []byte

	err := r.db.QueryRowContext(ctx,
		`SELECT result FROM execution_steps WHERE run_id = $1 AND step_key = $2`, runID, key,
	).Scan(&result)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("failed to load step %s of run %s: %w", key, runID, err)
	}

	return result, true, nil
}

func (r *StepRepository) SaveStep(ctx context.Context, runID, key string, result []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO execution_steps (run_id, step_key, result)
		VALUES ($1, $2, $3)
		ON CONFLICT (run_id, step_key) DO NOTHING`, runID, key, string(result))
	if err != nil {
		return fmt.Errorf("failed to save step %s of run %s: %w", key, runID, err)
	}

	return nil
}
