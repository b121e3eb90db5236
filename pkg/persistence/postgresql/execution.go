package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nodeflow/nodeflow/pkg/models"
	"github.com/nodeflow/nodeflow/pkg/persistence"
)

const executionColumns = `id, workflow_id, status, started_at, completed_at, output, error, error_stack, attempts`

// ExecutionRepository handles run records.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

// CreateIfAbsent relies on the primary key so concurrent deliveries of one run create a single row.
func (r *ExecutionRepository) CreateIfAbsent(ctx context.Context, execution *models.Execution) (*models.Execution, bool, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO executions (id, workflow_id, status, started_at, attempts)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`,
		execution.ID, execution.WorkflowID, execution.Status, execution.StartedAt, execution.Attempts)
	if err != nil {
		return nil, false, persistence.NewExecutionError("CreateIfAbsent", execution.ID, err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	if inserted == 1 {
		stored := *execution

		return &stored, true, nil
	}

	existing, err := r.GetByID(ctx, execution.ID)
	if err != nil {
		return nil, false, err
	}

	return existing, false, nil
}

// Complete is conditional on the row still being running.
func (r *ExecutionRepository) Complete(ctx context.Context, id string, completion models.Completion) (bool, error) {
	// failed runs carry no output and store NULL
	var output any

	if completion.Output != nil {
		outputJSON, err := json.Marshal(completion.Output)
		if err != nil {
			return false, fmt.Errorf("failed to marshal output of execution %s: %w", id, err)
		}

		output = string(outputJSON)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE executions
		SET status = $2, completed_at = $3, output = $4, error = $5, error_stack = $6, attempts = $7
		WHERE id = $1 AND status = 'running'`,
		id, completion.Status, completion.CompletedAt, output, completion.Error, completion.ErrorStack, completion.Attempts)
	if err != nil {
		return false, persistence.NewExecutionError("Complete", id, err)
	}

	updated, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	if updated == 1 {
		return true, nil
	}

	// distinguish an already terminal run from a missing one
	if _, err := r.GetByID(ctx, id); err != nil {
		return false, err
	}

	r.logger.DebugContext(ctx, "Execution already terminal, completion ignored", "execution_id", id)

	return false, nil
}

func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.Execution, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+executionColumns+` FROM executions WHERE id = $1`, id)

	execution, err := scanExecution(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to get execution %s: %w", id, err)
	}

	return execution, nil
}

func (r *ExecutionRepository) ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*models.Execution, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+executionColumns+`
		FROM executions WHERE workflow_id = $1
		ORDER BY started_at DESC
		LIMIT $2`, workflowID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions of workflow %s: %w", workflowID, err)
	}
	defer rows.Close()

	executions := make([]*models.Execution, 0)

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	return executions, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExecution(row scanner) (*models.Execution, error) {
	var (
		execution   models.Execution
		completedAt sql.NullTime
		outputJSON  []byte
	)

	err := row.Scan(
		&execution.ID, &execution.WorkflowID, &execution.Status, &execution.StartedAt,
		&completedAt, &outputJSON, &execution.Error, &execution.ErrorStack, &execution.Attempts,
	)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		completed := completedAt.Time
		execution.CompletedAt = &completed
	}

	if len(outputJSON) > 0 {
		if err := json.Unmarshal(outputJSON, &execution.Output); err != nil {
			return nil, fmt.Errorf("failed to unmarshal output: %w", err)
		}
	}

	return &execution, nil
}
