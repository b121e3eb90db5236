package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nodeflow/nodeflow/pkg/models"
	"github.com/nodeflow/nodeflow/pkg/persistence"
)

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

// GetByID retrieves a workflow with its nodes and connections, both in authoring order.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	workflow := &models.Workflow{}

	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, owner, created_at, updated_at FROM workflows WHERE id = $1`, id,
	).Scan(&workflow.ID, &workflow.Name, &workflow.Owner, &workflow.CreatedAt, &workflow.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to get workflow %s: %w", id, err)
	}

	workflow.Nodes, err = r.nodes(ctx, id)
	if err != nil {
		return nil, err
	}

	workflow.Connections, err = r.connections(ctx, id)
	if err != nil {
		return nil, err
	}

	return workflow, nil
}

func (r *WorkflowRepository) nodes(ctx context.Context, workflowID string) ([]*models.WorkflowNode, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, node_type, config, position_x, position_y
		FROM workflow_nodes WHERE workflow_id = $1 ORDER BY sort_order`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes for workflow %s: %w", workflowID, err)
	}
	defer rows.Close()

	nodes := make([]*models.WorkflowNode, 0)

	for rows.Next() {
		var (
			node       models.WorkflowNode
			configJSON []byte
		)

		err := rows.Scan(&node.ID, &node.Name, &node.Type, &configJSON, &node.PositionX, &node.PositionY)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}

		if len(configJSON) > 0 {
			if err := json.Unmarshal(configJSON, &node.Config); err != nil {
				return nil, fmt.Errorf("failed to unmarshal config of node %s: %w", node.ID, err)
			}
		}

		nodes = append(nodes, &node)
	}

	return nodes, rows.Err()
}

func (r *WorkflowRepository) connections(ctx context.Context, workflowID string) ([]*models.Connection, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, from_node_id, to_node_id
		FROM workflow_connections WHERE workflow_id = $1 ORDER BY sort_order`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query connections for workflow %s: %w", workflowID, err)
	}
	defer rows.Close()

	connections := make([]*models.Connection, 0)

	for rows.Next() {
		var conn models.Connection
		if err := rows.Scan(&conn.ID, &conn.FromNodeID, &conn.ToNodeID); err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}

		connections = append(connections, &conn)
	}

	return connections, rows.Err()
}

// Save upserts the workflow and replaces its nodes and connections in one transaction.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	if workflow.ID == "" {
		workflow.ID = uuid.NewString()
	}

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workflows (id, name, owner, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			owner = EXCLUDED.owner,
			updated_at = EXCLUDED.updated_at`,
		workflow.ID, workflow.Name, workflow.Owner, workflow.CreatedAt, workflow.UpdatedAt)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	for _, table := range []string{"workflow_nodes", "workflow_connections"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE workflow_id = $1", workflow.ID); err != nil {
			return persistence.NewWorkflowError("Save", workflow.ID, err)
		}
	}

	for i, node := range workflow.Nodes {
		configJSON, err := json.Marshal(node.Config)
		if err != nil {
			return fmt.Errorf("failed to marshal config of node %s: %w", node.ID, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO workflow_nodes (workflow_id, id, name, node_type, config, position_x, position_y, sort_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			workflow.ID, node.ID, node.Name, node.Type, string(configJSON), node.PositionX, node.PositionY, i)
		if err != nil {
			return persistence.NewWorkflowError("Save", workflow.ID, fmt.Errorf("node %s: %w", node.ID, err))
		}
	}

	for i, conn := range workflow.Connections {
		if conn.ID == "" {
			conn.ID = uuid.NewString()
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO workflow_connections (workflow_id, id, from_node_id, to_node_id, sort_order)
			VALUES ($1, $2, $3, $4, $5)`,
			workflow.ID, conn.ID, conn.FromNodeID, conn.ToNodeID, i)
		if err != nil {
			return persistence.NewWorkflowError("Save", workflow.ID, fmt.Errorf("connection %s: %w", conn.ID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit workflow %s: %w", workflow.ID, err)
	}

	r.logger.DebugContext(ctx, "Workflow saved", "workflow_id", workflow.ID, "nodes", len(workflow.Nodes))

	return nil
}
