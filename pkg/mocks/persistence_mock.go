// Package mocks provides testify mocks of the persistence and event bus interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/nodeflow/nodeflow/pkg/models"
)

// MockWorkflowRepository is a mock implementation of persistence.WorkflowRepository interface.
type MockWorkflowRepository struct {
	mock.Mock
}

func (m *MockWorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	args := m.Called(ctx, workflow)

	return args.Error(0)
}

// MockExecutionRepository is a mock implementation of persistence.ExecutionRepository interface.
type MockExecutionRepository struct {
	mock.Mock
}

func (m *MockExecutionRepository) CreateIfAbsent(ctx context.Context, execution *models.Execution) (*models.Execution, bool, error) {
	args := m.Called(ctx, execution)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}

	return args.Get(0).(*models.Execution), args.Bool(1), args.Error(2)
}

func (m *MockExecutionRepository) Complete(ctx context.Context, id string, completion models.Completion) (bool, error) {
	args := m.Called(ctx, id, completion)

	return args.Bool(0), args.Error(1)
}

func (m *MockExecutionRepository) GetByID(ctx context.Context, id string) (*models.Execution, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Execution), args.Error(1)
}

func (m *MockExecutionRepository) ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*models.Execution, error) {
	args := m.Called(ctx, workflowID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Execution), args.Error(1)
}
