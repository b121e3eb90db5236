// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"github.com/google/uuid"

	"github.com/nodeflow/nodeflow/pkg/models"
)

// CreateTestNode creates a manual trigger node with default values that can be overridden.
func CreateTestNode(overrides ...func(*models.WorkflowNode)) *models.WorkflowNode {
	node := &models.WorkflowNode{
		ID:        uuid.New().String(),
		Type:      models.NodeTypeManualTrigger,
		Name:      "Test Node",
		Config:    map[string]any{},
		PositionX: 100,
		PositionY: 200,
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// WithID sets the node id.
func WithID(id string) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.ID = id
	}
}

// WithType sets the node type.
func WithType(nodeType models.NodeType) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Type = nodeType
	}
}

// WithConfig sets the node configuration.
func WithConfig(config map[string]any) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Config = config
	}
}

// WithName sets the node name.
func WithName(name string) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Name = name
	}
}

// WithHTTPRequest configures the node as a GET request whose response lands under variableName.
func WithHTTPRequest(endpoint, variableName string) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Type = models.NodeTypeHTTPRequest
		n.Config = map[string]any{
			"endpoint":     endpoint,
			"method":       "GET",
			"variableName": variableName,
		}
	}
}

// CreateTestWorkflow chains nodes in the given order and assigns them to a new workflow.
func CreateTestWorkflow(owner string, nodes ...*models.WorkflowNode) *models.Workflow {
	workflow := &models.Workflow{
		ID:          uuid.New().String(),
		Name:        "Test Workflow",
		Owner:       owner,
		Nodes:       nodes,
		Connections: make([]*models.Connection, 0, len(nodes)),
	}

	for i := 1; i < len(nodes); i++ {
		workflow.Connections = append(workflow.Connections, &models.Connection{
			ID:         uuid.New().String(),
			FromNodeID: nodes[i-1].ID,
			ToNodeID:   nodes[i].ID,
		})
	}

	return workflow
}
