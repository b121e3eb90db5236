package models

import "time"

// Workflow is a user-owned directed graph of nodes. The engine only reads it.
type Workflow struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"        validate:"required,min=1"`
	Owner       string          `json:"owner"       validate:"required"`
	Nodes       []*WorkflowNode `json:"nodes"       validate:"dive"`
	Connections []*Connection   `json:"connections" validate:"dive"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Node returns the node with the given id, or nil.
func (w *Workflow) Node(id string) *WorkflowNode {
	for _, node := range w.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}
