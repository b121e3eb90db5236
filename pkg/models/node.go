// Package models defines the workflow, execution and credential models shared by the engine.
package models

import "time"

// CategoryType represents the category of node.
type CategoryType string

const (
	CategoryTypeAction  CategoryType = "action"  // Nodes that perform side effects (http, llm, chat)
	CategoryTypeTrigger CategoryType = "trigger" // Nodes that start a run (manual, webhooks)
)

// NodeType identifies the executor responsible for a node. The set is closed.
type NodeType string

// Built-in node types.
const (
	NodeTypeInitial           NodeType = "INITIAL"
	NodeTypeManualTrigger     NodeType = "MANUAL_TRIGGER"
	NodeTypeGoogleFormTrigger NodeType = "GOOGLE_FORM_TRIGGER"
	NodeTypePaymentTrigger    NodeType = "PAYMENT_TRIGGER" // Stripe
	NodeTypePayPalTrigger     NodeType = "PAYPAL_TRIGGER"
	NodeTypeHTTPRequest       NodeType = "HTTP_REQUEST"
	NodeTypeOpenAI            NodeType = "OPENAI"
	NodeTypeAnthropic         NodeType = "ANTHROPIC"
	NodeTypeGemini            NodeType = "GOOGLE_GEMINI"
	NodeTypeDiscord           NodeType = "DISCORD"
	NodeTypeSlack             NodeType = "SLACK"
)

// NodeTypes returns every node type the engine knows about, in declaration order.
func NodeTypes() []NodeType {
	return []NodeType{
		NodeTypeInitial,
		NodeTypeManualTrigger,
		NodeTypeGoogleFormTrigger,
		NodeTypePaymentTrigger,
		NodeTypePayPalTrigger,
		NodeTypeHTTPRequest,
		NodeTypeOpenAI,
		NodeTypeAnthropic,
		NodeTypeGemini,
		NodeTypeDiscord,
		NodeTypeSlack,
	}
}

// Valid reports whether t is one of the built-in node types.
func (t NodeType) Valid() bool {
	for _, known := range NodeTypes() {
		if t == known {
			return true
		}
	}

	return false
}

func (t NodeType) Category() CategoryType {
	switch t {
	case NodeTypeInitial, NodeTypeManualTrigger, NodeTypeGoogleFormTrigger,
		NodeTypePaymentTrigger, NodeTypePayPalTrigger:
		return CategoryTypeTrigger
	default:
		return CategoryTypeAction
	}
}

// Connection is a directed edge between two nodes of the same workflow.
type Connection struct {
	ID         string `json:"id"`
	FromNodeID string `json:"from_node_id" validate:"required"`
	ToNodeID   string `json:"to_node_id"   validate:"required"`
}

// WorkflowNode represents a node instance in a workflow.
type WorkflowNode struct {
	ID        string         `json:"id"         validate:"required"`
	Name      string         `json:"name"`
	Type      NodeType       `json:"type"       validate:"required"`
	Config    map[string]any `json:"config"`
	PositionX int            `json:"position_x"`
	PositionY int            `json:"position_y"`
}

func (n *WorkflowNode) IsTriggerNode() bool {
	return n.Type.Category() == CategoryTypeTrigger
}

// NodeStatus is the lifecycle state reported for a node while a run is in flight.
type NodeStatus string

const (
	NodeStatusLoading NodeStatus = "loading"
	NodeStatusSuccess NodeStatus = "success"
	NodeStatusError   NodeStatus = "error"
)

// NodeStatusEvent is the payload published on a node type's status channel.
type NodeStatusEvent struct {
	NodeID    string     `json:"nodeId"`
	Status    NodeStatus `json:"status"`
	EmittedAt time.Time  `json:"emittedAt"`
}
