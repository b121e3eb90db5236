// Package registry maps node types to the executors that run them.
package registry

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/nodeflow/nodeflow/pkg/models"
	"github.com/nodeflow/nodeflow/pkg/protocol"
)

type Registry struct {
	logger    *slog.Logger
	executors map[models.NodeType]protocol.Executor
}

// NodeTypeInfo describes a registered node type for API consumers.
type NodeTypeInfo struct {
	Type     models.NodeType     `json:"type"`
	Category models.CategoryType `json:"category"`
	Channel  string              `json:"channel"`
	Schema   map[string]any      `json:"schema"`
}

func New(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger.With("module", "registry"),
		executors: make(map[models.NodeType]protocol.Executor),
	}
}

// Register binds an executor to a node type, replacing any earlier binding.
func (r *Registry) Register(nodeType models.NodeType, executor protocol.Executor) {
	if _, exists := r.executors[nodeType]; exists {
		r.logger.Warn("Replacing executor", "node_type", nodeType)
	}

	r.executors[nodeType] = executor
}

// Resolve returns the executor for nodeType or an unknown node type error.
func (r *Registry) Resolve(nodeType models.NodeType) (protocol.Executor, error) {
	executor, ok := r.executors[nodeType]
	if !ok {
		return nil, protocol.UnknownNodeType(nodeType)
	}

	return executor, nil
}

// Missing lists the built-in node types that have no executor.
func (r *Registry) Missing() []models.NodeType {
	var missing []models.NodeType

	for _, nodeType := range models.NodeTypes() {
		if _, ok := r.executors[nodeType]; !ok {
			missing = append(missing, nodeType)
		}
	}

	return missing
}

// Complete fails when any built-in node type lacks an executor.
func (r *Registry) Complete() error {
	missing := r.Missing()
	if len(missing) == 0 {
		return nil
	}

	names := make([]string, len(missing))
	for i, nodeType := range missing {
		names[i] = string(nodeType)
	}

	return fmt.Errorf("registry is missing executors for: %s", strings.Join(names, ", "))
}

// ValidateConfig checks a node configuration against the executor's JSON schema.
func (r *Registry) ValidateConfig(nodeType models.NodeType, config map[string]any) error {
	executor, err := r.Resolve(nodeType)
	if err != nil {
		return err
	}

	schema := executor.Schema()
	if schema == nil {
		return nil
	}

	if config == nil {
		config = map[string]any{}
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(config))
	if err != nil {
		return fmt.Errorf("schema for %s is unusable: %w", nodeType, err)
	}

	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}

		return protocol.Configuration("%s: %s", nodeType, strings.Join(problems, "; "))
	}

	return nil
}

// Describe lists every registered node type in declaration order, followed by any
// extra registrations sorted by name.
func (r *Registry) Describe() []NodeTypeInfo {
	infos := make([]NodeTypeInfo, 0, len(r.executors))
	seen := make(map[models.NodeType]bool, len(r.executors))

	for _, nodeType := range models.NodeTypes() {
		if executor, ok := r.executors[nodeType]; ok {
			infos = append(infos, describe(nodeType, executor))
			seen[nodeType] = true
		}
	}

	var extra []models.NodeType

	for nodeType := range r.executors {
		if !seen[nodeType] {
			extra = append(extra, nodeType)
		}
	}

	slices.Sort(extra)

	for _, nodeType := range extra {
		infos = append(infos, describe(nodeType, r.executors[nodeType]))
	}

	return infos
}

func describe(nodeType models.NodeType, executor protocol.Executor) NodeTypeInfo {
	return NodeTypeInfo{
		Type:     nodeType,
		Category: nodeType.Category(),
		Channel:  executor.Channel(),
		Schema:   executor.Schema(),
	}
}
