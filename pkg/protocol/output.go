package protocol

import "github.com/nodeflow/nodeflow/pkg/models"

// WithOutput records an action node's output under its variable name. Every action
// executor writes through this helper so outputs never merge into the context root.
func WithOutput(ctx models.Context, variableName string, output any) models.Context {
	return ctx.With(variableName, output)
}
