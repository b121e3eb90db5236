package trigger

// NewManual returns the executor shared by INITIAL and MANUAL_TRIGGER nodes.
func NewManual() *Executor {
	return newExecutor("manual-trigger", map[string]any{
		"type":        "object",
		"description": "Starts the workflow when an operator clicks execute",
		"properties":  map[string]any{},
	})
}
