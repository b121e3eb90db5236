package web

import (
	"github.com/gofiber/fiber/v3"

	"github.com/nodeflow/nodeflow/pkg/trigger"
)

// Mount registers the run API on router.
func (h *APIHandlers) Mount(router fiber.Router) {
	w := router.Group("/workflows")
	w.Post("/:id/execute", h.ExecuteWorkflow)
	w.Post("/:id/validate", h.ValidateWorkflow)
	w.Get("/:id/executions", h.GetWorkflowExecutions)

	router.Get("/executions/:id", h.GetExecution)
	router.Get("/node-types", h.GetNodeTypes)

	hooks := router.Group("/webhooks")
	for _, source := range trigger.Sources() {
		hooks.Post("/"+source.Name, h.Webhook(source))
	}

	router.Get("/health", h.HealthCheck)
}
