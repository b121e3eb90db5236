// Package web provides the HTTP handlers that request runs and report on them.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/nodeflow/nodeflow/pkg/graph"
	"github.com/nodeflow/nodeflow/pkg/models"
	"github.com/nodeflow/nodeflow/pkg/persistence"
	"github.com/nodeflow/nodeflow/pkg/registry"
	"github.com/nodeflow/nodeflow/pkg/trigger"
)

const defaultExecutionsLimit = 20

// Dispatcher requests a run without waiting for it.
type Dispatcher interface {
	Dispatch(ctx context.Context, workflowID string, initialContext models.Context) (string, error)
}

type APIHandlers struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	dispatcher  Dispatcher
	validator   *validator.Validate
}

func NewAPIHandlers(
	persistence persistence.Persistence,
	registry *registry.Registry,
	dispatcher Dispatcher,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		persistence: persistence,
		registry:    registry,
		dispatcher:  dispatcher,
		validator:   validator,
	}
}

// ExecuteWorkflow requests a manual run. It answers before the run starts.
func (h *APIHandlers) ExecuteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req ExecuteWorkflowRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	if _, err := h.persistence.WorkflowRepository().GetByID(c.Context(), id); err != nil {
		return handleError(c, err)
	}

	runID, err := h.dispatcher.Dispatch(c.Context(), id, req.InitialContext)
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(RunAcceptedResponse{RunID: runID})
}

// Webhook returns the handler for one inbound webhook source.
func (h *APIHandlers) Webhook(source trigger.Source) fiber.Handler {
	return func(c fiber.Ctx) error {
		var query WebhookQuery
		if err := c.Bind().Query(&query); err != nil {
			return badRequest(c, "Invalid query parameters: "+err.Error())
		}

		if err := h.validator.Struct(query); err != nil {
			return badRequest(c, "Missing required query parameter: workflowID")
		}

		body := map[string]any{}
		if len(c.Body()) > 0 {
			if err := json.Unmarshal(c.Body(), &body); err != nil {
				return badRequest(c, "Invalid JSON format")
			}
		}

		runID, err := h.dispatcher.Dispatch(c.Context(), query.WorkflowID, source.Map(body))
		if err != nil {
			return handleError(c, err)
		}

		return c.JSON(WebhookResponse{Success: true, RunID: runID})
	}
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	execution, err := h.persistence.ExecutionRepository().GetByID(c.Context(), id)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) GetWorkflowExecutions(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var query ListExecutionsQuery
	if err := c.Bind().Query(&query); err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	if err := h.validator.Struct(query); err != nil {
		return badRequest(c, err.Error())
	}

	if query.Limit == 0 {
		query.Limit = defaultExecutionsLimit
	}

	executions, err := h.persistence.ExecutionRepository().ListByWorkflow(c.Context(), id, query.Limit)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(ExecutionsResponse{Executions: executions, Count: len(executions)})
}

// ValidateWorkflow reports the order nodes would run in and every problem the
// coordinator would stop on before running the first of them.
func (h *APIHandlers) ValidateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := h.persistence.WorkflowRepository().GetByID(c.Context(), id)
	if err != nil {
		return handleError(c, err)
	}

	response := ValidationResponse{Order: []string{}, Problems: []ValidationProblem{}}

	if err := h.validator.Struct(workflow); err != nil {
		var fieldErrors validator.ValidationErrors
		if !errors.As(err, &fieldErrors) {
			return internalError(c, err)
		}

		for _, fe := range fieldErrors {
			response.Problems = append(response.Problems, ValidationProblem{
				Field:   fe.Namespace(),
				Message: fe.Field() + " failed the " + fe.Tag() + " check",
			})
		}
	}

	ordered, err := graph.Order(workflow.Nodes, workflow.Connections)
	if err != nil {
		response.Problems = append(response.Problems, ValidationProblem{Message: err.Error()})
	}

	for _, node := range ordered {
		response.Order = append(response.Order, node.ID)

		if err := h.registry.ValidateConfig(node.Type, node.Config); err != nil {
			response.Problems = append(response.Problems, ValidationProblem{NodeID: node.ID, Message: err.Error()})
		}
	}

	response.Valid = len(response.Problems) == 0

	return c.JSON(response)
}

func (h *APIHandlers) GetNodeTypes(c fiber.Ctx) error {
	return c.JSON(h.registry.Describe())
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	registryCheck, regOk := "ok", true
	if err := h.registry.Complete(); err != nil {
		registryCheck, regOk = err.Error(), false
	}

	repositoryCheck, repOk := "ok", true
	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		repositoryCheck, repOk = err.Error(), false
	}

	status := "unhealthy"
	message := "nodeflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if regOk && repOk {
		status = "healthy"
		message = "nodeflow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"registry":   registryCheck,
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
