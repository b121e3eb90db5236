package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeflow/nodeflow/pkg/models"
	"github.com/nodeflow/nodeflow/pkg/persistence/file"
	"github.com/nodeflow/nodeflow/pkg/registry"
	"github.com/nodeflow/nodeflow/pkg/web"
)

type dispatched struct {
	workflowID     string
	initialContext models.Context
}

type fakeDispatcher struct {
	mu    sync.Mutex
	calls []dispatched
	err   error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, workflowID string, initialContext models.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.err != nil {
		return "", d.err
	}

	d.calls = append(d.calls, dispatched{workflowID: workflowID, initialContext: initialContext})

	return "run_01", nil
}

func setupTestApp(t *testing.T) (*fiber.App, *file.Persistence, *fakeDispatcher) {
	t.Helper()

	persistence := file.NewPersistence(t.TempDir())

	reg, err := registry.NewDefault(slog.Default(), registry.Dependencies{})
	require.NoError(t, err)

	dispatcher := &fakeDispatcher{}
	handlers := web.NewAPIHandlers(persistence, reg, dispatcher, validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()
	handlers.Mount(app)

	return app, persistence, dispatcher
}

func saveWorkflow(t *testing.T, persistence *file.Persistence, workflow *models.Workflow) {
	t.Helper()

	require.NoError(t, persistence.WorkflowRepository().Save(context.Background(), workflow))
}

func doRequest(t *testing.T, app *fiber.App, method, target string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, respBody
}

func simpleWorkflow() *models.Workflow {
	return &models.Workflow{
		ID:    "wf-1",
		Name:  "Forward form",
		Owner: "user-1",
		Nodes: []*models.WorkflowNode{
			{ID: "trigger", Type: models.NodeTypeManualTrigger},
			{ID: "http", Type: models.NodeTypeHTTPRequest, Config: map[string]any{
				"endpoint": "https://api.example.com", "method": "GET", "variableName": "api",
			}},
		},
		Connections: []*models.Connection{{ID: "c1", FromNodeID: "trigger", ToNodeID: "http"}},
	}
}

func TestAPIHandlers_ExecuteWorkflow(t *testing.T) {
	t.Parallel()

	app, persistence, dispatcher := setupTestApp(t)
	saveWorkflow(t, persistence, simpleWorkflow())

	resp, body := doRequest(t, app, http.MethodPost, "/workflows/wf-1/execute",
		web.ExecuteWorkflowRequest{InitialContext: models.Context{"name": "Ada"}})

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var accepted web.RunAcceptedResponse
	require.NoError(t, json.Unmarshal(body, &accepted))
	assert.Equal(t, "run_01", accepted.RunID)

	require.Len(t, dispatcher.calls, 1)
	assert.Equal(t, "wf-1", dispatcher.calls[0].workflowID)
	assert.Equal(t, "Ada", dispatcher.calls[0].initialContext["name"])
}

func TestAPIHandlers_ExecuteWorkflow_EmptyBody(t *testing.T) {
	t.Parallel()

	app, persistence, dispatcher := setupTestApp(t)
	saveWorkflow(t, persistence, simpleWorkflow())

	resp, _ := doRequest(t, app, http.MethodPost, "/workflows/wf-1/execute", nil)

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Len(t, dispatcher.calls, 1)
	assert.Nil(t, dispatcher.calls[0].initialContext)
}

func TestAPIHandlers_ExecuteWorkflow_Errors(t *testing.T) {
	t.Parallel()

	t.Run("unknown workflow", func(t *testing.T) {
		t.Parallel()

		app, _, dispatcher := setupTestApp(t)

		resp, body := doRequest(t, app, http.MethodPost, "/workflows/missing/execute", nil)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Contains(t, string(body), "workflow_not_found")
		assert.Empty(t, dispatcher.calls)
	})

	t.Run("event bus down", func(t *testing.T) {
		t.Parallel()

		app, persistence, dispatcher := setupTestApp(t)
		saveWorkflow(t, persistence, simpleWorkflow())

		dispatcher.err = errors.New("broker unavailable")

		resp, body := doRequest(t, app, http.MethodPost, "/workflows/wf-1/execute", nil)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Contains(t, string(body), "internal_error")
	})
}

func TestAPIHandlers_Webhooks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		path      string
		body      map[string]any
		namespace string
		check     func(t *testing.T, payload map[string]any)
	}{
		{
			name:      "google form",
			path:      "/webhooks/google-form",
			body:      map[string]any{"formID": "f1", "responses": map[string]any{"Email": "a@b.c"}},
			namespace: "googleForm",
			check: func(t *testing.T, payload map[string]any) {
				t.Helper()
				assert.Equal(t, "f1", payload["formID"])
			},
		},
		{
			name:      "stripe",
			path:      "/webhooks/stripe",
			body:      map[string]any{"id": "evt_1", "type": "charge.succeeded", "data": map[string]any{"object": map[string]any{"amount": 500}}},
			namespace: "stripe",
			check: func(t *testing.T, payload map[string]any) {
				t.Helper()
				assert.Equal(t, "charge.succeeded", payload["eventType"])
				assert.Equal(t, map[string]any{"amount": float64(500)}, payload["raw"])
			},
		},
		{
			name:      "paypal",
			path:      "/webhooks/paypal",
			body:      map[string]any{"id": "WH-1", "event_type": "PAYMENT.CAPTURE.COMPLETED"},
			namespace: "paypal",
			check: func(t *testing.T, payload map[string]any) {
				t.Helper()
				assert.Equal(t, "PAYMENT.CAPTURE.COMPLETED", payload["eventType"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app, _, dispatcher := setupTestApp(t)

			resp, body := doRequest(t, app, http.MethodPost, tt.path+"?workflowID=wf-9", tt.body)
			assert.Equal(t, http.StatusOK, resp.StatusCode)

			var ack web.WebhookResponse
			require.NoError(t, json.Unmarshal(body, &ack))
			assert.True(t, ack.Success)
			assert.Equal(t, "run_01", ack.RunID)

			require.Len(t, dispatcher.calls, 1)
			assert.Equal(t, "wf-9", dispatcher.calls[0].workflowID)

			payload, ok := dispatcher.calls[0].initialContext[tt.namespace].(map[string]any)
			require.True(t, ok)
			tt.check(t, payload)
		})
	}
}

func TestAPIHandlers_Webhooks_RequireWorkflowID(t *testing.T) {
	t.Parallel()

	app, _, dispatcher := setupTestApp(t)

	for _, path := range []string{"/webhooks/google-form", "/webhooks/stripe", "/webhooks/paypal"} {
		resp, body := doRequest(t, app, http.MethodPost, path, map[string]any{"id": "x"})

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
		assert.Contains(t, string(body), "workflowID", path)
	}

	assert.Empty(t, dispatcher.calls)
}

func TestAPIHandlers_Webhooks_InvalidJSON(t *testing.T) {
	t.Parallel()

	app, _, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe?workflowID=wf-1", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_Executions(t *testing.T) {
	t.Parallel()

	app, persistence, _ := setupTestApp(t)
	ctx := context.Background()
	executions := persistence.ExecutionRepository()

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"run_a", "run_b", "run_c"} {
		_, created, err := executions.CreateIfAbsent(ctx, &models.Execution{
			ID:         id,
			WorkflowID: "wf-1",
			Status:     models.ExecutionStatusRunning,
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
		require.True(t, created)
	}

	t.Run("get one", func(t *testing.T) {
		resp, body := doRequest(t, app, http.MethodGet, "/executions/run_b", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var execution models.Execution
		require.NoError(t, json.Unmarshal(body, &execution))
		assert.Equal(t, "run_b", execution.ID)
		assert.Equal(t, models.ExecutionStatusRunning, execution.Status)
	})

	t.Run("missing", func(t *testing.T) {
		resp, body := doRequest(t, app, http.MethodGet, "/executions/run_zzz", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Contains(t, string(body), "execution_not_found")
	})

	t.Run("list most recent first", func(t *testing.T) {
		resp, body := doRequest(t, app, http.MethodGet, "/workflows/wf-1/executions?limit=2", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var list web.ExecutionsResponse
		require.NoError(t, json.Unmarshal(body, &list))
		require.Equal(t, 2, list.Count)
		assert.Equal(t, "run_c", list.Executions[0].ID)
		assert.Equal(t, "run_b", list.Executions[1].ID)
	})

	t.Run("limit out of range", func(t *testing.T) {
		resp, _ := doRequest(t, app, http.MethodGet, "/workflows/wf-1/executions?limit=1000", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestAPIHandlers_ValidateWorkflow(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		t.Parallel()

		app, persistence, _ := setupTestApp(t)
		saveWorkflow(t, persistence, simpleWorkflow())

		resp, body := doRequest(t, app, http.MethodPost, "/workflows/wf-1/validate", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result web.ValidationResponse
		require.NoError(t, json.Unmarshal(body, &result))
		assert.True(t, result.Valid)
		assert.Equal(t, []string{"trigger", "http"}, result.Order)
		assert.Empty(t, result.Problems)
	})

	t.Run("bad node config", func(t *testing.T) {
		t.Parallel()

		app, persistence, _ := setupTestApp(t)

		workflow := simpleWorkflow()
		workflow.Nodes[1].Config = map[string]any{"method": "GET"}
		saveWorkflow(t, persistence, workflow)

		_, body := doRequest(t, app, http.MethodPost, "/workflows/wf-1/validate", nil)

		var result web.ValidationResponse
		require.NoError(t, json.Unmarshal(body, &result))
		assert.False(t, result.Valid)
		require.Len(t, result.Problems, 1)
		assert.Equal(t, "http", result.Problems[0].NodeID)
	})

	t.Run("cycle", func(t *testing.T) {
		t.Parallel()

		app, persistence, _ := setupTestApp(t)

		workflow := simpleWorkflow()
		workflow.Connections = append(workflow.Connections, &models.Connection{ID: "c2", FromNodeID: "http", ToNodeID: "trigger"})
		saveWorkflow(t, persistence, workflow)

		_, body := doRequest(t, app, http.MethodPost, "/workflows/wf-1/validate", nil)

		var result web.ValidationResponse
		require.NoError(t, json.Unmarshal(body, &result))
		assert.False(t, result.Valid)
		assert.Empty(t, result.Order)
		require.Len(t, result.Problems, 1)
		assert.Contains(t, result.Problems[0].Message, "cycle")
	})

	t.Run("unknown node type", func(t *testing.T) {
		t.Parallel()

		app, persistence, _ := setupTestApp(t)

		workflow := simpleWorkflow()
		workflow.Nodes[1].Type = "FTP_UPLOAD"
		saveWorkflow(t, persistence, workflow)

		_, body := doRequest(t, app, http.MethodPost, "/workflows/wf-1/validate", nil)

		var result web.ValidationResponse
		require.NoError(t, json.Unmarshal(body, &result))
		assert.False(t, result.Valid)
		require.Len(t, result.Problems, 1)
		assert.Contains(t, result.Problems[0].Message, "FTP_UPLOAD")
	})

	t.Run("missing owner", func(t *testing.T) {
		t.Parallel()

		app, persistence, _ := setupTestApp(t)

		workflow := simpleWorkflow()
		workflow.Owner = ""
		saveWorkflow(t, persistence, workflow)

		_, body := doRequest(t, app, http.MethodPost, "/workflows/wf-1/validate", nil)

		var result web.ValidationResponse
		require.NoError(t, json.Unmarshal(body, &result))
		assert.False(t, result.Valid)
		require.Len(t, result.Problems, 1)
		assert.Equal(t, "Workflow.Owner", result.Problems[0].Field)
	})
}

func TestAPIHandlers_GetNodeTypes(t *testing.T) {
	t.Parallel()

	app, _, _ := setupTestApp(t)

	resp, body := doRequest(t, app, http.MethodGet, "/node-types", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var infos []registry.NodeTypeInfo
	require.NoError(t, json.Unmarshal(body, &infos))
	require.Len(t, infos, len(models.NodeTypes()))
	assert.Equal(t, models.NodeTypeInitial, infos[0].Type)
	assert.Equal(t, models.CategoryTypeTrigger, infos[0].Category)
	assert.Equal(t, "slack-execution", infos[len(infos)-1].Channel)
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	t.Parallel()

	app, _, _ := setupTestApp(t)

	resp, body := doRequest(t, app, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]any
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "healthy", health["status"])
}
