package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/nodeflow/nodeflow/pkg/models"
	"github.com/nodeflow/nodeflow/pkg/persistence"
	"github.com/nodeflow/nodeflow/pkg/persistence/postgresql"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	// Drop tables in reverse dependency order (children first, parents last)
	for _, table := range []string{"credentials", "execution_steps", "executions", "workflow_connections", "workflow_nodes", "workflows", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("nodeflow_test"),
			postgres.WithUsername("nodeflow"),
			postgres.WithPassword("nodeflow"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx, databaseURL
}

func TestNewPersistence_Migrations(t *testing.T) {
	p, ctx, databaseURL := setupTestDB(t)

	require.NoError(t, p.HealthCheck(ctx))

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer db.Close()

	var version int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version))
	assert.Equal(t, 3, version)

	// running again is a no-op
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	again, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)
	require.NoError(t, again.Close(ctx))
}

func TestWorkflowRepository_RoundTripKeepsOrder(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.WorkflowRepository()

	workflow := &models.Workflow{
		Name:  "Stripe to Discord",
		Owner: "user-1",
		Nodes: []*models.WorkflowNode{
			{ID: "z-trigger", Type: models.NodeTypePaymentTrigger},
			{ID: "a-notify", Type: models.NodeTypeDiscord, Config: map[string]any{"variableName": "sent", "content": "{{stripe.eventType}}"}},
		},
		Connections: []*models.Connection{{FromNodeID: "z-trigger", ToNodeID: "a-notify"}},
	}
	require.NoError(t, repo.Save(ctx, workflow))

	loaded, err := repo.GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", loaded.Owner)
	require.Len(t, loaded.Nodes, 2)
	assert.Equal(t, "z-trigger", loaded.Nodes[0].ID)
	assert.Equal(t, models.NodeTypeDiscord, loaded.Nodes[1].Type)
	assert.Equal(t, "{{stripe.eventType}}", loaded.Nodes[1].Config["content"])
	require.Len(t, loaded.Connections, 1)
	assert.NotEmpty(t, loaded.Connections[0].ID)

	workflow.Nodes = workflow.Nodes[:1]
	workflow.Connections = nil
	require.NoError(t, repo.Save(ctx, workflow))

	loaded, err = repo.GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Nodes, 1)
	assert.Empty(t, loaded.Connections)

	_, err = repo.GetByID(ctx, "missing")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestExecutionRepository_Lifecycle(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.ExecutionRepository()

	started := time.Now().UTC().Truncate(time.Millisecond)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)

	for range 5 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, ok, err := repo.CreateIfAbsent(ctx, &models.Execution{
				ID: "run_1", WorkflowID: "wf-1", Status: models.ExecutionStatusRunning, StartedAt: started,
			})
			assert.NoError(t, err)

			if ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, 1, created)

	updated, err := repo.Complete(ctx, "run_1", models.Completion{
		Status:      models.ExecutionStatusFailed,
		CompletedAt: started.Add(time.Second),
		Error:       "upstream failure: timeout",
		ErrorStack:  "upstream failure (retryable=true) at node n2",
		Attempts:    2,
	})
	require.NoError(t, err)
	assert.True(t, updated)

	updated, err = repo.Complete(ctx, "run_1", models.Completion{Status: models.ExecutionStatusSuccess, CompletedAt: time.Now()})
	require.NoError(t, err)
	assert.False(t, updated)

	execution, err := repo.GetByID(ctx, "run_1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Nil(t, execution.Output)
	assert.Equal(t, 2, execution.Attempts)
	require.NotNil(t, execution.CompletedAt)

	_, err = repo.Complete(ctx, "run_missing", models.Completion{Status: models.ExecutionStatusSuccess})
	assert.True(t, persistence.IsExecutionNotFound(err))

	executions, err := repo.ListByWorkflow(ctx, "wf-1", 10)
	require.NoError(t, err)
	assert.Len(t, executions, 1)
}

func TestExecutionRepository_SuccessOutput(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.ExecutionRepository()

	_, _, err := repo.CreateIfAbsent(ctx, &models.Execution{ID: "run_2", WorkflowID: "wf-1", Status: models.ExecutionStatusRunning, StartedAt: time.Now()})
	require.NoError(t, err)

	_, err = repo.Complete(ctx, "run_2", models.Completion{
		Status:      models.ExecutionStatusSuccess,
		CompletedAt: time.Now(),
		Output:      models.Context{"ping": map[string]any{"httpResponse": map[string]any{"status": 200}}},
	})
	require.NoError(t, err)

	execution, err := repo.GetByID(ctx, "run_2")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"httpResponse": map[string]any{"status": float64(200)}}, execution.Output["ping"])
}

func TestStepRepository(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.StepRepository()

	_, found, err := repo.LoadStep(ctx, "run_1", "get-workflow")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, repo.SaveStep(ctx, "run_1", "get-workflow", []byte(`{"id":"wf-1"}`)))
	require.NoError(t, repo.SaveStep(ctx, "run_1", "get-workflow", []byte(`{"id":"wf-2"}`)))

	result, found, err := repo.LoadStep(ctx, "run_1", "get-workflow")
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `{"id":"wf-1"}`, string(result))
}

func TestCredentialRepository(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.CredentialRepository()

	credential := &models.Credential{Name: "anthropic", Type: models.CredentialTypeAnthropic, Value: "sealed", UserID: "user-1"}
	require.NoError(t, repo.Save(ctx, credential))

	loaded, err := repo.GetByID(ctx, credential.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CredentialTypeAnthropic, loaded.Type)
	assert.Equal(t, "sealed", loaded.Value)

	_, err = repo.GetByID(ctx, "missing")
	assert.True(t, persistence.IsCredentialNotFound(err))
}
