// Package engine runs workflows: it orders the nodes, folds the run context through
// their executors and records the outcome on the execution record.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nodeflow/nodeflow/pkg/graph"
	"github.com/nodeflow/nodeflow/pkg/models"
	"github.com/nodeflow/nodeflow/pkg/otelhelper"
	"github.com/nodeflow/nodeflow/pkg/persistence"
	"github.com/nodeflow/nodeflow/pkg/protocol"
	"github.com/nodeflow/nodeflow/pkg/status"
	"github.com/nodeflow/nodeflow/pkg/step"
)

// Resolver finds the executor for a node type.
type Resolver interface {
	Resolve(nodeType models.NodeType) (protocol.Executor, error)
}

// RunRequest identifies one run. RunID is the idempotency key: every delivery of the
// same request maps onto the same execution record and step journal.
type RunRequest struct {
	RunID          string         `json:"run_id"`
	WorkflowID     string         `json:"workflow_id"`
	InitialContext models.Context `json:"initial_context,omitempty"`
}

// Coordinator drives runs to a terminal state.
type Coordinator struct {
	workflows  persistence.WorkflowRepository
	executions persistence.ExecutionRepository
	resolver   Resolver
	steps      *step.Runner
	status     protocol.StatusPublisher
	logger     *slog.Logger
	tracer     trace.Tracer
	runRetries int
	newBackOff func() backoff.BackOff
	now        func() time.Time
}

type Option func(*Coordinator)

// WithRunRetries sets how many times a run that failed with a retryable error is
// attempted again. Completed steps are replayed from the journal, not repeated.
func WithRunRetries(retries int) Option {
	return func(c *Coordinator) {
		if retries >= 0 {
			c.runRetries = retries
		}
	}
}

// WithRunBackOff replaces the delay policy between run attempts.
func WithRunBackOff(factory func() backoff.BackOff) Option {
	return func(c *Coordinator) {
		c.newBackOff = factory
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(c *Coordinator) {
		c.tracer = tracer
	}
}

func NewCoordinator(
	workflows persistence.WorkflowRepository,
	executions persistence.ExecutionRepository,
	resolver Resolver,
	steps *step.Runner,
	publisher protocol.StatusPublisher,
	logger *slog.Logger,
	opts ...Option,
) *Coordinator {
	c := &Coordinator{
		workflows:  workflows,
		executions: executions,
		resolver:   resolver,
		steps:      steps,
		status:     publisher,
		logger:     logger.With("module", "engine"),
		tracer:     otelhelper.Tracer("nodeflow/engine"),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = 30 * time.Second

			return b
		},
		now: func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Run executes the request and returns the terminal execution record.
//
// A nil execution with an error means the outcome was not recorded, either because the
// write failed or because ctx was cancelled mid-run, and the request should be
// delivered again. A non-nil execution is final: when the run failed
// its cause is returned alongside it. A request whose execution is already terminal
// returns that record without running anything.
func (c *Coordinator) Run(ctx context.Context, req RunRequest) (*models.Execution, error) {
	logger := c.logger.With("run_id", req.RunID, "workflow_id", req.WorkflowID)

	ctx, span := otelhelper.StartSpan(ctx, c.tracer, "workflow.run",
		attribute.String(otelhelper.RunIDKey, req.RunID),
		attribute.String(otelhelper.WorkflowIDKey, req.WorkflowID),
	)
	defer span.End()

	execution, created, err := c.executions.CreateIfAbsent(ctx, &models.Execution{
		ID:         req.RunID,
		WorkflowID: req.WorkflowID,
		Status:     models.ExecutionStatusRunning,
		StartedAt:  c.now(),
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to create execution %s: %w", req.RunID, err)
	}

	if execution.Status.IsTerminal() {
		logger.InfoContext(ctx, "Run already completed, skipping", "status", execution.Status)

		return execution, nil
	}

	if created {
		logger.InfoContext(ctx, "Starting run")
	} else {
		logger.InfoContext(ctx, "Resuming run")
	}

	output, attempts, runErr := c.attempt(ctx, logger, req)

	// An interrupted run stays running so a redelivery resumes it from its journal.
	if runErr != nil && ctx.Err() != nil {
		logger.WarnContext(ctx, "Run interrupted, leaving it to be delivered again", "error", runErr, "attempts", attempts)
		otelhelper.SetError(span, runErr)

		return nil, fmt.Errorf("run %s interrupted: %w", req.RunID, runErr)
	}

	completion := models.Completion{
		Status:      models.ExecutionStatusSuccess,
		CompletedAt: c.now(),
		Output:      output,
		Attempts:    attempts,
	}

	if runErr != nil {
		otelhelper.SetError(span, runErr)

		completion.Status = models.ExecutionStatusFailed
		completion.Output = nil
		completion.Error = protocol.Message(runErr)
		completion.ErrorStack = protocol.Detail(runErr)
	}

	// the outcome is recorded even when ctx is cancelled after the last node
	writeCtx := context.WithoutCancel(ctx)

	written, err := c.executions.Complete(writeCtx, req.RunID, completion)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to record run outcome", "error", err, "status", completion.Status)

		return nil, fmt.Errorf("failed to complete execution %s: %w", req.RunID, err)
	}

	if !written {
		logger.InfoContext(ctx, "Execution was completed concurrently, keeping the stored outcome")
	}

	final, err := c.executions.GetByID(writeCtx, req.RunID)
	if err != nil {
		return nil, fmt.Errorf("failed to load execution %s: %w", req.RunID, err)
	}

	if runErr != nil {
		logger.WarnContext(ctx, "Run failed", "error", runErr, "attempts", attempts)

		return final, runErr
	}

	logger.InfoContext(ctx, "Run succeeded", "attempts", attempts)

	return final, nil
}

// attempt runs the workflow, starting over after retryable failures.
func (c *Coordinator) attempt(ctx context.Context, logger *slog.Logger, req RunRequest) (models.Context, int, error) {
	var (
		output   models.Context
		attempts int
	)

	operation := func() error {
		attempts++

		out, err := c.runOnce(ctx, logger.With("attempt", attempts), req, attempts)
		if err != nil {
			if !protocol.IsRetryable(err) {
				return backoff.Permanent(err)
			}

			return err
		}

		output = out

		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(c.runRetries)), ctx)

	err := backoff.RetryNotify(operation, policy, func(err error, wait time.Duration) {
		logger.WarnContext(ctx, "Run attempt failed, retrying", "error", err, "attempt", attempts, "wait", wait)
	})

	return output, attempts, err
}

// runOnce loads and orders the workflow, then folds the context through every node.
// The first failure ends the fold.
func (c *Coordinator) runOnce(ctx context.Context, logger *slog.Logger, req RunRequest, attempt int) (models.Context, error) {
	scope := c.steps.Scope(req.RunID)

	workflow, err := step.Do(ctx, scope, "get-workflow", func(ctx context.Context) (*models.Workflow, error) {
		workflow, err := c.workflows.GetByID(ctx, req.WorkflowID)
		if persistence.IsWorkflowNotFound(err) {
			return nil, protocol.Configuration("workflow %s not found", req.WorkflowID)
		}

		return workflow, err
	})
	if err != nil {
		return nil, err
	}

	ordered, err := graph.Order(workflow.Nodes, workflow.Connections)
	if err != nil {
		return nil, err
	}

	executors := make([]protocol.Executor, len(ordered))

	for i, node := range ordered {
		executor, err := c.resolver.Resolve(node.Type)
		if err != nil {
			return nil, protocol.AtNode(err, node.ID)
		}

		executors[i] = status.Track(executor, c.status)
	}

	runContext := req.InitialContext.Clone()

	for i, node := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		next, err := c.runNode(ctx, logger, node, executors[i], protocol.Request{
			NodeID:   node.ID,
			NodeType: node.Type,
			RunID:    req.RunID,
			OwnerID:  workflow.Owner,
			Config:   node.Config,
			Context:  runContext.Clone(),
			Step:     scope.Node(node.ID),
		}, attempt)
		if err != nil {
			return nil, protocol.AtNode(err, node.ID)
		}

		runContext = next
	}

	return runContext, nil
}

func (c *Coordinator) runNode(
	ctx context.Context,
	logger *slog.Logger,
	node *models.WorkflowNode,
	executor protocol.Executor,
	req protocol.Request,
	attempt int,
) (models.Context, error) {
	ctx, span := otelhelper.StartSpan(ctx, c.tracer, "workflow.node",
		attribute.String(otelhelper.RunIDKey, req.RunID),
		attribute.String(otelhelper.NodeIDKey, node.ID),
		attribute.String(otelhelper.NodeTypeKey, string(node.Type)),
		attribute.Int(otelhelper.AttemptKey, attempt),
	)
	defer span.End()

	logger = logger.With("node_id", node.ID, "node_type", node.Type)
	logger.DebugContext(ctx, "Executing node")

	out, err := executor.Execute(ctx, req)
	if err != nil {
		otelhelper.SetError(span, err)
		logger.WarnContext(ctx, "Node failed", "error", err)

		return nil, err
	}

	if out == nil {
		out = models.Context{}
	}

	return out, nil
}
