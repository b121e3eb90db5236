// Package step journals the results of side-effecting work so a retried run replays
// completed steps instead of repeating them.
package step

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nodeflow/nodeflow/pkg/protocol"
)

const defaultMaxAttempts = 3

// Journal stores step results keyed by (run id, step key). SaveStep keeps the first
// result written for a key.
type Journal interface {
	LoadStep(ctx context.Context, runID, key string) ([]byte, bool, error)
	SaveStep(ctx context.Context, runID, key string, result []byte) error
}

// Runner executes steps against a journal with a bounded retry policy.
type Runner struct {
	journal     Journal
	logger      *slog.Logger
	maxAttempts int
	newBackOff  func() backoff.BackOff
}

type Option func(*Runner)

// WithMaxAttempts bounds how many times a failing step body is invoked within one run attempt.
func WithMaxAttempts(attempts int) Option {
	return func(r *Runner) {
		if attempts > 0 {
			r.maxAttempts = attempts
		}
	}
}

// WithBackOff replaces the delay policy between step attempts.
func WithBackOff(factory func() backoff.BackOff) Option {
	return func(r *Runner) {
		r.newBackOff = factory
	}
}

func NewRunner(journal Journal, logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		journal:     journal,
		logger:      logger.With("module", "step"),
		maxAttempts: defaultMaxAttempts,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 10 * time.Second

			return b
		},
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Scope binds the runner to one run.
func (r *Runner) Scope(runID string) *Scope {
	return &Scope{runner: r, runID: runID}
}

// Scope is a protocol.StepRunner for a single run, optionally namespaced to a node.
type Scope struct {
	runner *Runner
	runID  string
	prefix string
}

// Node returns a scope whose keys are prefixed with the node id, so two nodes using the
// same step name do not share a journal entry.
func (s *Scope) Node(nodeID string) *Scope {
	return &Scope{runner: s.runner, runID: s.runID, prefix: s.prefix + nodeID + "/"}
}

func (s *Scope) RunID() string {
	return s.runID
}

// Run returns the journaled result for key when one exists. Otherwise it invokes fn,
// retrying retryable failures, journals the JSON encoding of the result and returns it.
// Failed invocations are never journaled.
func (s *Scope) Run(ctx context.Context, key string, fn protocol.StepFunc) ([]byte, error) {
	fullKey := s.prefix + key
	logger := s.runner.logger.With("run_id", s.runID, "step", fullKey)

	recorded, found, err := s.runner.journal.LoadStep(ctx, s.runID, fullKey)
	if err != nil {
		return nil, fmt.Errorf("load step %s: %w", fullKey, err)
	}

	if found {
		logger.DebugContext(ctx, "Replaying journaled step")

		return recorded, nil
	}

	var result []byte

	operation := func() error {
		value, err := fn(ctx)
		if err != nil {
			if !protocol.IsRetryable(err) {
				return backoff.Permanent(err)
			}

			return err
		}

		encoded, err := json.Marshal(value)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("encode step %s result: %w", fullKey, err))
		}

		result = encoded

		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(s.runner.newBackOff(), uint64(s.runner.maxAttempts-1)),
		ctx,
	)

	err = backoff.RetryNotify(operation, policy, func(err error, wait time.Duration) {
		logger.WarnContext(ctx, "Step failed, retrying", "error", err, "wait", wait)
	})
	if err != nil {
		return nil, err
	}

	if err := s.runner.journal.SaveStep(ctx, s.runID, fullKey, result); err != nil {
		return nil, fmt.Errorf("save step %s: %w", fullKey, err)
	}

	// The first journaled result wins, even over the one computed here.
	recorded, found, err = s.runner.journal.LoadStep(ctx, s.runID, fullKey)
	if err != nil {
		return nil, fmt.Errorf("load step %s: %w", fullKey, err)
	}

	if !found {
		return nil, fmt.Errorf("step %s was not journaled", fullKey)
	}

	return recorded, nil
}

// Do runs fn as a step and decodes the journaled result into T. The first execution and
// every replay yield the same decoded value.
func Do[T any](ctx context.Context, runner protocol.StepRunner, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T

	raw, err := runner.Run(ctx, key, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return out, err
	}

	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode step %s result: %w", key, err)
	}

	return out, nil
}
