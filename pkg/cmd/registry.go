// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nodeflow/nodeflow/pkg/persistence"
	"github.com/nodeflow/nodeflow/pkg/registry"
	"github.com/nodeflow/nodeflow/pkg/secrets"
	"github.com/nodeflow/nodeflow/pkg/step"
)

// DefaultStepJournalTTL bounds how long redis keeps a run's step results.
const DefaultStepJournalTTL = 7 * 24 * time.Hour

// NewCredentialStore opens the credential vault with encryptionKey.
func NewCredentialStore(p persistence.Persistence, encryptionKey string) (*secrets.Store, error) {
	vault, err := secrets.NewVaultFromKey(encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential vault: %w", err)
	}

	return secrets.NewStore(p.CredentialRepository(), vault), nil
}

// NewRegistry builds the registry of built-in executors. Credentials may be nil for
// processes that only describe or validate nodes.
func NewRegistry(logger *slog.Logger, credentials *secrets.Store) (*registry.Registry, error) {
	deps := registry.Dependencies{}
	if credentials != nil {
		deps.Credentials = credentials
	}

	return registry.NewDefault(logger, deps)
}

// NewStepJournal returns a redis journal when journalURL is set, otherwise the
// journal kept next to the execution records. The returned func releases it.
func NewStepJournal(ctx context.Context, p persistence.Persistence, journalURL string) (step.Journal, func() error, error) {
	if journalURL == "" {
		return p.StepRepository(), func() error { return nil }, nil
	}

	journal, err := step.DialRedisJournal(ctx, journalURL, DefaultStepJournalTTL)
	if err != nil {
		return nil, nil, err
	}

	return journal, journal.Close, nil
}

// NewStepRunner builds the durable step runner with the given attempt budget.
func NewStepRunner(journal step.Journal, logger *slog.Logger, attempts int) *step.Runner {
	return step.NewRunner(journal, logger,
		step.WithMaxAttempts(attempts),
		step.WithBackOff(func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 10 * time.Second

			return b
		}),
	)
}
