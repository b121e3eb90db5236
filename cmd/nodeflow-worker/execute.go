package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	cli "github.com/urfave/cli/v3"

	"github.com/nodeflow/nodeflow/pkg/cmd"
	"github.com/nodeflow/nodeflow/pkg/engine"
	"github.com/nodeflow/nodeflow/pkg/log"
	"github.com/nodeflow/nodeflow/pkg/models"
	"github.com/nodeflow/nodeflow/pkg/status"
	"github.com/nodeflow/nodeflow/pkg/trigger"
)

var errRunFailed = errors.New("run failed")

// Runner executes one run to a terminal state.
type Runner interface {
	Run(ctx context.Context, req engine.RunRequest) (*models.Execution, error)
}

func ExecuteCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:     "workflow-id",
			Aliases:  []string{"w"},
			Usage:    "Workflow to execute",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "context",
			Usage: "Initial context as a JSON object",
			Value: "{}",
		},
	}

	return &cli.Command{
		Name:    "execute",
		Aliases: []string{"x"},
		Usage:   "Execute one workflow in this process and print the result",
		Flags:   append(flags, engineFlags()...),
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := log.WithModule("nodeflow-worker")

			var initialContext models.Context
			if err := json.Unmarshal([]byte(command.String("context")), &initialContext); err != nil {
				return fmt.Errorf("invalid --context: %w", err)
			}

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(context.WithoutCancel(ctx)); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			recorder := status.NewRecorder()
			recorder.OnPublish = printStatus(os.Stdout)

			coordinator, closeJournal, err := cmd.NewCoordinator(ctx, logger, persistence, recorder,
				cmd.EngineConfig{
					EncryptionKey:  command.String("encryption-key"),
					StepJournalURL: command.String("step-journal-url"),
					StepAttempts:   command.Int("step-attempts"),
					RunRetries:     runRetries(command),
				})
			if err != nil {
				return err
			}

			defer func() { _ = closeJournal() }()

			_, err = executeWorkflow(ctx, coordinator, command.String("workflow-id"), initialContext, os.Stdout)

			return err
		},
	}
}

// executeWorkflow runs workflowID and prints the outcome to out.
func executeWorkflow(ctx context.Context, runner Runner, workflowID string, initialContext models.Context, out io.Writer) (*models.Execution, error) {
	runID, err := trigger.NewRunID()
	if err != nil {
		return nil, err
	}

	color.New(color.FgGreen).Fprintf(out, "Starting execution (ID: %s)...\n", runID)

	started := time.Now()

	execution, runErr := runner.Run(ctx, engine.RunRequest{
		RunID:          runID,
		WorkflowID:     workflowID,
		InitialContext: initialContext,
	})
	if execution == nil {
		color.New(color.FgRed).Fprintf(out, "Error: %v\n", runErr)

		return nil, runErr
	}

	color.New(color.FgWhite).Fprintf(out, "Execution completed in %v\n", time.Since(started).Round(time.Millisecond))
	color.New(color.FgWhite).Fprintf(out, "Status: %s\n", execution.Status)

	if execution.Status != models.ExecutionStatusSuccess {
		color.New(color.FgRed).Fprintf(out, "Error: %s\n", execution.Error)

		return execution, fmt.Errorf("%w: %s", errRunFailed, execution.Error)
	}

	color.New(color.FgGreen).Fprintln(out, "Execution successful!")

	output, err := json.MarshalIndent(execution.Output, "", "  ")
	if err != nil {
		return execution, err
	}

	color.New(color.FgMagenta).Fprintln(out, "Outputs:")
	fmt.Fprintln(out, string(output))

	return execution, nil
}

// printStatus renders node status events as they are published.
func printStatus(out io.Writer) func(status.Published) {
	return func(published status.Published) {
		c := color.New(color.FgCyan)

		switch published.Event.Status {
		case models.NodeStatusSuccess:
			c = color.New(color.FgGreen)
		case models.NodeStatusError:
			c = color.New(color.FgRed)
		}

		c.Fprintf(out, "  %-10s %s (%s)\n", published.Event.Status, published.Event.NodeID, published.Channel)
	}
}
