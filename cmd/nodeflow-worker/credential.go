package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	cli "github.com/urfave/cli/v3"

	"github.com/nodeflow/nodeflow/pkg/cmd"
	"github.com/nodeflow/nodeflow/pkg/log"
	"github.com/nodeflow/nodeflow/pkg/models"
)

// CredentialWriter seals and stores a credential.
type CredentialWriter interface {
	Put(ctx context.Context, ownerID, name string, credentialType models.CredentialType, value string) (*models.Credential, error)
}

func CredentialCommand() *cli.Command {
	return &cli.Command{
		Name:  "credential",
		Usage: "Manage stored credentials",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Encrypt and store a credential for an owner",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "owner", Usage: "Owning user ID", Required: true},
					&cli.StringFlag{Name: "name", Usage: "Display name", Required: true},
					&cli.StringFlag{Name: "type", Usage: "Credential type (OPENAI, ANTHROPIC, GEMINI)", Required: true},
					&cli.StringFlag{
						Name:    "value",
						Usage:   "Secret value",
						Sources: cli.EnvVars("CREDENTIAL_VALUE"),
					},
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					logger := log.WithModule("nodeflow-worker")

					persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
					if err != nil {
						return err
					}

					defer func() {
						if err := persistence.Close(context.WithoutCancel(ctx)); err != nil {
							logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
						}
					}()

					store, err := cmd.NewCredentialStore(persistence, command.String("encryption-key"))
					if err != nil {
						return err
					}

					return addCredential(ctx, store, command.String("owner"), command.String("name"),
						command.String("type"), command.String("value"), os.Stdout)
				},
			},
		},
	}
}

func addCredential(ctx context.Context, store CredentialWriter, owner, name, credentialType, value string, out io.Writer) error {
	if value == "" {
		return errors.New("credential value is required")
	}

	parsed := models.CredentialType(strings.ToUpper(credentialType))

	switch parsed {
	case models.CredentialTypeOpenAI, models.CredentialTypeAnthropic, models.CredentialTypeGemini:
	default:
		return fmt.Errorf("unsupported credential type %q", credentialType)
	}

	credential, err := store.Put(ctx, owner, name, parsed, value)
	if err != nil {
		return err
	}

	color.New(color.FgGreen).Fprintf(out, "Stored %s credential %q\n", credential.Type, credential.Name)
	fmt.Fprintln(out, credential.ID)

	return nil
}
