package file

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/nodeflow/nodeflow/pkg/models"
	"github.com/nodeflow/nodeflow/pkg/persistence"
)

type CredentialRepository struct {
	root string
}

func NewCredentialRepository(root string) *CredentialRepository {
	return &CredentialRepository{root: root}
}

func (cr *CredentialRepository) GetByID(_ context.Context, id string) (*models.Credential, error) {
	if err := validateID("credential", id); err != nil {
		return nil, fmt.Errorf("%w: %w", persistence.ErrCredentialNotFound, err)
	}

	var credential models.Credential

	found, err := readJSON(cr.path(id), &credential)
	if err != nil {
		return nil, fmt.Errorf("failed to read credential %s: %w", id, err)
	}

	if !found {
		return nil, fmt.Errorf("credential %s: %w", id, persistence.ErrCredentialNotFound)
	}

	return &credential, nil
}

func (cr *CredentialRepository) Save(_ context.Context, credential *models.Credential) error {
	if credential.ID == "" {
		credential.ID = uuid.NewString()
	}

	if err := validateID("credential", credential.ID); err != nil {
		return err
	}

	if credential.CreatedAt.IsZero() {
		credential.CreatedAt = time.Now().UTC()
	}

	if err := writeJSON(cr.path(credential.ID), credential); err != nil {
		return fmt.Errorf("failed to write credential %s: %w", credential.ID, err)
	}

	return nil
}

func (cr *CredentialRepository) path(id string) string {
	return filepath.Join(cr.root, "credentials", id+".json")
}
