package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nodeflow/nodeflow/pkg/models"
	"github.com/nodeflow/nodeflow/pkg/persistence"
)

type CredentialRepository struct {
	db *sql.DB
}

func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

func (r *CredentialRepository) GetByID(ctx context.Context, id string) (*models.Credential, error) {
	var credential models.Credential

	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, type, value, user_id, created_at FROM credentials WHERE id = $1`, id,
	).Scan(&credential.ID, &credential.Name, &credential.Type, &credential.Value, &credential.UserID, &credential.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("credential %s: %w", id, persistence.ErrCredentialNotFound)
		}

		return nil, fmt.Errorf("failed to get credential %s: %w", id, err)
	}

	return &credential, nil
}

func (r *CredentialRepository) Save(ctx context.Context, credential *models.Credential) error {
	if credential.ID == "" {
		credential.ID = uuid.NewString()
	}

	if credential.CreatedAt.IsZero() {
		credential.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO credentials (id, name, type, value, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			value = EXCLUDED.value`,
		credential.ID, credential.Name, credential.Type, credential.Value, credential.UserID, credential.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save credential %s: %w", credential.ID, err)
	}

	return nil
}
