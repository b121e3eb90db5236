package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/nodeflow/nodeflow/pkg/models"
	"github.com/nodeflow/nodeflow/pkg/persistence"
	"github.com/nodeflow/nodeflow/pkg/protocol"
)

// Store resolves credentials on behalf of a workflow owner.
type Store struct {
	credentials persistence.CredentialRepository
	vault       *Vault
}

func NewStore(credentials persistence.CredentialRepository, vault *Vault) *Store {
	return &Store{credentials: credentials, vault: vault}
}

// Lookup returns the sealed credential when it exists and belongs to ownerID. A credential
// owned by someone else is reported exactly like a missing one.
func (s *Store) Lookup(ctx context.Context, credentialID, ownerID string) (*models.Credential, error) {
	if credentialID == "" {
		return nil, protocol.CredentialNotFound(credentialID)
	}

	credential, err := s.credentials.GetByID(ctx, credentialID)
	if err != nil {
		if errors.Is(err, persistence.ErrCredentialNotFound) {
			return nil, protocol.CredentialNotFound(credentialID)
		}

		return nil, fmt.Errorf("failed to load credential %s: %w", credentialID, err)
	}

	if credential.UserID != ownerID {
		return nil, protocol.CredentialNotFound(credentialID)
	}

	return credential, nil
}

// Reveal decrypts a credential returned by Lookup.
func (s *Store) Reveal(credential *models.Credential) (string, error) {
	plaintext, err := s.vault.Decrypt(credential.Value)
	if err != nil {
		return "", protocol.Configuration("credential %s cannot be decrypted: %v", credential.ID, err)
	}

	return plaintext, nil
}

// Resolve returns the plain secret value of a credential owned by ownerID.
func (s *Store) Resolve(ctx context.Context, credentialID, ownerID string) (string, error) {
	credential, err := s.Lookup(ctx, credentialID, ownerID)
	if err != nil {
		return "", err
	}

	return s.Reveal(credential)
}

// Put seals value and stores it as a credential of ownerID.
func (s *Store) Put(ctx context.Context, ownerID, name string, credentialType models.CredentialType, value string) (*models.Credential, error) {
	sealed, err := s.vault.Encrypt(value)
	if err != nil {
		return nil, err
	}

	credential := &models.Credential{
		Name:   name,
		Type:   credentialType,
		Value:  sealed,
		UserID: ownerID,
	}

	if err := s.credentials.Save(ctx, credential); err != nil {
		return nil, err
	}

	return credential, nil
}
