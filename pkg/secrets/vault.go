// Package secrets encrypts credentials at rest and resolves them for node executors.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/pbkdf2"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
)

const keySize = 32

// VaultConfig configures the key derivation. Provide either MasterKey or Passphrase + Salt.
type VaultConfig struct {
	MasterKey  []byte // raw 32-byte key (takes priority)
	Passphrase string // derive key via PBKDF2
	Salt       []byte // salt for PBKDF2 (required with Passphrase)
	Iterations int    // PBKDF2 iterations (default 100_000)
}

// Vault seals values with AES-256-GCM. Ciphertexts are base64 encoded with the nonce prepended.
type Vault struct {
	aead cipher.AEAD
}

func NewVault(cfg VaultConfig) (*Vault, error) {
	key, err := deriveKey(cfg)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}

	return &Vault{aead: aead}, nil
}

// NewVaultFromKey accepts a base64 encoded 32-byte key, or any other string as a passphrase.
func NewVaultFromKey(encryptionKey string) (*Vault, error) {
	if encryptionKey == "" {
		return nil, errors.New("encryption key is required")
	}

	if raw, err := base64.StdEncoding.DecodeString(encryptionKey); err == nil && len(raw) == keySize {
		return NewVault(VaultConfig{MasterKey: raw})
	}

	return NewVault(VaultConfig{Passphrase: encryptionKey, Salt: []byte("nodeflow-credentials")})
}

func deriveKey(cfg VaultConfig) ([]byte, error) {
	if len(cfg.MasterKey) > 0 {
		if len(cfg.MasterKey) != keySize {
			return nil, fmt.Errorf("master key must be %d bytes, got %d", keySize, len(cfg.MasterKey))
		}

		return cfg.MasterKey, nil
	}

	if cfg.Passphrase == "" {
		return nil, errors.New("either master key or passphrase is required")
	}

	if len(cfg.Salt) == 0 {
		return nil, errors.New("salt is required with passphrase")
	}

	iterations := cfg.Iterations
	if iterations <= 0 {
		iterations = 100_000
	}

	return pbkdf2.Key(sha256.New, cfg.Passphrase, cfg.Salt, iterations, keySize)
}

func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)

	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (v *Vault) Decrypt(ciphertext string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	nonceSize := v.aead.NonceSize()
	if len(sealed) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	plaintext, err := v.aead.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("decrypt failed: %w", err)
	}

	return string(plaintext), nil
}
