package models

import "time"

// CredentialType names the provider a credential authenticates against.
type CredentialType string

const (
	CredentialTypeOpenAI    CredentialType = "OPENAI"
	CredentialTypeAnthropic CredentialType = "ANTHROPIC"
	CredentialTypeGemini    CredentialType = "GEMINI"
)

// Credential is a stored secret. Value holds ciphertext, never the plain secret.
type Credential struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Type      CredentialType `json:"type"`
	Value     string         `json:"value"`
	UserID    string         `json:"user_id"`
	CreatedAt time.Time      `json:"created_at"`
}
