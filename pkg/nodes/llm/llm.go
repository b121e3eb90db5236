// Package llm provides the executors for the OpenAI, Anthropic and Gemini nodes. The
// three share one flow and differ only in how the provider API is called.
package llm

import (
	"context"
	"fmt"

	"resty.dev/v3"

	"github.com/nodeflow/nodeflow/pkg/models"
	"github.com/nodeflow/nodeflow/pkg/nodes/nodeconfig"
	"github.com/nodeflow/nodeflow/pkg/nodes/webclient"
	"github.com/nodeflow/nodeflow/pkg/protocol"
	"github.com/nodeflow/nodeflow/pkg/step"
	"github.com/nodeflow/nodeflow/pkg/template"
)

const DefaultSystemPrompt = "You are a helpful assistant."

// Credentials finds a run owner's stored credential and decrypts it.
type Credentials interface {
	Lookup(ctx context.Context, credentialID, ownerID string) (*models.Credential, error)
	Reveal(credential *models.Credential) (string, error)
}

// Config defines the configuration shared by every LLM node.
type Config struct {
	VariableName string `json:"variableName" label:"Variable name" validate:"required,varname"`
	UserPrompt   string `json:"userPrompt"   label:"User prompt"   validate:"required"`
	CredentialID string `json:"credentialID" label:"Credential"    validate:"required"`
	SystemPrompt string `json:"systemPrompt"`
	Model        string `json:"model"`
}

// Prompt is one rendered generation request.
type Prompt struct {
	Model  string
	System string
	User   string
}

type provider struct {
	name           string // step key prefix
	label          string // human name used in messages
	channel        string
	defaultModel   string
	models         []string
	credentialType models.CredentialType
	baseURL        string
	generate       func(ctx context.Context, client *resty.Client, baseURL, apiKey string, prompt Prompt) (string, error)
}

// Executor runs one provider's text generation.
type Executor struct {
	provider    provider
	credentials Credentials
	client      *resty.Client
}

type Option func(*Executor)

// WithBaseURL points the executor at a different API host, e.g. a test server or proxy.
func WithBaseURL(url string) Option {
	return func(e *Executor) {
		e.provider.baseURL = url
	}
}

// WithClient replaces the HTTP client.
func WithClient(client *resty.Client) Option {
	return func(e *Executor) {
		e.client = client
	}
}

func newExecutor(p provider, credentials Credentials, opts ...Option) *Executor {
	e := &Executor{provider: p, credentials: credentials}

	for _, opt := range opts {
		opt(e)
	}

	if e.client == nil {
		e.client = webclient.New(webclient.DefaultTimeout)
	}

	return e
}

func (e *Executor) Channel() string {
	return e.provider.channel
}

// Close releases the HTTP client.
func (e *Executor) Close() error {
	return e.client.Close()
}

func (e *Executor) Execute(ctx context.Context, req protocol.Request) (models.Context, error) {
	var cfg Config
	if err := nodeconfig.Decode(e.provider.label, req.Config, &cfg); err != nil {
		return nil, err
	}

	if e.credentials == nil {
		return nil, protocol.CredentialNotFound(cfg.CredentialID)
	}

	// Only ciphertext is journaled; the plain key is recovered on every attempt.
	credential, err := step.Do(ctx, req.Step, "get-credential", func(ctx context.Context) (*models.Credential, error) {
		return e.credentials.Lookup(ctx, cfg.CredentialID, req.OwnerID)
	})
	if err != nil {
		return nil, err
	}

	if credential.Type != "" && credential.Type != e.provider.credentialType {
		return nil, protocol.Configuration("%s node: credential %q is a %s credential", e.provider.label, credential.ID, credential.Type)
	}

	apiKey, err := e.credentials.Reveal(credential)
	if err != nil {
		return nil, err
	}

	prompt, err := e.render(cfg, req.Context)
	if err != nil {
		return nil, err
	}

	text, err := step.Do(ctx, req.Step, e.provider.name+"-generate-text", func(ctx context.Context) (string, error) {
		return e.provider.generate(ctx, e.client, e.provider.baseURL, apiKey, prompt)
	})
	if err != nil {
		return nil, err
	}

	return protocol.WithOutput(req.Context, cfg.VariableName, map[string]any{
		"text": text,
	}), nil
}

func (e *Executor) render(cfg Config, data models.Context) (Prompt, error) {
	prompt := Prompt{Model: cfg.Model, System: DefaultSystemPrompt}
	if prompt.Model == "" {
		prompt.Model = e.provider.defaultModel
	}

	var err error

	if cfg.SystemPrompt != "" {
		prompt.System, err = template.Render(cfg.SystemPrompt, data)
		if err != nil {
			return Prompt{}, protocol.Configuration("%s node: system prompt: %v", e.provider.label, err)
		}
	}

	prompt.User, err = template.Render(cfg.UserPrompt, data)
	if err != nil {
		return Prompt{}, protocol.Configuration("%s node: user prompt: %v", e.provider.label, err)
	}

	return prompt, nil
}

func (e *Executor) Schema() map[string]any {
	return map[string]any{
		"type":        "object",
		"description": fmt.Sprintf("Generates text with %s", e.provider.label),
		"properties": map[string]any{
			"variableName": map[string]any{
				"type":        "string",
				"description": "Name under which {text} is stored in the run context",
				"pattern":     `^[A-Za-z_$][A-Za-z0-9_$]*$`,
			},
			"credentialID": map[string]any{
				"type":        "string",
				"description": fmt.Sprintf("ID of a stored %s credential owned by the workflow owner", e.provider.credentialType),
			},
			"model": map[string]any{
				"type":     "string",
				"default":  e.provider.defaultModel,
				"examples": e.provider.models,
			},
			"systemPrompt": map[string]any{
				"type":        "string",
				"description": "System prompt. Supports templating",
				"default":     DefaultSystemPrompt,
			},
			"userPrompt": map[string]any{
				"type":        "string",
				"description": "User prompt. Supports templating, e.g. Summarize {{JSON httpResponse.data}}",
			},
		},
		"required": []string{"variableName", "credentialID", "userPrompt"},
	}
}
