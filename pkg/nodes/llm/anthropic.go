package llm

import (
	"context"

	"resty.dev/v3"

	"github.com/nodeflow/nodeflow/pkg/models"
	"github.com/nodeflow/nodeflow/pkg/nodes/webclient"
)

const (
	anthropicBaseURL   = "https://api.anthropic.com"
	anthropicVersion   = "2023-06-01"
	anthropicMaxTokens = 4096
)

// NewAnthropic returns the ANTHROPIC node executor backed by the messages API.
func NewAnthropic(credentials Credentials, opts ...Option) *Executor {
	return newExecutor(provider{
		name:         "anthropic",
		label:        "Anthropic",
		channel:      "anthropic-execution",
		defaultModel: "claude-sonnet-4-5-20250929",
		models: []string{
			"claude-sonnet-4-5-20250929",
			"claude-opus-4-1-20250805",
			"claude-3-5-haiku-20241022",
		},
		credentialType: models.CredentialTypeAnthropic,
		baseURL:        anthropicBaseURL,
		generate:       anthropicGenerate,
	}, credentials, opts...)
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func anthropicGenerate(ctx context.Context, client *resty.Client, baseURL, apiKey string, prompt Prompt) (string, error) {
	var out anthropicResponse

	resp, err := client.R().
		SetContext(ctx).
		SetHeader("x-api-key", apiKey).
		SetHeader("anthropic-version", anthropicVersion).
		SetBody(anthropicRequest{
			Model:     prompt.Model,
			MaxTokens: anthropicMaxTokens,
			System:    prompt.System,
			Messages:  []anthropicMessage{{Role: "user", Content: prompt.User}},
		}).
		SetResult(&out).
		Post(baseURL + "/v1/messages")
	if err := webclient.Check(resp, err); err != nil {
		return "", err
	}

	// only the first block counts, and only when it is text
	if len(out.Content) == 0 || out.Content[0].Type != "text" {
		return "", nil
	}

	return out.Content[0].Text, nil
}
