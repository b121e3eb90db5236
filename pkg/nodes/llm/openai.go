package llm

import (
	"context"

	"resty.dev/v3"

	"github.com/nodeflow/nodeflow/pkg/models"
	"github.com/nodeflow/nodeflow/pkg/nodes/webclient"
)

const openAIBaseURL = "https://api.openai.com"

// NewOpenAI returns the OPENAI node executor backed by the chat completions API.
func NewOpenAI(credentials Credentials, opts ...Option) *Executor {
	return newExecutor(provider{
		name:           "openai",
		label:          "OpenAI",
		channel:        "openai-execution",
		defaultModel:   "gpt-5",
		models:         []string{"gpt-5", "gpt-5-mini", "gpt-4.1", "gpt-4o", "gpt-4o-mini"},
		credentialType: models.CredentialTypeOpenAI,
		baseURL:        openAIBaseURL,
		generate:       openAIGenerate,
	}, credentials, opts...)
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model    string          `json:"model"`
	Messages []openAIMessage `json:"messages"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
}

func openAIGenerate(ctx context.Context, client *resty.Client, baseURL, apiKey string, prompt Prompt) (string, error) {
	var out openAIResponse

	resp, err := client.R().
		SetContext(ctx).
		SetAuthToken(apiKey).
		SetBody(openAIRequest{
			Model: prompt.Model,
			Messages: []openAIMessage{
				{Role: "system", Content: prompt.System},
				{Role: "user", Content: prompt.User},
			},
		}).
		SetResult(&out).
		Post(baseURL + "/v1/chat/completions")
	if err := webclient.Check(resp, err); err != nil {
		return "", err
	}

	if len(out.Choices) == 0 {
		return "", nil
	}

	return out.Choices[0].Message.Content, nil
}
