package llm

import (
	"context"
	"net/url"

	"resty.dev/v3"

	"github.com/nodeflow/nodeflow/pkg/models"
	"github.com/nodeflow/nodeflow/pkg/nodes/webclient"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com"

// NewGemini returns the GOOGLE_GEMINI node executor backed by generateContent.
func NewGemini(credentials Credentials, opts ...Option) *Executor {
	return newExecutor(provider{
		name:           "gemini",
		label:          "Gemini",
		channel:        "google-gemini-execution",
		defaultModel:   "gemini-2.5-flash-lite",
		models:         []string{"gemini-2.5-flash-lite", "gemini-2.5-flash", "gemini-2.5-pro"},
		credentialType: models.CredentialTypeGemini,
		baseURL:        geminiBaseURL,
		generate:       geminiGenerate,
	}, credentials, opts...)
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func geminiGenerate(ctx context.Context, client *resty.Client, baseURL, apiKey string, prompt Prompt) (string, error) {
	var out geminiResponse

	resp, err := client.R().
		SetContext(ctx).
		SetHeader("x-goog-api-key", apiKey).
		SetBody(geminiRequest{
			SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: prompt.System}}},
			Contents:          []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt.User}}}},
		}).
		SetResult(&out).
		Post(baseURL + "/v1beta/models/" + url.PathEscape(prompt.Model) + ":generateContent")
	if err := webclient.Check(resp, err); err != nil {
		return "", err
	}

	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}

	return out.Candidates[0].Content.Parts[0].Text, nil
}
