// Package httprequest provides the HTTP_REQUEST node executor.
package httprequest

import (
	"net/http"
	"time"
)

const (
	defaultTimeout = 30 * time.Second
	channel        = "http-request-execution"
)

// Executor issues one HTTP request per node invocation.
type Executor struct {
	client *http.Client
}

type Option func(*Executor)

// WithClient replaces the HTTP client, e.g. to route through a proxy in tests.
func WithClient(client *http.Client) Option {
	return func(e *Executor) {
		e.client = client
	}
}

// NewExecutor creates a new HTTP request executor.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{client: &http.Client{}}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Channel returns the status channel.
func (e *Executor) Channel() string {
	return channel
}

// Schema returns the JSON schema for HTTP request node configuration.
func (e *Executor) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"endpoint": map[string]any{
				"type":        "string",
				"description": "URL to request. Supports templating with {{path.to.value}}",
				"examples": []string{
					"https://api.example.com/users",
					"https://api.example.com/users/{{googleForm.responses.userId}}",
				},
			},
			"method": map[string]any{
				"type":        "string",
				"description": "HTTP method",
				"default":     "GET",
				"enum":        []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
			},
			"body": map[string]any{
				"type":        "string",
				"description": "JSON request body for POST, PUT and PATCH. Supports templating; {{JSON path}} embeds a value as JSON",
				"examples": []string{
					`{"email": "{{googleForm.respondentEmail}}"}`,
					`{{JSON stripe.raw}}`,
				},
			},
			"variableName": map[string]any{
				"type":        "string",
				"description": "Name under which the response is stored in the run context",
				"pattern":     `^[A-Za-z_$][A-Za-z0-9_$]*$`,
				"examples":    []string{"myApiCall"},
			},
			"timeout": map[string]any{
				"type":        "number",
				"description": "Request timeout in seconds",
				"default":     30,
				"minimum":     1,
				"maximum":     300,
			},
		},
		"required": []string{"endpoint", "variableName"},
		"examples": []map[string]any{
			{
				"endpoint":     "https://api.github.com/users/{{googleForm.responses.github}}",
				"method":       "GET",
				"variableName": "githubUser",
			},
			{
				"endpoint":     "https://hooks.example.com/orders",
				"method":       "POST",
				"body":         `{"order": {{JSON stripe.raw}}}`,
				"variableName": "orderHook",
			},
		},
	}
}
