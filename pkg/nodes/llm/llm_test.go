package llm

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeflow/nodeflow/pkg/models"
	"github.com/nodeflow/nodeflow/pkg/protocol"
	"github.com/nodeflow/nodeflow/pkg/step"
)

type fakeCredentials struct {
	credentials map[string]*models.Credential
	lookups     atomic.Int32
	reveals     atomic.Int32
}

func newFakeCredentials(creds ...*models.Credential) *fakeCredentials {
	f := &fakeCredentials{credentials: map[string]*models.Credential{}}
	for _, c := range creds {
		f.credentials[c.ID] = c
	}

	return f
}

func (f *fakeCredentials) Lookup(_ context.Context, credentialID, ownerID string) (*models.Credential, error) {
	f.lookups.Add(1)

	c, ok := f.credentials[credentialID]
	if !ok || c.UserID != ownerID {
		return nil, protocol.CredentialNotFound(credentialID)
	}

	return c, nil
}

func (f *fakeCredentials) Reveal(c *models.Credential) (string, error) {
	f.reveals.Add(1)

	return "plain-" + c.Value, nil
}

func newScope(journal step.Journal) *step.Scope {
	runner := step.NewRunner(journal, slog.Default(),
		step.WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }))

	return runner.Scope("run-1").Node("ai")
}

func request(config map[string]any, scope *step.Scope) protocol.Request {
	return protocol.Request{
		NodeID:  "ai",
		RunID:   "run-1",
		OwnerID: "user-1",
		Config:  config,
		Context: models.Context{"order": map[string]any{"id": "o-9"}},
		Step:    scope,
	}
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

	return body
}

func TestOpenAI_Execute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer plain-cipher-openai", r.Header.Get("Authorization"))

		body := decodeBody(t, r)
		assert.Equal(t, "gpt-5", body["model"])
		assert.Equal(t, []any{
			map[string]any{"role": "system", "content": DefaultSystemPrompt},
			map[string]any{"role": "user", "content": "Summarize order o-9"},
		}, body["messages"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Order o-9 shipped"}}]}`))
	}))
	defer server.Close()

	credentials := newFakeCredentials(&models.Credential{ID: "c1", UserID: "user-1", Type: models.CredentialTypeOpenAI, Value: "cipher-openai"})
	executor := NewOpenAI(credentials, WithBaseURL(server.URL))
	defer executor.Close()

	out, err := executor.Execute(context.Background(), request(map[string]any{
		"variableName": "summary",
		"credentialID": "c1",
		"userPrompt":   "Summarize order {{order.id}}",
	}, newScope(step.NewMemoryJournal())))
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"text": "Order o-9 shipped"}, out["summary"])
	assert.Equal(t, map[string]any{"id": "o-9"}, out["order"])
	assert.Equal(t, "openai-execution", executor.Channel())
}

func TestAnthropic_Execute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "plain-cipher-anthropic", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		body := decodeBody(t, r)
		assert.Equal(t, "claude-sonnet-4-5-20250929", body["model"])
		assert.Equal(t, float64(4096), body["max_tokens"])
		assert.Equal(t, "Be terse. Order o-9", body["system"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"ok"},{"type":"text","text":"ignored"}]}`))
	}))
	defer server.Close()

	credentials := newFakeCredentials(&models.Credential{ID: "c1", UserID: "user-1", Type: models.CredentialTypeAnthropic, Value: "cipher-anthropic"})
	executor := NewAnthropic(credentials, WithBaseURL(server.URL))

	out, err := executor.Execute(context.Background(), request(map[string]any{
		"variableName": "claude",
		"credentialID": "c1",
		"systemPrompt": "Be terse. Order {{order.id}}",
		"userPrompt":   "hi",
	}, newScope(step.NewMemoryJournal())))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"text": "ok"}, out["claude"])
}

func TestAnthropic_NonTextFirstBlockYieldsEmptyText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":[{"type":"tool_use"},{"type":"text","text":"late"}]}`))
	}))
	defer server.Close()

	credentials := newFakeCredentials(&models.Credential{ID: "c1", UserID: "user-1", Type: models.CredentialTypeAnthropic, Value: "k"})

	out, err := NewAnthropic(credentials, WithBaseURL(server.URL)).Execute(context.Background(), request(map[string]any{
		"variableName": "claude", "credentialID": "c1", "userPrompt": "hi",
	}, newScope(step.NewMemoryJournal())))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"text": ""}, out["claude"])
}

func TestGemini_Execute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-2.5-pro:generateContent", r.URL.Path)
		assert.Equal(t, "plain-cipher-gemini", r.Header.Get("x-goog-api-key"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"bonjour"}]}}]}`))
	}))
	defer server.Close()

	credentials := newFakeCredentials(&models.Credential{ID: "c1", UserID: "user-1", Type: models.CredentialTypeGemini, Value: "cipher-gemini"})
	executor := NewGemini(credentials, WithBaseURL(server.URL))

	out, err := executor.Execute(context.Background(), request(map[string]any{
		"variableName": "gemini",
		"credentialID": "c1",
		"model":        "gemini-2.5-pro",
		"userPrompt":   "translate hello",
	}, newScope(step.NewMemoryJournal())))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"text": "bonjour"}, out["gemini"])
	assert.Equal(t, "google-gemini-execution", executor.Channel())
}

func TestExecute_ConfigurationErrors(t *testing.T) {
	credentials := newFakeCredentials()
	executor := NewOpenAI(credentials, WithBaseURL("http://127.0.0.1:1"))

	tests := []struct {
		name    string
		config  map[string]any
		message string
	}{
		{
			name:    "variable name",
			config:  map[string]any{"credentialID": "c1", "userPrompt": "x"},
			message: "OpenAI node: Variable name is missing",
		},
		{
			name:    "user prompt",
			config:  map[string]any{"variableName": "v", "credentialID": "c1"},
			message: "OpenAI node: User prompt is missing",
		},
		{
			name:    "credential",
			config:  map[string]any{"variableName": "v", "userPrompt": "x"},
			message: "OpenAI node: Credential is missing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executor.Execute(context.Background(), request(tt.config, newScope(step.NewMemoryJournal())))
			require.Error(t, err)
			assert.ErrorIs(t, err, protocol.ErrConfiguration)
			assert.Equal(t, tt.message, err.Error())
		})
	}

	assert.Equal(t, int32(0), credentials.lookups.Load())
}

func TestExecute_CredentialOwnedByAnotherUser(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { calls.Add(1) }))
	defer server.Close()

	credentials := newFakeCredentials(&models.Credential{ID: "c1", UserID: "someone-else", Type: models.CredentialTypeOpenAI})

	_, err := NewOpenAI(credentials, WithBaseURL(server.URL)).Execute(context.Background(), request(map[string]any{
		"variableName": "v", "credentialID": "c1", "userPrompt": "x",
	}, newScope(step.NewMemoryJournal())))
	require.Error(t, err)
	assert.ErrorIs(t, err, protocol.ErrCredentialNotFound)
	assert.False(t, protocol.IsRetryable(err))
	assert.Equal(t, int32(1), credentials.lookups.Load(), "non-retryable lookups are not retried")
	assert.Equal(t, int32(0), calls.Load())
}

func TestExecute_NoCredentialStore(t *testing.T) {
	_, err := NewAnthropic(nil, WithBaseURL("http://127.0.0.1:1")).Execute(context.Background(), request(map[string]any{
		"variableName": "v", "credentialID": "c1", "userPrompt": "x",
	}, newScope(step.NewMemoryJournal())))
	assert.ErrorIs(t, err, protocol.ErrCredentialNotFound)
}

func TestExecute_CredentialTypeMismatch(t *testing.T) {
	credentials := newFakeCredentials(&models.Credential{ID: "c1", UserID: "user-1", Type: models.CredentialTypeGemini})

	_, err := NewOpenAI(credentials, WithBaseURL("http://127.0.0.1:1")).Execute(context.Background(), request(map[string]any{
		"variableName": "v", "credentialID": "c1", "userPrompt": "x",
	}, newScope(step.NewMemoryJournal())))
	require.Error(t, err)
	assert.ErrorIs(t, err, protocol.ErrConfiguration)
}

func TestExecute_UpstreamErrors(t *testing.T) {
	tests := []struct {
		status    int
		attempts  int32
		retryable bool
	}{
		{status: http.StatusUnauthorized, attempts: 1, retryable: false},
		{status: http.StatusTooManyRequests, attempts: 3, retryable: true},
		{status: http.StatusServiceUnavailable, attempts: 3, retryable: true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var calls atomic.Int32

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			credentials := newFakeCredentials(&models.Credential{ID: "c1", UserID: "user-1", Type: models.CredentialTypeOpenAI})

			_, err := NewOpenAI(credentials, WithBaseURL(server.URL)).Execute(context.Background(), request(map[string]any{
				"variableName": "v", "credentialID": "c1", "userPrompt": "x",
			}, newScope(step.NewMemoryJournal())))
			require.Error(t, err)
			assert.ErrorIs(t, err, protocol.ErrUpstream)
			assert.Equal(t, tt.retryable, protocol.IsRetryable(err))
			assert.Equal(t, tt.attempts, calls.Load())
		})
	}
}

func TestExecute_ReplayJournalsCiphertextOnly(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"once"}}]}`))
	}))
	defer server.Close()

	journal := step.NewMemoryJournal()
	credentials := newFakeCredentials(&models.Credential{ID: "c1", UserID: "user-1", Type: models.CredentialTypeOpenAI, Value: "cipher"})
	executor := NewOpenAI(credentials, WithBaseURL(server.URL))
	config := map[string]any{"variableName": "v", "credentialID": "c1", "userPrompt": "x"}

	for range 2 {
		out, err := executor.Execute(context.Background(), request(config, newScope(journal)))
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"text": "once"}, out["v"])
	}

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int32(1), credentials.lookups.Load())
	assert.Equal(t, int32(2), credentials.reveals.Load())

	raw, found, err := journal.LoadStep(context.Background(), "run-1", "ai/get-credential")
	require.NoError(t, err)
	require.True(t, found)
	assert.Contains(t, string(raw), `"cipher"`)
	assert.NotContains(t, string(raw), "plain-")
}
