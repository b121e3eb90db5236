package registry

import (
	"log/slog"
	"net/http"

	"resty.dev/v3"

	"github.com/nodeflow/nodeflow/pkg/models"
	"github.com/nodeflow/nodeflow/pkg/nodes/httprequest"
	"github.com/nodeflow/nodeflow/pkg/nodes/llm"
	"github.com/nodeflow/nodeflow/pkg/nodes/notify"
	"github.com/nodeflow/nodeflow/pkg/nodes/trigger"
)

// Dependencies are the collaborators the built-in executors need.
type Dependencies struct {
	Credentials llm.Credentials

	// Optional. Defaults are used when nil.
	HTTPClient *http.Client
	APIClient  *resty.Client

	// Optional provider API hosts, mainly for tests and proxies.
	OpenAIBaseURL    string
	AnthropicBaseURL string
	GeminiBaseURL    string
}

// NewDefault returns a registry holding every built-in executor. It fails when a
// declared node type has none.
func NewDefault(logger *slog.Logger, deps Dependencies) (*Registry, error) {
	r := New(logger)

	manual := trigger.NewManual()
	r.Register(models.NodeTypeInitial, manual)
	r.Register(models.NodeTypeManualTrigger, manual)
	r.Register(models.NodeTypeGoogleFormTrigger, trigger.NewGoogleForm())
	r.Register(models.NodeTypePaymentTrigger, trigger.NewStripe())
	r.Register(models.NodeTypePayPalTrigger, trigger.NewPayPal())

	var httpOpts []httprequest.Option
	if deps.HTTPClient != nil {
		httpOpts = append(httpOpts, httprequest.WithClient(deps.HTTPClient))
	}

	r.Register(models.NodeTypeHTTPRequest, httprequest.NewExecutor(httpOpts...))

	r.Register(models.NodeTypeOpenAI, llm.NewOpenAI(deps.Credentials, llmOptions(deps, deps.OpenAIBaseURL)...))
	r.Register(models.NodeTypeAnthropic, llm.NewAnthropic(deps.Credentials, llmOptions(deps, deps.AnthropicBaseURL)...))
	r.Register(models.NodeTypeGemini, llm.NewGemini(deps.Credentials, llmOptions(deps, deps.GeminiBaseURL)...))

	var notifyOpts []notify.Option
	if deps.APIClient != nil {
		notifyOpts = append(notifyOpts, notify.WithClient(deps.APIClient))
	}

	r.Register(models.NodeTypeDiscord, notify.NewDiscord(notifyOpts...))
	r.Register(models.NodeTypeSlack, notify.NewSlack(notifyOpts...))

	if err := r.Complete(); err != nil {
		return nil, err
	}

	return r, nil
}

func llmOptions(deps Dependencies, baseURL string) []llm.Option {
	var opts []llm.Option

	if deps.APIClient != nil {
		opts = append(opts, llm.WithClient(deps.APIClient))
	}

	if baseURL != "" {
		opts = append(opts, llm.WithBaseURL(baseURL))
	}

	return opts
}
