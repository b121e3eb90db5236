// Package notify provides the Discord and Slack node executors, which post a rendered
// message to an incoming webhook.
package notify

import (
	"context"
	"fmt"
	"html"

	"resty.dev/v3"

	"github.com/nodeflow/nodeflow/pkg/models"
	"github.com/nodeflow/nodeflow/pkg/nodes/nodeconfig"
	"github.com/nodeflow/nodeflow/pkg/nodes/webclient"
	"github.com/nodeflow/nodeflow/pkg/protocol"
	"github.com/nodeflow/nodeflow/pkg/step"
	"github.com/nodeflow/nodeflow/pkg/template"
)

// Config defines the configuration of chat webhook nodes. Username is Discord only.
type Config struct {
	VariableName string `json:"variableName" label:"Variable name" validate:"required,varname"`
	WebhookURL   string `json:"webhookURL"   label:"Webhook URL"   validate:"required"`
	Content      string `json:"content"      label:"Message content" validate:"required"`
	Username     string `json:"username"`
}

// Message is the rendered content about to be posted.
type Message struct {
	Content  string
	Username string
}

type platform struct {
	name    string
	label   string
	payload func(Message) any
	prepare func(Message) Message
	schema  map[string]any
}

// Executor posts to one chat platform.
type Executor struct {
	platform platform
	client   *resty.Client
}

type Option func(*Executor)

func WithClient(client *resty.Client) Option {
	return func(e *Executor) {
		e.client = client
	}
}

func newExecutor(p platform, opts ...Option) *Executor {
	e := &Executor{platform: p}

	for _, opt := range opts {
		opt(e)
	}

	if e.client == nil {
		e.client = webclient.New(webclient.DefaultTimeout)
	}

	return e
}

func (e *Executor) Channel() string {
	return e.platform.name + "-execution"
}

func (e *Executor) Schema() map[string]any {
	return e.platform.schema
}

func (e *Executor) Close() error {
	return e.client.Close()
}

func (e *Executor) Execute(ctx context.Context, req protocol.Request) (models.Context, error) {
	var cfg Config
	if err := nodeconfig.Decode(e.platform.label, req.Config, &cfg); err != nil {
		return nil, err
	}

	msg, err := e.render(cfg, req.Context)
	if err != nil {
		return nil, err
	}

	if e.platform.prepare != nil {
		msg = e.platform.prepare(msg)
	}

	sent, err := step.Do(ctx, req.Step, e.platform.name+"-webhook", func(ctx context.Context) (string, error) {
		resp, err := e.client.R().
			SetContext(ctx).
			SetBody(e.platform.payload(msg)).
			Post(cfg.WebhookURL)
		if err := webclient.Check(resp, err); err != nil {
			return "", err
		}

		return msg.Content, nil
	})
	if err != nil {
		return nil, err
	}

	return protocol.WithOutput(req.Context, cfg.VariableName, map[string]any{
		"messageContent": sent,
	}), nil
}

// render expands templates and undoes HTML entity escaping so values such as "&amp;"
// arrive in the chat as typed.
func (e *Executor) render(cfg Config, data models.Context) (Message, error) {
	content, err := template.Render(cfg.Content, data)
	if err != nil {
		return Message{}, protocol.Configuration("%s node: content: %v", e.platform.label, err)
	}

	msg := Message{Content: html.UnescapeString(content)}

	if cfg.Username != "" {
		username, err := template.Render(cfg.Username, data)
		if err != nil {
			return Message{}, protocol.Configuration("%s node: username: %v", e.platform.label, err)
		}

		msg.Username = html.UnescapeString(username)
	}

	return msg, nil
}

func webhookSchema(label string, extra map[string]any) map[string]any {
	properties := map[string]any{
		"variableName": map[string]any{
			"type":        "string",
			"description": "Name under which {messageContent} is stored in the run context",
			"pattern":     `^[A-Za-z_$][A-Za-z0-9_$]*$`,
		},
		"webhookURL": map[string]any{
			"type":        "string",
			"description": fmt.Sprintf("%s incoming webhook URL", label),
		},
		"content": map[string]any{
			"type":        "string",
			"description": "Message content. Supports templating, e.g. New order {{stripe.eventId}}",
		},
	}

	for k, v := range extra {
		properties[k] = v
	}

	return map[string]any{
		"type":        "object",
		"description": fmt.Sprintf("Posts a message to a %s webhook", label),
		"properties":  properties,
		"required":    []string{"variableName", "webhookURL", "content"},
	}
}
