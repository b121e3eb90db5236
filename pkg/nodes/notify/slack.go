package notify

type slackPayload struct {
	Content string `json:"content"`
}

// NewSlack returns the SLACK node executor. It targets workflow builder webhooks,
// which take a content variable, and sends the content untruncated.
func NewSlack(opts ...Option) *Executor {
	return newExecutor(platform{
		name:  "slack",
		label: "Slack",
		payload: func(msg Message) any {
			return slackPayload{Content: msg.Content}
		},
		schema: webhookSchema("Slack", nil),
	}, opts...)
}
