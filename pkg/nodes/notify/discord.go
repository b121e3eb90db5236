package notify

// DiscordMaxContent is the longest message Discord accepts, in characters.
const DiscordMaxContent = 2000

type discordPayload struct {
	Content  string `json:"content"`
	Username string `json:"username,omitempty"`
}

// NewDiscord returns the DISCORD node executor.
func NewDiscord(opts ...Option) *Executor {
	return newExecutor(platform{
		name:  "discord",
		label: "Discord",
		payload: func(msg Message) any {
			return discordPayload{Content: msg.Content, Username: msg.Username}
		},
		prepare: func(msg Message) Message {
			msg.Content = truncateRunes(msg.Content, DiscordMaxContent)

			return msg
		},
		schema: webhookSchema("Discord", map[string]any{
			"username": map[string]any{
				"type":        "string",
				"description": "Overrides the webhook's display name. Supports templating",
			},
		}),
	}, opts...)
}

func truncateRunes(s string, limit int) string {
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}

	return s
}
