// Package status reports node lifecycle transitions to subscribers such as the editor UI.
package status

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/nodeflow/nodeflow/pkg/models"
)

// Topic is the only topic each node type channel carries.
const Topic = "status"

// Metadata keys set on every status message.
const (
	ChannelMetadataKey = "channel"
	TopicMetadataKey   = "topic"
	NodeIDMetadataKey  = "node_id"
)

// TransportTopic returns the transport topic for a channel, e.g. "slack-execution.status".
func TransportTopic(channel string) string {
	return channel + "." + Topic
}

// Publisher sends status events over a watermill publisher. Delivery failures are
// logged and dropped.
type Publisher struct {
	publisher message.Publisher
	logger    *slog.Logger
}

func NewPublisher(publisher message.Publisher, logger *slog.Logger) *Publisher {
	return &Publisher{
		publisher: publisher,
		logger:    logger.With("module", "status"),
	}
}

func (p *Publisher) Publish(ctx context.Context, channel string, event models.NodeStatusEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.WarnContext(ctx, "Failed to encode status event", "channel", channel, "node_id", event.NodeID, "error", err)

		return
	}

	msg := message.NewMessage(watermill.NewULID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set(ChannelMetadataKey, channel)
	msg.Metadata.Set(TopicMetadataKey, Topic)
	msg.Metadata.Set(NodeIDMetadataKey, event.NodeID)

	if err := p.publisher.Publish(TransportTopic(channel), msg); err != nil {
		p.logger.WarnContext(ctx, "Failed to publish status event",
			"channel", channel, "node_id", event.NodeID, "status", event.Status, "error", err)
	}
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, string, models.NodeStatusEvent) {}
