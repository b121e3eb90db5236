package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/nodeflow/nodeflow/pkg/channels/gochannel"
	"github.com/nodeflow/nodeflow/pkg/channels/kafka"
	"github.com/nodeflow/nodeflow/pkg/eventbus"
)

// Event bus providers.
const (
	EventBusKafka     = "kafka"
	EventBusGoChannel = "gochannel"
)

// Transport is a watermill publisher and subscriber pair for one provider.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// NewTransport connects to the provider. serviceName names the Kafka consumer group.
func NewTransport(provider, serviceName string, brokers []string, logger *slog.Logger) (*Transport, error) {
	adapter := watermill.NewSlogLogger(logger)

	switch provider {
	case EventBusKafka:
		pub, sub, err := kafka.CreateChannel(adapter, serviceName, brokers)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return &Transport{Publisher: pub, Subscriber: sub}, nil
	case EventBusGoChannel, "":
		pub, sub, err := gochannel.CreateChannel(adapter)
		if err != nil {
			return nil, err
		}

		return &Transport{Publisher: pub, Subscriber: sub}, nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", provider)
	}
}

// NewEventBus wraps the transport in the run event bus.
func NewEventBus(transport *Transport, logger *slog.Logger) *eventbus.WatermillEventBus {
	return eventbus.NewWatermillEventBus(transport.Publisher, transport.Subscriber, logger)
}
