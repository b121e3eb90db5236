// Package kafka provides the Kafka transport for run events and node status.
package kafka

import (
	"errors"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
)

// CreateChannel builds a publisher and a consumer-group subscriber. Messages are
// partitioned by the event key metadata so all events of one run stay ordered.
func CreateChannel(logger watermill.LoggerAdapter, serviceName string, brokers []string) (*kafka.Publisher, *kafka.Subscriber, error) {
	if len(brokers) == 0 || brokers[0] == "" {
		return nil, nil, errors.New("at least one Kafka broker is required")
	}

	saramaSubscriberConfig := kafka.DefaultSaramaSubscriberConfig()
	saramaSubscriberConfig.Consumer.Offsets.Initial = sarama.OffsetOldest

	subscriber, err := kafka.NewSubscriber(
		kafka.SubscriberConfig{
			Brokers:               brokers,
			Unmarshaler:           kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: saramaSubscriberConfig,
			ConsumerGroup:         "cg-" + serviceName,
			OTELEnabled:           true,
		},
		logger,
	)
	if err != nil {
		return nil, nil, err
	}

	publisher, err := CreatePublisher(logger, brokers)
	if err != nil {
		_ = subscriber.Close()

		return nil, nil, err
	}

	return publisher, subscriber, nil
}

// CreatePublisher builds a publisher only, for processes that never consume (the API).
func CreatePublisher(logger watermill.LoggerAdapter, brokers []string) (*kafka.Publisher, error) {
	if len(brokers) == 0 || brokers[0] == "" {
		return nil, errors.New("at least one Kafka broker is required")
	}

	saramaPublisherConfig := sarama.NewConfig()
	saramaPublisherConfig.Producer.Return.Successes = true
	saramaPublisherConfig.Producer.RequiredAcks = sarama.WaitForAll

	return kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:               brokers,
			Marshaler:             kafka.NewWithPartitioningMarshaler(partitionKey),
			OverwriteSaramaConfig: saramaPublisherConfig,
			OTELEnabled:           true,
		},
		logger,
	)
}

// partitionKey keys run events by run id and status events by node id.
func partitionKey(_ string, msg *message.Message) (string, error) {
	if key := msg.Metadata.Get("key"); key != "" {
		return key, nil
	}

	return msg.Metadata.Get("node_id"), nil
}
