package kafka

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
)

func TestCreateChannel_RequiresBrokers(t *testing.T) {
	_, _, err := CreateChannel(watermill.NopLogger{}, "worker", nil)
	assert.Error(t, err)

	_, err = CreatePublisher(watermill.NopLogger{}, []string{""})
	assert.Error(t, err)
}

func TestPartitionKey(t *testing.T) {
	runEvent := message.NewMessage("1", nil)
	runEvent.Metadata.Set("key", "run_01")
	runEvent.Metadata.Set("node_id", "n1")

	key, err := partitionKey("nodeflow.runs", runEvent)
	assert.NoError(t, err)
	assert.Equal(t, "run_01", key)

	statusEvent := message.NewMessage("2", nil)
	statusEvent.Metadata.Set("node_id", "n1")

	key, err = partitionKey("slack-execution.status", statusEvent)
	assert.NoError(t, err)
	assert.Equal(t, "n1", key)
}
