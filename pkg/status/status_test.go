package status

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeflow/nodeflow/pkg/channels/gochannel"
	"github.com/nodeflow/nodeflow/pkg/models"
	"github.com/nodeflow/nodeflow/pkg/protocol"
)

type fakeExecutor struct {
	err error
	run func()
}

func (f *fakeExecutor) Channel() string        { return "http-request-execution" }
func (f *fakeExecutor) Schema() map[string]any { return nil }

func (f *fakeExecutor) Execute(_ context.Context, req protocol.Request) (models.Context, error) {
	if f.run != nil {
		f.run()
	}

	if f.err != nil {
		return nil, f.err
	}

	return req.Context.With("done", true), nil
}

func TestTrack_Success(t *testing.T) {
	recorder := NewRecorder()
	executor := Track(&fakeExecutor{}, recorder)

	out, err := executor.Execute(context.Background(), protocol.Request{NodeID: "n1", Context: models.Context{}})
	require.NoError(t, err)
	assert.Equal(t, true, out["done"])

	assert.Equal(t, []models.NodeStatus{models.NodeStatusLoading, models.NodeStatusSuccess}, recorder.Statuses("n1"))
	for _, published := range recorder.Events() {
		assert.Equal(t, "http-request-execution", published.Channel)
	}
}

func TestTrack_LoadingPrecedesWork(t *testing.T) {
	recorder := NewRecorder()

	var seenDuringWork []models.NodeStatus

	executor := Track(&fakeExecutor{run: func() { seenDuringWork = recorder.Statuses("n1") }}, recorder)

	_, err := executor.Execute(context.Background(), protocol.Request{NodeID: "n1"})
	require.NoError(t, err)
	assert.Equal(t, []models.NodeStatus{models.NodeStatusLoading}, seenDuringWork)
}

func TestTrack_ErrorPassesThrough(t *testing.T) {
	recorder := NewRecorder()
	cause := protocol.Configuration("HTTP Request node: endpoint is missing")
	executor := Track(&fakeExecutor{err: cause}, recorder)

	out, err := executor.Execute(context.Background(), protocol.Request{NodeID: "n1"})
	assert.Nil(t, out)
	assert.Same(t, cause, err)
	assert.Equal(t, []models.NodeStatus{models.NodeStatusLoading, models.NodeStatusError}, recorder.Statuses("n1"))
}

func TestPublisher_PublishesOnChannelTopic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub, sub, err := gochannel.CreatePersistentChannel(watermill.NopLogger{})
	require.NoError(t, err)

	defer pub.Close()

	NewPublisher(pub, slog.Default()).Publish(ctx, "slack-execution", models.NodeStatusEvent{
		NodeID: "n7", Status: models.NodeStatusLoading, EmittedAt: time.Now().UTC(),
	})

	messages, err := sub.Subscribe(ctx, TransportTopic("slack-execution"))
	require.NoError(t, err)

	select {
	case msg := <-messages:
		msg.Ack()

		assert.Equal(t, "slack-execution", msg.Metadata.Get(ChannelMetadataKey))
		assert.Equal(t, "status", msg.Metadata.Get(TopicMetadataKey))
		assert.Equal(t, "n7", msg.Metadata.Get(NodeIDMetadataKey))

		var event models.NodeStatusEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &event))
		assert.Equal(t, models.NodeStatusLoading, event.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("status event not published")
	}
}

type brokenPublisher struct{}

func (brokenPublisher) Publish(string, ...*message.Message) error { return errors.New("broker down") }
func (brokenPublisher) Close() error                              { return nil }

func TestPublisher_FailuresAreSwallowed(t *testing.T) {
	publisher := NewPublisher(brokenPublisher{}, slog.Default())

	assert.NotPanics(t, func() {
		publisher.Publish(context.Background(), "discord-execution", models.NodeStatusEvent{NodeID: "n1", Status: models.NodeStatusError})
	})

	// a tracked executor still succeeds when status delivery fails
	out, err := Track(&fakeExecutor{}, publisher).Execute(context.Background(), protocol.Request{NodeID: "n1", Context: models.Context{}})
	require.NoError(t, err)
	assert.Equal(t, true, out["done"])
}

func TestTransportTopic(t *testing.T) {
	assert.Equal(t, "openai-execution.status", TransportTopic("openai-execution"))
	Discard{}.Publish(context.Background(), "x", models.NodeStatusEvent{})
}
