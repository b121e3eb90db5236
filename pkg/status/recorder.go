package status

import (
	"context"
	"sync"

	"github.com/nodeflow/nodeflow/pkg/models"
)

// Published is one event observed by a Recorder.
type Published struct {
	Channel string
	Event   models.NodeStatusEvent
}

// Recorder keeps published events in memory and optionally forwards them to a callback.
type Recorder struct {
	mu        sync.Mutex
	events    []Published
	OnPublish func(Published)
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(_ context.Context, channel string, event models.NodeStatusEvent) {
	published := Published{Channel: channel, Event: event}

	r.mu.Lock()
	r.events = append(r.events, published)
	callback := r.OnPublish
	r.mu.Unlock()

	if callback != nil {
		callback(published)
	}
}

func (r *Recorder) Events() []Published {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Published(nil), r.events...)
}

// Statuses returns the sequence of statuses reported for nodeID.
func (r *Recorder) Statuses(nodeID string) []models.NodeStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	var statuses []models.NodeStatus

	for _, published := range r.events {
		if published.Event.NodeID == nodeID {
			statuses = append(statuses, published.Event.Status)
		}
	}

	return statuses
}
