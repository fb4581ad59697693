// Package publish emits pipeline events to downstream consumers.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/shubhamdixena/opportunity-pipeline/internal/pipeline"
)

// Event is one captured publish, kept by the memory publisher for tests.
type Event struct {
	Topic   string
	Payload []byte
}

// NoopPublisher drops events. Used when eventing is switched off.
type NoopPublisher struct{}

func NewNoop() *NoopPublisher { return &NoopPublisher{} }

func (NoopPublisher) Publish(context.Context, string, any) (string, error) {
	return "", nil
}

// MemoryPublisher records events in order. Test double and local-dev backend.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
	nextID int
}

func NewMemory() *MemoryPublisher { return &MemoryPublisher{} }

func (m *MemoryPublisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode event payload: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.events = append(m.events, Event{Topic: topic, Payload: data})
	return fmt.Sprintf("msg-%d", m.nextID), nil
}

// Events returns a copy of everything published so far.
func (m *MemoryPublisher) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

var (
	_ pipeline.Publisher = (*NoopPublisher)(nil)
	_ pipeline.Publisher = (*MemoryPublisher)(nil)
)
