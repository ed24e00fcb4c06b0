package testutils

import (
	"context"
	"sync"

	"github.com/coldbrewlabs/engram/pkg/eventstream"
)

// MockPublisher records published turn events for inspection.
type MockPublisher struct {
	mu     sync.Mutex
	events []*eventstream.TurnCompletedEvent

	// FailPublish causes PublishTurn to return an error.
	FailPublish error
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) PublishTurn(_ context.Context, event *eventstream.TurnCompletedEvent) error {
	if m.FailPublish != nil {
		return m.FailPublish
	}
	if event == nil {
		return eventstream.ErrNilTurnEvent
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *MockPublisher) Close() error {
	return nil
}

// Events returns a copy of everything published so far.
func (m *MockPublisher) Events() []*eventstream.TurnCompletedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*eventstream.TurnCompletedEvent, len(m.events))
	copy(out, m.events)
	return out
}
