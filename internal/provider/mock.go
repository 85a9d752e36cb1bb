package provider

import (
	"context"
	"errors"
	"sync"
)

// MockProvider is an in-memory CallProvider for tests. Lifecycle events are
// emitted by the test through the Emit helpers.
type MockProvider struct {
	mu sync.Mutex

	// StartErr, when set, is returned by Start.
	StartErr error

	StartCalls int
	StopCalls  int
	MuteCalls  int
	LastConfig CallConfig

	events chan Event
	closed bool
}

// Compile-time check that MockProvider implements CallProvider.
var _ CallProvider = (*MockProvider)(nil)

// NewMockProvider creates a mock provider with a buffered event stream.
func NewMockProvider() *MockProvider {
	return &MockProvider{events: make(chan Event, 64)}
}

func (m *MockProvider) Start(ctx context.Context, cfg CallConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StartCalls++
	m.LastConfig = cfg
	return m.StartErr
}

func (m *MockProvider) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StopCalls++
	return nil
}

func (m *MockProvider) Mute(muted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MuteCalls++
	return nil
}

func (m *MockProvider) Events() <-chan Event {
	return m.events
}

// Emit delivers an event to the consumer. Returns an error if the stream is
// already closed.
func (m *MockProvider) Emit(ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("event stream closed")
	}
	m.events <- ev
	return nil
}

// EmitCallStart delivers a call-start event.
func (m *MockProvider) EmitCallStart() { m.Emit(Event{Type: EventCallStart}) }

// EmitCallEnd delivers a call-end event.
func (m *MockProvider) EmitCallEnd() { m.Emit(Event{Type: EventCallEnd}) }

// EmitMessage delivers a transcript message event.
func (m *MockProvider) EmitMessage(role, content string) {
	m.Emit(Event{Type: EventMessage, Role: role, Content: content})
}

// EmitError delivers a provider error event.
func (m *MockProvider) EmitError(cause string) {
	m.Emit(Event{Type: EventError, Cause: cause})
}

// CloseEvents closes the event stream, ending the consumer's loop.
func (m *MockProvider) CloseEvents() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.events)
	}
}
