package transport

import (
	"context"
	"log/slog"
	"sync"
)

// Mock is a scriptable transport for tests and for running the service
// without a configured gateway. It records every send it receives.
type Mock struct {
	mu    sync.Mutex
	sends []Message

	// FailContacts maps contact strings to the error to return for them.
	FailContacts map[string]error
	// Err, when set, is returned for every send.
	Err error
	// OnSend, when set, is called synchronously while the send is in
	// flight, before the result is returned.
	OnSend func(msg *Message)

	logger *slog.Logger
}

// NewMock returns a mock that succeeds for every contact.
func NewMock() *Mock {
	return &Mock{FailContacts: map[string]error{}}
}

// NewLoggingMock returns a mock that logs each send, used by serve when no
// gateway is configured.
func NewLoggingMock(logger *slog.Logger) *Mock {
	return &Mock{
		FailContacts: map[string]error{},
		logger:       logger.With("component", "mock-transport"),
	}
}

func (m *Mock) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	m.sends = append(m.sends, *msg)
	m.mu.Unlock()

	if m.OnSend != nil {
		m.OnSend(msg)
	}

	if m.logger != nil {
		m.logger.Info("mock send", "to", msg.Contact, "body", msg.Body)
	}

	if m.Err != nil {
		return m.Err
	}
	if err, ok := m.FailContacts[msg.Contact]; ok {
		return err
	}
	return nil
}

// Sends returns a copy of every message sent so far.
func (m *Mock) Sends() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.sends))
	copy(out, m.sends)
	return out
}

// SendCount returns how many sends were attempted.
func (m *Mock) SendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sends)
}
