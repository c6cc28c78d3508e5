package mail

import (
	"context"
	"strings"
	"sync"
)

// MockTransport records messages for testing.
type MockTransport struct {
	mu   sync.Mutex
	Sent []Message
	// Err, when set, fails every send.
	Err error
	// FailFor fails sends to the listed addresses.
	FailFor map[string]error
}

// Send records msg or returns the configured error.
func (m *MockTransport) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if err, ok := m.FailFor[strings.ToLower(msg.To)]; ok {
		return err
	}
	m.Sent = append(m.Sent, msg)
	return nil
}

// Messages returns a copy of the recorded messages.
func (m *MockTransport) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.Sent))
	copy(out, m.Sent)
	return out
}
