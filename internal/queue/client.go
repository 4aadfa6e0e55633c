package queue

import (
	"context"
	"sync"
)

// Client sends messages to a queue backend.
type Client interface {
	Send(ctx context.Context, msg OrphanMessage) error
}

// MemoryClient buffers messages in process. Used when no queue URL is configured.
type MemoryClient struct {
	mu   sync.Mutex
	msgs []OrphanMessage
}

// NewMemoryClient returns an empty in-memory queue.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{}
}

func (m *MemoryClient) Send(ctx context.Context, msg OrphanMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.msgs = append(m.msgs, msg)
	m.mu.Unlock()
	return nil
}

// Drain returns and clears the buffered messages.
func (m *MemoryClient) Drain() []OrphanMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.msgs
	m.msgs = nil
	return out
}

var _ Client = (*MemoryClient)(nil)
