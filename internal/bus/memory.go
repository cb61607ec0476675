package bus

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

const memoryBufferSize = 256

// MemoryBackend is an in-process backend for single-node deployments.
// Published messages are delivered to every subscriber on the channel;
// a subscriber that has fallen behind its buffer drops messages rather
// than blocking publishers, matching the bus's best-effort contract.
type MemoryBackend struct {
	mu          sync.RWMutex
	subscribers map[string][]chan Message
	closed      bool
}

// NewMemoryBackend constructs an in-process backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		subscribers: make(map[string][]chan Message),
	}
}

// Publish delivers the message to all current subscribers of the channel.
func (m *MemoryBackend) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	msg := Message{
		ID:         uuid.NewString(),
		Data:       data,
		Attributes: attrs,
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", errors.New("bus is closed")
	}
	for _, sub := range m.subscribers[channel] {
		select {
		case sub <- msg:
		default:
		}
	}
	return msg.ID, nil
}

// Subscribe consumes messages from the named channel until the context is
// canceled.
func (m *MemoryBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	sub := make(chan Message, memoryBufferSize)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errors.New("bus is closed")
	}
	m.subscribers[channel] = append(m.subscribers[channel], sub)
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		subs := m.subscribers[channel]
		for i, candidate := range subs {
			if candidate == sub {
				m.subscribers[channel] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		m.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-sub:
			// Best-effort: handler errors are not retried in-process.
			_ = handler(ctx, msg)
		}
	}
}

// Close drops all subscribers.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = make(map[string][]chan Message)
	m.closed = true
	return nil
}
