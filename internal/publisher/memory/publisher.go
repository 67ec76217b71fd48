// Package memory provides an in-process publisher for development/testing.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Envelope is one published message.
type Envelope struct {
	Topic   string
	Payload any
}

// Publisher collects published messages in memory.
type Publisher struct {
	mu       sync.Mutex
	messages []Envelope
}

// New constructs a Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the payload and returns a synthetic message ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, Envelope{Topic: topic, Payload: payload})
	return fmt.Sprintf("memory-%d", len(p.messages)), nil
}

// Messages returns a copy of everything published so far.
func (p *Publisher) Messages() []Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Envelope, len(p.messages))
	copy(out, p.messages)
	return out
}
