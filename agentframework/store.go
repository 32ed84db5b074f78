// Copyright (c) Microsoft. All rights reserved.

package agentframework

import (
	"context"
	"slices"
	"sync"
)

// MessageStore persists conversation messages for a [Session].
type MessageStore interface {
	// ListMessages returns all stored messages in order.
	ListMessages(ctx context.Context) ([]Message, error)

	// AddMessages appends messages to the store.
	AddMessages(ctx context.Context, msgs []Message) error
}

// InMemoryStore is a [MessageStore] kept in process memory.
// It is safe for concurrent use.
type InMemoryStore struct {
	mu       sync.RWMutex
	messages []Message
}

// NewInMemoryStore creates an empty [InMemoryStore].
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) ListMessages(_ context.Context) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.messages), nil
}

func (s *InMemoryStore) AddMessages(_ context.Context, msgs []Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msgs...)
	return nil
}
