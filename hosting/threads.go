// Copyright (c) Microsoft. All rights reserved.

package hosting

import (
	"context"
	"sync"

	af "github.com/microsoft/hosted-agents-go/agentframework"
)

// ThreadRepository maps conversation IDs to sessions.
type ThreadRepository interface {
	// Get returns the session for id, creating it on first use.
	Get(ctx context.Context, id string) (*af.Session, error)
}

// InMemoryThreadRepository keeps sessions in process memory. Conversations
// are lost on restart. Safe for concurrent use.
type InMemoryThreadRepository struct {
	mu       sync.Mutex
	sessions map[string]*af.Session
	newStore func() af.MessageStore
}

// NewInMemoryThreadRepository returns an empty repository whose sessions use
// [agentframework.InMemoryStore].
func NewInMemoryThreadRepository() *InMemoryThreadRepository {
	return &InMemoryThreadRepository{
		sessions: make(map[string]*af.Session),
		newStore: func() af.MessageStore { return af.NewInMemoryStore() },
	}
}

func (r *InMemoryThreadRepository) Get(_ context.Context, id string) (*af.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		s = af.NewSession(af.WithSessionID(id), af.WithSessionStore(r.newStore()))
		r.sessions[id] = s
	}
	return s, nil
}

// Len returns the number of known conversations.
func (r *InMemoryThreadRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// conversationLocks hands out one lock per conversation ID. Entries are
// dropped once no request holds or waits for them. The zero value is ready
// to use.
type conversationLocks struct {
	mu    sync.Mutex
	locks map[string]*conversationLock
}

type conversationLock struct {
	sem  chan struct{}
	refs int
}

// acquire blocks until the conversation is free or ctx is done.
func (l *conversationLocks) acquire(ctx context.Context, id string) (release func(), err error) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*conversationLock)
	}
	c, ok := l.locks[id]
	if !ok {
		c = &conversationLock{sem: make(chan struct{}, 1)}
		l.locks[id] = c
	}
	c.refs++
	l.mu.Unlock()

	select {
	case c.sem <- struct{}{}:
		return func() {
			<-c.sem
			l.unref(id, c)
		}, nil
	case <-ctx.Done():
		l.unref(id, c)
		return nil, ctx.Err()
	}
}

func (l *conversationLocks) unref(id string, c *conversationLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c.refs--
	if c.refs == 0 {
		delete(l.locks, id)
	}
}

func (l *conversationLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
