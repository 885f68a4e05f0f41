package repository

import (
	"context"
	"sync"
)

// Change describes a write to a credential store slot made by another context.
type Change struct {
	Key     string `json:"key"`
	Value   string `json:"value,omitempty"`
	Present bool   `json:"present"`
	Origin  string `json:"origin"`
}

// ChangeListener receives changes observed from other contexts.
type ChangeListener func(ctx context.Context, change Change)

// CredentialStore is the persisted key/value slot set shared by every context
// of one origin. Writes are last-write-wins.
type CredentialStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// Take reads and deletes key as one indivisible step.
	Take(ctx context.Context, key string) (string, bool, error)
	// OnExternalChange registers fn for writes made by other contexts.
	// The returned func removes the registration.
	OnExternalChange(fn ChangeListener) func()
	// Watch delivers external changes until ctx is done. Stores that are notified
	// synchronously return immediately with nil.
	Watch(ctx context.Context) error
	// Origin identifies this context in change notifications.
	Origin() string
}

type listenerSet struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[int]ChangeListener
}

func (s *listenerSet) add(fn ChangeListener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listeners == nil {
		s.listeners = make(map[int]ChangeListener)
	}
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.listeners, id)
		})
	}
}

func (s *listenerSet) notify(ctx context.Context, change Change) {
	s.mu.RLock()
	fns := make([]ChangeListener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(ctx, change)
	}
}
