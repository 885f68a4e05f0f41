package repository

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryOrigin holds the slots shared by in-process contexts of one origin.
type MemoryOrigin struct {
	mu       sync.Mutex
	values   map[string]string
	contexts []*memoryCredentialStore
}

// NewMemoryOrigin creates an empty origin.
func NewMemoryOrigin() *MemoryOrigin {
	return &MemoryOrigin{values: make(map[string]string)}
}

// NewContext opens a context (a tab) on the origin.
func (o *MemoryOrigin) NewContext() CredentialStore {
	store := &memoryCredentialStore{origin: o, id: uuid.NewString()}
	o.mu.Lock()
	o.contexts = append(o.contexts, store)
	o.mu.Unlock()
	return store
}

func (o *MemoryOrigin) write(ctx context.Context, writer *memoryCredentialStore, key, value string, present bool) (string, bool) {
	o.mu.Lock()
	prev, existed := o.values[key]
	if present {
		o.values[key] = value
	} else {
		delete(o.values, key)
	}
	others := make([]*memoryCredentialStore, 0, len(o.contexts))
	for _, c := range o.contexts {
		if c != writer {
			others = append(others, c)
		}
	}
	o.mu.Unlock()

	if !present && !existed {
		return prev, existed
	}
	change := Change{Key: key, Value: value, Present: present, Origin: writer.id}
	for _, c := range others {
		c.listeners.notify(ctx, change)
	}
	return prev, existed
}

type memoryCredentialStore struct {
	origin    *MemoryOrigin
	id        string
	listeners listenerSet
}

func (s *memoryCredentialStore) Get(_ context.Context, key string) (string, bool, error) {
	s.origin.mu.Lock()
	defer s.origin.mu.Unlock()
	val, ok := s.origin.values[key]
	return val, ok, nil
}

func (s *memoryCredentialStore) Set(ctx context.Context, key, value string) error {
	s.origin.write(ctx, s, key, value, true)
	return nil
}

func (s *memoryCredentialStore) Delete(ctx context.Context, key string) error {
	s.origin.write(ctx, s, key, "", false)
	return nil
}

func (s *memoryCredentialStore) Take(ctx context.Context, key string) (string, bool, error) {
	val, ok := s.origin.write(ctx, s, key, "", false)
	return val, ok, nil
}

func (s *memoryCredentialStore) OnExternalChange(fn ChangeListener) func() {
	return s.listeners.add(fn)
}

func (s *memoryCredentialStore) Watch(context.Context) error {
	return nil
}

func (s *memoryCredentialStore) Origin() string {
	return s.id
}
