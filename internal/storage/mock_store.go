package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// MockStore is an in-memory implementation of ObjectStore for testing.
type MockStore struct {
	mu      sync.RWMutex
	objects map[string]*MockObject
	calls   MockCalls

	// PutErr, when set, is returned by Put for matching keys.
	PutErr func(key string) error
	// Now stamps uploaded objects; defaults to time.Now.
	Now func() time.Time
}

// MockObject is a stored object with the options it was uploaded with.
type MockObject struct {
	Data     []byte
	Options  PutOptions
	Modified time.Time
}

// MockCalls tracks method invocations for test verification.
type MockCalls struct {
	Put  int
	List int
}

// NewMockStore creates a new in-memory object store.
func NewMockStore() *MockStore {
	return &MockStore{objects: make(map[string]*MockObject)}
}

// Seed places an object without counting a Put call.
func (m *MockStore) Seed(key string, data []byte, modified time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = &MockObject{Data: data, Modified: modified}
}

func (m *MockStore) List(_ context.Context, prefix string) (map[string]ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.List++
	out := make(map[string]ObjectInfo)
	for k, o := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out[k] = ObjectInfo{Size: int64(len(o.Data)), Modified: o.Modified}
		}
	}
	return out, nil
}

func (m *MockStore) Put(_ context.Context, key string, body io.Reader, size int64, opts PutOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Put++
	if m.PutErr != nil {
		if err := m.PutErr(key); err != nil {
			return err
		}
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if size >= 0 && int64(len(data)) != size {
		return fmt.Errorf("size mismatch for %s: got %d want %d", key, len(data), size)
	}
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	m.objects[key] = &MockObject{Data: data, Options: opts, Modified: now()}
	return nil
}

func (m *MockStore) URL(key string) string { return "mock://" + key }

// Get returns a stored object.
func (m *MockStore) Get(key string) (*MockObject, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[key]
	return o, ok
}

// Keys returns all stored keys.
func (m *MockStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	return keys
}

// Calls returns a copy of the call counters.
func (m *MockStore) Calls() MockCalls {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}
