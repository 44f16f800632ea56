package kv

import (
	"context"
	"sync"
)

type memoryEntry struct {
	value   []byte
	version uint64
}

// Memory is an in-process Store with the same optimistic transaction
// semantics as the redis implementation. It backs unit tests and local
// single-node runs.
type Memory struct {
	mu      sync.Mutex
	data    map[string]memoryEntry
	counter uint64
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]memoryEntry)}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, nil
}

func (m *Memory) Put(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(key, value)
	return nil
}

func (m *Memory) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *Memory) Transact(ctx context.Context, watch string, fn Txn) error {
	m.mu.Lock()
	entry, exists := m.data[watch]
	version := entry.version
	var current []byte
	if exists {
		current = make([]byte, len(entry.value))
		copy(current, entry.value)
	}
	m.mu.Unlock()

	// fn runs without the lock held so concurrent transactions interleave
	// the way they would against a networked store.
	mutation, err := fn(current, exists)
	if err != nil {
		return err
	}
	if mutation.IsEmpty() {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	after, stillExists := m.data[watch]
	if stillExists != exists || after.version != version {
		return ErrConflict
	}
	for key, value := range mutation.Put {
		m.put(key, value)
	}
	for _, key := range mutation.Delete {
		delete(m.data, key)
	}
	return nil
}

// put stores a copy of value under key with a fresh version. Caller holds mu.
func (m *Memory) put(key string, value []byte) {
	m.counter++
	stored := make([]byte, len(value))
	copy(stored, value)
	m.data[key] = memoryEntry{value: stored, version: m.counter}
}
