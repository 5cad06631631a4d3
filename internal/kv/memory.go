package kv

import (
	"errors"
	"sync"
)

// ErrUnavailable is returned by Memory when failures are injected.
var ErrUnavailable = errors.New("kv: storage unavailable")

// Memory is an in-process Storage. FailReads and FailWrites simulate disabled
// or full storage.
type Memory struct {
	mu     sync.Mutex
	values map[string]string

	FailReads  bool
	FailWrites bool
}

// NewMemory returns an empty Memory storage.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailReads {
		return "", ErrUnavailable
	}
	value, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWrites {
		return ErrUnavailable
	}
	m.values[key] = value
	return nil
}

func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWrites {
		return ErrUnavailable
	}
	delete(m.values, key)
	return nil
}

// Has reports whether key is present.
func (m *Memory) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.values[key]
	return ok
}
