package tokenstore

import (
	"sync"

	apperrors "github.com/hosilim/dashboard-session/internal/errors"
)

var _ Backend = (*MemoryBackend)(nil)

// MemoryBackend keeps values for the lifetime of the process.
type MemoryBackend struct {
	values map[string]string
	lock   sync.RWMutex
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: make(map[string]string)}
}

func (m *MemoryBackend) Get(key string) (string, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	v, ok := m.values[key]
	if !ok {
		return "", apperrors.ErrNotFound
	}
	return v, nil
}

func (m *MemoryBackend) Set(key, value string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.values[key] = value
	return nil
}

func (m *MemoryBackend) Delete(key string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	delete(m.values, key)
	return nil
}

// Len reports the number of stored keys.
func (m *MemoryBackend) Len() int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return len(m.values)
}

var _ Backend = Unavailable{}

// Unavailable is a backend whose every call fails, like storage in a private browsing
// session.
type Unavailable struct{}

func (Unavailable) Get(string) (string, error) { return "", apperrors.ErrStorageUnavailable }
func (Unavailable) Set(string, string) error   { return apperrors.ErrStorageUnavailable }
func (Unavailable) Delete(string) error        { return apperrors.ErrStorageUnavailable }
