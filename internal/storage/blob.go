// Package storage implements the two-phase upload handshake and the blob
// backends uploads are written to.
package storage

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// Object is a stored blob and the durable URL it is served from.
type Object struct {
	Key         string
	URL         string
	ContentType string
}

// Blob is an object store backend.
type Blob interface {
	Name() string
	Put(ctx context.Context, key string, data []byte, contentType string) (Object, error)
	Delete(ctx context.Context, obj Object) error
}

// Memory keeps blobs in a map. It backs tests and the "memory" backend.
type Memory struct {
	mu      sync.Mutex
	baseURL string
	objects map[string][]byte
}

// NewMemory returns an empty store whose URLs start with baseURL.
func NewMemory(baseURL string) *Memory {
	return &Memory{baseURL: baseURL, objects: make(map[string][]byte)}
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Put(_ context.Context, key string, data []byte, contentType string) (Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	return Object{Key: key, URL: m.baseURL + "/" + key, ContentType: contentType}, nil
}

func (m *Memory) Delete(_ context.Context, obj Object) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, obj.Key)
	return nil
}

// Get returns the stored bytes for key.
func (m *Memory) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[key]
	return b, ok
}

// Len reports how many blobs are stored.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// ErrNotConfigured is returned when the selected backend lacks credentials.
var ErrNotConfigured = errors.New("storage backend not configured")
