// Package blob stores raw page snapshots so a structuring pass can be
// replayed without re-fetching the source.
package blob

import (
	"context"
	"sync"

	"github.com/shubhamdixena/opportunity-pipeline/internal/pipeline"
)

// NoopStore discards writes. Used when snapshotting is switched off.
type NoopStore struct{}

func NewNoop() *NoopStore { return &NoopStore{} }

func (NoopStore) PutObject(context.Context, string, string, []byte) (string, error) {
	return "", nil
}

// MemoryStore keeps objects in a map. Test double and local-dev backend.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemory() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (m *MemoryStore) PutObject(_ context.Context, path string, _ string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	m.objects[path] = buf
	return "mem://" + path, nil
}

// GetObject returns a stored object, for tests and local inspection.
func (m *MemoryStore) GetObject(path string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[path]
	return data, ok
}

// Len reports the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

var (
	_ pipeline.BlobStore = (*NoopStore)(nil)
	_ pipeline.BlobStore = (*MemoryStore)(nil)
)
