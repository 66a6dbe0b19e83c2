package credstore

import (
	"context"
	"sync"
)

// Backend persists a whole credential record as one unit.
type Backend interface {
	// Load returns the stored record, or an empty record when nothing is stored.
	Load() (Record, error)

	// Save replaces the stored record. An empty record removes it.
	Save(Record) error

	// Name identifies the backend in logs and status output.
	Name() string
}

// Watcher is implemented by backends that can report writes made by other
// processes sharing the session.
type Watcher interface {
	// Watch calls onChange after each external write until ctx is done.
	Watch(ctx context.Context, onChange func()) error
}

// MemoryBackend keeps the record in process memory.
type MemoryBackend struct {
	mu     sync.Mutex
	record Record

	// SaveErr, when set, makes every Save fail with it.
	SaveErr error
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{record: Record{}}
}

func (m *MemoryBackend) Load() (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record.Clone(), nil
}

func (m *MemoryBackend) Save(r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.record = r.Clone()
	return nil
}

func (m *MemoryBackend) Name() string { return "memory" }
