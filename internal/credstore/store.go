package credstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
)

// Key names one credential slot. The names are shared with other clients of
// the same session and must not change.
type Key string

const (
	KeyCodeVerifier Key = "pkce_code_verifier"
	KeyState        Key = "oauth_state"
	KeyAccessToken  Key = "access_token"
	KeyIDToken      Key = "id_token"
	KeyRefreshToken Key = "refresh_token"
)

// AllKeys lists every key the store knows about.
var AllKeys = []Key{KeyCodeVerifier, KeyState, KeyAccessToken, KeyIDToken, KeyRefreshToken}

// isSecret reports whether a key holds a bearer credential.
func (k Key) isSecret() bool {
	return k == KeyAccessToken || k == KeyIDToken || k == KeyRefreshToken
}

// Record is a point-in-time copy of every stored key.
type Record map[Key]string

// Clone returns an independent copy.
func (r Record) Clone() Record {
	if r == nil {
		return Record{}
	}
	return maps.Clone(r)
}

// ErrWatchUnsupported is returned by Watch when the backend cannot observe
// writes made by other processes.
var ErrWatchUnsupported = errors.New("credential backend does not support watching")

// Store is the session-scoped credential store. All reads are served from an
// in-memory copy; every write persists the complete record through the
// backend before it becomes visible, so a failed write leaves the previous
// state intact.
//
// SECURITY: credential values are never logged. Audit entries name keys only.
type Store struct {
	mu      sync.RWMutex
	backend Backend
	record  Record
	logger  *slog.Logger

	listenersMu sync.Mutex
	listeners   map[int]func()
	nextID      int
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a store over backend and loads its current contents.
func New(backend Backend, opts ...Option) (*Store, error) {
	s := &Store{
		backend:   backend,
		logger:    slog.Default(),
		listeners: make(map[int]func()),
	}
	for _, opt := range opts {
		opt(s)
	}

	record, err := backend.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials from %s backend: %w", backend.Name(), err)
	}
	s.record = record.Clone()

	return s, nil
}

// NewMemory creates a store that lives only as long as the process.
func NewMemory(opts ...Option) *Store {
	s, _ := New(NewMemoryBackend(), opts...)
	return s
}

// Get returns the value stored under key.
func (s *Store) Get(key Key) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.record[key]
	return v, ok && v != ""
}

// Value returns the value stored under key or "".
func (s *Store) Value(key Key) string {
	v, _ := s.Get(key)
	return v
}

// Snapshot returns a copy of every stored key.
func (s *Store) Snapshot() Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record.Clone()
}

// Set stores value under key. An empty value deletes the key.
func (s *Store) Set(key Key, value string) error {
	return s.SetMany(map[Key]string{key: value})
}

// SetMany applies all values in one write. Empty values delete their key.
func (s *Store) SetMany(values map[Key]string) error {
	return s.update("credentials_stored", func(r Record) {
		for k, v := range values {
			if v == "" {
				delete(r, k)
				continue
			}
			r[k] = v
		}
	}, keysOf(values))
}

// Delete removes keys. Missing keys are ignored.
func (s *Store) Delete(keys ...Key) error {
	return s.update("credentials_deleted", func(r Record) {
		for _, k := range keys {
			delete(r, k)
		}
	}, keys)
}

// Clear removes every key. Clearing an empty store is a no-op.
func (s *Store) Clear() error {
	s.mu.RLock()
	empty := len(s.record) == 0
	s.mu.RUnlock()
	if empty {
		return nil
	}

	return s.update("credentials_cleared", func(r Record) {
		clear(r)
	}, nil)
}

// Reload replaces the in-memory copy with the backend contents. It is used
// when another process may have written the same session.
func (s *Store) Reload() error {
	record, err := s.backend.Load()
	if err != nil {
		return fmt.Errorf("failed to reload credentials: %w", err)
	}

	s.mu.Lock()
	changed := !maps.Equal(s.record, record)
	s.record = record.Clone()
	s.mu.Unlock()

	if changed {
		s.notify()
	}
	return nil
}

// Subscribe registers fn to be called after every change. The returned
// function unregisters it.
func (s *Store) Subscribe(fn func()) func() {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

// Watch calls Reload whenever the backend reports an external write and
// then invokes fn. It blocks until ctx is done.
func (s *Store) Watch(ctx context.Context, fn func()) error {
	w, ok := s.backend.(Watcher)
	if !ok {
		return ErrWatchUnsupported
	}
	return w.Watch(ctx, func() {
		if err := s.Reload(); err != nil {
			s.logger.Warn("Failed to reload credentials after change", "error", err)
			return
		}
		if fn != nil {
			fn()
		}
	})
}

// BackendName returns the name of the persistence backend.
func (s *Store) BackendName() string {
	return s.backend.Name()
}

func (s *Store) update(event string, mutate func(Record), keys []Key) error {
	s.mu.Lock()
	next := s.record.Clone()
	mutate(next)

	if err := s.backend.Save(next); err != nil {
		s.mu.Unlock()
		s.logger.Warn("SECURITY_AUDIT: credential write failed",
			"event", event+"_failed",
			"backend", s.backend.Name(),
			"keys", keys,
			"error", err.Error(),
		)
		return fmt.Errorf("failed to persist credentials: %w", err)
	}
	s.record = next
	s.mu.Unlock()

	if touchesSecret(keys) || keys == nil {
		s.logger.Info("SECURITY_AUDIT: credentials updated",
			"event", event,
			"backend", s.backend.Name(),
			"keys", keys,
			"has_access_token", next[KeyAccessToken] != "",
			"has_refresh_token", next[KeyRefreshToken] != "",
		)
	}

	s.notify()
	return nil
}

func (s *Store) notify() {
	s.listenersMu.Lock()
	fns := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func keysOf(values map[Key]string) []Key {
	keys := make([]Key, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	return keys
}

func touchesSecret(keys []Key) bool {
	for _, k := range keys {
		if k.isSecret() {
			return true
		}
	}
	return false
}
