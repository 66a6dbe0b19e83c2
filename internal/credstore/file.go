package credstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"storefront/pkg/logging"
)

// DefaultSession is the session id used when none is configured.
const DefaultSession = "default"

// DefaultDebounceInterval is the quiet period before a burst of file events
// is reported as one change.
const DefaultDebounceInterval = 100 * time.Millisecond

var sessionNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// DefaultRuntimeDir returns the per-user directory for session files. It is
// $XDG_RUNTIME_DIR/storefront when set (a tmpfs cleared at logout or reboot)
// and a uid-scoped directory under the system temp dir otherwise.
func DefaultRuntimeDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "storefront")
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("storefront-%d", os.Getuid()))
}

// FileBackend stores one session as a JSON file.
//
// SECURITY: the directory is created 0700 and the file 0600. Writes go to a
// temporary file in the same directory and are renamed into place, so a
// reader never sees a partial record.
type FileBackend struct {
	mu       sync.Mutex
	dir      string
	fileName string
	debounce time.Duration
}

// NewFileBackend creates a file backend for session under dir. An empty dir
// selects DefaultRuntimeDir.
func NewFileBackend(dir, session string) (*FileBackend, error) {
	if dir == "" {
		dir = DefaultRuntimeDir()
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create credential directory: %w", err)
	}

	return &FileBackend{
		dir:      dir,
		fileName: sessionFileName(session),
		debounce: DefaultDebounceInterval,
	}, nil
}

// sessionFileName maps a session id to a filesystem-safe name. Ids outside
// the plain pattern are hashed.
func sessionFileName(session string) string {
	if session == "" {
		session = DefaultSession
	}
	if !sessionNamePattern.MatchString(session) {
		hash := sha256.Sum256([]byte(session))
		session = hex.EncodeToString(hash[:16])
	}
	return "session-" + session + ".json"
}

// Path returns the session file path.
func (f *FileBackend) Path() string {
	return filepath.Join(f.dir, f.fileName)
}

func (f *FileBackend) Name() string { return "file" }

func (f *FileBackend) Load() (Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	// #nosec G304 -- path is built from the runtime dir and a sanitised session id
	data, err := os.ReadFile(f.Path())
	if os.IsNotExist(err) {
		return Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credential file: %w", err)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to parse credential file: %w", err)
	}
	if record == nil {
		record = Record{}
	}
	return record, nil
}

func (f *FileBackend) Save(r Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(r) == 0 {
		err := os.Remove(f.Path())
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove credential file: %w", err)
		}
		return nil
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	tmp, err := os.CreateTemp(f.dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary credential file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to restrict credential file permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync credential file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close credential file: %w", err)
	}

	if err := os.Rename(tmpName, f.Path()); err != nil {
		return fmt.Errorf("failed to replace credential file: %w", err)
	}
	return nil
}

// Watch reports changes to the session file until ctx is done. Bursts of
// events are collapsed by a short debounce.
func (f *FileBackend) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	// The directory is watched because the file itself is replaced by rename.
	if err := watcher.Add(f.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", f.dir, err)
	}
	logging.Debug("CredStore", "Watching %s for credential changes", f.Path())

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != f.fileName {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			timerMu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(f.debounce, func() {
				if ctx.Err() == nil {
					onChange()
				}
			})
			timerMu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Error("CredStore", err, "fsnotify error")
		}
	}
}
