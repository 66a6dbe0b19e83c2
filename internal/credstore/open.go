package credstore

import "fmt"

// Storage backend names accepted by Open.
const (
	StorageMemory  = "memory"
	StorageFile    = "file"
	StorageKeyring = "keyring"
)

// Options selects and configures a backend.
type Options struct {
	// Storage is one of StorageMemory, StorageFile or StorageKeyring.
	Storage string

	// Session scopes the stored record. Empty selects DefaultSession.
	Session string

	// Dir overrides the runtime directory of the file backend.
	Dir string
}

// Open builds the backend named by opts.Storage and loads a store from it.
func Open(opts Options, storeOpts ...Option) (*Store, error) {
	var backend Backend
	switch opts.Storage {
	case StorageMemory:
		backend = NewMemoryBackend()
	case StorageFile, "":
		fb, err := NewFileBackend(opts.Dir, opts.Session)
		if err != nil {
			return nil, err
		}
		backend = fb
	case StorageKeyring:
		backend = NewKeyringBackend(opts.Session)
	default:
		return nil, fmt.Errorf("unknown credential storage %q", opts.Storage)
	}

	return New(backend, storeOpts...)
}
