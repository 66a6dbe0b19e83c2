package credstore

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringService is the service name entries are stored under.
const KeyringService = "storefront"

// KeyringBackend stores one session as a JSON blob in the OS keychain
// (Secret Service, macOS Keychain, Windows Credential Manager).
type KeyringBackend struct {
	service string
	user    string
}

// NewKeyringBackend creates a keyring backend for session.
func NewKeyringBackend(session string) *KeyringBackend {
	if session == "" {
		session = DefaultSession
	}
	return &KeyringBackend{service: KeyringService, user: "session:" + session}
}

func (k *KeyringBackend) Name() string { return "keyring" }

func (k *KeyringBackend) Load() (Record, error) {
	data, err := keyring.Get(k.service, k.user)
	if errors.Is(err, keyring.ErrNotFound) {
		return Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read keyring entry: %w", err)
	}

	var record Record
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("failed to parse keyring entry: %w", err)
	}
	if record == nil {
		record = Record{}
	}
	return record, nil
}

func (k *KeyringBackend) Save(r Record) error {
	if len(r) == 0 {
		err := keyring.Delete(k.service, k.user)
		if err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("failed to delete keyring entry: %w", err)
		}
		return nil
	}

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	if err := keyring.Set(k.service, k.user, string(data)); err != nil {
		return fmt.Errorf("failed to write keyring entry: %w", err)
	}
	return nil
}
