package credential

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "rvsnodes"

// ErrNotFound is returned when no credential set is stored under a name.
var ErrNotFound = errors.New("credential not found")

// Store keeps named credential sets. Each set is stored as one JSON
// encoded keyring item.
type Store struct {
	ring keyring.Keyring
}

// Open returns a Store backed by the system keyring.
func Open() (*Store, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/rvsnodes/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("rvsnodes-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return &Store{ring: ring}, nil
}

// NewStore wraps an existing keyring.
func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Get retrieves the credential set stored under name.
func (s *Store) Get(name string) (map[string]any, error) {
	item, err := s.ring.Get(name)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil, fmt.Errorf("getting credential %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting credential %q: %w", name, err)
	}

	data := map[string]any{}
	if err := json.Unmarshal(item.Data, &data); err != nil {
		return nil, fmt.Errorf("decoding credential %q: %w", name, err)
	}
	return data, nil
}

// Set stores a credential set under name, replacing any previous one.
func (s *Store) Set(name string, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding credential %q: %w", name, err)
	}

	err = s.ring.Set(keyring.Item{
		Key:         name,
		Data:        raw,
		Label:       serviceName + " " + name,
		Description: "workflow node credential set",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", name, err)
	}

	return nil
}

// Delete removes the credential set stored under name.
func (s *Store) Delete(name string) error {
	err := s.ring.Remove(name)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("deleting credential %q: %w", name, err)
	}

	return nil
}

// Names lists the stored credential set names.
func (s *Store) Names() ([]string, error) {
	keys, err := s.ring.Keys()
	if err != nil {
		return nil, fmt.Errorf("listing credentials: %w", err)
	}
	return keys, nil
}
