package auth

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"canvasfetch/pkg/config"
)

const (
	keyringService = "canvasfetch"
	keyringPrefix  = "apikey_"
)

// KeyringStore implements CredentialStore using the system keychain
type KeyringStore struct{}

// NewKeyringStore creates a keyring-based store, failing when no keychain
// is reachable
func NewKeyringStore() (*KeyringStore, error) {
	testKey := "test_availability"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, testKey)

	return &KeyringStore{}, nil
}

// Store saves the key to the system keychain
func (k *KeyringStore) Store(key *APIKey) error {
	if key == nil || key.Source == "" {
		return ErrInvalidCredentials
	}

	data, err := json.Marshal(key)
	if err != nil {
		return fmt.Errorf("failed to marshal key: %w", err)
	}

	if err := keyring.Set(keyringService, keyringPrefix+key.Source, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}
	return nil
}

// Retrieve gets the key from the system keychain
func (k *KeyringStore) Retrieve(source string) (*APIKey, error) {
	if source == "" {
		return nil, ErrInvalidCredentials
	}

	data, err := keyring.Get(keyringService, keyringPrefix+source)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var key APIKey
	if err := json.Unmarshal([]byte(data), &key); err != nil {
		return nil, fmt.Errorf("failed to unmarshal key: %w", err)
	}
	return &key, nil
}

// List probes every known source, since go-keyring cannot enumerate entries
func (k *KeyringStore) List() ([]*APIKey, error) {
	var keys []*APIKey
	for _, source := range config.SourceNames {
		if key, err := k.Retrieve(source); err == nil {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Delete removes the key from the system keychain
func (k *KeyringStore) Delete(source string) error {
	if source == "" {
		return ErrInvalidCredentials
	}

	err := keyring.Delete(keyringService, keyringPrefix+source)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrCredentialsNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return nil
}

// Exists checks if a key exists in the keychain
func (k *KeyringStore) Exists(source string) bool {
	if source == "" {
		return false
	}
	_, err := keyring.Get(keyringService, keyringPrefix+source)
	return err == nil
}
