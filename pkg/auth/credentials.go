package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

// APIKey is the key a museum API expects with every request
type APIKey struct {
	Source       string    `json:"source"`
	Key          string    `json:"key"`
	LastModified time.Time `json:"last_modified"`
}

// CredentialStore is the interface for storing and retrieving API keys
type CredentialStore interface {
	// Store saves the key for its source
	Store(key *APIKey) error

	// Retrieve gets the key for a source
	Retrieve(source string) (*APIKey, error)

	// List returns all stored keys
	List() ([]*APIKey, error)

	// Delete removes the key for a source
	Delete(source string) error

	// Exists checks if a key is stored for a source
	Exists(source string) bool
}

// Manager handles key storage with fallback mechanisms
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a credential manager with the keychain, an encrypted
// file and the environment, tried in that order
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	// Try keyring first (system keychain)
	keyringStore, err := NewKeyringStore()
	if err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "keys.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a Manager over explicit stores
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves a key using the first store that accepts it
func (m *Manager) Store(key *APIKey) error {
	if key == nil || key.Source == "" {
		return errors.New("source is required")
	}
	key.Key = strings.TrimSpace(key.Key)
	if key.Key == "" {
		return errors.New("API key is required")
	}

	key.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(key)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store API key: %w", lastErr)
	}
	return errors.New("no available credential stores")
}

// Retrieve gets the key from the first store that has it
func (m *Manager) Retrieve(source string) (*APIKey, error) {
	for _, store := range m.stores {
		if key, err := store.Retrieve(source); err == nil && key != nil {
			return key, nil
		}
	}
	return nil, fmt.Errorf("%w for source: %s", ErrCredentialsNotFound, source)
}

// Lookup returns the stored key for source, or "" when there is none.
// It has the shape the museum registry builder expects.
func (m *Manager) Lookup(source string) string {
	key, err := m.Retrieve(source)
	if err != nil {
		return ""
	}
	return key.Key
}

// List returns one key per source across all stores, sorted by source
func (m *Manager) List() ([]*APIKey, error) {
	keyMap := make(map[string]*APIKey)

	for _, store := range m.stores {
		keys, err := store.List()
		if err != nil {
			continue
		}
		for _, key := range keys {
			// Use the most recently modified version
			if existing, ok := keyMap[key.Source]; !ok || key.LastModified.After(existing.LastModified) {
				keyMap[key.Source] = key
			}
		}
	}

	result := make([]*APIKey, 0, len(keyMap))
	for _, key := range keyMap {
		result = append(result, key)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Source < result[j].Source })

	return result, nil
}

// Delete removes the key from all stores
func (m *Manager) Delete(source string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(source); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil && !errors.Is(lastErr, ErrCredentialsNotFound) && !errors.Is(lastErr, ErrStoreUnavailable) {
		return fmt.Errorf("failed to delete API key: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("%w for source: %s", ErrCredentialsNotFound, source)
	}

	return nil
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "canvasfetch")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "canvasfetch")
	default: // Linux and others
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "canvasfetch")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "canvasfetch")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// Mask hides all but the first and last 4 characters of a key
func Mask(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("API key not found")
	ErrInvalidCredentials  = errors.New("invalid API key")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
