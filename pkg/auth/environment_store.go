package auth

import (
	"os"
	"strings"

	"canvasfetch/pkg/config"
)

// EnvironmentStore reads keys from CANVASFETCH_<SOURCE>_API_KEY.
// It is read-only.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// EnvVar returns the variable holding the key for source
func EnvVar(source string) string {
	return "CANVASFETCH_" + strings.ToUpper(source) + "_API_KEY"
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(key *APIKey) error {
	return ErrStoreUnavailable
}

// Retrieve gets the key from the environment
func (e *EnvironmentStore) Retrieve(source string) (*APIKey, error) {
	if source == "" {
		return nil, ErrInvalidCredentials
	}
	value := strings.TrimSpace(os.Getenv(EnvVar(source)))
	if value == "" {
		return nil, ErrCredentialsNotFound
	}
	return &APIKey{Source: source, Key: value}, nil
}

// List returns the keys set for known sources
func (e *EnvironmentStore) List() ([]*APIKey, error) {
	var keys []*APIKey
	for _, source := range config.SourceNames {
		if key, err := e.Retrieve(source); err == nil {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(source string) error {
	return ErrStoreUnavailable
}

// Exists checks if the variable is set
func (e *EnvironmentStore) Exists(source string) bool {
	_, err := e.Retrieve(source)
	return err == nil
}
