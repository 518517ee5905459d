package auth

import (
	"sync"
)

// MockStore implements CredentialStore in memory for tests
type MockStore struct {
	keys map[string]*APIKey
	mu   sync.RWMutex

	// Error injection for testing
	StoreError    error
	RetrieveError error
	ListError     error
	DeleteError   error
}

// NewMockStore creates a new mock credential store
func NewMockStore() *MockStore {
	return &MockStore{
		keys: make(map[string]*APIKey),
	}
}

// Store saves the key in memory
func (m *MockStore) Store(key *APIKey) error {
	if m.StoreError != nil {
		return m.StoreError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if key == nil || key.Source == "" {
		return ErrInvalidCredentials
	}

	keyCopy := *key
	m.keys[key.Source] = &keyCopy
	return nil
}

// Retrieve gets the key from memory
func (m *MockStore) Retrieve(source string) (*APIKey, error) {
	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if source == "" {
		return nil, ErrInvalidCredentials
	}

	key, exists := m.keys[source]
	if !exists {
		return nil, ErrCredentialsNotFound
	}

	keyCopy := *key
	return &keyCopy, nil
}

// List returns copies of all stored keys
func (m *MockStore) List() ([]*APIKey, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []*APIKey
	for _, key := range m.keys {
		keyCopy := *key
		keys = append(keys, &keyCopy)
	}
	return keys, nil
}

// Delete removes the key from memory
func (m *MockStore) Delete(source string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if source == "" {
		return ErrInvalidCredentials
	}
	if _, exists := m.keys[source]; !exists {
		return ErrCredentialsNotFound
	}

	delete(m.keys, source)
	return nil
}

// Exists checks if a key is stored for source
func (m *MockStore) Exists(source string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.keys[source]
	return exists
}

// Count returns the number of stored keys
func (m *MockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.keys)
}

// NewMockManager creates a Manager with a mock store for testing
func NewMockManager() (*Manager, *MockStore) {
	mockStore := NewMockStore()
	return NewManagerWithStores(mockStore), mockStore
}
