package credentials

import (
	"errors"
	"fmt"
	"sync"

	"github.com/zalando/go-keyring"
)

// ErrNotFound is returned when no secret is stored for a service/account pair.
var ErrNotFound = errors.New("secret not found")

// ErrKeyringNotAvailable wraps failures to reach the OS keyring service.
var ErrKeyringNotAvailable = errors.New("system keyring not available")

// MockKeyring is a test implementation of the Keyring interface
type MockKeyring struct {
	mu    sync.RWMutex
	store map[string]map[string]string // service -> account -> secret
}

// NewMockKeyring creates a new mock keyring for testing
func NewMockKeyring() *MockKeyring {
	return &MockKeyring{
		store: make(map[string]map[string]string),
	}
}

// Set stores a secret in the mock keyring
func (m *MockKeyring) Set(service, account, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.store[service] == nil {
		m.store[service] = make(map[string]string)
	}
	m.store[service][account] = secret
	return nil
}

// Get retrieves a secret from the mock keyring
func (m *MockKeyring) Get(service, account string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if secret, ok := m.store[service][account]; ok {
		return secret, nil
	}
	return "", fmt.Errorf("%s/%s: %w", service, account, ErrNotFound)
}

// Delete removes a secret from the mock keyring
func (m *MockKeyring) Delete(service, account string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.store[service][account]; ok {
		delete(m.store[service], account)
		return nil
	}
	return fmt.Errorf("%s/%s: %w", service, account, ErrNotFound)
}

// systemKeyring stores secrets in the OS keyring (Secret Service, Keychain,
// Windows Credential Manager).
type systemKeyring struct{}

func (systemKeyring) Set(service, account, secret string) error {
	if err := keyring.Set(service, account, secret); err != nil {
		return fmt.Errorf("%w: %v", ErrKeyringNotAvailable, err)
	}
	return nil
}

func (systemKeyring) Get(service, account string) (string, error) {
	secret, err := keyring.Get(service, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("%s/%s: %w", service, account, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrKeyringNotAvailable, err)
	}
	return secret, nil
}

func (systemKeyring) Delete(service, account string) error {
	err := keyring.Delete(service, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("%s/%s: %w", service, account, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeyringNotAvailable, err)
	}
	return nil
}
