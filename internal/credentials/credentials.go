// Package credentials keeps the API bearer token in the OS keyring, with an
// environment variable fallback for headless use.
package credentials

import (
	"context"
	"errors"
	"net/url"
	"os"
	"strings"
)

// TokenEnvVar overrides the stored token when set.
const TokenEnvVar = "TASKDASH_TOKEN"

// Source indicates where a token was retrieved from
type Source string

const (
	SourceKeyring     Source = "keyring"
	SourceEnvironment Source = "environment"
	SourceNone        Source = "none"
)

// TokenInfo is the result of Manager.Get.
type TokenInfo struct {
	Source  Source
	Account string
	Token   string
	Found   bool
}

// Keyring is the interface for keyring operations
type Keyring interface {
	Set(service, account, secret string) error
	Get(service, account string) (string, error)
	Delete(service, account string) error
}

// Manager handles token storage for one API endpoint.
type Manager struct {
	keyring Keyring
	account string
	getenv  func(string) string
}

// ManagerOption is a functional option for Manager
type ManagerOption func(*Manager)

// WithKeyring sets a custom keyring implementation
func WithKeyring(k Keyring) ManagerOption {
	return func(m *Manager) {
		m.keyring = k
	}
}

// WithGetenv replaces os.Getenv, for tests.
func WithGetenv(fn func(string) string) ManagerOption {
	return func(m *Manager) {
		m.getenv = fn
	}
}

// NewManager creates a manager whose keyring account is derived from the API base URL.
func NewManager(apiBaseURL string, opts ...ManagerOption) *Manager {
	m := &Manager{
		keyring: systemKeyring{},
		account: accountName(apiBaseURL),
		getenv:  os.Getenv,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

const serviceName = "taskdash"

// accountName reduces a base URL to host[:port] so http/https and trailing
// slashes share one entry.
func accountName(apiBaseURL string) string {
	u, err := url.Parse(strings.TrimSpace(apiBaseURL))
	if err != nil || u.Host == "" {
		return strings.ToLower(strings.TrimSpace(apiBaseURL))
	}
	return strings.ToLower(u.Host)
}

// Account returns the keyring account name in use.
func (m *Manager) Account() string { return m.account }

// Set stores the token in the keyring
func (m *Manager) Set(ctx context.Context, token string) error {
	return m.keyring.Set(serviceName, m.account, token)
}

// Get retrieves the token, preferring the environment over the keyring.
func (m *Manager) Get(ctx context.Context) (*TokenInfo, error) {
	if token := strings.TrimSpace(m.getenv(TokenEnvVar)); token != "" {
		return &TokenInfo{Source: SourceEnvironment, Account: m.account, Token: token, Found: true}, nil
	}

	token, err := m.keyring.Get(serviceName, m.account)
	if errors.Is(err, ErrNotFound) {
		return &TokenInfo{Source: SourceNone, Account: m.account}, nil
	}
	if err != nil {
		return nil, err
	}
	return &TokenInfo{Source: SourceKeyring, Account: m.account, Token: token, Found: token != ""}, nil
}

// Delete removes the token from the keyring. Deleting a missing token is not an error.
func (m *Manager) Delete(ctx context.Context) error {
	err := m.keyring.Delete(serviceName, m.account)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
