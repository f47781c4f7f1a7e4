package store

import (
	"context"
	"fmt"

	"taskdash/internal/credentials"
)

// TokenKey is the store key redirected to the keyring by KeyringOverlay.
const TokenKey = "token"

// KeyringOverlay keeps the bearer token in the OS keyring and every other key
// in the wrapped store. Writes touching the token go to the keyring first, so
// a failed keyring write leaves the inner store untouched.
type KeyringOverlay struct {
	inner Store
	creds *credentials.Manager
}

// NewKeyringOverlay wraps inner.
func NewKeyringOverlay(inner Store, creds *credentials.Manager) *KeyringOverlay {
	return &KeyringOverlay{inner: inner, creds: creds}
}

// Path returns the inner store's file path, if it has one.
func (k *KeyringOverlay) Path() string {
	if p, ok := k.inner.(Pather); ok {
		return p.Path()
	}
	return ""
}

// Get implements Store.
func (k *KeyringOverlay) Get(key string) (string, bool, error) {
	if key != TokenKey {
		return k.inner.Get(key)
	}
	info, err := k.creds.Get(context.Background())
	if err != nil {
		return "", false, fmt.Errorf("failed to read token from keyring: %w", err)
	}
	return info.Token, info.Found, nil
}

// GetMany implements Store. Keys other than the token come from one read of
// the inner store.
func (k *KeyringOverlay) GetMany(keys ...string) (map[string]string, error) {
	rest := make([]string, 0, len(keys))
	wantToken := false
	for _, key := range keys {
		if key == TokenKey {
			wantToken = true
			continue
		}
		rest = append(rest, key)
	}
	out, err := k.inner.GetMany(rest...)
	if err != nil {
		return nil, err
	}
	if wantToken {
		token, ok, err := k.Get(TokenKey)
		if err != nil {
			return nil, err
		}
		if ok {
			out[TokenKey] = token
		}
	}
	return out, nil
}

// SetMany implements Store.
func (k *KeyringOverlay) SetMany(values map[string]string) error {
	rest := make(map[string]string, len(values))
	for key, v := range values {
		if key == TokenKey {
			if err := k.creds.Set(context.Background(), v); err != nil {
				return fmt.Errorf("failed to store token in keyring: %w", err)
			}
			continue
		}
		rest[key] = v
	}
	// Touch a marker so file watchers in other processes see the change.
	rest[tokenMarkerKey] = "keyring"
	return k.inner.SetMany(rest)
}

// Delete implements Store.
func (k *KeyringOverlay) Delete(keys ...string) error {
	rest := make([]string, 0, len(keys)+1)
	for _, key := range keys {
		if key == TokenKey {
			if err := k.creds.Delete(context.Background()); err != nil {
				return fmt.Errorf("failed to remove token from keyring: %w", err)
			}
			rest = append(rest, tokenMarkerKey)
			continue
		}
		rest = append(rest, key)
	}
	return k.inner.Delete(rest...)
}

// Close implements Store.
func (k *KeyringOverlay) Close() error { return k.inner.Close() }

const tokenMarkerKey = "token_location"
