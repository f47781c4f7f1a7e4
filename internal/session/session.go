// Package session mirrors the durable credential store in memory.
//
// The store is the single source of truth: another process may log out at
// any moment, so every authorization-sensitive read resyncs from it first.
package session

import (
	"encoding/json"
	"strings"
	"sync"

	"taskdash/backend"
	"taskdash/internal/store"
	"taskdash/internal/utils"
)

// Durable store keys.
const (
	KeyToken = store.TokenKey
	KeyRoles = "roles"
	KeyUser  = "user"
	KeyTheme = "theme"
)

// Role names.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// Theme values.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// Snapshot is a consistent copy of the session taken after one resync.
type Snapshot struct {
	Credential string
	Roles      []string
	Profile    *backend.Profile
}

// Authenticated reports whether the snapshot holds a credential.
func (s Snapshot) Authenticated() bool { return s.Credential != "" }

// HasRole reports whether the snapshot carries role name.
func (s Snapshot) HasRole(name string) bool {
	want := normalizeRole(name)
	for _, r := range s.Roles {
		if normalizeRole(r) == want {
			return true
		}
	}
	return false
}

// Session is the in-memory mirror of the credential keys.
type Session struct {
	mu           sync.RWMutex
	store        store.Store
	snap         Snapshot
	defaultTheme string
}

// New creates a session over st and loads it once.
func New(st store.Store, defaultTheme string) *Session {
	if defaultTheme != ThemeDark {
		defaultTheme = ThemeLight
	}
	s := &Session{store: st, defaultTheme: defaultTheme}
	s.Load()
	return s
}

// Load replaces the in-memory copy with what the store holds. The token,
// roles and user are read together so a concurrent login elsewhere is never
// seen half applied. Read failures and malformed values load as empty.
func (s *Session) Load() Snapshot {
	vals, err := s.store.GetMany(KeyToken, KeyRoles, KeyUser)
	if err != nil {
		utils.Debugf("session: reading session keys: %v", err)
		vals = nil
	}
	snap := Snapshot{
		Credential: strings.TrimSpace(vals[KeyToken]),
		Roles:      parseRoles(strings.TrimSpace(vals[KeyRoles])),
		Profile:    parseProfile(strings.TrimSpace(vals[KeyUser])),
	}
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
	return snap
}

func (s *Session) read(key string) string {
	v, ok, err := s.store.Get(key)
	if err != nil {
		utils.Debugf("session: reading %s: %v", key, err)
		return ""
	}
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

func parseRoles(raw string) []string {
	if raw == "" {
		return nil
	}
	var roles []string
	if err := json.Unmarshal([]byte(raw), &roles); err != nil {
		utils.Debugf("session: ignoring malformed roles %q", raw)
		return nil
	}
	return roles
}

func parseProfile(raw string) *backend.Profile {
	if raw == "" || raw == "null" {
		return nil
	}
	var p backend.Profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		utils.Debugf("session: ignoring malformed user %q", raw)
		return nil
	}
	return &p
}

func normalizeRole(r string) string {
	r = strings.ToUpper(strings.TrimSpace(r))
	return strings.TrimPrefix(r, "ROLE_")
}

// Set writes credential, roles and profile to the store in one unit and then
// to memory.
func (s *Session) Set(credential string, roles []string, profile *backend.Profile) error {
	if roles == nil {
		roles = []string{}
	}
	rolesJSON, err := json.Marshal(roles)
	if err != nil {
		return err
	}
	userJSON, err := json.Marshal(profile)
	if err != nil {
		return err
	}

	if err := s.store.SetMany(map[string]string{
		KeyToken: credential,
		KeyRoles: string(rolesJSON),
		KeyUser:  string(userJSON),
	}); err != nil {
		return err
	}

	s.mu.Lock()
	s.snap = Snapshot{Credential: credential, Roles: append([]string(nil), roles...), Profile: profile}
	s.mu.Unlock()
	return nil
}

// Clear removes the three credential keys. The theme is kept.
func (s *Session) Clear() error {
	s.mu.Lock()
	s.snap = Snapshot{}
	s.mu.Unlock()
	return s.store.Delete(KeyToken, KeyRoles, KeyUser)
}

// Current resyncs and returns the session.
func (s *Session) Current() Snapshot { return s.Load() }

// Cached returns the in-memory copy without touching the store. Use only
// for display; decisions must go through Current, IsAuthenticated or HasRole.
func (s *Session) Cached() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// IsAuthenticated resyncs and reports whether a credential is present.
func (s *Session) IsAuthenticated() bool { return s.Load().Authenticated() }

// HasRole resyncs and reports whether the session carries role name.
// Comparison ignores case and a ROLE_ prefix.
func (s *Session) HasRole(name string) bool { return s.Load().HasRole(name) }

// Credential resyncs and returns the bearer credential, or "".
func (s *Session) Credential() string { return s.Load().Credential }

// Theme returns the persisted theme, falling back to the configured default.
func (s *Session) Theme() string {
	switch t := strings.ToLower(s.read(KeyTheme)); t {
	case ThemeLight, ThemeDark:
		return t
	}
	return s.defaultTheme
}

// SetTheme persists theme. Unknown values are stored as light.
func (s *Session) SetTheme(theme string) error {
	if theme != ThemeDark {
		theme = ThemeLight
	}
	return s.store.SetMany(map[string]string{KeyTheme: theme})
}

// Initials returns up to two upper-case initials for a display name.
func Initials(name string) string {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "?"
	case 1:
		r := []rune(parts[0])
		if len(r) > 2 {
			r = r[:2]
		}
		return strings.ToUpper(string(r))
	}
	first := []rune(parts[0])[0]
	last := []rune(parts[len(parts)-1])[0]
	return strings.ToUpper(string([]rune{first, last}))
}
