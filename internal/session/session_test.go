package session

import (
	"path/filepath"
	"testing"

	"taskdash/backend"
	"taskdash/internal/store"
)

func TestSetThenLoad(t *testing.T) {
	st := store.NewMemory()
	s := New(st, ThemeLight)

	profile := &backend.Profile{Name: "Ada Lovelace", Email: "ada@example.com", Username: "ada"}
	if err := s.Set("tok", []string{"USER", "ADMIN"}, profile); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	fresh := New(st, ThemeLight)
	snap := fresh.Current()
	if snap.Credential != "tok" || len(snap.Roles) != 2 || snap.Profile == nil || snap.Profile.Username != "ada" {
		t.Errorf("round trip lost data: %+v", snap)
	}
	if !fresh.IsAuthenticated() || !fresh.HasRole("admin") {
		t.Error("expected authenticated admin")
	}
}

// racingStore simulates another process logging in as someone else between
// any two single-key reads.
type racingStore struct {
	*store.Memory
}

func (r racingStore) Get(key string) (string, bool, error) {
	_ = r.SetMany(map[string]string{KeyToken: "tok-bob", KeyRoles: `["ADMIN"]`, KeyUser: `{"username":"bob"}`})
	return r.Memory.Get(key)
}

func TestLoadReadsOneSnapshot(t *testing.T) {
	st := racingStore{store.NewMemory()}
	_ = st.Memory.SetMany(map[string]string{KeyToken: "tok-alice", KeyRoles: `["USER"]`, KeyUser: `{"username":"alice"}`})

	snap := New(st, ThemeLight).Current()
	if snap.Credential != "tok-alice" || len(snap.Roles) != 1 || snap.Roles[0] != "USER" ||
		snap.Profile == nil || snap.Profile.Username != "alice" {
		t.Errorf("mixed session snapshot: %+v", snap)
	}
}

func TestClearIsSeenDespiteStaleCopy(t *testing.T) {
	st := store.NewMemory()
	a := New(st, ThemeLight)
	b := New(st, ThemeLight)

	if err := a.Set("tok", []string{"USER"}, nil); err != nil {
		t.Fatal(err)
	}
	if !b.IsAuthenticated() {
		t.Fatal("b should see a's login")
	}
	if !b.Cached().Authenticated() {
		t.Fatal("b's cached copy should say authenticated")
	}

	if err := a.Clear(); err != nil {
		t.Fatal(err)
	}
	if !b.Cached().Authenticated() {
		t.Fatal("b's cache is expected to be stale until resync")
	}
	if b.IsAuthenticated() {
		t.Error("IsAuthenticated must resync and report false after clear")
	}
	if b.HasRole(RoleUser) {
		t.Error("HasRole must resync and report false after clear")
	}
}

func TestMalformedValuesLoadAsEmpty(t *testing.T) {
	st := store.NewMemory()
	_ = st.SetMany(map[string]string{
		KeyToken: "tok",
		KeyRoles: "{not json",
		KeyUser:  "[1,2",
		KeyTheme: "purple",
	})

	s := New(st, ThemeDark)
	snap := s.Current()
	if snap.Credential != "tok" {
		t.Errorf("credential should survive, got %q", snap.Credential)
	}
	if snap.Roles != nil || snap.Profile != nil {
		t.Errorf("malformed roles/user should load as empty, got %+v", snap)
	}
	if s.Theme() != ThemeDark {
		t.Errorf("unknown theme should fall back to default, got %q", s.Theme())
	}
}

func TestNullUser(t *testing.T) {
	st := store.NewMemory()
	s := New(st, ThemeLight)
	if err := s.Set("tok", nil, nil); err != nil {
		t.Fatal(err)
	}
	raw, _, _ := st.Get(KeyUser)
	if raw != "null" {
		t.Errorf("absent profile should be stored as null, got %q", raw)
	}
	raw, _, _ = st.Get(KeyRoles)
	if raw != "[]" {
		t.Errorf("nil roles should be stored as [], got %q", raw)
	}
}

func TestRolePrefixAndCase(t *testing.T) {
	snap := Snapshot{Credential: "x", Roles: []string{"ROLE_ADMIN"}}
	if !snap.HasRole("admin") || !snap.HasRole("ADMIN") {
		t.Error("ROLE_ prefix and case should be ignored")
	}
	if snap.HasRole("USER") {
		t.Error("unexpected USER role")
	}
}

func TestClearKeepsTheme(t *testing.T) {
	st := store.NewMemory()
	s := New(st, ThemeLight)
	_ = s.SetTheme(ThemeDark)
	_ = s.Set("tok", nil, nil)
	_ = s.Clear()

	if s.Theme() != ThemeDark {
		t.Errorf("theme should survive logout, got %q", s.Theme())
	}
	if keys := st.Keys(); len(keys) != 1 || keys[0] != KeyTheme {
		t.Errorf("only theme should remain, got %v", keys)
	}
}

func TestSurvivesProcessRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	st, err := store.OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := New(st, ThemeLight).Set("persisted", []string{"USER"}, &backend.Profile{Name: "P"}); err != nil {
		t.Fatal(err)
	}
	_ = st.Close()

	st2, err := store.OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = st2.Close() }()

	snap := New(st2, ThemeLight).Current()
	if snap.Credential != "persisted" || snap.Profile == nil || snap.Profile.Name != "P" {
		t.Errorf("session not restored from disk: %+v", snap)
	}
}

func TestInitials(t *testing.T) {
	tests := map[string]string{
		"":                "?",
		"ada":             "AD",
		"x":               "X",
		"Ada Lovelace":    "AL",
		"mary ann evans":  "ME",
		"  émile   zola ": "ÉZ",
	}
	for in, want := range tests {
		if got := Initials(in); got != want {
			t.Errorf("Initials(%q) = %q, want %q", in, got, want)
		}
	}
}
