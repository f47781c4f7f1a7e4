package credentials

import (
	"context"
	"errors"
	"testing"
)

func noEnv(string) string { return "" }

func TestManagerSetGetDelete(t *testing.T) {
	mockKeyring := NewMockKeyring()
	manager := NewManager("https://tasks.example.com/", WithKeyring(mockKeyring), WithGetenv(noEnv))

	if err := manager.Set(context.Background(), "tok-123"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	stored, err := mockKeyring.Get("taskdash", "tasks.example.com")
	if err != nil {
		t.Fatalf("Keyring Get failed: %v", err)
	}
	if stored != "tok-123" {
		t.Errorf("expected token 'tok-123', got %q", stored)
	}

	info, err := manager.Get(context.Background())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !info.Found || info.Source != SourceKeyring || info.Token != "tok-123" {
		t.Errorf("unexpected info: %+v", info)
	}

	if err := manager.Delete(context.Background()); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	info, err = manager.Get(context.Background())
	if err != nil {
		t.Fatalf("Get after delete failed: %v", err)
	}
	if info.Found || info.Source != SourceNone {
		t.Errorf("expected no token after delete, got %+v", info)
	}
}

func TestManagerDeleteMissingIsNoop(t *testing.T) {
	manager := NewManager("http://localhost:8080", WithKeyring(NewMockKeyring()), WithGetenv(noEnv))
	if err := manager.Delete(context.Background()); err != nil {
		t.Errorf("expected nil deleting a missing token, got %v", err)
	}
}

func TestManagerEnvironmentTakesPrecedence(t *testing.T) {
	mockKeyring := NewMockKeyring()
	_ = mockKeyring.Set("taskdash", "localhost:8080", "from-keyring")

	env := func(key string) string {
		if key == TokenEnvVar {
			return " from-env "
		}
		return ""
	}
	manager := NewManager("http://localhost:8080", WithKeyring(mockKeyring), WithGetenv(env))

	info, err := manager.Get(context.Background())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if info.Source != SourceEnvironment || info.Token != "from-env" {
		t.Errorf("expected env token, got %+v", info)
	}
}

func TestAccountName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://Tasks.Example.com/api", "tasks.example.com"},
		{"http://localhost:8080", "localhost:8080"},
		{"not a url", "not a url"},
	}
	for _, tt := range tests {
		if got := accountName(tt.in); got != tt.want {
			t.Errorf("accountName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

type brokenKeyring struct{}

func (brokenKeyring) Set(string, string, string) error { return ErrKeyringNotAvailable }
func (brokenKeyring) Get(string, string) (string, error) {
	return "", ErrKeyringNotAvailable
}
func (brokenKeyring) Delete(string, string) error { return ErrKeyringNotAvailable }

func TestManagerPropagatesKeyringFailure(t *testing.T) {
	manager := NewManager("http://localhost", WithKeyring(brokenKeyring{}), WithGetenv(noEnv))
	if _, err := manager.Get(context.Background()); !errors.Is(err, ErrKeyringNotAvailable) {
		t.Errorf("expected ErrKeyringNotAvailable, got %v", err)
	}
}
