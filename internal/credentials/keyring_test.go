package credentials

import (
	"errors"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestSystemKeyringRoundTrip(t *testing.T) {
	keyring.MockInit()

	var k Keyring = systemKeyring{}
	if err := k.Set("taskdash-test", "user", "secret"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := k.Get("taskdash-test", "user")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != "secret" {
		t.Errorf("expected 'secret', got %q", got)
	}
	if err := k.Delete("taskdash-test", "user"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := k.Get("taskdash-test", "user"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestSystemKeyringUnavailable(t *testing.T) {
	keyring.MockInitWithError(errors.New("dbus: no session bus"))

	err := systemKeyring{}.Set("taskdash-test", "user", "secret")
	if !errors.Is(err, ErrKeyringNotAvailable) {
		t.Errorf("expected ErrKeyringNotAvailable, got %v", err)
	}
}

func TestMockKeyringNotFound(t *testing.T) {
	m := NewMockKeyring()
	if _, err := m.Get("svc", "acct"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := m.Delete("svc", "acct"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on delete, got %v", err)
	}
}
