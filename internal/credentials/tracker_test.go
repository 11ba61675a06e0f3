package credentials

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSetCredentialPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")
	store := NewFileStore(path)
	tracker := NewTracker(testLogger(), store, 0)

	if tracker.HasAccess() {
		t.Fatal("fresh tracker should not have access")
	}

	if err := tracker.SetCredential("tok-1"); err != nil {
		t.Fatalf("SetCredential: %v", err)
	}
	if !tracker.HasAccess() {
		t.Fatal("HasAccess should be true after SetCredential")
	}
	if got := tracker.Current(); got != "tok-1" {
		t.Fatalf("Current = %q, want tok-1", got)
	}

	// A second store reading the same file sees the persisted value.
	stored, err := NewFileStore(path).Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored != "tok-1" {
		t.Fatalf("stored token = %q, want tok-1", stored)
	}
}

func TestTrackerAdoptsExternalToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")
	store := NewFileStore(path)
	tracker := NewTracker(testLogger(), store, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tracker.Start(ctx)

	// Simulate the login flow writing the store out-of-band.
	if err := store.Put("external-token"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for tracker.Current() != "external-token" {
		if time.Now().After(deadline) {
			t.Fatalf("tracker never adopted external token, have %q", tracker.Current())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTrackerAdoptsTokenPresentAtStartup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")
	store := NewFileStore(path)
	if err := store.Put("pre-existing"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	tracker := NewTracker(testLogger(), store, 0)
	if got := tracker.Current(); got != "pre-existing" {
		t.Fatalf("Current = %q, want pre-existing", got)
	}
}

func TestTokenSource(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "creds.json"))
	tracker := NewTracker(testLogger(), store, 0)

	if _, err := tracker.Token(); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("Token with no credential: err = %v, want ErrNoCredential", err)
	}

	if err := tracker.SetCredential("bearer-x"); err != nil {
		t.Fatalf("SetCredential: %v", err)
	}
	tok, err := tracker.Token()
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if tok.AccessToken != "bearer-x" {
		t.Fatalf("AccessToken = %q, want bearer-x", tok.AccessToken)
	}
}

func TestFileStoreMissingFileReadsAbsent(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "missing.json"))
	token, err := store.Get()
	if err != nil {
		t.Fatalf("Get on missing file: %v", err)
	}
	if token != "" {
		t.Fatalf("token = %q, want empty", token)
	}
}
