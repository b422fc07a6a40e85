package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestTokenStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "folio", "token.yaml")
	store := NewTokenStore(path)

	if _, err := store.Load(); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken before save, got %v", err)
	}

	expiry := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	want := &oauth2.Token{AccessToken: "access", TokenType: "Bearer", RefreshToken: "refresh", Expiry: expiry}
	if err := store.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat token: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600 token file, got %o", perm)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.AccessToken != want.AccessToken || got.RefreshToken != want.RefreshToken || got.TokenType != want.TokenType {
		t.Fatalf("unexpected token %+v", got)
	}
	if !got.Expiry.Equal(expiry) {
		t.Fatalf("expiry = %v, want %v", got.Expiry, expiry)
	}
}

func TestTokenStoreClear(t *testing.T) {
	store := NewTokenStore(filepath.Join(t.TempDir(), "token.yaml"))
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear on empty store: %v", err)
	}
	if err := store.Save(&oauth2.Token{AccessToken: "a"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := store.Load(); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken after clear, got %v", err)
	}
}

func TestTokenStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.yaml")
	if err := os.WriteFile(path, []byte("access_token: [unterminated"), 0o600); err != nil {
		t.Fatalf("write token: %v", err)
	}
	_, err := NewTokenStore(path).Load()
	if err == nil || errors.Is(err, ErrNoToken) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestTokenStoreSaveNil(t *testing.T) {
	if err := NewTokenStore(filepath.Join(t.TempDir(), "token.yaml")).Save(nil); err == nil {
		t.Fatal("expected error saving nil token")
	}
}
