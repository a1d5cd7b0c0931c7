package keydir_test

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/boltdb/bolt"

	"sdaasverify/internal/keydir"
)

const (
	pemA = "-----BEGIN PUBLIC KEY-----\nMCowBQYDK2VwAyEArho9ktd3yOk6FxWvKRsrtKVampUrDe2yFRgnD7iGyBI=\n-----END PUBLIC KEY-----\n"
	pemB = "-----BEGIN PUBLIC KEY-----\nMCowBQYDK2VwAyEAGb9ECWmEzf6FQbrBZ9w7lshQhqowtrbLDFw4rXAxZuE=\n-----END PUBLIC KEY-----\n"
)

func newTestStore(t testing.TB) *keydir.Store {
	t.Helper()
	s, err := keydir.Open(filepath.Join(t.TempDir(), "cache", "keys.db"), &bolt.Options{Timeout: time.Second})
	if err != nil {
		t.Fatalf("store open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDirectoryNotCached(t *testing.T) {
	s := newTestStore(t)
	cd, err := s.Directory("https://sdaas.io")
	if g, e := err, keydir.ErrNotCached; g != e {
		t.Errorf("expected ErrNotCached, got %v", err)
	}
	if cd != nil {
		t.Errorf("directory should be nil on error: %v", cd)
	}
}

func TestPutDirectory(t *testing.T) {
	s := newTestStore(t)
	dir := mustParse(t, directoryJSON)
	before := time.Now().Add(-time.Second)

	if err := s.PutDirectory("https://sdaas.io", dir); err != nil {
		t.Fatalf("PutDirectory: %v", err)
	}
	cd, err := s.Directory("https://sdaas.io")
	if err != nil {
		t.Fatalf("Directory: %v", err)
	}
	if len(cd.Directory.Keys) != 2 || cd.Directory.Keys[1].KeyID != "k-new" {
		t.Errorf("cached directory came back wrong: %+v", cd.Directory)
	}
	if cd.FetchedAt.Before(before) {
		t.Errorf("fetched_at too old: %v", cd.FetchedAt)
	}

	if _, err := s.Directory("https://staging.sdaas.io"); err != keydir.ErrNotCached {
		t.Errorf("directories should be keyed by base URL, got %v", err)
	}

	dir.Keys = dir.Keys[:1]
	if err := s.PutDirectory("https://sdaas.io", dir); err != nil {
		t.Fatalf("PutDirectory: %v", err)
	}
	cd, err = s.Directory("https://sdaas.io")
	if err != nil {
		t.Fatalf("Directory: %v", err)
	}
	if len(cd.Directory.Keys) != 1 {
		t.Errorf("expected replacement, got %d keys", len(cd.Directory.Keys))
	}
}

func TestPin(t *testing.T) {
	s := newTestStore(t)

	first, err := s.Pin("k1", pemA)
	if err != nil {
		t.Fatalf("Pin: %v", err)
	}
	if g, e := first.Fingerprint, keydir.Fingerprint(pemA); g != e {
		t.Errorf("fingerprint = %s, want %s", g, e)
	}

	// Same key material with different line endings is still a match.
	escaped := strings.ReplaceAll(strings.TrimSpace(pemA), "\n", `\n`)
	again, err := s.Pin("k1", escaped)
	if err != nil {
		t.Fatalf("Pin with escaped newlines: %v", err)
	}
	if !again.PinnedAt.Equal(first.PinnedAt) {
		t.Errorf("re-pinning changed pinned_at: %v != %v", again.PinnedAt, first.PinnedAt)
	}

	_, err = s.Pin("k1", pemB)
	if !errors.Is(err, keydir.ErrPinMismatch) {
		t.Fatalf("expected ErrPinMismatch, got %v", err)
	}

	if _, err := s.Pin("k0", pemB); err != nil {
		t.Fatalf("Pin k0: %v", err)
	}
	pins, err := s.Pins()
	if err != nil {
		t.Fatalf("Pins: %v", err)
	}
	if len(pins) != 2 || pins[0].KeyID != "k0" || pins[1].KeyID != "k1" {
		t.Fatalf("pins = %+v", pins)
	}
}

func TestStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.db")
	s, err := keydir.Open(path, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := s.Pin("k1", pemA); err != nil {
		t.Fatalf("Pin: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = keydir.Open(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if g, e := s.Path(), path; g != e {
		t.Errorf("path = %s, want %s", g, e)
	}
	if _, err := s.Pin("k1", pemB); !errors.Is(err, keydir.ErrPinMismatch) {
		t.Fatalf("pin did not survive reopen: %v", err)
	}
}

func TestDefaultPath(t *testing.T) {
	p := keydir.DefaultPath()
	if filepath.Base(p) != "keys.db" || !strings.Contains(p, "sdaasverify") {
		t.Errorf("unexpected default path %q", p)
	}
}
