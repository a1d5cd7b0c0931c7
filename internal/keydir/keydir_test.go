package keydir_test

import (
	"errors"
	"testing"

	"sdaasverify/internal/keydir"
)

const directoryJSON = `{
  "issuer": "https://sdaas.io",
  "documentation": "https://sdaas.io/docs/verify",
  "keys": [
    {"key_id": "k-old", "algorithm": "Ed25519", "public_key_pem": "OLD", "status": "revoked", "created_at": "2025-01-01T00:00:00Z"},
    {"key_id": "k-new", "algorithm": "Ed25519", "public_key_pem": "NEW", "status": "active"}
  ]
}`

func mustParse(t *testing.T, s string) *keydir.Directory {
	t.Helper()
	dir, err := keydir.ParseDirectory([]byte(s))
	if err != nil {
		t.Fatalf("ParseDirectory: %v", err)
	}
	return dir
}

func TestParseDirectory(t *testing.T) {
	dir := mustParse(t, directoryJSON)
	if dir.Issuer != "https://sdaas.io" || len(dir.Keys) != 2 {
		t.Fatalf("unexpected directory: %+v", dir)
	}
	if g, e := dir.Keys[0].CreatedAt, "2025-01-01T00:00:00Z"; g != e {
		t.Errorf("created_at = %q, want %q", g, e)
	}

	if _, err := keydir.ParseDirectory([]byte(`{"issuer": "x"}`)); err == nil {
		t.Error("expected error for missing keys array")
	}
	if _, err := keydir.ParseDirectory([]byte(`{"keys": "nope"}`)); err == nil {
		t.Error("expected error for non-array keys")
	}
	empty := mustParse(t, `{"keys": []}`)
	if len(empty.Keys) != 0 {
		t.Errorf("expected no keys, got %d", len(empty.Keys))
	}
}

func TestLookup(t *testing.T) {
	dir := mustParse(t, directoryJSON)

	k, err := dir.Lookup("k-old")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if k.Status != keydir.StatusRevoked {
		t.Errorf("status = %q", k.Status)
	}

	_, err = dir.Lookup("k-missing")
	if !errors.Is(err, keydir.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
	if g, e := err.Error(), `No public key found for key_id="k-missing". Keys available: k-old, k-new`; g != e {
		t.Errorf("message = %q, want %q", g, e)
	}
}

func TestResolve(t *testing.T) {
	dir := mustParse(t, directoryJSON)

	pem, err := dir.Resolve("k-new")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if pem != "NEW" {
		t.Errorf("pem = %q", pem)
	}

	_, err = dir.Resolve("k-old")
	if !errors.Is(err, keydir.ErrKeyInactive) {
		t.Fatalf("expected ErrKeyInactive, got %v", err)
	}
	if g, e := err.Error(), `Signing key "k-old" is revoked, not active`; g != e {
		t.Errorf("message = %q, want %q", g, e)
	}
	var ke *keydir.KeyError
	if !errors.As(err, &ke) || ke.Status != keydir.StatusRevoked {
		t.Errorf("expected *KeyError with status, got %#v", err)
	}

	if _, err := dir.Resolve("k-missing"); !errors.Is(err, keydir.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}
