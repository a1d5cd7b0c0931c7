// Package keydir models the authority's published signing-key directory
// (/.well-known/signing-keys.json) and keeps a local cache of it.
package keydir

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	StatusActive  = "active"
	StatusRevoked = "revoked"
)

var (
	ErrKeyNotFound = errors.New("signing key not found")
	ErrKeyInactive = errors.New("signing key not active")
)

// SigningKey is one entry of the directory.
type SigningKey struct {
	KeyID        string `json:"key_id"`
	Algorithm    string `json:"algorithm"`
	PublicKeyPEM string `json:"public_key_pem"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at,omitempty"`
}

func (k *SigningKey) Active() bool {
	return k.Status == StatusActive
}

// Directory is the published key set of one authority.
type Directory struct {
	Keys          []SigningKey `json:"keys"`
	Issuer        string       `json:"issuer"`
	Documentation string       `json:"documentation,omitempty"`
}

// KeyError reports a key that cannot be used. Unwrap yields ErrKeyNotFound
// or ErrKeyInactive.
type KeyError struct {
	KeyID     string
	Status    string
	Available []string
	Err       error
}

func (e *KeyError) Error() string {
	if errors.Is(e.Err, ErrKeyInactive) {
		return fmt.Sprintf("Signing key %q is %s, not active", e.KeyID, e.Status)
	}
	return fmt.Sprintf("No public key found for key_id=%q. Keys available: %s", e.KeyID, strings.Join(e.Available, ", "))
}

func (e *KeyError) Unwrap() error { return e.Err }

// ParseDirectory decodes a signing-keys document. A document without a keys
// array is an error; an empty array is not.
func ParseDirectory(b []byte) (*Directory, error) {
	var raw struct {
		Directory
		Keys *[]SigningKey `json:"keys"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("signing keys: %w", err)
	}
	if raw.Keys == nil {
		return nil, errors.New("signing keys: missing keys array")
	}
	dir := raw.Directory
	dir.Keys = *raw.Keys
	return &dir, nil
}

// KeyIDs lists the key ids in directory order.
func (d *Directory) KeyIDs() []string {
	ids := make([]string, 0, len(d.Keys))
	for _, k := range d.Keys {
		ids = append(ids, k.KeyID)
	}
	return ids
}

// Lookup finds keyID regardless of status.
//
// If no key matches, returns a *KeyError wrapping ErrKeyNotFound.
func (d *Directory) Lookup(keyID string) (*SigningKey, error) {
	for i := range d.Keys {
		if d.Keys[i].KeyID == keyID {
			return &d.Keys[i], nil
		}
	}
	return nil, &KeyError{KeyID: keyID, Available: d.KeyIDs(), Err: ErrKeyNotFound}
}

// Resolve returns the PEM of keyID, which must be active.
//
// If the key is present with any other status, returns a *KeyError wrapping
// ErrKeyInactive.
func (d *Directory) Resolve(keyID string) (string, error) {
	k, err := d.Lookup(keyID)
	if err != nil {
		return "", err
	}
	if !k.Active() {
		return "", &KeyError{KeyID: keyID, Status: k.Status, Err: ErrKeyInactive}
	}
	return k.PublicKeyPEM, nil
}
