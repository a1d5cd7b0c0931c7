package keydir

import (
	"errors"

	"sdaasverify/internal/manifest"
)

const (
	CodeKeyNotFound = "KEY_NOT_FOUND"
	CodeKeyInactive = "KEY_INACTIVE"
)

// Verify resolves the envelope's signature.key_id in d and verifies the
// envelope with that key. A key that is missing or not active is a
// rejection. Envelopes that fail the shape checks are rejected before any
// key lookup.
//
// The resolved key id becomes the expected key id when expectedKeyID is
// empty.
func (d *Directory) Verify(envelope manifest.Value, expectedKeyID string) manifest.Result {
	env, err := manifest.ValidateEnvelope(envelope)
	if err != nil {
		return manifest.Verify(envelope, "", expectedKeyID)
	}
	keyID, _ := env.Signature.StringKeyID()

	pem, err := d.Resolve(keyID)
	if err != nil {
		rej := manifest.Rejected{KeyID: env.Signature.KeyID, Reason: err.Error(), Code: CodeKeyNotFound}
		if errors.Is(err, ErrKeyInactive) {
			k, _ := d.Lookup(keyID)
			alg := k.Algorithm
			rej.Alg = &alg
			rej.Code = CodeKeyInactive
		}
		return rej
	}

	if expectedKeyID == "" {
		expectedKeyID = keyID
	}
	return manifest.Verify(envelope, pem, expectedKeyID)
}
