// Package bundle verifies offline manifest bundles: a directory or zip
// holding manifest.json plus the key material needed to check it.
package bundle

import (
	"os"
	"strings"

	"sdaasverify/internal/keydir"
	"sdaasverify/internal/manifest"
)

const (
	ManifestFile    = "manifest.json"
	PublicKeyFile   = "public_key.pem"
	KeypairFile     = "keypair.json"
	SigningKeysFile = "signing-keys.json"
)

// KeypairPEM extracts public_key_pem from a keypair.json document.
func KeypairPEM(b []byte) (string, error) {
	v, err := manifest.ParseJSON(b)
	if err != nil {
		return "", manifest.Contextf(err, "keypair")
	}
	obj, ok := v.(manifest.Object)
	if !ok {
		return "", manifest.Errf("KEYPAIR_TYPE", "keypair must be an object")
	}
	pem, ok := obj["public_key_pem"].(manifest.String)
	if !ok || pem == "" {
		return "", manifest.Errf("KEYPAIR_MISSING_FIELD", "no 'public_key_pem' field in keypair")
	}
	return string(pem), nil
}

// LoadKeyFile reads a public key from a .json keypair file or a PEM file.
func LoadKeyFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", manifest.Wrap("KEY_FILE_READ", err, "failed to read key file")
	}
	if strings.HasSuffix(path, ".json") {
		pem, err := KeypairPEM(b)
		return pem, manifest.Contextf(err, "%s", path)
	}
	return string(b), nil
}

// VerifyBundle verifies manifest.json in the bundle at path. The key comes
// from public_key.pem, keypair.json or signing-keys.json, in that order of
// preference; with signing-keys.json the envelope's key_id must name an
// active key.
//
// I/O and parse failures are returned as errors. Everything that concerns the
// manifest itself, including an unusable key, is a Rejected result.
func VerifyBundle(path string, expectedKeyID string) (manifest.Result, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	mb, err := r.ReadFile(ManifestFile)
	if err != nil {
		return nil, manifest.Wrap("BUNDLE_MANIFEST_READ", err, "manifest.json missing or unreadable")
	}
	env, err := manifest.ParseJSON(mb)
	if err != nil {
		return nil, manifest.Contextf(err, "manifest.json")
	}

	switch {
	case r.HasFile(PublicKeyFile):
		pem, err := r.ReadFile(PublicKeyFile)
		if err != nil {
			return nil, manifest.Wrap("BUNDLE_KEY_READ", err, "public_key.pem unreadable")
		}
		return manifest.Verify(env, string(pem), expectedKeyID), nil

	case r.HasFile(KeypairFile):
		kb, err := r.ReadFile(KeypairFile)
		if err != nil {
			return nil, manifest.Wrap("BUNDLE_KEY_READ", err, "keypair.json unreadable")
		}
		pem, err := KeypairPEM(kb)
		if err != nil {
			return nil, manifest.Contextf(err, "keypair.json")
		}
		return manifest.Verify(env, pem, expectedKeyID), nil

	case r.HasFile(SigningKeysFile):
		db, err := r.ReadFile(SigningKeysFile)
		if err != nil {
			return nil, manifest.Wrap("BUNDLE_KEY_READ", err, "signing-keys.json unreadable")
		}
		dir, err := keydir.ParseDirectory(db)
		if err != nil {
			return nil, manifest.Wrap("BUNDLE_SIGNING_KEYS", err, "signing-keys.json")
		}
		return dir.Verify(env, expectedKeyID), nil
	}
	return nil, manifest.Errf("BUNDLE_KEY_MISSING", "bundle has none of %s, %s, %s", PublicKeyFile, KeypairFile, SigningKeysFile)
}
