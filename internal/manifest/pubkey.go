package manifest

import (
	"crypto"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"

	"github.com/sigstore/sigstore/pkg/cryptoutils"
)

var (
	pemBeginLine = regexp.MustCompile(`(-----BEGIN [A-Z ]+-----)\s+`)
	pemEndLine   = regexp.MustCompile(`\s+(-----END [A-Z ]+-----)`)
)

// NormalizePEM repairs PEM text that went through an environment variable or
// a JSON string: literal "\n" sequences become newlines, the BEGIN and END
// markers get their own lines back, and surrounding whitespace is trimmed.
func NormalizePEM(pemText string) string {
	s := strings.ReplaceAll(pemText, `\n`, "\n")
	s = pemBeginLine.ReplaceAllString(s, "$1\n")
	s = pemEndLine.ReplaceAllString(s, "\n$1")
	return strings.TrimSpace(s)
}

// ParsePublicKey decodes a PEM SubjectPublicKeyInfo block and requires it to
// hold an Ed25519 key. Any other key algorithm is an error, never a key.
func ParsePublicKey(pemText string) (ed25519.PublicKey, error) {
	pub, err := cryptoutils.UnmarshalPEMToPublicKey([]byte(NormalizePEM(pemText)))
	if err != nil {
		return nil, Wrap(CodePublicKeyDecode, err, "invalid public key PEM")
	}
	edPub, ok := pub.(ed25519.PublicKey)
	if !ok {
		return nil, Errf(CodePublicKeyType, "Expected Ed25519 public key, got %s", keyTypeName(pub))
	}
	if len(edPub) != ed25519.PublicKeySize {
		return nil, Errf(CodePublicKeyDecode, "invalid Ed25519 public key length: %d", len(edPub))
	}
	return edPub, nil
}

func keyTypeName(pub crypto.PublicKey) string {
	switch k := pub.(type) {
	case *ecdsa.PublicKey:
		return "ECDSA"
	case *rsa.PublicKey:
		return "RSA"
	case *ecdh.PublicKey:
		if k.Curve() == ecdh.X25519() {
			return "X25519"
		}
		return "ECDH"
	default:
		return fmt.Sprintf("%T", pub)
	}
}

// decodeSignature accepts the base64 spellings signers emit in practice:
// standard or URL-safe alphabet, padded or not, with embedded whitespace.
func decodeSignature(v Value) ([]byte, error) {
	s, ok := v.(String)
	if !ok {
		return nil, Errf(CodeSignatureEncoding, "Invalid signature.value: expected base64 string")
	}
	clean := strings.Join(strings.Fields(string(s)), "")
	clean = strings.TrimRight(clean, "=")
	clean = strings.NewReplacer("-", "+", "_", "/").Replace(clean)
	sig, err := base64.RawStdEncoding.DecodeString(clean)
	if err != nil {
		return nil, Wrap(CodeSignatureBase64, err, "Invalid base64 in signature.value")
	}
	return sig, nil
}
