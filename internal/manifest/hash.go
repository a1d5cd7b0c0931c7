package manifest

import (
	"crypto/sha256"
	"encoding/hex"
)

// SHA256Hex returns lowercase hex SHA-256 digest.
func SHA256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// PayloadDigest is the hex SHA-256 of the canonical payload bytes, the value
// a cert.v1 payload records as certificate_payload_sha256.
func PayloadDigest(payload Object) string {
	return SHA256Hex(Canonicalize(payload))
}
