package manifest

import (
	"crypto/ed25519"
	"encoding/json"
)

// Result is the outcome of Verify: either Verified or Rejected.
type Result interface {
	// OK reports whether the manifest verified.
	OK() bool
	isResult()
}

// Verified means the signature was produced by the supplied key over the
// canonical payload bytes.
type Verified struct {
	Alg   string
	KeyID *string
}

// Rejected carries a human-readable Reason. Alg and KeyID are set once the
// envelope got far enough for them to be known; Code is the stable
// machine-readable class of the failure.
type Rejected struct {
	Alg    *string
	KeyID  *string
	Reason string
	Code   string
}

func (Verified) OK() bool { return true }
func (Rejected) OK() bool { return false }
func (Verified) isResult() {}
func (Rejected) isResult() {}

// Err converts the rejection into a *VerifyError.
func (r Rejected) Err() error {
	return &VerifyError{Code: r.Code, Detail: r.Reason}
}

// Report is the wire form of a Result.
type Report struct {
	Verified bool    `json:"verified"`
	Alg      *string `json:"alg,omitempty"`
	KeyID    *string `json:"key_id,omitempty"`
	Reason   string  `json:"reason,omitempty"`
}

// ReportOf flattens a Result into its wire form.
func ReportOf(r Result) Report {
	switch x := r.(type) {
	case Verified:
		return Report{Verified: true, Alg: strPtr(x.Alg), KeyID: x.KeyID}
	case Rejected:
		return Report{Alg: x.Alg, KeyID: x.KeyID, Reason: x.Reason}
	case *Rejected:
		return ReportOf(*x)
	}
	return Report{Reason: "unknown result"}
}

// Result turns a decoded Report back into a Result. The rejection code is
// not part of the wire form and comes back empty.
func (r Report) Result() Result {
	if r.Verified {
		alg := ""
		if r.Alg != nil {
			alg = *r.Alg
		}
		return Verified{Alg: alg, KeyID: r.KeyID}
	}
	return Rejected{Alg: r.Alg, KeyID: r.KeyID, Reason: r.Reason}
}

func (v Verified) MarshalJSON() ([]byte, error) { return json.Marshal(ReportOf(v)) }
func (r Rejected) MarshalJSON() ([]byte, error) { return json.Marshal(ReportOf(r)) }

// Verify checks a manifest envelope against a PEM-encoded Ed25519 public key.
// When expectedKeyID is non-empty, signature.key_id must be a string equal to
// it exactly.
//
// Verify never panics or returns an error for malformed input: every failure
// is reported as a Rejected result. Checks run in order and stop at the first
// failure: envelope shape, key id, then key decoding, signature decoding and
// the Ed25519 check over Canonicalize(payload).
func Verify(envelope Value, publicKeyPEM string, expectedKeyID string) Result {
	env, rej := checkShape(envelope)
	if rej != nil {
		return *rej
	}
	sig := env.Signature
	alg := strPtr(sig.Alg)
	reject := func(code, reason string) Result {
		return Rejected{Alg: alg, KeyID: sig.KeyID, Reason: reason, Code: code}
	}

	if id, ok := sig.StringKeyID(); expectedKeyID != "" && (!ok || id != expectedKeyID) {
		return reject(CodeKeyIDMismatch, "key_id mismatch: expected '"+expectedKeyID+"', got '"+sig.keyIDText+"'")
	}

	pub, err := ParsePublicKey(publicKeyPEM)
	if err != nil {
		return reject(CodeOf(err), messageOf(err))
	}
	sigBytes, err := decodeSignature(sig.Value)
	if err != nil {
		return reject(CodeOf(err), messageOf(err))
	}

	msg := Canonicalize(env.Payload)
	if !ed25519.Verify(pub, msg, sigBytes) {
		return reject(CodeSignatureInvalid, "Signature verification failed")
	}
	return Verified{Alg: sig.Alg, KeyID: sig.KeyID}
}

// VerifyJSON parses data and verifies it with Verify. Unparseable input is
// rejected like any other malformed envelope.
func VerifyJSON(data []byte, publicKeyPEM string, expectedKeyID string) Result {
	v, err := ParseJSON(data)
	if err != nil {
		return Rejected{Code: CodeOf(err), Reason: "Envelope is not valid JSON: " + messageOf(err)}
	}
	return Verify(v, publicKeyPEM, expectedKeyID)
}
