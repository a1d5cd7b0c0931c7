package manifest

const (
	// SchemaVersion is the only envelope schema this verifier understands.
	SchemaVersion = "sdaas.manifest.v1"
	// AlgEd25519 is the only signature algorithm that can be checked
	// independently of the authority.
	AlgEd25519 = "Ed25519"
)

// Envelope is the shape-validated view of a signed manifest. Only
// ValidateEnvelope constructs one, so holding an Envelope means every field
// below passed the shape checks.
type Envelope struct {
	Payload   Object
	Signature Signature
}

// Signature is the validated signature block.
type Signature struct {
	Alg string
	// Value is the raw signature.value member; it is truthy but its
	// encoding is only checked during verification.
	Value Value
	// KeyID is key_id as reported in results: the string itself, or the JSON
	// text of a non-string value. It is nil when key_id is absent or null.
	KeyID *string

	keyIDText   string
	keyIDString bool
}

// StringKeyID returns key_id only when it is a JSON string. Key id matching
// and key lookup never match a non-string key_id.
func (s Signature) StringKeyID() (string, bool) {
	if !s.keyIDString {
		return "", false
	}
	return *s.KeyID, true
}

// ValidateEnvelope runs the shape checks that must pass before any
// verification work is attempted. The returned error is a *VerifyError whose
// message is the rejection reason.
func ValidateEnvelope(v Value) (*Envelope, error) {
	env, rej := checkShape(v)
	if rej != nil {
		return nil, rej.Err()
	}
	return env, nil
}

func checkShape(v Value) (*Envelope, *Rejected) {
	e, ok := v.(Object)
	if !ok {
		return nil, &Rejected{Code: CodeEnvelopeNotObject, Reason: "Envelope is not an object"}
	}
	if sv, _ := optString(e, "schema_version"); sv != SchemaVersion {
		return nil, &Rejected{
			Code:   CodeSchemaVersionUnknown,
			Reason: "Unknown schema_version: " + display(e, "schema_version"),
		}
	}
	payload, ok := optObject(e, "payload")
	if !ok {
		return nil, &Rejected{Code: CodePayloadInvalid, Reason: "Missing or invalid payload"}
	}
	sig, ok := optObject(e, "signature")
	if !ok {
		return nil, &Rejected{Code: CodeSignatureMissing, Reason: "Missing signature object"}
	}
	if alg, _ := optString(sig, "alg"); alg != AlgEd25519 {
		r := &Rejected{
			Code:   CodeAlgorithmUnsupported,
			Reason: "Unsupported algorithm: " + display(sig, "alg") + ". Only Ed25519 is independently verifiable.",
		}
		if algValue, present := sig.Get("alg"); present && !isNull(algValue) {
			r.Alg = strPtr(display(sig, "alg"))
		}
		return nil, r
	}
	value, _ := sig.Get("value")
	if !truthy(value) {
		return nil, &Rejected{Code: CodeSignatureValueMissing, Reason: "Missing signature.value"}
	}

	out := &Envelope{
		Payload: payload,
		Signature: Signature{
			Alg:       AlgEd25519,
			Value:     value,
			keyIDText: display(sig, "key_id"),
		},
	}
	if keyID, ok := optString(sig, "key_id"); ok {
		out.Signature.KeyID = &keyID
		out.Signature.keyIDString = true
	} else if v, present := sig.Get("key_id"); present && !isNull(v) {
		out.Signature.KeyID = strPtr(string(Encode(v)))
	}
	return out, nil
}
