package manifest

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
)

type VectorFile struct {
	Format  string       `json:"format"`
	Version int          `json:"version"`
	Note    string       `json:"note"`
	Cases   []VectorCase `json:"cases"`
}

// VectorCase is one golden case. Type "canonical" uses InputFile,
// ExpectedFile and ExpectedSHA256; type "verify" uses the envelope, key and
// expectation fields.
type VectorCase struct {
	Name           string `json:"name"`
	Type           string `json:"type"`
	InputFile      string `json:"input_file"`
	ExpectedFile   string `json:"expected_file"`
	ExpectedSHA256 string `json:"expected_sha256"`
	EnvelopeFile   string `json:"envelope_file"`
	PublicKeyFile  string `json:"public_key_file"`
	ExpectedKeyID  string `json:"expected_key_id"`
	ExpectVerified bool   `json:"expect_verified"`
	ExpectReason   string `json:"expect_reason"`
	ExpectCode     string `json:"expect_code"`
}

type VectorFailure struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

type VectorResult struct {
	Passed   int             `json:"passed"`
	Failed   int             `json:"failed"`
	Failures []VectorFailure `json:"failures,omitempty"`
}

// VerifyVectorsDir runs every case in dir/vectors.json. Case failures are
// collected in the result; the returned error is non-nil if any case failed
// or the vector file itself is unusable.
func VerifyVectorsDir(dir string) (VectorResult, error) {
	b, err := os.ReadFile(filepath.Join(dir, "vectors.json"))
	if err != nil {
		return VectorResult{}, Wrap("VECTORS_READ", err, "failed to read vectors.json")
	}
	var vf VectorFile
	if err := json.Unmarshal(b, &vf); err != nil {
		return VectorResult{}, Wrap("VECTORS_STRUCTURE", err, "vectors.json")
	}
	if len(vf.Cases) == 0 {
		return VectorResult{}, Errf("VECTORS_STRUCTURE", "vectors.json has no cases")
	}

	res := VectorResult{}
	for _, c := range vf.Cases {
		if err := RunVectorCase(dir, c); err != nil {
			res.Failed++
			detail := err.Error()
			if ve, ok := AsVerifyError(err); ok {
				detail = ve.Message()
			}
			res.Failures = append(res.Failures, VectorFailure{Name: c.Name, Type: c.Type, Code: CodeOf(err), Detail: detail})
		} else {
			res.Passed++
		}
	}
	if res.Failed > 0 {
		return res, Errf("VECTORS_CASES_FAILED", "%d vector case(s) failed", res.Failed)
	}
	return res, nil
}

// RunVectorCase runs a single case with file paths resolved against dir.
func RunVectorCase(dir string, c VectorCase) error {
	switch c.Type {
	case "canonical":
		obj, err := readVectorJSON(dir, c.InputFile)
		if err != nil {
			return err
		}
		payload, ok := obj.(Object)
		if !ok {
			return Errf("VECTOR_INPUT_TYPE", "%s: canonical input must be an object", c.InputFile)
		}
		got := Canonicalize(payload)
		if c.ExpectedFile != "" {
			want, err := os.ReadFile(filepath.Join(dir, c.ExpectedFile))
			if err != nil {
				return Wrap("VECTOR_INPUT_READ", err, "failed to read expected file: "+c.ExpectedFile)
			}
			if !bytes.Equal(got, want) {
				return Errf("VECTOR_CANONICAL_MISMATCH", "canonical bytes mismatch: got %s", got)
			}
		}
		if c.ExpectedSHA256 != "" && SHA256Hex(got) != c.ExpectedSHA256 {
			return Errf("VECTOR_DIGEST_MISMATCH", "sha256 mismatch: got %s", SHA256Hex(got))
		}
		return nil

	case "verify":
		env, err := readVectorJSON(dir, c.EnvelopeFile)
		if err != nil {
			return err
		}
		pemBytes, err := os.ReadFile(filepath.Join(dir, c.PublicKeyFile))
		if err != nil {
			return Wrap("VECTOR_INPUT_READ", err, "failed to read key file: "+c.PublicKeyFile)
		}
		res := Verify(env, string(pemBytes), c.ExpectedKeyID)
		if res.OK() != c.ExpectVerified {
			return Errf("VECTOR_OUTCOME_MISMATCH", "expected verified=%v, got %+v", c.ExpectVerified, ReportOf(res))
		}
		if rej, ok := res.(Rejected); ok {
			if c.ExpectReason != "" && rej.Reason != c.ExpectReason {
				return Errf("VECTOR_REASON_MISMATCH", "reason %q, want %q", rej.Reason, c.ExpectReason)
			}
			if c.ExpectCode != "" && rej.Code != c.ExpectCode {
				return Errf("VECTOR_CODE_MISMATCH", "code %s, want %s", rej.Code, c.ExpectCode)
			}
		}
		return nil

	default:
		return Errf("VECTORS_UNKNOWN_TYPE", "unknown vector type: %s", c.Type)
	}
}

func readVectorJSON(dir, name string) (Value, error) {
	b, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return nil, Wrap("VECTOR_INPUT_READ", err, "failed to read input file: "+name)
	}
	v, err := ParseJSON(b)
	if err != nil {
		return nil, Contextf(err, "vector input %s", name)
	}
	return v, nil
}
