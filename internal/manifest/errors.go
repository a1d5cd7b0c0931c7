package manifest

import (
	"errors"
	"fmt"
)

// Stable rejection and failure codes. Reasons are for humans; codes are what
// tooling should branch on.
const (
	CodeJSONParse             = "JSON_PARSE_ERROR"
	CodeNonJSONType           = "VALUE_NONJSON_TYPE"
	CodeEnvelopeNotObject     = "ENVELOPE_NOT_OBJECT"
	CodeSchemaVersionUnknown  = "SCHEMA_VERSION_UNKNOWN"
	CodePayloadInvalid        = "PAYLOAD_INVALID"
	CodeSignatureMissing      = "SIGNATURE_MISSING"
	CodeAlgorithmUnsupported  = "ALGORITHM_UNSUPPORTED"
	CodeSignatureValueMissing = "SIGNATURE_VALUE_MISSING"
	CodeKeyIDMismatch         = "KEY_ID_MISMATCH"
	CodePublicKeyDecode       = "PUBLIC_KEY_DECODE"
	CodePublicKeyType         = "PUBLIC_KEY_TYPE"
	CodeSignatureEncoding     = "SIGNATURE_ENCODING"
	CodeSignatureBase64       = "SIGNATURE_BASE64"
	CodeSignatureInvalid      = "SIGNATURE_INVALID"
)

// VerifyError is a structured error with a stable machine-readable Code.
// Detail is human-readable and may include context.
// Cause may wrap an underlying error.
type VerifyError struct {
	Code   string
	Detail string
	Cause  error
}

func (e *VerifyError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Code + ": " + e.Message()
}

// Message is the error text without the code prefix.
func (e *VerifyError) Message() string {
	switch {
	case e.Cause != nil && e.Detail != "":
		return fmt.Sprintf("%s: %v", e.Detail, e.Cause)
	case e.Cause != nil:
		return e.Cause.Error()
	case e.Detail != "":
		return e.Detail
	}
	return e.Code
}

func (e *VerifyError) Unwrap() error { return e.Cause }

// Errf creates a VerifyError with formatted detail.
func Errf(code string, format string, args ...any) error {
	return &VerifyError{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// Wrap wraps an underlying error with a stable code and detail.
func Wrap(code string, err error, detail string) error {
	if err == nil {
		return nil
	}
	return &VerifyError{Code: code, Detail: detail, Cause: err}
}

// Contextf prefixes VerifyError detail with formatted context while preserving the original code.
// If err is not a VerifyError, it wraps it as UNKNOWN_ERROR.
func Contextf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	ctx := fmt.Sprintf(format, args...)
	if ve, ok := AsVerifyError(err); ok {
		detail := ve.Detail
		if detail == "" {
			detail = ve.Code
		}
		return &VerifyError{Code: ve.Code, Detail: ctx + ": " + detail, Cause: ve.Cause}
	}
	return &VerifyError{Code: "UNKNOWN_ERROR", Detail: ctx, Cause: err}
}

// AsVerifyError finds a VerifyError in the unwrap chain.
func AsVerifyError(err error) (*VerifyError, bool) {
	if err == nil {
		return nil, false
	}
	var ve *VerifyError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// CodeOf returns the stable error code for err, or UNKNOWN_ERROR.
func CodeOf(err error) string {
	if ve, ok := AsVerifyError(err); ok && ve.Code != "" {
		return ve.Code
	}
	if err == nil {
		return "OK"
	}
	return "UNKNOWN_ERROR"
}

// messageOf is the reason text reported for err inside a Rejected result.
func messageOf(err error) string {
	if ve, ok := AsVerifyError(err); ok {
		return ve.Message()
	}
	return err.Error()
}
