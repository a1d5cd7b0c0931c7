package manifest

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a JSON value tree. The concrete type is always one of Null, Bool,
// Number, String, Array or Object. A nil Value inside an Array or Object is
// treated as Null.
type Value interface {
	Kind() Kind
}

// Null is the JSON null literal.
type Null struct{}

type Bool bool

// Number keeps the literal text of a JSON number exactly as it was parsed, so
// that no precision is lost before canonical rendering.
type Number string

type String string

type Array []Value

type Object map[string]Value

func (Null) Kind() Kind   { return KindNull }
func (Bool) Kind() Kind   { return KindBool }
func (Number) Kind() Kind { return KindNumber }
func (String) Kind() Kind { return KindString }
func (Array) Kind() Kind  { return KindArray }
func (Object) Kind() Kind { return KindObject }

// MarshalJSON implementations render through the stable encoder so Values
// can be embedded in ordinary encoding/json structs. They do not strip nulls.
func (v Null) MarshalJSON() ([]byte, error)   { return Encode(v), nil }
func (v Bool) MarshalJSON() ([]byte, error)   { return Encode(v), nil }
func (v Number) MarshalJSON() ([]byte, error) { return Encode(v), nil }
func (v String) MarshalJSON() ([]byte, error) { return Encode(v), nil }
func (v Array) MarshalJSON() ([]byte, error)  { return Encode(v), nil }
func (v Object) MarshalJSON() ([]byte, error) { return Encode(v), nil }

// Get returns the member k and whether it is present. A member that is
// present with a null value reports true.
func (o Object) Get(k string) (Value, bool) {
	v, ok := o[k]
	if ok && v == nil {
		return Null{}, true
	}
	return v, ok
}

// ParseJSON parses a single JSON document into a Value. Numbers are kept as
// their literal text so they round-trip deterministically.
func ParseJSON(b []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, Wrap(CodeJSONParse, err, "invalid JSON")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, Errf(CodeJSONParse, "invalid JSON: trailing data after top-level value")
	}
	return FromAny(raw)
}

// FromAny converts the output of encoding/json (decoded into any) into a
// Value. Both json.Number and float64 numbers are accepted.
func FromAny(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case string:
		return String(x), nil
	case json.Number:
		return Number(x.String()), nil
	case float64:
		return Number(strconv.FormatFloat(x, 'g', -1, 64)), nil
	case int:
		return Number(strconv.Itoa(x)), nil
	case int64:
		return Number(strconv.FormatInt(x, 10)), nil
	case []any:
		out := make(Array, len(x))
		for i, it := range x {
			cv, err := FromAny(it)
			if err != nil {
				return nil, Contextf(err, "[%d]", i)
			}
			out[i] = cv
		}
		return out, nil
	case map[string]any:
		out := make(Object, len(x))
		for k, it := range x {
			cv, err := FromAny(it)
			if err != nil {
				return nil, Contextf(err, "%q", k)
			}
			out[k] = cv
		}
		return out, nil
	default:
		return nil, Errf(CodeNonJSONType, "non-JSON type encountered: %T", v)
	}
}

func isNull(v Value) bool {
	return v == nil || v.Kind() == KindNull
}
