package manifest

import (
	"bytes"
	"errors"
	"math"
	"sort"
	"strconv"
	"unicode/utf8"

	"github.com/gowebpki/jcs"
)

// Canonicalize returns the bytes the authority signs for payload:
// StripNulls, then the stable encoding produced by Encode.
//
// The encoding mirrors the signer's json-stable-stringify output:
//   - object keys sorted byte-wise, no insignificant whitespace
//   - strings use minimal JSON escaping; non-ASCII is emitted as UTF-8
//   - numbers use the ECMAScript shortest round-trip form (1.0 -> 1, 1e21 -> 1e+21, -0 -> 0)
func Canonicalize(payload Object) []byte {
	return Encode(StripNulls(payload))
}

// StripNulls drops every object member whose value is null, at any depth.
// Array elements are never removed; a null element stays null.
func StripNulls(v Value) Value {
	switch x := v.(type) {
	case Object:
		out := make(Object, len(x))
		for k, child := range x {
			if isNull(child) {
				continue
			}
			out[k] = StripNulls(child)
		}
		return out
	case Array:
		out := make(Array, len(x))
		for i, child := range x {
			out[i] = StripNulls(child)
		}
		return out
	default:
		return v
	}
}

// Encode renders v with the stable encoding described on Canonicalize,
// without stripping nulls.
func Encode(v Value) []byte {
	var buf bytes.Buffer
	writeCanonical(&buf, v)
	return buf.Bytes()
}

func writeCanonical(buf *bytes.Buffer, v Value) {
	switch x := v.(type) {
	case nil, Null:
		buf.WriteString("null")
	case Bool:
		if x {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Number:
		buf.WriteString(formatNumber(x))
	case String:
		writeString(buf, string(x))
	case Array:
		buf.WriteByte('[')
		for i, it := range x {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonical(buf, it)
		}
		buf.WriteByte(']')
	case Object:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeString(buf, k)
			buf.WriteByte(':')
			writeCanonical(buf, x[k])
		}
		buf.WriteByte('}')
	default:
		// Foreign Value implementations have no defined encoding.
		buf.WriteString("null")
	}
}

// formatNumber converts the literal to an IEEE-754 double and renders it the
// way JSON.stringify does. Values that are not finite (overflowing literals)
// or are not number literals at all render as null, as JSON.stringify does
// for Infinity and NaN.
func formatNumber(n Number) string {
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return "null"
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return "null"
	}
	s, err := jcs.NumberToJSON(f)
	if err != nil {
		return "null"
	}
	return s
}

const hexDigits = "0123456789abcdef"

func writeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for i := 0; i < len(s); {
		c := s[i]
		if c < utf8.RuneSelf {
			switch {
			case c == '"':
				buf.WriteString(`\"`)
			case c == '\\':
				buf.WriteString(`\\`)
			case c == '\b':
				buf.WriteString(`\b`)
			case c == '\f':
				buf.WriteString(`\f`)
			case c == '\n':
				buf.WriteString(`\n`)
			case c == '\r':
				buf.WriteString(`\r`)
			case c == '\t':
				buf.WriteString(`\t`)
			case c < 0x20:
				buf.WriteString(`\u00`)
				buf.WriteByte(hexDigits[c>>4])
				buf.WriteByte(hexDigits[c&0xf])
			default:
				buf.WriteByte(c)
			}
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune(utf8.RuneError)
		} else {
			buf.WriteString(s[i : i+size])
		}
		i += size
	}
	buf.WriteByte('"')
}
