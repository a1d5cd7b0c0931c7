package manifest

import "strconv"

func optString(o Object, k string) (string, bool) {
	if v, ok := o[k]; ok {
		if s, ok2 := v.(String); ok2 {
			return string(s), true
		}
	}
	return "", false
}

func optObject(o Object, k string) (Object, bool) {
	if v, ok := o[k]; ok {
		if m, ok2 := v.(Object); ok2 {
			return m, true
		}
	}
	return nil, false
}

// display renders a member for use inside a reason string: strings verbatim,
// absent or null as "null", anything else in its JSON form.
func display(o Object, k string) string {
	v, ok := o.Get(k)
	if !ok {
		return "null"
	}
	if s, isStr := v.(String); isStr {
		return string(s)
	}
	return string(Encode(v))
}

// truthy follows JSON-ish truthiness: null, false, 0, "", [] and {} are false.
func truthy(v Value) bool {
	switch x := v.(type) {
	case nil, Null:
		return false
	case Bool:
		return bool(x)
	case Number:
		f, err := strconv.ParseFloat(string(x), 64)
		return err != nil || f != 0
	case String:
		return x != ""
	case Array:
		return len(x) > 0
	case Object:
		return len(x) > 0
	}
	return true
}

func strPtr(s string) *string { return &s }
