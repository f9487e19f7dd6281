// Package value models a single field value as it travels between the form
// layer, the JSON API and the document store, and converts records between
// those three representations.
//
// Each layer spells "blank" differently: forms use the empty string, the API
// uses null and storage omits the key entirely. The conversions in this
// package are the only place that translates between them.
package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	// KindAbsent is the zero Kind: the field is not present at all.
	KindAbsent Kind = iota
	// KindNull is an explicit JSON null.
	KindNull
	KindNumber
	KindString
	KindBool
	// KindRaw carries any other JSON (objects, arrays) verbatim.
	KindRaw
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindNull:
		return "null"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindRaw:
		return "raw"
	default:
		return "unknown"
	}
}

// Value is an immutable tagged union. The zero Value is absent.
type Value struct {
	kind Kind
	num  float64
	str  string
	b    bool
	raw  json.RawMessage
}

// Null returns an explicit null value.
func Null() Value { return Value{kind: KindNull} }

// Number returns a numeric value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Raw wraps arbitrary JSON. The bytes are copied.
func Raw(msg json.RawMessage) Value {
	return Value{kind: KindRaw, raw: append(json.RawMessage(nil), msg...)}
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsAbsent reports whether v is the zero Value.
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// IsNull reports whether v is an explicit null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Float returns the number held by v.
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// Str returns the string held by v.
func (v Value) Str() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// String renders v the way a form input would display it. Absent and null
// values render as the empty string.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return FormatNumber(v.num)
	case KindString:
		return v.str
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindRaw:
		return string(v.raw)
	default:
		return ""
	}
}

// GoString is used by %#v and in test failure output.
func (v Value) GoString() string {
	switch v.kind {
	case KindString:
		return fmt.Sprintf("value.String(%q)", v.str)
	case KindNumber:
		return fmt.Sprintf("value.Number(%s)", FormatNumber(v.num))
	case KindBool:
		return fmt.Sprintf("value.Bool(%t)", v.b)
	case KindRaw:
		return fmt.Sprintf("value.Raw(%s)", v.raw)
	case KindNull:
		return "value.Null()"
	default:
		return "value.Value{}"
	}
}

// Equal reports whether v and o hold the same variant and payload.
// Raw values compare by their compacted JSON text.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == o.num
	case KindString:
		return v.str == o.str
	case KindBool:
		return v.b == o.b
	case KindRaw:
		var a, b bytes.Buffer
		if json.Compact(&a, v.raw) != nil || json.Compact(&b, o.raw) != nil {
			return bytes.Equal(v.raw, o.raw)
		}
		return bytes.Equal(a.Bytes(), b.Bytes())
	default:
		return true
	}
}

// MarshalJSON encodes absent and null values as JSON null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return nil, fmt.Errorf("value: cannot encode non-finite number %v", v.num)
		}
		return json.Marshal(v.num)
	case KindString:
		return json.Marshal(v.str)
	case KindBool:
		return json.Marshal(v.b)
	case KindRaw:
		if len(v.raw) == 0 {
			return []byte("null"), nil
		}
		return v.raw, nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes any JSON value. A literal null becomes KindNull.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("value: empty JSON input")
	}

	switch c := data[0]; {
	case c == 'n':
		*v = Null()
	case c == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
	case c == 't' || c == 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
	case c == '-' || (c >= '0' && c <= '9'):
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		*v = Number(f)
	default:
		if !json.Valid(data) {
			return fmt.Errorf("value: invalid JSON %q", data)
		}
		*v = Raw(data)
	}
	return nil
}

// ParseNumber parses s after trimming surrounding whitespace and reports
// whether it denotes a finite number. Empty input is not a number. Besides
// decimal notation it accepts unsigned 0x, 0o and 0b integer literals;
// hexadecimal floats such as "0x1p4" are rejected.
func ParseNumber(s string) (float64, bool) {
	t := strings.TrimSpace(s)
	if t == "" || strings.ContainsRune(t, '_') {
		return 0, false
	}

	if len(t) > 2 && t[0] == '0' {
		if base, ok := integerBase(t[1]); ok {
			n, ok := new(big.Int).SetString(t[2:], base)
			if !ok || t[2] == '+' || t[2] == '-' {
				return 0, false
			}
			f, _ := new(big.Float).SetInt(n).Float64()
			return f, !math.IsInf(f, 0)
		}
	}
	if strings.ContainsAny(t, "xX") {
		return 0, false
	}

	f, err := strconv.ParseFloat(t, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func integerBase(prefix byte) (int, bool) {
	switch prefix {
	case 'x', 'X':
		return 16, true
	case 'o', 'O':
		return 8, true
	case 'b', 'B':
		return 2, true
	}
	return 0, false
}

// FormatNumber renders f as the shortest decimal that parses back to f,
// switching to exponent notation below 1e-6 and from 1e21 upwards.
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}

	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		mantissa, exp, _ := strings.Cut(s, "e")
		digits := strings.TrimLeft(exp[1:], "0")
		if digits == "" {
			digits = "0"
		}
		return mantissa + "e" + exp[:1] + digits
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
