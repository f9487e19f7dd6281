package validator

import (
	"math"
	"strings"

	"adminconsole/internal/value"
)

// IsBlank reports whether v is the "no value" state of a field: absent, null,
// or a string that trims to empty. Zero is not blank.
func IsBlank(v value.Value) bool {
	switch v.Kind() {
	case value.KindAbsent, value.KindNull:
		return true
	case value.KindString:
		s, _ := v.Str()
		return strings.TrimSpace(s) == ""
	default:
		return false
	}
}

// IsValidNumber reports whether v is a finite number or a string that parses
// to one after trimming. A whitespace-only string is not a valid number;
// callers that accept blank must check IsBlank first.
func IsValidNumber(v value.Value) bool {
	_, ok := numberOf(v)
	return ok
}

// IsValidOptionalNumber reports whether v is blank or a valid number.
func IsValidOptionalNumber(v value.Value) bool {
	return IsBlank(v) || IsValidNumber(v)
}

// Range bounds a number. Nil bounds, and bounds that are not finite, are not
// checked. Min and Max are inclusive; MinExclusive and MaxExclusive are not.
type Range struct {
	Min          *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	MinExclusive *float64 `yaml:"min_exclusive,omitempty" json:"min_exclusive,omitempty"`
	Max          *float64 `yaml:"max,omitempty" json:"max,omitempty"`
	MaxExclusive *float64 `yaml:"max_exclusive,omitempty" json:"max_exclusive,omitempty"`
}

// Contains reports whether n satisfies every bound set on r.
func (r Range) Contains(n float64) bool {
	if bound(r.Min) && n < *r.Min {
		return false
	}
	if bound(r.MinExclusive) && n <= *r.MinExclusive {
		return false
	}
	if bound(r.Max) && n > *r.Max {
		return false
	}
	if bound(r.MaxExclusive) && n >= *r.MaxExclusive {
		return false
	}
	return true
}

// IsValidOptionalNumberWithRange reports whether v is blank, or a valid
// number inside r.
func IsValidOptionalNumberWithRange(v value.Value, r Range) bool {
	if IsBlank(v) {
		return true
	}
	n, ok := numberOf(v)
	if !ok {
		return false
	}
	return r.Contains(n)
}

// Float returns a pointer to f, for building a Range literal.
func Float(f float64) *float64 {
	return &f
}

func bound(b *float64) bool {
	return b != nil && !math.IsNaN(*b) && !math.IsInf(*b, 0)
}

func numberOf(v value.Value) (float64, bool) {
	switch v.Kind() {
	case value.KindNumber:
		n, _ := v.Float()
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case value.KindString:
		s, _ := v.Str()
		return value.ParseNumber(s)
	default:
		return 0, false
	}
}
