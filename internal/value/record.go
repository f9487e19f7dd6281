package value

import (
	"strings"
)

// Record is a flat field name to value map. Depending on where it sits in
// the pipeline it is in form, API or storage shape; the conversion
// functions below are the only way to move between shapes.
type Record map[string]Value

// Get returns the value of field, or an absent Value when the key is missing.
func (r Record) Get(field string) Value {
	if r == nil {
		return Value{}
	}
	return r[field]
}

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Equal reports whether r and o hold the same keys with equal values.
func (r Record) Equal(o Record) bool {
	if len(r) != len(o) {
		return false
	}
	for k, v := range r {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// FormValues is what an HTML form submits: every field is a string and a
// blank input is "".
type FormValues map[string]string

// Record lifts the form strings into a Record of string values.
func (f FormValues) Record() Record {
	out := make(Record, len(f))
	for k, s := range f {
		out[k] = String(s)
	}
	return out
}

// FormToAPI converts a record coming from a form into API shape. Strings
// that trim to empty become null, strings that parse as a finite number
// become numbers, and any other string is kept trimmed so validation can
// report it. Non-string values pass through unchanged.
func FormToAPI(in Record) Record {
	out := make(Record, len(in))
	for k, v := range in {
		s, ok := v.Str()
		if !ok {
			out[k] = v
			continue
		}
		t := strings.TrimSpace(s)
		if t == "" {
			out[k] = Null()
			continue
		}
		if n, ok := ParseNumber(t); ok {
			out[k] = Number(n)
		} else {
			out[k] = String(t)
		}
	}
	return out
}

// APIToForm renders the fields named by shape as form strings. Missing and
// null values become "". Fields of in that are not in shape are dropped.
func APIToForm(shape []string, in Record) FormValues {
	out := make(FormValues, len(shape))
	for _, field := range shape {
		v := in.Get(field)
		if v.IsAbsent() || v.IsNull() {
			out[field] = ""
			continue
		}
		out[field] = v.String()
	}
	return out
}

// APIToStorage converts an API record into storage shape by removing every
// null field, so that blank is represented by absence. All other fields,
// including unknown ones, are preserved.
func APIToStorage(in Record) Record {
	out := make(Record, len(in))
	for k, v := range in {
		if v.IsNull() || v.IsAbsent() {
			continue
		}
		out[k] = v
	}
	return out
}
