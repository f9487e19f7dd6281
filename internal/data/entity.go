// Package data provides the entity definitions, validation pipeline, document
// repositories and CRUD services behind the admin API.
package data

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"adminconsole/internal/validator"
	"adminconsole/internal/value"

	"gopkg.in/yaml.v3"
)

// RuleKind selects the validation applied to a field.
type RuleKind string

const (
	RequiredString RuleKind = "required_string"
	RequiredNumber RuleKind = "required_number"
	OptionalNumber RuleKind = "optional_number"
)

// Default messages, shown next to the form input.
const (
	MsgRequiredNumber = "This field is required."
	MsgNotANumber     = "Must be a number."
	MsgOptionalNumber = "Must be a number or empty."
	MsgAlreadyInUse   = "This value is already in use."
)

// FieldRule declares one field of an entity.
type FieldRule struct {
	Name  string   `yaml:"name"`
	Label string   `yaml:"label,omitempty"`
	Kind  RuleKind `yaml:"kind"`
	// Range is only consulted for OptionalNumber fields.
	Range *validator.Range `yaml:"range,omitempty"`
	// Message replaces the default error message for this field.
	Message string `yaml:"message,omitempty"`
}

func (f FieldRule) numeric() bool {
	return f.Kind == RequiredNumber || f.Kind == OptionalNumber
}

func (f FieldRule) label() string {
	if f.Label != "" {
		return f.Label
	}
	if f.Name == "" {
		return ""
	}
	return strings.ToUpper(f.Name[:1]) + f.Name[1:]
}

// Entity is a field-rule table plus an optional unique field. One generic
// pipeline serves every entity; nothing is specialised per entity type.
type Entity struct {
	Name   string      `yaml:"name"`
	Unique string      `yaml:"unique,omitempty"`
	Fields []FieldRule `yaml:"fields"`
}

// ValidationResult is the outcome of Entity.Validate. On success Value holds
// the record that was validated, unchanged.
type ValidationResult struct {
	OK     bool              `json:"ok"`
	Value  value.Record      `json:"value,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
}

// FieldErrors returns the per-field messages, or nil on success.
func (r ValidationResult) FieldErrors() map[string]string {
	if r.OK {
		return nil
	}
	return r.Errors
}

// Shape returns the declared field names in declaration order.
func (e *Entity) Shape() []string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Name
	}
	return names
}

// Field returns the rule for name.
func (e *Entity) Field(name string) (FieldRule, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldRule{}, false
}

// Validate runs every field rule against rec and collects all failures.
// It never stops at the first failing field.
func (e *Entity) Validate(rec value.Record) ValidationResult {
	v := validator.New()

	for _, f := range e.Fields {
		fv := rec.Get(f.Name)

		switch f.Kind {
		case RequiredString:
			s, ok := fv.Str()
			v.Check(ok && strings.TrimSpace(s) != "", f.Name, f.message(f.label()+" is required"))

		case RequiredNumber:
			if validator.IsBlank(fv) {
				v.AddError(f.Name, f.message(MsgRequiredNumber))
			} else if !validator.IsValidNumber(fv) {
				v.AddError(f.Name, f.message(MsgNotANumber))
			}

		case OptionalNumber:
			if f.Range != nil {
				v.Check(validator.IsValidOptionalNumberWithRange(fv, *f.Range), f.Name, f.message(MsgOptionalNumber))
			} else {
				v.Check(validator.IsValidOptionalNumber(fv), f.Name, f.message(MsgOptionalNumber))
			}
		}
	}

	if !v.Valid() {
		return ValidationResult{OK: false, Errors: v.ErrorMap()}
	}
	return ValidationResult{OK: true, Value: rec}
}

func (f FieldRule) message(def string) string {
	if f.Message != "" {
		return f.Message
	}
	return def
}

// Normalize restricts rec to the declared fields. Missing fields become null
// and numbers sent for string fields are rendered back to text, so that a
// name such as "123" that a form normalizer turned into a number is still a
// valid name.
func (e *Entity) Normalize(rec value.Record) value.Record {
	out := make(value.Record, len(e.Fields))
	for _, f := range e.Fields {
		v := rec.Get(f.Name)
		switch {
		case v.IsAbsent():
			out[f.Name] = value.Null()
		case f.Kind == RequiredString && v.Kind() == value.KindNumber:
			out[f.Name] = value.String(v.String())
		default:
			out[f.Name] = v
		}
	}
	return out
}

// FromForm converts submitted form strings into an API record. String fields
// keep the trimmed text exactly as typed, so a name such as "007" is not
// turned into a number and rendered back as "7".
func (e *Entity) FromForm(form value.FormValues) value.Record {
	rec := value.FormToAPI(form.Record())
	for _, f := range e.Fields {
		if f.Kind != RequiredString {
			continue
		}
		if s, ok := form[f.Name]; ok && strings.TrimSpace(s) != "" {
			rec[f.Name] = value.String(strings.TrimSpace(s))
		}
	}
	return rec
}

// Coerce converts numeric fields that arrive as strings into numbers and
// blank strings into null. It expects a record that passed Validate.
func (e *Entity) Coerce(rec value.Record) value.Record {
	out := rec.Clone()
	for _, f := range e.Fields {
		if !f.numeric() {
			continue
		}
		v := rec.Get(f.Name)
		if v.Kind() != value.KindString {
			continue
		}
		if validator.IsBlank(v) {
			out[f.Name] = value.Null()
			continue
		}
		s, _ := v.Str()
		if n, ok := value.ParseNumber(s); ok {
			out[f.Name] = value.Number(n)
		}
	}
	return out
}

//go:embed entities.yaml
var entitiesYAML []byte

type entityFile struct {
	Entities []*Entity `yaml:"entities"`
}

// ErrInvalidEntities is returned when an entity table fails to load.
var ErrInvalidEntities = errors.New("invalid entity definitions")

// DefaultEntities returns the built-in entity tables (sets and competitions).
func DefaultEntities() ([]*Entity, error) {
	return LoadEntities(entitiesYAML)
}

// LoadEntities parses and checks a YAML entity table.
func LoadEntities(data []byte) ([]*Entity, error) {
	var file entityFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse entities: %w", err)
	}

	v := validator.New()
	seen := make(map[string]bool, len(file.Entities))

	for i, e := range file.Entities {
		key := fmt.Sprintf("entities[%d]", i)
		v.Check(e.Name != "", key+".name", "must be provided")
		v.Check(!seen[e.Name], key+".name", "must be unique")
		seen[e.Name] = true
		v.Check(len(e.Fields) > 0, key+".fields", "must declare at least one field")

		fieldSeen := make(map[string]bool, len(e.Fields))
		for j, f := range e.Fields {
			fkey := fmt.Sprintf("%s.fields[%d]", key, j)
			v.Check(f.Name != "", fkey+".name", "must be provided")
			v.Check(!fieldSeen[f.Name], fkey+".name", "must be unique")
			fieldSeen[f.Name] = true
			v.Check(validator.PermittedValue(f.Kind, RequiredString, RequiredNumber, OptionalNumber), fkey+".kind", "unknown kind "+string(f.Kind))
			v.Check(f.Range == nil || f.Kind == OptionalNumber, fkey+".range", "only allowed on optional_number")
		}

		if e.Unique != "" {
			f, ok := e.Field(e.Unique)
			v.Check(ok && f.numeric(), key+".unique", "must name a numeric field")
		}
	}

	if !v.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntities, v.ErrorMap())
	}
	return file.Entities, nil
}
