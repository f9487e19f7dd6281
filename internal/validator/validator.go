// Package validator provides field-level error collection and the blank/number
// predicates shared by form-side and server-side validation.
// Implements field-specific error collection following "Let's Go Further" patterns.
package validator

import (
	"slices"
)

// Validator collects one error message per field.
// Designed for single-request validation (not concurrent across requests).
type Validator struct {
	// errors stores field-specific validation error messages
	errors map[string]string
}

// New creates and returns a new Validator instance with empty error state.
func New() *Validator {
	return &Validator{
		errors: make(map[string]string),
	}
}

// Valid returns true if the validator contains no validation errors.
func (v *Validator) Valid() bool {
	return len(v.errors) == 0
}

// AddError adds a field-specific error message to the validator.
// If an error already exists for the field, it will be overwritten.
func (v *Validator) AddError(key, message string) {
	if v.errors == nil {
		v.errors = make(map[string]string)
	}
	v.errors[key] = message
}

// Check evaluates a condition and adds an error message if the condition is false.
// This is the primary method for performing validation checks.
func (v *Validator) Check(condition bool, key, message string) {
	if !condition {
		v.AddError(key, message)
	}
}

// ErrorMap returns a copy of the errors map for safe external access.
// Returns nil when there are no errors.
func (v *Validator) ErrorMap() map[string]string {
	if len(v.errors) == 0 {
		return nil
	}

	errorsCopy := make(map[string]string, len(v.errors))
	for key, message := range v.errors {
		errorsCopy[key] = message
	}
	return errorsCopy
}

// PermittedValue returns true if value is contained in the list of permitted values.
func PermittedValue[T comparable](value T, permittedValues ...T) bool {
	return slices.Contains(permittedValues, value)
}
