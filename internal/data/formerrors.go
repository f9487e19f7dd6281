package data

import "adminconsole/internal/value"

// FieldErrorTypeValidate is the only error type the form layer receives.
const FieldErrorTypeValidate = "validate"

// FieldError is a per-input error in the shape a form-state layer displays.
type FieldError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ErrorSource is anything that can report field-keyed messages:
// ValidationResult, MutationResult, or a plain Messages map.
type ErrorSource interface {
	FieldErrors() map[string]string
}

// Messages is a plain field-to-message map.
type Messages map[string]string

func (m Messages) FieldErrors() map[string]string {
	return m
}

// ErrorsFromAPIToForm maps messages onto the inputs of a form. Only fields
// present in values are kept, and empty messages are skipped. A successful
// result yields an empty map.
func ErrorsFromAPIToForm(values value.FormValues, src ErrorSource) map[string]FieldError {
	out := make(map[string]FieldError)
	if src == nil {
		return out
	}

	errs := src.FieldErrors()
	for key := range values {
		if msg := errs[key]; msg != "" {
			out[key] = FieldError{Type: FieldErrorTypeValidate, Message: msg}
		}
	}
	return out
}
