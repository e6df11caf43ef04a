package config

import "fmt"

// FieldError carries the field path and failure reason so the CLI can point
// users at the offending setting.
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// newFieldError builds an error holding the field path and reason.
func newFieldError(field, reason string) error {
	return FieldError{Field: field, Reason: reason}
}
