package model

import "fmt"

// ValidationError reports an input that violates a model invariant.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("model: invalid %s %v: %s", e.Field, e.Value, e.Reason)
}
