package service

import "fmt"

// ValidationError rejects a payload before anything is written.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Missing required field: %s", e.Field)
}
