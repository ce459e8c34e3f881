// Package event holds what every event storage backend shares: the table layout
// and the error taxonomy the collector uses to pick between fallback and failure.
package event

import (
	"errors"
	"fmt"
)

const Table = "analytics_events"

// StoreError reports that a backend could not serve a request (connection refused,
// timeout, bad credentials). The collector recovers from it with the in-process buffer.
type StoreError struct {
	Store string
	Op    string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Store, e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// SchemaError reports that the target table was missing and could not be created
// (or the write still failed after creating it).
type SchemaError struct {
	Store string
	Err   error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: schema: %v", e.Store, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

func IsSchemaError(err error) bool {
	var schemaErr *SchemaError
	return errors.As(err, &schemaErr)
}
