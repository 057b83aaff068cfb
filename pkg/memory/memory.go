// Package memory implements the Memkeep recall engine: per-user text
// memories ranked by a blend of lexical, metadata, and vector-embedding
// signals, together with the lifecycle manager that keeps every stored
// memory's embedding present and valid.
package memory

import (
	"errors"
	"fmt"
)

// Sentinel errors for the recall engine.
var (
	// ErrNotFound is returned when a memory id does not exist for the
	// requesting user. A memory owned by another user reports the same
	// error so existence never leaks across users.
	ErrNotFound = errors.New("memory: not found")

	ErrInvalidUserID     = errors.New("memory: invalid user ID")
	ErrDimensionMismatch = errors.New("memory: vector dimension mismatch")
	ErrRepairInProgress  = errors.New("memory: repair pass already running for user")
	ErrEngineStopped     = errors.New("memory: engine stopped")
)

// ValidationError reports a rejected write. It is never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("memory: validation failed: %s: %s", e.Field, e.Message)
}

func validationErr(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
