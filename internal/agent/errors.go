package agent

import (
	"errors"
	"fmt"

	"github.com/soyeahso/cupid/internal/media"
)

var (
	// ErrNoMedia is returned by the Visionaire when it is given no references.
	ErrNoMedia = errors.New("no media references")

	// ErrNoShape is wrapped in a SchemaValidationError when the backend
	// answered without selecting a response shape.
	ErrNoShape = errors.New("backend selected no response shape")
)

// BackendInvocationError means the backend call itself failed.
type BackendInvocationError struct {
	Purpose string // "turn" | "vision"
	Err     error
}

func (e *BackendInvocationError) Error() string {
	return fmt.Sprintf("backend %s call failed: %v", e.Purpose, e.Err)
}

func (e *BackendInvocationError) Unwrap() error { return e.Err }

// SchemaValidationError means the backend's answer did not match any
// declared shape or its arguments did not satisfy the shape's schema.
type SchemaValidationError struct {
	Shape string
	Err   error
}

func (e *SchemaValidationError) Error() string {
	if e.Shape == "" {
		return fmt.Sprintf("invalid backend answer: %v", e.Err)
	}
	return fmt.Sprintf("invalid %s arguments: %v", e.Shape, e.Err)
}

func (e *SchemaValidationError) Unwrap() error { return e.Err }

// MediaResolutionError reports a failed media download or read.
type MediaResolutionError = media.ResolutionError

// IsBackendError reports whether err is a BackendInvocationError.
func IsBackendError(err error) bool {
	var be *BackendInvocationError
	return errors.As(err, &be)
}

// IsSchemaError reports whether err is a SchemaValidationError.
func IsSchemaError(err error) bool {
	var se *SchemaValidationError
	return errors.As(err, &se)
}

// IsMediaError reports whether err is a MediaResolutionError.
func IsMediaError(err error) bool {
	var me *MediaResolutionError
	return errors.As(err, &me)
}
