package core

import "github.com/pkg/errors"

// Application error taxonomy. Component-level functions fail fast on the
// first error; upstream store errors are wrapped with pkg/errors so the
// original message survives to the logs.
var (
	// ErrUnauthenticated is returned when no valid session accompanies a request.
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrForbidden is returned when the caller's role does not allow the operation.
	ErrForbidden = errors.New("permission denied")

	// ErrConflict is returned when a unique-credential collision could not be
	// resolved internally (e.g. username generation retries exhausted).
	ErrConflict = errors.New("conflict")
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
