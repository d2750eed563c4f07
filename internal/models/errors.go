package models

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrCallNotOpen           = errors.New("call is not open")
	ErrBargainNotAllowed     = errors.New("bargaining is not allowed on this call")
	ErrCallAlreadyAttributed = errors.New("call already attributed to another executor")
	ErrWrongEntityType       = errors.New("unsupported entity type")
)

// ValidationError reports a bad or missing field in an inbound payload.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ExternalDependencyError marks a failure of the store, scheduler, push or backend
// after which previously committed writes are kept.
type ExternalDependencyError struct {
	Dependency string
	Err        error
}

func (e *ExternalDependencyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Dependency, e.Err)
}

func (e *ExternalDependencyError) Unwrap() error { return e.Err }

func DependencyError(dependency string, err error) error {
	if err == nil {
		return nil
	}
	return &ExternalDependencyError{Dependency: dependency, Err: err}
}
