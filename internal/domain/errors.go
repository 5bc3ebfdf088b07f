package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists signals a duplicate resource.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidRequest signals missing or malformed input.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnauthorized signals a missing or invalid bearer token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrModelPull signals a failed model auto-provision.
	ErrModelPull = errors.New("model pull failed")
)

// ModelPullError wraps ErrModelPull with the model that could not be pulled.
type ModelPullError struct {
	Model string
	Err   error
}

func (e *ModelPullError) Error() string {
	return fmt.Sprintf("failed to pull model %q: %v", e.Model, e.Err)
}

func (e *ModelPullError) Unwrap() error { return ErrModelPull }

// NewModelPullError creates a model pull error.
func NewModelPullError(model string, err error) error {
	return &ModelPullError{Model: model, Err: err}
}

// Invalidf builds an ErrInvalidRequest with a formatted reason.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrInvalidRequest)...)
}
