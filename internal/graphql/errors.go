package graphql

import (
	"errors"

	"github.com/covhub/covhub/internal/contract"
)

// UnauthenticatedError resolves the UnauthenticatedError type.
type UnauthenticatedError struct{ message string }

// Message implements the message field.
func (e *UnauthenticatedError) Message() string { return e.message }

// UnauthorizedError resolves the UnauthorizedError type.
type UnauthorizedError struct{ message string }

// Message implements the message field.
func (e *UnauthorizedError) Message() string { return e.message }

// NotFoundError resolves the NotFoundError type.
type NotFoundError struct{ message string }

// Message implements the message field.
func (e *NotFoundError) Message() string { return e.message }

// ValidationError resolves the ValidationError type.
type ValidationError struct{ message string }

// Message implements the message field.
func (e *ValidationError) Message() string { return e.message }

// MutationError resolves every mutation error union from a service error.
type MutationError struct {
	err error
}

// asErrorUnion classifies err. Other errors are not user-facing and are returned as top level GraphQL errors instead.
func asErrorUnion(err error) (*MutationError, bool) {
	switch {
	case errors.Is(err, contract.ErrUnauthenticated),
		errors.Is(err, contract.ErrUnauthorized),
		errors.Is(err, contract.ErrNotFound),
		errors.Is(err, contract.ErrValidation):
		return &MutationError{err: err}, true
	default:
		return nil, false
	}
}

func (u *MutationError) ToUnauthenticatedError() (*UnauthenticatedError, bool) {
	if errors.Is(u.err, contract.ErrUnauthenticated) {
		return &UnauthenticatedError{message: u.err.Error()}, true
	}
	return nil, false
}

func (u *MutationError) ToUnauthorizedError() (*UnauthorizedError, bool) {
	if errors.Is(u.err, contract.ErrUnauthorized) {
		return &UnauthorizedError{message: u.err.Error()}, true
	}
	return nil, false
}

func (u *MutationError) ToNotFoundError() (*NotFoundError, bool) {
	if errors.Is(u.err, contract.ErrNotFound) {
		return &NotFoundError{message: u.err.Error()}, true
	}
	return nil, false
}

func (u *MutationError) ToValidationError() (*ValidationError, bool) {
	if errors.Is(u.err, contract.ErrValidation) {
		return &ValidationError{message: u.err.Error()}, true
	}
	return nil, false
}
