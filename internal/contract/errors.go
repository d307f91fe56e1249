package contract

import (
	"errors"
	"fmt"
)

// Common errors used across covhub.
var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthenticated     = errors.New("you are not authenticated")
	ErrUnauthorized        = errors.New("you are not authorized")
	ErrValidation          = errors.New("validation failed")
	ErrProviderAuth        = errors.New("provider authentication failed")
	ErrProviderUnreachable = errors.New("provider unreachable")
	ErrCommitNotFound      = errors.New("commit not found on provider")
	ErrTrialAlreadyStarted = errors.New("cannot start an existing trial")
	ErrTrialNotStarted     = errors.New("cannot expire an unstarted trial")
)

// CommandError is a user-facing failure of a CLI command.
type CommandError struct {
	Msg string
}

func (e *CommandError) Error() string { return e.Msg }

// NewCommandError formats a CommandError.
func NewCommandError(format string, args ...any) error {
	return &CommandError{Msg: fmt.Sprintf(format, args...)}
}

// ValidationError is a rejected state transition or invalid input.
// It wraps the specific reason so callers can match it with errors.Is.
type ValidationError struct {
	Msg    string
	Reason error
}

func (e *ValidationError) Error() string { return e.Msg }

// Unwrap returns both the reason and ErrValidation.
func (e *ValidationError) Unwrap() []error {
	if e.Reason == nil {
		return []error{ErrValidation}
	}
	return []error{e.Reason, ErrValidation}
}

// NotFoundError names the missing entity.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Name)
}

// Unwrap allows errors.Is(err, ErrNotFound).
func (e *NotFoundError) Unwrap() error { return ErrNotFound }
