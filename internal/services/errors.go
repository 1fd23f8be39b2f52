package services

import (
	"errors"
)

// Error kinds. Handlers map each kind to one status code.
var (
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
	ErrAuth       = errors.New("unauthorized")
	ErrNotFound   = errors.New("not found")
	ErrBackend    = errors.New("backend failure")
)

// User-facing messages.
const (
	MsgCredentialsRequired = "Email and password are required."
	MsgPasswordTooShort    = "Password must be at least 6 characters."
	MsgEmailTaken          = "This email is already in use."
	MsgUsernameTaken       = "This username is already taken."
	MsgInvalidLogin        = "Invalid email or password."
	MsgUnauthorized        = "Unauthorized"
	MsgProfileNotFound     = "Profile not found."
	MsgServerError         = "Server error."
	MsgCaptchaFailed       = "Captcha verification failed."
)

// Error carries the kind used for status mapping, the message shown to the
// client and the underlying cause, if any.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Is makes errors.Is(err, ErrConflict) and friends match on the kind.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func validationError(message string) error { return newError(ErrValidation, message, nil) }
func conflictError(message string) error   { return newError(ErrConflict, message, nil) }
func authError(message string) error       { return newError(ErrAuth, message, nil) }
func notFoundError(message string) error   { return newError(ErrNotFound, message, nil) }
func backendError(cause error) error       { return newError(ErrBackend, MsgServerError, cause) }

// Message returns the client-facing message for err, falling back to the
// generic server error for anything that is not a service Error.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return MsgServerError
}
