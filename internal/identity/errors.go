package identity

import "errors"

// ErrorKind tags why a verification failed. The HTTP layer maps each kind to
// a status code in one place.
type ErrorKind string

const (
	KindUnavailable  ErrorKind = "unavailable"
	KindInvalidToken ErrorKind = "invalid_token"
	KindExpiredToken ErrorKind = "expired_token"
	KindAuthFailed   ErrorKind = "auth_failed"
)

// Detail is the user-safe message for the kind. Causes are logged, never shown.
func (k ErrorKind) Detail() string {
	switch k {
	case KindUnavailable:
		return "Firebase not initialized"
	case KindInvalidToken:
		return "Invalid Firebase ID token"
	case KindExpiredToken:
		return "Firebase ID token has expired"
	default:
		return "Authentication failed"
	}
}

func (k ErrorKind) String() string { return string(k) }

// Error is returned by Verify. Cause carries the provider error, if any.
type Error struct {
	Kind  ErrorKind
	Cause error
}

var (
	ErrUnavailable  = &Error{Kind: KindUnavailable}
	ErrInvalidToken = &Error{Kind: KindInvalidToken}
	ErrExpiredToken = &Error{Kind: KindExpiredToken}
	ErrAuthFailed   = &Error{Kind: KindAuthFailed}
)

func (e *Error) Error() string {
	if e.Cause == nil {
		return "identity: " + string(e.Kind)
	}
	return "identity: " + string(e.Kind) + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error of the same kind, so errors.Is(err, ErrExpiredToken)
// holds regardless of the cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind carried by err, or "" when err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func fail(kind ErrorKind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}
