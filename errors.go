package main

import (
	"fmt"

	goerrors "github.com/go-errors/errors"
)

// ErrorKind tags every ApiError with the coarse bucket a transport layer
// needs to pick an HTTP status code and a client-retry policy.
type ErrorKind int

const (
	// KindBadRequest covers malformed input, bad signatures, stale
	// timestamps, unknown download tokens and decode failures.
	KindBadRequest ErrorKind = iota

	// KindUnauthorized is returned when an auth-gated endpoint is called
	// without a matching token.
	KindUnauthorized

	// KindNotFound covers absent epoch history and similar lookups.
	KindNotFound

	// KindServerError covers admission-channel failures and internal
	// invariant violations.
	KindServerError
)

func (k ErrorKind) String() string {
	switch k {
	case KindBadRequest:
		return "bad-request"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not-found"
	case KindServerError:
		return "server-error"
	default:
		return "unknown"
	}
}

// ApiError is the structured error object every consensus API handler
// returns; it carries a kind a transport can branch on and a message meant
// for human eyes.
type ApiError struct {
	Kind ErrorKind
	Msg  string
}

func (e *ApiError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func badRequest(format string, args ...interface{}) *ApiError {
	return &ApiError{Kind: KindBadRequest, Msg: fmt.Sprintf(format, args...)}
}

func unauthorized() *ApiError {
	return &ApiError{Kind: KindUnauthorized, Msg: "not authorized"}
}

func notFound(format string, args ...interface{}) *ApiError {
	return &ApiError{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// serverError wraps an unexpected internal failure with a captured stack
// trace before it's logged, so a postmortem has more than just the message
// to go on.
func serverError(err error) *ApiError {
	wrapped := goerrors.Wrap(err, 1)
	apiLog.Errorf("internal error: %s", wrapped.ErrorStack())
	return &ApiError{Kind: KindServerError, Msg: err.Error()}
}
