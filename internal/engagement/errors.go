package engagement

import (
	"errors"
	"fmt"
)

// Code classifies engine failures. Callers branch on the code to pick a
// user-facing message; the wrapped error carries the detail.
type Code string

const (
	CodeOK                     Code = "ok"
	CodeAuthenticationRequired Code = "authentication_required"
	CodeRateLimited            Code = "rate_limited"
	CodeRemoteWriteFailure     Code = "remote_write_failure"
	CodeRemoteReadFailure      Code = "remote_read_failure"
	CodeInvariantViolation     Code = "invariant_violation"
	CodeInvalidArgument        Code = "invalid_argument"
)

// Sentinels for errors.Is checks
var (
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrRateLimited            = errors.New("vote cooldown has not elapsed")
	ErrInvalidArgument        = errors.New("invalid argument")
)

// Error is the structured error returned across the engine boundary
type Error struct {
	Code     Code
	Op       string
	TargetID string
	Err      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.TargetID != "" {
		msg += fmt.Sprintf(" (target=%s)", e.TargetID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the cause to errors.Is / errors.As
func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrRateLimited) match by code even when the cause
// is a transport error decoded on the client.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrAuthenticationRequired:
		return e.Code == CodeAuthenticationRequired
	case ErrRateLimited:
		return e.Code == CodeRateLimited
	case ErrInvalidArgument:
		return e.Code == CodeInvalidArgument
	}
	return false
}

func newError(code Code, op, targetID string, err error) *Error {
	return &Error{Code: code, Op: op, TargetID: targetID, Err: err}
}

// CodeOf extracts the classification of err. Unclassified errors count as
// remote write failures, the retryable bucket.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	switch {
	case errors.Is(err, ErrAuthenticationRequired):
		return CodeAuthenticationRequired
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited
	case errors.Is(err, ErrInvalidArgument):
		return CodeInvalidArgument
	}
	return CodeRemoteWriteFailure
}

// Retryable reports whether the user may simply try the same action again
func (c Code) Retryable() bool {
	return c == CodeRemoteWriteFailure || c == CodeRemoteReadFailure || c == CodeRateLimited
}
