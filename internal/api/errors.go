package api

import (
	"errors"
	"fmt"

	"github.com/amacivic/engagement/internal/engagement"
)

// Application error codes, in the JSON-RPC server error range
const (
	ErrAuthenticationRequired = -32001
	ErrRateLimited            = -32002
	ErrWriteFailure           = -32003
	ErrReadFailure            = -32004
	ErrServerError            = -32000
)

// Error represents an API error
type Error struct {
	Code    int
	Message string
	Err     error
}

// NewError creates a new API error
func NewError(code int, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// InvalidParams wraps a parameter decoding or validation failure
func InvalidParams(err error) *Error {
	return &Error{Code: ErrInvalidParams, Message: "Invalid params", Err: err}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("API error %d: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("API error %d: %s", e.Code, e.Message)
}

// Unwrap exposes the cause
func (e *Error) Unwrap() error {
	return e.Err
}

// engagementCodes maps engine classifications onto wire codes
var engagementCodes = map[engagement.Code]struct {
	code    int
	message string
}{
	engagement.CodeAuthenticationRequired: {ErrAuthenticationRequired, "Authentication required"},
	engagement.CodeRateLimited:            {ErrRateLimited, "Rate limited"},
	engagement.CodeRemoteWriteFailure:     {ErrWriteFailure, "Write failed"},
	engagement.CodeRemoteReadFailure:      {ErrReadFailure, "Read failed"},
	engagement.CodeInvalidArgument:        {ErrInvalidParams, "Invalid params"},
}

// toRPCError classifies any handler error for the response
func toRPCError(err error) *JSONRPCError {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return &JSONRPCError{Code: apiErr.Code, Message: apiErr.Message, Data: dataOf(apiErr.Err, apiErr)}
	}

	var engErr *engagement.Error
	if errors.As(err, &engErr) {
		if m, ok := engagementCodes[engErr.Code]; ok {
			return &JSONRPCError{Code: m.code, Message: m.message, Data: err.Error()}
		}
	}

	return &JSONRPCError{Code: ErrServerError, Message: "Server error", Data: err.Error()}
}

func dataOf(cause error, fallback error) string {
	if cause != nil {
		return cause.Error()
	}
	return fallback.Error()
}

// EngagementCode maps a wire code back to the engine classification. Unknown
// codes count as write failures so clients retry rather than give up.
func EngagementCode(rpcCode int) engagement.Code {
	for code, m := range engagementCodes {
		if m.code == rpcCode {
			return code
		}
	}
	return engagement.CodeRemoteWriteFailure
}
