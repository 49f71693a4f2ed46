package jsonrpc

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Standard messages. MethodNotFound must stay byte-identical for unknown and
// access-gated methods so callers cannot probe which methods exist.
const (
	msgParseError     = "Invalid JSON was received by the server. An error occurred on the server while parsing the JSON text."
	msgInvalidRequest = "The JSON sent is not a valid Request object."
	msgMethodNotFound = "The method does not exist / is not available."
	msgInvalidParams  = "Invalid method parameter(s)."
	msgInternalError  = "Internal JSON-RPC error."
	msgLimitExceeded  = "Request limit exceeded."
	msgUserRejected   = "User rejected the request."
	msgUnauthorized   = "The requested account and/or method has not been authorized by the user."
)

func NewParseError() *Error {
	return &Error{Code: ParseError, Message: msgParseError}
}

func NewInvalidRequest(detail string) *Error {
	if detail == "" {
		return &Error{Code: InvalidRequest, Message: msgInvalidRequest}
	}
	return &Error{Code: InvalidRequest, Message: detail}
}

// NewMethodNotFound is returned for unknown methods and for methods the caller
// is not allowed to see.
func NewMethodNotFound() *Error {
	return &Error{Code: MethodNotFound, Message: msgMethodNotFound}
}

// NewInvalidParams embeds the violation description in the message.
func NewInvalidParams(format string, args ...any) *Error {
	if format == "" {
		return &Error{Code: InvalidParams, Message: msgInvalidParams}
	}
	return &Error{Code: InvalidParams, Message: fmt.Sprintf(format, args...)}
}

// NewInternalError hides cause behind a generic message; cause is attached as
// data.cause for diagnostics only.
func NewInternalError(cause error) *Error {
	e := &Error{Code: InternalError, Message: msgInternalError}
	if cause != nil {
		e.Data = map[string]any{"cause": cause.Error()}
	}
	return e
}

func NewLimitExceeded() *Error {
	return &Error{Code: ErrLimitExceeded, Message: msgLimitExceeded}
}

func NewUserRejected() *Error {
	return &Error{Code: ErrUserRejected, Message: msgUserRejected}
}

func NewUnauthorized(detail string) *Error {
	if detail == "" {
		detail = msgUnauthorized
	}
	return &Error{Code: ErrUnauthorized, Message: detail}
}

// FromError normalizes any error into a wire error. RPC errors found anywhere
// in the chain pass through unchanged; everything else becomes InternalError.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	return NewInternalError(err)
}
