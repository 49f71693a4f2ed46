package jsonrpc

import "github.com/go-faster/errors"

// Version is the only protocol version the engine speaks.
const Version = "2.0"

// Request is a JSON-RPC 2.0 Request.
// Origin is stamped by the engine from its connection and is trusted as the
// caller identity; any origin present on the wire is overwritten.
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id,omitempty"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
	Origin  string      `json:"origin,omitempty"`

	// hasID is set by the decoder when the id member is present, null included.
	hasID bool
}

// IsNotification reports whether the request has no id member. A request
// with "id": null is not a notification.
func (r *Request) IsNotification() bool {
	return r.ID == nil && !r.hasID
}

// Response is a JSON-RPC 2.0 Response.
// Exactly one of Result and Error is set once the request has completed.
// Use SetResult so that a nil result is still recorded as a result.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id,omitempty"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`

	resultSet bool
}

// NewResponse returns an empty response bound to the request id.
func NewResponse(req *Request) *Response {
	return &Response{JSONRPC: Version, ID: req.ID}
}

// SetResult records v as the result, nil included.
func (r *Response) SetResult(v interface{}) {
	r.Result = v
	r.resultSet = true
}

// SetError records e as the outcome and drops any result.
func (r *Response) SetError(e *Error) {
	r.Result = nil
	r.resultSet = false
	r.Error = e
}

// HasResult reports whether a result was recorded.
func (r *Response) HasResult() bool {
	return r.resultSet || r.Result != nil
}

// Validate checks the result/error exclusivity of a completed response.
func (r *Response) Validate() error {
	switch {
	case r.HasResult() && r.Error != nil:
		return errors.New("response has both result and error")
	case !r.HasResult() && r.Error == nil:
		return errors.New("response has neither result nor error")
	}
	return nil
}

// Error is a JSON-RPC 2.0 Error. It implements error so that hook and
// handler code can return it directly and have it passed through verbatim.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// JSON-RPC 2.0 standard error codes
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// Server-defined and provider error codes (EIP-1474 / EIP-1193).
const (
	ErrLimitExceeded = -32005 // Per-origin rate limit exceeded
	ErrUserRejected  = 4001   // User declined a permission prompt
	ErrUnauthorized  = 4100   // Origin lacks the permission for this call
)
