package jsonrpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Error codes carried in error responses.
const (
	CodeInvalidParams  = 400
	CodeMethodNotFound = 404
	CodeInternalError  = 500
)

// Common errors.
var (
	// ErrClosed is returned by calls on a connection that has shut down.
	// Termination errors wrap it together with the cause.
	ErrClosed = errors.New("jsonrpc: connection closed")

	// ErrMethodNotFound is the error answered for methods the local side
	// does not serve. Delegates may return it to decline a method.
	ErrMethodNotFound = &Error{Code: CodeMethodNotFound, Message: "Method Not Found"}
)

// Request asks the receiving peer to run a method.
type Request struct {
	ID     int64           `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// Response answers the request with the same ID. Exactly one of Result and
// Error is set.
type Response struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

// Error is the failure half of a response. It doubles as a Go error so
// delegates can choose the code and message the peer sees.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

// Is matches another *Error with the same code. A target with a message
// must match the message as well.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

// NewError creates an error carrying an explicit code.
func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates an error carrying an explicit code and a formatted message.
func Errorf(code int, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Message is one decoded inbound record: a Request when it carried a
// method, a Response otherwise.
type Message struct {
	Request  *Request
	Response *Response
}

// errorFrom converts a delegate failure into the wire error. Codes carried
// by an *Error are kept verbatim, including zero.
func errorFrom(err error) *Error {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return &Error{Code: rpcErr.Code, Message: rpcErr.Message}
	}
	msg := err.Error()
	if msg == "" {
		msg = "Internal error"
	}
	return &Error{Code: CodeInternalError, Message: msg}
}

// codeOf reports the code of an error for logs and spans, or zero.
func codeOf(err error) int {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr.Code
	}
	if err != nil {
		return CodeInternalError
	}
	return 0
}
