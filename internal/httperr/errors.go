// Package httperr provides structured error types for the request/connection
// lifecycle engine.
package httperr

import (
	"fmt"
	"net/http"
	"time"
)

// ErrorType represents the category of error that occurred.
type ErrorType string

const (
	// ErrorTypeParse represents request-line / header parse failures.
	ErrorTypeParse ErrorType = "parse"
	// ErrorTypeProtocol represents protocol-level violations (TRACE, bad
	// Transfer-Encoding, missing Host on HTTP/1.1, ...).
	ErrorTypeProtocol ErrorType = "protocol"
	// ErrorTypeTimeout represents a read or write timeout during the
	// lifecycle of a request.
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypePeerClosed represents the peer closing its half of the
	// connection (read returned EOF with nothing pending).
	ErrorTypePeerClosed ErrorType = "peer_closed"
	// ErrorTypeTransport represents a socket-level error during send/recv.
	ErrorTypeTransport ErrorType = "transport"
	// ErrorTypeInternal represents an unexpected internal condition
	// (allocation failure, invariant violation).
	ErrorTypeInternal ErrorType = "internal"
)

// Error is a structured error carrying enough context for the write driver
// to decide what status, if any, to emit and for the access/error log to
// record a useful line.
type Error struct {
	Type      ErrorType `json:"type"`
	Op        string    `json:"op"`
	Message   string    `json:"message"`
	Cause     error     `json:"cause,omitempty"`
	Status    int       `json:"status,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Error implements the error interface.
// Format: [type] op: message: cause
func (e *Error) Error() string {
	s := fmt.Sprintf("[%s]", e.Type)
	if e.Op != "" {
		s += " " + e.Op
	}
	if e.Message != "" {
		s += ": " + e.Message
	}
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	return s
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a *Error of the same Type.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Type == t.Type
	}
	return false
}

// NewParseError creates a parse error with the status it should produce.
// status is 400 for a malformed line/header, 414 for an over-long request
// line, 431 for an over-long header block.
func NewParseError(op, message string, status int) *Error {
	return &Error{
		Type:      ErrorTypeParse,
		Op:        op,
		Message:   message,
		Status:    status,
		Timestamp: time.Now(),
	}
}

// NewProtocolError creates a protocol-violation error (TRACE method, missing
// Host on HTTP/1.1, unsupported Transfer-Encoding, ...).
func NewProtocolError(op, message string, status int) *Error {
	return &Error{
		Type:      ErrorTypeProtocol,
		Op:        op,
		Message:   message,
		Status:    status,
		Timestamp: time.Now(),
	}
}

// NewTimeoutError creates a read/write timeout error. status is 408 unless
// the caller determines the timeout happened during rate-limited writing
// (the "delayed" case from the write driver), in which case callers pass 0
// and do not generate a client-visible response.
func NewTimeoutError(op string, d time.Duration, status int) *Error {
	return &Error{
		Type:      ErrorTypeTimeout,
		Op:        op,
		Message:   fmt.Sprintf("timed out after %v", d),
		Status:    status,
		Timestamp: time.Now(),
	}
}

// NewPeerClosedError creates an error representing the peer closing its
// read side before a complete request arrived. No response is ever sent
// for this case; it exists purely for structured logging.
func NewPeerClosedError(op string) *Error {
	return &Error{
		Type:      ErrorTypePeerClosed,
		Op:        op,
		Message:   "peer closed connection",
		Timestamp: time.Now(),
	}
}

// NewTransportError wraps a socket-level send/recv failure.
func NewTransportError(op string, cause error) *Error {
	return &Error{
		Type:      ErrorTypeTransport,
		Op:        op,
		Message:   "transport error",
		Cause:     cause,
		Timestamp: time.Now(),
	}
}

// NewInternalError wraps an unexpected internal condition. status defaults
// to 500 when the response has not started; terminate_request is used
// instead when it has.
func NewInternalError(op, message string, cause error) *Error {
	return &Error{
		Type:      ErrorTypeInternal,
		Op:        op,
		Message:   message,
		Cause:     cause,
		Status:    http.StatusInternalServerError,
		Timestamp: time.Now(),
	}
}

// IsTimeout reports whether err is a timeout error.
func IsTimeout(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrorTypeTimeout
}

// StatusOf returns the HTTP status the write driver should emit for err, or
// 0 if the error carries none (e.g. PeerClosed, or a rate-limit timeout).
func StatusOf(err error) int {
	if e, ok := err.(*Error); ok {
		return e.Status
	}
	return 0
}

// TypeOf returns the ErrorType of err, or the empty string if err is not a
// structured *Error.
func TypeOf(err error) ErrorType {
	if e, ok := err.(*Error); ok {
		return e.Type
	}
	return ""
}
