package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// ErrClientClosed indicates an operation was attempted on a closed client.
	ErrClientClosed = errors.New("tandem: client is closed")

	// ErrStreamClosed indicates Next was called on a closed result stream.
	ErrStreamClosed = errors.New("tandem: result stream is closed")

	// ErrStreamSuperseded indicates the result stream was invalidated because
	// a newer statement was opened on the same session. Sessions drain one
	// statement at a time, so the last statement wins.
	ErrStreamSuperseded = errors.New("tandem: result stream superseded by a newer statement")

	// ErrNoRows indicates QueryRow matched no rows.
	ErrNoRows = errors.New("tandem: no rows in result set")

	// ErrNilConfig indicates a nil configuration was provided.
	ErrNilConfig = errors.New("tandem: config cannot be nil")
)

// DSNError indicates the connection string could not be parsed.
//
// It is returned before any connection attempt is made.
type DSNError struct {
	// DSN is the offending connection string with credentials redacted.
	DSN string

	// Reason describes what was malformed.
	Reason string
}

// Error implements the error interface.
func (e *DSNError) Error() string {
	return "tandem: malformed DSN " + e.DSN + ": " + e.Reason
}

// TransportErrorKind classifies connection-level failures.
type TransportErrorKind uint8

const (
	// TransportNetwork is a generic network failure during an established exchange.
	TransportNetwork TransportErrorKind = iota
	// TransportConnect is a failure to establish the connection.
	TransportConnect
	// TransportTLS is a TLS negotiation failure.
	TransportTLS
	// TransportTimeout is a suspend point exceeding its configured timeout.
	// The session is left in a failed state and requires reconnect.
	TransportTimeout
	// TransportSessionExpired means the server no longer knows the session
	// or query, typically after a server restart or session timeout.
	TransportSessionExpired
)

// String returns a human-readable kind name.
func (k TransportErrorKind) String() string {
	switch k {
	case TransportConnect:
		return "connect"
	case TransportTLS:
		return "tls"
	case TransportTimeout:
		return "timeout"
	case TransportSessionExpired:
		return "session-expired"
	default:
		return "network"
	}
}

// TransportError is a network or connection-level failure.
type TransportError struct {
	// Kind classifies the failure.
	Kind TransportErrorKind

	// Op names the wire operation that failed, e.g. "submit" or "next page".
	Op string

	// QueryID is the client-generated statement id, when one was assigned.
	QueryID string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	msg := "tandem: transport " + e.Kind.String() + " error"
	if e.Op != "" {
		msg += " during " + e.Op
	}
	if e.QueryID != "" {
		msg += " (query " + e.QueryID + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// ServerError indicates the engine reported a failure terminal status.
//
// Server errors are never retried by the driver.
type ServerError struct {
	// Code is the server-provided error code.
	Code int

	// Message is the server-provided error message.
	Message string

	// QueryID is the client-generated statement id, when one was assigned.
	QueryID string
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	msg := fmt.Sprintf("tandem: server error %d: %s", e.Code, e.Message)
	if e.QueryID != "" {
		msg += " (query " + e.QueryID + ")"
	}

	return msg
}

// DecodeError indicates a wire value did not match its declared type.
//
// A decode error is scoped to one row: it surfaces on the Next call that
// pulled the row, and the stream remains usable for subsequent rows.
// QueryAll treats any decode error as fatal for the whole call.
type DecodeError struct {
	// Column is the column name at the failing position.
	Column string

	// Position is the zero-based column position.
	Position int

	// TypeName is the declared type name of the column.
	TypeName string

	// Raw is the offending wire text.
	Raw string

	// Err is the underlying parse error, if any.
	Err error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("tandem: cannot decode %q as %s for column %q (position %d)",
		e.Raw, e.TypeName, e.Column, e.Position)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *DecodeError) Unwrap() error {
	return e.Err
}
