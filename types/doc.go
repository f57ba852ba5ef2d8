// Package types provides shared types and error definitions for the tandem driver.
//
// This is a leaf package with zero tandem imports to prevent import cycles.
// All packages in tandem can safely import this package.
//
// # Value Model
//
// Value is the canonical in-memory representation of a single cell. Every
// wire value, regardless of transport, is decoded into one of the Value
// kinds before it is handed to the caller:
//
//	KindNull, KindBool, KindInt64, KindUInt64, KindFloat64, KindString,
//	KindDate, KindTimestamp, KindDecimal, KindArray, KindTuple, KindMap
//
// # Errors
//
// Sentinel errors are provided for common failure scenarios:
//
//   - ErrClientClosed: Operation attempted on a closed client
//   - ErrStreamClosed: Next called on a closed result stream
//   - ErrStreamSuperseded: The stream was invalidated by a newer statement
//   - ErrNoRows: QueryRow matched no rows
//
// Structured error types carry diagnostic context:
//
//   - DSNError: The connection string could not be parsed
//   - TransportError: Network or connection level failure
//   - ServerError: The engine reported a failure terminal status
//   - DecodeError: A wire value did not match its declared type
package types
