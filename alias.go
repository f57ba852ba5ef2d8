package tandem

import "github.com/arloliu/tandem/types"

// Type aliases for convenience - re-export from types package.
type (
	Transport        = types.Transport
	Kind             = types.Kind
	DataType         = types.DataType
	Column           = types.Column
	Schema           = types.Schema
	Row              = types.Row
	Value            = types.Value
	ServerStats      = types.ServerStats
	Logger           = types.Logger
	MetricsCollector = types.MetricsCollector
)

// Re-export transport constants for convenience.
const (
	TransportREST   = types.TransportREST
	TransportStream = types.TransportStream
)

// Re-export value kind constants for convenience.
const (
	KindNull      = types.KindNull
	KindBool      = types.KindBool
	KindInt64     = types.KindInt64
	KindUInt64    = types.KindUInt64
	KindFloat64   = types.KindFloat64
	KindString    = types.KindString
	KindDate      = types.KindDate
	KindTimestamp = types.KindTimestamp
	KindDecimal   = types.KindDecimal
	KindArray     = types.KindArray
	KindTuple     = types.KindTuple
	KindMap       = types.KindMap
)
