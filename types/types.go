package types

import (
	"fmt"
	"strconv"
	"strings"
)

// Transport identifies which wire protocol backs a session.
//
// The transport is selected once from the DSN scheme at connect time and is
// used as a label for metrics and log messages.
type Transport string

const (
	// TransportREST is the HTTP polling protocol (paginated JSON pages).
	TransportREST Transport = "rest"
	// TransportStream is the columnar streaming protocol (websocket frames).
	TransportStream Transport = "stream"
)

// String returns the string representation of the Transport.
func (t Transport) String() string {
	return string(t)
}

// Kind is the tag of a canonical Value.
type Kind uint8

// Canonical value kinds. Every declared server type maps onto exactly one kind.
const (
	KindNull Kind = iota
	KindBool
	KindInt64
	KindUInt64
	KindFloat64
	KindString
	KindDate
	KindTimestamp
	KindDecimal
	KindArray
	KindTuple
	KindMap
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindBool:
		return "Bool"
	case KindInt64:
		return "Int64"
	case KindUInt64:
		return "UInt64"
	case KindFloat64:
		return "Float64"
	case KindString:
		return "String"
	case KindDate:
		return "Date"
	case KindTimestamp:
		return "Timestamp"
	case KindDecimal:
		return "Decimal"
	case KindArray:
		return "Array"
	case KindTuple:
		return "Tuple"
	case KindMap:
		return "Map"
	default:
		return "Unknown"
	}
}

// DataType is the declared semantic type of a column as reported by the server.
//
// Name preserves the server's spelling verbatim; the remaining fields are the
// parsed form the codec dispatches on.
type DataType struct {
	// Name is the server-declared type name, e.g. "Nullable(Int32)".
	Name string

	// Kind is the canonical value kind this type decodes to.
	Kind Kind

	// Nullable reports whether the column may contain nulls.
	Nullable bool

	// Bits is the width of integer and float types (8, 16, 32 or 64).
	Bits int

	// Precision and Scale describe Decimal types.
	Precision int
	Scale     int

	// Elem is the element type for Array, and the value type for Map.
	Elem *DataType

	// Key is the key type for Map.
	Key *DataType

	// Fields are the member types for Tuple, in declaration order.
	Fields []Field
}

// Field is one named member of a Tuple type.
type Field struct {
	Name string
	Type DataType
}

// Column is one (name, declared type) pair of a statement schema.
type Column struct {
	Name string
	Type DataType
}

// Schema is the ordered column list produced once per statement.
//
// All rows of that statement conform to it positionally; it is immutable for
// the statement's lifetime.
type Schema []Column

// Names returns the column names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, col := range s {
		names[i] = col.Name
	}

	return names
}

// RawValue is a single wire cell before decoding: either a text literal or
// an explicit null marker.
type RawValue struct {
	// Data is the wire text of the cell. Meaningless when Null is true.
	Data string

	// Null reports an explicit null marker on the wire.
	Null bool
}

// Page is one batch of rows as received from the wire, already normalized to
// row-major order. Pages are transient: consumed and discarded after decoding.
type Page struct {
	Rows [][]RawValue
}

// Row is one decoded result row. Its length equals the schema length, and it
// is owned by the caller once yielded; the driver never mutates it afterwards.
type Row []Value

// ServerStats carries the server-reported execution progress of a statement.
type ServerStats struct {
	ReadRows      uint64  `json:"read_rows"`
	ReadBytes     uint64  `json:"read_bytes"`
	WriteRows     uint64  `json:"write_rows"`
	WriteBytes    uint64  `json:"write_bytes"`
	RunningTimeMS float64 `json:"running_time_ms"`
}

// ParseDataType parses a server type name into a DataType.
//
// Recognized names: Boolean, Int8/16/32/64, UInt8/16/32/64, Float32/64,
// String, Date, Timestamp, Decimal(p, s), Nullable(T), Array(T),
// Tuple(name T, ...) and Map(K, V). Parsing is case-sensitive the way the
// server emits names.
//
// Parameters:
//   - name: The declared type name, e.g. "Nullable(Array(Int64))"
//
// Returns:
//   - DataType: The parsed type
//   - error: Parse error for unknown or malformed names
func ParseDataType(name string) (DataType, error) {
	dt, err := parseDataType(strings.TrimSpace(name))
	if err != nil {
		return DataType{}, err
	}
	dt.Name = strings.TrimSpace(name)

	return dt, nil
}

func parseDataType(name string) (DataType, error) {
	base, args, hasArgs := splitTypeName(name)

	switch base {
	case "Nullable":
		if !hasArgs {
			return DataType{}, fmt.Errorf("types: Nullable requires an inner type in %q", name)
		}
		inner, err := parseDataType(args)
		if err != nil {
			return DataType{}, err
		}
		inner.Nullable = true

		return inner, nil
	case "Boolean", "Bool":
		return DataType{Kind: KindBool}, nil
	case "Int8", "Int16", "Int32", "Int64":
		bits, _ := strconv.Atoi(base[3:])

		return DataType{Kind: KindInt64, Bits: bits}, nil
	case "UInt8", "UInt16", "UInt32", "UInt64":
		bits, _ := strconv.Atoi(base[4:])

		return DataType{Kind: KindUInt64, Bits: bits}, nil
	case "Float32", "Float64":
		bits, _ := strconv.Atoi(base[5:])

		return DataType{Kind: KindFloat64, Bits: bits}, nil
	case "String", "Varchar":
		return DataType{Kind: KindString}, nil
	case "Date":
		return DataType{Kind: KindDate}, nil
	case "Timestamp", "DateTime":
		return DataType{Kind: KindTimestamp}, nil
	case "Decimal":
		if !hasArgs {
			return DataType{}, fmt.Errorf("types: Decimal requires precision and scale in %q", name)
		}
		parts := splitTopLevel(args)
		if len(parts) != 2 {
			return DataType{}, fmt.Errorf("types: Decimal requires precision and scale in %q", name)
		}
		precision, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return DataType{}, fmt.Errorf("types: invalid Decimal precision in %q", name)
		}
		scale, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return DataType{}, fmt.Errorf("types: invalid Decimal scale in %q", name)
		}

		return DataType{Kind: KindDecimal, Precision: precision, Scale: scale}, nil
	case "Array":
		if !hasArgs {
			return DataType{}, fmt.Errorf("types: Array requires an element type in %q", name)
		}
		elem, err := parseDataType(args)
		if err != nil {
			return DataType{}, err
		}

		return DataType{Kind: KindArray, Elem: &elem}, nil
	case "Tuple":
		if !hasArgs {
			return DataType{}, fmt.Errorf("types: Tuple requires member types in %q", name)
		}
		parts := splitTopLevel(args)
		fields := make([]Field, 0, len(parts))
		for _, part := range parts {
			fieldName, typeName := splitTupleField(strings.TrimSpace(part))
			ft, err := parseDataType(typeName)
			if err != nil {
				return DataType{}, err
			}
			fields = append(fields, Field{Name: fieldName, Type: ft})
		}

		return DataType{Kind: KindTuple, Fields: fields}, nil
	case "Map":
		if !hasArgs {
			return DataType{}, fmt.Errorf("types: Map requires key and value types in %q", name)
		}
		parts := splitTopLevel(args)
		if len(parts) != 2 {
			return DataType{}, fmt.Errorf("types: Map requires key and value types in %q", name)
		}
		key, err := parseDataType(strings.TrimSpace(parts[0]))
		if err != nil {
			return DataType{}, err
		}
		elem, err := parseDataType(strings.TrimSpace(parts[1]))
		if err != nil {
			return DataType{}, err
		}

		return DataType{Kind: KindMap, Key: &key, Elem: &elem}, nil
	case "NULL", "Null":
		return DataType{Kind: KindNull, Nullable: true}, nil
	default:
		return DataType{}, fmt.Errorf("types: unknown type name %q", name)
	}
}

// splitTypeName splits "Base(args)" into its base name and argument text.
func splitTypeName(name string) (base, args string, hasArgs bool) {
	open := strings.IndexByte(name, '(')
	if open < 0 {
		return name, "", false
	}
	if !strings.HasSuffix(name, ")") {
		return name, "", false
	}

	return name[:open], name[open+1 : len(name)-1], true
}

// splitTopLevel splits a comma-separated argument list, ignoring commas
// nested inside parentheses.
func splitTopLevel(args string) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, args[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, args[start:])

	return parts
}

// splitTupleField splits "name Type" tuple members; unnamed members are
// returned with an empty name.
func splitTupleField(part string) (name, typeName string) {
	space := strings.IndexByte(part, ' ')
	if space < 0 {
		return "", part
	}
	// A space inside parentheses belongs to the type, not a field name,
	// e.g. "Decimal(15, 2)".
	if open := strings.IndexByte(part, '('); open >= 0 && open < space {
		return "", part
	}
	candidate := part[:space]
	if _, err := parseDataType(part[space+1:]); err != nil {
		return "", part
	}

	return candidate, strings.TrimSpace(part[space+1:])
}
