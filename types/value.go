package types

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Value is the canonical tagged union for a single decoded cell.
//
// A Value is immutable after construction. Its tag always matches the
// declared semantic type of the column it was decoded from, with the single
// exception of null wire markers, which decode to KindNull regardless of the
// declared type.
type Value struct {
	kind Kind

	b bool
	i int64 // Int64; Date (days since epoch); Timestamp (micros since epoch, UTC)
	u uint64
	f float64
	s string
	d decimal.Decimal

	// elems holds Array and Tuple members, and Map values.
	elems []Value
	// keys holds Map keys, index-aligned with elems.
	keys []Value
}

// Null returns the null value.
func Null() Value {
	return Value{kind: KindNull}
}

// NewBool returns a boolean value.
func NewBool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// NewInt64 returns a signed integer value.
func NewInt64(i int64) Value {
	return Value{kind: KindInt64, i: i}
}

// NewUInt64 returns an unsigned integer value.
func NewUInt64(u uint64) Value {
	return Value{kind: KindUInt64, u: u}
}

// NewFloat64 returns a float value.
func NewFloat64(f float64) Value {
	return Value{kind: KindFloat64, f: f}
}

// NewString returns a string value. The text is stored verbatim.
func NewString(s string) Value {
	return Value{kind: KindString, s: s}
}

// NewDate returns a calendar date value expressed as days since the Unix epoch.
func NewDate(days int64) Value {
	return Value{kind: KindDate, i: days}
}

// NewTimestamp returns an absolute instant expressed as microseconds since
// the Unix epoch. Timestamps are timezone-naive UTC instants.
func NewTimestamp(micros int64) Value {
	return Value{kind: KindTimestamp, i: micros}
}

// NewDecimal returns an exact decimal value.
func NewDecimal(d decimal.Decimal) Value {
	return Value{kind: KindDecimal, d: d}
}

// NewArray returns an array value. The slice is owned by the Value afterwards.
func NewArray(elems []Value) Value {
	return Value{kind: KindArray, elems: elems}
}

// NewTuple returns a tuple value. The slice is owned by the Value afterwards.
func NewTuple(elems []Value) Value {
	return Value{kind: KindTuple, elems: elems}
}

// NewMap returns a map value from index-aligned key and value slices.
// Entry order is preserved as received from the wire.
func NewMap(keys, values []Value) Value {
	return Value{kind: KindMap, keys: keys, elems: values}
}

// Kind returns the tag of the value.
func (v Value) Kind() Kind {
	return v.kind
}

// IsNull reports whether the value is the null value.
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// Bool returns the boolean content. Valid only for KindBool.
func (v Value) Bool() bool {
	return v.b
}

// Int64 returns the signed integer content. Valid only for KindInt64.
func (v Value) Int64() int64 {
	return v.i
}

// UInt64 returns the unsigned integer content. Valid only for KindUInt64.
func (v Value) UInt64() uint64 {
	return v.u
}

// Float64 returns the float content. Valid only for KindFloat64.
func (v Value) Float64() float64 {
	return v.f
}

// DateDays returns the day count since the Unix epoch. Valid only for KindDate.
func (v Value) DateDays() int64 {
	return v.i
}

// Date returns the calendar date as a UTC midnight time.Time.
// Valid only for KindDate.
func (v Value) Date() time.Time {
	return time.Unix(v.i*86400, 0).UTC()
}

// TimestampMicros returns microseconds since the Unix epoch.
// Valid only for KindTimestamp.
func (v Value) TimestampMicros() int64 {
	return v.i
}

// Timestamp returns the instant as a UTC time.Time. Valid only for KindTimestamp.
func (v Value) Timestamp() time.Time {
	return time.UnixMicro(v.i).UTC()
}

// Decimal returns the decimal content. Valid only for KindDecimal.
func (v Value) Decimal() decimal.Decimal {
	return v.d
}

// Elems returns the members of an Array or Tuple, or the values of a Map.
// The returned slice must not be mutated.
func (v Value) Elems() []Value {
	return v.elems
}

// Keys returns the keys of a Map, index-aligned with Elems.
// The returned slice must not be mutated.
func (v Value) Keys() []Value {
	return v.keys
}

// Len returns the element count of an Array, Tuple or Map, and 0 otherwise.
func (v Value) Len() int {
	return len(v.elems)
}

// Go returns the value as a native Go representation:
// nil, bool, int64, uint64, float64, string, time.Time (dates and
// timestamps), decimal.Decimal, []any (arrays and tuples) or
// map-entry pairs as [][2]any for maps.
func (v Value) Go() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInt64:
		return v.i
	case KindUInt64:
		return v.u
	case KindFloat64:
		return v.f
	case KindString:
		return v.s
	case KindDate:
		return v.Date()
	case KindTimestamp:
		return v.Timestamp()
	case KindDecimal:
		return v.d
	case KindArray, KindTuple:
		out := make([]any, len(v.elems))
		for i, e := range v.elems {
			out[i] = e.Go()
		}

		return out
	case KindMap:
		out := make([][2]any, len(v.elems))
		for i := range v.elems {
			out[i] = [2]any{v.keys[i].Go(), v.elems[i].Go()}
		}

		return out
	default:
		return nil
	}
}

// String returns a display form of the value. For KindString it is the
// string content verbatim; other kinds render their literal form.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt64:
		return strconv.FormatInt(v.i, 10)
	case KindUInt64:
		return strconv.FormatUint(v.u, 10)
	case KindFloat64:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return v.s
	case KindDate:
		return v.Date().Format("2006-01-02")
	case KindTimestamp:
		return v.Timestamp().Format("2006-01-02 15:04:05.999999")
	case KindDecimal:
		return v.d.String()
	case KindArray:
		return "[" + joinValues(v.elems) + "]"
	case KindTuple:
		return "(" + joinValues(v.elems) + ")"
	case KindMap:
		var sb strings.Builder
		sb.WriteByte('{')
		for i := range v.elems {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(v.keys[i].String())
			sb.WriteByte(':')
			sb.WriteString(v.elems[i].String())
		}
		sb.WriteByte('}')

		return sb.String()
	default:
		return ""
	}
}

// Equal reports deep equality of two values, including their kinds.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindInt64, KindDate, KindTimestamp:
		return v.i == other.i
	case KindUInt64:
		return v.u == other.u
	case KindFloat64:
		return v.f == other.f
	case KindString:
		return v.s == other.s
	case KindDecimal:
		return v.d.Equal(other.d)
	case KindArray, KindTuple:
		return valuesEqual(v.elems, other.elems)
	case KindMap:
		return valuesEqual(v.keys, other.keys) && valuesEqual(v.elems, other.elems)
	default:
		return false
	}
}

func valuesEqual(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}

	return true
}

func joinValues(vals []Value) string {
	var sb strings.Builder
	for i, v := range vals {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(v.String())
	}

	return sb.String()
}
