package codec

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/tandem/types"
)

func mustType(t *testing.T, name string) types.DataType {
	t.Helper()
	dt, err := types.ParseDataType(name)
	require.NoError(t, err)

	return dt
}

func decode(t *testing.T, c *Codec, typeName, wire string) types.Value {
	t.Helper()
	col := types.Column{Name: "c", Type: mustType(t, typeName)}
	val, err := c.Decode(types.RawValue{Data: wire}, col, 0)
	require.NoError(t, err)

	return val
}

func decodeErr(t *testing.T, c *Codec, typeName, wire string) *types.DecodeError {
	t.Helper()
	col := types.Column{Name: "c", Type: mustType(t, typeName)}
	_, err := c.Decode(types.RawValue{Data: wire}, col, 3)
	require.Error(t, err)

	var decErr *types.DecodeError
	require.ErrorAs(t, err, &decErr)

	return decErr
}

func TestDecodeScalars(t *testing.T) {
	c := New(nil)

	require.True(t, decode(t, c, "Boolean", "true").Bool())
	require.False(t, decode(t, c, "Boolean", "0").Bool())
	require.True(t, decode(t, c, "Boolean", "TRUE").Bool())

	require.Equal(t, int64(-128), decode(t, c, "Int8", "-128").Int64())
	require.Equal(t, int64(9223372036854775807), decode(t, c, "Int64", "9223372036854775807").Int64())
	require.Equal(t, uint64(255), decode(t, c, "UInt8", "255").UInt64())
	require.Equal(t, 1.25, decode(t, c, "Float64", "1.25").Float64())
	require.Equal(t, "plain text", decode(t, c, "String", "plain text").String())

	d := decode(t, c, "Date", "2024-03-01")
	require.Equal(t, types.KindDate, d.Kind())
	require.Equal(t, int64(19783), d.DateDays())

	dec := decode(t, c, "Decimal(15, 2)", "12345.67")
	require.True(t, dec.Decimal().Equal(decimal.RequireFromString("12345.67")))
}

func TestDecodeNullMarker(t *testing.T) {
	c := New(nil)

	// A null wire marker decodes to null regardless of the declared type.
	for _, name := range []string{"Boolean", "Int64", "String", "Date", "Timestamp", "Decimal(10, 2)", "Array(Int64)", "Map(String, Int64)"} {
		col := types.Column{Name: "c", Type: mustType(t, name)}
		val, err := c.Decode(types.RawValue{Null: true}, col, 0)
		require.NoError(t, err, "type %s", name)
		require.True(t, val.IsNull(), "type %s", name)
	}
}

func TestDecodeTimestampNaive(t *testing.T) {
	taipei, err := time.LoadLocation("Asia/Taipei")
	require.NoError(t, err)

	// The same naive literal shifts with the session timezone.
	utc := decode(t, New(nil), "Timestamp", "2024-03-01 12:00:00.123456")
	local := decode(t, New(taipei), "Timestamp", "2024-03-01 12:00:00.123456")
	require.Equal(t, int64(8*3600*1e6), utc.TimestampMicros()-local.TimestampMicros())
	require.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 123456000, time.UTC), utc.Timestamp())
}

func TestDecodeTimestampExplicitOffset(t *testing.T) {
	taipei, err := time.LoadLocation("Asia/Taipei")
	require.NoError(t, err)
	c := New(taipei)

	// An explicit offset wins over the session timezone.
	val := decode(t, c, "Timestamp", "2024-03-01T12:00:00.5Z")
	require.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 500000000, time.UTC), val.Timestamp())

	val = decode(t, c, "Timestamp", "2024-03-01T12:00:00+02:00")
	require.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), val.Timestamp())
}

func TestDecodeScalarErrors(t *testing.T) {
	c := New(nil)

	err := decodeErr(t, c, "Boolean", "maybe")
	require.Equal(t, "c", err.Column)
	require.Equal(t, 3, err.Position)
	require.Equal(t, "maybe", err.Raw)

	// Out of range for the declared width.
	decodeErr(t, c, "Int8", "128")
	decodeErr(t, c, "UInt8", "-1")
	decodeErr(t, c, "Int64", "not a number")
	decodeErr(t, c, "Date", "03/01/2024")
	decodeErr(t, c, "Timestamp", "yesterday")
	decodeErr(t, c, "Decimal(10, 2)", "1.2.3")
}

func TestDecodeArray(t *testing.T) {
	c := New(nil)

	val := decode(t, c, "Array(Int64)", "[1, 2, 3]")
	require.Equal(t, 3, val.Len())
	require.Equal(t, int64(2), val.Elems()[1].Int64())

	val = decode(t, c, "Array(Int64)", "[]")
	require.Equal(t, 0, val.Len())

	val = decode(t, c, "Array(Nullable(Int64))", "[1, NULL, 3]")
	require.True(t, val.Elems()[1].IsNull())

	val = decode(t, c, "Array(String)", `['a, b', 'c\'d']`)
	require.Equal(t, "a, b", val.Elems()[0].String())
	require.Equal(t, "c'd", val.Elems()[1].String())

	val = decode(t, c, "Array(Array(Int64))", "[[1], [2, 3]]")
	require.Equal(t, 2, val.Len())
	require.Equal(t, int64(3), val.Elems()[1].Elems()[1].Int64())

	decodeErr(t, c, "Array(Int64)", "1, 2, 3")
	decodeErr(t, c, "Array(Int64)", "[1, x]")
}

func TestDecodeTuple(t *testing.T) {
	c := New(nil)

	val := decode(t, c, "Tuple(id Int64, name String)", "(7, 'ok')")
	require.Equal(t, 2, val.Len())
	require.Equal(t, int64(7), val.Elems()[0].Int64())
	require.Equal(t, "ok", val.Elems()[1].String())

	// Member count must match the declared type.
	decodeErr(t, c, "Tuple(id Int64, name String)", "(7)")
}

func TestDecodeMap(t *testing.T) {
	c := New(nil)

	val := decode(t, c, "Map(String, Int64)", "{'a':1, 'b':2}")
	require.Equal(t, 2, val.Len())
	require.Equal(t, "a", val.Keys()[0].String())
	require.Equal(t, int64(2), val.Elems()[1].Int64())

	val = decode(t, c, "Map(String, Int64)", "{}")
	require.Equal(t, 0, val.Len())

	// Colon inside a quoted key is not a separator.
	val = decode(t, c, "Map(String, Int64)", "{'a:b':5}")
	require.Equal(t, "a:b", val.Keys()[0].String())

	decodeErr(t, c, "Map(String, Int64)", "{'a'}")
}

func TestDecodeRow(t *testing.T) {
	c := New(nil)
	schema := types.Schema{
		{Name: "id", Type: mustType(t, "Int64")},
		{Name: "name", Type: mustType(t, "Nullable(String)")},
	}

	row, err := c.DecodeRow(schema, []types.RawValue{{Data: "42"}, {Null: true}})
	require.NoError(t, err)
	require.Len(t, row, 2)
	require.Equal(t, int64(42), row[0].Int64())
	require.True(t, row[1].IsNull())

	_, err = c.DecodeRow(schema, []types.RawValue{{Data: "42"}})
	var decErr *types.DecodeError
	require.ErrorAs(t, err, &decErr)
}

func TestUnquote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`'plain'`, "plain"},
		{`'a\nb'`, "a\nb"},
		{`'tab\there'`, "tab\there"},
		{`'back\\slash'`, `back\slash`},
		{`'it''s'`, "it's"},
		{`'it\'s'`, "it's"},
	}
	for _, tt := range tests {
		got, err := unquote(tt.in)
		require.NoError(t, err, "unquote(%q)", tt.in)
		require.Equal(t, tt.want, got)
	}

	for _, in := range []string{`'dangling\`, `'stray'quote'`, `noquotes`} {
		_, err := unquote(in)
		require.Error(t, err, "unquote(%q)", in)
	}
}

func TestEncode(t *testing.T) {
	require.Equal(t, "NULL", Encode(types.Null()))
	require.Equal(t, "true", Encode(types.NewBool(true)))
	require.Equal(t, "-5", Encode(types.NewInt64(-5)))
	require.Equal(t, "1.5", Encode(types.NewFloat64(1.5)))
	require.Equal(t, "'2024-03-01'", Encode(types.NewDate(19783)))
	require.Equal(t, "12.34", Encode(types.NewDecimal(decimal.RequireFromString("12.34"))))
	require.Equal(t, "[1, 2]", Encode(types.NewArray([]types.Value{types.NewInt64(1), types.NewInt64(2)})))
	require.Equal(t, "('x', 1)", Encode(types.NewTuple([]types.Value{types.NewString("x"), types.NewInt64(1)})))
	require.Equal(t, "{'k':1}", Encode(types.NewMap([]types.Value{types.NewString("k")}, []types.Value{types.NewInt64(1)})))
}

func TestEncodeStringEscaping(t *testing.T) {
	require.Equal(t, `'it\'s'`, Encode(types.NewString("it's")))
	require.Equal(t, `'a\\b'`, Encode(types.NewString(`a\b`)))
	require.Equal(t, `'line\nbreak'`, Encode(types.NewString("line\nbreak")))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := New(nil)

	vals := []struct {
		typeName string
		val      types.Value
	}{
		{"Array(String)", types.NewArray([]types.Value{types.NewString("a, b"), types.NewString("it's")})},
		{"Map(String, Int64)", types.NewMap([]types.Value{types.NewString("k:v")}, []types.Value{types.NewInt64(1)})},
		{"Tuple(Int64, String)", types.NewTuple([]types.Value{types.NewInt64(-4), types.NewString("x")})},
	}
	for _, tt := range vals {
		got := decode(t, c, tt.typeName, Encode(tt.val))
		require.True(t, tt.val.Equal(got), "round trip of %s", Encode(tt.val))
	}
}
