// Package codec implements the bidirectional mapping between wire-encoded
// scalar values and the canonical types.Value model.
//
// Both transports normalize cells to text-or-null before decoding, so a
// single decoder covers the columnar streaming protocol and the HTTP polling
// protocol. Decoding is driven by the column's declared type; the only
// session-dependent input is the timezone used to interpret timestamps that
// the wire expresses as naive local time.
package codec

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arloliu/tandem/types"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02 15:04:05.999999"
)

// Codec decodes wire cells into canonical values.
//
// A Codec is cheap to construct and safe for concurrent use. The location is
// fixed at construction; sessions build a fresh Codec when the server changes
// the session timezone.
type Codec struct {
	loc *time.Location
}

// New creates a Codec that interprets naive timestamps in the given location.
//
// Parameters:
//   - loc: Session timezone; nil means UTC
//
// Returns:
//   - *Codec: A new codec
func New(loc *time.Location) *Codec {
	if loc == nil {
		loc = time.UTC
	}

	return &Codec{loc: loc}
}

// Location returns the timezone used for naive timestamps.
func (c *Codec) Location() *time.Location {
	return c.loc
}

// DecodeRow decodes one wire row against the schema.
//
// The raw cell count must equal the schema length. On failure the returned
// error is a *types.DecodeError scoped to the offending cell; no partial row
// is returned.
//
// Parameters:
//   - schema: The statement schema
//   - raw: Wire cells in schema order
//
// Returns:
//   - types.Row: The decoded row
//   - error: *types.DecodeError on the first malformed cell
func (c *Codec) DecodeRow(schema types.Schema, raw []types.RawValue) (types.Row, error) {
	if len(raw) != len(schema) {
		return nil, &types.DecodeError{
			Column:   "",
			Position: len(schema),
			TypeName: "",
			Raw:      fmt.Sprintf("%d cells", len(raw)),
			Err:      fmt.Errorf("codec: row has %d cells, schema has %d columns", len(raw), len(schema)),
		}
	}

	row := make(types.Row, len(raw))
	for i, cell := range raw {
		val, err := c.Decode(cell, schema[i], i)
		if err != nil {
			return nil, err
		}
		row[i] = val
	}

	return row, nil
}

// Decode decodes a single wire cell by the column's declared type.
//
// Null wire markers decode to the null value regardless of the declared type.
//
// Parameters:
//   - raw: The wire cell
//   - col: The column the cell belongs to
//   - pos: Zero-based column position, for error context
//
// Returns:
//   - types.Value: The decoded value
//   - error: *types.DecodeError when the literal does not match the type
func (c *Codec) Decode(raw types.RawValue, col types.Column, pos int) (types.Value, error) {
	if raw.Null {
		return types.Null(), nil
	}

	val, err := c.decodeText(raw.Data, &col.Type)
	if err != nil {
		return types.Value{}, &types.DecodeError{
			Column:   col.Name,
			Position: pos,
			TypeName: col.Type.Name,
			Raw:      raw.Data,
			Err:      err,
		}
	}

	return val, nil
}

// decodeText decodes a text literal by declared type. Strings arrive verbatim
// at the top level but quoted inside compound literals; decodeElem handles
// the quoted form.
func (c *Codec) decodeText(s string, dt *types.DataType) (types.Value, error) {
	switch dt.Kind {
	case types.KindNull:
		return types.Null(), nil
	case types.KindBool:
		switch strings.ToLower(s) {
		case "true", "1":
			return types.NewBool(true), nil
		case "false", "0":
			return types.NewBool(false), nil
		default:
			return types.Value{}, fmt.Errorf("codec: invalid boolean literal")
		}
	case types.KindInt64:
		i, err := strconv.ParseInt(s, 10, intBits(dt.Bits))
		if err != nil {
			return types.Value{}, err
		}

		return types.NewInt64(i), nil
	case types.KindUInt64:
		u, err := strconv.ParseUint(s, 10, intBits(dt.Bits))
		if err != nil {
			return types.Value{}, err
		}

		return types.NewUInt64(u), nil
	case types.KindFloat64:
		f, err := strconv.ParseFloat(s, intBits(dt.Bits))
		if err != nil {
			return types.Value{}, err
		}

		return types.NewFloat64(f), nil
	case types.KindString:
		return types.NewString(s), nil
	case types.KindDate:
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return types.Value{}, err
		}

		return types.NewDate(t.Unix() / 86400), nil
	case types.KindTimestamp:
		t, err := c.parseTimestamp(s)
		if err != nil {
			return types.Value{}, err
		}

		return types.NewTimestamp(t.UnixMicro()), nil
	case types.KindDecimal:
		d, err := decimal.NewFromString(s)
		if err != nil {
			return types.Value{}, err
		}

		return types.NewDecimal(d), nil
	case types.KindArray:
		return c.decodeArray(s, dt)
	case types.KindTuple:
		return c.decodeTuple(s, dt)
	case types.KindMap:
		return c.decodeMap(s, dt)
	default:
		return types.Value{}, fmt.Errorf("codec: unsupported kind %s", dt.Kind)
	}
}

// parseTimestamp interprets naive timestamps in the session location and
// normalizes the result to an absolute instant. Literals carrying an explicit
// offset keep their own zone.
func (c *Codec) parseTimestamp(s string) (time.Time, error) {
	if strings.ContainsAny(s, "Zz") || strings.Contains(s, "T") {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t, nil
		}
		if t, err := time.ParseInLocation("2006-01-02T15:04:05.999999", s, c.loc); err == nil {
			return t, nil
		}
	}

	return time.ParseInLocation(timestampLayout, s, c.loc)
}

func (c *Codec) decodeArray(s string, dt *types.DataType) (types.Value, error) {
	inner, err := stripDelims(s, '[', ']')
	if err != nil {
		return types.Value{}, err
	}
	parts, err := splitCompound(inner)
	if err != nil {
		return types.Value{}, err
	}

	elems := make([]types.Value, 0, len(parts))
	for _, part := range parts {
		val, err := c.decodeElem(part, dt.Elem)
		if err != nil {
			return types.Value{}, err
		}
		elems = append(elems, val)
	}

	return types.NewArray(elems), nil
}

func (c *Codec) decodeTuple(s string, dt *types.DataType) (types.Value, error) {
	inner, err := stripDelims(s, '(', ')')
	if err != nil {
		return types.Value{}, err
	}
	parts, err := splitCompound(inner)
	if err != nil {
		return types.Value{}, err
	}
	if len(parts) != len(dt.Fields) {
		return types.Value{}, fmt.Errorf("codec: tuple has %d members, type declares %d", len(parts), len(dt.Fields))
	}

	elems := make([]types.Value, 0, len(parts))
	for i, part := range parts {
		val, err := c.decodeElem(part, &dt.Fields[i].Type)
		if err != nil {
			return types.Value{}, err
		}
		elems = append(elems, val)
	}

	return types.NewTuple(elems), nil
}

func (c *Codec) decodeMap(s string, dt *types.DataType) (types.Value, error) {
	inner, err := stripDelims(s, '{', '}')
	if err != nil {
		return types.Value{}, err
	}
	parts, err := splitCompound(inner)
	if err != nil {
		return types.Value{}, err
	}

	keys := make([]types.Value, 0, len(parts))
	vals := make([]types.Value, 0, len(parts))
	for _, part := range parts {
		k, v, err := splitMapEntry(part)
		if err != nil {
			return types.Value{}, err
		}
		key, err := c.decodeElem(k, dt.Key)
		if err != nil {
			return types.Value{}, err
		}
		val, err := c.decodeElem(v, dt.Elem)
		if err != nil {
			return types.Value{}, err
		}
		keys = append(keys, key)
		vals = append(vals, val)
	}

	return types.NewMap(keys, vals), nil
}

// decodeElem decodes one member of a compound literal. Members of string-like
// kinds are single-quoted on the wire; an unquoted NULL token is a null.
func (c *Codec) decodeElem(s string, dt *types.DataType) (types.Value, error) {
	s = strings.TrimSpace(s)
	if dt == nil {
		return types.Value{}, fmt.Errorf("codec: compound type is missing its element type")
	}
	if s == "NULL" {
		return types.Null(), nil
	}
	if len(s) >= 2 && s[0] == '\'' {
		text, err := unquote(s)
		if err != nil {
			return types.Value{}, err
		}

		return c.decodeText(text, dt)
	}

	return c.decodeText(s, dt)
}

func intBits(bits int) int {
	if bits == 0 {
		return 64
	}

	return bits
}

func stripDelims(s string, open, close byte) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != open || s[len(s)-1] != close {
		return "", fmt.Errorf("codec: compound literal must be enclosed in %c...%c", open, close)
	}

	return s[1 : len(s)-1], nil
}

// splitCompound splits a compound literal body at top-level commas, honoring
// nested brackets and single-quoted strings with backslash escapes.
func splitCompound(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	var parts []string
	depth := 0
	quoted := false
	start := 0
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if quoted {
			switch ch {
			case '\\':
				i++ // skip the escaped byte
			case '\'':
				quoted = false
			}

			continue
		}
		switch ch {
		case '\'':
			quoted = true
		case '[', '(', '{':
			depth++
		case ']', ')', '}':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("codec: unbalanced brackets in compound literal")
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	if quoted || depth != 0 {
		return nil, fmt.Errorf("codec: unterminated compound literal")
	}
	parts = append(parts, s[start:])

	return parts, nil
}

// splitMapEntry splits "key:value" at the first top-level colon.
func splitMapEntry(s string) (key, value string, err error) {
	depth := 0
	quoted := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if quoted {
			switch ch {
			case '\\':
				i++
			case '\'':
				quoted = false
			}

			continue
		}
		switch ch {
		case '\'':
			quoted = true
		case '[', '(', '{':
			depth++
		case ']', ')', '}':
			depth--
		case ':':
			if depth == 0 {
				return s[:i], s[i+1:], nil
			}
		}
	}

	return "", "", fmt.Errorf("codec: map entry is missing a key separator")
}

// unquote removes single quotes and resolves backslash escapes and doubled
// quotes in a compound string member.
func unquote(s string) (string, error) {
	if len(s) < 2 || s[0] != '\'' || s[len(s)-1] != '\'' {
		return "", fmt.Errorf("codec: string member must be single-quoted")
	}
	body := s[1 : len(s)-1]

	var sb strings.Builder
	sb.Grow(len(body))
	for i := 0; i < len(body); i++ {
		ch := body[i]
		switch ch {
		case '\\':
			if i+1 >= len(body) {
				return "", fmt.Errorf("codec: dangling escape in string member")
			}
			i++
			switch body[i] {
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case '0':
				sb.WriteByte(0)
			default:
				sb.WriteByte(body[i])
			}
		case '\'':
			// doubled quote escape
			if i+1 < len(body) && body[i+1] == '\'' {
				sb.WriteByte('\'')
				i++
			} else {
				return "", fmt.Errorf("codec: stray quote in string member")
			}
		default:
			sb.WriteByte(ch)
		}
	}

	return sb.String(), nil
}
