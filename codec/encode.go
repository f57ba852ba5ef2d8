package codec

import (
	"strconv"
	"strings"

	"github.com/arloliu/tandem/types"
)

// Encode renders a canonical value as a SQL literal.
//
// The output is safe to embed textually in a statement: string content is
// single-quoted with quote and backslash characters escaped, so encoded text
// cannot be reinterpreted as SQL syntax.
//
// Parameters:
//   - v: The value to encode
//
// Returns:
//   - string: The SQL literal
func Encode(v types.Value) string {
	switch v.Kind() {
	case types.KindNull:
		return "NULL"
	case types.KindBool:
		return strconv.FormatBool(v.Bool())
	case types.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case types.KindUInt64:
		return strconv.FormatUint(v.UInt64(), 10)
	case types.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'g', -1, 64)
	case types.KindString:
		return quote(v.String())
	case types.KindDate:
		return "'" + v.Date().Format(dateLayout) + "'"
	case types.KindTimestamp:
		return "'" + v.Timestamp().Format(timestampLayout) + "'"
	case types.KindDecimal:
		return v.Decimal().String()
	case types.KindArray:
		return "[" + encodeList(v.Elems()) + "]"
	case types.KindTuple:
		return "(" + encodeList(v.Elems()) + ")"
	case types.KindMap:
		var sb strings.Builder
		sb.WriteByte('{')
		keys, vals := v.Keys(), v.Elems()
		for i := range vals {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(Encode(keys[i]))
			sb.WriteByte(':')
			sb.WriteString(Encode(vals[i]))
		}
		sb.WriteByte('}')

		return sb.String()
	default:
		return "NULL"
	}
}

// quote single-quotes a string with backslash escaping.
func quote(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		switch ch := s[i]; ch {
		case '\'':
			sb.WriteString(`\'`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case 0:
			sb.WriteString(`\0`)
		default:
			sb.WriteByte(ch)
		}
	}
	sb.WriteByte('\'')

	return sb.String()
}

func encodeList(vals []types.Value) string {
	var sb strings.Builder
	for i, v := range vals {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(Encode(v))
	}

	return sb.String()
}
