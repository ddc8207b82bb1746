package engine

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// TimestampLayout is the literal form of timestamps sent to engines.
const TimestampLayout = "2006-01-02 15:04:05"

// Literal renders a statement parameter as a SQL literal. Engines whose
// parameter binding takes literal text (Athena execution parameters) use it
// for every value so escaping lives in one place.
func Literal(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "NULL", nil
	case string:
		if !utf8.ValidString(val) || strings.ContainsRune(val, 0) {
			return "", fmt.Errorf("string parameter is not valid text")
		}
		return "'" + strings.ReplaceAll(val, "'", "''") + "'", nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return "", fmt.Errorf("float parameter %v has no SQL literal", val)
		}
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case bool:
		if val {
			return "TRUE", nil
		}
		return "FALSE", nil
	case time.Time:
		return "TIMESTAMP '" + val.UTC().Format(TimestampLayout) + "'", nil
	default:
		return "", fmt.Errorf("unsupported parameter type %T", v)
	}
}

// Literals renders every parameter of stmt.
func Literals(params []any) ([]string, error) {
	out := make([]string, len(params))
	for i, p := range params {
		lit, err := Literal(p)
		if err != nil {
			return nil, fmt.Errorf("parameter %d: %w", i+1, err)
		}
		out[i] = lit
	}
	return out, nil
}

// CountPlaceholders counts `?` placeholders outside quoted strings and
// quoted identifiers.
func CountPlaceholders(sql string) int {
	n := 0
	scanPlaceholders(sql, func(int) { n++ })
	return n
}

// scanPlaceholders calls fn with the byte offset of every `?` that sits
// outside single-quoted literals, double-quoted identifiers and comments.
func scanPlaceholders(sql string, fn func(offset int)) {
	inSingle, inDouble, inLineComment := false, false, false
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case inLineComment:
			if c == '\n' {
				inLineComment = false
			}
		case inSingle:
			if c == '\'' {
				inSingle = false
			}
		case inDouble:
			if c == '"' {
				inDouble = false
			}
		case c == '\'':
			inSingle = true
		case c == '"':
			inDouble = true
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			inLineComment = true
		case c == '?':
			fn(i)
		}
	}
}

// RewritePlaceholders replaces each `?` placeholder with the string returned
// by next for its 1-based position.
func RewritePlaceholders(sql string, next func(position int) string) string {
	var b strings.Builder
	b.Grow(len(sql) + 16)
	last, pos := 0, 0
	scanPlaceholders(sql, func(offset int) {
		pos++
		b.WriteString(sql[last:offset])
		b.WriteString(next(pos))
		last = offset + 1
	})
	b.WriteString(sql[last:])
	return b.String()
}
