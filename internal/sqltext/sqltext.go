// Package sqltext holds quote-aware helpers for rewriting SQL text without
// corrupting string literals.
package sqltext

import "strings"

// NormalizeQuotes converts double-quoted identifiers to backtick-quoted
// identifiers. Single-quoted string literals are left untouched, including
// embedded escaped quotes.
func NormalizeQuotes(sql string) string {
	var out strings.Builder
	out.Grow(len(sql))

	inSingle := false
	for i := 0; i < len(sql); i++ {
		ch := sql[i]
		switch {
		case inSingle:
			out.WriteByte(ch)
			if ch == '\'' {
				// '' escapes a quote inside a literal
				if i+1 < len(sql) && sql[i+1] == '\'' {
					out.WriteByte('\'')
					i++
				} else {
					inSingle = false
				}
			}
		case ch == '\'':
			inSingle = true
			out.WriteByte(ch)
		case ch == '"':
			out.WriteByte('`')
		default:
			out.WriteByte(ch)
		}
	}
	return out.String()
}

// RewriteOutsideStrings applies fn to every segment of sql that lies outside
// single-quoted string literals and stitches the result back together. The
// literals themselves pass through verbatim.
func RewriteOutsideStrings(sql string, fn func(segment string) string) string {
	var out strings.Builder
	out.Grow(len(sql))

	segmentStart := 0
	inSingle := false
	for i := 0; i < len(sql); i++ {
		ch := sql[i]
		if !inSingle {
			if ch == '\'' {
				out.WriteString(fn(sql[segmentStart:i]))
				segmentStart = i
				inSingle = true
			}
			continue
		}
		if ch == '\'' {
			if i+1 < len(sql) && sql[i+1] == '\'' {
				i++
				continue
			}
			out.WriteString(sql[segmentStart : i+1])
			segmentStart = i + 1
			inSingle = false
		}
	}
	if inSingle {
		out.WriteString(sql[segmentStart:])
	} else {
		out.WriteString(fn(sql[segmentStart:]))
	}
	return out.String()
}
