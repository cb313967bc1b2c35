// Package machine decodes Packer's machine-readable output stream. See doc.go for the format.
package machine

import (
	"errors"
	"fmt"
	"strings"
)

// Delimiter separates fields within one machine-readable line.
const Delimiter = ","

// commaEscape is the in-band representation of a literal comma inside a field value.
const commaEscape = "%!(PACKER_COMMA)"

// ErrUnterminatedEscape reports an escape sequence that ends before its
// closing delimiter: a "%!(" with no ")" or a line ending in a lone backslash.
var ErrUnterminatedEscape = errors.New("unterminated escape sequence")

// DecodeLine splits one raw machine-readable line into its unescaped fields.
// It never assumes a fixed field count; the only failure mode is a malformed
// escape sequence inside a field.
func DecodeLine(raw string) ([]string, error) {
	parts := strings.Split(raw, Delimiter)
	fields := make([]string, len(parts))
	for i, part := range parts {
		value, err := unescapeField(part)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		fields[i] = value
	}
	return fields, nil
}

// EncodeFields is the inverse of DecodeLine: it escapes each field value and
// joins them with the delimiter. Decoding an encoded line reproduces the
// original field values exactly.
func EncodeFields(fields []string) string {
	escaped := make([]string, len(fields))
	for i, field := range fields {
		escaped[i] = escapeField(field)
	}
	return strings.Join(escaped, Delimiter)
}

func unescapeField(s string) (string, error) {
	// Fast path: nothing to unescape.
	if !strings.ContainsAny(s, `\%`) {
		return s, nil
	}

	var b strings.Builder
	for i := 0; i < len(s); {
		switch {
		case s[i] == '\\':
			if i+1 >= len(s) {
				return "", ErrUnterminatedEscape
			}
			switch s[i+1] {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case '\\':
				b.WriteByte('\\')
			default:
				// Unknown pair, keep verbatim.
				b.WriteByte(s[i])
				b.WriteByte(s[i+1])
			}
			i += 2
		case strings.HasPrefix(s[i:], "%!("):
			end := strings.IndexByte(s[i:], ')')
			if end < 0 {
				return "", ErrUnterminatedEscape
			}
			token := s[i+3 : i+end]
			if token == "PACKER_COMMA" {
				b.WriteByte(',')
			} else {
				// Unknown token, keep verbatim for forward compatibility.
				b.WriteString(s[i : i+end+1])
			}
			i += end + 1
		default:
			b.WriteByte(s[i])
			i++
		}
	}
	return b.String(), nil
}

func escapeField(s string) string {
	// Backslash first so the replacements below cannot be re-escaped.
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, "\r", `\r`)
	s = strings.ReplaceAll(s, ",", commaEscape)
	return s
}
