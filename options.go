package underlog

import (
	"fmt"
	"strings"
)

// ParseOptions parses a bracketed attribute list such as
//
//	[cols=3, title="a, quoted title", compact]
//
// into a string mapping. Entries are comma separated; `key=value` and
// `key="value"` become regular attributes (the quoted form may contain
// commas and spaces), while a bare `key` is appended, semicolon-joined,
// to the aggregated "boolean" attribute.
//
// The input must begin with '[' and end with ']'. A framing violation
// returns an empty mapping and an error the caller records as a
// diagnostic; it is never fatal. The scan covers the whole bracket
// interior, so trailing entries are not dropped.
func ParseOptions(bracketed string) (map[string]string, error) {
	opts := make(map[string]string)
	if len(bracketed) < 2 || bracketed[0] != '[' || bracketed[len(bracketed)-1] != ']' {
		return opts, fmt.Errorf("%w: %q", ErrBadOptionsFraming, bracketed)
	}

	for _, entry := range splitOptionEntries(bracketed[1 : len(bracketed)-1]) {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		key, value, found := strings.Cut(entry, "=")
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if !found {
			if existing := opts["boolean"]; existing != "" {
				opts["boolean"] = existing + ";" + key
			} else {
				opts["boolean"] = key
			}
			continue
		}
		value = strings.TrimSpace(value)
		if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
			value = value[1 : len(value)-1]
		}
		opts[key] = value
	}
	return opts, nil
}

// splitOptionEntries splits on commas that are outside double quotes.
func splitOptionEntries(s string) []string {
	var entries []string
	var b strings.Builder
	inQuote := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == ',' && !inQuote:
			entries = append(entries, b.String())
			b.Reset()
		default:
			b.WriteByte(c)
		}
	}
	entries = append(entries, b.String())
	return entries
}
