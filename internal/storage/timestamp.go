package storage

import (
	"fmt"
	"regexp"
	"time"
)

// timestampLayouts are the spellings the document encoder uses for
// timestamptz and timestamp values.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses a timestamp string read back from a stored document.
// Values without an offset are taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// ParseMax converts the nullable MAX(...) of a document field into a
// watermark. Timestamps are rendered with a fixed layout in UTC, so the
// lexical maximum that backends compute is also the latest instant.
func ParseMax(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := ParseTimestamp(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

var fieldRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// JSONPath returns the path expression `$."field"` for engines that take a
// literal path. field must be a plain identifier.
func JSONPath(field string) (string, error) {
	if !fieldRe.MatchString(field) {
		return "", fmt.Errorf("invalid document field %q", field)
	}
	return `$."` + field + `"`, nil
}
