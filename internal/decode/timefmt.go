package decode

import (
	"fmt"
	"time"
)

// fraction renders sub-second precision in groups of three digits, and
// nothing at all for whole seconds: .123, .123456 or .123456789.
func fraction(ns int) string {
	switch {
	case ns == 0:
		return ""
	case ns%1_000_000 == 0:
		return fmt.Sprintf(".%03d", ns/1_000_000)
	case ns%1_000 == 0:
		return fmt.Sprintf(".%06d", ns/1_000)
	default:
		return fmt.Sprintf(".%09d", ns)
	}
}

// FormatTimestamptz renders an instant as RFC 3339 in UTC with an explicit
// "+00:00" offset, e.g. 2024-01-01T00:00:00+00:00.
func FormatTimestamptz(t time.Time) string {
	u := t.UTC()
	return u.Format("2006-01-02T15:04:05") + fraction(u.Nanosecond()) + "+00:00"
}

// FormatTimestamp renders a zone-less wall clock value, e.g.
// 2024-01-01 00:00:00.250.
func FormatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05") + fraction(t.Nanosecond())
}
