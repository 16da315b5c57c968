package utils

import (
	"fmt"
	"strings"
	"time"
)

// serverTimeLayouts covers the created_at formats emitted by the run store:
// SQLite's str(datetime) form with and without microseconds, and RFC3339.
var serverTimeLayouts = []string{
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
}

// ParseServerTime parses a server-formatted timestamp. Naive values are taken as UTC.
func ParseServerTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}
	for _, layout := range serverTimeLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse time %q: unrecognised layout", value)
}

// FormatServerTime renders a server timestamp for display, returning the raw
// value unchanged when it cannot be parsed.
func FormatServerTime(value string) string {
	t, err := ParseServerTime(value)
	if err != nil {
		return value
	}
	return t.Format("2006-01-02 15:04:05 UTC")
}
