package ontology

import (
	"strings"
	"time"
)

// DateLayout is the calendar date format used for scheduling fields.
const DateLayout = "2006-01-02"

var dateTimeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04"}

// ParseDate parses a scheduling date in UTC. Calendar dates and RFC 3339
// timestamps are accepted.
func ParseDate(value string) (time.Time, bool) {
	return ParseDateIn(value, time.UTC)
}

// ParseDateIn parses a scheduling date; calendar dates without an offset are
// anchored at midnight in loc.
func ParseDateIn(value string, loc *time.Location) (time.Time, bool) {
	v := strings.TrimSpace(value)
	if v == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.ParseInLocation(DateLayout, v, loc); err == nil {
		return t, true
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
