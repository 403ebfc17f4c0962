package util

import (
	"fmt"
	"strconv"
	"time"
)

// DateLayout is the plain calendar date accepted on the CLI and API.
const DateLayout = "2006-01-02"

// ParseTime accepts YYYY-MM-DD, RFC3339(Nano), and unix seconds or
// milliseconds. Results are UTC.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		if ts > 1e11 { // ms
			return time.UnixMilli(ts).UTC(), true
		}
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// ResolveRange turns optional start/end strings into a half-open range.
// A missing end is now; a missing start is days before end.
func ResolveRange(start, end string, days int, now time.Time) (time.Time, time.Time, error) {
	to := now.UTC()
	if end != "" {
		t, ok := ParseTime(end)
		if !ok {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end %q", end)
		}
		to = t
	}

	if days <= 0 {
		days = 30
	}
	from := to.AddDate(0, 0, -days)
	if start != "" {
		t, ok := ParseTime(start)
		if !ok {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start %q", start)
		}
		from = t
	}

	if !from.Before(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("start %s must be before end %s",
			from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	return from, to, nil
}
