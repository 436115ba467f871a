package util

import (
	"strconv"
	"time"
)

// ParseTime tries RFC3339, RFC3339Nano, and unix epochs of any precision.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return FromUnixAuto(ts), true
	}
	return time.Time{}, false
}

// FromUnixAuto converts an epoch in seconds, millis, micros or nanos to UTC time.
// The unit is inferred from magnitude. Zero or negative yields the zero time.
func FromUnixAuto(ts int64) time.Time {
	switch {
	case ts <= 0:
		return time.Time{}
	case ts > 1e17:
		return time.Unix(0, ts).UTC()
	case ts > 1e14:
		return time.UnixMicro(ts).UTC()
	case ts > 1e11:
		return time.UnixMilli(ts).UTC()
	default:
		return time.Unix(ts, 0).UTC()
	}
}

// OrNow returns t, or now when t is zero.
func OrNow(t, now time.Time) time.Time {
	if t.IsZero() {
		return now
	}
	return t
}
