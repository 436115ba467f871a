package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestFromUnixAutoUnits(t *testing.T) {
	want := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	cases := []int64{want.Unix(), want.UnixMilli(), want.UnixMicro(), want.UnixNano()}
	for _, ts := range cases {
		if got := FromUnixAuto(ts); !got.Equal(want) {
			t.Fatalf("FromUnixAuto(%d) = %v, want %v", ts, got, want)
		}
	}
	if !FromUnixAuto(0).IsZero() {
		t.Fatalf("expected zero time for 0")
	}
}

func TestNormalizeToken(t *testing.T) {
	if got := NormalizeToken(" binance:btcusdt "); got != "BTCUSDT" {
		t.Fatalf("unexpected token %q", got)
	}
}

func TestBackoffWithJitterBounded(t *testing.T) {
	min, max := 10*time.Millisecond, 80*time.Millisecond
	for attempt := 1; attempt < 10; attempt++ {
		d := BackoffWithJitter(min, max, attempt)
		if d < min/2 || d > max {
			t.Fatalf("attempt %d: delay %v out of range", attempt, d)
		}
	}
}
