package ratelimit

import (
	"testing"
	"time"
)

func TestLimiterRefillsAndReportsSuppressed(t *testing.T) {
	now := time.Unix(1700000000, 0)
	l := New(WithNow(func() time.Time { return now }))

	if !l.Allow("BTC", 2, 1) || !l.Allow("BTC", 2, 1) {
		t.Fatalf("expected burst of 2 to pass")
	}
	for i := 0; i < 3; i++ {
		if l.Allow("BTC", 2, 1) {
			t.Fatalf("expected call %d to be limited", i)
		}
	}
	if !l.Allow("ETH", 2, 1) {
		t.Fatalf("keys must not share buckets")
	}

	now = now.Add(time.Second)
	ok, suppressed := l.Take("BTC", 2, 1)
	if !ok || suppressed != 3 {
		t.Fatalf("expected refill with 3 suppressed, got ok=%v suppressed=%d", ok, suppressed)
	}
	if l.Len() != 2 {
		t.Fatalf("expected 2 keys, got %d", l.Len())
	}
}
