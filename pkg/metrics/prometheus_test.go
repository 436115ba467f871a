package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCountsDecisions(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)
	r.RecordDecision("APPROVED")
	r.RecordDecision("APPROVED")
	r.RecordDecision("BELOW_THRESHOLD")
	r.RecordQueueDrop("3")

	if got := testutil.ToFloat64(r.decisions.WithLabelValues("APPROVED")); got != 2 {
		t.Fatalf("expected 2 approvals, got %v", got)
	}
	if got := testutil.ToFloat64(r.queueDrops.WithLabelValues("3")); got != 1 {
		t.Fatalf("expected 1 drop, got %v", got)
	}
}

func TestRecordersUseIndependentRegistries(t *testing.T) {
	New(prometheus.NewRegistry())
	New(prometheus.NewRegistry())
}
