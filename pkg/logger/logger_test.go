package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

type capturePublisher struct {
	mu    sync.Mutex
	topic string
	batch []AggregatedLogEntry
}

func (c *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topic = topic
	c.batch = append(c.batch, payload.([]AggregatedLogEntry)...)
	return nil
}

func TestLoggerWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf).With(String("component", "engine"))
	l.Info("window.closed", Float64("score", 81.05), Int64("signals", 3), Error(errors.New("boom")))

	var got map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if got["component"] != "engine" || got["score"] != 81.05 || got["error"] != "boom" {
		t.Fatalf("unexpected entry %v", got)
	}
}

func TestCollectorAggregatesDuplicateErrors(t *testing.T) {
	pub := &capturePublisher{}
	l := NewWithWriter(&bytes.Buffer{})
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100, Topic: "logs", Service: "signalforge", Publisher: pub}, false)

	for i := 0; i < 3; i++ {
		l.Error("persist failed", String("source_id", "A"))
	}
	l.Warn("not collected")
	l.RemoveCollector()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if pub.topic != "logs" {
		t.Fatalf("unexpected topic %q", pub.topic)
	}
	if len(pub.batch) != 1 {
		t.Fatalf("expected one aggregated entry, got %d", len(pub.batch))
	}
	if pub.batch[0].Count != 3 || pub.batch[0].Service != "signalforge" {
		t.Fatalf("unexpected entry %+v", pub.batch[0])
	}
}
