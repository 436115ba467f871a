package engine

import (
	"sync"
	"sync/atomic"

	"SignalForge/internal/domain/models"
)

// Queue is a bounded shard inbox. When full, the oldest event is evicted to
// make room, so producers never block.
type Queue struct {
	ch      chan Event
	mu      sync.Mutex
	closed  atomic.Bool
	dropped atomic.Int64
}

func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{ch: make(chan Event, capacity)}
}

// Push enqueues ev and reports whether an older event was evicted for it.
func (q *Queue) Push(ev Event) (evicted bool, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed.Load() {
		return false, models.ErrEngineStopped
	}
	for {
		select {
		case q.ch <- ev:
			return evicted, nil
		default:
		}
		select {
		case <-q.ch:
			evicted = true
			q.dropped.Add(1)
		default:
		}
	}
}

// C is the receive side, read only by the owning shard.
func (q *Queue) C() <-chan Event { return q.ch }

func (q *Queue) Len() int { return len(q.ch) }

func (q *Queue) Cap() int { return cap(q.ch) }

func (q *Queue) Dropped() int64 { return q.dropped.Load() }

// Close rejects further pushes. Buffered events stay readable.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed.Store(true)
	q.mu.Unlock()
}

func (q *Queue) Closed() bool { return q.closed.Load() }
