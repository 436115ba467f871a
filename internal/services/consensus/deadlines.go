package consensus

import (
	"container/heap"
	"time"
)

type deadline struct {
	at       time.Time
	token    string
	windowID string
}

// deadlineHeap is a min-heap of window deadlines.
type deadlineHeap []deadline

func (h deadlineHeap) Len() int           { return len(h) }
func (h deadlineHeap) Less(i, j int) bool { return h[i].at.Before(h[j].at) }
func (h deadlineHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *deadlineHeap) Push(x any) { *h = append(*h, x.(deadline)) }

func (h *deadlineHeap) Pop() any {
	old := *h
	n := len(old)
	d := old[n-1]
	*h = old[:n-1]
	return d
}

func (h *deadlineHeap) push(d deadline) { heap.Push(h, d) }

func (h *deadlineHeap) pop() deadline { return heap.Pop(h).(deadline) }

func (h deadlineHeap) peek() (deadline, bool) {
	if len(h) == 0 {
		return deadline{}, false
	}
	return h[0], true
}
