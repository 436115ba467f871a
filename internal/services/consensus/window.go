package consensus

import (
	"sort"
	"sync/atomic"
	"time"

	"SignalForge/internal/domain/models"
)

type WindowState int32

const (
	WindowOpen WindowState = iota + 1
	WindowClosing
	WindowClosed
)

func (s WindowState) String() string {
	switch s {
	case WindowOpen:
		return "OPEN"
	case WindowClosing:
		return "CLOSING"
	case WindowClosed:
		return "CLOSED"
	default:
		return "NO_WINDOW"
	}
}

// Window collects the latest signal per source for one token over [OpenedAt, Deadline).
type Window struct {
	ID            string
	Token         string
	OpenedAt      time.Time
	Deadline      time.Time
	CorrelationID string

	signals map[string]models.Signal
	state   atomic.Int32
}

func newWindow(id, token string, openedAt time.Time, d time.Duration) *Window {
	w := &Window{
		ID:       id,
		Token:    token,
		OpenedAt: openedAt,
		Deadline: openedAt.Add(d),
		signals:  make(map[string]models.Signal),
	}
	w.state.Store(int32(WindowOpen))
	return w
}

// Record stores sig, replacing any earlier signal from the same source.
func (w *Window) Record(sig models.Signal) (superseded bool) {
	_, superseded = w.signals[sig.SourceID]
	w.signals[sig.SourceID] = sig
	if w.CorrelationID == "" {
		w.CorrelationID = sig.CorrelationID
	}
	return superseded
}

// Signals returns the recorded signals ordered by source id.
func (w *Window) Signals() []models.Signal {
	out := make([]models.Signal, 0, len(w.signals))
	for _, s := range w.signals {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out
}

func (w *Window) Len() int { return len(w.signals) }

func (w *Window) State() WindowState { return WindowState(w.state.Load()) }

// Expired reports whether a signal arriving at t falls outside the window.
func (w *Window) Expired(t time.Time) bool { return !t.Before(w.Deadline) }

// beginClose moves OPEN to CLOSING and reports whether the caller won the transition.
func (w *Window) beginClose() bool {
	return w.state.CompareAndSwap(int32(WindowOpen), int32(WindowClosing))
}

func (w *Window) finishClose() { w.state.Store(int32(WindowClosed)) }
