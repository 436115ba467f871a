package consensus

import (
	"time"

	"github.com/google/uuid"

	"SignalForge/internal/domain/models"
)

// Evaluator scores a window exactly once when it closes.
type Evaluator interface {
	Evaluate(w *Window, at time.Time) models.ConsensusResult
}

type ManagerOption func(*Manager)

// WithIDGenerator overrides how window ids are minted.
func WithIDGenerator(fn func() string) ManagerOption {
	return func(m *Manager) { m.newID = fn }
}

// Manager owns the open windows of one shard. It is not safe for concurrent use;
// the owning shard is the only caller.
type Manager struct {
	duration  time.Duration
	eval      Evaluator
	windows   map[string]*Window
	deadlines deadlineHeap
	newID     func() string
}

func NewManager(duration time.Duration, eval Evaluator, opts ...ManagerOption) *Manager {
	m := &Manager{
		duration: duration,
		eval:     eval,
		windows:  make(map[string]*Window),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Add records sig as arriving at at. A window whose deadline has passed is
// evaluated first and the signal opens the next one. opened reports whether
// a new window was created.
func (m *Manager) Add(sig models.Signal, at time.Time) (closed []models.ConsensusResult, opened bool) {
	if w, ok := m.windows[sig.Token]; ok && w.Expired(at) {
		if res, ok := m.evaluate(w, at); ok {
			closed = append(closed, res)
		}
	}
	w, ok := m.windows[sig.Token]
	if !ok {
		w = newWindow(m.newID(), sig.Token, at, m.duration)
		m.windows[sig.Token] = w
		m.deadlines.push(deadline{at: w.Deadline, token: w.Token, windowID: w.ID})
		opened = true
	}
	w.Record(sig)
	return closed, opened
}

// Expire evaluates every window whose deadline is at or before now.
func (m *Manager) Expire(now time.Time) []models.ConsensusResult {
	var out []models.ConsensusResult
	for {
		d, ok := m.deadlines.peek()
		if !ok || d.at.After(now) {
			return out
		}
		m.deadlines.pop()
		w, ok := m.windows[d.token]
		if !ok || w.ID != d.windowID {
			continue
		}
		if res, ok := m.evaluate(w, now); ok {
			out = append(out, res)
		}
	}
}

// NextDeadline is the earliest pending deadline of an open window.
func (m *Manager) NextDeadline() (time.Time, bool) {
	for {
		d, ok := m.deadlines.peek()
		if !ok {
			return time.Time{}, false
		}
		if w, live := m.windows[d.token]; live && w.ID == d.windowID {
			return d.at, true
		}
		m.deadlines.pop()
	}
}

// Close forces evaluation of the open window of token.
func (m *Manager) Close(token string, now time.Time) (models.ConsensusResult, bool) {
	w, ok := m.windows[token]
	if !ok {
		return models.ConsensusResult{}, false
	}
	return m.evaluate(w, now)
}

// Drain evaluates every open window, used on graceful shutdown.
func (m *Manager) Drain(now time.Time) []models.ConsensusResult {
	out := make([]models.ConsensusResult, 0, len(m.windows))
	for _, w := range m.windows {
		if res, ok := m.evaluate(w, now); ok {
			out = append(out, res)
		}
	}
	m.deadlines = m.deadlines[:0]
	return out
}

// Abandon discards every open window without evaluating it.
func (m *Manager) Abandon() int {
	n := len(m.windows)
	for token, w := range m.windows {
		w.beginClose()
		w.finishClose()
		delete(m.windows, token)
	}
	m.deadlines = m.deadlines[:0]
	return n
}

// Window returns the open window of token, if any.
func (m *Manager) Window(token string) (*Window, bool) {
	w, ok := m.windows[token]
	return w, ok
}

func (m *Manager) Open() int { return len(m.windows) }

func (m *Manager) evaluate(w *Window, at time.Time) (models.ConsensusResult, bool) {
	if !w.beginClose() {
		return models.ConsensusResult{}, false
	}
	if cur, ok := m.windows[w.Token]; ok && cur == w {
		delete(m.windows, w.Token)
	}
	res := m.eval.Evaluate(w, at)
	w.finishClose()
	return res, true
}
