package weights

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"SignalForge/internal/domain/models"
)

type entry struct {
	mu  sync.Mutex
	cur atomic.Pointer[models.SignalWeight]
}

// Store holds the authoritative in-memory weights. Reads are lock-free
// snapshots; writes to one source are serialized by that source's mutex.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

func NewStore() *Store {
	return &Store{entries: make(map[string]*entry)}
}

func (s *Store) lookup(sourceID string) (*entry, bool) {
	s.mu.RLock()
	e, ok := s.entries[sourceID]
	s.mu.RUnlock()
	return e, ok
}

// Ensure returns the weight of sourceID, inserting the neutral prior on first sight.
func (s *Store) Ensure(sourceID string, now time.Time) (models.SignalWeight, bool) {
	if e, ok := s.lookup(sourceID); ok {
		return *e.cur.Load(), false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[sourceID]; ok {
		return *e.cur.Load(), false
	}
	w := models.NewSignalWeight(sourceID, now)
	e := &entry{}
	e.cur.Store(&w)
	s.entries[sourceID] = e
	return w, true
}

// Get returns a snapshot of the weight of sourceID.
func (s *Store) Get(sourceID string) (models.SignalWeight, bool) {
	e, ok := s.lookup(sourceID)
	if !ok {
		return models.SignalWeight{}, false
	}
	return *e.cur.Load(), true
}

// Weight returns the current weight, or the neutral prior for unknown sources.
func (s *Store) Weight(sourceID string) float64 {
	if w, ok := s.Get(sourceID); ok {
		return w.Weight
	}
	return models.NeutralWeight
}

// Update applies fn atomically to the weight of sourceID, creating the entry if needed.
func (s *Store) Update(sourceID string, now time.Time, fn func(models.SignalWeight) models.SignalWeight) models.SignalWeight {
	s.Ensure(sourceID, now)
	e, _ := s.lookup(sourceID)
	e.mu.Lock()
	defer e.mu.Unlock()
	next := fn(*e.cur.Load())
	next.SourceID = sourceID
	e.cur.Store(&next)
	return next
}

// Warm loads persisted weights, replacing entries for the same source.
func (s *Store) Warm(ws []models.SignalWeight) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := range ws {
		w := ws[i]
		if w.SourceID == "" {
			continue
		}
		e, ok := s.entries[w.SourceID]
		if !ok {
			e = &entry{}
			s.entries[w.SourceID] = e
		}
		e.cur.Store(&w)
		n++
	}
	return n
}

// Snapshot returns every weight ordered by source id.
func (s *Store) Snapshot() []models.SignalWeight {
	s.mu.RLock()
	out := make([]models.SignalWeight, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, *e.cur.Load())
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
