package rolling

import (
	"time"
)

// PairKey names a correlation pair in canonical order (A < B).
type PairKey struct {
	A string
	B string
}

// CanonicalPair orders two tokens. ok is false for identical tokens.
func CanonicalPair(x, y string) (PairKey, bool) {
	switch {
	case x == y:
		return PairKey{}, false
	case x < y:
		return PairKey{A: x, B: y}, true
	default:
		return PairKey{A: y, B: x}, true
	}
}

func (k PairKey) String() string { return k.A + "/" + k.B }

// Has reports whether token is one of the pair's legs.
func (k PairKey) Has(token string) bool { return k.A == token || k.B == token }

// PairSample is one co-observation of both legs.
type PairSample struct {
	At time.Time
	A  float64
	B  float64
}

// PairSeries samples the last known price of both legs at a fixed interval.
type PairSeries struct {
	Key      PairKey
	interval time.Duration
	samples  *Ring[PairSample]

	lastA, lastB float64
	hasA, hasB   bool
	lastSample   time.Time
}

func newPairSeries(key PairKey, capacity int, interval time.Duration) *PairSeries {
	return &PairSeries{
		Key:      key,
		interval: interval,
		samples:  NewRing[PairSample](capacity),
	}
}

// Tick folds a price for one leg and takes a sample once both legs are known
// and the sample interval has elapsed. It reports whether a sample was taken.
func (p *PairSeries) Tick(token string, price float64, at time.Time) bool {
	switch token {
	case p.Key.A:
		p.lastA, p.hasA = price, true
	case p.Key.B:
		p.lastB, p.hasB = price, true
	default:
		return false
	}
	if !p.hasA || !p.hasB {
		return false
	}
	if !p.lastSample.IsZero() && at.Sub(p.lastSample) < p.interval {
		return false
	}
	p.samples.Push(PairSample{At: at, A: p.lastA, B: p.lastB})
	p.lastSample = at
	return true
}

func (p *PairSeries) Len() int { return p.samples.Len() }

// Prices returns the sampled prices of both legs, oldest first.
func (p *PairSeries) Prices() (a, b []float64) {
	n := p.samples.Len()
	a = make([]float64, n)
	b = make([]float64, n)
	for i := 0; i < n; i++ {
		s := p.samples.At(i)
		a[i], b[i] = s.A, s.B
	}
	return a, b
}
