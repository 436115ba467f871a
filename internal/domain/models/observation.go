package models

import "time"

// Observation is a single market tick for a token.
type Observation struct {
	Token     string
	Timestamp time.Time
	Price     float64
	Volume    float64
}

// PerformanceObservation reports how well a past signal from a source turned out.
// Correctness is in [0,1], 1 meaning fully correct.
type PerformanceObservation struct {
	SourceID    string
	SignalID    string
	Correctness float64
	Timestamp   time.Time
}
