package models

import (
	"time"

	"github.com/guregu/null/v6"
)

const (
	// NeutralWeight is the prior every new source starts from.
	NeutralWeight = 0.5
	// PriorObservations is how many observations the neutral prior is worth.
	PriorObservations = 10
)

// SignalWeight is the learned trust in a source.
// Accuracy is null until the first performance observation arrives.
type SignalWeight struct {
	SourceID     string     `json:"source_id"`
	Weight       float64    `json:"weight"`
	Accuracy     null.Float `json:"accuracy"`
	Observations int64      `json:"observations"`
	LastUpdated  time.Time  `json:"last_updated"`
}

// NewSignalWeight returns the neutral prior for a source.
func NewSignalWeight(sourceID string, now time.Time) SignalWeight {
	return SignalWeight{
		SourceID:    sourceID,
		Weight:      NeutralWeight,
		LastUpdated: now,
	}
}
