package models

import (
	"time"

	"github.com/guregu/null/v6"
)

// Decision is the outcome of evaluating a window.
type Decision string

const (
	DecisionApproved            Decision = "APPROVED"
	DecisionInsufficientSources Decision = "INSUFFICIENT_SOURCES"
	DecisionBelowThreshold      Decision = "BELOW_THRESHOLD"
)

// ConsensusResult is produced exactly once per closed window.
// Score is null when the window had too few sources to be scored.
type ConsensusResult struct {
	Token               string
	WindowID            string
	Decision            Decision
	Score               null.Float
	ContributingSources []string
	SignalIDs           []string
	OpenedAt            time.Time
	Timestamp           time.Time
	CorrelationID       string
}

func (r ConsensusResult) Approved() bool { return r.Decision == DecisionApproved }
