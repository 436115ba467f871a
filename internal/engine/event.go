package engine

import (
	"time"

	"SignalForge/internal/domain/models"
	"SignalForge/internal/services/rolling"
)

type EventKind uint8

const (
	EventObservation EventKind = iota + 1
	EventPairTick
	EventSignal
)

func (k EventKind) String() string {
	switch k {
	case EventObservation:
		return "observation"
	case EventPairTick:
		return "pair_tick"
	case EventSignal:
		return "signal"
	default:
		return "unknown"
	}
}

// Event is one unit of shard input. Received is the arrival time used for
// window assignment.
type Event struct {
	Kind        EventKind
	Observation models.Observation
	Signal      models.Signal
	Pair        rolling.PairKey
	Received    time.Time
}
