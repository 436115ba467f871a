package models

import (
	"fmt"
	"time"
)

// SignalType names the analysis that produced a signal.
type SignalType string

const (
	SignalMeanReversion      SignalType = "mean_reversion"
	SignalCorrelationAnomaly SignalType = "correlation_anomaly"
	SignalAutocorrelation    SignalType = "autocorrelation"
)

// ParseSignalType maps a wire name to a SignalType.
func ParseSignalType(s string) (SignalType, error) {
	switch SignalType(s) {
	case SignalMeanReversion, SignalCorrelationAnomaly, SignalAutocorrelation:
		return SignalType(s), nil
	default:
		return "", fmt.Errorf("%w: unknown signal type %q", ErrValidation, s)
	}
}

// Direction is the sign of a vote: Long (+1) or Short (-1).
type Direction int8

const (
	DirectionShort Direction = -1
	DirectionLong  Direction = 1
)

// DirectionOf returns the sign of x. Zero has no direction.
func DirectionOf(x float64) Direction {
	switch {
	case x > 0:
		return DirectionLong
	case x < 0:
		return DirectionShort
	default:
		return 0
	}
}

func (d Direction) Valid() bool { return d == DirectionLong || d == DirectionShort }

func (d Direction) String() string {
	switch d {
	case DirectionLong:
		return "long"
	case DirectionShort:
		return "short"
	default:
		return "none"
	}
}

// Signal is a directional vote from a single source about a token.
type Signal struct {
	ID            string
	SourceID      string
	Token         string
	Type          SignalType
	Direction     Direction
	Strength      float64
	Significance  float64
	Timestamp     time.Time
	CorrelationID string
}

// Vote is the signed contribution of the signal before weighting.
func (s Signal) Vote() float64 { return float64(s.Direction) * s.Strength }

// Validate checks the invariants every signal entering a window must hold.
func (s Signal) Validate() error {
	switch {
	case s.SourceID == "":
		return fmt.Errorf("%w: source_id is required", ErrValidation)
	case s.Token == "":
		return fmt.Errorf("%w: token is required", ErrValidation)
	case !s.Direction.Valid():
		return fmt.Errorf("%w: direction must be -1 or 1, got %d", ErrValidation, s.Direction)
	case s.Strength < 0 || s.Strength > 1:
		return fmt.Errorf("%w: strength %v out of [0,1]", ErrValidation, s.Strength)
	case s.Significance < 0 || s.Significance > 1:
		return fmt.Errorf("%w: significance %v out of [0,1]", ErrValidation, s.Significance)
	}
	return nil
}
