package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/guregu/null/v6"

	"SignalForge/pkg/util"
)

var validate = validator.New()

// ValidateStruct runs struct tag validation and wraps failures in ErrValidation.
func ValidateStruct(v interface{}) error {
	if err := validate.Struct(v); err != nil {
		var ves validator.ValidationErrors
		if errors.As(err, &ves) {
			msgs := make([]string, 0, len(ves))
			for _, fe := range ves {
				msgs = append(msgs, fmt.Sprintf("%s:%s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, ","))
		}
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// ObservationMessage is the bus format of a market tick.
// Timestamp is a unix epoch; the unit is inferred.
type ObservationMessage struct {
	Token     string  `json:"token" validate:"required"`
	Timestamp int64   `json:"timestamp" validate:"gte=0"`
	Price     float64 `json:"price" validate:"gt=0"`
	Volume    float64 `json:"volume" validate:"gte=0"`
}

func (m ObservationMessage) ToObservation(now time.Time) (Observation, error) {
	if err := ValidateStruct(m); err != nil {
		return Observation{}, err
	}
	return Observation{
		Token:     util.NormalizeToken(m.Token),
		Timestamp: util.OrNow(util.FromUnixAuto(m.Timestamp), now),
		Price:     m.Price,
		Volume:    m.Volume,
	}, nil
}

// SignalMessage is the bus format of an externally produced signal.
type SignalMessage struct {
	ID            string  `json:"signal_id"`
	SourceID      string  `json:"source_id" validate:"required"`
	Token         string  `json:"token" validate:"required"`
	SignalType    string  `json:"signal_type" validate:"required,oneof=mean_reversion correlation_anomaly autocorrelation"`
	Direction     int     `json:"direction" validate:"oneof=-1 1"`
	Strength      float64 `json:"strength" validate:"gte=0,lte=1"`
	Significance  float64 `json:"significance" validate:"gte=0,lte=1"`
	Timestamp     int64   `json:"timestamp" validate:"gte=0"`
	CorrelationID string  `json:"correlation_id"`
}

// ToSignal validates the message and converts it. newID fills a missing signal id.
func (m SignalMessage) ToSignal(now time.Time, newID func() string) (Signal, error) {
	if err := ValidateStruct(m); err != nil {
		return Signal{}, err
	}
	st, err := ParseSignalType(m.SignalType)
	if err != nil {
		return Signal{}, err
	}
	id := m.ID
	if id == "" && newID != nil {
		id = newID()
	}
	sig := Signal{
		ID:            id,
		SourceID:      m.SourceID,
		Token:         util.NormalizeToken(m.Token),
		Type:          st,
		Direction:     Direction(m.Direction),
		Strength:      m.Strength,
		Significance:  m.Significance,
		Timestamp:     util.OrNow(util.FromUnixAuto(m.Timestamp), now),
		CorrelationID: m.CorrelationID,
	}
	return sig, sig.Validate()
}

// NewSignalMessage renders a signal in bus format.
func NewSignalMessage(s Signal) SignalMessage {
	return SignalMessage{
		ID:            s.ID,
		SourceID:      s.SourceID,
		Token:         s.Token,
		SignalType:    string(s.Type),
		Direction:     int(s.Direction),
		Strength:      s.Strength,
		Significance:  s.Significance,
		Timestamp:     s.Timestamp.UnixMilli(),
		CorrelationID: s.CorrelationID,
	}
}

// FeedbackMessage is the bus format of a performance observation.
type FeedbackMessage struct {
	SourceID    string   `json:"source_id" validate:"required"`
	SignalID    string   `json:"signal_id"`
	Correctness *float64 `json:"correctness" validate:"required,gte=0,lte=1"`
	Timestamp   int64    `json:"timestamp" validate:"gte=0"`
}

func (m FeedbackMessage) ToObservation(now time.Time) (PerformanceObservation, error) {
	if err := ValidateStruct(m); err != nil {
		return PerformanceObservation{}, err
	}
	return PerformanceObservation{
		SourceID:    m.SourceID,
		SignalID:    m.SignalID,
		Correctness: *m.Correctness,
		Timestamp:   util.OrNow(util.FromUnixAuto(m.Timestamp), now),
	}, nil
}

// ConsensusMessage is the bus format of a consensus result.
type ConsensusMessage struct {
	Token               string     `json:"token"`
	WindowID            string     `json:"window_id"`
	Decision            Decision   `json:"decision"`
	Score               null.Float `json:"score"`
	ContributingSources []string   `json:"contributing_sources"`
	SignalIDs           []string   `json:"signal_ids"`
	OpenedAt            int64      `json:"opened_at"`
	Timestamp           int64      `json:"timestamp"`
	CorrelationID       string     `json:"correlation_id,omitempty"`
}

func NewConsensusMessage(r ConsensusResult) ConsensusMessage {
	sources := r.ContributingSources
	if sources == nil {
		sources = []string{}
	}
	ids := r.SignalIDs
	if ids == nil {
		ids = []string{}
	}
	return ConsensusMessage{
		Token:               r.Token,
		WindowID:            r.WindowID,
		Decision:            r.Decision,
		Score:               r.Score,
		ContributingSources: sources,
		SignalIDs:           ids,
		OpenedAt:            r.OpenedAt.UnixMilli(),
		Timestamp:           r.Timestamp.UnixMilli(),
		CorrelationID:       r.CorrelationID,
	}
}
