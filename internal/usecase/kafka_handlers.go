package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"SignalForge/internal/domain/models"
	"SignalForge/internal/domain/service"
	pkgkafka "SignalForge/pkg/kafka"
)

// ObservationProcessor is the ingest pipeline in front of the engine.
type ObservationProcessor interface {
	Process(ctx context.Context, o models.Observation) error
}

// rejectOrFail turns validation failures into permanent (non-retried) errors.
func rejectOrFail(rejects *RejectionLogger, kind, key string, err error) error {
	if models.IsValidation(err) {
		rejects.Reject(kind, key, err)
		return pkgkafka.Permanent(err)
	}
	return err
}

func decode(b []byte, v interface{}) error {
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	return nil
}

// ObservationsHandler feeds market ticks from the observations topic into the pipeline.
type ObservationsHandler struct {
	topic   string
	pipe    ObservationProcessor
	clock   service.Clock
	rejects *RejectionLogger
}

func NewObservationsHandler(topic string, pipe ObservationProcessor, clock service.Clock, rejects *RejectionLogger) *ObservationsHandler {
	return &ObservationsHandler{topic: topic, pipe: pipe, clock: clock, rejects: rejects}
}

func (h *ObservationsHandler) Topic() string { return h.topic }

// message schema: {token, timestamp, price, volume}
func (h *ObservationsHandler) Handle(ctx context.Context, b []byte) error {
	var m models.ObservationMessage
	if err := decode(b, &m); err != nil {
		return rejectOrFail(h.rejects, "observation", "", err)
	}
	o, err := m.ToObservation(h.clock.Now())
	if err != nil {
		return rejectOrFail(h.rejects, "observation", m.Token, err)
	}
	if err := h.pipe.Process(ctx, o); err != nil {
		return rejectOrFail(h.rejects, "observation", o.Token, err)
	}
	return nil
}

// SignalsHandler routes externally produced signals to the owning shard.
type SignalsHandler struct {
	topic   string
	router  service.SignalRouter
	clock   service.Clock
	rejects *RejectionLogger
	newID   func() string
}

func NewSignalsHandler(topic string, router service.SignalRouter, clock service.Clock, rejects *RejectionLogger) *SignalsHandler {
	return &SignalsHandler{topic: topic, router: router, clock: clock, rejects: rejects, newID: uuid.NewString}
}

func (h *SignalsHandler) Topic() string { return h.topic }

// message schema: {signal_id, source_id, token, signal_type, direction, strength, significance, timestamp, correlation_id}
func (h *SignalsHandler) Handle(ctx context.Context, b []byte) error {
	var m models.SignalMessage
	if err := decode(b, &m); err != nil {
		return rejectOrFail(h.rejects, "signal", "", err)
	}
	if m.CorrelationID == "" {
		m.CorrelationID = pkgkafka.TraceIDFrom(ctx)
	}
	sig, err := m.ToSignal(h.clock.Now(), h.newID)
	if err != nil {
		return rejectOrFail(h.rejects, "signal", m.SourceID, err)
	}
	if err := h.router.RouteSignal(sig); err != nil {
		if errors.Is(err, models.ErrEngineStopped) {
			return fmt.Errorf("route signal %s: %w", sig.ID, err)
		}
		return rejectOrFail(h.rejects, "signal", sig.SourceID, err)
	}
	return nil
}

// FeedbackHandler folds performance observations into source weights.
type FeedbackHandler struct {
	topic   string
	applier service.FeedbackApplier
	clock   service.Clock
	rejects *RejectionLogger
}

func NewFeedbackHandler(topic string, applier service.FeedbackApplier, clock service.Clock, rejects *RejectionLogger) *FeedbackHandler {
	return &FeedbackHandler{topic: topic, applier: applier, clock: clock, rejects: rejects}
}

func (h *FeedbackHandler) Topic() string { return h.topic }

// message schema: {source_id, signal_id, correctness, timestamp}
func (h *FeedbackHandler) Handle(ctx context.Context, b []byte) error {
	var m models.FeedbackMessage
	if err := decode(b, &m); err != nil {
		return rejectOrFail(h.rejects, "feedback", "", err)
	}
	obs, err := m.ToObservation(h.clock.Now())
	if err != nil {
		return rejectOrFail(h.rejects, "feedback", m.SourceID, err)
	}
	if _, err := h.applier.Apply(ctx, obs); err != nil {
		return rejectOrFail(h.rejects, "feedback", obs.SourceID, err)
	}
	return nil
}
