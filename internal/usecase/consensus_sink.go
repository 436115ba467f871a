package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SignalForge/internal/domain/models"
	domrepo "SignalForge/internal/domain/repository"
	applogger "SignalForge/pkg/logger"
)

// ConsensusSink publishes every closed window and, when configured, archives it.
type ConsensusSink struct {
	publisher domrepo.ConsensusPublisher
	archive   domrepo.ConsensusArchive
	metrics   domrepo.Metrics
	l         *applogger.Logger
}

// NewConsensusSink creates a sink. archive may be nil.
func NewConsensusSink(publisher domrepo.ConsensusPublisher, archive domrepo.ConsensusArchive, metrics domrepo.Metrics, l *applogger.Logger) *ConsensusSink {
	if l == nil {
		l = applogger.Nop()
	}
	return &ConsensusSink{publisher: publisher, archive: archive, metrics: metrics, l: l}
}

func (s *ConsensusSink) Handle(ctx context.Context, r models.ConsensusResult) error {
	start := time.Now()
	var errs []error
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, r); err != nil {
			s.metrics.RecordError("consensus_publish")
			errs = append(errs, err)
		}
	}
	if s.archive != nil {
		if err := s.archive.Store(ctx, r); err != nil {
			s.metrics.RecordError("consensus_archive")
			errs = append(errs, fmt.Errorf("archive consensus: %w", err))
		}
	}
	s.metrics.RecordLatency("consensus_sink", time.Since(start).Seconds())

	fields := []applogger.Field{
		applogger.String("token", r.Token),
		applogger.String("window_id", r.WindowID),
		applogger.String("decision", string(r.Decision)),
		applogger.Int("sources", len(r.ContributingSources)),
	}
	if r.Score.Valid {
		fields = append(fields, applogger.Float64("score", r.Score.Float64))
	}
	if r.Approved() {
		s.l.Info("consensus.approved", fields...)
	} else {
		s.l.Debug("consensus.closed", fields...)
	}
	return errors.Join(errs...)
}
