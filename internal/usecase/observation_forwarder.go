package usecase

import (
	"context"
	"fmt"
	"time"

	"SignalForge/internal/domain/models"
	"SignalForge/internal/repository"
)

// ObservationForwarder republishes collected observations to the bus instead of
// routing them locally, so every instance consuming the topic sees the same feed.
type ObservationForwarder struct {
	producer repository.MessagePublisher
	topic    string
	timeout  time.Duration
}

func NewObservationForwarder(producer repository.MessagePublisher, topic string) *ObservationForwarder {
	return &ObservationForwarder{producer: producer, topic: topic, timeout: 5 * time.Second}
}

func (f *ObservationForwarder) RouteObservation(o models.Observation) error {
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()
	msg := models.ObservationMessage{
		Token:     o.Token,
		Timestamp: o.Timestamp.UnixMilli(),
		Price:     o.Price,
		Volume:    o.Volume,
	}
	if err := f.producer.Publish(ctx, f.topic, []byte(o.Token), msg); err != nil {
		return fmt.Errorf("forward observation: %w", err)
	}
	return nil
}
