package repository

import (
	"context"
	"fmt"

	"SignalForge/internal/domain/models"
	domrepo "SignalForge/internal/domain/repository"
)

// MessagePublisher is the subset of the Kafka producer the publisher needs.
type MessagePublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaConsensusPublisher routes results to the approved or failed topic, keyed by token.
type KafkaConsensusPublisher struct {
	producer      MessagePublisher
	approvedTopic string
	failedTopic   string
}

var _ domrepo.ConsensusPublisher = (*KafkaConsensusPublisher)(nil)

func NewKafkaConsensusPublisher(producer MessagePublisher, approvedTopic, failedTopic string) *KafkaConsensusPublisher {
	return &KafkaConsensusPublisher{producer: producer, approvedTopic: approvedTopic, failedTopic: failedTopic}
}

// TopicFor returns the topic a result is published to.
func (p *KafkaConsensusPublisher) TopicFor(r models.ConsensusResult) string {
	if r.Approved() {
		return p.approvedTopic
	}
	return p.failedTopic
}

func (p *KafkaConsensusPublisher) Publish(ctx context.Context, r models.ConsensusResult) error {
	topic := p.TopicFor(r)
	if err := p.producer.Publish(ctx, topic, []byte(r.Token), models.NewConsensusMessage(r)); err != nil {
		return fmt.Errorf("publish consensus to %s: %w", topic, err)
	}
	return nil
}

func (p *KafkaConsensusPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
