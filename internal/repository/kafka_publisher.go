package repository

import (
	"context"

	"Shootdown/internal/domain/models"
	pkgkafka "Shootdown/pkg/kafka"
)

// viewPublisher is the subset of *pkgkafka.Producer the publisher uses.
type viewPublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}, headers ...pkgkafka.Header) error
	Close() error
}

// ViewEvent is the payload published for each computed view.
type ViewEvent struct {
	Date string       `json:"date"`
	View *models.View `json:"view"`
}

// KafkaPublisher publishes computed views keyed by date.
type KafkaPublisher struct {
	producer viewPublisher
	topic    string
}

func NewKafkaPublisher(producer viewPublisher, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, date string, v *models.View) error {
	return p.producer.Publish(ctx, p.topic, []byte(date), ViewEvent{Date: date, View: v},
		pkgkafka.Header{Key: "content-type", Value: "application/json"},
	)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
