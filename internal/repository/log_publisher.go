package repository

import (
	"context"

	pkgkafka "Shootdown/pkg/kafka"
	applogger "Shootdown/pkg/logger"
)

// LogBatch is the payload of one aggregated log flush.
type LogBatch struct {
	Service string                         `json:"service"`
	Entries []applogger.AggregatedLogEntry `json:"entries"`
}

// KafkaLogPublisher ships aggregated warnings and errors to Kafka, keyed by
// service name.
type KafkaLogPublisher struct {
	producer viewPublisher
	service  string
}

func NewKafkaLogPublisher(producer viewPublisher, service string) *KafkaLogPublisher {
	return &KafkaLogPublisher{producer: producer, service: service}
}

func (p *KafkaLogPublisher) PublishLogs(ctx context.Context, topic string, entries []applogger.AggregatedLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return p.producer.Publish(ctx, topic, []byte(p.service), LogBatch{Service: p.service, Entries: entries},
		pkgkafka.Header{Key: "content-type", Value: "application/json"},
	)
}

var _ applogger.Publisher = (*KafkaLogPublisher)(nil)
