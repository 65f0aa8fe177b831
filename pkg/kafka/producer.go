// Package kafka emits analysis lifecycle events for downstream consumers.
package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/harmonia-app/harmonia/pkg/metrics"
	"github.com/harmonia-app/harmonia/pkg/tracing"
)

// Producer handles Kafka event emission
type Producer struct {
	writer *kafkago.Writer
	logger ectologger.Logger
	topic  string
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	compression := kafkago.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafkago.Gzip
	case "lz4":
		compression = kafkago.Lz4
	case "zstd":
		compression = kafkago.Zstd
	case "none":
		compression = 0
	}

	writer := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Balancer:               &kafkago.LeastBytes{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafkago.RequiredAcks(cfg.RequiredAcks),
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer: writer,
		logger: logger,
		topic:  cfg.Topic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// AnalysisEvent describes the outcome of one analysis run.
type AnalysisEvent struct {
	EventType  string     `json:"event_type"` // analysis.completed, analysis.failed
	EventID    uuid.UUID  `json:"event_id"`
	UserID     uuid.UUID  `json:"user_id"`
	AnalysisID *uuid.UUID `json:"analysis_id,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// PublishAnalysisEvent publishes an analysis outcome event to Kafka
func (p *Producer) PublishAnalysisEvent(ctx context.Context, event *AnalysisEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishAnalysisEvent")
	defer span.End()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafkago.Message{
		Topic: p.topic,
		Key:   []byte(event.EventID.String()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "user_id", Value: []byte(event.UserID.String())},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		metrics.RecordKafkaPublish(p.topic, "error")
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish analysis event")
		return err
	}

	metrics.RecordKafkaPublish(p.topic, "success")
	p.logger.WithContext(ctx).WithFields(map[string]any{
		"event_type": event.EventType,
		"event_id":   event.EventID,
	}).Debug("Published analysis event")

	return nil
}
