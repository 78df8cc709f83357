package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/trogers1052/portfolio-tracker/internal/models"
)

// SnapshotSource is the event source of everything this service publishes
const SnapshotSource = "portfolio-tracker"

// messageWriter is the part of kafka.Writer the producer uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer handles publishing events to Kafka
type Producer struct {
	writer messageWriter
	topic  string
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{
		writer: writer,
		topic:  topic,
	}
}

// PublishSnapshotUpdated publishes a stored snapshot keyed by its scope, so
// every update of one scope lands on the same partition in order
func (p *Producer) PublishSnapshotUpdated(ctx context.Context, runID string, snap *models.DailySnapshot, assets []models.AssetBreakdown) error {
	if assets == nil {
		assets = []models.AssetBreakdown{}
	}
	data, err := json.Marshal(models.SnapshotEventData{
		RunID:    runID,
		Snapshot: *snap,
		Assets:   assets,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	event := models.Event{
		EventID:   uuid.NewString(),
		EventType: models.EventSnapshotUpdated,
		Source:    SnapshotSource,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
	return p.publish(ctx, snap.Scope.Key(), event)
}

func (p *Producer) publish(ctx context.Context, key string, event models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
