package authapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaAuditor publishes events as JSON to a Kafka topic. Messages are
// keyed by user id so one user's events stay ordered within a partition.
type KafkaAuditor struct {
	writer messageWriter
	log    *slog.Logger
}

// messageWriter is the part of *kafka.Writer the auditor uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaAuditor returns nil when brokers or topic are empty.
func NewKafkaAuditor(brokers []string, topic string, log *slog.Logger) *KafkaAuditor {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	if log == nil {
		log = slog.Default()
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Warn("auth.audit.kafka.fail", "messages", len(messages), "err", err)
			}
		},
	}
	return &KafkaAuditor{writer: w, log: log}
}

func (a *KafkaAuditor) Record(ctx context.Context, e Event) {
	if a == nil || a.writer == nil {
		return
	}
	msg, err := auditMessage(e)
	if err != nil {
		a.log.Warn("auth.audit.encode.fail", "action", e.Action, "err", err)
		return
	}
	// Async writer: WriteMessages only enqueues.
	if err := a.writer.WriteMessages(context.WithoutCancel(ctx), msg); err != nil {
		a.log.Warn("auth.audit.kafka.fail", "action", e.Action, "err", err)
	}
}

// auditMessage encodes e as JSON keyed by user id. Events without a user
// get a nil key and are spread by the balancer.
func auditMessage(e Event) (kafka.Message, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, err
	}
	var key []byte
	if e.UserID != "" {
		key = []byte(e.UserID)
	}
	return kafka.Message{Key: key, Value: payload, Time: e.At}, nil
}

// Close flushes pending messages.
func (a *KafkaAuditor) Close() error {
	if a == nil || a.writer == nil {
		return nil
	}
	return a.writer.Close()
}
