// Package kafkasink publishes audit entries to a Kafka topic, keyed by claim
// ID so every entry for a claim lands on the same partition.
package kafkasink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/linnemanlabs/adjuster/internal/audit"
)

// Header keys set on every message.
const (
	HeaderEntryType = "adjuster-entry-type"
	HeaderProvider  = "adjuster-provider"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Sink is an audit.Sink backed by a kafka-go Writer.
type Sink struct {
	w     messageWriter
	topic string
}

// New returns a sink writing to topic on brokers.
func New(brokers []string, topic string) *Sink {
	return &Sink{
		topic: topic,
		w: &kafkago.Writer{
			Addr:         kafkago.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafkago.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafkago.RequireAll,
		},
	}
}

// Append implements audit.Sink.
func (s *Sink) Append(ctx context.Context, e audit.Entry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("kafkasink: marshal entry: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(e.ClaimID),
		Value: value,
		Time:  e.Timestamp,
		Headers: []kafkago.Header{
			{Key: HeaderEntryType, Value: []byte(e.Type)},
		},
	}
	if e.Provider != "" {
		msg.Headers = append(msg.Headers, kafkago.Header{Key: HeaderProvider, Value: []byte(e.Provider)})
	}

	if err := s.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafkasink: publish to %s: %w", s.topic, err)
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (s *Sink) Close() error {
	return s.w.Close()
}
