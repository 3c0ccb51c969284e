// Package kafka mirrors the egress stream to a Kafka topic so consumers
// off the multicast fabric can tail the feed.
package kafka

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Producer writes egress payloads to one topic, keyed by symbol so a
// partition preserves per-symbol order. The writer runs async: the consumer
// hot path only enqueues, and delivery failures surface through the
// completion callback as a counter.
type Producer struct {
	writer     *kafka.Writer
	writeFails atomic.Uint64
	log        *zap.Logger
}

// NewProducer builds the mirror writer.
func NewProducer(brokers []string, topic string, log *zap.Logger) *Producer {
	p := &Producer{log: log}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		BatchTimeout: 10 * time.Millisecond,
		Completion: func(_ []kafka.Message, err error) {
			if err != nil {
				p.writeFails.Add(1)
			}
		},
	}
	return p
}

// Mirror enqueues one egress payload. Best-effort, like the multicast send
// it shadows: errors are counted, never retried here.
func (p *Producer) Mirror(symbol string, payload []byte) {
	value := make([]byte, len(payload)) // writer retains the slice past return
	copy(value, payload)
	msg := kafka.Message{Value: value}
	if symbol != "" {
		msg.Key = []byte(symbol)
	}
	if err := p.writer.WriteMessages(context.Background(), msg); err != nil {
		p.writeFails.Add(1)
	}
}

// WriteFailures returns the number of failed deliveries observed so far.
func (p *Producer) WriteFailures() uint64 {
	return p.writeFails.Load()
}

// Close flushes and closes the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
