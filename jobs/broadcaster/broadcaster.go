// Package broadcaster periodically publishes pipeline counter snapshots to
// a Kafka stats topic, for dashboards that cannot join the multicast fabric.
package broadcaster

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"mdpipe/infra/multicast"
	"mdpipe/service"
)

// statsMessage is the published snapshot shape.
type statsMessage struct {
	V         int   `json:"v"`
	UnixNanos int64 `json:"unix_nanos"`
	service.CountersSnapshot
	Publisher multicast.PublisherStats `json:"publisher"`
}

// Broadcaster owns the stats producer and its tick loop.
type Broadcaster struct {
	producer sarama.SyncProducer
	topic    string
	interval time.Duration

	counters *service.Counters
	pub      *multicast.Publisher
	log      *zap.Logger
}

// New connects the Kafka producer. Stats are low-rate, so synchronous
// delivery with full acks is fine here.
func New(
	brokers []string,
	topic string,
	interval time.Duration,
	counters *service.Counters,
	pub *multicast.Publisher,
	log *zap.Logger,
) (*Broadcaster, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}

	return &Broadcaster{
		producer: producer,
		topic:    topic,
		interval: interval,
		counters: counters,
		pub:      pub,
		log:      log,
	}, nil
}

// Start runs the tick loop on its own goroutine until ctx is cancelled.
func (b *Broadcaster) Start(ctx context.Context) {
	b.log.Info("stats broadcaster started",
		zap.String("topic", b.topic), zap.Duration("interval", b.interval))

	go func() {
		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.publishOnce()
			}
		}
	}()
}

func (b *Broadcaster) publishOnce() {
	msg := statsMessage{
		V:                1,
		UnixNanos:        time.Now().UnixNano(),
		CountersSnapshot: b.counters.Snapshot(),
		Publisher:        b.pub.Stats(),
	}
	payload, err := json.Marshal(&msg)
	if err != nil {
		b.log.Error("stats marshal failed", zap.Error(err))
		return
	}

	_, _, err = b.producer.SendMessage(&sarama.ProducerMessage{
		Topic: b.topic,
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		b.log.Warn("stats publish failed", zap.Error(err))
	}
}

// Close shuts the producer down.
func (b *Broadcaster) Close() error {
	return b.producer.Close()
}
