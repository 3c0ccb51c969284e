// The processor is the core daemon: it ingests feed datagrams, reconstructs
// per-symbol books, and republishes summaries and trades over multicast.
//
// Exactly two goroutines touch the hot path. The main goroutine runs the
// listener (producer: receive, decode, stamp, push); one goroutine runs the
// pipeline consumer (pop, book, republish, telemetry). Everything else —
// heartbeats, the optional Kafka stats broadcaster — is periodic background
// work off the hot path.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"go.uber.org/zap"

	"mdpipe/config"
	"mdpipe/domain/event"
	"mdpipe/infra/ingress"
	"mdpipe/infra/kafka"
	"mdpipe/infra/multicast"
	"mdpipe/infra/spsc"
	"mdpipe/jobs/broadcaster"
	"mdpipe/service"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	cfg := config.Load()

	// ---------------- Egress ----------------

	pub := multicast.NewPublisher(log)
	if err := pub.Initialize(cfg.EgressGroup, cfg.EgressPort, cfg.EgressTTL); err != nil {
		log.Fatal("publisher init failed", zap.Error(err))
	}
	defer pub.Close()

	var mirror *kafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		mirror = kafka.NewProducer(cfg.KafkaBrokers, cfg.MirrorTopic, log)
		defer mirror.Close()
		pub.SetMirror(mirror)
		log.Info("kafka mirror enabled", zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.MirrorTopic))
	}

	// ---------------- Core pipeline ----------------

	var shutdown atomic.Bool
	counters := &service.Counters{}
	ring := spsc.New[event.BookEvent](cfg.RingCapacity)
	lat := service.NewLatencyTracker(cfg.SummaryEvery, counters, log)
	pipe := service.NewPipeline(ring, pub, counters, lat, &shutdown, log)

	// ---------------- Ingress ----------------

	listener := ingress.New(ingress.Config{
		Group:     cfg.IngressGroup,
		Port:      cfg.IngressPort,
		Multicast: cfg.IngressMulticast,
	}, pipe.Ingest, &shutdown, &counters.ParseErrors, log)

	if err := listener.Initialize(); err != nil {
		log.Fatal("listener init failed", zap.Error(err))
	}

	// ---------------- Background jobs ----------------

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub.StartHeartbeat(ctx.Done(), cfg.HeartbeatInterval)

	if len(cfg.KafkaBrokers) > 0 {
		stats, err := broadcaster.New(cfg.KafkaBrokers, cfg.StatsTopic,
			cfg.StatsInterval, counters, pub, log)
		if err != nil {
			log.Fatal("stats broadcaster init failed", zap.Error(err))
		}
		defer stats.Close()
		stats.Start(ctx)
	}

	// ---------------- Shutdown wiring ----------------

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("shutting down", zap.String("signal", sig.String()))
		shutdown.Store(true)
		listener.Close()
	}()

	// ---------------- Run ----------------

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		pipe.Run()
	}()

	if err := listener.Listen(); err != nil {
		// Fatal receive error: stop the consumer too.
		log.Error("listener exited", zap.Error(err))
		shutdown.Store(true)
	}

	wg.Wait()

	snap := counters.Snapshot()
	log.Info("processor stopped",
		zap.Uint64("pushed", snap.EventsPushed),
		zap.Uint64("dropped", snap.EventsDropped),
		zap.Uint64("parse_errors", snap.ParseErrors),
		zap.Uint64("processed", snap.EventsProcessed),
		zap.Uint64("anomalies", snap.Anomalies))
}
