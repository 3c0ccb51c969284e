// metricsd follows the republished multicast stream, derives per-symbol
// metrics, and serves them over HTTP plus a WebSocket live feed.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	"mdpipe/api/metrics"
	"mdpipe/config"
	"mdpipe/domain/event"
	"mdpipe/infra/multicast"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	cfg := config.Load()

	var shutdown atomic.Bool
	store := metrics.NewStore()
	hub := metrics.NewHub(log)

	sub := multicast.NewSubscriber(multicast.SubscriberConfig{
		Group:     cfg.EgressGroup,
		Port:      cfg.EgressPort,
		Multicast: true,
	}, &shutdown, log)

	sub.OnBookSummary(store.ApplySummary)
	sub.OnTradeUpdate(store.ApplyTrade)
	sub.OnHeartbeat(store.ApplyHeartbeat)
	sub.OnEnvelope(func(_ *event.Envelope, payload []byte) {
		hub.Publish(payload)
	})

	if err := sub.Initialize(); err != nil {
		log.Fatal("subscriber init failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := &http.Server{
		Addr:    cfg.MetricsListenAddr,
		Handler: metrics.NewServer(store, hub, sub, log).Routes(),
	}
	go func() {
		log.Info("metrics api listening", zap.String("addr", cfg.MetricsListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("shutting down", zap.String("signal", sig.String()))
		shutdown.Store(true)
		sub.Close()
		shutCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = srv.Shutdown(shutCtx)
		cancel()
	}()

	if err := sub.Listen(); err != nil {
		log.Error("subscriber exited", zap.Error(err))
	}

	stats := sub.Stats()
	log.Info("metricsd stopped",
		zap.Uint64("messages", stats.MessagesReceived),
		zap.Uint64("bytes", stats.BytesReceived),
		zap.Uint64("parse_errors", stats.ParseErrors))
}
