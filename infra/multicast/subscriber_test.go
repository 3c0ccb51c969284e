package multicast

import (
	"fmt"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"mdpipe/domain/event"
)

type subEnv struct {
	sub       *Subscriber
	summaries chan event.BookSummary
	trades    chan event.TradeUpdate
	beats     chan event.Heartbeat
	raw       chan event.Envelope
	shutdown  *atomic.Bool
	errs      chan error
}

func startSubscriber(t *testing.T) *subEnv {
	t.Helper()
	env := &subEnv{
		summaries: make(chan event.BookSummary, 16),
		trades:    make(chan event.TradeUpdate, 16),
		beats:     make(chan event.Heartbeat, 16),
		raw:       make(chan event.Envelope, 16),
		shutdown:  &atomic.Bool{},
		errs:      make(chan error, 1),
	}
	env.sub = NewSubscriber(SubscriberConfig{Port: 0}, env.shutdown, zap.NewNop())
	env.sub.OnBookSummary(func(_ string, _ uint64, s event.BookSummary) { env.summaries <- s })
	env.sub.OnTradeUpdate(func(_ string, _ uint64, tu event.TradeUpdate) { env.trades <- tu })
	env.sub.OnHeartbeat(func(hb event.Heartbeat) { env.beats <- hb })
	env.sub.OnEnvelope(func(e *event.Envelope, _ []byte) { env.raw <- *e })

	if err := env.sub.Initialize(); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	go func() { env.errs <- env.sub.Listen() }()

	t.Cleanup(func() {
		env.shutdown.Store(true)
		env.sub.Close()
		select {
		case err := <-env.errs:
			if err != nil {
				t.Errorf("listen returned %v after shutdown", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("subscriber did not stop")
		}
	})
	return env
}

func (e *subEnv) send(t *testing.T, payload []byte) {
	t.Helper()
	conn, err := net.Dial("udp4", fmt.Sprintf("127.0.0.1:%d", e.sub.Port()))
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write(payload); err != nil {
		t.Fatalf("send failed: %v", err)
	}
}

func TestSubscriberDispatchesByType(t *testing.T) {
	env := startSubscriber(t)

	sum, _ := event.NewEnvelope(event.MsgBookSummary, "AAPL", 1, event.BookSummary{BestBidPrice: 150.25})
	payload, _ := sum.Marshal()
	env.send(t, payload)

	select {
	case s := <-env.summaries:
		if s.BestBidPrice != 150.25 {
			t.Errorf("summary mismatch: %+v", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("summary callback not invoked")
	}

	trade, _ := event.NewEnvelope(event.MsgTradeUpdate, "AAPL", 2, event.TradeUpdate{Price: 1, Size: 2, AggressorSide: "BID"})
	payload, _ = trade.Marshal()
	env.send(t, payload)

	select {
	case tu := <-env.trades:
		if tu.AggressorSide != "BID" {
			t.Errorf("trade mismatch: %+v", tu)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("trade callback not invoked")
	}

	hb, _ := event.NewEnvelope(event.MsgHeartbeat, "", 3, event.Heartbeat{MessagesSent: 9})
	payload, _ = hb.Marshal()
	env.send(t, payload)

	select {
	case got := <-env.beats:
		if got.MessagesSent != 9 {
			t.Errorf("heartbeat mismatch: %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("heartbeat callback not invoked")
	}

	// The raw hook fires for each of the three.
	for i := 0; i < 3; i++ {
		select {
		case <-env.raw:
		case <-time.After(2 * time.Second):
			t.Fatal("raw hook missed an envelope")
		}
	}

	stats := env.sub.Stats()
	if stats.MessagesReceived != 3 || stats.ParseErrors != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestSubscriberCountsGarbage(t *testing.T) {
	env := startSubscriber(t)

	env.send(t, []byte("{not valid"))

	deadline := time.Now().Add(2 * time.Second)
	for env.sub.Stats().ParseErrors == 0 {
		if time.Now().After(deadline) {
			t.Fatal("parse error not counted")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSubscriberRejectsBadGroup(t *testing.T) {
	var shutdown atomic.Bool
	s := NewSubscriber(SubscriberConfig{Group: "192.168.1.1", Port: 12346, Multicast: true},
		&shutdown, zap.NewNop())
	if err := s.Initialize(); err == nil {
		t.Fatal("non-multicast group must fail initialization")
	}
}
