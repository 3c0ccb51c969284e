package ingress

import (
	"fmt"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"mdpipe/domain/event"
)

type listenerEnv struct {
	listener *Listener
	events   chan event.BookEvent
	errs     chan error
	shutdown *atomic.Bool
	parseErr *atomic.Uint64
}

func startListener(t *testing.T) *listenerEnv {
	t.Helper()
	env := &listenerEnv{
		events:   make(chan event.BookEvent, 64),
		errs:     make(chan error, 1),
		shutdown: &atomic.Bool{},
		parseErr: &atomic.Uint64{},
	}
	env.listener = New(Config{Port: 0}, func(ev event.BookEvent) {
		env.events <- ev
	}, env.shutdown, env.parseErr, zap.NewNop())

	if err := env.listener.Initialize(); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	go func() { env.errs <- env.listener.Listen() }()

	t.Cleanup(func() {
		env.shutdown.Store(true)
		env.listener.Close()
		select {
		case err := <-env.errs:
			if err != nil {
				t.Errorf("listen returned %v after shutdown", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("listener did not stop")
		}
	})
	return env
}

func (e *listenerEnv) send(t *testing.T, payload []byte) {
	t.Helper()
	conn, err := net.Dial("udp4", fmt.Sprintf("127.0.0.1:%d", e.listener.Port()))
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write(payload); err != nil {
		t.Fatalf("send failed: %v", err)
	}
}

func TestListenerDeliversDecodedEvents(t *testing.T) {
	env := startListener(t)

	in := event.BookEvent{
		Kind: event.AddOrder, Symbol: "AAPL", OrderID: "A",
		Side: event.Bid, Price: 150.25, Size: 1000, Seq: 1,
	}
	payload, err := event.Encode(&in)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	env.send(t, payload)

	select {
	case ev := <-env.events:
		if ev.Kind != event.AddOrder || ev.Symbol != "AAPL" || ev.Price != 150.25 {
			t.Errorf("event mismatch: %+v", ev)
		}
		if ev.TRxMonoNS == 0 {
			t.Error("listener must stamp t_rx")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}
}

func TestListenerPreservesArrivalOrder(t *testing.T) {
	env := startListener(t)

	const n = 20
	conn, err := net.Dial("udp4", fmt.Sprintf("127.0.0.1:%d", env.listener.Port()))
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	for i := 0; i < n; i++ {
		in := event.BookEvent{Kind: event.AddOrder, Symbol: "AAPL", Seq: uint64(i + 1)}
		payload, _ := event.Encode(&in)
		if _, err := conn.Write(payload); err != nil {
			t.Fatalf("send failed: %v", err)
		}
	}

	// Loopback UDP is lossless in practice; the loop below still tolerates
	// drops by only checking that seq never goes backwards.
	last := uint64(0)
	received := 0
	deadline := time.After(2 * time.Second)
	for received < n {
		select {
		case ev := <-env.events:
			if ev.Seq <= last {
				t.Fatalf("order violated: seq %d after %d", ev.Seq, last)
			}
			last = ev.Seq
			received++
		case <-deadline:
			if received == 0 {
				t.Fatal("no events delivered")
			}
			return
		}
	}
}

func TestListenerCountsParseErrors(t *testing.T) {
	env := startListener(t)

	env.send(t, []byte("this is not json"))

	deadline := time.Now().Add(2 * time.Second)
	for env.parseErr.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("parse error not counted")
		}
		time.Sleep(time.Millisecond)
	}

	// The listener must survive the bad datagram.
	good, _ := event.Encode(&event.BookEvent{Kind: event.Trade, Symbol: "AAPL"})
	env.send(t, good)
	select {
	case <-env.events:
	case <-time.After(2 * time.Second):
		t.Fatal("listener died after parse error")
	}
}

func TestListenUninitialized(t *testing.T) {
	var shutdown atomic.Bool
	var parseErr atomic.Uint64
	l := New(Config{Port: 0}, func(event.BookEvent) {}, &shutdown, &parseErr, zap.NewNop())
	if err := l.Listen(); err == nil {
		t.Fatal("listen on uninitialized socket must fail")
	}
}

func TestInitializeRejectsBadGroup(t *testing.T) {
	var shutdown atomic.Bool
	var parseErr atomic.Uint64
	for _, group := range []string{"not-an-ip", "10.1.2.3"} {
		l := New(Config{Group: group, Port: 12345, Multicast: true},
			func(event.BookEvent) {}, &shutdown, &parseErr, zap.NewNop())
		if err := l.Initialize(); err == nil {
			t.Errorf("group %q must fail initialization", group)
			l.Close()
		}
	}
}
