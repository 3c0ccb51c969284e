// Package ingress owns the feed-facing UDP socket. One listener, one
// socket, one reusable receive buffer; every decoded event is stamped with
// the monotonic receive time and handed to the sink on the same goroutine.
package ingress

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"mdpipe/domain/event"
	"mdpipe/infra/clock"
)

// Sink receives each decoded event, still on the listener goroutine. It
// must not block: the pipeline's sink does a non-blocking ring push.
type Sink func(event.BookEvent)

// pollInterval bounds shutdown latency: the read parks in the runtime
// poller, and the deadline wakes us to check the shutdown flag.
const pollInterval = 100 * time.Millisecond

// Config selects the socket mode. With Multicast set, the listener joins
// Group on the wildcard interface; otherwise it binds Port on all
// interfaces.
type Config struct {
	Group     string
	Port      int
	Multicast bool
}

// Listener reads one event per datagram from the feed.
type Listener struct {
	cfg  Config
	conn *net.UDPConn
	buf  []byte

	sink        Sink
	shutdown    *atomic.Bool
	parseErrors *atomic.Uint64
	log         *zap.Logger
}

// New builds an uninitialized listener. parseErrors is the shared pipeline
// counter for undecodable datagrams.
func New(cfg Config, sink Sink, shutdown *atomic.Bool, parseErrors *atomic.Uint64, log *zap.Logger) *Listener {
	return &Listener{
		cfg:         cfg,
		buf:         make([]byte, event.MaxDatagram),
		sink:        sink,
		shutdown:    shutdown,
		parseErrors: parseErrors,
		log:         log,
	}
}

// Initialize creates and binds the socket. A failed multicast join fails
// initialization; there is no fallback to unicast.
func (l *Listener) Initialize() error {
	if l.cfg.Multicast {
		group := net.ParseIP(l.cfg.Group)
		if group == nil || !group.IsMulticast() {
			return fmt.Errorf("ingress: invalid multicast group %q", l.cfg.Group)
		}
		conn, err := net.ListenMulticastUDP("udp4", nil, &net.UDPAddr{IP: group, Port: l.cfg.Port})
		if err != nil {
			return fmt.Errorf("ingress: join %s:%d: %w", l.cfg.Group, l.cfg.Port, err)
		}
		l.conn = conn
		l.log.Info("joined multicast group",
			zap.String("group", l.cfg.Group), zap.Int("port", l.cfg.Port))
		return nil
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: l.cfg.Port})
	if err != nil {
		return fmt.Errorf("ingress: bind port %d: %w", l.cfg.Port, err)
	}
	l.conn = conn
	l.log.Info("udp listener bound", zap.String("addr", conn.LocalAddr().String()))
	return nil
}

// Port returns the bound local port, or 0 before Initialize.
func (l *Listener) Port() int {
	if l.conn == nil {
		return 0
	}
	return l.conn.LocalAddr().(*net.UDPAddr).Port
}

// Listen runs the receive loop until shutdown or a fatal socket error.
// Parse failures are counted and skipped. The loop never allocates per
// packet; the receive buffer is reused and Decode copies what it keeps.
func (l *Listener) Listen() error {
	if l.conn == nil {
		return errors.New("ingress: listen on uninitialized socket")
	}

	for !l.shutdown.Load() {
		if err := l.conn.SetReadDeadline(time.Now().Add(pollInterval)); err != nil {
			return fmt.Errorf("ingress: set deadline: %w", err)
		}
		n, _, err := l.conn.ReadFromUDP(l.buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue // no datagram ready; poll the shutdown flag
			}
			if errors.Is(err, net.ErrClosed) {
				break
			}
			l.log.Error("receive failed", zap.Error(err))
			return fmt.Errorf("ingress: receive: %w", err)
		}

		rx := clock.MonoNanos()
		ev, err := event.Decode(l.buf[:n])
		if err != nil {
			l.parseErrors.Add(1)
			continue
		}
		ev.TRxMonoNS = rx
		l.sink(ev)
	}

	l.log.Info("udp listener stopped")
	return nil
}

// Close releases the socket; for a multicast listener this drops the group
// membership. Safe to call while Listen is blocked in a read.
func (l *Listener) Close() error {
	if l.conn == nil {
		return nil
	}
	return l.conn.Close()
}
