package multicast

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"mdpipe/domain/event"
)

// pollInterval bounds shutdown latency on the receive loop, mirroring the
// ingress listener.
const pollInterval = 100 * time.Millisecond

// SubscriberStats is a point-in-time read of the subscriber counters.
type SubscriberStats struct {
	MessagesReceived uint64 `json:"messages_received"`
	BytesReceived    uint64 `json:"bytes_received"`
	ParseErrors      uint64 `json:"parse_errors"`
}

// SubscriberConfig selects the socket mode, mirroring the ingress listener:
// multicast join on the wildcard interface, or a plain unicast bind.
type SubscriberConfig struct {
	Group     string
	Port      int
	Multicast bool
}

// Subscriber follows the republished egress stream. It decodes each
// envelope and dispatches to the registered callbacks on its own goroutine.
// Loss and reordering are expected; sequence and timestamp fields are
// informational.
type Subscriber struct {
	cfg  SubscriberConfig
	conn *net.UDPConn
	buf  []byte

	onSummary   func(symbol string, ts uint64, s event.BookSummary)
	onTrade     func(symbol string, ts uint64, tu event.TradeUpdate)
	onHeartbeat func(hb event.Heartbeat)
	onEnvelope  func(env *event.Envelope, payload []byte)

	messagesReceived atomic.Uint64
	bytesReceived    atomic.Uint64
	parseErrors      atomic.Uint64

	shutdown *atomic.Bool
	log      *zap.Logger
}

// NewSubscriber builds an uninitialized subscriber.
func NewSubscriber(cfg SubscriberConfig, shutdown *atomic.Bool, log *zap.Logger) *Subscriber {
	return &Subscriber{
		cfg:      cfg,
		buf:      make([]byte, event.MaxDatagram),
		shutdown: shutdown,
		log:      log,
	}
}

// OnBookSummary registers the summary callback.
func (s *Subscriber) OnBookSummary(fn func(symbol string, ts uint64, sum event.BookSummary)) {
	s.onSummary = fn
}

// OnTradeUpdate registers the trade callback.
func (s *Subscriber) OnTradeUpdate(fn func(symbol string, ts uint64, tu event.TradeUpdate)) {
	s.onTrade = fn
}

// OnHeartbeat registers the heartbeat callback.
func (s *Subscriber) OnHeartbeat(fn func(hb event.Heartbeat)) {
	s.onHeartbeat = fn
}

// OnEnvelope registers a raw hook invoked for every decoded envelope before
// the typed callbacks; payload is only valid for the duration of the call.
func (s *Subscriber) OnEnvelope(fn func(env *event.Envelope, payload []byte)) {
	s.onEnvelope = fn
}

// Initialize creates the socket. A failed multicast join fails
// initialization.
func (s *Subscriber) Initialize() error {
	if s.cfg.Multicast {
		group := net.ParseIP(s.cfg.Group)
		if group == nil || !group.IsMulticast() {
			return fmt.Errorf("subscriber: invalid multicast group %q", s.cfg.Group)
		}
		conn, err := net.ListenMulticastUDP("udp4", nil, &net.UDPAddr{IP: group, Port: s.cfg.Port})
		if err != nil {
			return fmt.Errorf("subscriber: join %s:%d: %w", s.cfg.Group, s.cfg.Port, err)
		}
		s.conn = conn
		s.log.Info("subscriber joined group",
			zap.String("group", s.cfg.Group), zap.Int("port", s.cfg.Port))
		return nil
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: s.cfg.Port})
	if err != nil {
		return fmt.Errorf("subscriber: bind port %d: %w", s.cfg.Port, err)
	}
	s.conn = conn
	return nil
}

// Port returns the bound local port, or 0 before Initialize.
func (s *Subscriber) Port() int {
	if s.conn == nil {
		return 0
	}
	return s.conn.LocalAddr().(*net.UDPAddr).Port
}

// Listen runs the receive loop until shutdown or a fatal socket error.
func (s *Subscriber) Listen() error {
	if s.conn == nil {
		return errors.New("subscriber: listen on uninitialized socket")
	}

	for !s.shutdown.Load() {
		if err := s.conn.SetReadDeadline(time.Now().Add(pollInterval)); err != nil {
			return fmt.Errorf("subscriber: set deadline: %w", err)
		}
		n, _, err := s.conn.ReadFromUDP(s.buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				break
			}
			s.log.Error("subscriber receive failed", zap.Error(err))
			return fmt.Errorf("subscriber: receive: %w", err)
		}
		s.messagesReceived.Add(1)
		s.bytesReceived.Add(uint64(n))
		s.dispatch(s.buf[:n])
	}

	s.log.Info("subscriber stopped")
	return nil
}

func (s *Subscriber) dispatch(payload []byte) {
	env, err := event.DecodeEnvelope(payload)
	if err != nil {
		s.parseErrors.Add(1)
		return
	}
	if s.onEnvelope != nil {
		s.onEnvelope(&env, payload)
	}

	switch env.Type {
	case event.MsgBookSummary:
		if s.onSummary == nil {
			return
		}
		var sum event.BookSummary
		if err := json.Unmarshal(env.Data, &sum); err != nil {
			s.parseErrors.Add(1)
			return
		}
		s.onSummary(env.Symbol, env.Timestamp, sum)

	case event.MsgTradeUpdate:
		if s.onTrade == nil {
			return
		}
		var tu event.TradeUpdate
		if err := json.Unmarshal(env.Data, &tu); err != nil {
			s.parseErrors.Add(1)
			return
		}
		s.onTrade(env.Symbol, env.Timestamp, tu)

	case event.MsgHeartbeat:
		if s.onHeartbeat == nil {
			return
		}
		var hb event.Heartbeat
		if err := json.Unmarshal(env.Data, &hb); err != nil {
			s.parseErrors.Add(1)
			return
		}
		s.onHeartbeat(hb)

	default:
		s.parseErrors.Add(1)
	}
}

// Stats reads the counters.
func (s *Subscriber) Stats() SubscriberStats {
	return SubscriberStats{
		MessagesReceived: s.messagesReceived.Load(),
		BytesReceived:    s.bytesReceived.Load(),
		ParseErrors:      s.parseErrors.Load(),
	}
}

// Close releases the socket; for a multicast subscriber this drops the
// group membership.
func (s *Subscriber) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
