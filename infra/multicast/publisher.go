// Package multicast carries the egress side of the pipeline: the publisher
// the consumer goroutine writes through, and the subscriber downstream
// processes use to follow the republished stream.
package multicast

import (
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/ipv4"

	"mdpipe/domain/event"
	"mdpipe/infra/clock"
)

// Mirror receives a copy of every egress payload. Implementations must not
// block; the consumer hot path calls this inline.
type Mirror interface {
	Mirror(symbol string, payload []byte)
}

// PublisherStats is a point-in-time read of the publisher counters.
type PublisherStats struct {
	MessagesSent uint64 `json:"messages_sent"`
	BytesSent    uint64 `json:"bytes_sent"`
	SendErrors   uint64 `json:"send_errors"`
}

// Publisher fans the processed stream out to the egress multicast group.
// Delivery is best-effort: no retries, no buffering; a failed send bumps a
// counter and the event is gone. Only the consumer goroutine sends; the
// heartbeat loop runs on its own goroutine with its own envelope.
type Publisher struct {
	conn  *net.UDPConn
	group string
	port  int

	id string // instance identity carried in heartbeats

	messagesSent atomic.Uint64
	bytesSent    atomic.Uint64
	sendErrors   atomic.Uint64

	mirror Mirror
	log    *zap.Logger
}

// NewPublisher builds an uninitialized publisher with a fresh instance id.
func NewPublisher(log *zap.Logger) *Publisher {
	return &Publisher{id: uuid.NewString(), log: log}
}

// Initialize connects the egress socket and sets the multicast TTL
// (default 1 keeps traffic link-local).
func (p *Publisher) Initialize(group string, port, ttl int) error {
	ip := net.ParseIP(group)
	if ip == nil {
		return fmt.Errorf("multicast: invalid group address %q", group)
	}
	conn, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: ip, Port: port})
	if err != nil {
		return fmt.Errorf("multicast: dial %s:%d: %w", group, port, err)
	}
	if ip.IsMulticast() {
		if err := ipv4.NewPacketConn(conn).SetMulticastTTL(ttl); err != nil {
			conn.Close()
			return fmt.Errorf("multicast: set ttl: %w", err)
		}
	}
	p.conn = conn
	p.group = group
	p.port = port
	p.log.Info("multicast publisher initialized",
		zap.String("group", group), zap.Int("port", port), zap.Int("ttl", ttl))
	return nil
}

// SetMirror attaches an optional egress copy target (e.g. a Kafka writer).
func (p *Publisher) SetMirror(m Mirror) {
	p.mirror = m
}

// PublishBookSummary emits the top-of-book view for symbol.
func (p *Publisher) PublishBookSummary(symbol string, s event.BookSummary, ts uint64) {
	p.send(event.MsgBookSummary, symbol, ts, s)
}

// PublishTradeUpdate emits a trade print notification.
func (p *Publisher) PublishTradeUpdate(symbol string, tu event.TradeUpdate, ts uint64) {
	p.send(event.MsgTradeUpdate, symbol, ts, tu)
}

// PublishHeartbeat emits the publisher counters so subscribers can detect
// silence and estimate loss.
func (p *Publisher) PublishHeartbeat() {
	p.send(event.MsgHeartbeat, "", clock.MonoNanos(), event.Heartbeat{
		MessagesSent: p.messagesSent.Load(),
		BytesSent:    p.bytesSent.Load(),
		PublisherID:  p.id,
	})
}

// StartHeartbeat emits a heartbeat every interval until done is closed.
func (p *Publisher) StartHeartbeat(done <-chan struct{}, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				p.PublishHeartbeat()
			}
		}
	}()
}

func (p *Publisher) send(t event.MsgType, symbol string, ts uint64, body any) {
	if p.conn == nil {
		return
	}
	env, err := event.NewEnvelope(t, symbol, ts, body)
	if err != nil {
		p.sendErrors.Add(1)
		return
	}
	payload, err := env.Marshal()
	if err != nil {
		p.sendErrors.Add(1)
		return
	}
	if _, err := p.conn.Write(payload); err != nil {
		p.sendErrors.Add(1)
		return
	}
	p.messagesSent.Add(1)
	p.bytesSent.Add(uint64(len(payload)))
	if p.mirror != nil {
		p.mirror.Mirror(symbol, payload)
	}
}

// Stats reads the counters.
func (p *Publisher) Stats() PublisherStats {
	return PublisherStats{
		MessagesSent: p.messagesSent.Load(),
		BytesSent:    p.bytesSent.Load(),
		SendErrors:   p.sendErrors.Load(),
	}
}

// Close releases the egress socket.
func (p *Publisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}
