package service

import (
	"runtime"
	"sync/atomic"

	"go.uber.org/zap"

	"mdpipe/domain/book"
	"mdpipe/domain/event"
	"mdpipe/infra/clock"
	"mdpipe/infra/spsc"
)

// Publisher is the downstream fan-out the consumer feeds. Sends are
// best-effort; implementations count their own failures.
type Publisher interface {
	PublishBookSummary(symbol string, s event.BookSummary, ts uint64)
	PublishTradeUpdate(symbol string, tu event.TradeUpdate, ts uint64)
}

// Pipeline wires the SPSC ring to the book table and the republisher.
//
// Ingest is the producer half and runs on the listener goroutine; Run is
// the consumer half. The book table belongs to the consumer goroutine
// exclusively — no other code may touch it while Run is live.
type Pipeline struct {
	ring     *spsc.Ring[event.BookEvent]
	books    map[string]*book.OrderBook
	pub      Publisher
	counters *Counters
	lat      *LatencyTracker
	shutdown *atomic.Bool
	log      *zap.Logger
}

// NewPipeline wires all dependencies. pub may be nil when republishing is
// disabled (tests, dry runs).
func NewPipeline(
	ring *spsc.Ring[event.BookEvent],
	pub Publisher,
	counters *Counters,
	lat *LatencyTracker,
	shutdown *atomic.Bool,
	log *zap.Logger,
) *Pipeline {
	return &Pipeline{
		ring:     ring,
		books:    make(map[string]*book.OrderBook),
		pub:      pub,
		counters: counters,
		lat:      lat,
		shutdown: shutdown,
		log:      log,
	}
}

// Ingest is the listener sink: it stamps t_enq and hands the event to the
// ring. A full ring is a counted drop, never a retry. Producer goroutine
// only; it must not log.
func (p *Pipeline) Ingest(ev event.BookEvent) {
	ev.TEnqMonoNS = clock.MonoNanos()
	if p.ring.TryPush(ev) {
		p.counters.EventsPushed.Add(1)
	} else {
		p.counters.EventsDropped.Add(1)
	}
}

// Run drains the ring until shutdown. It yields when the ring is empty and
// never blocks. Events still queued at shutdown are discarded.
func (p *Pipeline) Run() {
	var ev event.BookEvent
	for !p.shutdown.Load() {
		if !p.ring.TryPop(&ev) {
			runtime.Gosched()
			continue
		}
		ev.TDeqMonoNS = clock.MonoNanos()
		p.Process(&ev)
		p.lat.Observe(&ev)
	}
	p.log.Info("pipeline consumer stopped",
		zap.Uint64("events", p.lat.Events()))
}

// Process routes one event into its book and republishes the result.
// Rejected mutations count an anomaly and leave the book untouched.
func (p *Pipeline) Process(ev *event.BookEvent) {
	p.counters.EventsProcessed.Add(1)

	if ev.Symbol == "" {
		p.counters.Anomalies.Add(1)
		return
	}

	b := p.book(ev.Symbol)

	switch ev.Kind {
	case event.AddOrder:
		if err := b.Add(ev.OrderID, ev.Side, ev.Price, ev.Size, ev.Timestamp); err != nil {
			p.counters.Anomalies.Add(1)
			return
		}
		p.publishSummary(b)

	case event.ModifyOrder:
		// Price-changing modifies are not supported; the feed must send
		// cancel+add. A modify naming a different price is an anomaly.
		if o := b.Lookup(ev.OrderID); o != nil && ev.Price != 0 && ev.Price != o.Price {
			p.counters.Anomalies.Add(1)
			return
		}
		if err := b.Modify(ev.OrderID, ev.Size); err != nil {
			p.counters.Anomalies.Add(1)
			return
		}
		p.publishSummary(b)

	case event.CancelOrder, event.DeleteOrder:
		if err := b.Cancel(ev.OrderID); err != nil {
			p.counters.Anomalies.Add(1)
			return
		}
		p.publishSummary(b)

	case event.Trade:
		// Trades never mutate the reconstruction; any matching modify or
		// cancel for the resting side arrives as its own event.
		if p.pub != nil {
			side := event.Ask
			if ev.IsAggressor {
				side = event.Bid
			}
			p.pub.PublishTradeUpdate(ev.Symbol, event.TradeUpdate{
				Price:         ev.TradePrice,
				Size:          ev.TradeSize,
				AggressorSide: side.String(),
			}, ev.Timestamp)
		}

	case event.QuoteUpdate:
		// Top-of-book hint from the feed; order-level state is untouched.

	case event.MarketStatus:
		if ev.IsTradingHalted {
			p.log.Warn("trading halted",
				zap.String("symbol", ev.Symbol),
				zap.String("status", ev.StatusMessage))
		}

	default:
		p.counters.Anomalies.Add(1)
	}
}

func (p *Pipeline) publishSummary(b *book.OrderBook) {
	if p.pub == nil {
		return
	}
	p.pub.PublishBookSummary(b.Symbol(), b.Summary(), clock.MonoNanos())
}

// book finds or creates the book for symbol. Consumer goroutine only.
func (p *Pipeline) book(symbol string) *book.OrderBook {
	b, ok := p.books[symbol]
	if !ok {
		b = book.New(symbol)
		p.books[symbol] = b
	}
	return b
}

// Book exposes a symbol's book for inspection. Only safe once the consumer
// goroutine has stopped, or from the consumer itself.
func (p *Pipeline) Book(symbol string) *book.OrderBook {
	return p.books[symbol]
}
