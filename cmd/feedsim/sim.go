package main

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"mdpipe/domain/event"
	"mdpipe/infra/clock"
	"mdpipe/infra/sequence"
)

// Event mix, matching the live feed's observed shape: mostly adds, with
// modifies and cancels referencing orders the simulator still tracks.
const (
	weightAdd    = 40
	weightModify = 20
	weightCancel = 20
	weightTrade  = 15
	weightQuote  = 5
	weightTotal  = weightAdd + weightModify + weightCancel + weightTrade + weightQuote
)

var defaultBasePrices = map[string]float64{
	"AAPL": 150.0, "MSFT": 300.0, "GOOGL": 2800.0, "AMZN": 3200.0, "TSLA": 800.0,
	"NVDA": 400.0, "META": 200.0, "NFLX": 500.0, "AMD": 100.0, "INTC": 50.0,
}

type simOrder struct {
	side  event.Side
	price float64
	size  uint32
}

// simBook tracks the orders the simulator has emitted and not yet
// cancelled, so modifies and cancels always reference live ids.
type simBook struct {
	orders map[string]simOrder
	ids    []string
	nextID int
}

func (b *simBook) add(id string, o simOrder) {
	b.orders[id] = o
	b.ids = append(b.ids, id)
}

func (b *simBook) randomID(rng *rand.Rand) (string, simOrder, bool) {
	for len(b.ids) > 0 {
		i := rng.Intn(len(b.ids))
		id := b.ids[i]
		if o, ok := b.orders[id]; ok {
			return id, o, true
		}
		// Stale slot from an earlier cancel; compact lazily.
		b.ids[i] = b.ids[len(b.ids)-1]
		b.ids = b.ids[:len(b.ids)-1]
	}
	return "", simOrder{}, false
}

func (b *simBook) remove(id string) {
	delete(b.orders, id)
}

// Simulator produces a plausible Level 2/3 event stream: random-walking
// prices, per-symbol synthetic books, strictly increasing sequence numbers
// and monotonic exchange stamps.
type Simulator struct {
	symbols  []string
	current  map[string]float64
	books    map[string]*simBook
	seq      *sequence.Sequencer
	rng      *rand.Rand
	exchange string
}

// NewSimulator seeds per-symbol state. Symbols without a known base price
// start at 100.
func NewSimulator(symbols []string, seed int64) *Simulator {
	s := &Simulator{
		symbols:  symbols,
		current:  make(map[string]float64, len(symbols)),
		books:    make(map[string]*simBook, len(symbols)),
		seq:      sequence.New(0),
		rng:      rand.New(rand.NewSource(seed)),
		exchange: "SIM",
	}
	for _, sym := range symbols {
		base, ok := defaultBasePrices[sym]
		if !ok {
			base = 100.0
		}
		s.current[sym] = base
		s.books[sym] = &simBook{orders: make(map[string]simOrder), nextID: 1000}
	}
	return s
}

// SessionOpen returns one MARKET_STATUS event per symbol, sent before the
// stream starts.
func (s *Simulator) SessionOpen() []event.BookEvent {
	out := make([]event.BookEvent, 0, len(s.symbols))
	for _, sym := range s.symbols {
		ev := s.base(sym)
		ev.Kind = event.MarketStatus
		ev.StatusMessage = "session open"
		out = append(out, ev)
	}
	return out
}

// Next produces the next event in the stream.
func (s *Simulator) Next() event.BookEvent {
	sym := s.symbols[s.rng.Intn(len(s.symbols))]

	switch pick := s.rng.Intn(weightTotal); {
	case pick < weightAdd:
		return s.nextAdd(sym)
	case pick < weightAdd+weightModify:
		return s.nextModify(sym)
	case pick < weightAdd+weightModify+weightCancel:
		return s.nextCancel(sym)
	case pick < weightAdd+weightModify+weightCancel+weightTrade:
		return s.nextTrade(sym)
	default:
		return s.nextQuote(sym)
	}
}

func (s *Simulator) base(sym string) event.BookEvent {
	return event.BookEvent{
		Symbol:      sym,
		Exchange:    s.exchange,
		Timestamp:   uint64(time.Now().UnixNano()),
		Seq:         s.seq.Next(),
		TExchMonoNS: clock.MonoNanos(),
	}
}

func (s *Simulator) nextAdd(sym string) event.BookEvent {
	b := s.books[sym]
	id := fmt.Sprintf("%s_%d", sym, b.nextID)
	b.nextID++

	side := event.Bid
	if s.rng.Intn(2) == 1 {
		side = event.Ask
	}
	price := roundTick(s.current[sym] * (1 + s.rng.Float64()*0.04 - 0.02))
	size := uint32(100 + s.rng.Intn(4901))
	b.add(id, simOrder{side: side, price: price, size: size})

	ev := s.base(sym)
	ev.Kind = event.AddOrder
	ev.OrderID = id
	ev.Side = side
	ev.Price = price
	ev.Size = size
	return ev
}

func (s *Simulator) nextModify(sym string) event.BookEvent {
	b := s.books[sym]
	id, o, ok := b.randomID(s.rng)
	if !ok {
		return s.nextAdd(sym) // nothing to modify yet
	}
	newSize := uint32(100 + s.rng.Intn(int(o.size)+1000))

	ev := s.base(sym)
	ev.Kind = event.ModifyOrder
	ev.OrderID = id
	ev.Side = o.side
	ev.Price = o.price
	ev.Size = newSize
	ev.RemainingSize = o.size

	o.size = newSize
	b.orders[id] = o
	return ev
}

func (s *Simulator) nextCancel(sym string) event.BookEvent {
	b := s.books[sym]
	id, o, ok := b.randomID(s.rng)
	if !ok {
		return s.nextAdd(sym)
	}
	b.remove(id)

	ev := s.base(sym)
	ev.Kind = event.CancelOrder
	ev.OrderID = id
	ev.Side = o.side
	ev.Price = o.price
	ev.Size = o.size
	return ev
}

func (s *Simulator) nextTrade(sym string) event.BookEvent {
	drift := 1 + s.rng.Float64()*0.002 - 0.001
	price := roundTick(s.current[sym] * drift)
	s.current[sym] = price // trades move the reference price

	ev := s.base(sym)
	ev.Kind = event.Trade
	ev.TradePrice = price
	ev.TradeSize = uint32(100 + s.rng.Intn(901))
	ev.IsAggressor = s.rng.Intn(2) == 1
	return ev
}

func (s *Simulator) nextQuote(sym string) event.BookEvent {
	side := event.Bid
	offset := -0.0005
	if s.rng.Intn(2) == 1 {
		side = event.Ask
		offset = 0.0005
	}

	ev := s.base(sym)
	ev.Kind = event.QuoteUpdate
	ev.Side = side
	ev.Price = roundTick(s.current[sym] * (1 + offset))
	ev.Size = uint32(100 + s.rng.Intn(1901))
	return ev
}

func roundTick(p float64) float64 {
	return math.Round(p*100) / 100
}
