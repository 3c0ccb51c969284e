package book

import (
	"errors"

	rbt "github.com/emirpasic/gods/v2/trees/redblacktree"

	"mdpipe/domain/event"
)

// Anomalies reported by book operations. They are non-fatal: the caller
// counts them and moves on, and the book is left untouched.
var (
	ErrDuplicateOrder = errors.New("order id already exists")
	ErrUnknownOrder   = errors.New("unknown order id")
	ErrUnknownSide    = errors.New("order side is unknown")
	ErrLevelMissing   = errors.New("price level does not contain order")
)

// OrderBook is the per-symbol ledger of resting orders: an id map for O(1)
// order-keyed mutation, plus two red-black trees of price levels — bids
// keyed descending, asks ascending — so the best level is always the
// leftmost node. Prices are compared exactly; the feed is responsible for
// canonical tick representation.
type OrderBook struct {
	symbol string

	orders map[string]*Order
	bids   *rbt.Tree[float64, *PriceLevel]
	asks   *rbt.Tree[float64, *PriceLevel]
}

func descending(a, b float64) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	default:
		return 0
	}
}

func ascending(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// New creates an empty book for symbol.
func New(symbol string) *OrderBook {
	return &OrderBook{
		symbol: symbol,
		orders: make(map[string]*Order),
		bids:   rbt.NewWith[float64, *PriceLevel](descending),
		asks:   rbt.NewWith[float64, *PriceLevel](ascending),
	}
}

// Symbol returns the symbol this book tracks.
func (b *OrderBook) Symbol() string {
	return b.symbol
}

func (b *OrderBook) side(s event.Side) *rbt.Tree[float64, *PriceLevel] {
	if s == event.Bid {
		return b.bids
	}
	return b.asks
}

// Add inserts a new resting order. Duplicate ids are rejected and leave the
// original order unchanged.
func (b *OrderBook) Add(id string, side event.Side, price float64, size uint32, ts uint64) error {
	if _, exists := b.orders[id]; exists {
		return ErrDuplicateOrder
	}
	if side != event.Bid && side != event.Ask {
		return ErrUnknownSide
	}

	o := &Order{
		ID:        id,
		Symbol:    b.symbol,
		Side:      side,
		Price:     price,
		Size:      size,
		Timestamp: ts,
	}

	tree := b.side(side)
	lvl, found := tree.Get(price)
	if !found {
		lvl = newPriceLevel(price)
		tree.Put(price, lvl)
	}
	lvl.append(o)
	b.orders[id] = o
	return nil
}

// Modify changes the size of a resting order in place. Price-changing
// modifies are not supported; the feed must express them as cancel+add, so
// the recorded price is authoritative here. Time priority is kept.
func (b *OrderBook) Modify(id string, newSize uint32) error {
	o, ok := b.orders[id]
	if !ok {
		return ErrUnknownOrder
	}
	lvl, found := b.side(o.Side).Get(o.Price)
	if !found || !lvl.contains(id) {
		return ErrLevelMissing
	}
	lvl.resize(id, newSize)
	return nil
}

// Cancel removes a resting order, erasing its level if it empties. Delete
// events share these semantics.
func (b *OrderBook) Cancel(id string) error {
	o, ok := b.orders[id]
	if !ok {
		return ErrUnknownOrder
	}
	tree := b.side(o.Side)
	lvl, found := tree.Get(o.Price)
	if !found || !lvl.contains(id) {
		return ErrLevelMissing
	}
	lvl.remove(id)
	if lvl.Empty() {
		tree.Remove(o.Price)
	}
	delete(b.orders, id)
	return nil
}

// BestBid returns the highest resting bid price and the level's total size,
// or zeros when the bid side is empty.
func (b *OrderBook) BestBid() (float64, uint32) {
	return bestOf(b.bids)
}

// BestAsk returns the lowest resting ask price and the level's total size,
// or zeros when the ask side is empty.
func (b *OrderBook) BestAsk() (float64, uint32) {
	return bestOf(b.asks)
}

// bestOf reads the leftmost node; the comparator already encodes which end
// is "best" for the side.
func bestOf(tree *rbt.Tree[float64, *PriceLevel]) (float64, uint32) {
	n := tree.Left()
	if n == nil {
		return 0, 0
	}
	return n.Key, uint32(n.Value.TotalSize)
}

// Spread is best ask minus best bid, zero unless both sides are populated.
// Transient crossed books from feed reordering are not rejected, so the
// value can be negative.
func (b *OrderBook) Spread() float64 {
	bid, _ := b.BestBid()
	ask, _ := b.BestAsk()
	if bid > 0 && ask > 0 {
		return ask - bid
	}
	return 0
}

// Summary captures the top of book for republication.
func (b *OrderBook) Summary() event.BookSummary {
	bidPx, bidSz := b.BestBid()
	askPx, askSz := b.BestAsk()

	var spread, mid float64
	if bidPx > 0 && askPx > 0 {
		spread = askPx - bidPx
		mid = (askPx + bidPx) / 2
	}

	var imbalance float64
	if total := uint64(bidSz) + uint64(askSz); total > 0 {
		imbalance = (float64(bidSz) - float64(askSz)) / float64(total)
	}

	return event.BookSummary{
		BestBidPrice:   bidPx,
		BestBidSize:    bidSz,
		BestAskPrice:   askPx,
		BestAskSize:    askSz,
		Spread:         spread,
		Midprice:       mid,
		QuoteImbalance: imbalance,
	}
}

// SizeAtPrice returns the aggregate size resting at one price, zero when
// the level does not exist.
func (b *OrderBook) SizeAtPrice(side event.Side, price float64) uint64 {
	lvl, found := b.side(side).Get(price)
	if !found {
		return 0
	}
	return lvl.TotalSize
}

// Level exposes a price level for inspection, or nil when absent.
func (b *OrderBook) Level(side event.Side, price float64) *PriceLevel {
	lvl, found := b.side(side).Get(price)
	if !found {
		return nil
	}
	return lvl
}

// BidLevels returns the number of populated bid price levels.
func (b *OrderBook) BidLevels() int {
	return b.bids.Size()
}

// AskLevels returns the number of populated ask price levels.
func (b *OrderBook) AskLevels() int {
	return b.asks.Size()
}

// OrderCount returns the number of resting orders across both sides.
func (b *OrderBook) OrderCount() int {
	return len(b.orders)
}

// Lookup returns the resting order for id, or nil.
func (b *OrderBook) Lookup(id string) *Order {
	return b.orders[id]
}

// Empty reports whether the book holds no orders.
func (b *OrderBook) Empty() bool {
	return len(b.orders) == 0
}

// WalkBids visits bid levels best-first (descending price). Returning false
// stops the walk.
func (b *OrderBook) WalkBids(visit func(*PriceLevel) bool) {
	walk(b.bids, visit)
}

// WalkAsks visits ask levels best-first (ascending price).
func (b *OrderBook) WalkAsks(visit func(*PriceLevel) bool) {
	walk(b.asks, visit)
}

func walk(tree *rbt.Tree[float64, *PriceLevel], visit func(*PriceLevel) bool) {
	it := tree.Iterator()
	for it.Next() {
		if !visit(it.Value()) {
			return
		}
	}
}
