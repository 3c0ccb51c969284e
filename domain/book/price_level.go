package book

import "container/list"

// PriceLevel aggregates all orders resting at one price on one side.
//
// The FIFO is a linked list so that entries removed from the middle never
// invalidate other entries' positions; byID maps an order id straight to its
// element for O(1) removal. TotalSize always equals the sum of the entry
// sizes, and byID holds an id iff the same id is in the FIFO.
type PriceLevel struct {
	Price     float64
	TotalSize uint64

	fifo *list.List               // of *Order, insertion order
	byID map[string]*list.Element // order id -> FIFO position
}

func newPriceLevel(price float64) *PriceLevel {
	return &PriceLevel{
		Price: price,
		fifo:  list.New(),
		byID:  make(map[string]*list.Element),
	}
}

// append adds an order at the back of the FIFO. The caller guarantees the
// id is not already present at this level.
func (l *PriceLevel) append(o *Order) {
	l.byID[o.ID] = l.fifo.PushBack(o)
	l.TotalSize += uint64(o.Size)
}

// remove unlinks the order with the given id and returns it, or nil if the
// level has no such entry.
func (l *PriceLevel) remove(id string) *Order {
	el, ok := l.byID[id]
	if !ok {
		return nil
	}
	delete(l.byID, id)
	o := l.fifo.Remove(el).(*Order)
	l.TotalSize -= uint64(o.Size)
	return o
}

// resize updates the entry's size in place and adjusts the aggregate.
func (l *PriceLevel) resize(id string, newSize uint32) bool {
	el, ok := l.byID[id]
	if !ok {
		return false
	}
	o := el.Value.(*Order)
	l.TotalSize += uint64(newSize)
	l.TotalSize -= uint64(o.Size)
	o.Size = newSize
	return true
}

// contains reports whether the level holds an entry for id.
func (l *PriceLevel) contains(id string) bool {
	_, ok := l.byID[id]
	return ok
}

// Empty reports whether no orders rest at this level. Empty levels are
// erased eagerly by the book.
func (l *PriceLevel) Empty() bool {
	return l.fifo.Len() == 0
}

// OrderCount returns the number of resting orders at this level.
func (l *PriceLevel) OrderCount() int {
	return l.fifo.Len()
}

// Front returns the order at the head of the FIFO (highest time priority),
// or nil on an empty level.
func (l *PriceLevel) Front() *Order {
	el := l.fifo.Front()
	if el == nil {
		return nil
	}
	return el.Value.(*Order)
}

// Each visits the resting orders in FIFO order.
func (l *PriceLevel) Each(visit func(*Order)) {
	for el := l.fifo.Front(); el != nil; el = el.Next() {
		visit(el.Value.(*Order))
	}
}
