// Package book reconstructs per-symbol limit order books from Level 2/3
// feed events. A book is owned by exactly one goroutine; nothing here locks.
package book

import "mdpipe/domain/event"

// Order is one resting order, keyed by the exchange order id. It is created
// on add, mutated only by size modifies, and destroyed on cancel/delete. An
// order never migrates between levels: a side-or-price change must arrive
// from the feed as cancel+add.
type Order struct {
	ID        string
	Symbol    string
	Side      event.Side
	Price     float64
	Size      uint32
	Timestamp uint64 // exchange wall-clock stamp at entry
}
