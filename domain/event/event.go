// Package event defines the typed feed events and the wire codecs for both
// sides of the pipeline: the ingress datagram format and the egress envelope.
package event

// Kind identifies the feed event variant. The set is closed; the book engine
// dispatches on it with a switch.
type Kind uint8

const (
	AddOrder Kind = iota
	ModifyOrder
	CancelOrder
	DeleteOrder
	Trade
	QuoteUpdate
	MarketStatus
	Unknown
)

func (k Kind) String() string {
	switch k {
	case AddOrder:
		return "ADD_ORDER"
	case ModifyOrder:
		return "MODIFY_ORDER"
	case CancelOrder:
		return "CANCEL_ORDER"
	case DeleteOrder:
		return "DELETE_ORDER"
	case Trade:
		return "TRADE"
	case QuoteUpdate:
		return "QUOTE_UPDATE"
	case MarketStatus:
		return "MARKET_STATUS"
	default:
		return "UNKNOWN"
	}
}

// Side is the resting side of an order.
type Side uint8

const (
	Bid Side = iota
	Ask
	SideUnknown
)

func (s Side) String() string {
	switch s {
	case Bid:
		return "BID"
	case Ask:
		return "ASK"
	default:
		return "UNKNOWN"
	}
}

// BookEvent is one decoded feed event. It is a value type: it is copied into
// the SPSC slot by the producer and moved out by the consumer, never shared.
type BookEvent struct {
	Kind     Kind
	Symbol   string
	Exchange string
	OrderID  string

	Side          Side
	Price         float64
	Size          uint32
	RemainingSize uint32

	// Trade fields, meaningful only for Kind == Trade.
	TradePrice  float64
	TradeSize   uint32
	IsAggressor bool

	// Market status fields, meaningful only for Kind == MarketStatus.
	IsTradingHalted bool
	StatusMessage   string

	Timestamp uint64 // exchange wall-clock timestamp as sent by the feed
	Seq       uint64 // exchange sequence number

	// Monotonic nanosecond stamps, all on the host's CLOCK_MONOTONIC epoch.
	TExchMonoNS uint64 // stamped by the feed producer
	TRxMonoNS   uint64 // stamped by the ingress listener after receive
	TEnqMonoNS  uint64 // stamped by the producer before TryPush
	TDeqMonoNS  uint64 // stamped by the consumer after TryPop
}
