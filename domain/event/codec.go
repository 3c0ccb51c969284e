package event

import (
	"encoding/json"
	"fmt"
)

// MaxDatagram is the largest ingress payload the pipeline accepts. One
// datagram carries exactly one event; there is no fragmentation.
const MaxDatagram = 4096

// wireEvent mirrors the ingress JSON schema. Unknown keys are ignored by
// encoding/json; a value of the wrong JSON type rejects the whole datagram.
type wireEvent struct {
	EventType       string  `json:"event_type"`
	Symbol          string  `json:"symbol"`
	Exchange        string  `json:"exchange,omitempty"`
	OrderID         string  `json:"order_id,omitempty"`
	Side            string  `json:"side,omitempty"`
	Price           float64 `json:"price,omitempty"`
	Size            uint32  `json:"size,omitempty"`
	RemainingSize   uint32  `json:"remaining_size,omitempty"`
	TradePrice      float64 `json:"trade_price,omitempty"`
	TradeSize       uint32  `json:"trade_size,omitempty"`
	IsAggressor     bool    `json:"is_aggressor,omitempty"`
	IsTradingHalted bool    `json:"is_trading_halted,omitempty"`
	StatusMessage   string  `json:"status_message,omitempty"`
	Timestamp       uint64  `json:"timestamp,omitempty"`
	SequenceNumber  uint64  `json:"sequence_number,omitempty"`
	ExchangeMonoNS  uint64  `json:"exchange_mono_ns,omitempty"`
}

// Decode parses one ingress datagram into a BookEvent. It is pure: no I/O,
// and it retains nothing from data. Unrecognized event types map to Unknown
// rather than an error so the consumer can count them.
func Decode(data []byte) (BookEvent, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return BookEvent{}, fmt.Errorf("decode event: %w", err)
	}

	return BookEvent{
		Kind:            parseKind(w.EventType),
		Symbol:          w.Symbol,
		Exchange:        w.Exchange,
		OrderID:         w.OrderID,
		Side:            parseSide(w.Side),
		Price:           w.Price,
		Size:            w.Size,
		RemainingSize:   w.RemainingSize,
		TradePrice:      w.TradePrice,
		TradeSize:       w.TradeSize,
		IsAggressor:     w.IsAggressor,
		IsTradingHalted: w.IsTradingHalted,
		StatusMessage:   w.StatusMessage,
		Timestamp:       w.Timestamp,
		Seq:             w.SequenceNumber,
		TExchMonoNS:     w.ExchangeMonoNS,
	}, nil
}

// Encode renders an event in the ingress wire format. The simulator and the
// tests use it; the processor itself only decodes.
func Encode(ev *BookEvent) ([]byte, error) {
	w := wireEvent{
		EventType:       ev.Kind.String(),
		Symbol:          ev.Symbol,
		Exchange:        ev.Exchange,
		OrderID:         ev.OrderID,
		Price:           ev.Price,
		Size:            ev.Size,
		RemainingSize:   ev.RemainingSize,
		TradePrice:      ev.TradePrice,
		TradeSize:       ev.TradeSize,
		IsAggressor:     ev.IsAggressor,
		IsTradingHalted: ev.IsTradingHalted,
		StatusMessage:   ev.StatusMessage,
		Timestamp:       ev.Timestamp,
		SequenceNumber:  ev.Seq,
		ExchangeMonoNS:  ev.TExchMonoNS,
	}
	if ev.Side != SideUnknown {
		w.Side = ev.Side.String()
	}
	return json.Marshal(&w)
}

func parseKind(s string) Kind {
	switch s {
	case "ADD_ORDER":
		return AddOrder
	case "MODIFY_ORDER":
		return ModifyOrder
	case "CANCEL_ORDER":
		return CancelOrder
	case "DELETE_ORDER":
		return DeleteOrder
	case "TRADE":
		return Trade
	case "QUOTE_UPDATE":
		return QuoteUpdate
	case "MARKET_STATUS":
		return MarketStatus
	default:
		return Unknown
	}
}

func parseSide(s string) Side {
	switch s {
	case "BID":
		return Bid
	case "ASK":
		return Ask
	default:
		return SideUnknown
	}
}
