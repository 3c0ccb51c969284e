package event

import "encoding/json"

// MsgType tags the egress envelope payload.
type MsgType int

const (
	MsgBookSummary MsgType = iota
	MsgTradeUpdate
	MsgHeartbeat
)

// Envelope is the framing for every egress datagram: one message per
// datagram, JSON encoded. Subscribers must tolerate loss and reordering.
type Envelope struct {
	Type      MsgType         `json:"type"`
	Symbol    string          `json:"symbol"`
	Timestamp uint64          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// BookSummary is the top-of-book view published after every order-affecting
// event. Prices are zero when the corresponding side is empty; spread and
// midprice are zero unless both sides are populated.
type BookSummary struct {
	BestBidPrice   float64 `json:"best_bid_price"`
	BestBidSize    uint32  `json:"best_bid_size"`
	BestAskPrice   float64 `json:"best_ask_price"`
	BestAskSize    uint32  `json:"best_ask_size"`
	Spread         float64 `json:"spread"`
	Midprice       float64 `json:"midprice"`
	QuoteImbalance float64 `json:"quote_imbalance"`
}

// TradeUpdate is published for every trade print.
type TradeUpdate struct {
	Price         float64 `json:"price"`
	Size          uint32  `json:"size"`
	AggressorSide string  `json:"aggressor_side"`
}

// Heartbeat carries publisher counters so subscribers can detect silence
// and gauge loss.
type Heartbeat struct {
	MessagesSent uint64 `json:"messages_sent"`
	BytesSent    uint64 `json:"bytes_sent"`
	PublisherID  string `json:"publisher_id,omitempty"`
}

// NewEnvelope marshals body and wraps it. body must be one of BookSummary,
// TradeUpdate or Heartbeat.
func NewEnvelope(t MsgType, symbol string, ts uint64, body any) (Envelope, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: t, Symbol: symbol, Timestamp: ts, Data: raw}, nil
}

// Marshal renders the envelope as one egress datagram.
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEnvelope parses one egress datagram.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}
