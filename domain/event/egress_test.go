package event

import (
	"encoding/json"
	"testing"
)

func TestEnvelopeWireShape(t *testing.T) {
	env, err := NewEnvelope(MsgBookSummary, "AAPL", 169, BookSummary{
		BestBidPrice:   150.25,
		BestBidSize:    1000,
		BestAskPrice:   150.30,
		BestAskSize:    500,
		Spread:         0.05,
		Midprice:       150.275,
		QuoteImbalance: 0.3333,
	})
	if err != nil {
		t.Fatalf("envelope failed: %v", err)
	}
	payload, err := env.Marshal()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	// Downstream consumers depend on these exact keys.
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	for _, key := range []string{"type", "symbol", "timestamp", "data"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("envelope missing key %q: %s", key, payload)
		}
	}

	var data map[string]json.RawMessage
	if err := json.Unmarshal(raw["data"], &data); err != nil {
		t.Fatalf("data unmarshal failed: %v", err)
	}
	for _, key := range []string{
		"best_bid_price", "best_bid_size", "best_ask_price", "best_ask_size",
		"spread", "midprice", "quote_imbalance",
	} {
		if _, ok := data[key]; !ok {
			t.Errorf("summary missing key %q: %s", key, raw["data"])
		}
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	env, err := NewEnvelope(MsgTradeUpdate, "TSLA", 42, TradeUpdate{
		Price: 800.5, Size: 100, AggressorSide: "BID",
	})
	if err != nil {
		t.Fatalf("envelope failed: %v", err)
	}
	payload, _ := env.Marshal()

	got, err := DecodeEnvelope(payload)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.Type != MsgTradeUpdate || got.Symbol != "TSLA" || got.Timestamp != 42 {
		t.Errorf("header mismatch: %+v", got)
	}
	var tu TradeUpdate
	if err := json.Unmarshal(got.Data, &tu); err != nil {
		t.Fatalf("body unmarshal failed: %v", err)
	}
	if tu.Price != 800.5 || tu.Size != 100 || tu.AggressorSide != "BID" {
		t.Errorf("body mismatch: %+v", tu)
	}
}
