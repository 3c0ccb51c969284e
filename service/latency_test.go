package service

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"mdpipe/domain/event"
)

func TestClampedDelta(t *testing.T) {
	cases := []struct {
		name     string
		from, to uint64
		want     uint64
	}{
		{"normal", 100, 250, 150},
		{"equal", 100, 100, 0},
		{"violated monotonicity", 250, 100, 0},
		{"missing earlier stamp", 0, 100, 0},
	}
	for _, c := range cases {
		if got := clampedDelta(c.from, c.to); got != c.want {
			t.Errorf("%s: clampedDelta(%d, %d) = %d, want %d", c.name, c.from, c.to, got, c.want)
		}
	}
}

func TestObserveAccumulatesStages(t *testing.T) {
	tr := NewLatencyTracker(100, &Counters{}, zap.NewNop())

	tr.Observe(&event.BookEvent{
		TExchMonoNS: 1000, TRxMonoNS: 1100, TEnqMonoNS: 1150, TDeqMonoNS: 1250,
	})
	tr.Observe(&event.BookEvent{
		TExchMonoNS: 2000, TRxMonoNS: 2300, TEnqMonoNS: 2350, TDeqMonoNS: 2450,
	})

	if tr.exchToRx.sum != 400 || tr.exchToRx.count != 2 {
		t.Errorf("exch→rx = (%d, %d), want (400, 2)", tr.exchToRx.sum, tr.exchToRx.count)
	}
	if tr.rxToEnq.sum != 100 {
		t.Errorf("rx→enq sum = %d, want 100", tr.rxToEnq.sum)
	}
	if tr.enqToDeq.sum != 200 {
		t.Errorf("enq→deq sum = %d, want 200", tr.enqToDeq.sum)
	}
	if tr.total.sum != 700 {
		t.Errorf("total sum = %d, want 700", tr.total.sum)
	}
	if tr.total.avg() != 350 {
		t.Errorf("total avg = %d, want 350", tr.total.avg())
	}
}

func TestObserveClampsCrossHostClocks(t *testing.T) {
	tr := NewLatencyTracker(100, &Counters{}, zap.NewNop())

	// Exchange stamp from a different epoch, far ahead of local rx.
	tr.Observe(&event.BookEvent{
		TExchMonoNS: 9_000_000, TRxMonoNS: 1100, TEnqMonoNS: 1150, TDeqMonoNS: 1250,
	})

	if tr.exchToRx.sum != 0 {
		t.Errorf("exch→rx must clamp to zero, got %d", tr.exchToRx.sum)
	}
	if tr.total.sum != 150 {
		t.Errorf("total = %d, want 150 (remaining stages only)", tr.total.sum)
	}
}

func TestSummaryCadence(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	tr := NewLatencyTracker(10, &Counters{}, zap.New(core))

	for i := 0; i < 25; i++ {
		tr.Observe(&event.BookEvent{TRxMonoNS: 1, TEnqMonoNS: 2, TDeqMonoNS: 3})
	}

	summaries := logs.FilterMessage("latency summary").Len()
	if summaries != 2 {
		t.Errorf("25 events at cadence 10 logged %d summaries, want 2", summaries)
	}
}

func TestDefaultCadence(t *testing.T) {
	tr := NewLatencyTracker(0, &Counters{}, zap.NewNop())
	if tr.every != DefaultSummaryEvery {
		t.Errorf("every = %d, want %d", tr.every, DefaultSummaryEvery)
	}
}
