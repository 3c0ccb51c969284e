package service

import (
	"go.uber.org/zap"

	"mdpipe/domain/event"
)

// stage accumulates one latency stage. Consumer-thread only, so plain
// integers suffice.
type stage struct {
	sum   uint64
	count uint64
}

func (s *stage) add(ns uint64) {
	s.sum += ns
	s.count++
}

func (s *stage) avg() uint64 {
	if s.count == 0 {
		return 0
	}
	return s.sum / s.count
}

// LatencyTracker aggregates per-stage pipeline latency from the monotonic
// stamps each event carries, and logs a summary every N events. Only the
// consumer goroutine calls into it; producer-side counters are read out
// atomically for the summary but never written here.
type LatencyTracker struct {
	every    uint64
	events   uint64
	exchToRx stage
	rxToEnq  stage
	enqToDeq stage
	total    stage

	counters *Counters
	log      *zap.Logger
}

// DefaultSummaryEvery is the summary cadence when none is configured.
const DefaultSummaryEvery = 10

// NewLatencyTracker builds a tracker that logs through log every `every`
// observed events.
func NewLatencyTracker(every uint64, counters *Counters, log *zap.Logger) *LatencyTracker {
	if every == 0 {
		every = DefaultSummaryEvery
	}
	return &LatencyTracker{every: every, counters: counters, log: log}
}

// clampedDelta returns to-from, or zero when monotonicity is violated or
// the earlier stamp is missing. Cross-host clocks make negative deltas
// possible; they carry no information, so they count as zero.
func clampedDelta(from, to uint64) uint64 {
	if from == 0 || to < from {
		return 0
	}
	return to - from
}

// Observe folds one fully-stamped event into the running aggregates.
func (t *LatencyTracker) Observe(ev *event.BookEvent) {
	exchToRx := clampedDelta(ev.TExchMonoNS, ev.TRxMonoNS)
	rxToEnq := clampedDelta(ev.TRxMonoNS, ev.TEnqMonoNS)
	enqToDeq := clampedDelta(ev.TEnqMonoNS, ev.TDeqMonoNS)
	total := exchToRx + rxToEnq + enqToDeq

	t.exchToRx.add(exchToRx)
	t.rxToEnq.add(rxToEnq)
	t.enqToDeq.add(enqToDeq)
	t.total.add(total)

	t.events++
	if t.events%t.every == 0 {
		t.logSummary()
	}
}

// Events returns the number of observations so far.
func (t *LatencyTracker) Events() uint64 {
	return t.events
}

func (t *LatencyTracker) logSummary() {
	snap := t.counters.Snapshot()
	t.log.Info("latency summary",
		zap.Uint64("events", t.events),
		zap.Uint64("avg_exch_to_rx_ns", t.exchToRx.avg()),
		zap.Uint64("avg_rx_to_enq_ns", t.rxToEnq.avg()),
		zap.Uint64("avg_enq_to_deq_ns", t.enqToDeq.avg()),
		zap.Uint64("avg_total_ns", t.total.avg()),
		zap.Uint64("pushed", snap.EventsPushed),
		zap.Uint64("dropped", snap.EventsDropped),
		zap.Uint64("parse_errors", snap.ParseErrors),
		zap.Uint64("anomalies", snap.Anomalies),
	)
}
