package service

import "sync/atomic"

// Counters are the pipeline's shared anomaly and throughput counters. The
// producer and consumer goroutines both write them, so every field is
// atomic; only the consumer (and the stats broadcaster) read them out.
type Counters struct {
	EventsPushed    atomic.Uint64 // producer: successful ring pushes
	EventsDropped   atomic.Uint64 // producer: ring-full drops
	ParseErrors     atomic.Uint64 // producer: undecodable datagrams
	EventsProcessed atomic.Uint64 // consumer: events popped and routed
	Anomalies       atomic.Uint64 // consumer: rejected book mutations
}

// CountersSnapshot is a point-in-time copy for reporting.
type CountersSnapshot struct {
	EventsPushed    uint64 `json:"events_pushed"`
	EventsDropped   uint64 `json:"events_dropped"`
	ParseErrors     uint64 `json:"parse_errors"`
	EventsProcessed uint64 `json:"events_processed"`
	Anomalies       uint64 `json:"anomalies"`
}

// Snapshot reads every counter once. Fields are read independently, so the
// snapshot is not a single atomic cut; it is for reporting, not accounting.
func (c *Counters) Snapshot() CountersSnapshot {
	return CountersSnapshot{
		EventsPushed:    c.EventsPushed.Load(),
		EventsDropped:   c.EventsDropped.Load(),
		ParseErrors:     c.ParseErrors.Load(),
		EventsProcessed: c.EventsProcessed.Load(),
		Anomalies:       c.Anomalies.Load(),
	}
}
