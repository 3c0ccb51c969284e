// Package clock exposes the host's raw monotonic clock.
//
// Every stage of the pipeline stamps events from CLOCK_MONOTONIC so that
// deltas between processes on the same host are meaningful. The stdlib time
// package keeps its monotonic reading private to a time.Time, which makes it
// useless as a shared epoch across processes.
package clock

import "golang.org/x/sys/unix"

// MonoNanos returns the current CLOCK_MONOTONIC reading in nanoseconds.
func MonoNanos() uint64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0
	}
	return uint64(ts.Nano())
}
