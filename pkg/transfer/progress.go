package transfer

import (
	"sync/atomic"
	"time"
)

// Snapshot is a point-in-time view of a transfer's progress. Snapshots are
// observer-only and never persisted.
type Snapshot struct {
	BytesTransferred int64
	// TotalBytes is SizeUnknown when the source length was not declared.
	TotalBytes int64
	Elapsed    time.Duration
}

// Throughput returns the average transfer rate in bytes per second and false
// when no time has elapsed yet.
func (s Snapshot) Throughput() (float64, bool) {
	if s.Elapsed <= 0 {
		return 0, false
	}
	return float64(s.BytesTransferred) / s.Elapsed.Seconds(), true
}

// ETA estimates the remaining time from the average rate so far. It returns
// false when the total is unknown or nothing has been transferred yet.
func (s Snapshot) ETA() (time.Duration, bool) {
	if s.TotalBytes == SizeUnknown || s.TotalBytes < 0 || s.BytesTransferred <= 0 {
		return 0, false
	}
	remaining := s.TotalBytes - s.BytesTransferred
	if remaining <= 0 {
		return 0, true
	}
	perByte := float64(s.Elapsed) / float64(s.BytesTransferred)
	return time.Duration(perByte * float64(remaining)), true
}

// Percent returns completion as a fraction in [0, 1] and false when the
// total is unknown.
func (s Snapshot) Percent() (float64, bool) {
	if s.TotalBytes <= 0 {
		return 0, false
	}
	p := float64(s.BytesTransferred) / float64(s.TotalBytes)
	if p > 1 {
		p = 1
	}
	return p, true
}

// Observer receives throttled progress notifications.
type Observer func(Snapshot)

// Aggregator merges byte counts from concurrent chunk workers into one
// monotonic counter and throttles observer notifications. All methods are
// safe for concurrent use; the accumulation is atomic, so the final count
// after all workers finish is exact regardless of worker interleaving.
type Aggregator struct {
	total    int64
	interval time.Duration
	observer Observer

	bytes      atomic.Int64
	started    time.Time
	lastNotify atomic.Int64 // unix nanos of the last delivered notification
}

// NewAggregator creates an aggregator for a transfer of the given total size
// (SizeUnknown if not declared). The observer is invoked at most once per
// interval, plus always on Complete. A nil observer disables notification.
func NewAggregator(total int64, interval time.Duration, observer Observer) *Aggregator {
	if total < 0 {
		total = SizeUnknown
	}
	return &Aggregator{
		total:    total,
		interval: interval,
		observer: observer,
		started:  time.Now(),
	}
}

// Add records n transferred bytes and notifies the observer if the throttle
// interval has elapsed since the last notification.
func (a *Aggregator) Add(n int64) {
	if n <= 0 {
		return
	}
	a.bytes.Add(n)

	if a.observer == nil {
		return
	}

	now := time.Now().UnixNano()
	last := a.lastNotify.Load()
	if now-last < a.interval.Nanoseconds() {
		return
	}
	// only one of the racing workers delivers this tick
	if a.lastNotify.CompareAndSwap(last, now) {
		a.observer(a.Snapshot())
	}
}

// Complete delivers a final notification unconditionally, bypassing the
// throttle. Call it once when the transfer reaches a terminal state.
func (a *Aggregator) Complete() {
	if a.observer == nil {
		return
	}
	a.lastNotify.Store(time.Now().UnixNano())
	a.observer(a.Snapshot())
}

// Bytes returns the current transferred byte count.
func (a *Aggregator) Bytes() int64 {
	return a.bytes.Load()
}

// Snapshot returns the current progress view.
func (a *Aggregator) Snapshot() Snapshot {
	return Snapshot{
		BytesTransferred: a.bytes.Load(),
		TotalBytes:       a.total,
		Elapsed:          time.Since(a.started),
	}
}
