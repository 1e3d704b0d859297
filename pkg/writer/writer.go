// Package writer implements the write driver of spec.md §4.8: the
// send-timeout/"delayed"-flag state machine attached as a request's write
// handler once its output is partially buffered.
package writer

import (
	"time"

	"github.com/parrika/httpcore/internal/httperr"
	"github.com/parrika/httpcore/pkg/timing"
)

// OutputFilter is the chain the write driver flushes through. Flush is
// called with an empty chain to drain previously buffered output, or with a
// non-empty chain to also enqueue new output before attempting the flush.
// It reports whether any bytes remain buffered afterward.
type OutputFilter interface {
	Flush(chain []byte) (stillBuffered bool, err error)
}

// WakeResult is what Wake found on this cycle.
type WakeResult int

const (
	// WakeStillBuffered means the send timeout and write event were
	// re-armed; call Wake again once the connection is writable.
	WakeStillBuffered WakeResult = iota
	// WakeComplete means the output filter drained fully; the caller
	// should clear the write handler and call finalize_request(OK).
	WakeComplete
	// WakeTimedOut means the send timer expired while genuinely waiting
	// on the client (not rate-limited); the caller should emit 408 and
	// finalize with a timeout. Wake also returns WakeTimedOut, together
	// with a non-nil error, when the output filter's Flush fails.
	WakeTimedOut
)

// Driver is one request's write handler state, per spec.md §4.8.
type Driver struct {
	filter      OutputFilter
	sendTimeout time.Duration
	timer       *timing.Timer

	deadline time.Time
	delayed  bool
}

// NewDriver attaches filter as the output chain a request's writer drains.
func NewDriver(filter OutputFilter, sendTimeout time.Duration, timer *timing.Timer) *Driver {
	return &Driver{filter: filter, sendTimeout: sendTimeout, timer: timer}
}

// Arm (re)starts the send timeout from now. Called whenever Wake finds
// actual bytes remain buffered — spec.md §4.8's "the send timeout is
// rearmed only when actual bytes remain."
func (d *Driver) Arm(now time.Time) {
	d.deadline = now.Add(d.sendTimeout)
}

// MarkDelayed records that the write filter's bandwidth throttle, not the
// client, is the reason no bytes moved this cycle.
func (d *Driver) MarkDelayed() {
	d.delayed = true
	d.timer.MarkDelayed()
}

// Wake runs one cycle of the write driver against chain (nil to just flush
// what's already buffered), per spec.md §4.8's 5-step sequence.
func (d *Driver) Wake(now time.Time, chain []byte) (WakeResult, error) {
	if !d.deadline.IsZero() && now.After(d.deadline) && !d.delayed {
		return WakeTimedOut, httperr.NewTimeoutError("writer", now.Sub(d.deadline), 408)
	}

	if d.delayed {
		d.delayed = false
		d.timer.MarkResumed()
		d.Arm(now)
	}

	stillBuffered, err := d.filter.Flush(chain)
	if err != nil {
		return WakeTimedOut, httperr.NewTransportError("writer", err)
	}

	if stillBuffered {
		d.Arm(now)
		return WakeStillBuffered, nil
	}

	d.deadline = time.Time{}
	return WakeComplete, nil
}
