// Package timing provides request/connection timing instrumentation for the
// lifecycle engine, mirroring how the client-side transport timed
// DNS/TCP/TLS/TTFB but turned around to face the phases a server-side
// request actually passes through.
package timing

import (
	"fmt"
	"time"
)

// Metrics captures per-request timing, sampled once the request finalizes.
type Metrics struct {
	// AcceptToFirstByte is the time between accept() and the first byte
	// read off the connection (idle time spent waiting for the client).
	AcceptToFirstByte time.Duration `json:"accept_to_first_byte"`

	// HeaderParse is the time spent in the request-line + header parser,
	// including any AGAIN rounds waiting on additional reads.
	HeaderParse time.Duration `json:"header_parse"`

	// PhasePipeline is the time spent inside the external phase pipeline
	// (rewrite/access/content/log), from run_phases to the first
	// finalize_request call.
	PhasePipeline time.Duration `json:"phase_pipeline"`

	// Write is the time spent in the write driver flushing buffered
	// output, including time spent "delayed" for rate limiting.
	Write time.Duration `json:"write"`

	// WriteDelayed is the portion of Write spent deliberately throttled
	// by bandwidth limiting rather than waiting on the client.
	WriteDelayed time.Duration `json:"write_delayed"`

	// TotalTime is the total time from request creation to finalize.
	TotalTime time.Duration `json:"total_time"`
}

// Timer accumulates the marks needed to build Metrics for one request.
type Timer struct {
	start time.Time

	waitStart, waitEnd       time.Time
	parseStart, parseEnd     time.Time
	phaseStart, phaseEnd     time.Time
	writeStart, writeEnd     time.Time
	writeDelayedAccumulated  time.Duration
	writeDelayedMarkedAt     time.Time
	writeDelayed             bool
}

// NewTimer starts a new timing session anchored at request creation.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// StartWait marks the beginning of the wait for the first byte on a fresh
// connection or a pipelined follow-up.
func (t *Timer) StartWait() { t.waitStart = time.Now() }

// EndWait marks receipt of the first byte.
func (t *Timer) EndWait() { t.waitEnd = time.Now() }

// StartParse marks entry into the request-line/header parser.
func (t *Timer) StartParse() { t.parseStart = time.Now() }

// EndParse marks a completed parse (OK or a terminal parse error).
func (t *Timer) EndParse() { t.parseEnd = time.Now() }

// StartPhases marks entry into the external phase pipeline.
func (t *Timer) StartPhases() { t.phaseStart = time.Now() }

// EndPhases marks the first finalize_request call for this request.
func (t *Timer) EndPhases() { t.phaseEnd = time.Now() }

// StartWrite marks the write driver's first wake for this request.
func (t *Timer) StartWrite() {
	if t.writeStart.IsZero() {
		t.writeStart = time.Now()
	}
}

// EndWrite marks the write driver finishing (output fully flushed).
func (t *Timer) EndWrite() { t.writeEnd = time.Now() }

// MarkDelayed records that the write driver entered the rate-limit
// "delayed" state; MarkResumed closes out the accumulated delay.
func (t *Timer) MarkDelayed() {
	if !t.writeDelayed {
		t.writeDelayed = true
		t.writeDelayedMarkedAt = time.Now()
	}
}

// MarkResumed closes out a delay window opened by MarkDelayed.
func (t *Timer) MarkResumed() {
	if t.writeDelayed {
		t.writeDelayedAccumulated += time.Since(t.writeDelayedMarkedAt)
		t.writeDelayed = false
	}
}

// Metrics computes the final snapshot. Safe to call multiple times.
func (t *Timer) Metrics() Metrics {
	m := Metrics{
		TotalTime:    time.Since(t.start),
		WriteDelayed: t.writeDelayedAccumulated,
	}
	if !t.waitStart.IsZero() && !t.waitEnd.IsZero() {
		m.AcceptToFirstByte = t.waitEnd.Sub(t.waitStart)
	}
	if !t.parseStart.IsZero() && !t.parseEnd.IsZero() {
		m.HeaderParse = t.parseEnd.Sub(t.parseStart)
	}
	if !t.phaseStart.IsZero() && !t.phaseEnd.IsZero() {
		m.PhasePipeline = t.phaseEnd.Sub(t.phaseStart)
	}
	if !t.writeStart.IsZero() && !t.writeEnd.IsZero() {
		m.Write = t.writeEnd.Sub(t.writeStart)
	}
	return m
}

// String provides a human-readable summary for access-log lines.
func (m Metrics) String() string {
	return fmt.Sprintf("wait=%v parse=%v phases=%v write=%v write_delayed=%v total=%v",
		m.AcceptToFirstByte, m.HeaderParse, m.PhasePipeline, m.Write, m.WriteDelayed, m.TotalTime)
}
