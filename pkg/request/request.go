// Package request models the per-request lifecycle object of spec.md §4.6:
// the two-counter (count/blocked) reference scheme and the
// finalize_request/terminate_request/finalize_connection decision trees.
//
// A request is identified by a stable Ref (generation, index) rather than a
// pointer, per spec.md §9's "cyclic parent/root pointers -> stable
// references" translation: the subrequest tree (pkg/subrequest) resolves a
// Ref back to a *Request through a slot table checked against one tree-wide
// generation. A freed slot resolves to nothing until it is reused; once a
// later subrequest reuses it, a Ref to its former occupant resolves to the
// new request.
package request

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parrika/httpcore/internal/httperr"
	"github.com/parrika/httpcore/pkg/headers"
)

// Ref stably identifies a request within its connection's request tree.
type Ref struct {
	Generation uint32
	Index      int
}

// Zero reports whether the Ref was never assigned.
func (r Ref) Zero() bool { return r.Generation == 0 && r.Index == 0 }

// RC is the result code a phase handler (or the core itself) passes to
// finalize_request — spec.md §4.6's decision-tree input.
type RC int

const (
	// RCOK means the current phase completed normally; finalize_request
	// inspects the request's buffered-output/subrequest state to decide
	// what happens next.
	RCOK RC = iota
	// RCDone means the whole request (not just a phase) is finished;
	// delegate straight to finalize_connection.
	RCDone
	// RCDeclined means this handler does not want the request; reset the
	// content handler and re-enter the phase pipeline.
	RCDeclined
	// RCError is the forceful failure path.
	RCError
	// RCClose means close the connection without attempting a response.
	RCClose
)

// Kind distinguishes a root request from a subrequest, since several
// decision-tree branches in spec.md §4.6 are root-only.
type Kind int

const (
	KindRoot Kind = iota
	KindSubrequest
)

// Request is one HTTP request's lifecycle state — for a subrequest, one
// node of the root's subrequest tree.
type Request struct {
	mu sync.Mutex

	Ref      Ref
	Kind     Kind
	RootRef  Ref
	ParentRef Ref // zero for root

	// TraceID correlates every log line and metric emitted across this
	// request's lifetime, including its subrequests, back to one accepted
	// connection's request. Subrequests inherit the root's TraceID rather
	// than minting their own, since they are the same logical request as
	// far as an operator reading logs is concerned.
	TraceID string

	Method  string
	URIPath string
	Query   string
	Version string

	Headers headers.Fields

	// count/blocked implement spec.md §4.6's reference scheme: count is
	// incremented by every async operation in flight for this request;
	// blocked additionally pins it in memory until some in-flight I/O
	// (e.g. a cleanup handler's file read) completes even after count
	// reaches zero.
	count   int
	blocked int

	// Pipelined marks a request created directly off the posted-events
	// queue because the input buffer held bytes past the one just
	// consumed, per spec.md §4.9.
	Pipelined bool

	// done is set once finalize_connection has been reached for the root,
	// once a subrequest has fully drained and handed back its baton, when
	// the discard-drain finalizer is installed, or by terminate_request.
	done bool

	// OwnsBaton (subrequest only) mirrors whether this node is currently
	// C.current_writer in the root's postponed-list bookkeeping. The
	// pkg/subrequest orderer is the sole writer of this field; it is
	// exposed here only for finalize_request's decision tree to read.
	OwnsBaton bool

	// HasBufferedOutput and HasPendingChildren mirror whether this
	// request's entry in the postponed list still holds data or
	// unfinished subrequest children — also orderer-owned.
	HasBufferedOutput  bool
	HasPendingChildren bool

	cleanup []func()

	startedAt time.Time
}

// New creates a root request, stamped with a fresh TraceID.
func New(ref Ref) *Request {
	return &Request{Ref: ref, RootRef: ref, Kind: KindRoot, startedAt: time.Now(), TraceID: uuid.NewString()}
}

// NewSubrequest creates a subrequest node sharing root's RootRef and TraceID.
func NewSubrequest(ref Ref, parent, root Ref, rootTraceID string) *Request {
	return &Request{Ref: ref, RootRef: root, ParentRef: parent, Kind: KindSubrequest, startedAt: time.Now(), TraceID: rootTraceID}
}

// Enter increments count, pairing with a later Leave. Call this before
// starting any async operation (I/O wait, posted re-entry, subrequest
// spawn) that might re-enter this request.
func (r *Request) Enter() {
	r.mu.Lock()
	r.count++
	r.mu.Unlock()
}

// Leave decrements count. Returns the count remaining.
func (r *Request) Leave() int {
	r.mu.Lock()
	r.count--
	c := r.count
	r.mu.Unlock()
	return c
}

// Block increments blocked, pinning the request in memory even if count
// later reaches zero — e.g. while a cleanup-registered file read is still
// in flight.
func (r *Request) Block() {
	r.mu.Lock()
	r.blocked++
	r.mu.Unlock()
}

// Unblock decrements blocked. Returns the blocked count remaining.
func (r *Request) Unblock() int {
	r.mu.Lock()
	r.blocked--
	b := r.blocked
	r.mu.Unlock()
	return b
}

// Counts returns a snapshot of (count, blocked) for diagnostic use.
func (r *Request) Counts() (count, blocked int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count, r.blocked
}

// AddCleanup registers a handler terminate_request must invoke, in LIFO
// order, before the request can be destroyed.
func (r *Request) AddCleanup(fn func()) {
	r.mu.Lock()
	r.cleanup = append(r.cleanup, fn)
	r.mu.Unlock()
}

// runCleanup invokes every registered cleanup handler, most-recently-added
// first.
func (r *Request) runCleanup() {
	r.mu.Lock()
	handlers := r.cleanup
	r.cleanup = nil
	r.mu.Unlock()
	for i := len(handlers) - 1; i >= 0; i-- {
		handlers[i]()
	}
}

// Done reports whether the request has reached a terminal state.
func (r *Request) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

func (r *Request) markDone() {
	r.mu.Lock()
	r.done = true
	r.mu.Unlock()
}

// Age reports how long ago this request (or subrequest node) was created,
// for the end-to-end request-duration metric.
func (r *Request) Age() time.Duration { return time.Since(r.startedAt) }

// StatusFromError maps a structured httperr.Error to the RC the core should
// feed into FinalizeRequest, per spec.md §4.6's "ERROR or 4xx/5xx terminal"
// row.
func StatusFromError(err error) (RC, int) {
	status := httperr.StatusOf(err)
	if status == 0 {
		return RCError, 500
	}
	return RCError, status
}
