package request

// Hooks is the set of side effects FinalizeRequest, TerminateRequest, and
// FinalizeConnection need from their caller (the connection engine):
// switching write handlers, generating canned responses, and deciding
// between keepalive/lingering-close/full-close. Expressing these as an
// injected interface rather than nginx's reassigned function pointers is
// the "event-callback tangle" translation spec.md §9 calls for.
type Hooks interface {
	// ResetContentHandler re-enters the phase pipeline for a DECLINED
	// result.
	ResetContentHandler(r *Request)
	// GenerateSpecialResponse builds the canned body/headers for a status
	// that needs one (>=300, 201, 204) and returns the RC to re-feed into
	// FinalizeRequest.
	GenerateSpecialResponse(r *Request, status int) RC
	// SwitchToWriter arms the write handler and send timeout for a request
	// with buffered output still pending.
	SwitchToWriter(r *Request)
	// PassBaton hands the write baton from a finishing subrequest to the
	// parent's next postponed entry and posts the parent to the
	// posted-requests queue.
	PassBaton(r *Request)
	// InstallDrainFinalizer installs the no-op write handler a finished,
	// non-baton-owning subrequest waits under until the baton arrives.
	InstallDrainFinalizer(r *Request)
	// DecideConnectionFate runs finalize_connection's keepalive/linger/
	// close choice for a fully complete root request.
	DecideConnectionFate(r *Request)
	// RunCleanupChain is invoked by TerminateRequest after the request's
	// own cleanup handlers have run, for any connection-level teardown.
	RunCleanupChain(r *Request)
	// DeferToTerminalPosted is called when TerminateRequest finds the
	// write handler still active and the request blocked; it must post a
	// terminal request to the posted-requests queue rather than freeing
	// immediately.
	DeferToTerminalPosted(r *Request)
	// Destroy releases the request's resources (large-header buffers,
	// body spill files) once no reference remains.
	Destroy(r *Request)
	// ReArmDiscardDrain re-arms the read handler to drain-and-discard a
	// request body for a request other actors still hold a reference to.
	ReArmDiscardDrain(r *Request)
}

// FinalizeRequest is the single entry point for "this handler's phase is
// done" — spec.md §4.6's decision tree on rc.
func FinalizeRequest(r *Request, rc RC, status int, h Hooks) {
	switch {
	case rc == RCDone:
		FinalizeConnection(r, h)
		return

	case rc == RCDeclined:
		h.ResetContentHandler(r)
		return

	case rc == RCError || rc == RCClose || isTerminalStatus(status):
		TerminateRequest(r, rc, h)
		return

	case isSpecialResponseStatus(status):
		next := h.GenerateSpecialResponse(r, status)
		FinalizeRequest(r, next, 0, h)
		return
	}

	// rc == RCOK from here on.
	if r.Kind == KindSubrequest {
		if r.HasBufferedOutput || r.HasPendingChildren {
			h.SwitchToWriter(r)
			return
		}
		if r.OwnsBaton {
			r.markDone()
			h.PassBaton(r)
			return
		}
		r.markDone()
		h.InstallDrainFinalizer(r)
		return
	}

	// Root request.
	if r.HasBufferedOutput || r.HasPendingChildren {
		h.SwitchToWriter(r)
		return
	}
	r.markDone()
	FinalizeConnection(r, h)
}

func isTerminalStatus(status int) bool {
	return status >= 400
}

func isSpecialResponseStatus(status int) bool {
	if status == 0 {
		return false
	}
	if status == 201 || status == 204 {
		return true
	}
	return status >= 300 && status < 400
}

// TerminateRequest is the forceful variant of finalize_request: it walks
// the cleanup list, then either defers to a terminal posted request (if the
// write handler is active and blocked > 0) or drops the reference and
// destroys the request.
func TerminateRequest(r *Request, rc RC, h Hooks) {
	r.runCleanup()
	h.RunCleanupChain(r)

	_, blocked := r.Counts()
	if blocked > 0 {
		h.DeferToTerminalPosted(r)
		return
	}

	remaining := r.Leave()
	r.markDone()
	if remaining <= 0 {
		h.Destroy(r)
	}
}

// FinalizeConnection implements spec.md §4.6's finalize_connection choice:
//
//	(a) count > 1: other actors still live — rearm discard-drain if a body
//	    is being discarded, else just decrement and return;
//	(b) keepalive permitted and keepalive_timeout > 0 -> set_keepalive;
//	(c) lingering-close conditions hold -> set_lingering_close;
//	(d) else full close.
//
// The keepalive/linger/close choice itself is delegated to h, since it
// needs connection-level configuration (timeouts, tcp_nopush) this package
// does not hold.
func FinalizeConnection(r *Request, h Hooks) {
	count, _ := r.Counts()
	if count > 1 {
		h.ReArmDiscardDrain(r)
		r.Leave()
		return
	}
	h.DecideConnectionFate(r)
}
