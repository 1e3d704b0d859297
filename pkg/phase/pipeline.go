// Package phase defines the contract the request/connection engine expects
// from the external phase pipeline collaborator named in spec.md §6
// ("Phase pipeline. run_phases(R); handlers indicate result via
// finalize_request(R, rc)."). The pipeline's own hook points (rewrite,
// access, content, log) are out of scope for this core; only the boundary
// it crosses is modeled here.
package phase

import "github.com/parrika/httpcore/pkg/request"

// Pipeline runs the rewrite/access/content/log hook chain against a
// request. Implementations call back into request.FinalizeRequest with the
// RC their chain produced; RunPhases itself does not return a result — the
// callback is the only channel, matching spec.md's "handlers indicate
// result via finalize_request" contract.
type Pipeline interface {
	RunPhases(r *request.Request)
}

// Func adapts a plain function to Pipeline, for tests and simple wiring
// that don't need a stateful implementation.
type Func func(r *request.Request)

func (f Func) RunPhases(r *request.Request) { f(r) }
