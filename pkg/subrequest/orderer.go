// Package subrequest implements the postponed list, write baton, and
// posted-requests queue of spec.md §4.7: the mechanism that lets internally
// generated subrequests interleave cooperatively while still serializing
// their output to the client in the correct order.
//
// The tree is addressed by request.Ref rather than parent/child pointers,
// per spec.md §9's pointer-cycle translation: every node lives in a slot
// table checked against one tree-wide generation. A Ref carrying any other
// generation is rejected, and a freed slot resolves to nothing until it is
// reused; a later Spawn that reuses the slot keeps the same generation, so
// a Ref captured before the free then resolves to the slot's new occupant.
package subrequest

import (
	"sync"

	"github.com/parrika/httpcore/internal/httperr"
	"github.com/parrika/httpcore/pkg/request"
)

// EntryKind distinguishes the two shapes a postponed-list entry can take.
type EntryKind int

const (
	// EntrySubrequest holds a reference to a child request node.
	EntrySubrequest EntryKind = iota
	// EntryData holds a buffered output chain produced while this request
	// did not hold the write baton.
	EntryData
)

// Entry is one slot in a request's postponed list.
type Entry struct {
	Kind EntryKind
	Sub  request.Ref
	Data []byte
}

type node struct {
	req       *request.Request
	parent    request.Ref
	postponed []Entry
}

// Tree owns one root request's full subrequest tree plus the shared
// posted-requests queue and write baton.
type Tree struct {
	mu sync.Mutex

	generation uint32
	slots      []*node
	free       []int

	root    request.Ref
	baton   request.Ref // zero until the root is registered
	posted  []request.Ref
	postSet map[request.Ref]bool // dedups queue membership
}

// NewTree registers root as the tree's root node and makes it the initial
// baton holder.
func NewTree(root *request.Request) *Tree {
	t := &Tree{generation: 1, postSet: make(map[request.Ref]bool)}
	ref := request.Ref{Generation: t.generation, Index: 0}
	root.Ref = ref
	root.RootRef = ref
	root.OwnsBaton = true
	t.slots = append(t.slots, &node{req: root})
	t.root = ref
	t.baton = ref
	return t
}

func (t *Tree) resolveLocked(ref request.Ref) (*node, bool) {
	if ref.Generation != t.generation || ref.Index < 0 || ref.Index >= len(t.slots) {
		return nil, false
	}
	n := t.slots[ref.Index]
	if n == nil {
		return nil, false
	}
	return n, true
}

// Resolve returns the live *request.Request for ref, or false if the slot
// has been freed or the generation is stale.
func (t *Tree) Resolve(ref request.Ref) (*request.Request, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.resolveLocked(ref)
	if !ok {
		return nil, false
	}
	return n.req, true
}

// Spawn creates a new subrequest as the rightmost entry of parent's
// postponed list, per spec.md §4.7's "Spawn" rule: main.count is
// incremented, and the baton transfers to the child immediately if the
// parent currently holds it (so the child's output streams first);
// otherwise the child is simply queued behind whatever the parent is
// already emitting.
func (t *Tree) Spawn(parentRef request.Ref) (*request.Request, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	parent, ok := t.resolveLocked(parentRef)
	if !ok {
		return nil, httperr.NewInternalError("subrequest", "spawn against unknown parent", nil)
	}

	idx := t.allocSlotLocked()
	childRef := request.Ref{Generation: t.generation, Index: idx}
	child := request.NewSubrequest(childRef, parentRef, t.root, parent.req.TraceID)
	t.slots[idx] = &node{req: child, parent: parentRef}

	parent.postponed = append(parent.postponed, Entry{Kind: EntrySubrequest, Sub: childRef})

	if rootNode, _ := t.resolveLocked(t.root); rootNode != nil {
		rootNode.req.Enter() // main.count++
	}

	if t.baton == parentRef {
		t.baton = childRef
		parent.req.OwnsBaton = false
		child.OwnsBaton = true
	}

	return child, nil
}

func (t *Tree) allocSlotLocked() int {
	if n := len(t.free); n > 0 {
		idx := t.free[n-1]
		t.free = t.free[:n-1]
		return idx
	}
	t.slots = append(t.slots, nil)
	return len(t.slots) - 1
}

// Emit reports whether ref currently holds the baton and may write
// directly. If it does not, the caller's chain must instead be appended to
// its own postponed list via AppendData — the "postpone-filter" of
// spec.md §4.7.
func (t *Tree) Emit(ref request.Ref) (canWriteNow bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.baton == ref
}

// AppendData appends a buffered output chain to ref's own postponed list,
// for the case where Emit reported false.
func (t *Tree) AppendData(ref request.Ref, chain []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.resolveLocked(ref)
	if !ok {
		return httperr.NewInternalError("subrequest", "append against unknown request", nil)
	}
	n.postponed = append(n.postponed, Entry{Kind: EntryData, Data: chain})
	return nil
}

// PostedQueue is implemented by the connection engine's event loop: after
// every wakeup it drains the queue by invoking each request's write
// handler, per spec.md §4.7's "re-entry without recursion" rule.
type PostedQueue interface {
	WriteHandler(ref request.Ref)
}

// Complete implements spec.md §4.7's "Complete" rule: when a request
// finishes while holding the baton, it pops itself from its parent's
// postponed list and hands the baton on: to the parent's next postponed
// entry if that entry is a subrequest, otherwise (list empty, or data at
// its head) back to the parent, whose write handler flushes that data. It
// then posts the parent to the posted-requests queue so the parent's write
// handler runs on the next drain rather than recursively within this call.
func (t *Tree) Complete(ref request.Ref) {
	t.mu.Lock()
	defer t.mu.Unlock()

	self, ok := t.resolveLocked(ref)
	if !ok || t.baton != ref {
		return
	}

	parentRef := self.parent
	parent, ok := t.resolveLocked(parentRef)
	if !ok {
		// ref was the root; nothing to hand the baton to.
		return
	}

	t.removeEntryLocked(parent, ref)

	if len(parent.postponed) == 0 {
		t.baton = parentRef
		parent.req.OwnsBaton = true
		self.req.OwnsBaton = false
		t.enqueuePostedLocked(parentRef)
		return
	}

	next := parent.postponed[0]
	switch next.Kind {
	case EntrySubrequest:
		t.baton = next.Sub
		if n, ok := t.resolveLocked(next.Sub); ok {
			n.req.OwnsBaton = true
		}
	case EntryData:
		// The data at the head flushes as part of the parent's own write
		// handler once posted; the baton returns to the parent to do it.
		t.baton = parentRef
		parent.req.OwnsBaton = true
	}
	self.req.OwnsBaton = false
	t.enqueuePostedLocked(parentRef)
}

func (t *Tree) removeEntryLocked(parent *node, childRef request.Ref) {
	for i, e := range parent.postponed {
		if e.Kind == EntrySubrequest && e.Sub == childRef {
			parent.postponed = append(parent.postponed[:i], parent.postponed[i+1:]...)
			return
		}
	}
}

func (t *Tree) enqueuePostedLocked(ref request.Ref) {
	if t.postSet[ref] {
		return
	}
	t.postSet[ref] = true
	t.posted = append(t.posted, ref)
}

// DrainPosted hands every queued ref to fn exactly once, in FIFO order,
// then clears the queue. fn is expected to invoke the corresponding
// request's write handler.
func (t *Tree) DrainPosted(fn func(request.Ref)) {
	t.mu.Lock()
	queue := t.posted
	t.posted = nil
	t.postSet = make(map[request.Ref]bool)
	t.mu.Unlock()

	for _, ref := range queue {
		fn(ref)
	}
}

// Free releases ref's slot once its request has been fully destroyed. The
// slot index goes back on the free list for a later Spawn to reuse; callers
// must not retain ref past this point.
func (t *Tree) Free(ref request.Ref) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ref.Generation != t.generation || ref.Index < 0 || ref.Index >= len(t.slots) {
		return
	}
	t.slots[ref.Index] = nil
	t.free = append(t.free, ref.Index)
}

// Baton returns the Ref of the request currently holding the write baton.
func (t *Tree) Baton() request.Ref {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.baton
}
