package subrequest_test

import (
	"testing"

	"github.com/parrika/httpcore/pkg/request"
	"github.com/parrika/httpcore/pkg/subrequest"
)

func TestSpawnTransfersBatonFromParent(t *testing.T) {
	root := request.New(request.Ref{})
	tree := subrequest.NewTree(root)

	child, err := tree.Spawn(tree.Baton())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tree.Baton() != child.Ref {
		t.Fatalf("expected baton to transfer to child")
	}
	if !child.OwnsBaton {
		t.Fatalf("expected child.OwnsBaton true")
	}
	if root.OwnsBaton {
		t.Fatalf("expected root.OwnsBaton false after transfer")
	}
}

func TestEmitReflectsBatonOwnership(t *testing.T) {
	root := request.New(request.Ref{})
	tree := subrequest.NewTree(root)
	rootRef := tree.Baton()

	if !tree.Emit(rootRef) {
		t.Fatalf("expected root to hold the baton initially")
	}

	child, err := tree.Spawn(rootRef)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tree.Emit(rootRef) {
		t.Fatalf("expected root to no longer hold the baton")
	}
	if !tree.Emit(child.Ref) {
		t.Fatalf("expected child to hold the baton")
	}
}

func TestCompleteHandsBatonBackToParentAndPosts(t *testing.T) {
	root := request.New(request.Ref{})
	tree := subrequest.NewTree(root)
	rootRef := tree.Baton()

	child, err := tree.Spawn(rootRef)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tree.Complete(child.Ref)

	if tree.Baton() != rootRef {
		t.Fatalf("expected baton handed back to root")
	}

	var drained []request.Ref
	tree.DrainPosted(func(ref request.Ref) { drained = append(drained, ref) })
	if len(drained) != 1 || drained[0] != rootRef {
		t.Fatalf("expected root posted exactly once, got %v", drained)
	}
}

func TestCompleteNoopsWithoutBaton(t *testing.T) {
	root := request.New(request.Ref{})
	tree := subrequest.NewTree(root)
	rootRef := tree.Baton()

	child, err := tree.Spawn(rootRef)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Spawn transferred the baton to child; completing root (which does
	// not hold it) must be a no-op.
	tree.Complete(rootRef)
	if tree.Baton() != child.Ref {
		t.Fatalf("expected baton to remain with child")
	}
}

func TestAppendDataQueuesBehindNonBatonHolder(t *testing.T) {
	root := request.New(request.Ref{})
	tree := subrequest.NewTree(root)
	rootRef := tree.Baton()

	child, err := tree.Spawn(rootRef)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := tree.AppendData(rootRef, []byte("hello")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = child
}

func TestResolveRejectsUnknownRef(t *testing.T) {
	root := request.New(request.Ref{})
	tree := subrequest.NewTree(root)
	if _, ok := tree.Resolve(request.Ref{Generation: 999, Index: 5}); ok {
		t.Fatalf("expected unknown ref to fail resolution")
	}
}
