package vhost_test

import (
	"testing"

	"github.com/parrika/httpcore/pkg/vhost"
)

func TestResolveExactMatch(t *testing.T) {
	def := &vhost.Server{Name: "default"}
	r := vhost.NewResolver(def)
	example := &vhost.Server{Name: "example"}
	r.AddExact("example.com", example)

	got := r.Resolve("example.com")
	if got.Name != "example" {
		t.Fatalf("expected example, got %s", got.Name)
	}

	// port suffix and case should not affect the match
	got = r.Resolve("EXAMPLE.com:8080")
	if got.Name != "example" {
		t.Fatalf("expected example with port/case normalized, got %s", got.Name)
	}
}

func TestResolveWildcard(t *testing.T) {
	def := &vhost.Server{Name: "default"}
	r := vhost.NewResolver(def)
	wild := &vhost.Server{Name: "wild"}
	r.AddExact("*.example.com", wild)

	got := r.Resolve("api.example.com")
	if got.Name != "wild" {
		t.Fatalf("expected wild, got %s", got.Name)
	}
}

func TestResolveRegexFallbackInDeclarationOrder(t *testing.T) {
	def := &vhost.Server{Name: "default"}
	r := vhost.NewResolver(def)
	first := &vhost.Server{Name: "first"}
	second := &vhost.Server{Name: "second"}
	if err := r.AddRegex(`^foo\d+\.example\.com$`, first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.AddRegex(`^foo.*\.example\.com$`, second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := r.Resolve("foo42.example.com")
	if got.Name != "first" {
		t.Fatalf("expected first regex to win, got %s", got.Name)
	}
}

func TestResolveFallsBackToDefault(t *testing.T) {
	def := &vhost.Server{Name: "default"}
	r := vhost.NewResolver(def)
	got := r.Resolve("unknown.example.org")
	if got.Name != "default" {
		t.Fatalf("expected default, got %s", got.Name)
	}
}

func TestCheckSNIHostMatch(t *testing.T) {
	sni := &vhost.Server{Name: "a"}
	host := &vhost.Server{Name: "a"}
	if err := vhost.CheckSNIHostMatch(sni, host, true); err != nil {
		t.Fatalf("unexpected error for matching names: %v", err)
	}

	host2 := &vhost.Server{Name: "b"}
	if err := vhost.CheckSNIHostMatch(sni, host2, true); err == nil {
		t.Fatalf("expected error for mismatched SNI/Host")
	}
	if err := vhost.CheckSNIHostMatch(sni, host2, false); err != nil {
		t.Fatalf("expected no error when match not required: %v", err)
	}
}
