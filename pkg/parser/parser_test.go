package parser_test

import (
	"testing"

	"github.com/parrika/httpcore/pkg/parser"
)

func TestRequestLineMinimalGET(t *testing.T) {
	rl := parser.NewRequestLine()
	buf := []byte("GET / HTTP/1.1\r\n")

	res, err := rl.Feed(buf, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != parser.OK {
		t.Fatalf("expected OK, got %v", res)
	}
	if string(rl.Method.Slice(buf)) != "GET" {
		t.Fatalf("method = %q", rl.Method.Slice(buf))
	}
	if string(rl.URI.Slice(buf)) != "/" {
		t.Fatalf("uri = %q", rl.URI.Slice(buf))
	}
	if string(rl.Version.Slice(buf)) != "HTTP/1.1" {
		t.Fatalf("version = %q", rl.Version.Slice(buf))
	}
}

// TestRequestLineFragmentedAcrossReads feeds the request line in three
// separate reads, each appended to a buffer that grows between calls, per
// spec.md §8's fragmented-request-line scenario.
func TestRequestLineFragmentedAcrossReads(t *testing.T) {
	full := "GET /index.html HTTP/1.1\r\n"
	rl := parser.NewRequestLine()

	chunks := []int{5, 15, len(full)}
	prev := 0
	var buf []byte
	for _, end := range chunks {
		buf = []byte(full[:end])
		res, err := rl.Feed(buf, 0)
		if err != nil {
			t.Fatalf("unexpected error at chunk ending %d: %v", end, err)
		}
		if end < len(full) {
			if res != parser.Again {
				t.Fatalf("expected Again at chunk ending %d, got %v", end, res)
			}
		} else {
			if res != parser.OK {
				t.Fatalf("expected OK at final chunk, got %v", res)
			}
		}
		prev = end
	}
	_ = prev

	if string(rl.Method.Slice(buf)) != "GET" {
		t.Fatalf("method = %q", rl.Method.Slice(buf))
	}
	if string(rl.URI.Slice(buf)) != "/index.html" {
		t.Fatalf("uri = %q", rl.URI.Slice(buf))
	}
	if string(rl.Version.Slice(buf)) != "HTTP/1.1" {
		t.Fatalf("version = %q", rl.Version.Slice(buf))
	}
}

// TestRequestLineRelocateAcrossBufferGrow exercises the token-relocation
// path a buffer grow requires: the unparsed tail (here, the whole in-flight
// line) is copied to a new, larger backing array at a shifted offset, and
// Relocate keeps the parser's already-recorded offsets consistent.
func TestRequestLineRelocateAcrossBufferGrow(t *testing.T) {
	rl := parser.NewRequestLine()
	small := []byte("GET /a")
	res, err := rl.Feed(small, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != parser.Again {
		t.Fatalf("expected Again, got %v", res)
	}

	// Simulate a buffer grow: copy the same bytes to offset 2 of a larger
	// buffer and relocate the parser by the shift.
	larger := make([]byte, 0, 64)
	larger = append(larger, 0, 0)
	larger = append(larger, small...)
	larger = append(larger, []byte("bc HTTP/1.0\r\n")...)
	rl.Relocate(2)

	res, err = rl.Feed(larger, 1)
	if err != nil {
		t.Fatalf("unexpected error after relocate: %v", err)
	}
	if res != parser.OK {
		t.Fatalf("expected OK, got %v", res)
	}
	if string(rl.URI.Slice(larger)) != "/abc" {
		t.Fatalf("uri = %q", rl.URI.Slice(larger))
	}
}

func TestRequestLineBareLFVersionEnd(t *testing.T) {
	rl := parser.NewRequestLine()
	buf := []byte("GET / HTTP/1.0\n")
	res, err := rl.Feed(buf, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != parser.OK {
		t.Fatalf("expected OK, got %v", res)
	}
	if string(rl.Version.Slice(buf)) != "HTTP/1.0" {
		t.Fatalf("version = %q", rl.Version.Slice(buf))
	}
}

func TestRequestLineRejectsControlCharInURI(t *testing.T) {
	rl := parser.NewRequestLine()
	buf := []byte("GET /a\rb HTTP/1.1\r\n")
	if _, err := rl.Feed(buf, 0); err == nil {
		t.Fatalf("expected error for control character in URI")
	}
}

func TestHeaderLineBasic(t *testing.T) {
	hl := parser.NewHeaderLine()
	buf := []byte("Host: example.com\r\n")
	res, err := hl.Feed(buf, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != parser.OK {
		t.Fatalf("expected OK, got %v", res)
	}
	if string(hl.Name.Slice(buf)) != "Host" {
		t.Fatalf("name = %q", hl.Name.Slice(buf))
	}
	if string(hl.Value.Slice(buf)) != "example.com" {
		t.Fatalf("value = %q", hl.Value.Slice(buf))
	}
}

func TestHeaderLineBlankLineEndsBlock(t *testing.T) {
	hl := parser.NewHeaderLine()
	buf := []byte("\r\n")
	res, err := hl.Feed(buf, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != parser.HeadersDone {
		t.Fatalf("expected HeadersDone, got %v", res)
	}
}

func TestHeaderLineUnderscoreToggle(t *testing.T) {
	buf := []byte("X_Custom: 1\r\n")

	rejecting := parser.NewHeaderLine()
	rejecting.AllowUnderscore = false
	if _, err := rejecting.Feed(buf, 0); err == nil {
		t.Fatalf("expected error with underscores disallowed")
	}

	allowing := parser.NewHeaderLine()
	allowing.AllowUnderscore = true
	res, err := allowing.Feed(buf, 0)
	if err != nil {
		t.Fatalf("unexpected error with underscores allowed: %v", err)
	}
	if res != parser.OK {
		t.Fatalf("expected OK, got %v", res)
	}
	if string(allowing.Name.Slice(buf)) != "X_Custom" {
		t.Fatalf("name = %q", allowing.Name.Slice(buf))
	}
}

func TestHeaderLineObsFoldDetection(t *testing.T) {
	hl := parser.NewHeaderLine()
	buf := []byte("X-A: one\r\n two\r\n")
	res, err := hl.Feed(buf, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != parser.OK {
		t.Fatalf("expected OK, got %v", res)
	}
	if !parser.ObsFoldContinues(buf, hl.Pos()) {
		t.Fatalf("expected obs-fold continuation to be detected")
	}
}

func TestURINormalizeIdempotent(t *testing.T) {
	cases := []string{
		"/a/b/../c",
		"/a//b///c",
		"/./a/./b",
		"/%2e%2e/etc",
		"/a/b/?x=1&y=2",
		"/",
	}
	opts := parser.NormalizeOptions{MergeSlashes: true}
	for _, raw := range cases {
		first, err := parser.Normalize([]byte(raw), opts)
		if err != nil {
			// Some cases legitimately reject (e.g. traversal above root);
			// nothing further to check.
			continue
		}
		second, err := parser.Normalize([]byte(first.Path), opts)
		if err != nil {
			t.Fatalf("re-normalizing %q failed: %v", first.Path, err)
		}
		if second.Path != first.Path {
			t.Fatalf("not idempotent: %q -> %q -> %q", raw, first.Path, second.Path)
		}
	}
}

func TestURINormalizeSplitsQueryAndExtension(t *testing.T) {
	u, err := parser.Normalize([]byte("/dir/file.html?x=1"), parser.NormalizeOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Path != "/dir/file.html" {
		t.Fatalf("path = %q", u.Path)
	}
	if u.Query != "x=1" {
		t.Fatalf("query = %q", u.Query)
	}
	if u.Extension != "html" {
		t.Fatalf("extension = %q", u.Extension)
	}
}

func TestURINormalizeRejectsTraversalAboveRoot(t *testing.T) {
	if _, err := parser.Normalize([]byte("../etc/passwd"), parser.NormalizeOptions{}); err == nil {
		t.Fatalf("expected error for traversal above a relative root")
	}
}

func TestURINormalizeClampsTraversalAtRoot(t *testing.T) {
	u, err := parser.Normalize([]byte("/../../etc/passwd"), parser.NormalizeOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Path != "/etc/passwd" {
		t.Fatalf("path = %q", u.Path)
	}
}

func TestURINormalizeRejectsNULByte(t *testing.T) {
	if _, err := parser.Normalize([]byte("/a%00b"), parser.NormalizeOptions{}); err == nil {
		t.Fatalf("expected error for encoded NUL byte")
	}
}
