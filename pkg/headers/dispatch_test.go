package headers_test

import (
	"testing"

	"github.com/parrika/httpcore/pkg/headers"
)

func TestDispatchPlainAndMulti(t *testing.T) {
	f := &headers.Fields{}
	if err := headers.Dispatch(f, "Content-Type", "text/plain"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := headers.Dispatch(f, "Cookie", "a=1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := headers.Dispatch(f, "Cookie", "b=2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.ContentType != "text/plain" {
		t.Fatalf("content-type = %q", f.ContentType)
	}
	if len(f.Cookie) != 2 || f.Cookie[0] != "a=1" || f.Cookie[1] != "b=2" {
		t.Fatalf("cookie = %v", f.Cookie)
	}
}

func TestDispatchUniqueRejectsDuplicate(t *testing.T) {
	f := &headers.Fields{}
	if err := headers.Dispatch(f, "Content-Length", "10"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := headers.Dispatch(f, "Content-Length", "20"); err == nil {
		t.Fatalf("expected error for duplicate Content-Length")
	}
}

func TestDispatchUnrecognizedPreservesOrder(t *testing.T) {
	f := &headers.Fields{}
	_ = headers.Dispatch(f, "X-One", "1")
	_ = headers.Dispatch(f, "X-Two", "2")
	if len(f.Unrecognized) != 2 {
		t.Fatalf("expected 2 unrecognized headers, got %d", len(f.Unrecognized))
	}
	if f.Unrecognized[0].Name != "X-One" || f.Unrecognized[1].Name != "X-Two" {
		t.Fatalf("order not preserved: %v", f.Unrecognized)
	}
}

func TestHostHandlerRejectsDuplicateAndInvalid(t *testing.T) {
	f := &headers.Fields{}
	if err := headers.Dispatch(f, "Host", "example.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := headers.Dispatch(f, "Host", "other.com"); err == nil {
		t.Fatalf("expected error for duplicate Host")
	}

	f2 := &headers.Fields{}
	if err := headers.Dispatch(f2, "Host", "exa mple.com"); err == nil {
		t.Fatalf("expected error for invalid character in Host")
	}
}

func TestConnectionHandlerSetsDisposition(t *testing.T) {
	f := &headers.Fields{}
	if err := headers.Dispatch(f, "Connection", "keep-alive"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.KeepAlive || f.ConnectionClose {
		t.Fatalf("expected keep-alive true, close false: %+v", f)
	}

	f2 := &headers.Fields{}
	_ = headers.Dispatch(f2, "Connection", "close")
	if !f2.ConnectionClose {
		t.Fatalf("expected connection close flag set")
	}
}

func TestAfterHeadersRequiresHostOnHTTP11(t *testing.T) {
	f := &headers.Fields{}
	if err := headers.AfterHeaders(f, "GET", 1); err == nil {
		t.Fatalf("expected error for missing Host on HTTP/1.1")
	}

	f.Host = "example.com"
	if err := headers.AfterHeaders(f, "GET", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAfterHeadersRejectsTRACE(t *testing.T) {
	f := &headers.Fields{Host: "example.com"}
	if err := headers.AfterHeaders(f, "TRACE", 1); err == nil {
		t.Fatalf("expected error for TRACE method")
	}
}

func TestAfterHeadersChunkedPrefersOverContentLength(t *testing.T) {
	f := &headers.Fields{Host: "example.com", ContentLength: "10"}
	_ = headers.Dispatch(f, "Transfer-Encoding", "chunked")
	if err := headers.AfterHeaders(f, "POST", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.Chunked {
		t.Fatalf("expected chunked true")
	}
	if f.HasContentLen {
		t.Fatalf("expected content-length cleared when chunked")
	}
}

func TestAfterHeadersRejectsUnknownTransferEncoding(t *testing.T) {
	f := &headers.Fields{Host: "example.com"}
	_ = headers.Dispatch(f, "Transfer-Encoding", "gzip")
	if err := headers.AfterHeaders(f, "POST", 1); err == nil {
		t.Fatalf("expected 501 for unsupported transfer-encoding")
	}
}

func TestAfterHeadersParsesContentLength(t *testing.T) {
	f := &headers.Fields{Host: "example.com", ContentLength: "123"}
	if err := headers.AfterHeaders(f, "POST", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.HasContentLen || f.ContentLen != 123 {
		t.Fatalf("expected parsed content length 123, got %+v", f)
	}
}

func TestAfterHeadersSetsExpectContinue(t *testing.T) {
	f := &headers.Fields{Host: "example.com"}
	_ = headers.Dispatch(f, "Expect", "100-continue")
	if err := headers.AfterHeaders(f, "POST", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.ExpectContinue {
		t.Fatalf("expected ExpectContinue true")
	}
}

func TestDispatchStoresConditionalAndRangeHeaders(t *testing.T) {
	f := &headers.Fields{}
	_ = headers.Dispatch(f, "If-Modified-Since", "Tue, 01 Jan 2030 00:00:00 GMT")
	_ = headers.Dispatch(f, "Range", "bytes=0-499")
	if f.IfModSince == "" || f.Range == "" {
		t.Fatalf("expected If-Modified-Since and Range stored, got %+v", f)
	}
}
