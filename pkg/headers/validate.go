package headers

import (
	"strconv"
	"strings"

	"github.com/parrika/httpcore/internal/httperr"
	"github.com/parrika/httpcore/pkg/constants"
)

// AfterHeaders runs the post-header-block validation of spec.md §4.4: the
// HTTP/1.1-without-Host rejection, TRACE rejection, and Content-Length /
// Transfer-Encoding reconciliation. method is the already decoded
// request-line method token; httpMinor is the HTTP/1.x minor version
// (1 for HTTP/1.1, 0 for HTTP/1.0).
func AfterHeaders(f *Fields, method string, httpMinor int) error {
	if httpMinor >= 1 && f.Host == "" {
		return httperr.NewProtocolError("headers", "missing Host header on HTTP/1.1 request", 400)
	}

	if strings.EqualFold(method, "TRACE") {
		return httperr.NewProtocolError("headers", "TRACE method not allowed", 405)
	}

	f.ExpectContinue = strings.EqualFold(strings.TrimSpace(f.Expect), "100-continue")

	if len(f.TransferEncoded) > 0 {
		last := strings.ToLower(strings.TrimSpace(f.TransferEncoded[len(f.TransferEncoded)-1]))
		if last != "chunked" {
			return httperr.NewProtocolError("headers", "unsupported transfer-encoding", 501)
		}
		// spec.md §4.4: "reject Content-Length combined with chunked
		// framing by preferring chunked and clearing the length."
		f.Chunked = true
		f.ContentLength = ""
		f.HasContentLen = false
		f.ContentLen = 0
		return nil
	}

	if f.ContentLength != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(f.ContentLength), 10, 64)
		if err != nil || n < 0 || n > constants.MaxContentLength {
			return httperr.NewParseError("headers", "invalid Content-Length", 400)
		}
		f.HasContentLen = true
		f.ContentLen = n
	}

	return nil
}
