package parser

import (
	"github.com/parrika/httpcore/internal/httperr"
)

// request-line FSM states, byte-at-a-time, resumable across Feed calls and
// across buffer grows (via Relocate). Mirrors the method/uri/version/CRLF
// progression spec.md §4.2 describes, minus nginx's fast-path method table
// (method classification is left to the request layer once the token is
// resolved to bytes).
const (
	rlMethod = iota
	rlSpacesBeforeURI
	rlURI
	rlSpacesBeforeVersion
	rlH
	rlHT
	rlHTT
	rlHTTP
	rlVersionSlash
	rlVersionMajor
	rlVersionDot
	rlVersionMinor
	rlCR
	rlLF
	rlDone
)

// MaxToken bounds a single in-progress token (method, URI, or version) to
// avoid runaway scanning when a buffer never terminates — spec.md §4.2's
// "if the current partial token exceeds a single buffer's size, reject".
// The request/connection layer enforces the actual buffer-size limit; this
// is a defensive backstop against state desync.
const MaxToken = 64 * 1024

// RequestLine incrementally parses "METHOD SP URI SP VERSION CRLF" over a
// buffer that may grow between calls.
type RequestLine struct {
	state int
	pos   int

	methodStart, methodEnd   int
	uriStart, uriEnd         int
	versionStart, versionEnd int

	Method  Token
	URI     Token
	Version Token
}

// NewRequestLine returns a fresh parser positioned at the start of a
// request line.
func NewRequestLine() *RequestLine {
	return &RequestLine{state: rlMethod, methodStart: 0}
}

// Relocate shifts every offset the parser holds by delta. Call this after
// copying the unparsed tail of the current buffer to offset 0 of a new,
// larger buffer, before the next Feed call against the new buffer's bytes.
func (r *RequestLine) Relocate(delta int) {
	r.pos += delta
	r.methodStart += delta
	r.methodEnd += delta
	r.uriStart += delta
	r.uriEnd += delta
	r.versionStart += delta
	r.versionEnd += delta
}

// Feed scans buf (the full contents of the active buffer, from offset 0)
// starting at the position the parser last stopped at. buf must be the same
// backing data as the previous call unless Relocate was called in between.
func (r *RequestLine) Feed(buf []byte, bufID BufID) (Result, error) {
	for r.pos < len(buf) {
		c := buf[r.pos]

		switch r.state {
		case rlMethod:
			switch {
			case c == ' ':
				if r.pos == r.methodStart {
					return Again, httperr.NewParseError("request_line", "empty method", 400)
				}
				r.methodEnd = r.pos
				r.state = rlSpacesBeforeURI
			case isUpperAlpha(c):
				// stay in rlMethod
			default:
				return Again, httperr.NewParseError("request_line", "invalid method character", 400)
			}

		case rlSpacesBeforeURI:
			switch c {
			case ' ':
				// skip extra spaces
			default:
				r.uriStart = r.pos
				r.state = rlURI
				continue // re-examine c under rlURI without advancing pos twice
			}

		case rlURI:
			switch c {
			case ' ':
				r.uriEnd = r.pos
				r.state = rlSpacesBeforeVersion
			case 0x00:
				return Again, httperr.NewParseError("request_line", "NUL byte in URI", 400)
			case '\r', '\n':
				return Again, httperr.NewParseError("request_line", "control character in URI", 400)
			default:
				// accumulate
			}

		case rlSpacesBeforeVersion:
			switch c {
			case ' ':
			default:
				r.versionStart = r.pos
				r.state = rlH
				continue
			}

		case rlH:
			if c != 'H' {
				return Again, httperr.NewParseError("request_line", "invalid protocol", 400)
			}
			r.state = rlHT
		case rlHT:
			if c != 'T' {
				return Again, httperr.NewParseError("request_line", "invalid protocol", 400)
			}
			r.state = rlHTT
		case rlHTT:
			if c != 'T' {
				return Again, httperr.NewParseError("request_line", "invalid protocol", 400)
			}
			r.state = rlHTTP
		case rlHTTP:
			if c != 'P' {
				return Again, httperr.NewParseError("request_line", "invalid protocol", 400)
			}
			r.state = rlVersionSlash
		case rlVersionSlash:
			if c != '/' {
				return Again, httperr.NewParseError("request_line", "invalid protocol", 400)
			}
			r.state = rlVersionMajor
		case rlVersionMajor:
			if !isDigit(c) {
				return Again, httperr.NewParseError("request_line", "invalid version", 400)
			}
			r.state = rlVersionDot
		case rlVersionDot:
			if c != '.' {
				return Again, httperr.NewParseError("request_line", "invalid version", 400)
			}
			r.state = rlVersionMinor
		case rlVersionMinor:
			if !isDigit(c) {
				return Again, httperr.NewParseError("request_line", "invalid version", 400)
			}
			r.versionEnd = r.pos + 1
			r.state = rlCR
		case rlCR:
			switch c {
			case '\r':
				r.state = rlLF
			case '\n':
				r.state = rlDone
			default:
				return Again, httperr.NewParseError("request_line", "expected CRLF", 400)
			}
		case rlLF:
			if c != '\n' {
				return Again, httperr.NewParseError("request_line", "expected LF after CR", 400)
			}
			r.state = rlDone
		}

		r.pos++

		if r.state == rlDone {
			r.Method = Token{Buf: bufID, Start: r.methodStart, End: r.methodEnd}
			r.URI = Token{Buf: bufID, Start: r.uriStart, End: r.uriEnd}
			r.Version = Token{Buf: bufID, Start: r.versionStart, End: r.versionEnd}
			return OK, nil
		}

		if r.pos-r.methodStart > MaxToken {
			return Again, httperr.NewParseError("request_line", "request line too large", 414)
		}
	}
	return Again, nil
}

// Done reports whether the request line has fully parsed.
func (r *RequestLine) Done() bool { return r.state == rlDone }

// Pos reports the buffer offset immediately following the request line's
// terminating CRLF — where the header block begins in the same buffer.
func (r *RequestLine) Pos() int { return r.pos }

func isUpperAlpha(c byte) bool { return c >= 'A' && c <= 'Z' }
func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
