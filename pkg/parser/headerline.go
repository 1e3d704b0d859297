package parser

import (
	"github.com/parrika/httpcore/internal/httperr"
)

// header-line FSM states.
const (
	hlStart = iota // first byte of a line: either a header name, or CR/LF ending the block
	hlName
	hlSpaceBeforeColon
	hlSpaceBeforeValue
	hlValue
	hlValueCR
	hlAlmostDone // blank-line CR seen, expecting LF
	hlDone
)

// HeaderLine incrementally parses one "NAME: VALUE CRLF" header line, or
// recognizes the blank CRLF that ends the header block. A single HeaderLine
// instance is reused across every header line of one request by calling
// Reset between lines (it is not reused across the terminating blank line,
// which callers detect via the HeadersDone result).
type HeaderLine struct {
	state int
	pos   int

	nameStart, nameEnd   int
	valueStart, valueEnd int

	// AllowUnderscore controls whether '_' is a legal header-name
	// character, per spec.md §6 "underscores_in_headers" and the
	// Boundary test in §8.
	AllowUnderscore bool

	Name  Token
	Value Token
}

// NewHeaderLine returns a parser ready to scan the first header line (or
// detect the blank line that ends the block).
func NewHeaderLine() *HeaderLine {
	return &HeaderLine{state: hlStart}
}

// Reset prepares the parser to scan the next header line, continuing from
// the same buffer position.
func (h *HeaderLine) Reset() {
	h.state = hlStart
	h.nameStart, h.nameEnd = 0, 0
	h.valueStart, h.valueEnd = 0, 0
}

// Relocate shifts every offset the parser holds by delta, mirroring
// RequestLine.Relocate.
func (h *HeaderLine) Relocate(delta int) {
	h.pos += delta
	h.nameStart += delta
	h.nameEnd += delta
	h.valueStart += delta
	h.valueEnd += delta
}

func isHeaderNameByte(c byte, allowUnderscore bool) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-':
		return true
	case c == '_':
		return allowUnderscore
	default:
		return false
	}
}

// Feed scans buf from the position the parser last stopped at. It returns
// OK when one header line has been parsed (Name/Value tokens populated),
// HeadersDone when the blank line ending the block was found, or Again when
// more bytes are needed.
func (h *HeaderLine) Feed(buf []byte, bufID BufID) (Result, error) {
	for h.pos < len(buf) {
		c := buf[h.pos]

		switch h.state {
		case hlStart:
			switch c {
			case '\r':
				h.state = hlAlmostDone
			case '\n':
				h.pos++
				h.state = hlDone
				return HeadersDone, nil
			default:
				h.nameStart = h.pos
				h.state = hlName
				continue
			}

		case hlName:
			switch {
			case c == ':':
				h.nameEnd = h.pos
				h.state = hlSpaceBeforeValue
			case isHeaderNameByte(c, h.AllowUnderscore):
				// accumulate
			case c == ' ' || c == '\t':
				h.nameEnd = h.pos
				h.state = hlSpaceBeforeColon
			default:
				return Again, httperr.NewParseError("header", "invalid header name character", 400)
			}

		case hlSpaceBeforeColon:
			switch c {
			case ' ', '\t':
			case ':':
				h.state = hlSpaceBeforeValue
			default:
				return Again, httperr.NewParseError("header", "invalid header name", 400)
			}

		case hlSpaceBeforeValue:
			switch c {
			case ' ', '\t':
			case '\r':
				h.valueStart, h.valueEnd = h.pos, h.pos
				h.state = hlValueCR
			case '\n':
				h.valueStart, h.valueEnd = h.pos, h.pos
				h.pos++
				h.state = hlStart
				h.populateTokens(bufID)
				return OK, nil
			default:
				h.valueStart = h.pos
				h.state = hlValue
				continue
			}

		case hlValue:
			switch c {
			case '\r':
				h.valueEnd = h.pos
				h.state = hlValueCR
			case '\n':
				h.valueEnd = h.pos
				h.pos++
				h.state = hlStart
				h.populateTokens(bufID)
				return OK, nil
			case 0x00:
				return Again, httperr.NewParseError("header", "NUL byte in header value", 400)
			default:
				// accumulate; an RFC 7230 LWS-continuation (obs-fold)
				// line is not joined here: callers detect it with
				// ObsFoldContinues once this line returns OK.
			}

		case hlValueCR:
			if c != '\n' {
				return Again, httperr.NewParseError("header", "expected LF after CR", 400)
			}
			h.pos++
			h.state = hlStart
			h.populateTokens(bufID)
			return OK, nil

		case hlAlmostDone:
			if c != '\n' {
				return Again, httperr.NewParseError("header", "expected LF after CR", 400)
			}
			h.pos++
			h.state = hlDone
			return HeadersDone, nil
		}

		if h.state != hlDone {
			h.pos++
		}

		if h.pos-h.nameStart > MaxToken {
			return Again, httperr.NewParseError("header", "header line too large", 431)
		}
	}
	return Again, nil
}

// Pos reports the buffer offset the parser will resume scanning from, i.e.
// the first byte of the line following the one Feed just completed. Callers
// use it together with ObsFoldContinues to detect folded header values.
func (h *HeaderLine) Pos() int { return h.pos }

// ObsFoldContinues reports, once Feed has returned OK for a value, whether
// the very next byte in buf is a continuation-line SP/TAB (RFC 7230 §3.2.4
// obs-fold). Callers that want folded values joined should, on true, append
// a single space plus the next line's trimmed value to the previous token
// rather than starting a new header.
func ObsFoldContinues(buf []byte, pos int) bool {
	if pos >= len(buf) {
		return false
	}
	return buf[pos] == ' ' || buf[pos] == '\t'
}

// populateTokens finalizes Name/Value for the caller once OK is returned
// (HeadersDone leaves them untouched); exported via the Name/Value fields directly for simplicity, but
// kept as a named step for clarity when state transitions change.
func (h *HeaderLine) populateTokens(bufID BufID) {
	h.Name = Token{Buf: bufID, Start: h.nameStart, End: h.nameEnd}
	h.Value = Token{Buf: bufID, Start: h.valueStart, End: h.valueEnd}
}
