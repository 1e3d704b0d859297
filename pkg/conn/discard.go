package conn

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/parrika/httpcore/internal/httperr"
)

// DiscardBody drains and discards a request body that no content handler
// reads, per spec.md §4.6's "if body is being discarded, re-arm the read
// handler to the discard drain" — this is the drain itself, so the
// connection can be recycled into keepalive with nothing left unread on the
// wire. The bytes are never inspected or retained, so they sink straight
// into io.Discard rather than any buffer that would hold or spill them.
func DiscardBody(br *bufio.Reader, contentLength int64, chunked bool) error {
	if chunked {
		return discardChunked(br)
	}
	if contentLength <= 0 {
		return nil
	}
	_, err := io.CopyN(io.Discard, br, contentLength)
	if err == io.EOF {
		return nil
	}
	return err
}

// discardChunked reads and discards a chunked-encoded body, chunk by chunk,
// stopping once the zero-length terminal chunk and its trailer section have
// been consumed.
func discardChunked(br *bufio.Reader) error {
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return err
		}
		size, err := parseChunkSize(line)
		if err != nil {
			return httperr.NewParseError("discard_body", "invalid chunk size", 400)
		}
		if size == 0 {
			return discardTrailers(br)
		}
		if _, err := io.CopyN(io.Discard, br, size); err != nil {
			return err
		}
		if _, err := br.ReadString('\n'); err != nil { // trailing CRLF after chunk data
			return err
		}
	}
}

func discardTrailers(br *bufio.Reader) error {
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return err
		}
		if line == "\r\n" || line == "\n" {
			return nil
		}
	}
}

func parseChunkSize(line string) (int64, error) {
	line = strings.TrimSpace(line)
	if i := strings.IndexByte(line, ';'); i >= 0 {
		line = line[:i]
	}
	return strconv.ParseInt(line, 16, 64)
}
