package conn

import (
	"bufio"
	"net"
	"time"
)

// bufferedConn lets the TLS handshake (or the plain-HTTP path) continue
// reading through the same bufio.Reader used to peek the first byte,
// rather than requiring the caller to special-case "bytes already read."
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (b *bufferedConn) Read(p []byte) (int, error) { return b.r.Read(p) }

// PeekFirstByte wraps raw in a buffered reader and reports the first byte
// without consuming it, per spec.md §4.1's ssl_handshake: "peek one byte...
// if the byte is 0x16 (TLSv1) or has the high bit set (SSLv2), drive a TLS
// handshake; otherwise treat as plaintext HTTP." It returns a net.Conn that
// still yields that byte on the next Read.
func PeekFirstByte(raw net.Conn, peekTimeout time.Duration) (peeked byte, wrapped net.Conn, err error) {
	br := bufio.NewReader(raw)
	if peekTimeout > 0 {
		_ = raw.SetReadDeadline(time.Now().Add(peekTimeout))
	}
	b, err := br.Peek(1)
	if peekTimeout > 0 {
		_ = raw.SetReadDeadline(time.Time{})
	}
	if err != nil {
		return 0, nil, err
	}
	return b[0], &bufferedConn{Conn: raw, r: br}, nil
}

// LooksLikeTLS reports whether the peeked byte indicates a TLS (0x16,
// handshake record) or SSLv2 (high bit set) client hello.
func LooksLikeTLS(b byte) bool {
	return b == 0x16 || b&0x80 != 0
}

// Bootstrap decides the intake path for a freshly accepted socket: PROXY
// protocol stripping (if configured), then TLS-vs-plaintext dispatch by
// peeked byte. The returned net.Conn is what the caller should hand to
// tls.Server (if ssl is true) or read HTTP bytes from directly (if not).
func Bootstrap(c *Connection) (ssl bool, wrapped net.Conn, proxied *ProxyHeader, err error) {
	raw := c.Conn

	if c.Config.ProxyProtocol {
		br := bufio.NewReader(raw)
		hdr, perr := ReadProxyHeader(br)
		if perr != nil {
			return false, nil, nil, perr
		}
		c.ApplyProxyHeader(hdr)
		raw = &bufferedConn{Conn: raw, r: br}
		proxied = hdr
	}

	if !c.Config.TLS {
		return false, raw, proxied, nil
	}

	peeked, wrappedConn, perr := PeekFirstByte(raw, c.Config.PostAcceptTimeout)
	if perr != nil {
		return false, nil, proxied, perr
	}
	if LooksLikeTLS(peeked) {
		return true, wrappedConn, proxied, nil
	}
	// Listener is TLS-flagged but this client spoke plaintext; fall
	// through to the plain HTTP path per spec.md §4.1.
	return false, wrappedConn, proxied, nil
}
