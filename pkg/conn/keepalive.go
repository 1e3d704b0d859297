package conn

import (
	"bufio"
	"io"
	"time"
)

// KeepaliveDecision is the outcome of EnterKeepalive, telling the caller
// whether to immediately start parsing a pipelined follow-up request or to
// go idle waiting on the next read event.
type KeepaliveDecision int

const (
	// DecisionPipelined means bytes beyond the just-finished request's
	// headers are already buffered; the caller should create a fresh,
	// Pipelined-flagged request and resume the request-line parser against
	// the same reader without waiting on a new read event.
	DecisionPipelined KeepaliveDecision = iota
	// DecisionIdle means the caller should arm keepalive_timeout and wait
	// for the next readiness event.
	DecisionIdle
)

// EnterKeepalive implements spec.md §4.9's keepalive-entry rule: if the
// input buffer still holds bytes past the headers just consumed, the
// connection goes straight into parsing a pipelined request; otherwise it
// becomes idle and TCP_NODELAY is applied (tcp_nopush permitting).
func (c *Connection) EnterKeepalive(br *bufio.Reader) KeepaliveDecision {
	c.CurrentRequest = nil
	c.RequestsServed++

	if br.Buffered() > 0 {
		c.State = StateReading
		return DecisionPipelined
	}

	c.State = StateKeepalive
	if tc, ok := c.Conn.(interface{ SetNoDelay(bool) error }); ok && c.Config.TCPNoDelay && !c.Config.TCPNoPush {
		_ = tc.SetNoDelay(true)
	}
	return DecisionIdle
}

// KeepaliveRead performs the single read keepalive_handler makes on
// readiness, per spec.md §4.9. It blocks until a byte arrives or the read
// deadline expires: a deadline expiry (keepalive_timeout) returns
// gotData=false, peerClosed=false and a nil error; 0 bytes (peer FIN)
// returns peerClosed=true, meaning close silently; any other read error is
// returned; otherwise gotData=true means a new request should be created
// and parsing resumed.
func (c *Connection) KeepaliveRead(br *bufio.Reader) (gotData bool, peerClosed bool, err error) {
	_, err = br.Peek(1)
	if err == io.EOF {
		return false, true, nil
	}
	if err != nil {
		if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
			return false, false, nil
		}
		return false, false, err
	}
	c.State = StateReading
	return true, false, nil
}

// ShouldLinger reports whether spec.md §4.10's lingering-close conditions
// hold: explicitly configured "always", or "on" combined with the request
// hinting the client may still be sending.
func ShouldLinger(mode LingeringMode, clientMayStillBeSending bool) bool {
	switch mode {
	case LingeringAlways:
		return true
	case LingeringOn:
		return clientMayStillBeSending
	default:
		return false
	}
}

// LingeringClose half-closes the write side, then drains and discards
// input until EOF, the per-read lingeringTimeout, or the absolute
// lingeringTime budget, whichever comes first — spec.md §4.10.
func (c *Connection) LingeringClose(lingeringTime, lingeringTimeout time.Duration) {
	c.State = StateLingering
	if hc, ok := c.Conn.(interface{ CloseWrite() error }); ok {
		_ = hc.CloseWrite()
	}

	deadline := time.Now().Add(lingeringTime)
	buf := make([]byte, 4096)
	for {
		now := time.Now()
		if now.After(deadline) {
			break
		}
		readDeadline := now.Add(lingeringTimeout)
		if readDeadline.After(deadline) {
			readDeadline = deadline
		}
		_ = c.Conn.SetReadDeadline(readDeadline)
		_, err := c.Conn.Read(buf)
		if err != nil {
			break
		}
	}
	c.Close()
}

// Close marks the connection destroyed and closes the underlying socket.
// If Config.ResetTimedoutConnection is set and Timedout is true, SO_LINGER is
// configured for an abortive RST close to bypass TIME_WAIT, per spec.md
// §6's reset_timedout_connection.
func (c *Connection) Close() {
	if c.Destroyed {
		return
	}
	if c.Timedout && c.Config.ResetTimedoutConnection {
		if tc, ok := c.Conn.(interface{ SetLinger(int) error }); ok {
			_ = tc.SetLinger(0)
		}
	}
	_ = c.Conn.Close()
	c.Destroyed = true
	c.State = StateClosed
}
