// Package conn models the per-connection state machine of spec.md §4.1,
// §4.9, §4.10: TLS/PROXY-protocol bootstrap, keepalive recycling,
// pipelined follow-up requests, and lingering close.
//
// spec.md §9 calls out the source's "global current request via connection
// callback" as something to model explicitly: here Connection carries a
// tagged-union State instead of a reassignable function pointer, with every
// transition an explicit method on Connection.
package conn

import (
	"net"
	"time"

	"github.com/parrika/httpcore/pkg/request"
)

// State is the tag of Connection's {Idle, Handshaking, Reading, Writing,
// Keepalive, Lingering} union.
type State int

const (
	StateIdle State = iota
	StateHandshaking
	StateReading
	StateWriting
	StateKeepalive
	StateLingering
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateHandshaking:
		return "handshaking"
	case StateReading:
		return "reading"
	case StateWriting:
		return "writing"
	case StateKeepalive:
		return "keepalive"
	case StateLingering:
		return "lingering"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Config carries the subset of spec.md §6's recognized server-level
// options that the connection engine itself consumes (as opposed to those
// consumed only by the parser or header layer).
type Config struct {
	ClientHeaderBufferSize int
	ClientHeaderTimeout    time.Duration
	KeepaliveTimeout       time.Duration
	SendTimeout            time.Duration
	PostAcceptTimeout      time.Duration

	LingeringClose    LingeringMode
	LingeringTime     time.Duration
	LingeringTimeout  time.Duration

	ResetTimedoutConnection bool
	ProxyProtocol           bool
	TLS                     bool

	TCPNoDelay bool
	TCPNoPush  bool
}

// LingeringMode mirrors nginx's three-way lingering_close directive.
type LingeringMode int

const (
	LingeringOff LingeringMode = iota
	LingeringOn
	LingeringAlways
)

// Connection is one accepted socket's lifecycle state.
type Connection struct {
	Conn   net.Conn
	Config Config

	State State

	// SSL/Reusable/Destroyed/Timedout/Error mirror spec.md §3's flag set
	// on C, kept as booleans rather than a bitmask for readability.
	SSL       bool
	Reusable  bool
	Destroyed bool
	Timedout  bool
	Error     bool

	// PeerAddr is overridden by a successfully parsed PROXY-protocol
	// header; otherwise it is Conn.RemoteAddr().
	PeerAddr net.Addr

	// CurrentRequest is nil while Idle/Handshaking/Keepalive/Lingering.
	CurrentRequest *request.Request

	// RequestsServed counts completed requests on this connection, for
	// access logging and keepalive_requests-style limits.
	RequestsServed int

	acceptedAt time.Time
}

// New wraps an accepted socket in Idle state.
func New(c net.Conn, cfg Config) *Connection {
	return &Connection{
		Conn:       c,
		Config:     cfg,
		State:      StateIdle,
		PeerAddr:   c.RemoteAddr(),
		acceptedAt: time.Now(),
	}
}

// Idle reports whether the connection has no in-flight request.
func (c *Connection) Idle() bool {
	switch c.State {
	case StateIdle, StateKeepalive, StateLingering, StateClosed:
		return true
	default:
		return false
	}
}
