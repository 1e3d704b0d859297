package conn

import (
	"bufio"
	"net"
	"strconv"
	"strings"

	"github.com/parrika/httpcore/internal/httperr"
)

// ProxyHeader is the decoded result of a PROXY-protocol v1 line: "PROXY
// TCP4|TCP6|UNKNOWN SRC_IP DST_IP SRC_PORT DST_PORT\r\n", per spec.md §6.
type ProxyHeader struct {
	SourceAddr net.Addr
	DestAddr   net.Addr
	Unknown    bool
}

const maxProxyLineLength = 107 // per the PROXY protocol v1 spec's worst case

// ReadProxyHeader consumes one PROXY-protocol v1 line from r. It must be
// called before any HTTP bytes are read off the same reader, and only when
// the listening address is configured with ProxyProtocol.
func ReadProxyHeader(r *bufio.Reader) (*ProxyHeader, error) {
	peeked, err := r.Peek(6)
	if err != nil {
		return nil, httperr.NewParseError("proxy_protocol", "connection closed before PROXY header", 400)
	}
	if string(peeked) != "PROXY " {
		return nil, httperr.NewParseError("proxy_protocol", "missing PROXY protocol prefix", 400)
	}

	line, err := r.ReadString('\n')
	if err != nil {
		return nil, httperr.NewParseError("proxy_protocol", "truncated PROXY header", 400)
	}
	if len(line) > maxProxyLineLength {
		return nil, httperr.NewParseError("proxy_protocol", "PROXY header too long", 400)
	}
	line = strings.TrimRight(line, "\r\n")

	fields := strings.Fields(line)
	if len(fields) < 2 {
		return nil, httperr.NewParseError("proxy_protocol", "malformed PROXY header", 400)
	}

	switch fields[1] {
	case "UNKNOWN":
		return &ProxyHeader{Unknown: true}, nil
	case "TCP4", "TCP6":
		if len(fields) != 6 {
			return nil, httperr.NewParseError("proxy_protocol", "malformed PROXY TCP header", 400)
		}
		srcIP, dstIP := fields[2], fields[3]
		srcPort, err := strconv.Atoi(fields[4])
		if err != nil {
			return nil, httperr.NewParseError("proxy_protocol", "invalid PROXY source port", 400)
		}
		dstPort, err := strconv.Atoi(fields[5])
		if err != nil {
			return nil, httperr.NewParseError("proxy_protocol", "invalid PROXY destination port", 400)
		}
		ip := net.ParseIP(srcIP)
		if ip == nil {
			return nil, httperr.NewParseError("proxy_protocol", "invalid PROXY source address", 400)
		}
		dip := net.ParseIP(dstIP)
		if dip == nil {
			return nil, httperr.NewParseError("proxy_protocol", "invalid PROXY destination address", 400)
		}
		return &ProxyHeader{
			SourceAddr: &net.TCPAddr{IP: ip, Port: srcPort},
			DestAddr:   &net.TCPAddr{IP: dip, Port: dstPort},
		}, nil
	default:
		return nil, httperr.NewParseError("proxy_protocol", "unknown PROXY protocol family", 400)
	}
}

// ApplyProxyHeader overrides c.PeerAddr with the PROXY-protocol source
// address, when present and not UNKNOWN.
func (c *Connection) ApplyProxyHeader(h *ProxyHeader) {
	if h == nil || h.Unknown || h.SourceAddr == nil {
		return
	}
	c.PeerAddr = h.SourceAddr
}
