package conn_test

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/parrika/httpcore/pkg/conn"
)

func pipeConns(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})
	return a, b
}

func TestLooksLikeTLS(t *testing.T) {
	if !conn.LooksLikeTLS(0x16) {
		t.Fatalf("expected 0x16 to look like TLS")
	}
	if !conn.LooksLikeTLS(0x80) {
		t.Fatalf("expected high-bit-set byte to look like SSLv2")
	}
	if conn.LooksLikeTLS('G') {
		t.Fatalf("expected 'G' (plaintext GET) to not look like TLS")
	}
}

func TestReadProxyHeaderTCP4(t *testing.T) {
	client, server := pipeConns(t)
	go func() {
		_, _ = client.Write([]byte("PROXY TCP4 192.168.1.1 192.168.1.2 11111 22222\r\nGET / HTTP/1.1\r\n\r\n"))
	}()

	br := bufio.NewReader(server)
	hdr, err := conn.ReadProxyHeader(br)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hdr.Unknown {
		t.Fatalf("expected a resolved TCP4 header")
	}
	tcpAddr, ok := hdr.SourceAddr.(*net.TCPAddr)
	if !ok {
		t.Fatalf("expected *net.TCPAddr, got %T", hdr.SourceAddr)
	}
	if tcpAddr.IP.String() != "192.168.1.1" || tcpAddr.Port != 11111 {
		t.Fatalf("unexpected source addr: %v", tcpAddr)
	}

	rest, err := br.ReadString('\n')
	if err != nil {
		t.Fatalf("unexpected error reading remainder: %v", err)
	}
	if rest != "GET / HTTP/1.1\r\n" {
		t.Fatalf("unexpected remainder: %q", rest)
	}
}

func TestReadProxyHeaderUnknown(t *testing.T) {
	client, server := pipeConns(t)
	go func() {
		_, _ = client.Write([]byte("PROXY UNKNOWN\r\n"))
	}()

	br := bufio.NewReader(server)
	hdr, err := conn.ReadProxyHeader(br)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !hdr.Unknown {
		t.Fatalf("expected Unknown true")
	}
}

func TestReadProxyHeaderRejectsMissingPrefix(t *testing.T) {
	client, server := pipeConns(t)
	go func() {
		_, _ = client.Write([]byte("GET / HTTP/1.1\r\n"))
	}()

	br := bufio.NewReader(server)
	if _, err := conn.ReadProxyHeader(br); err == nil {
		t.Fatalf("expected error for missing PROXY prefix")
	}
}

func TestShouldLinger(t *testing.T) {
	if conn.ShouldLinger(conn.LingeringOff, true) {
		t.Fatalf("lingering off should never linger")
	}
	if !conn.ShouldLinger(conn.LingeringAlways, false) {
		t.Fatalf("lingering always should always linger")
	}
	if conn.ShouldLinger(conn.LingeringOn, false) {
		t.Fatalf("lingering on without a hint should not linger")
	}
	if !conn.ShouldLinger(conn.LingeringOn, true) {
		t.Fatalf("lingering on with a hint should linger")
	}
}

func TestEnterKeepaliveDetectsPipelinedBytes(t *testing.T) {
	client, server := pipeConns(t)
	go func() {
		_, _ = client.Write([]byte("GET /b HTTP/1.1\r\nHost: x\r\n\r\n"))
	}()
	// give the pipe a moment to deliver bytes into the bufio.Reader
	time.Sleep(20 * time.Millisecond)

	br := bufio.NewReader(server)
	if _, err := br.Peek(1); err != nil {
		t.Fatalf("unexpected error priming reader: %v", err)
	}

	c := conn.New(server, conn.Config{})
	decision := c.EnterKeepalive(br)
	if decision != conn.DecisionPipelined {
		t.Fatalf("expected DecisionPipelined, got %v", decision)
	}
}
