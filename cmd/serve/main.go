// Command serve wires the request/connection lifecycle engine into a
// runnable listener: load configuration, build a virtual-server resolver
// per listen address, and drive accepted connections through bootstrap,
// parse, a minimal default phase pipeline, and finalize.
package main

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/parrika/httpcore/internal/corelog"
	"github.com/parrika/httpcore/internal/httperr"
	"github.com/parrika/httpcore/pkg/buffer"
	"github.com/parrika/httpcore/pkg/config"
	"github.com/parrika/httpcore/pkg/conn"
	"github.com/parrika/httpcore/pkg/headers"
	"github.com/parrika/httpcore/pkg/metrics"
	"github.com/parrika/httpcore/pkg/parser"
	"github.com/parrika/httpcore/pkg/phase"
	"github.com/parrika/httpcore/pkg/request"
	"github.com/parrika/httpcore/pkg/subrequest"
	"github.com/parrika/httpcore/pkg/timing"
	"github.com/parrika/httpcore/pkg/tlsconfig"
	"github.com/parrika/httpcore/pkg/vhost"
	"github.com/parrika/httpcore/pkg/writer"
)

func main() {
	configPath := flag.String("config", "httpcore.yaml", "path to the server configuration file")
	metricsAddr := flag.String("metrics-addr", "", "address to serve Prometheus /metrics on (empty disables)")
	flag.Parse()

	logger, closer, err := corelog.New(corelog.Config{Level: "info", Name: "httpcore"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "httpcore: logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	tree, err := config.Load(*configPath)
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, reg, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var listeners []*listenerSet
	for _, srv := range tree.Servers {
		for _, addr := range srv.Listen {
			ls, err := buildListenerSet(addr, tree.Servers)
			if err != nil {
				logger.Error("failed to build listener", "addr", addr, "error", err)
				os.Exit(1)
			}
			listeners = append(listeners, ls)
		}
	}

	for _, ls := range listeners {
		go ls.serve(ctx, collector, logger)
	}

	<-ctx.Done()
	logger.Info("shutting down")
}

func serveMetrics(addr string, reg *prometheus.Registry, logger hclog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server stopped", "error", err)
	}
}

// listenerSet binds one socket to its virtual-server resolver, TLS
// configuration (if any server bound to this address enables TLS), and the
// per-connection large-header buffer pool shape its servers agree on.
type listenerSet struct {
	addr     string
	resolver *vhost.Resolver
	tlsCfg   *tls.Config
	cfg      conn.Config
	poolMax  int
	poolSize int
}

func buildListenerSet(addr string, servers []config.Server) (*listenerSet, error) {
	def := config.DefaultServer(servers, addr)
	if def == nil {
		return nil, fmt.Errorf("no server block bound to %s", addr)
	}

	resolver := vhost.NewResolver(&vhost.Server{Name: "default", Config: def})
	certsByName := map[string]*tls.Certificate{}
	useTLS := false

	for i := range servers {
		s := &servers[i]
		bound := false
		for _, l := range s.Listen {
			if l == addr {
				bound = true
				break
			}
		}
		if !bound {
			continue
		}
		vs := &vhost.Server{Name: addr, Config: s, RequireClientSNI: s.RequireClientSNI}
		for _, name := range s.Names {
			switch name.Kind {
			case config.ServerNameRegex:
				if err := resolver.AddRegex(name.Value, vs); err != nil {
					return nil, err
				}
			default:
				resolver.AddExact(name.Value, vs)
			}
		}
		if s.TLS {
			useTLS = true
			cert, err := tls.LoadX509KeyPair(s.TLSCertFile, s.TLSKeyFile)
			if err != nil {
				return nil, fmt.Errorf("loading cert pair for %s: %w", addr, err)
			}
			for _, name := range s.Names {
				certsByName[name.Value] = &cert
			}
		}
	}

	var tlsCfg *tls.Config
	if useTLS {
		tlsCfg = tlsconfig.BuildServerConfig(tlsconfig.ProfileSecure, func(serverName string) (*tls.Certificate, error) {
			if cert, ok := certsByName[serverName]; ok {
				return cert, nil
			}
			for _, cert := range certsByName {
				return cert, nil // only one cert configured for this listener
			}
			return nil, fmt.Errorf("no certificate configured for %s", serverName)
		})
	}

	return &listenerSet{
		addr:     addr,
		resolver: resolver,
		tlsCfg:   tlsCfg,
		poolMax:  def.LargeHeaderBuffers,
		poolSize: def.LargeHeaderBufferSize,
		cfg: conn.Config{
			ClientHeaderBufferSize:  def.ClientHeaderBufferSize,
			ClientHeaderTimeout:     time.Duration(def.ClientHeaderTimeout),
			KeepaliveTimeout:        time.Duration(def.KeepaliveTimeout),
			SendTimeout:             time.Duration(def.SendTimeout),
			PostAcceptTimeout:       time.Duration(def.PostAcceptTimeout),
			LingeringClose:          lingeringModeOf(def.LingeringClose),
			LingeringTime:           time.Duration(def.LingeringTime),
			LingeringTimeout:        time.Duration(def.LingeringTimeout),
			ResetTimedoutConnection: def.ResetTimedoutConnection,
			ProxyProtocol:           def.ProxyProtocol,
			TLS:                     useTLS,
			TCPNoDelay:              def.TCPNoDelay,
			TCPNoPush:               def.TCPNoPush,
		},
	}, nil
}

func lingeringModeOf(m config.LingeringMode) conn.LingeringMode {
	switch m {
	case config.LingeringAlways:
		return conn.LingeringAlways
	case config.LingeringOn:
		return conn.LingeringOn
	default:
		return conn.LingeringOff
	}
}

func (ls *listenerSet) serve(ctx context.Context, collector *metrics.Collector, logger hclog.Logger) {
	l, err := net.Listen("tcp", ls.addr)
	if err != nil {
		logger.Error("listen failed", "addr", ls.addr, "error", err)
		return
	}
	go func() {
		<-ctx.Done()
		_ = l.Close()
	}()

	logger.Info("listening", "addr", ls.addr, "tls", ls.tlsCfg != nil)
	for {
		raw, err := l.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				logger.Warn("accept failed", "error", err)
				continue
			}
		}
		collector.ConnectionsAccepted.Inc()
		go ls.handleConnection(raw, collector, logger)
	}
}

// connFate is what DecideConnectionFate chose for the connection that just
// finalized its current root request.
type connFate int

const (
	fateKeepalive connFate = iota
	fateLinger
	fateClose
)

// handleConnection drives one accepted socket through bootstrap, the
// parse/header pipeline, a placeholder content response, and keepalive,
// every per-request step flowing through request.FinalizeRequest/
// TerminateRequest/FinalizeConnection via engineHooks rather than an inline
// parallel decision tree. A real deployment replaces the canned content
// response below with an external phase pipeline (pkg/phase.Pipeline).
func (ls *listenerSet) handleConnection(raw net.Conn, collector *metrics.Collector, logger hclog.Logger) {
	c := conn.New(raw, ls.cfg)

	// closeRecorded tracks whether the code path that's about to return has
	// already incremented ConnectionsClosed with its own reason, so the
	// safety-net defer below doesn't double-count it under "client_close".
	closeRecorded := false
	defer func() {
		if !c.Destroyed {
			if !closeRecorded {
				collector.ConnectionsClosed.WithLabelValues("client_close").Inc()
			}
			c.Close()
		}
	}()

	ssl, wrapped, _, err := conn.Bootstrap(c)
	if err != nil {
		logger.Debug("bootstrap failed", "peer", c.PeerAddr, "error", err)
		collector.ConnectionsClosed.WithLabelValues("error").Inc()
		closeRecorded = true
		return
	}
	c.Conn = wrapped
	c.SSL = ssl

	if ssl {
		tlsConn := tls.Server(wrapped, ls.tlsCfg)
		if err := tlsConn.HandshakeContext(context.Background()); err != nil {
			logger.Debug("tls handshake failed", "peer", c.PeerAddr, "error", err)
			collector.ConnectionsClosed.WithLabelValues("error").Inc()
			closeRecorded = true
			return
		}
		c.Conn = tlsConn
	}

	pool := buffer.NewPool(ls.poolMax, ls.poolSize)
	br := bufio.NewReaderSize(c.Conn, ls.cfg.ClientHeaderBufferSize)

	for gen := uint32(1); ; gen++ {
		if ls.cfg.ClientHeaderTimeout > 0 {
			_ = c.Conn.SetReadDeadline(time.Now().Add(ls.cfg.ClientHeaderTimeout))
		}

		timer := timing.NewTimer()
		timer.StartParse()
		req, fields, rerr := readRequest(br, pool, request.Ref{Generation: gen, Index: 0}, collector, ls.cfg.ClientHeaderTimeout)
		timer.EndParse()
		collector.HeaderParseDuration.Observe(timer.Metrics().HeaderParse.Seconds())

		if rerr != nil {
			writeFailureResponse(c.Conn, logger, rerr)
			collector.ConnectionsClosed.WithLabelValues("error").Inc()
			closeRecorded = true
			return
		}
		_ = c.Conn.SetReadDeadline(time.Time{})
		c.CurrentRequest = req
		reqLogger := logger.With("trace_id", req.TraceID)

		if fields.ExpectContinue && (fields.HasContentLen || fields.Chunked) {
			if _, err := c.Conn.Write([]byte("HTTP/1.1 100 Continue\r\n\r\n")); err != nil {
				return
			}
		}

		if fields.HasContentLen || fields.Chunked {
			if err := conn.DiscardBody(br, fields.ContentLen, fields.Chunked); err != nil {
				reqLogger.Debug("discard body failed", "error", err)
				collector.ConnectionsClosed.WithLabelValues("error").Inc()
				closeRecorded = true
				return
			}
		}

		vs := ls.resolver.Resolve(fields.Host)
		tr := subrequest.NewTree(req)

		h := &engineHooks{
			conn:      c,
			tree:      tr,
			ls:        ls,
			fields:    fields,
			collector: collector,
			logger:    reqLogger,
			timer:     timer,
			filter:    &connWriteFilter{conn: c.Conn},
		}
		h.driver = writer.NewDriver(h.filter, ls.cfg.SendTimeout, h.timer)
		h.pipeline = phase.Func(func(r *request.Request) {
			body := fmt.Sprintf("resolved server: %s\n", vs.Name)
			h.pendingStatus = 200
			h.pendingBody = []byte(body)
			r.HasBufferedOutput = true
			request.FinalizeRequest(r, request.RCOK, 200, h)
		})

		h.pipeline.RunPhases(req)
		collector.RequestsTotal.WithLabelValues(metrics.StatusClass(h.pendingStatus)).Inc()

		if h.writeErr != nil {
			closeRecorded = true // DecideConnectionFate or flushNow already recorded a reason
			return
		}

		switch h.fate {
		case fateClose:
			closeRecorded = true
			return
		case fateLinger:
			closeRecorded = true
			c.LingeringClose(ls.cfg.LingeringTime, ls.cfg.LingeringTimeout)
			return
		}

		if c.EnterKeepalive(br) == conn.DecisionIdle {
			if ls.cfg.KeepaliveTimeout > 0 {
				_ = c.Conn.SetReadDeadline(time.Now().Add(ls.cfg.KeepaliveTimeout))
			}
			gotData, peerClosed, err := c.KeepaliveRead(br)
			if err != nil {
				collector.ConnectionsClosed.WithLabelValues("error").Inc()
				closeRecorded = true
				return
			}
			if !gotData {
				if peerClosed {
					collector.ConnectionsClosed.WithLabelValues("client_close").Inc()
				} else {
					collector.ConnectionsClosed.WithLabelValues("keepalive_timeout").Inc()
				}
				closeRecorded = true
				return
			}
		}
	}
}

// connWriteFilter adapts a net.Conn into a writer.OutputFilter: Write blocks
// until the chain is fully sent or the socket errors, so a filter cycle
// never leaves bytes genuinely buffered.
type connWriteFilter struct {
	conn net.Conn
}

func (f *connWriteFilter) Flush(chain []byte) (stillBuffered bool, err error) {
	if len(chain) == 0 {
		return false, nil
	}
	_, err = f.conn.Write(chain)
	return false, err
}

// engineHooks implements request.Hooks for one connection's currently
// in-flight request, per spec.md §9's "event-callback tangle -> injected
// interface" translation. A fresh engineHooks is built per accepted request
// (not reused across keepalive iterations), since each carries its own
// subrequest tree, write driver, and pending-response stash.
type engineHooks struct {
	conn      *conn.Connection
	tree      *subrequest.Tree
	ls        *listenerSet
	fields    *headers.Fields
	collector *metrics.Collector
	logger    hclog.Logger
	timer     *timing.Timer
	filter    *connWriteFilter
	driver    *writer.Driver
	pipeline  phase.Pipeline

	pendingStatus int
	pendingBody   []byte

	writeErr error
	fate     connFate
}

// ResetContentHandler re-enters the phase pipeline for a DECLINED result.
// The minimal default pipeline here never declines, but a future phase
// implementation can.
func (h *engineHooks) ResetContentHandler(r *request.Request) {
	if h.pipeline != nil {
		h.pipeline.RunPhases(r)
	}
}

// GenerateSpecialResponse builds the canned response for a 3xx/201/204
// status and writes it directly, since there is no buffered body to drain
// through the write driver for a canned response.
func (h *engineHooks) GenerateSpecialResponse(r *request.Request, status int) request.RC {
	body := []byte(fmt.Sprintf("%d %s\n", status, http.StatusText(status)))
	if err := writeStatusLine(h.conn.Conn, status, h.fields.ConnectionClose, body); err != nil {
		h.logger.Debug("special response write failed", "status", status, "error", err)
		h.writeErr = err
		h.fate = fateClose
	}
	return request.RCDone
}

// SwitchToWriter arms the write handler for r's buffered output: if r holds
// the baton it flushes immediately through the write driver, otherwise the
// chain is appended to r's own postponed list to wait for the baton.
func (h *engineHooks) SwitchToWriter(r *request.Request) {
	if !h.tree.Emit(r.Ref) {
		_ = h.tree.AppendData(r.Ref, h.pendingBody)
		h.pendingBody = nil
		return
	}
	h.flushNow(r)
}

func (h *engineHooks) flushNow(r *request.Request) {
	body := h.pendingBody
	h.pendingBody = nil

	if err := writeHeadBlock(h.conn.Conn, h.pendingStatus, len(body), h.fields.ConnectionClose); err != nil {
		h.logger.Debug("response head write failed", "error", err)
		h.writeErr = err
		h.fate = fateClose
		h.collector.ConnectionsClosed.WithLabelValues("error").Inc()
		request.TerminateRequest(r, request.RCError, h)
		return
	}

	h.timer.StartWrite()
	result, err := h.driver.Wake(time.Now(), body)
	h.timer.EndWrite()
	h.collector.WriteDelayedSeconds.Observe(h.timer.Metrics().WriteDelayed.Seconds())

	switch result {
	case writer.WakeComplete:
		r.HasBufferedOutput = false
		request.FinalizeRequest(r, request.RCOK, 0, h)
	case writer.WakeTimedOut:
		h.logger.Debug("write driver timed out", "error", err)
		h.writeErr = err
		h.fate = fateClose
		h.collector.ConnectionsClosed.WithLabelValues("error").Inc()
		request.TerminateRequest(r, request.RCError, h)
	default: // WakeStillBuffered: connWriteFilter never reports this, but
		// honor the contract defensively rather than assume.
		h.writeErr = httperr.NewTransportError("writer", errors.New("write driver left data buffered"))
		h.logger.Debug("write driver left data buffered unexpectedly")
		h.fate = fateClose
		h.collector.ConnectionsClosed.WithLabelValues("error").Inc()
		request.TerminateRequest(r, request.RCError, h)
	}
}

// PassBaton hands the baton from a finishing subrequest to its parent's
// next postponed entry and drains the posted queue, waking whichever
// request the baton landed on. No phase handler in this build spawns
// subrequests, so production traffic never reaches this method; it is
// exercised by pkg/subrequest and pkg/request's own tests.
func (h *engineHooks) PassBaton(r *request.Request) {
	h.tree.Complete(r.Ref)
	h.tree.DrainPosted(func(ref request.Ref) {
		woken, ok := h.tree.Resolve(ref)
		if !ok || woken.Done() || !woken.HasBufferedOutput {
			return
		}
		request.FinalizeRequest(woken, request.RCOK, h.pendingStatus, h)
	})
}

// InstallDrainFinalizer is the no-op write handler a finished,
// non-baton-owning subrequest waits under until PassBaton schedules it.
func (h *engineHooks) InstallDrainFinalizer(r *request.Request) {}

// DecideConnectionFate runs finalize_connection's keepalive/linger/close
// choice and records the request-duration and connection-closed metrics.
func (h *engineHooks) DecideConnectionFate(r *request.Request) {
	h.collector.RequestDuration.Observe(r.Age().Seconds())

	if h.writeErr != nil {
		h.collector.ConnectionsClosed.WithLabelValues("error").Inc()
		h.fate = fateClose
		return
	}

	mayStillBeSending := h.fields.HasContentLen || h.fields.Chunked
	wantsClose := h.fields.ConnectionClose || h.ls.cfg.KeepaliveTimeout <= 0

	if wantsClose {
		if conn.ShouldLinger(h.ls.cfg.LingeringClose, mayStillBeSending) {
			h.collector.ConnectionsClosed.WithLabelValues("linger").Inc()
			h.fate = fateLinger
			return
		}
		h.collector.ConnectionsClosed.WithLabelValues("client_close").Inc()
		h.fate = fateClose
		return
	}

	h.fate = fateKeepalive
}

// RunCleanupChain releases this request's subrequest-tree slot once its own
// cleanup handlers have run.
func (h *engineHooks) RunCleanupChain(r *request.Request) {
	h.tree.Free(r.Ref)
}

// DeferToTerminalPosted re-enqueues a request still blocked by in-flight
// cleanup I/O. This build has no asynchronous cleanup work (body discard
// and tree teardown are both synchronous), so r.Counts()'s blocked count
// never exceeds zero in production and this path is exercised only by
// pkg/request's own tests.
func (h *engineHooks) DeferToTerminalPosted(r *request.Request) {
	h.tree.DrainPosted(func(request.Ref) {})
}

// Destroy releases r's subrequest-tree slot once no reference remains.
func (h *engineHooks) Destroy(r *request.Request) {
	h.tree.Free(r.Ref)
}

// ReArmDiscardDrain re-arms body draining for a request another actor still
// holds a reference to. Bodies are discarded synchronously before dispatch
// in this build, so FinalizeConnection's count>1 branch — and this method —
// are reached only when a phase handler spawns a subrequest that outlives
// the root's own finalize call, a path covered by pkg/request's tests.
func (h *engineHooks) ReArmDiscardDrain(r *request.Request) {}

// writeStatusLine writes a canned, bodied response for an arbitrary status,
// using net/http's table of reason phrases instead of a hardcoded one.
func writeStatusLine(w io.Writer, status int, connClose bool, body []byte) error {
	if err := writeHeadBlock(w, status, len(body), connClose); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

func writeHeadBlock(w io.Writer, status, contentLength int, connClose bool) error {
	reason := http.StatusText(status)
	if reason == "" {
		reason = "Unknown"
	}
	disposition := "keep-alive"
	if connClose {
		disposition = "close"
	}
	head := fmt.Sprintf("HTTP/1.1 %d %s\r\nContent-Length: %d\r\nConnection: %s\r\n\r\n",
		status, reason, contentLength, disposition)
	_, err := w.Write([]byte(head))
	return err
}

// writeFailureResponse routes a parse/validation/timeout failure from
// readRequest to a real status-coded response before the connection closes,
// per spec.md §6/§7: ParseError, ProtocolError, and TimeoutError all carry a
// concrete status and must be finalized with a response, not a bare close.
// A PeerClosed or bare transport error carries no status (0) and closes
// silently, since the client is already gone.
func writeFailureResponse(w io.Writer, logger hclog.Logger, err error) {
	status := httperr.StatusOf(err)
	if status == 0 {
		logger.Debug("connection closed without response", "error", err)
		return
	}
	logger.Debug("request rejected", "status", status, "error", err)
	body := []byte(fmt.Sprintf("%d %s\n", status, http.StatusText(status)))
	if werr := writeStatusLine(w, status, true, body); werr != nil {
		logger.Debug("failed to write failure response", "error", werr)
	}
}

var errBufferFull = errors.New("large header buffer full")

// readRequest parses one request line and header block off br into a fresh
// large-header buffer drawn from pool, per spec.md §4.2/§4.3: the buffer is
// returned to the pool once the header block has been fully consumed into
// the structured Fields, since nothing downstream still holds tokens into
// it. Every failure is returned as a structured *httperr.Error carrying the
// status spec.md §6 mandates (400/408/414/431/405/501), rather than
// swallowed.
func readRequest(br *bufio.Reader, pool *buffer.Pool, ref request.Ref, collector *metrics.Collector, clientHeaderTimeout time.Duration) (*request.Request, *headers.Fields, error) {
	statsBefore := pool.Stats()
	large, err := pool.Get()
	if err != nil {
		collector.LargeBufferExhausted.Inc()
		rerr := httperr.NewInternalError("buffer_pool", "large header buffer pool exhausted", nil)
		rerr.Status = http.StatusServiceUnavailable
		return nil, nil, rerr
	}
	if stats := pool.Stats(); stats.Reused > statsBefore.Reused {
		collector.LargeBufferReused.Inc()
	}
	collector.LargeBufferAllocated.Set(float64(pool.Stats().Outstanding))
	defer func() {
		pool.Put(large)
		collector.LargeBufferAllocated.Set(float64(pool.Stats().Outstanding))
	}()

	rl := parser.NewRequestLine()
	for !rl.Done() {
		if err := fillOnce(br, large, clientHeaderTimeout); err != nil {
			if errors.Is(err, errBufferFull) {
				return nil, nil, httperr.NewParseError("request_line", "request-line too long", http.StatusRequestURITooLong)
			}
			return nil, nil, err
		}
		res, perr := rl.Feed(large.Bytes(), 0)
		if perr != nil {
			return nil, nil, perr
		}
		if res == parser.OK {
			break
		}
	}

	headerStart := rl.Pos()
	fields := &headers.Fields{}
	hl := parser.NewHeaderLine()
	hl.AllowUnderscore = true
	for {
		headerBuf := large.Bytes()[headerStart:]
		res, perr := hl.Feed(headerBuf, 0)
		if perr != nil {
			return nil, nil, perr
		}
		if res == parser.Again {
			if err := fillOnce(br, large, clientHeaderTimeout); err != nil {
				if errors.Is(err, errBufferFull) {
					return nil, nil, httperr.NewParseError("headers", "header block too large", http.StatusRequestHeaderFieldsTooLarge)
				}
				return nil, nil, err
			}
			continue
		}
		if res == parser.HeadersDone {
			break
		}
		name := string(hl.Name.Slice(headerBuf))
		value := string(hl.Value.Slice(headerBuf))
		if err := headers.Dispatch(fields, name, value); err != nil {
			return nil, nil, err
		}
		hl.Reset()
	}

	method := string(rl.Method.Slice(large.Bytes()))
	version := string(rl.Version.Slice(large.Bytes()))
	minor := 0
	if version == "HTTP/1.1" {
		minor = 1
	}
	if err := headers.AfterHeaders(fields, method, minor); err != nil {
		return nil, nil, err
	}

	normalized, err := parser.Normalize(rl.URI.Slice(large.Bytes()), parser.NormalizeOptions{MergeSlashes: true})
	if err != nil {
		return nil, nil, err
	}

	r := request.New(ref)
	r.Method = method
	r.URIPath = normalized.Path
	r.Query = normalized.Query
	r.Version = version
	r.Headers = *fields
	return r, fields, nil
}

// fillOnce reads up to one chunk of socket bytes into large's remaining
// room. It returns errBufferFull when the buffer has no room left (the
// request's headers exceed this pool's fixed buffer size), a structured
// timeout/peer-closed/transport error when the read itself failed, or nil
// once at least one byte has been appended.
func fillOnce(br *bufio.Reader, large *buffer.Large, timeout time.Duration) error {
	room := large.Cap() - large.Len()
	if room <= 0 {
		return errBufferFull
	}
	if room > 4096 {
		room = 4096
	}
	tmp := make([]byte, room)
	n, err := br.Read(tmp)
	if n > 0 {
		large.Append(tmp[:n])
	}
	if err != nil {
		return classifyReadErr("read_header", err, timeout)
	}
	if n == 0 {
		return httperr.NewPeerClosedError("read_header")
	}
	return nil
}

// classifyReadErr maps a raw read error to the structured error type
// spec.md §7 expects: a deadline expiring mid-header is a TimeoutError
// (408), the peer's FIN is a PeerClosedError (no response), and anything
// else is a transport error (no response, logged only).
func classifyReadErr(op string, err error, timeout time.Duration) error {
	if err == io.EOF {
		return httperr.NewPeerClosedError(op)
	}
	if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
		return httperr.NewTimeoutError(op, timeout, http.StatusRequestTimeout)
	}
	return httperr.NewTransportError(op, err)
}
