// Package vhost implements the virtual server resolver of spec.md §4.5:
// exact-match hash, regex fallback list in declaration order, and a
// designated default, plus the SNI-vs-Host mismatch check run after a TLS
// handshake completes.
package vhost

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
	"sync"

	rendezvous "github.com/dgryski/go-rendezvous"
	"golang.org/x/net/idna"

	"github.com/parrika/httpcore/internal/httperr"
)

// Server is the resolved configuration subtree a request's server-conf and
// location-conf pointers get repointed at on a successful match.
type Server struct {
	Name             string
	Config           any
	RequireClientSNI bool
}

// regexEntry pairs a compiled pattern with its resolved server, preserving
// declaration order for the "first match wins" rule.
type regexEntry struct {
	pattern *regexp.Regexp
	server  *Server
}

const shardCount = 16

// Resolver holds one listening address's named virtual servers. The
// exact-match table is sharded across shardCount maps, each behind its own
// mutex, with shard selection done by rendezvous hashing of the host name —
// this keeps the common case (exact match) from serializing every request
// in a listener behind a single lock, and keeps shard assignment stable as
// servers are added/removed at runtime.
type Resolver struct {
	shards    []*shard
	rv        *rendezvous.Rendezvous
	shardName []string

	mu      sync.RWMutex
	regexes []regexEntry
	def     *Server
}

type shard struct {
	mu    sync.RWMutex
	exact map[string]*Server
}

// NewResolver returns an empty resolver; def is the designated default
// server for the listening address.
func NewResolver(def *Server) *Resolver {
	names := make([]string, shardCount)
	shards := make([]*shard, shardCount)
	for i := range shards {
		names[i] = fmt.Sprintf("shard%d", i)
		shards[i] = &shard{exact: make(map[string]*Server)}
	}
	return &Resolver{
		shards:    shards,
		rv:        rendezvous.New(names, fnvHash),
		shardName: names,
		def:       def,
	}
}

func fnvHash(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

func (r *Resolver) shardFor(host string) *shard {
	name := r.rv.Lookup(host)
	for i, n := range r.shardName {
		if n == name {
			return r.shards[i]
		}
	}
	return r.shards[0]
}

// AddExact registers a server under an exact (or wildcard-prefix/suffix,
// e.g. "*.example.com" or "www.example.*") host name.
func (r *Resolver) AddExact(hostPattern string, s *Server) {
	sh := r.shardFor(normalizeHost(hostPattern))
	sh.mu.Lock()
	sh.exact[normalizeHost(hostPattern)] = s
	sh.mu.Unlock()
}

// AddRegex registers a server matched by regex, appended to the end of the
// declaration-ordered fallback list.
func (r *Resolver) AddRegex(pattern string, s *Server) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return httperr.NewInternalError("vhost", "invalid server_name regex", err)
	}
	r.mu.Lock()
	r.regexes = append(r.regexes, regexEntry{pattern: re, server: s})
	r.mu.Unlock()
	return nil
}

func normalizeHost(h string) string {
	// Host headers may carry a port; strip it before matching, and fold
	// case per RFC 7230 §2.7.3 (host names are case-insensitive).
	if i := strings.LastIndexByte(h, ':'); i >= 0 {
		h = h[:i]
	}
	h = strings.ToLower(h)
	// A server_name configured in Unicode form, or a client presenting an
	// IDNA A-label, must compare equal; ToASCII is a no-op on names that
	// are already ASCII.
	if ascii, err := idna.Lookup.ToASCII(h); err == nil {
		return ascii
	}
	return h
}

// Resolve implements the lookup of spec.md §4.5: exact match, then
// wildcard match, then regex fallback in declaration order, then the
// listening address's default.
func (r *Resolver) Resolve(host string) *Server {
	normalized := normalizeHost(host)

	sh := r.shardFor(normalized)
	sh.mu.RLock()
	if s, ok := sh.exact[normalized]; ok {
		sh.mu.RUnlock()
		return s
	}
	sh.mu.RUnlock()

	if wildcard := r.resolveWildcard(normalized); wildcard != nil {
		return wildcard
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.regexes {
		if e.pattern.MatchString(normalized) {
			return e.server
		}
	}
	return r.def
}

// resolveWildcard handles "*.example.com" and "www.example.*" forms, which
// the exact-match hash alone cannot express without scanning every shard,
// so it is tried as a distinct step between exact and regex.
func (r *Resolver) resolveWildcard(host string) *Server {
	for i := range r.shards {
		sh := r.shards[i]
		sh.mu.RLock()
		for pattern, s := range sh.exact {
			if matchesWildcard(pattern, host) {
				sh.mu.RUnlock()
				return s
			}
		}
		sh.mu.RUnlock()
	}
	return nil
}

func matchesWildcard(pattern, host string) bool {
	switch {
	case strings.HasPrefix(pattern, "*."):
		suffix := pattern[1:] // keep the leading dot
		return strings.HasSuffix(host, suffix) && host != suffix[1:]
	case strings.HasSuffix(pattern, ".*"):
		prefix := pattern[:len(pattern)-1] // keep the trailing dot
		return strings.HasPrefix(host, prefix) && len(host) > len(prefix)
	default:
		return false
	}
}

// CheckSNIHostMatch implements spec.md §4.5's post-handshake rule: "if the
// Host header disagrees with the SNI-selected name and client-cert
// verification is enabled, reject."
func CheckSNIHostMatch(sniServer *Server, hostServer *Server, requireMatch bool) error {
	if !requireMatch || sniServer == nil || hostServer == nil {
		return nil
	}
	if sniServer.Name != hostServer.Name {
		return httperr.NewProtocolError("vhost", "Host header does not match TLS SNI server name", 421)
	}
	return nil
}
