// Package config loads the server{}/location{} configuration tree
// recognized by the request/connection engine, per spec.md §6's
// "Configuration (recognized options, with effect)" table. Following the
// teacher's posture towards its own runtime config — a plain decoded
// struct, validated once at load time, then treated as immutable — this
// tree is read-only after Load returns, matching spec.md §5's "The
// configuration tree is immutable after worker startup and safely shared
// read-only across all requests."
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/parrika/httpcore/pkg/constants"
)

// Duration unmarshals YAML duration strings ("30s", "2m") into
// time.Duration, since encoding/yaml has no native duration type.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// LingeringMode mirrors conn.LingeringMode's three states in YAML-friendly
// form ("off" | "on" | "always").
type LingeringMode string

const (
	LingeringOff    LingeringMode = "off"
	LingeringOn     LingeringMode = "on"
	LingeringAlways LingeringMode = "always"
)

// ServerNameKind distinguishes the three server_name matching forms
// spec.md §4.5 resolves in order: exact/wildcard (handled together by the
// hash), then regex.
type ServerNameKind string

const (
	ServerNameExact    ServerNameKind = "exact"
	ServerNameWildcard ServerNameKind = "wildcard"
	ServerNameRegex    ServerNameKind = "regex"
)

// ServerName is one server_name entry.
type ServerName struct {
	Kind  ServerNameKind `yaml:"kind"`
	Value string         `yaml:"value"`
}

// Location is a location{} block: a URI-prefix match plus the subset of
// directives that can be overridden per-location.
type Location struct {
	Path          string   `yaml:"path"`
	ContentModule string   `yaml:"content_module"`
	MergeSlashes  *bool    `yaml:"merge_slashes,omitempty"`
}

// Server is one server{} block.
type Server struct {
	Listen []string     `yaml:"listen"`
	Names  []ServerName `yaml:"server_name"`
	Default bool        `yaml:"default_server"`

	TLS                bool   `yaml:"tls"`
	TLSCertFile        string `yaml:"tls_cert_file"`
	TLSKeyFile         string `yaml:"tls_key_file"`
	RequireClientSNI   bool   `yaml:"ssl_verify_client"`

	ClientHeaderBufferSize int      `yaml:"client_header_buffer_size"`
	LargeHeaderBuffers     int      `yaml:"large_client_header_buffers_count"`
	LargeHeaderBufferSize  int      `yaml:"large_client_header_buffers_size"`
	ClientHeaderTimeout    Duration `yaml:"client_header_timeout"`
	KeepaliveTimeout       Duration `yaml:"keepalive_timeout"`
	SendTimeout            Duration `yaml:"send_timeout"`
	PostAcceptTimeout      Duration `yaml:"post_accept_timeout"`

	LingeringClose   LingeringMode `yaml:"lingering_close"`
	LingeringTime    Duration      `yaml:"lingering_time"`
	LingeringTimeout Duration      `yaml:"lingering_timeout"`

	ResetTimedoutConnection bool `yaml:"reset_timedout_connection"`
	ProxyProtocol           bool `yaml:"proxy_protocol"`

	MergeSlashes          bool `yaml:"merge_slashes"`
	UnderscoresInHeaders  bool `yaml:"underscores_in_headers"`
	IgnoreInvalidHeaders  bool `yaml:"ignore_invalid_headers"`

	TCPNoDelay bool `yaml:"tcp_nodelay"`
	TCPNoPush  bool `yaml:"tcp_nopush"`

	Locations []Location `yaml:"locations"`
}

// Tree is the fully decoded, validated configuration for one worker.
type Tree struct {
	Servers []Server `yaml:"servers"`
}

// Load reads and validates a YAML configuration file.
func Load(path string) (*Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var t Tree
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *Tree) validate() error {
	if len(t.Servers) == 0 {
		return fmt.Errorf("config: at least one server{} block is required")
	}
	for i := range t.Servers {
		s := &t.Servers[i]
		if len(s.Listen) == 0 {
			return fmt.Errorf("config: server[%d] has no listen address", i)
		}
		if s.ClientHeaderBufferSize <= 0 {
			s.ClientHeaderBufferSize = constants.DefaultClientHeaderBufferSize
		}
		if s.LargeHeaderBuffers <= 0 {
			s.LargeHeaderBuffers = constants.DefaultLargeHeaderBuffers
		}
		if s.LargeHeaderBufferSize <= 0 {
			s.LargeHeaderBufferSize = constants.DefaultLargeHeaderBufferSize
		}
		if s.KeepaliveTimeout <= 0 {
			s.KeepaliveTimeout = Duration(constants.DefaultKeepaliveTimeout)
		}
		if s.ClientHeaderTimeout <= 0 {
			s.ClientHeaderTimeout = Duration(constants.DefaultClientHeaderTimeout)
		}
		if s.LingeringTime <= 0 {
			s.LingeringTime = Duration(constants.DefaultLingeringTime)
		}
		if s.LingeringTimeout <= 0 {
			s.LingeringTimeout = Duration(constants.DefaultLingeringTimeout)
		}
		if s.TLS && (s.TLSCertFile == "" || s.TLSKeyFile == "") {
			return fmt.Errorf("config: server[%d] enables tls but is missing tls_cert_file/tls_key_file", i)
		}
	}
	return nil
}

// DefaultServer returns the listen address's designated default server, if
// one is marked default_server, else the first server bound to it.
func DefaultServer(servers []Server, listen string) *Server {
	var first *Server
	for i := range servers {
		for _, l := range servers[i].Listen {
			if l != listen {
				continue
			}
			if first == nil {
				first = &servers[i]
			}
			if servers[i].Default {
				return &servers[i]
			}
		}
	}
	return first
}
