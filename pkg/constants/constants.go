// Package constants defines the default sizes and limits config.Load falls
// back to when a server{} block leaves a directive unset.
package constants

import "time"

// Buffer defaults, applied by pkg/config when a server block doesn't
// override them.
const (
	DefaultClientHeaderBufferSize = 1024
	DefaultLargeHeaderBuffers     = 4
	DefaultLargeHeaderBufferSize  = 8 * 1024
)

// MaxContentLength bounds a parsed Content-Length header value; a request
// declaring more than this is rejected rather than trusted, mirroring
// nginx's client_max_body_size acting as a hard ceiling regardless of what
// the client claims.
const MaxContentLength = 1024 * 1024 * 1024 // 1GB

// Timeout defaults used when a server{} block doesn't set its own.
const (
	DefaultKeepaliveTimeout    = 75 * time.Second
	DefaultClientHeaderTimeout = 60 * time.Second
	DefaultLingeringTime       = 30 * time.Second
	DefaultLingeringTimeout    = 5 * time.Second
)
