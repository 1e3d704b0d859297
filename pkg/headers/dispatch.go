// Package headers implements the static header dispatch table described in
// spec.md §4.4: a case-insensitive name lookup that routes each parsed
// header line to a plain/unique/multi/special handler, plus the
// post-header-block validation pass (Host requirement, TRACE rejection,
// Content-Length/Transfer-Encoding reconciliation).
package headers

import (
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/parrika/httpcore/internal/httperr"
)

// Kind is the behavior a dispatch table entry runs for a given header name.
type Kind int

const (
	// Plain stores the single value verbatim; a repeat overwrites it.
	Plain Kind = iota
	// Unique behaves like Plain but rejects a second occurrence with 400.
	Unique
	// Multi appends every occurrence to an ordered list.
	Multi
	// Special runs custom per-header logic (Host, Connection, User-Agent).
	Special
)

// SpecialHandler runs the custom logic for a Special entry. It receives the
// already-trimmed header value and the in-progress Fields being built.
type SpecialHandler func(f *Fields, value string) error

// entry is one row of the static dispatch table.
type entry struct {
	kind    Kind
	special SpecialHandler
}

// Fields is the parsed, structured view of a request's header block —
// spec.md's `headers_in`. Plain/Unique fields are single strings; Multi
// fields accumulate in declaration order; anything the table doesn't
// recognize lands in Unrecognized, preserving order and duplicates.
type Fields struct {
	Host          string
	UserAgent     string
	ContentLength string
	ContentType   string
	Connection    string
	Accept        string
	AcceptEncode  string
	Referer       string
	Authorization string
	Expect        string
	IfModSince    string
	Range         string

	Cookie          []string
	XForwardedFor   []string
	CacheControl    []string
	TransferEncoded []string

	Unrecognized []KV

	// derived during AfterHeaders
	KeepAlive       bool
	ConnectionClose bool
	Chunked         bool
	ContentLen      int64
	HasContentLen   bool
	BrowserFamily   string
	ExpectContinue  bool
}

// KV is a preserved-order, unrecognized header.
type KV struct {
	Name  string
	Value string
}

var table = map[string]entry{
	"host":              {kind: Special, special: hostHandler},
	"connection":        {kind: Special, special: connectionHandler},
	"user-agent":        {kind: Special, special: userAgentHandler},
	"content-length":    {kind: Unique},
	"content-type":      {kind: Plain},
	"accept":            {kind: Plain},
	"accept-encoding":   {kind: Plain},
	"referer":           {kind: Plain},
	"authorization":     {kind: Unique},
	"expect":            {kind: Plain},
	"if-modified-since": {kind: Plain},
	"range":             {kind: Plain},
	"cookie":            {kind: Multi},
	"x-forwarded-for":   {kind: Multi},
	"cache-control":     {kind: Multi},
	"transfer-encoding": {kind: Multi},
}

// Dispatch routes one parsed header line into f, per the static table.
// name and value must already be trimmed of surrounding whitespace; name's
// case is folded internally.
func Dispatch(f *Fields, name, value string) error {
	if !httpguts.ValidHeaderFieldName(name) {
		return httperr.NewParseError("headers", "invalid header name: "+name, 400)
	}
	if !httpguts.ValidHeaderFieldValue(value) {
		return httperr.NewParseError("headers", "invalid header value for "+name, 400)
	}

	key := strings.ToLower(name)
	e, ok := table[key]
	if !ok {
		f.Unrecognized = append(f.Unrecognized, KV{Name: name, Value: value})
		return nil
	}

	switch e.kind {
	case Plain:
		setPlain(f, key, value)
	case Unique:
		if existing := getPlain(f, key); existing != "" {
			return httperr.NewParseError("headers", "duplicate "+name+" header", 400)
		}
		setPlain(f, key, value)
	case Multi:
		appendMulti(f, key, value)
	case Special:
		return e.special(f, value)
	}
	return nil
}

func setPlain(f *Fields, key, value string) {
	switch key {
	case "content-length":
		f.ContentLength = value
	case "content-type":
		f.ContentType = value
	case "accept":
		f.Accept = value
	case "accept-encoding":
		f.AcceptEncode = value
	case "referer":
		f.Referer = value
	case "authorization":
		f.Authorization = value
	case "expect":
		f.Expect = value
	case "if-modified-since":
		f.IfModSince = value
	case "range":
		f.Range = value
	}
}

func getPlain(f *Fields, key string) string {
	switch key {
	case "content-length":
		return f.ContentLength
	case "authorization":
		return f.Authorization
	}
	return ""
}

func appendMulti(f *Fields, key, value string) {
	switch key {
	case "cookie":
		f.Cookie = append(f.Cookie, value)
	case "x-forwarded-for":
		f.XForwardedFor = append(f.XForwardedFor, value)
	case "cache-control":
		f.CacheControl = append(f.CacheControl, value)
	case "transfer-encoding":
		f.TransferEncoded = append(f.TransferEncoded, value)
	}
}

// hostHandler validates the host string and records it. Virtual-server
// re-resolution against this value is the caller's responsibility (it needs
// the listening-address context the header layer doesn't have) — see
// pkg/vhost.
func hostHandler(f *Fields, value string) error {
	if f.Host != "" {
		return httperr.NewParseError("headers", "duplicate Host header", 400)
	}
	if value == "" {
		return httperr.NewParseError("headers", "empty Host header", 400)
	}
	if strings.ContainsAny(value, " \t\r\n\x00") {
		return httperr.NewParseError("headers", "invalid character in Host header", 400)
	}
	f.Host = value
	return nil
}

// connectionHandler scans the value for close/keep-alive tokens, per
// spec.md §4.4.
func connectionHandler(f *Fields, value string) error {
	f.Connection = value
	for _, tok := range strings.Split(value, ",") {
		switch strings.ToLower(strings.TrimSpace(tok)) {
		case "close":
			f.ConnectionClose = true
		case "keep-alive":
			f.KeepAlive = true
		}
	}
	return nil
}

// userAgentHandler records coarse browser-family flags used elsewhere for
// compatibility quirks, per spec.md §4.4.
func userAgentHandler(f *Fields, value string) error {
	f.UserAgent = value
	lower := strings.ToLower(value)
	switch {
	case strings.Contains(lower, "msie"), strings.Contains(lower, "trident"):
		f.BrowserFamily = "msie"
	case strings.Contains(lower, "edg/"):
		f.BrowserFamily = "edge"
	case strings.Contains(lower, "chrome/"):
		f.BrowserFamily = "chrome"
	case strings.Contains(lower, "firefox/"):
		f.BrowserFamily = "firefox"
	case strings.Contains(lower, "safari/"):
		f.BrowserFamily = "safari"
	default:
		f.BrowserFamily = ""
	}
	return nil
}
