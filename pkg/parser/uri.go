package parser

import (
	"strings"

	"github.com/parrika/httpcore/internal/httperr"
)

// URI is the post-processed form of a raw request-line URI token, per
// spec.md §4.2 "URI post-processing": escape-decoded, slash-collapsed,
// dot-segment-resolved path; query string and file extension split out
// separately.
type URI struct {
	Path      string
	Query     string
	Extension string
	// Raw is the untouched bytes as they appeared on the wire, kept for
	// access logging.
	Raw string
}

// NormalizeOptions controls the parse-relaxation knobs spec.md §6 names.
type NormalizeOptions struct {
	MergeSlashes bool
}

// Normalize decodes %XX escapes, optionally merges repeated slashes,
// resolves "." and ".." segments without crossing the root, and splits off
// the query string and file extension. It is idempotent: normalizing an
// already-normalized URI returns it unchanged (spec.md §8 round-trip law).
func Normalize(raw []byte, opts NormalizeOptions) (URI, error) {
	rawStr := string(raw)

	path := rawStr
	query := ""
	if i := strings.IndexByte(rawStr, '?'); i >= 0 {
		path = rawStr[:i]
		query = rawStr[i+1:]
	}

	decoded, err := decodePercentEscapes(path)
	if err != nil {
		return URI{}, err
	}

	if opts.MergeSlashes {
		decoded = mergeSlashes(decoded)
	}

	resolved, err := resolveDotSegments(decoded, !opts.MergeSlashes)
	if err != nil {
		return URI{}, err
	}

	ext := ""
	if slash := strings.LastIndexByte(resolved, '/'); slash >= 0 {
		if dot := strings.LastIndexByte(resolved[slash+1:], '.'); dot >= 0 {
			ext = resolved[slash+1+dot+1:]
		}
	} else if dot := strings.LastIndexByte(resolved, '.'); dot >= 0 {
		ext = resolved[dot+1:]
	}

	return URI{Path: resolved, Query: query, Extension: ext, Raw: rawStr}, nil
}

func decodePercentEscapes(s string) (string, error) {
	if !strings.ContainsRune(s, '%') {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == 0x00 {
			return "", httperr.NewParseError("uri", "NUL byte in URI", 400)
		}
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		if i+2 >= len(s) {
			return "", httperr.NewParseError("uri", "truncated percent-escape", 400)
		}
		hi, ok1 := hexVal(s[i+1])
		lo, ok2 := hexVal(s[i+2])
		if !ok1 || !ok2 {
			return "", httperr.NewParseError("uri", "invalid percent-escape", 400)
		}
		decodedByte := byte(hi<<4 | lo)
		if decodedByte == 0x00 {
			return "", httperr.NewParseError("uri", "NUL byte in URI", 400)
		}
		b.WriteByte(decodedByte)
		i += 2
	}
	return b.String(), nil
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

func mergeSlashes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSlash := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteByte(c)
	}
	return b.String()
}

// resolveDotSegments implements RFC 3986 §5.2.4 remove_dot_segments,
// refusing to let ".." cross above the root (spec.md §4.2: "resolve `.`/`..`
// without crossing the root"). With keepEmpty set, interior empty segments
// (repeated slashes) are kept rather than collapsed.
func resolveDotSegments(s string, keepEmpty bool) (string, error) {
	if s == "" {
		return s, nil
	}
	hadLeadingSlash := strings.HasPrefix(s, "/")
	trailingSlash := strings.HasSuffix(s, "/") && s != "/"

	segments := strings.Split(s, "/")
	out := make([]string, 0, len(segments))
	for i, seg := range segments {
		switch seg {
		case "":
			if keepEmpty && i > 0 && i < len(segments)-1 {
				out = append(out, seg)
			}
		case ".":
			continue
		case "..":
			if len(out) == 0 {
				if hadLeadingSlash {
					// ".." above the root: stay at the root rather than
					// error, matching nginx's behaviour of clamping.
					continue
				}
				return "", httperr.NewParseError("uri", "path traversal above root", 400)
			}
			out = out[:len(out)-1]
		default:
			out = append(out, seg)
		}
	}

	result := strings.Join(out, "/")
	if hadLeadingSlash {
		result = "/" + result
	}
	if trailingSlash && len(out) > 0 {
		result += "/"
	}
	if result == "" {
		result = "/"
	}
	return result, nil
}
