package accesslog

import (
	"net/url"
	"strings"
)

// ParseRequestLine splits a raw request line such as "GET /a/b?x=1 HTTP/1.1"
// into its method and the path of the target URL. Query string, fragment,
// scheme and host are discarded.
//
// It returns false when the line has fewer than two whitespace-separated
// tokens. Targets that url.Parse rejects (bad percent-escapes are common in
// scanner traffic) keep their raw path text. An authority-form target, as sent
// with CONNECT, is kept whole. Path is empty only when the target has none.
func ParseRequestLine(raw string) (RequestTarget, bool) {
	fields := strings.Fields(raw)
	if len(fields) < 2 {
		return RequestTarget{}, false
	}

	target := RequestTarget{Method: fields[0]}
	u, err := url.Parse(fields[1])
	switch {
	case err != nil:
		target.Path = rawPath(fields[1])
	case u.Opaque != "":
		target.Path = cutQuery(fields[1])
	default:
		// Keep the path exactly as sent. RawPath is only set when it differs
		// from the canonical escaping of Path.
		target.Path = u.RawPath
		if target.Path == "" {
			target.Path = u.EscapedPath()
		}
	}
	return target, true
}

// rawPath extracts the path of a target without decoding it: query and
// fragment are cut, then a leading scheme and authority are removed.
func rawPath(s string) string {
	s = cutQuery(s)
	if i := strings.IndexByte(s, ':'); i > 0 && isScheme(s[:i]) {
		s = s[i+1:]
	}
	if rest, ok := strings.CutPrefix(s, "//"); ok {
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			return rest[i:]
		}
		return ""
	}
	return s
}

func cutQuery(s string) string {
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		return s[:i]
	}
	return s
}

func isScheme(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z':
		case i > 0 && ('0' <= c && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return s != ""
}

// EffectivePath returns the aggregation key for a request line: the URL path,
// or "-" when the request line has no target or the path is empty.
func EffectivePath(requestLine string) string {
	target, ok := ParseRequestLine(requestLine)
	if !ok || target.Path == "" {
		return Dash
	}
	return target.Path
}
