package request

import (
	"strconv"
	"strings"

	"ticketprint/internal/headers"
)

type Route int

const (
	RouteUnknown   Route = iota
	RoutePreflight       // CORS preflight
	RoutePrint           // print job submission
)

var RouteName = map[Route]string{
	RouteUnknown:   "unknown",
	RoutePreflight: "preflight",
	RoutePrint:     "print",
}

func (r Route) String() string { return RouteName[r] }

// Matcher decides what a request line asks for and how the body is framed.
type Matcher interface {
	// Route classifies a request line. rl is nil when the line did not
	// split into method, target and version.
	Route(line string, rl *RequestLine) Route
	// ContentLength reports the body size announced by h; 0 when absent.
	ContentLength(h *headers.Headers) (int, error)
	// NewHeaders returns the header set used while parsing.
	NewHeaders() *headers.Headers
	// RequireRequestLine rejects request lines that are not three tokens.
	RequireRequestLine() bool
}

const (
	PrintPath = "/print"

	legacyPreflight = "OPTIONS"
	legacyPrint     = "POST " + PrintPath
	legacyLength    = "Content-Length:"
)

// LegacyMatcher reproduces the substring rules existing kiosk clients rely
// on: a request line containing "OPTIONS" anywhere is a preflight, one
// containing "POST /print" is a print job, and the body length comes from
// the first header line starting with exactly "Content-Length:".
type LegacyMatcher struct{}

func (LegacyMatcher) Route(line string, _ *RequestLine) Route {
	switch {
	case strings.Contains(line, legacyPreflight):
		return RoutePreflight
	case strings.Contains(line, legacyPrint):
		return RoutePrint
	}
	return RouteUnknown
}

func (LegacyMatcher) ContentLength(h *headers.Headers) (int, error) {
	line, ok := h.LineWithPrefix(legacyLength)
	if !ok {
		return 0, nil
	}
	return parseLength(strings.TrimPrefix(line, legacyLength))
}

func (LegacyMatcher) NewHeaders() *headers.Headers { return headers.NewHeaders() }

func (LegacyMatcher) RequireRequestLine() bool { return false }

// StrictMatcher routes on the parsed method and exact path and reads
// Content-Length case-insensitively.
type StrictMatcher struct{}

func (StrictMatcher) Route(_ string, rl *RequestLine) Route {
	if rl == nil {
		return RouteUnknown
	}
	switch {
	case rl.Method == "OPTIONS":
		return RoutePreflight
	case rl.Method == "POST" && rl.Path() == PrintPath:
		return RoutePrint
	}
	return RouteUnknown
}

func (StrictMatcher) ContentLength(h *headers.Headers) (int, error) {
	if !h.Has("content-length") {
		return 0, nil
	}
	return parseLength(h.Get("content-length"))
}

func (StrictMatcher) NewHeaders() *headers.Headers { return headers.NewStrictHeaders() }

func (StrictMatcher) RequireRequestLine() bool { return true }

func parseLength(s string) (int, error) {
	s = strings.TrimSpace(s)
	cl, err := strconv.ParseInt(s, 10, 64)
	if err != nil || cl < 0 {
		return 0, &ContentLengthError{Value: s}
	}
	if cl > maxBodyBytes {
		return 0, ErrMessageTooLarge
	}
	return int(cl), nil
}

// MatcherByName maps the config spelling of a matcher to its value.
func MatcherByName(name string) (Matcher, bool) {
	switch name {
	case "", "legacy":
		return LegacyMatcher{}, true
	case "strict":
		return StrictMatcher{}, true
	}
	return nil, false
}
