package request

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"ticketprint/internal/headers"
)

// Request holds the parsed state of an HTTP request.
// Headers and Body are only read for the print route; other routes are
// answered from the request line alone.
type Request struct {
	RequestLine *RequestLine
	Line        string // request line as received, without its terminator
	Route       Route
	Headers     *headers.Headers
	Body        []byte
	// Truncated is set when the peer closed before sending the full
	// Content-Length worth of body bytes.
	Truncated bool

	state    RequestState
	parseErr error
	matcher  Matcher
	want     int
}

type RequestState int

const (
	RequestInitialized RequestState = iota + 1
	RequestParsingHeaders
	RequestParsingBody
	RequestDone
	RequestError
)

var RequestStateName = map[RequestState]string{
	RequestInitialized:    "initialized",
	RequestParsingHeaders: "parsing_headers",
	RequestParsingBody:    "parsing_body",
	RequestDone:           "done",
	RequestError:          "error",
}

// RequestLine represents the three components of an HTTP/1.1 request line:
//
//	<method> <request-target> <HTTP-version>
type RequestLine struct {
	HTTPVersion   string
	RequestTarget string
	Method        string
}

// Path is the request target without its query string.
func (rl *RequestLine) Path() string {
	path, _, _ := strings.Cut(rl.RequestTarget, "?")
	return path
}

// Predefined errors for different validation failures.
var (
	// ErrMissingRequestLine means the peer closed before sending anything.
	// No response is owed.
	ErrMissingRequestLine     = errors.New("missing request-line")
	ErrMalformedRequestLine   = errors.New("malformed request-line")
	ErrUnsupportedHTTPVersion = errors.New("unsupported http version")
	ErrUnsupportedHTTPMethod  = errors.New("unsupported http method")
	ErrMessageTooLarge        = errors.New("http message exceeds body limit")

	// Allowed HTTP methods for validation (map lookup is faster than regex).
	allowedMethods = map[string]struct{}{
		"GET": {}, "HEAD": {}, "POST": {}, "PUT": {}, "DELETE": {},
		"CONNECT": {}, "OPTIONS": {}, "TRACE": {}, "PATCH": {},
	}
)

// ContentLengthError reports a Content-Length that is not a non-negative
// integer.
type ContentLengthError struct {
	Value string
}

func (e *ContentLengthError) Error() string {
	return fmt.Sprintf("bad Content-Length: %q", e.Value)
}

// Maximum allowed size of the start-line, per RFC 9112 recommendations.
// Prevents DoS attacks from sending extremely long lines.
const maxStartLine = 8 * 1024         // 8 KiB cap
const maxBodyBytes = 10 * 1024 * 1024 // 10 MiB

type Option func(*Request)

// WithMatcher selects the routing rules. The default is LegacyMatcher.
func WithMatcher(m Matcher) Option {
	return func(r *Request) {
		if m != nil {
			r.matcher = m
		}
	}
}

func newRequest(opts ...Option) *Request {
	r := &Request{
		state:   RequestInitialized,
		matcher: LegacyMatcher{},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.Headers = r.matcher.NewHeaders()
	return r
}

func (r *Request) done() bool {
	return r.state == RequestDone
}

func (r *Request) error() bool {
	return r.state == RequestError
}

func (r *Request) setErr(err error) error {
	r.parseErr = err
	r.state = RequestError
	return err
}

func (r *Request) setLine(line string) error {
	rl, err := ParseRequestLine(line)
	if err != nil && r.matcher.RequireRequestLine() {
		return err
	}

	r.Line = line
	r.Route = r.matcher.Route(line, rl)
	if rl == nil {
		rl = looseRequestLine(line)
	}
	r.RequestLine = rl
	return nil
}

// parse consumes data and advances the state machine as far as it can.
// Returns bytes consumed and any error.
// Contract:
//   - If not enough data and !atEOF, returns what it could consume.
//   - With atEOF set, trailing partial lines are taken as complete and a
//     short body marks the request Truncated.
func (r *Request) parse(data []byte, atEOF bool) (int, error) {
	read := 0

outer:
	for {
		currentData := data[read:]
		switch r.state {
		case RequestError:
			break outer

		case RequestInitialized:
			var line []byte
			idx := bytes.IndexByte(currentData, '\n')
			switch {
			case idx >= 0:
				line = currentData[:idx]
				read += idx + 1
			case len(currentData) > maxStartLine:
				return 0, r.setErr(ErrMalformedRequestLine)
			case !atEOF:
				break outer // need more bytes for start-line
			case len(currentData) == 0:
				return 0, r.setErr(ErrMissingRequestLine)
			default:
				line = currentData
				read += len(currentData)
			}
			if len(line) > maxStartLine {
				return 0, r.setErr(ErrMalformedRequestLine)
			}

			if err := r.setLine(string(bytes.TrimSuffix(line, []byte("\r")))); err != nil {
				return 0, r.setErr(err)
			}

			if r.Route != RoutePrint {
				r.state = RequestDone
				break outer
			}
			r.state = RequestParsingHeaders

		case RequestParsingHeaders:
			n, endOfHeaders, err := r.Headers.Parse(currentData, atEOF)
			if err != nil {
				return 0, r.setErr(err)
			}
			read += n

			if !endOfHeaders {
				break outer // need more bytes for headers
			}

			want, err := r.matcher.ContentLength(r.Headers)
			if err != nil {
				return 0, r.setErr(err)
			}
			if want == 0 {
				r.state = RequestDone
				break outer
			}
			r.want = want
			r.state = RequestParsingBody

		case RequestParsingBody:
			remaining := r.want - len(r.Body)
			toRead := min(remaining, len(currentData))
			if toRead > 0 {
				r.Body = append(r.Body, currentData[:toRead]...)
				read += toRead
			}

			if len(r.Body) == r.want {
				r.state = RequestDone
			} else if atEOF {
				r.Truncated = true
				r.state = RequestDone
			}
			break outer

		case RequestDone:
			break outer

		default:
			return 0, r.setErr(fmt.Errorf("unknown state: %d", r.state))
		}
	}

	return read, nil
}

// RequestFromReader reads from r until the request is complete for its
// route, or an error occurs. Only the bytes the route needs are waited for,
// so a client that keeps its side open after the body is answered at once.
func RequestFromReader(r io.Reader, opts ...Option) (*Request, error) {
	req := newRequest(opts...)

	// buf accumulates bytes we haven't yet parsed.
	buf := make([]byte, 0, 256)
	// tmp is a scratch buffer for each read from r.
	tmp := make([]byte, 1024)

	for !req.done() {
		n, err := r.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
		}

		atEOF := errors.Is(err, io.EOF)
		if err != nil && !atEOF {
			return nil, err
		}

		if n > 0 || atEOF {
			readN, perr := req.parse(buf, atEOF)
			if perr != nil {
				return nil, perr
			}

			if readN > 0 {
				// Shift leftover (unparsed) data down to front of buffer
				copy(buf, buf[readN:])
				buf = buf[:len(buf)-readN]
			}
		}

		if atEOF && !req.done() {
			if req.error() {
				return nil, req.parseErr
			}
			return nil, io.ErrUnexpectedEOF
		}
	}

	return req, nil
}

// ParseRequestLine splits a request line (without its terminator) into its
// three tokens and validates method and version.
func ParseRequestLine(line string) (*RequestLine, error) {
	tokens := strings.Fields(line)
	if len(tokens) != 3 {
		return nil, ErrMalformedRequestLine
	}

	m, target, ver := tokens[0], tokens[1], tokens[2]

	if _, ok := allowedMethods[m]; !ok {
		return nil, ErrUnsupportedHTTPMethod
	}
	if ver != "HTTP/1.1" && ver != "HTTP/1.0" {
		return nil, ErrUnsupportedHTTPVersion
	}

	return &RequestLine{
		Method:        m,
		RequestTarget: target,
		HTTPVersion:   strings.TrimPrefix(ver, "HTTP/"), // "1.1"
	}, nil
}

// looseRequestLine fills in whatever tokens are present.
func looseRequestLine(line string) *RequestLine {
	rl := &RequestLine{}
	tokens := strings.Fields(line)
	if len(tokens) > 0 {
		rl.Method = tokens[0]
	}
	if len(tokens) > 1 {
		rl.RequestTarget = tokens[1]
	}
	if len(tokens) > 2 {
		rl.HTTPVersion = strings.TrimPrefix(tokens[2], "HTTP/")
	}
	return rl
}
