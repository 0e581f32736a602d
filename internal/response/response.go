package response

import (
	"fmt"
	"io"
	"net/textproto"
	"strconv"

	"ticketprint/internal/headers"
)

type StatusCode int

const (
	OK                    StatusCode = 200
	NO_CONTENT            StatusCode = 204
	BAD_REQUEST           StatusCode = 400
	NOT_FOUND             StatusCode = 404
	REQUEST_TIMEOUT       StatusCode = 408
	INTERNAL_SERVER_ERROR StatusCode = 500
	BAD_GATEWAY           StatusCode = 502
	SERVICE_UNAVAILABLE   StatusCode = 503
)

var StatusCodeName = map[StatusCode]string{
	OK:                    "OK",
	NO_CONTENT:            "No Content",
	BAD_REQUEST:           "Bad Request",
	NOT_FOUND:             "Not Found",
	REQUEST_TIMEOUT:       "Request Timeout",
	INTERNAL_SERVER_ERROR: "Internal Server Error",
	BAD_GATEWAY:           "Bad Gateway",
	SERVICE_UNAVAILABLE:   "Service Unavailable",
}

const httpVersion = "HTTP/1.1"

// GetDefaultHeaders returns a fresh header set with the framing every
// response carries. 204 responses carry no body and no Content-Length.
func GetDefaultHeaders(status StatusCode, contentLen int) *headers.Headers {
	h := headers.NewHeaders()
	if status != NO_CONTENT {
		h.Set("content-type", "text/plain")
		h.Set("content-length", strconv.Itoa(contentLen))
	}
	h.Set("connection", "close")
	return h
}

// Writer collects a handler's response. The server serialises it once the
// handler returns.
type Writer struct {
	Status  StatusCode
	Headers *headers.Headers
	Body    []byte
}

func NewWriter() *Writer {
	return &Writer{Status: OK, Headers: headers.NewHeaders()}
}

func (w *Writer) WriteHeader(status StatusCode) {
	w.Status = status
}

func (w *Writer) SetBody(body []byte) {
	w.Body = body
}

// Write appends to the body.
func (w *Writer) Write(p []byte) (int, error) {
	w.Body = append(w.Body, p...)
	return len(p), nil
}

// WriteTo sends status line, handler headers, default headers and body to
// dst. Handler headers come first and win over defaults of the same name.
func (w *Writer) WriteTo(dst io.Writer) (int64, error) {
	cw := &countingWriter{w: dst}

	if err := WriteStatusLine(cw, w.Status); err != nil {
		return cw.n, err
	}

	h := headers.NewHeaders()
	w.Headers.Each(func(name, value string) { h.Override(name, value) })
	GetDefaultHeaders(w.Status, len(w.Body)).Each(func(name, value string) {
		if !h.Has(name) {
			h.Override(name, value)
		}
	})
	if err := WriteHeaders(cw, h); err != nil {
		return cw.n, err
	}

	if w.Status == NO_CONTENT {
		return cw.n, nil
	}
	_, err := cw.Write(w.Body)
	return cw.n, err
}

func WriteStatusLine(w io.Writer, statusCode StatusCode) error {
	reason, ok := StatusCodeName[statusCode]
	if !ok {
		reason = "Unknown"
	}
	_, err := fmt.Fprintf(w, "%s %d %s\r\n", httpVersion, int(statusCode), reason)
	return err
}

// WriteHeaders emits the fields in insertion order followed by the blank
// line ending the block.
func WriteHeaders(w io.Writer, h *headers.Headers) error {
	var err error
	if h != nil {
		h.Each(func(name, value string) {
			if err != nil {
				return
			}
			display := textproto.CanonicalMIMEHeaderKey(name)
			_, err = fmt.Fprintf(w, "%s: %s\r\n", display, value)
		})
	}
	if err != nil {
		return err
	}

	// Final CRLF to end the header block
	_, err = io.WriteString(w, "\r\n")
	return err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
