package server

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"ticketprint/internal/request"
	"ticketprint/internal/response"
)

// DefaultPort is where kiosk clients expect the print endpoint.
const DefaultPort = 9080

type Server struct {
	Port     int
	listener net.Listener
	closed   atomic.Bool
	handler  Handler

	matcher     request.Matcher
	readTimeout time.Duration
	concurrent  bool
	log         zerolog.Logger

	done     chan struct{}
	inflight sync.WaitGroup
}

type HandlerError struct {
	StatusCode response.StatusCode
	Message    string
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("%d %s", e.StatusCode, e.Message)
}

// Handler fills in w for req. A non-nil HandlerError replaces whatever was
// written with its status and message.
type Handler func(w *response.Writer, req *request.Request) *HandlerError

// BindError is returned by Serve when the port cannot be bound.
type BindError struct {
	Port int
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind port %d: %v", e.Port, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

type Option func(*Server)

// WithMatcher selects the request routing rules.
func WithMatcher(m request.Matcher) Option {
	return func(s *Server) { s.matcher = m }
}

// WithReadTimeout bounds how long a connection may take to deliver its
// request. Zero waits forever.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Server) { s.readTimeout = d }
}

// WithConcurrent handles each connection on its own goroutine instead of
// serially on the accept loop.
func WithConcurrent(on bool) Option {
	return func(s *Server) { s.concurrent = on }
}

func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// Serve binds port and starts accepting on a background goroutine. Port 0
// picks a free port; see Addr.
func Serve(port int, handler Handler, opts ...Option) (*Server, error) {
	s := &Server{
		Port:    port,
		handler: handler,
		matcher: request.LegacyMatcher{},
		log:     zerolog.Nop(),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	l, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, &BindError{Port: port, Err: err}
	}
	s.listener = l

	go s.listen()
	return s, nil
}

func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Close stops accepting. Closing the listener is what unblocks Accept;
// connections already accepted run to completion.
func (s *Server) Close() error {
	// Make Close idempotent.
	if s.closed.Swap(true) {
		return nil
	}
	return s.listener.Close()
}

// Done is closed once the accept loop has exited.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the accept loop and every in-flight connection are
// finished.
func (s *Server) Wait() {
	<-s.done
	s.inflight.Wait()
}

func (s *Server) listen() {
	defer close(s.done)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			// transient accept error; keep going
			s.log.Warn().Err(err).Msg("accept failed")
			continue
		}

		s.inflight.Add(1)
		if s.concurrent {
			go s.handle(conn)
		} else {
			s.handle(conn)
		}
	}
}

// helper: format duration compactly
func fmtDur(d time.Duration) string {
	return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000.0)
}

func (s *Server) handle(conn net.Conn) {
	defer s.inflight.Done()
	defer conn.Close()
	start := time.Now()

	remoteHost, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
	access := func(method, target string, status int) *zerolog.Event {
		return s.log.Info().
			Str("remote", remoteHost).
			Str("method", method).
			Str("target", target).
			Int("status", status).
			Str("dur", fmtDur(time.Since(start)))
	}

	if s.readTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	}

	req, err := request.RequestFromReader(conn, request.WithMatcher(s.matcher))
	if err != nil {
		if errors.Is(err, request.ErrMissingRequestLine) {
			// Peer went away without asking anything; nothing to answer.
			s.log.Debug().Str("remote", remoteHost).Msg("connection closed before request-line")
			return
		}

		status := response.BAD_REQUEST
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			status = response.REQUEST_TIMEOUT
		}
		access("-", "-", int(status)).Err(err).Msg("bad request")

		// Return a proper HTTP error so clients don't see a reset.
		w := response.NewWriter()
		w.WriteHeader(status)
		_, _ = w.WriteTo(conn)
		return
	}

	method := req.RequestLine.Method
	target := req.RequestLine.RequestTarget

	w := response.NewWriter()
	if hErr := s.handler(w, req); hErr != nil {
		w.WriteHeader(hErr.StatusCode)
		w.SetBody([]byte(hErr.Message))
	}

	if _, err := w.WriteTo(conn); err != nil {
		access(method, target, int(response.INTERNAL_SERVER_ERROR)).Err(err).Msg("write response")
		return
	}

	access(method, target, int(w.Status)).Str("route", req.Route.String()).Msg("request")
}
