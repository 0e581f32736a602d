package printapi

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ticketprint/internal/dispatch"
	"ticketprint/internal/request"
	"ticketprint/internal/response"
	"ticketprint/internal/server"
	"ticketprint/internal/ticket"
)

const (
	PrintTriggered  = "Print triggered via USB"
	InvalidEndpoint = "Invalid Endpoint"
)

// JobPrinter prints a decoded job.
type JobPrinter interface {
	PrintJob(ctx context.Context, job *ticket.Job) error
}

type API struct {
	printer JobPrinter
	// SurfaceErrors reports job and printer failures to the client. When
	// off every print request that parsed is answered 200.
	SurfaceErrors bool
	// PrintTimeout bounds a single print; zero means no bound.
	PrintTimeout time.Duration
	log          zerolog.Logger
}

func New(p JobPrinter, log zerolog.Logger) *API {
	return &API{printer: p, log: log}
}

// Handler returns the server handler for the print endpoint.
func (a *API) Handler() server.Handler {
	return func(w *response.Writer, req *request.Request) *server.HandlerError {
		switch req.Route {
		case request.RoutePreflight:
			a.preflight(w)
			return nil
		case request.RoutePrint:
			return a.print(w, req)
		}
		return &server.HandlerError{StatusCode: response.NOT_FOUND, Message: InvalidEndpoint}
	}
}

func (a *API) preflight(w *response.Writer) {
	w.WriteHeader(response.NO_CONTENT)
	w.Headers.Set("Access-Control-Allow-Origin", "*")
	w.Headers.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Headers.Set("Access-Control-Allow-Headers", "Content-Type")
	w.Headers.Set("Access-Control-Max-Age", "3600")
}

func (a *API) print(w *response.Writer, req *request.Request) *server.HandlerError {
	log := a.log.With().Str("job_id", uuid.NewString()).Logger()
	log.Debug().Bytes("body", req.Body).Bool("truncated", req.Truncated).Msg("print request")

	err := a.submit(req.Body)
	if err != nil {
		log.Error().Err(err).Msg("print job failed")
		if a.SurfaceErrors {
			return statusFor(err)
		}
	} else {
		log.Info().Msg("print job dispatched")
	}

	_, _ = w.Write([]byte(PrintTriggered))
	return nil
}

func (a *API) submit(body []byte) error {
	job, err := ticket.Decode(body)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if a.PrintTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.PrintTimeout)
		defer cancel()
	}
	return a.printer.PrintJob(ctx, job)
}

func statusFor(err error) *server.HandlerError {
	var dErr *dispatch.DriverError
	switch {
	case errors.Is(err, ticket.ErrMalformedJob):
		return &server.HandlerError{StatusCode: response.BAD_REQUEST, Message: "Malformed print job"}
	case errors.Is(err, dispatch.ErrNoDevice):
		return &server.HandlerError{StatusCode: response.SERVICE_UNAVAILABLE, Message: "No printer connected"}
	case errors.As(err, &dErr):
		return &server.HandlerError{StatusCode: response.BAD_GATEWAY, Message: "Printer error"}
	}
	return &server.HandlerError{StatusCode: response.INTERNAL_SERVER_ERROR, Message: "Print failed"}
}
