package dispatch

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/rs/zerolog"

	"ticketprint/internal/printer"
	"ticketprint/internal/ticket"
)

// ErrNoDevice is returned when no printer is attached.
var ErrNoDevice = errors.New("no printer connected")

// DriverError wraps a failure reported by the printer driver while opening
// or printing.
type DriverError struct {
	Device string
	Op     string
	Err    error
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("printer %s: %s: %v", e.Device, e.Op, e.Err)
}

func (e *DriverError) Unwrap() error { return e.Err }

// Dispatcher sends receipts to the first attached printer. There is no
// queue and no retry; a failed print is reported once and dropped.
type Dispatcher struct {
	driver    printer.Driver
	settings  printer.Settings
	formatter *ticket.Formatter
	logo      image.Image
	log       zerolog.Logger
}

type Option func(*Dispatcher)

func WithSettings(s printer.Settings) Option {
	return func(d *Dispatcher) { d.settings = s }
}

func WithFormatter(f *ticket.Formatter) Option {
	return func(d *Dispatcher) { d.formatter = f }
}

// WithLogo sets the header image embedded at the top of every ticket.
func WithLogo(img image.Image) Option {
	return func(d *Dispatcher) { d.logo = img }
}

func WithLogger(log zerolog.Logger) Option {
	return func(d *Dispatcher) { d.log = log }
}

func New(driver printer.Driver, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		driver:    driver,
		settings:  printer.DefaultSettings,
		formatter: ticket.NewFormatter(),
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch prints already formatted markup and cuts the paper.
func (d *Dispatcher) Dispatch(ctx context.Context, markup string) error {
	return d.withPrinter(ctx, func(name string, p printer.Printer) error {
		return d.print(ctx, name, p, markup)
	})
}

// PrintJob formats job and prints it. A job that fails to format still
// produces the fallback error ticket; the formatting error is returned
// after it has been printed.
func (d *Dispatcher) PrintJob(ctx context.Context, job *ticket.Job) error {
	var formatErr error
	err := d.withPrinter(ctx, func(name string, p printer.Printer) error {
		logoHex := d.logoHex(name, p)

		markup, err := d.formatter.FormatOrFallback(job, logoHex)
		if err != nil {
			d.log.Warn().Err(err).Str("device", name).Msg("ticket format failed, printing error ticket")
			formatErr = err
		}
		return d.print(ctx, name, p, markup)
	})
	if err != nil {
		return err
	}
	return formatErr
}

func (d *Dispatcher) logoHex(name string, p printer.Printer) string {
	if d.logo == nil {
		return ""
	}
	hex, err := p.BitmapToHexString(d.logo)
	if err != nil {
		if !errors.Is(err, printer.ErrUnsupported) {
			d.log.Warn().Err(err).Str("device", name).Msg("logo conversion failed")
		}
		return ""
	}
	return hex
}

func (d *Dispatcher) print(ctx context.Context, name string, p printer.Printer, markup string) error {
	if err := p.PrintFormattedTextAndCut(ctx, markup); err != nil {
		return &DriverError{Device: name, Op: "print", Err: err}
	}
	d.log.Info().Str("device", name).Int("bytes", len(markup)).Msg("ticket printed")
	return nil
}

// withPrinter opens the first attached printer and runs fn against it. fn
// is abandoned once ctx is done; the printer is then closed whenever fn
// finally returns.
func (d *Dispatcher) withPrinter(ctx context.Context, fn func(name string, p printer.Printer) error) error {
	dev, ok := d.driver.SelectFirstConnected(ctx)
	if !ok {
		d.log.Warn().Msg("no printer connected, job dropped")
		return ErrNoDevice
	}
	name := dev.Name()

	p, err := dev.Open(ctx, d.settings)
	if err != nil {
		d.log.Error().Err(err).Str("device", name).Msg("open printer failed")
		return &DriverError{Device: name, Op: "open", Err: err}
	}

	done := make(chan error, 1)
	go func() { done <- fn(name, p) }()

	select {
	case err = <-done:
	case <-ctx.Done():
		select {
		case err = <-done:
		default:
			go func() {
				<-done
				d.close(name, p)
			}()
			d.log.Error().Err(ctx.Err()).Str("device", name).Msg("print timed out")
			return &DriverError{Device: name, Op: "print", Err: ctx.Err()}
		}
	}

	d.close(name, p)
	if err != nil {
		d.log.Error().Err(err).Str("device", name).Msg("print failed")
		return err
	}
	return nil
}

func (d *Dispatcher) close(name string, p printer.Printer) {
	if err := p.Close(); err != nil {
		d.log.Warn().Err(err).Str("device", name).Msg("close printer failed")
	}
}
