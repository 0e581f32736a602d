package printer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var errNotOpen = errors.New("no active connection")

// Writable is a raw byte sink for a printer connection.
type Writable interface {
	WriteRaw([]byte) error
	// SetWriteDeadline bounds later writes; the zero time clears it.
	SetWriteDeadline(t time.Time) error
	Open(ctx context.Context) error
	Close() error
}

// USBWriter writes to a printer character device such as /dev/usb/lp0.
type USBWriter struct {
	mu     sync.Mutex
	path   string
	writer io.WriteCloser
	log    zerolog.Logger
}

func NewUSBWriter(path string, log zerolog.Logger) *USBWriter {
	return &USBWriter{path: path, log: log.With().Str("usb", path).Logger()}
}

func (u *USBWriter) WriteRaw(data []byte) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.writer == nil {
		return errNotOpen
	}

	n, err := u.writer.Write(data)
	if err != nil {
		u.log.Error().Err(err).Int("wrote", n).Int("len", len(data)).Msg("usb write failed")
		return err
	}
	u.log.Debug().Int("bytes", n).Msg("usb write")
	return nil
}

// SetWriteDeadline applies t when the device supports deadlines. Device
// files that cannot be polled ignore it.
func (u *USBWriter) SetWriteDeadline(t time.Time) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.writer == nil {
		return errNotOpen
	}
	d, ok := u.writer.(interface{ SetWriteDeadline(time.Time) error })
	if !ok {
		return nil
	}
	if err := d.SetWriteDeadline(t); err != nil && !errors.Is(err, os.ErrNoDeadline) {
		return err
	}
	return nil
}

func (u *USBWriter) Open(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.writer != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := os.OpenFile(u.path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return fmt.Errorf("failed to open USB device %s: %w", u.path, err)
	}
	u.writer = f
	return nil
}

func (u *USBWriter) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.writer == nil {
		return nil
	}
	err := u.writer.Close()
	u.writer = nil
	if err != nil {
		return fmt.Errorf("error closing USB device %s: %w", u.path, err)
	}
	return nil
}

// TCPWriter writes to a network printer, usually on port 9100.
type TCPWriter struct {
	mu      sync.Mutex
	address string
	timeout time.Duration
	conn    net.Conn
	log     zerolog.Logger
}

func NewTCPWriter(address string, timeout time.Duration, log zerolog.Logger) *TCPWriter {
	return &TCPWriter{address: address, timeout: timeout, log: log.With().Str("tcp", address).Logger()}
}

func (t *TCPWriter) WriteRaw(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return errNotOpen
	}

	n, err := t.conn.Write(data)
	if err != nil {
		t.log.Error().Err(err).Int("wrote", n).Int("len", len(data)).Msg("tcp write failed")
		return err
	}
	t.log.Debug().Int("bytes", n).Msg("tcp write")
	return nil
}

func (t *TCPWriter) SetWriteDeadline(d time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return errNotOpen
	}
	return t.conn.SetWriteDeadline(d)
}

func (t *TCPWriter) Open(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return nil
	}

	dialer := net.Dialer{Timeout: t.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.address)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", t.address, err)
	}
	t.conn = conn
	return nil
}

func (t *TCPWriter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	if err != nil {
		return fmt.Errorf("error closing TCP connection %s: %w", t.address, err)
	}
	return nil
}
