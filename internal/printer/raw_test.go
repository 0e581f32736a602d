package printer

import (
	"bytes"
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func TestRenderPlain(t *testing.T) {
	markup := "[C]<img>DEADBEEF</img>\n[L]\n[C]<font size='big'>ABC</font>\n[R]right\n[L]<b>Item</b>[R]9.99"
	out := RenderPlain(markup, 10)

	expected := "" + "\n" +
		"" + "\n" +
		"   ABC" + "\n" +
		"     right" + "\n" +
		"Item  9.99"
	assert.Equal(t, expected, out)
}

func TestRenderPlainNoWidth(t *testing.T) {
	assert.Equal(t, "Novo SGA", RenderPlain("[C]Novo SGA", 0))
}

func TestLookupCodePage(t *testing.T) {
	cm, err := LookupCodePage("")
	require.NoError(t, err)
	assert.Equal(t, charmap.CodePage850, cm)

	cm, err = LookupCodePage("CP860")
	require.NoError(t, err)
	assert.Equal(t, charmap.CodePage860, cm)

	_, err = LookupCodePage("ebcdic")
	require.Error(t, err)
}

func TestRawDriverNoTargets(t *testing.T) {
	d := &RawDriver{Log: zerolog.Nop()}
	dev, ok := d.SelectFirstConnected(context.Background())
	assert.False(t, ok)
	assert.Nil(t, dev)
}

func TestRawDriverSkipsMissingUSB(t *testing.T) {
	d := &RawDriver{
		Targets: []Target{{Kind: TargetUSB, Address: filepath.Join(t.TempDir(), "lp0")}},
		Log:     zerolog.Nop(),
	}
	_, ok := d.SelectFirstConnected(context.Background())
	assert.False(t, ok)
}

func TestRawDriverUSBFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lp0")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	d := &RawDriver{
		Targets:  []Target{{Kind: TargetUSB, Address: path}},
		CodePage: charmap.CodePage850,
		Log:      zerolog.Nop(),
	}
	dev, ok := d.SelectFirstConnected(context.Background())
	require.True(t, ok)
	assert.Equal(t, "usb:"+path, dev.Name())

	p, err := dev.Open(context.Background(), Settings{CharsPerLine: 0})
	require.NoError(t, err)
	require.NoError(t, p.PrintFormattedTextAndCut(context.Background(), "[L]Horário"))
	require.NoError(t, p.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	// cp850 encodes á as 0xA0.
	expected := append([]byte{0x1b, '@', 'H', 'o', 'r', 0xA0, 'r', 'i', 'o'}, feedCmd(3)...)
	expected = append(expected, cutCmd...)
	assert.Equal(t, expected, data)

	_, err = p.BitmapToHexString(nil)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestRawDriverTCP(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	received := make(chan []byte, 1)
	go func() {
		// First accept is the probe.
		probe, err := l.Accept()
		if err != nil {
			return
		}
		probe.Close()

		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		data, _ := io.ReadAll(conn)
		received <- data
	}()

	d := &RawDriver{
		Targets: []Target{
			{Kind: TargetUSB, Address: filepath.Join(t.TempDir(), "missing")},
			{Kind: TargetTCP, Address: l.Addr().String()},
		},
		DialTimeout: time.Second,
		Log:         zerolog.Nop(),
	}
	dev, ok := d.SelectFirstConnected(context.Background())
	require.True(t, ok)

	p, err := dev.Open(context.Background(), DefaultSettings)
	require.NoError(t, err)
	require.NoError(t, p.PrintFormattedTextAndCut(context.Background(), "[L]ticket"))
	require.NoError(t, p.Close())

	select {
	case data := <-received:
		assert.True(t, bytes.Contains(data, []byte("ticket")))
		assert.True(t, bytes.HasSuffix(data, cutCmd))
	case <-time.After(2 * time.Second):
		t.Fatal("printer never received data")
	}
}

type mockWritable struct {
	writeErr  error
	writes    [][]byte
	deadlines []time.Time
	closed    int
}

func (m *mockWritable) WriteRaw(data []byte) error {
	m.writes = append(m.writes, data)
	return m.writeErr
}

func (m *mockWritable) SetWriteDeadline(t time.Time) error {
	m.deadlines = append(m.deadlines, t)
	return nil
}

func (m *mockWritable) Open(context.Context) error { return nil }

func (m *mockWritable) Close() error {
	m.closed++
	return nil
}

func TestRawPrinterWriteFailure(t *testing.T) {
	mock := &mockWritable{writeErr: io.ErrClosedPipe}
	p := &rawPrinter{conn: mock, encoder: charmap.CodePage850.NewEncoder()}

	err := p.PrintFormattedTextAndCut(context.Background(), "[L]x")
	require.ErrorIs(t, err, io.ErrClosedPipe)
	assert.Len(t, mock.writes, 1)
}

func TestRawPrinterWriteDeadline(t *testing.T) {
	mock := &mockWritable{}
	p := &rawPrinter{conn: mock, encoder: charmap.CodePage850.NewEncoder()}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	deadline, _ := ctx.Deadline()

	require.NoError(t, p.PrintFormattedTextAndCut(ctx, "[L]x"))
	require.Len(t, mock.deadlines, 2)
	assert.Equal(t, deadline, mock.deadlines[0])
	assert.True(t, mock.deadlines[1].IsZero())

	// Without a deadline nothing is set.
	mock.deadlines = nil
	require.NoError(t, p.PrintFormattedTextAndCut(context.Background(), "[L]x"))
	assert.Empty(t, mock.deadlines)
}

func TestRawPrinterContextDone(t *testing.T) {
	mock := &mockWritable{}
	p := &rawPrinter{conn: mock, encoder: charmap.CodePage850.NewEncoder()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.PrintFormattedTextAndCut(ctx, "[L]x")
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, mock.writes)
}

func TestTCPWriterStalledPrinter(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	// The printer accepts but never reads, so its buffers fill up.
	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		accepted <- conn
	}()

	w := NewTCPWriter(l.Addr().String(), time.Second, zerolog.Nop())
	require.NoError(t, w.Open(context.Background()))
	defer w.Close()
	defer func() {
		select {
		case conn := <-accepted:
			conn.Close()
		default:
		}
	}()

	require.NoError(t, w.SetWriteDeadline(time.Now().Add(100*time.Millisecond)))

	done := make(chan error, 1)
	go func() {
		chunk := make([]byte, 1<<20)
		for {
			if err := w.WriteRaw(chunk); err != nil {
				done <- err
				return
			}
		}
	}()

	select {
	case err := <-done:
		var netErr net.Error
		require.ErrorAs(t, err, &netErr)
		assert.True(t, netErr.Timeout())
	case <-time.After(5 * time.Second):
		t.Fatal("write to a stalled printer was not bounded")
	}
}
