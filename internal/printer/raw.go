package printer

import (
	"context"
	"fmt"
	"image"
	"net"
	"os"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

type TargetKind string

const (
	TargetUSB TargetKind = "usb"
	TargetTCP TargetKind = "tcp"
)

// Target is a place a printer may be attached.
type Target struct {
	Kind    TargetKind
	Address string // device path for usb, host:port for tcp
}

var (
	cutCmd  = []byte{0x1d, 'V', 0x00}
	initCmd = []byte{0x1b, '@'}
	feedCmd = func(n int) []byte {
		return []byte{0x1b, 0x64, byte(n)}
	}
)

var codePages = map[string]*charmap.Charmap{
	"cp437":        charmap.CodePage437,
	"cp850":        charmap.CodePage850,
	"cp858":        charmap.CodePage858,
	"cp860":        charmap.CodePage860,
	"iso8859-1":    charmap.ISO8859_1,
	"iso8859-15":   charmap.ISO8859_15,
	"windows-1252": charmap.Windows1252,
}

// LookupCodePage resolves a code page name; the empty name is cp850.
func LookupCodePage(name string) (*charmap.Charmap, error) {
	if name == "" {
		name = "cp850"
	}
	cm, ok := codePages[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown code page %q", name)
	}
	return cm, nil
}

// RawDriver talks to plain character printers over USB device files or TCP.
// It does not rasterize images and prints markup as aligned plain text.
type RawDriver struct {
	Targets     []Target
	CodePage    *charmap.Charmap
	DialTimeout time.Duration
	Log         zerolog.Logger
}

func (d *RawDriver) SelectFirstConnected(ctx context.Context) (Device, bool) {
	for _, t := range d.Targets {
		if ctx.Err() != nil {
			return nil, false
		}
		if d.probe(ctx, t) {
			d.Log.Debug().Str("kind", string(t.Kind)).Str("address", t.Address).Msg("printer found")
			return &rawDevice{target: t, driver: d}, true
		}
	}
	return nil, false
}

func (d *RawDriver) probe(ctx context.Context, t Target) bool {
	switch t.Kind {
	case TargetUSB:
		_, err := os.Stat(t.Address)
		return err == nil
	case TargetTCP:
		dialer := net.Dialer{Timeout: d.DialTimeout}
		conn, err := dialer.DialContext(ctx, "tcp", t.Address)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}
	return false
}

type rawDevice struct {
	target Target
	driver *RawDriver
}

func (r *rawDevice) Name() string {
	return string(r.target.Kind) + ":" + r.target.Address
}

func (r *rawDevice) Open(ctx context.Context, s Settings) (Printer, error) {
	var w Writable
	switch r.target.Kind {
	case TargetUSB:
		w = NewUSBWriter(r.target.Address, r.driver.Log)
	case TargetTCP:
		w = NewTCPWriter(r.target.Address, r.driver.DialTimeout, r.driver.Log)
	default:
		return nil, fmt.Errorf("unknown target kind %q", r.target.Kind)
	}
	if err := w.Open(ctx); err != nil {
		return nil, err
	}

	cm := r.driver.CodePage
	if cm == nil {
		cm = charmap.CodePage850
	}
	return &rawPrinter{
		conn:     w,
		settings: s,
		encoder:  encoding.ReplaceUnsupported(cm.NewEncoder()),
	}, nil
}

type rawPrinter struct {
	conn     Writable
	settings Settings
	encoder  *encoding.Encoder
}

func (p *rawPrinter) PrintFormattedTextAndCut(ctx context.Context, markup string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := p.conn.SetWriteDeadline(deadline); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
		defer func() { _ = p.conn.SetWriteDeadline(time.Time{}) }()
	}

	text := RenderPlain(markup, p.settings.CharsPerLine)
	encoded, err := p.encoder.String(text)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	buf := make([]byte, 0, len(initCmd)+len(encoded)+6)
	buf = append(buf, initCmd...)
	buf = append(buf, encoded...)
	buf = append(buf, feedCmd(3)...)
	buf = append(buf, cutCmd...)
	return p.conn.WriteRaw(buf)
}

func (p *rawPrinter) BitmapToHexString(image.Image) (string, error) {
	return "", ErrUnsupported
}

func (p *rawPrinter) Close() error {
	return p.conn.Close()
}

var (
	imgTag     = regexp.MustCompile(`(?s)<img>.*?</img>`)
	anyTag     = regexp.MustCompile(`<[^>]*>`)
	alignToken = regexp.MustCompile(`\[[LCR]\]`)
)

// RenderPlain turns receipt markup into plain text lines of at most width
// columns. Lines led by [C] are centred and lines led by [R] right-aligned;
// an [R] inside a line pushes the rest of it to the right edge. Tags are
// dropped and images removed with their payload.
func RenderPlain(markup string, width int) string {
	markup = imgTag.ReplaceAllString(markup, "")

	var b strings.Builder
	for _, line := range strings.Split(markup, "\n") {
		align := "[L]"
		if m := alignToken.FindString(line); m != "" && strings.HasPrefix(line, m) {
			align = m
		}

		var segs []string
		for _, part := range alignToken.Split(line, -1) {
			part = strings.TrimSpace(anyTag.ReplaceAllString(part, ""))
			if part != "" {
				segs = append(segs, part)
			}
		}
		b.WriteString(layout(align, segs, width))
		b.WriteByte('\n')
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func layout(align string, segs []string, width int) string {
	switch len(segs) {
	case 0:
		return ""
	case 1:
		text := segs[0]
		n := utf8.RuneCountInString(text)
		pad := 0
		if width > 0 && n < width {
			switch align {
			case "[C]":
				pad = (width - n) / 2
			case "[R]":
				pad = width - n
			}
		}
		return strings.Repeat(" ", pad) + text
	}

	left := strings.Join(segs[:len(segs)-1], " ")
	right := segs[len(segs)-1]
	gap := width - utf8.RuneCountInString(left) - utf8.RuneCountInString(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}
