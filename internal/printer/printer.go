package printer

import (
	"context"
	"errors"
	"image"
)

// ErrUnsupported is returned by drivers that lack an optional capability.
var ErrUnsupported = errors.New("operation not supported by driver")

// Settings describe the paper and head of an opened printer.
type Settings struct {
	DPI          int
	WidthMM      float64
	CharsPerLine int
}

// DefaultSettings match a 58mm head printing a 48mm wide area at 203 dpi.
var DefaultSettings = Settings{DPI: 203, WidthMM: 48, CharsPerLine: 32}

// Driver finds attached printers.
type Driver interface {
	// SelectFirstConnected returns the first reachable device, or false
	// when none is attached.
	SelectFirstConnected(ctx context.Context) (Device, bool)
}

// Device is an attached but not yet opened printer.
type Device interface {
	Name() string
	Open(ctx context.Context, s Settings) (Printer, error)
}

// Printer is an opened device accepting receipt markup.
type Printer interface {
	// PrintFormattedTextAndCut prints markup and cuts the paper. Drivers
	// stop writing once ctx is done.
	PrintFormattedTextAndCut(ctx context.Context, markup string) error
	// BitmapToHexString encodes img in the form the markup <img> tag expects.
	BitmapToHexString(img image.Image) (string, error)
	Close() error
}
