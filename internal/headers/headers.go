package headers

import (
	"bytes"
	"errors"
	"strings"
)

// Headers keeps header fields in arrival order. Parsed requests also keep
// every raw line, including ones that do not split into name and value.
type Headers struct {
	fields []field
	raw    []string
	strict bool
}

type field struct {
	name  string // lowercase
	value string
}

var (
	ErrMalformedHeaderLine = errors.New("malformed header-line")
	ErrHeaderLineTooLong   = errors.New("header line too long")
	ErrTooManyHeaders      = errors.New("too many header lines")
)

// Per-line cap; enforce a total cap at a higher layer.
const maxHeaderLine = 8 * 1024 // 8 KiB

const maxHeaderLines = 256

// NewHeaders returns a lenient header set: any line up to the blank line is
// accepted and kept raw.
func NewHeaders() *Headers { return &Headers{} }

// NewStrictHeaders rejects lines that are not valid "name: value" fields.
func NewStrictHeaders() *Headers { return &Headers{strict: true} }

// Get should be case-insensitive.
func (h *Headers) Get(name string) string {
	name = strings.ToLower(name)
	for _, f := range h.fields {
		if f.name == name {
			return f.value
		}
	}
	return ""
}

func (h *Headers) Has(name string) bool {
	name = strings.ToLower(name)
	for _, f := range h.fields {
		if f.name == name {
			return true
		}
	}
	return false
}

func (h *Headers) Delete(name string) {
	name = strings.ToLower(name)
	kept := h.fields[:0]
	for _, f := range h.fields {
		if f.name != name {
			kept = append(kept, f)
		}
	}
	h.fields = kept
}

// Set appends value to an existing field (comma separated) or adds a new one.
func (h *Headers) Set(name, value string) {
	name = strings.ToLower(name)
	for i, f := range h.fields {
		if f.name == name {
			h.fields[i].value = f.value + "," + value
			return
		}
	}
	h.fields = append(h.fields, field{name: name, value: value})
}

func (h *Headers) Override(name, value string) {
	name = strings.ToLower(name)
	for i, f := range h.fields {
		if f.name == name {
			h.fields[i].value = value
			return
		}
	}
	h.fields = append(h.fields, field{name: name, value: value})
}

func (h *Headers) Len() int { return len(h.fields) }

// Each calls fn for every field in insertion order.
func (h *Headers) Each(fn func(name, value string)) {
	for _, f := range h.fields {
		fn(f.name, f.value)
	}
}

// Lines returns the raw header lines as received.
func (h *Headers) Lines() []string {
	return h.raw
}

// LineWithPrefix returns the first raw line starting with prefix. The match
// is exact and case-sensitive.
func (h *Headers) LineWithPrefix(prefix string) (string, bool) {
	for _, l := range h.raw {
		if strings.HasPrefix(l, prefix) {
			return l, true
		}
	}
	return "", false
}

// Parse consumes header lines from data until the blank line ending the
// block. Lines may end in CRLF or a bare LF. With atEOF set a final
// unterminated line is taken as is and the block is considered complete.
func (h *Headers) Parse(data []byte, atEOF bool) (n int, done bool, err error) {
	off := 0
	for {
		idx := bytes.IndexByte(data[off:], '\n')
		if idx == -1 {
			rest := data[off:]
			// If current unterminated line exceeds cap, fail (prevents DoS).
			if len(rest) > maxHeaderLine {
				return 0, false, ErrHeaderLineTooLong
			}
			if !atEOF {
				return off, false, nil // need more bytes
			}
			if line := bytes.TrimSuffix(rest, []byte("\r")); len(line) > 0 {
				if err := h.addLine(line); err != nil {
					return 0, false, err
				}
			}
			return len(data), true, nil
		}
		if idx > maxHeaderLine {
			return 0, false, ErrHeaderLineTooLong
		}

		line := bytes.TrimSuffix(data[off:off+idx], []byte("\r"))
		off += idx + 1 // consume line + LF

		// Blank line => end of headers
		if len(line) == 0 {
			return off, true, nil
		}

		if err := h.addLine(line); err != nil {
			return 0, false, err
		}
	}
}

func (h *Headers) addLine(line []byte) error {
	if len(h.raw) >= maxHeaderLines {
		return ErrTooManyHeaders
	}

	name, value, err := splitField(line)
	if err != nil {
		if h.strict {
			return err
		}
		h.raw = append(h.raw, string(line))
		return nil
	}
	h.raw = append(h.raw, string(line))
	h.Set(name, value)
	return nil
}

func splitField(line []byte) (name, value string, err error) {
	// Reject obsolete folding (starts with SP/HTAB)
	if line[0] == ' ' || line[0] == '\t' {
		return "", "", ErrMalformedHeaderLine
	}

	// Find first colon (values may contain additional colons)
	colon := bytes.IndexByte(line, ':')
	if colon <= 0 { // no colon or empty field-name
		return "", "", ErrMalformedHeaderLine
	}

	nameRaw := line[:colon]

	// Field-name MUST NOT contain SP/HTAB anywhere.
	if bytes.ContainsAny(nameRaw, " \t") {
		return "", "", ErrMalformedHeaderLine
	}

	if !isTokenTable(nameRaw) {
		return "", "", ErrMalformedHeaderLine
	}

	// Trim optional whitespace around the value
	return strings.ToLower(string(nameRaw)), strings.Trim(string(line[colon+1:]), " \t"), nil
}

var allowed [256]bool

func init() {
	for c := byte('0'); c <= '9'; c++ {
		allowed[c] = true
	}
	for c := byte('A'); c <= 'Z'; c++ {
		allowed[c] = true
	}
	for c := byte('a'); c <= 'z'; c++ {
		allowed[c] = true
	}
	for _, c := range []byte("!#$%&'*+-.^_`|~") {
		allowed[c] = true
	}
}

func isTokenTable(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	for _, c := range b {
		if c > 127 || !allowed[c] {
			return false
		}
	}
	return true
}
