package ticket

import (
	"strings"

	"ticketprint/internal/textnorm"
)

// ErrorTicket is printed in place of a ticket that could not be formatted.
const ErrorTicket = "Erro ao formatar o ticket."

const (
	DefaultFacility = "Minha unidade"
	DefaultBrand    = "Novo SGA"

	localTimeLabel = "Horário local"
)

// Formatter renders jobs into the driver's receipt markup.
type Formatter struct {
	Facility string
	Brand    string
	// NormalizeValues also strips diacritics from job fields, not only
	// from the fixed labels.
	NormalizeValues bool
}

func NewFormatter() *Formatter {
	return &Formatter{Facility: DefaultFacility, Brand: DefaultBrand}
}

func (f *Formatter) value(s string) string {
	if f.NormalizeValues && textnorm.Has(s) {
		return textnorm.Normalize(s)
	}
	return s
}

// Format renders job. logoHex is the driver's hex encoding of the header
// image; the image line is left out when it is empty. Nothing is returned
// alongside an error.
func (f *Formatter) Format(job *Job, logoHex string) (string, error) {
	if job == nil {
		return "", ErrMalformedJob
	}
	format, err := job.TicketFormat()
	if err != nil {
		return "", err
	}
	priority, err := job.PriorityName()
	if err != nil {
		return "", err
	}
	service, err := job.ServiceName()
	if err != nil {
		return "", err
	}
	arrival, err := job.Arrival()
	if err != nil {
		return "", err
	}
	date, clock, err := ArrivalParts(arrival)
	if err != nil {
		return "", err
	}

	facility := f.Facility
	if facility == "" {
		facility = DefaultFacility
	}
	brand := f.Brand
	if brand == "" {
		brand = DefaultBrand
	}
	label := textnorm.Normalize(localTimeLabel)

	var b strings.Builder
	if logoHex != "" {
		b.WriteString("[C]<img>" + logoHex + "</img>\n")
	}
	b.WriteString("[L]\n")
	b.WriteString("[C]<font size='big'>" + facility + "</font>\n")
	b.WriteString("[C]" + brand + "\n\n")

	b.WriteString("[C]<font size='tall'>" + f.value(priority) + "</font>\n\n")
	b.WriteString("[C]<font size='big'>" + f.value(format) + "</font>\n\n")

	b.WriteString("[C]" + f.value(service) + "\n\n")

	b.WriteString("[C]" + date + "\n")
	b.WriteString("[C]Hora de chegada " + clock + "\n")
	b.WriteString("[C]( " + label + " )\n\n")

	b.WriteString("[C]" + brand + "\n")
	b.WriteString("[L]\n")
	b.WriteString("[L]\n")

	return b.String(), nil
}

// FormatOrFallback is Format, except that a failure yields ErrorTicket so
// the caller always has something printable. The error is still returned.
func (f *Formatter) FormatOrFallback(job *Job, logoHex string) (string, error) {
	out, err := f.Format(job, logoHex)
	if err != nil {
		return ErrorTicket, err
	}
	return out, nil
}
