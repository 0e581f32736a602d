package ticket

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validBody = `{
	"senha": {"format": "P001"},
	"prioridade": {"nome": "Prioritário"},
	"servico": {"nome": "Atendimento Geral"},
	"dataChegada": "2024-03-07T14:32:00"
}`

func TestArrivalParts(t *testing.T) {
	date, clock, err := ArrivalParts("2024-03-07T14:32:00")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-07", date)
	assert.Equal(t, "14:32", clock)

	// Exactly 16 characters is enough.
	date, clock, err = ArrivalParts("2024-03-07 09:05")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-07", date)
	assert.Equal(t, "09:05", clock)

	// Positions count characters, not bytes.
	date, clock, err = ArrivalParts("2024-03-０7T14:32")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-０7", date)
	assert.Equal(t, "14:32", clock)

	for _, short := range []string{"", "2024-03-07", "2024-03-07T14:3", "2024-03-０7T14:"} {
		_, _, err = ArrivalParts(short)
		var dateErr *MalformedDateError
		require.ErrorAs(t, err, &dateErr, short)
		assert.Equal(t, short, dateErr.Value)
		assert.ErrorIs(t, err, ErrMalformedJob)
	}
}

func TestDecode(t *testing.T) {
	job, err := Decode([]byte(validBody))
	require.NoError(t, err)

	format, err := job.TicketFormat()
	require.NoError(t, err)
	assert.Equal(t, "P001", format)
	priority, err := job.PriorityName()
	require.NoError(t, err)
	assert.Equal(t, "Prioritário", priority)
	service, err := job.ServiceName()
	require.NoError(t, err)
	assert.Equal(t, "Atendimento Geral", service)
	arrival, err := job.Arrival()
	require.NoError(t, err)
	assert.Equal(t, "2024-03-07T14:32:00", arrival)

	for _, body := range []string{`{"senha":`, "", "not json", `[]`, `"text"`, `null`, `{} {}`} {
		_, err = Decode([]byte(body))
		require.ErrorIs(t, err, ErrMalformedJob, body)
	}
}

func TestDecodeWrongShapeStillDecodes(t *testing.T) {
	job, err := Decode([]byte(`{"senha":"A1","prioridade":{"nome":"N"},"servico":{"nome":"S"},"dataChegada":"2024-03-07T14:32:00"}`))
	require.NoError(t, err)

	_, err = job.TicketFormat()
	require.ErrorIs(t, err, ErrMalformedJob)
}

func TestScalarFieldsAreStringified(t *testing.T) {
	body := `{"senha":{"format":7},"prioridade":{"nome":true},"servico":{"nome":1.50},"dataChegada":"2024-03-07T14:32:00"}`
	job, err := Decode([]byte(body))
	require.NoError(t, err)

	out, err := NewFormatter().Format(job, "")
	require.NoError(t, err)
	assert.Contains(t, out, "[C]<font size='big'>7</font>\n")
	assert.Contains(t, out, "[C]<font size='tall'>true</font>\n")
	assert.Contains(t, out, "[C]1.50\n")
}

func TestFormat(t *testing.T) {
	job, err := Decode([]byte(validBody))
	require.NoError(t, err)

	out, err := NewFormatter().Format(job, "")
	require.NoError(t, err)

	expected := "[L]\n" +
		"[C]<font size='big'>Minha unidade</font>\n" +
		"[C]Novo SGA\n\n" +
		"[C]<font size='tall'>Prioritário</font>\n\n" +
		"[C]<font size='big'>P001</font>\n\n" +
		"[C]Atendimento Geral\n\n" +
		"[C]2024-03-07\n" +
		"[C]Hora de chegada 14:32\n" +
		"[C]( Horario local )\n\n" +
		"[C]Novo SGA\n" +
		"[L]\n" +
		"[L]\n"
	assert.Equal(t, expected, out)
}

func TestFormatWithLogo(t *testing.T) {
	job, err := Decode([]byte(validBody))
	require.NoError(t, err)

	out, err := NewFormatter().Format(job, "ABCDEF")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "[C]<img>ABCDEF</img>\n[L]\n"))
}

func TestFormatSectionOrder(t *testing.T) {
	job, err := Decode([]byte(validBody))
	require.NoError(t, err)

	f := &Formatter{Facility: "Unidade Centro", Brand: "Fila", NormalizeValues: true}
	out, err := f.Format(job, "")
	require.NoError(t, err)

	order := []string{"Unidade Centro", "Prioritario", "P001", "Atendimento Geral", "2024-03-07", "14:32"}
	last := -1
	for _, want := range order {
		idx := strings.Index(out, want)
		require.GreaterOrEqual(t, idx, 0, want)
		assert.Greater(t, idx, last, want)
		last = idx
	}
	assert.NotContains(t, out, "á")
}

func TestFormatMissingFields(t *testing.T) {
	bodies := []string{
		`{"prioridade":{"nome":"N"},"servico":{"nome":"S"},"dataChegada":"2024-03-07T14:32:00"}`,
		`{"senha":{"format":"A1"},"servico":{"nome":"S"},"dataChegada":"2024-03-07T14:32:00"}`,
		`{"senha":{"format":"A1"},"prioridade":{"nome":"N"},"dataChegada":"2024-03-07T14:32:00"}`,
		`{"senha":{"format":"A1"},"prioridade":{"nome":"N"},"servico":{"nome":"S"}}`,
		`{"senha":{"format":""},"prioridade":{"nome":"N"},"servico":{"nome":"S"},"dataChegada":"2024-03-07T14:32:00"}`,
		`{"senha":"A1","prioridade":{"nome":"N"},"servico":{"nome":"S"},"dataChegada":"2024-03-07T14:32:00"}`,
		`{"senha":{"format":{"x":1}},"prioridade":{"nome":"N"},"servico":{"nome":"S"},"dataChegada":"2024-03-07T14:32:00"}`,
		`{"senha":{"format":"A1"},"prioridade":["N"],"servico":{"nome":"S"},"dataChegada":"2024-03-07T14:32:00"}`,
		`{"senha":{"format":"A1"},"prioridade":{"nome":"N"},"servico":{"nome":null},"dataChegada":"2024-03-07T14:32:00"}`,
		`{"senha":{"format":"A1"},"prioridade":{"nome":"N"},"servico":{"nome":"S"},"dataChegada":{}}`,
	}
	for _, body := range bodies {
		job, err := Decode([]byte(body))
		require.NoError(t, err)

		out, err := NewFormatter().Format(job, "")
		require.ErrorIs(t, err, ErrMalformedJob, body)
		assert.Empty(t, out)
	}
}

func TestFormatShortDate(t *testing.T) {
	for _, arrival := range []string{"2024-03-07", ""} {
		job, err := Decode([]byte(`{"senha":{"format":"A1"},"prioridade":{"nome":"Normal"},"servico":{"nome":"Caixa"},"dataChegada":"` + arrival + `"}`))
		require.NoError(t, err)

		out, err := NewFormatter().Format(job, "")
		var dateErr *MalformedDateError
		require.True(t, errors.As(err, &dateErr), arrival)
		assert.Equal(t, arrival, dateErr.Value)
		assert.Empty(t, out)

		out, err = NewFormatter().FormatOrFallback(job, "")
		require.Error(t, err)
		assert.Equal(t, ErrorTicket, out)
	}
}

func TestFormatNilJob(t *testing.T) {
	out, err := NewFormatter().FormatOrFallback(nil, "")
	require.ErrorIs(t, err, ErrMalformedJob)
	assert.Equal(t, "Erro ao formatar o ticket.", out)
}
