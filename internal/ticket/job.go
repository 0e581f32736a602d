package ticket

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrMalformedJob is returned when a print job cannot be decoded or is
// missing one of its required fields.
var ErrMalformedJob = errors.New("malformed print job")

// MalformedDateError reports an arrival timestamp too short to hold both a
// date and a time-of-day.
type MalformedDateError struct {
	Value string
}

func (e *MalformedDateError) Error() string {
	return fmt.Sprintf("malformed arrival date %q: need at least %d characters", e.Value, minArrivalLen)
}

func (e *MalformedDateError) Is(target error) bool {
	return target == ErrMalformedJob
}

// Job is a decoded print request. Fields are looked up lazily, so a body of
// the wrong shape still decodes and only fails once it is formatted.
type Job struct {
	fields map[string]any
}

// Decode parses a request body into a Job. Only bodies that are not a JSON
// object are rejected here; missing or mistyped fields surface when the job
// is formatted.
func Decode(body []byte) (*Job, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJob, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: body is not a JSON object", ErrMalformedJob)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after JSON object", ErrMalformedJob)
	}
	return &Job{fields: fields}, nil
}

// TicketFormat is senha.format.
func (j *Job) TicketFormat() (string, error) {
	return j.nested("senha", "format")
}

// PriorityName is prioridade.nome.
func (j *Job) PriorityName() (string, error) {
	return j.nested("prioridade", "nome")
}

// ServiceName is servico.nome.
func (j *Job) ServiceName() (string, error) {
	return j.nested("servico", "nome")
}

// Arrival is the raw dataChegada timestamp. It may be empty; length is
// checked by ArrivalParts.
func (j *Job) Arrival() (string, error) {
	v, ok := j.fields["dataChegada"]
	if !ok {
		return "", fmt.Errorf("%w: missing dataChegada", ErrMalformedJob)
	}
	s, ok := scalar(v)
	if !ok {
		return "", fmt.Errorf("%w: dataChegada is not a value", ErrMalformedJob)
	}
	return s, nil
}

func (j *Job) nested(object, key string) (string, error) {
	obj, ok := j.fields[object].(map[string]any)
	if !ok {
		return "", fmt.Errorf("%w: %s is missing or not an object", ErrMalformedJob, object)
	}
	s, ok := scalar(obj[key])
	if !ok || s == "" {
		return "", fmt.Errorf("%w: missing %s.%s", ErrMalformedJob, object, key)
	}
	return s, nil
}

// scalar renders strings, numbers and booleans as text. Numbers keep their
// literal form, so 7 stays "7" and 7.50 stays "7.50".
func scalar(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case bool:
		if x {
			return "true", true
		}
		return "false", true
	}
	return "", false
}

const minArrivalLen = 16

// ArrivalParts splits an ISO-8601-like timestamp into its "YYYY-MM-DD" and
// "HH:mm" parts. The string is sliced by character position, not parsed.
func ArrivalParts(s string) (date, clock string, err error) {
	r := []rune(s)
	if len(r) < minArrivalLen {
		return "", "", &MalformedDateError{Value: s}
	}
	return string(r[0:10]), string(r[11:16]), nil
}
