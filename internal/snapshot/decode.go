package snapshot

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/mitchellh/mapstructure"
)

var (
	// ErrMalformedSnapshot marks a payload missing required fields or carrying
	// fields of the wrong shape.
	ErrMalformedSnapshot = errors.New("malformed snapshot")

	// ErrMalformedTimestamp marks a timestamp that is not ISO-8601.
	ErrMalformedTimestamp = errors.New("malformed timestamp")
)

// DecodeError describes why a payload could not be decoded.
type DecodeError struct {
	Kind   error  // ErrMalformedSnapshot or ErrMalformedTimestamp
	Field  string // wire field name, empty for whole-payload problems
	Reason string
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("%v: field %q: %s", e.Kind, e.Field, e.Reason)
}

// Unwrap exposes the sentinel so errors.Is works on the kind.
func (e *DecodeError) Unwrap() error {
	return e.Kind
}

func malformed(field, format string, args ...any) *DecodeError {
	return &DecodeError{Kind: ErrMalformedSnapshot, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// wireSnapshot mirrors the JSON body. Pointers distinguish absent from empty.
type wireSnapshot struct {
	Timestamp      *string  `mapstructure:"timestamp"`
	Name           *string  `mapstructure:"name"`
	Status         *string  `mapstructure:"status"`
	DigitalOutputs *string  `mapstructure:"digitalOutputs"`
	DigitalInputs  *string  `mapstructure:"digitalInputs"`
	AnalogOutputs  *string  `mapstructure:"analogOutputs"`
	AnalogInputs   *string  `mapstructure:"analogInputs"`
	Errors         []string `mapstructure:"errors"`
}

// Decode converts one inbound state payload into a Snapshot.
//
// payload may be the decoded JSON document (map[string]any) or the raw JSON
// as []byte, json.RawMessage or string. Anything else is malformed.
func Decode(payload any) (Snapshot, error) {
	doc, err := asDocument(payload)
	if err != nil {
		return Snapshot{}, err
	}

	var w wireSnapshot
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &w,
		TagName: "mapstructure",
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot decoder: %w", err)
	}
	if err := dec.Decode(doc); err != nil {
		return Snapshot{}, malformed("", "%v", err)
	}

	if w.Timestamp == nil {
		return Snapshot{}, malformed("timestamp", "required")
	}
	if w.Name == nil || *w.Name == "" {
		return Snapshot{}, malformed("name", "required")
	}
	if w.Status == nil {
		return Snapshot{}, malformed("status", "required")
	}

	status := Status(*w.Status)
	if !status.Valid() {
		return Snapshot{}, malformed("status", "unknown status %q", *w.Status)
	}

	ts, err := ParseTimestamp(*w.Timestamp)
	if err != nil {
		return Snapshot{}, err
	}

	s := Snapshot{
		Timestamp: ts,
		EntityID:  *w.Name,
		Status:    status,
		Errors:    w.Errors,
	}

	buffers := []struct {
		field string
		raw   *string
		dst   *[]byte
	}{
		{"digitalOutputs", w.DigitalOutputs, &s.DigitalOutputs},
		{"digitalInputs", w.DigitalInputs, &s.DigitalInputs},
		{"analogOutputs", w.AnalogOutputs, &s.AnalogOutputs},
		{"analogInputs", w.AnalogInputs, &s.AnalogInputs},
	}
	for _, b := range buffers {
		if b.raw == nil || *b.raw == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(*b.raw)
		if err != nil {
			return Snapshot{}, malformed(b.field, "invalid base64: %v", err)
		}
		*b.dst = data
	}

	return s, nil
}

func asDocument(payload any) (map[string]any, error) {
	switch p := payload.(type) {
	case map[string]any:
		return p, nil
	case []byte:
		return unmarshalDocument(p)
	case json.RawMessage:
		return unmarshalDocument(p)
	case string:
		return unmarshalDocument([]byte(p))
	case nil:
		return nil, malformed("", "empty payload")
	default:
		return nil, malformed("", "unsupported payload type %T", payload)
	}
}

func unmarshalDocument(data []byte) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, malformed("", "payload is not a JSON object: %v", err)
	}
	if doc == nil {
		return nil, malformed("", "payload is null")
	}
	return doc, nil
}

// isoTimestamp splits an ISO-8601 timestamp into seconds, optional fraction
// and optional offset.
var isoTimestamp = regexp.MustCompile(
	`^(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2})(?:\.(\d+))?(Z|[+-]\d{2}:\d{2})?$`,
)

// ParseTimestamp parses an ISO-8601 timestamp with optional fractional seconds
// of any precision and optional Z/±HH:MM offset. The fraction is truncated or
// right-padded to microseconds. A missing offset means UTC.
func ParseTimestamp(s string) (time.Time, error) {
	m := isoTimestamp.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, &DecodeError{Kind: ErrMalformedTimestamp, Field: "timestamp", Reason: fmt.Sprintf("cannot parse %q", s)}
	}

	micros := (m[2] + "000000")[:6]
	zone := m[3]
	if zone == "" {
		zone = "Z"
	}

	ts, err := time.Parse(TimestampLayout, m[1]+"."+micros+zone)
	if err != nil {
		return time.Time{}, &DecodeError{Kind: ErrMalformedTimestamp, Field: "timestamp", Reason: err.Error()}
	}
	return ts, nil
}
