package snapshot

import (
	"bytes"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/roach88/ioseq/internal/bits"
)

// Status is the device-reported health of a snapshot.
type Status string

const (
	StatusOK           Status = "ok"
	StatusError        Status = "error"
	StatusPartialError Status = "partial_error"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOK, StatusError, StatusPartialError:
		return true
	}
	return false
}

// Kind selects the digital buffer a bit is read from.
type Kind string

const (
	KindInput  Kind = "input"
	KindOutput Kind = "output"
)

// Valid reports whether k is input or output.
func (k Kind) Valid() bool {
	return k == KindInput || k == KindOutput
}

// TimestampLayout is the wire layout used when encoding timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// Snapshot is one complete observation of an entity's I/O state.
//
// Snapshots are values and must not be mutated after construction; the cache
// stores clones so callers cannot alias its history.
type Snapshot struct {
	Timestamp      time.Time
	EntityID       string
	Status         Status
	DigitalOutputs []byte
	DigitalInputs  []byte
	AnalogOutputs  []byte
	AnalogInputs   []byte
	Errors         []string
}

// Clone returns a deep copy of s. Nil buffers stay nil.
func (s Snapshot) Clone() Snapshot {
	c := s
	c.DigitalOutputs = cloneBytes(s.DigitalOutputs)
	c.DigitalInputs = cloneBytes(s.DigitalInputs)
	c.AnalogOutputs = cloneBytes(s.AnalogOutputs)
	c.AnalogInputs = cloneBytes(s.AnalogInputs)
	if s.Errors != nil {
		c.Errors = slices.Clone(s.Errors)
	}
	return c
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return bytes.Clone(b)
}

// HasOutputs reports whether the snapshot carried digital output data.
func (s Snapshot) HasOutputs() bool { return s.DigitalOutputs != nil }

// HasInputs reports whether the snapshot carried digital input data.
func (s Snapshot) HasInputs() bool { return s.DigitalInputs != nil }

// OutputBit returns digital output bit i (0 or 1).
func (s Snapshot) OutputBit(i int) int { return bits.BitAt(s.DigitalOutputs, i) }

// InputBit returns digital input bit i (0 or 1).
func (s Snapshot) InputBit(i int) int { return bits.BitAt(s.DigitalInputs, i) }

// OutputBits returns all digital outputs in human order.
func (s Snapshot) OutputBits() []int { return bits.Bits(s.DigitalOutputs) }

// InputBits returns all digital inputs in human order.
func (s Snapshot) InputBits() []int { return bits.Bits(s.DigitalInputs) }

// Has reports whether the buffer selected by kind carried data.
func (s Snapshot) Has(kind Kind) bool {
	if kind == KindInput {
		return s.HasInputs()
	}
	return s.HasOutputs()
}

// Bit returns bit i of the buffer selected by kind.
func (s Snapshot) Bit(kind Kind, i int) int {
	if kind == KindInput {
		return s.InputBit(i)
	}
	return s.OutputBit(i)
}

// Equal compares two snapshots. Timestamps compare as instants; buffers
// compare byte-wise and a nil buffer differs from an empty one.
func (s Snapshot) Equal(o Snapshot) bool {
	return s.Timestamp.Equal(o.Timestamp) &&
		s.EntityID == o.EntityID &&
		s.Status == o.Status &&
		bufEqual(s.DigitalOutputs, o.DigitalOutputs) &&
		bufEqual(s.DigitalInputs, o.DigitalInputs) &&
		bufEqual(s.AnalogOutputs, o.AnalogOutputs) &&
		bufEqual(s.AnalogInputs, o.AnalogInputs) &&
		slices.Equal(s.Errors, o.Errors)
}

func bufEqual(a, b []byte) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return bytes.Equal(a, b)
}

// LogValue defers rendering until a handler actually emits the record.
func (s Snapshot) LogValue() slog.Value {
	return slog.StringValue(s.String())
}

// String renders the snapshot for logs and failure reports, with digital
// buffers shown as bit strings.
func (s Snapshot) String() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "%s %s status=%s", s.Timestamp.Format(TimestampLayout), s.EntityID, s.Status)
	fmt.Fprintf(&buf, " outputs=%s", renderBuffer(s.DigitalOutputs))
	fmt.Fprintf(&buf, " inputs=%s", renderBuffer(s.DigitalInputs))
	if len(s.Errors) > 0 {
		fmt.Fprintf(&buf, " errors=%q", s.Errors)
	}
	return buf.String()
}

func renderBuffer(b []byte) string {
	if b == nil {
		return "-"
	}
	return "[" + bits.String(b) + "]"
}
