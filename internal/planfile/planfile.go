// Package planfile loads sequence plans from YAML files.
//
// A plan file names the scenario, an optional timeout and the builder
// directives in order:
//
//	name: kitchen-long-press
//	timeout: 6s
//	sequence:
//	  - input: {device: io-kitchen, bit: 4, value: 1}
//	  - after: 1.5
//	  - input: {device: io-kitchen, bit: 4, value: 0}
//
// Durations inside the sequence are seconds. Files are decoded strictly
// (unknown keys are errors), checked against an embedded CUE schema, and
// then replayed through sequence.Builder so plan rules are enforced in one
// place.
package planfile

import (
	"bytes"
	_ "embed"
	"fmt"
	"math"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/ioseq/internal/sequence"
)

//go:embed schema.cue
var schemaSource string

// File is a decoded plan file.
type File struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	Timeout     Duration    `yaml:"timeout,omitempty"`
	Sequence    []Directive `yaml:"sequence"`
}

// Directive is one builder call. Exactly one field is set.
type Directive struct {
	Input   *Signal  `yaml:"input,omitempty"`
	Output  *Signal  `yaml:"output,omitempty"`
	After   *float64 `yaml:"after,omitempty"`
	Before  *float64 `yaml:"before,omitempty"`
	Between *Window  `yaml:"between,omitempty"`
	Never   bool     `yaml:"never,omitempty"`
}

// Signal names a bit value of a device.
type Signal struct {
	Device string `yaml:"device"`
	Bit    int    `yaml:"bit"`
	Value  int    `yaml:"value"`
}

// Window bounds an interval in seconds.
type Window struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Duration is a time.Duration written as a Go duration string ("6s").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: timeout: %w", node.Line, err)
	}
	if parsed < 0 {
		return fmt.Errorf("line %d: timeout: must not be negative", node.Line)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Load reads and parses a plan file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates plan file contents.
func Parse(data []byte) (*File, error) {
	var f File
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateSchema(doc); err != nil {
		return nil, fmt.Errorf("invalid plan file: %w", err)
	}

	return &f, nil
}

func validateSchema(doc any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compiling schema: %w", err)
	}

	value := ctx.Encode(doc)
	if err := value.Err(); err != nil {
		return err
	}

	plan := schema.LookupPath(cue.ParsePath("#Plan")).Unify(value)
	return plan.Validate(cue.Concrete(true))
}

// Plan replays the directives through a sequence.Builder.
func (f *File) Plan() (sequence.Plan, error) {
	b := sequence.NewBuilder()
	for i, d := range f.Sequence {
		if err := d.apply(b); err != nil {
			return sequence.Plan{}, fmt.Errorf("sequence[%d]: %w", i, err)
		}
	}
	return b.Build()
}

// TimeoutOr returns the file's timeout, or def when none is set.
func (f *File) TimeoutOr(def time.Duration) time.Duration {
	if f.Timeout <= 0 {
		return def
	}
	return time.Duration(f.Timeout)
}

func (d Directive) apply(b *sequence.Builder) error {
	set := 0
	for _, ok := range []bool{d.Input != nil, d.Output != nil, d.After != nil, d.Before != nil, d.Between != nil, d.Never} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("expected exactly one directive, got %d", set)
	}

	switch {
	case d.Input != nil:
		b.Input(d.Input.Device, d.Input.Bit, d.Input.Value == 1)
	case d.Output != nil:
		b.Output(d.Output.Device, d.Output.Bit, d.Output.Value == 1)
	case d.After != nil:
		b.After(seconds(*d.After))
	case d.Before != nil:
		b.Before(seconds(*d.Before))
	case d.Between != nil:
		b.Between(seconds(d.Between.Min), seconds(d.Between.Max))
	case d.Never:
		b.Never()
	}
	return nil
}

// seconds converts fractional seconds to a Duration at microsecond
// precision.
func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s*1e6)) * time.Microsecond
}
