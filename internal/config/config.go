// Package config loads the connection profile shared by the CLI commands.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/ioseq/internal/router"
	"github.com/roach88/ioseq/internal/sequence"
	"github.com/roach88/ioseq/internal/transport"
)

// Defaults.
const (
	DefaultURL          = "tcp://localhost:1883"
	DefaultTimeout      = 8 * time.Second
	DefaultMaxPullWait  = router.DefaultMaxPullWait
	DefaultPollInterval = sequence.DefaultPollInterval
	DefaultRecentTail   = sequence.DefaultRecentTail
)

// Profile is a bus connection plus verification tuning.
type Profile struct {
	Transport     transport.Config `yaml:"transport"`
	Timeout       time.Duration    `yaml:"timeout"`
	MaxPullWait   time.Duration    `yaml:"max_pull_wait"`
	PollInterval  time.Duration    `yaml:"poll_interval"`
	QueueCapacity int              `yaml:"queue_capacity"`
	RecentTail    int              `yaml:"recent_tail"`
	MetricsAddr   string           `yaml:"metrics_addr"`
}

// Default returns the profile used when no file is given.
func Default() Profile {
	return Profile{
		Transport: transport.Config{
			Kind: transport.KindMQTT,
			URL:  DefaultURL,
			Root: router.DefaultRoot,
		},
		Timeout:       DefaultTimeout,
		MaxPullWait:   DefaultMaxPullWait,
		PollInterval:  DefaultPollInterval,
		QueueCapacity: transport.DefaultQueueCapacity,
		RecentTail:    DefaultRecentTail,
	}
}

// Load reads a profile file. Keys absent from the file keep their defaults.
func Load(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to read config: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return Profile{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Parse decodes profile contents over the defaults.
func Parse(data []byte) (Profile, error) {
	p := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return Profile{}, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := p.Validate(); err != nil {
		return Profile{}, fmt.Errorf("invalid config: %w", err)
	}
	return p, nil
}

// Validate checks the profile for values no component can run with.
func (p Profile) Validate() error {
	if !slices.Contains(transport.Kinds, p.Transport.Kind) {
		return fmt.Errorf("transport.kind: unknown kind %q (valid: mqtt, nats, redis)", p.Transport.Kind)
	}
	if p.Transport.URL == "" {
		return errors.New("transport.url is required")
	}
	if p.Transport.QoS > 2 {
		return fmt.Errorf("transport.qos: %d is not 0, 1 or 2", p.Transport.QoS)
	}
	if p.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if p.MaxPullWait <= 0 {
		return errors.New("max_pull_wait must be positive")
	}
	if p.PollInterval <= 0 {
		return errors.New("poll_interval must be positive")
	}
	if p.QueueCapacity <= 0 {
		return errors.New("queue_capacity must be positive")
	}
	if p.RecentTail < 0 {
		return errors.New("recent_tail must not be negative")
	}
	return nil
}
