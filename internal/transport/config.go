package transport

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Kind names a bus implementation.
type Kind string

const (
	KindMQTT  Kind = "mqtt"
	KindNATS  Kind = "nats"
	KindRedis Kind = "redis"
)

// Kinds lists the supported bus implementations.
var Kinds = []Kind{KindMQTT, KindNATS, KindRedis}

// Config describes a bus connection.
type Config struct {
	Kind           Kind          `yaml:"kind"`
	URL            string        `yaml:"url"`
	ClientID       string        `yaml:"client_id"`
	Root           string        `yaml:"root"`
	QoS            byte          `yaml:"qos"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

const defaultConnectTimeout = 10 * time.Second

func (c Config) connectTimeout() time.Duration {
	if c.ConnectTimeout <= 0 {
		return defaultConnectTimeout
	}
	return c.ConnectTimeout
}

// Filter returns the subscription filter for the configured root in the
// wildcard syntax of the bus kind.
func (c Config) Filter() string {
	switch c.Kind {
	case KindNATS:
		if c.Root == "" {
			return ">"
		}
		return c.Root + ".>"
	case KindRedis:
		if c.Root == "" {
			return "*"
		}
		return c.Root + "/*"
	default:
		if c.Root == "" {
			return "#"
		}
		return c.Root + "/#"
	}
}

// Dial connects to the configured bus and starts delivering into q.
func Dial(ctx context.Context, cfg Config, q *Queue, logger *slog.Logger) (Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Kind {
	case KindMQTT, "":
		return DialMQTT(cfg, q, logger)
	case KindNATS:
		return DialNATS(cfg, q, logger)
	case KindRedis:
		return DialRedis(ctx, cfg, q, logger)
	default:
		return nil, fmt.Errorf("unknown transport kind %q (valid: mqtt, nats, redis)", cfg.Kind)
	}
}
