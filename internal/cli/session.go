package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/ioseq/internal/cache"
	"github.com/roach88/ioseq/internal/config"
	"github.com/roach88/ioseq/internal/metrics"
	"github.com/roach88/ioseq/internal/router"
	"github.com/roach88/ioseq/internal/snapshot"
	"github.com/roach88/ioseq/internal/store"
	"github.com/roach88/ioseq/internal/transport"
)

// telemetry is the per-invocation metrics registry.
type telemetry struct {
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

func newTelemetry() (*telemetry, error) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	return &telemetry{registry: reg, metrics: m}, nil
}

// session is a live bus connection feeding a router.
type session struct {
	profile config.Profile
	logger  *slog.Logger
	source  transport.Source
	router  *router.Router
}

// openSession dials the profile's bus and wires it to a fresh cache.
func openSession(ctx context.Context, p config.Profile, logger *slog.Logger, m *metrics.Metrics, observers ...router.Observer) (*session, error) {
	q := transport.NewQueue(p.QueueCapacity)
	q.OnDrop(func(msg transport.Message) {
		m.Dropped()
		logger.Warn("queue full, dropped oldest message", "topic", msg.Topic)
	})

	src, err := transport.Dial(ctx, p.Transport, q, logger)
	if err != nil {
		q.Close()
		return nil, err
	}

	opts := []router.Option{
		router.WithRoot(p.Transport.Root),
		router.WithMaxPullWait(p.MaxPullWait),
		router.WithLogger(logger),
		router.WithMetrics(m),
	}
	for _, obs := range observers {
		opts = append(opts, router.WithObserver(obs))
	}

	logger.Info("session started", "kind", p.Transport.Kind, "url", p.Transport.URL, "filter", p.Transport.Filter())
	return &session{
		profile: p,
		logger:  logger,
		source:  src,
		router:  router.New(src, cache.New(), opts...),
	}, nil
}

func (s *session) Close() error {
	return s.source.Close()
}

// pump routes messages until ctx ends or until passes (zero: no limit).
// Malformed state payloads are logged by the router and skipped.
func (s *session) pump(ctx context.Context, until time.Time) error {
	clk := s.router.Clock()
	for {
		if ctx.Err() != nil {
			return nil
		}
		now := clk.Now()
		if !until.IsZero() && !now.Before(until) {
			return nil
		}

		next := now.Add(s.profile.MaxPullWait)
		if !until.IsZero() && until.Before(next) {
			next = until
		}

		err := s.router.DrainUntil(ctx, next)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil
		case isDecodeErr(err):
		default:
			return err
		}
	}
}

func isDecodeErr(err error) bool {
	return errors.Is(err, snapshot.ErrMalformedSnapshot) || errors.Is(err, snapshot.ErrMalformedTimestamp)
}

// openExistingStore opens a recording database that must already exist.
func openExistingStore(path string, opts ...store.Option) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return store.Open(path, opts...)
}

// commandError reports a command-level failure (exit code 2).
func commandError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// failure reports a verification or validation failure (exit code 1).
func failure(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	return NewExitError(ExitFailure, fmt.Sprintf("%s: %s", code, message))
}
