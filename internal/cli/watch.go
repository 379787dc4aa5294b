package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/ioseq/internal/router"
	"github.com/roach88/ioseq/internal/snapshot"
	"github.com/roach88/ioseq/internal/transport"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Duration    time.Duration
	MetricsAddr string
}

// WatchEvent is one line of JSON watch output.
type WatchEvent struct {
	Topic    string             `json:"topic"`
	Kind     string             `json:"kind"`
	Scope    string             `json:"scope,omitempty"`
	Entity   string             `json:"entity,omitempty"`
	Snapshot *snapshot.Snapshot `json:"snapshot,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print device state messages as they arrive",
		Long: `Print every device state message with its digital buffers as bit strings.

With --metrics-addr, Prometheus metrics for the session are served at
/metrics on that address.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.Duration, "duration", 0, "stop after this long (default: until interrupted)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (overrides profile)")

	return cmd
}

func runWatch(ctx context.Context, opts *WatchOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)
	logger := opts.logger(formatter.GetErrWriter())

	profile, err := opts.profile()
	if err != nil {
		return commandError(formatter, ErrCodeConfig, err.Error())
	}
	tel, err := newTelemetry()
	if err != nil {
		return commandError(formatter, ErrCodeGeneric, err.Error())
	}

	addr := profile.MetricsAddr
	if opts.MetricsAddr != "" {
		addr = opts.MetricsAddr
	}
	if addr != "" {
		srv, err := serveMetrics(addr, tel.registry, logger)
		if err != nil {
			return commandError(formatter, ErrCodeGeneric, fmt.Sprintf("metrics listener: %v", err))
		}
		defer srv.Shutdown()
		formatter.VerboseLog("Serving metrics on http://%s/metrics", srv.Addr())
	}

	sess, err := openSession(ctx, profile, logger, tel.metrics, printer(formatter))
	if err != nil {
		return commandError(formatter, ErrCodeTransport, err.Error())
	}
	defer sess.Close()
	formatter.VerboseLog("Watching %s", profile.Transport.Filter())

	var until time.Time
	if opts.Duration > 0 {
		until = sess.router.Clock().Now().Add(opts.Duration)
	}
	if err := sess.pump(ctx, until); err != nil {
		return commandError(formatter, ErrCodeTransport, err.Error())
	}
	return nil
}

// printer renders routed messages. It runs before the router decodes, so
// it decodes state payloads itself to show malformed ones too.
func printer(formatter *OutputFormatter) router.Observer {
	return func(msg transport.Message, route router.Route) {
		ev := WatchEvent{Topic: msg.Topic, Kind: string(route.Kind), Scope: route.Scope, Entity: route.EntityID}

		switch route.Kind {
		case router.TopicState:
			s, err := snapshot.Decode(msg.Payload)
			if err != nil {
				ev.Error = err.Error()
			} else {
				s.EntityID = route.EntityID
				ev.Snapshot = &s
			}
		case router.TopicCatalog:
		default:
			formatter.VerboseLog("ignored %s", msg.Topic)
			return
		}

		if formatter.Format == "json" {
			_ = json.NewEncoder(formatter.Writer).Encode(ev)
			return
		}
		switch {
		case ev.Snapshot != nil:
			fmt.Fprintln(formatter.Writer, ev.Snapshot)
		case ev.Error != "":
			fmt.Fprintf(formatter.Writer, "%s !! %s\n", msg.Topic, ev.Error)
		default:
			fmt.Fprintf(formatter.Writer, "catalog %s\n", ev.Scope)
		}
	}
}
