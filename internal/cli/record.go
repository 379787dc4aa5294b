package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/ioseq/internal/router"
	"github.com/roach88/ioseq/internal/store"
	"github.com/roach88/ioseq/internal/transport"
)

// RecordOptions holds flags for the record command.
type RecordOptions struct {
	*RootOptions
	Duration time.Duration // zero records until interrupted
}

// RecordResult summarises a finished recording.
type RecordResult struct {
	Database string `json:"database"`
	RunID    string `json:"run_id"`
	Source   string `json:"source"`
	Messages int64  `json:"messages"`
}

// NewRecordCommand creates the record command.
func NewRecordCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "record <db>",
		Short: "Record bus traffic for offline verification",
		Long: `Record every message received on the bus into a SQLite database.

Each invocation creates a new run. Verify plans against it later with
'ioseq verify <plan> --recording <db> --run <id>'.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.Duration, "duration", 0, "stop after this long (default: until interrupted)")

	return cmd
}

func runRecord(ctx context.Context, opts *RecordOptions, dbPath string, cmd *cobra.Command) error {
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

	st, err := store.Open(dbPath, store.WithMetrics(tel.metrics))
	if err != nil {
		return commandError(formatter, ErrCodeStore, err.Error())
	}
	defer st.Close()

	source := profile.Transport.Filter()
	rec, err := st.StartRun(ctx, source, time.Now().UTC())
	if err != nil {
		return commandError(formatter, ErrCodeStore, err.Error())
	}
	formatter.VerboseLog("Recording run %s from %s", rec.RunID(), source)

	var recordErr error
	observe := func(msg transport.Message, _ router.Route) {
		if recordErr != nil {
			return
		}
		if err := rec.Record(ctx, msg); err != nil {
			recordErr = err
			logger.Error("record message", "topic", msg.Topic, "error", err)
		}
	}

	sess, err := openSession(ctx, profile, logger, tel.metrics, observe)
	if err != nil {
		return commandError(formatter, ErrCodeTransport, err.Error())
	}
	defer sess.Close()

	var until time.Time
	if opts.Duration > 0 {
		until = sess.router.Clock().Now().Add(opts.Duration)
	}
	if err := sess.pump(ctx, until); err != nil {
		return commandError(formatter, ErrCodeTransport, err.Error())
	}
	if recordErr != nil {
		return commandError(formatter, ErrCodeStore, recordErr.Error())
	}

	result := RecordResult{Database: dbPath, RunID: rec.RunID(), Source: source, Messages: rec.Count()}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Recorded %d message(s) to run %s in %s\n", result.Messages, result.RunID, result.Database)
	return nil
}
