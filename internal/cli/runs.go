package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/ioseq/internal/snapshot"
)

// RunOutput describes one recorded run.
type RunOutput struct {
	ID        string `json:"id"`
	Source    string `json:"source"`
	StartedAt string `json:"started_at"`
	Messages  int64  `json:"messages"`
	Span      string `json:"span"`
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "runs <db>",
		Short:         "List recorded runs",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(cmd.Context(), rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runRuns(ctx context.Context, opts *RootOptions, dbPath string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	st, err := openExistingStore(dbPath)
	if errors.Is(err, fs.ErrNotExist) {
		return commandError(formatter, ErrCodeNotFound, fmt.Sprintf("recording not found: %s", dbPath))
	}
	if err != nil {
		return commandError(formatter, ErrCodeStore, err.Error())
	}
	defer st.Close()

	runs, err := st.Runs(ctx)
	if err != nil {
		return commandError(formatter, ErrCodeStore, err.Error())
	}

	out := make([]RunOutput, 0, len(runs))
	for _, r := range runs {
		out = append(out, RunOutput{
			ID:        r.ID,
			Source:    r.Source,
			StartedAt: r.StartedAt.Format(snapshot.TimestampLayout),
			Messages:  r.Messages,
			Span:      r.Last.Sub(r.First).String(),
		})
	}

	if formatter.Format == "json" {
		return formatter.Success(out)
	}

	if len(out) == 0 {
		fmt.Fprintln(formatter.Writer, "No runs recorded")
		return nil
	}
	tw := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSOURCE\tSTARTED\tMESSAGES\tSPAN")
	for _, r := range out {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", r.ID, r.Source, r.StartedAt, r.Messages, r.Span)
	}
	return tw.Flush()
}
