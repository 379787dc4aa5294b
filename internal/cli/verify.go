package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/ioseq/internal/cache"
	"github.com/roach88/ioseq/internal/clock"
	"github.com/roach88/ioseq/internal/config"
	"github.com/roach88/ioseq/internal/planfile"
	"github.com/roach88/ioseq/internal/router"
	"github.com/roach88/ioseq/internal/scenario"
	"github.com/roach88/ioseq/internal/sequence"
	"github.com/roach88/ioseq/internal/snapshot"
	"github.com/roach88/ioseq/internal/store"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Recording string        // recording database; empty verifies against the live bus
	Run       string        // run ID within the recording; empty selects the latest
	Timeout   time.Duration // overrides the plan file and profile timeouts
}

// VerifyResult is the outcome of one verification.
type VerifyResult struct {
	Plan    string         `json:"plan"`
	Source  string         `json:"source"`
	Passed  bool           `json:"passed"`
	Steps   []StepOutput   `json:"steps"`
	Failure *FailureOutput `json:"failure,omitempty"`
}

// StepOutput describes one matched step.
type StepOutput struct {
	Index   int    `json:"index"`
	Step    string `json:"step"`
	Matched bool   `json:"matched"`
	At      string `json:"at,omitempty"`
	Elapsed string `json:"elapsed,omitempty"`
}

// FailureOutput describes why a verification failed.
type FailureOutput struct {
	Code      string   `json:"code"`
	StepIndex int      `json:"step_index"`
	Step      string   `json:"step"`
	PrevMatch string   `json:"prev_match,omitempty"`
	At        string   `json:"at"`
	Observed  string   `json:"observed,omitempty"`
	Recent    []string `json:"recent"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify <plan.yaml>",
		Short: "Verify a sequence plan against device traffic",
		Long: `Verify a sequence plan against the live bus or a recording.

Live mode subscribes using the connection profile and waits up to the plan
timeout for every step to match. With --recording the plan is checked
against a recorded run instead; time advances virtually, so a failing plan
reports immediately.

Exit codes:
  0 - All steps matched
  1 - Sequence failed (timeout, forbidden value, malformed payload)
  2 - Command error (invalid plan, bus unreachable, unknown run, etc.)

Examples:
  ioseq verify plans/long-press.yaml
  ioseq verify plans/long-press.yaml --config nats.yaml --timeout 20s
  ioseq verify plans/long-press.yaml --recording bench.db --run 0190...`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Recording, "recording", "", "verify against a recording database")
	cmd.Flags().StringVar(&opts.Run, "run", "", "run ID within the recording (default: latest)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "verification timeout (default: plan file, then profile)")

	return cmd
}

func runVerify(ctx context.Context, opts *VerifyOptions, path string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)
	logger := opts.logger(formatter.GetErrWriter())

	profile, err := opts.profile()
	if err != nil {
		return commandError(formatter, ErrCodeConfig, err.Error())
	}

	f, err := planfile.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return commandError(formatter, ErrCodeNotFound, fmt.Sprintf("plan file not found: %s", path))
	}
	if err != nil {
		return commandError(formatter, ErrCodeInvalidPlan, err.Error())
	}
	plan, err := f.Plan()
	if err != nil {
		return commandError(formatter, ErrCodeInvalidPlan, fmt.Sprintf("%s: %v", path, err))
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = f.TimeoutOr(profile.Timeout)
	}
	formatter.VerboseLog("Plan %s (%d steps, timeout %s):\n%s", f.Name, plan.Len(), timeout, plan)

	tel, err := newTelemetry()
	if err != nil {
		return commandError(formatter, ErrCodeGeneric, err.Error())
	}

	var (
		r      *router.Router
		source string
	)
	if opts.Recording != "" {
		var cleanup func()
		r, source, cleanup, err = replayRouter(ctx, opts, formatter, profile, logger, tel)
		if err != nil {
			return err
		}
		defer cleanup()
	} else {
		sess, err := openSession(ctx, profile, logger, tel.metrics)
		if err != nil {
			return commandError(formatter, ErrCodeTransport, err.Error())
		}
		defer sess.Close()
		r, source = sess.router, profile.Transport.Filter()
	}

	sc := scenario.New(r,
		scenario.WithLogger(logger),
		scenario.WithMetrics(tel.metrics),
		scenario.WithPollInterval(profile.PollInterval),
		scenario.WithRecentTail(profile.RecentTail),
	)
	sc.LogStateMessages(true)

	res, verr := sc.VerifyPlan(ctx, plan, timeout)
	return outputVerify(formatter, f.Name, source, plan, res, verr)
}

// replayRouter builds a router over a recorded run, driven by a virtual
// clock starting at the run's first message.
func replayRouter(ctx context.Context, opts *VerifyOptions, formatter *OutputFormatter, p config.Profile, logger *slog.Logger, tel *telemetry) (*router.Router, string, func(), error) {
	st, err := openExistingStore(opts.Recording)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", nil, commandError(formatter, ErrCodeNotFound, fmt.Sprintf("recording not found: %s", opts.Recording))
	}
	if err != nil {
		return nil, "", nil, commandError(formatter, ErrCodeStore, err.Error())
	}

	run, err := selectRun(ctx, st, opts.Run)
	if err != nil {
		st.Close()
		if errors.Is(err, store.ErrRunNotFound) {
			return nil, "", nil, commandError(formatter, ErrCodeNotFound, err.Error())
		}
		return nil, "", nil, commandError(formatter, ErrCodeStore, err.Error())
	}

	replay, err := st.Replay(ctx, run.ID)
	if err != nil {
		st.Close()
		return nil, "", nil, commandError(formatter, ErrCodeStore, err.Error())
	}

	start := replay.Start()
	if start.IsZero() {
		start = run.StartedAt
	}
	r := router.New(replay, cache.New(),
		router.WithRoot(p.Transport.Root),
		router.WithMaxPullWait(p.MaxPullWait),
		router.WithClock(clock.NewVirtual(start)),
		router.WithLogger(logger),
		router.WithMetrics(tel.metrics),
	)
	return r, "run " + run.ID, func() { st.Close() }, nil
}

// selectRun returns the named run, or the latest one when id is empty.
func selectRun(ctx context.Context, st *store.Store, id string) (store.Run, error) {
	if id != "" {
		return st.GetRun(ctx, id)
	}
	runs, err := st.Runs(ctx)
	if err != nil {
		return store.Run{}, err
	}
	if len(runs) == 0 {
		return store.Run{}, fmt.Errorf("recording has no runs: %w", store.ErrRunNotFound)
	}
	return runs[len(runs)-1], nil
}

func outputVerify(formatter *OutputFormatter, name, source string, plan sequence.Plan, res *sequence.Result, verr error) error {
	result := VerifyResult{Plan: name, Source: source, Passed: verr == nil, Steps: []StepOutput{}}
	if res != nil {
		for _, sr := range res.Steps {
			result.Steps = append(result.Steps, stepOutput(sr))
		}
	}

	var ve *sequence.VerifyError
	switch {
	case verr == nil:
		return outputVerifySuccess(formatter, result, plan)
	case errors.As(verr, &ve):
		result.Failure = failureOutput(ve)
		header := fmt.Sprintf("✗ %s: failed at step %d of %d (%s)\n", name, ve.StepIndex, plan.Len(), source)
		return outputVerifyFailure(formatter, result, string(ve.Code), ve.Error(), header+ve.Report())
	case isDecodeErr(verr):
		header := fmt.Sprintf("✗ %s: malformed state payload (%s)\n", name, source)
		return outputVerifyFailure(formatter, result, ErrCodeDecode, verr.Error(), header+"  "+verr.Error()+"\n")
	case errors.Is(verr, sequence.ErrInvalidPlan):
		return commandError(formatter, ErrCodeInvalidPlan, verr.Error())
	default:
		return commandError(formatter, ErrCodeGeneric, verr.Error())
	}
}

func stepOutput(sr sequence.StepResult) StepOutput {
	out := StepOutput{Index: sr.Index, Step: sr.Step.String(), Matched: sr.Matched}
	if sr.Matched {
		out.At = sr.At.Format(snapshot.TimestampLayout)
		out.Elapsed = sr.Elapsed.String()
	}
	return out
}

func failureOutput(ve *sequence.VerifyError) *FailureOutput {
	out := &FailureOutput{
		Code:      string(ve.Code),
		StepIndex: ve.StepIndex,
		Step:      ve.Step.String(),
		At:        ve.At.Format(snapshot.TimestampLayout),
		Recent:    []string{},
	}
	if !ve.PrevMatch.IsZero() {
		out.PrevMatch = ve.PrevMatch.Format(snapshot.TimestampLayout)
	}
	if ve.Observed != nil {
		out.Observed = ve.Observed.String()
	}
	for _, s := range ve.Recent {
		out.Recent = append(out.Recent, s.String())
	}
	return out
}

func outputVerifySuccess(formatter *OutputFormatter, result VerifyResult, plan sequence.Plan) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ %s: %d of %d steps matched (%s)\n", result.Plan, countMatched(result.Steps), plan.Len(), result.Source)
	for _, s := range result.Steps {
		if !s.Matched {
			fmt.Fprintf(formatter.Writer, "  %d. %s: guard held until deadline\n", s.Index, s.Step)
			continue
		}
		fmt.Fprintf(formatter.Writer, "  %d. %s at %s (+%s)\n", s.Index, s.Step, s.At, s.Elapsed)
	}
	return nil
}

func outputVerifyFailure(formatter *OutputFormatter, result VerifyResult, code, message, report string) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    code,
				Message: message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, message)
	}

	fmt.Fprint(formatter.Writer, report)
	return NewExitError(ExitFailure, message)
}

func countMatched(steps []StepOutput) int {
	n := 0
	for _, s := range steps {
		if s.Matched {
			n++
		}
	}
	return n
}
