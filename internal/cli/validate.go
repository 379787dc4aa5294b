package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/ioseq/internal/planfile"
)

// ValidationResult holds validation results for one plan file.
type ValidationResult struct {
	Valid   bool     `json:"valid"`
	Name    string   `json:"name,omitempty"`
	Timeout string   `json:"timeout,omitempty"`
	Steps   []string `json:"steps,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <plan.yaml>",
		Short: "Validate a plan file without connecting",
		Long: `Validate a sequence plan file without connecting to the bus.

Checks the YAML against the plan schema and builds the plan, reporting
misplaced timing constraints and never() guards.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	f, err := planfile.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return commandError(formatter, ErrCodeNotFound, fmt.Sprintf("plan file not found: %s", path))
	}
	if err != nil {
		return outputValidationError(formatter, err)
	}

	plan, err := f.Plan()
	if err != nil {
		return outputValidationError(formatter, fmt.Errorf("%s: %w", path, err))
	}

	profile, err := opts.profile()
	if err != nil {
		return commandError(formatter, ErrCodeConfig, err.Error())
	}

	result := ValidationResult{
		Valid:   true,
		Name:    f.Name,
		Timeout: f.TimeoutOr(profile.Timeout).String(),
	}
	for _, s := range plan.Steps() {
		result.Steps = append(result.Steps, s.String())
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ %s: %d steps, timeout %s\n", result.Name, len(result.Steps), result.Timeout)
	if formatter.Verbose {
		fmt.Fprint(formatter.Writer, indent(plan.String()))
	}
	return nil
}

// outputValidationError reports an invalid plan file (exit code 1).
func outputValidationError(formatter *OutputFormatter, err error) error {
	if formatter.Format == "json" {
		return failure(formatter, ErrCodeInvalidPlan, err.Error(), ValidationResult{Valid: false, Error: err.Error()})
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintf(formatter.Writer, "  %s: %s\n", ErrCodeInvalidPlan, err)
	return NewExitError(ExitFailure, "validation failed")
}

func indent(s string) string {
	var b strings.Builder
	for _, line := range strings.SplitAfter(s, "\n") {
		if line == "" {
			continue
		}
		b.WriteString("  ")
		b.WriteString(line)
	}
	return b.String()
}
