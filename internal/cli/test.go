package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/listsync/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter string // scenario file name glob, without extension
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <path>...",
		Short: "Run scenario files against an in-process engine",
		Long: `Run YAML scenarios through the sync engine with a scripted remote.

Each path is a scenario file or a directory searched recursively for
*.yaml and *.yml files. No server or session database is needed.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (missing path, bad filter)

Examples:
  listsync test ./scenarios
  listsync test ./scenarios --filter "ada_*"
  listsync test ./scenarios/conflict.yaml --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	return cmd
}

func runTests(cmd *cobra.Command, opts *TestOptions, paths []string) error {
	files, err := harness.Discover(paths)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}
	files, err = filterScenarios(files, opts.Filter)
	if err != nil {
		return err
	}

	f := opts.formatter(cmd)
	if len(files) == 0 {
		if f.Format == "json" {
			return f.Success(&harness.SuiteResult{})
		}
		fmt.Fprintln(f.Writer, "No scenarios found.")
		return nil
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	for _, file := range files {
		f.VerboseLog("running %s", file)
	}
	result := harness.RunFiles(ctx, files)

	if f.Format == "json" {
		if result.Failed > 0 {
			if err := f.Error("SCENARIO_FAILED", result.Summary(), result); err != nil {
				return err
			}
		} else if err := f.Success(result); err != nil {
			return err
		}
	} else {
		writeTestText(f, result)
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

func filterScenarios(files []string, pattern string) ([]string, error) {
	if pattern == "" {
		return files, nil
	}
	out := files[:0:0]
	for _, file := range files {
		base := filepath.Base(file)
		name := strings.TrimSuffix(base, filepath.Ext(base))
		matched, err := filepath.Match(pattern, name)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid filter pattern", err)
		}
		if matched {
			out = append(out, file)
		}
	}
	return out, nil
}

func writeTestText(f *OutputFormatter, result *harness.SuiteResult) {
	w := f.Writer
	for _, fail := range result.Failures {
		name := fail.Name
		if name == "" {
			name = filepath.Base(fail.Path)
		}
		fmt.Fprintf(w, "✗ %s (%s)\n", name, fail.Path)
		for _, e := range fail.Errors {
			for _, line := range strings.Split(e, "\n") {
				fmt.Fprintf(w, "  %s\n", line)
			}
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if result.Failed == 0 {
		fmt.Fprintln(w, "✓ All scenarios passed")
	}
}
