package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/amp-labs/amp-workflow/graph"
	"github.com/amp-labs/amp-workflow/validator"
	"github.com/amp-labs/amp-workflow/visualizer"
	"github.com/amp-labs/amp-workflow/workflow"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"
)

// Exit codes returned by Run.
const (
	ExitOK      = 0
	ExitInvalid = 1
	ExitUsage   = 2
)

var errNoCommand = errors.New("no command given")

// exitError carries the exit code of a command that ran. Err is nil when the
// command already reported the failure on stdout.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit code %d", e.code)
	}

	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func invalid(err error) error {
	return &exitError{code: ExitInvalid, err: err}
}

// App runs workflowctl commands.
type App struct {
	Stdout         io.Writer
	Stderr         io.Writer
	Prompter       Prompter
	Logger         *slog.Logger
	TracerProvider trace.TracerProvider
}

// Run executes the command in args and returns the process exit code.
// Errors raised before a command runs, such as unknown commands, bad flags
// or a missing definition argument, exit with ExitUsage.
func (a *App) Run(ctx context.Context, args []string) int {
	if args == nil {
		args = []string{}
	}

	root := a.Command()
	root.SetArgs(args)

	cmd, err := root.ExecuteContextC(ctx)
	if err == nil {
		return ExitOK
	}

	var exit *exitError
	if errors.As(err, &exit) {
		if exit.err != nil {
			printf(a.Stderr, "error: %v\n", exit.err)
		}

		return exit.code
	}

	if !errors.Is(err, errNoCommand) {
		printf(a.Stderr, "error: %v\n", err)
	}

	printf(a.Stderr, "%s", cmd.UsageString())

	return ExitUsage
}

// Command builds the workflowctl command tree writing to the App's streams.
func (a *App) Command() *cobra.Command {
	root := &cobra.Command{
		Use:           "workflowctl",
		Short:         "Validate, draw and play YAML workflow definitions",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(*cobra.Command, []string) error {
			return errNoCommand
		},
	}

	root.SetOut(a.Stdout)
	root.SetErr(a.Stderr)
	root.AddCommand(a.validateCommand(), a.mermaidCommand(), a.playCommand())

	return root
}

func (a *App) validateCommand() *cobra.Command {
	var strict, fix bool

	cmd := &cobra.Command{
		Use:   "validate <definition.yaml>",
		Short: "Check a definition for errors and warnings",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.validate(args[0], strict, fix)
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "treat warnings as errors and run every registered rule")
	cmd.Flags().BoolVar(&fix, "fix", false, "apply suggested fixes and rewrite the file")

	return cmd
}

func (a *App) validate(path string, strict, fix bool) error {
	result, err := validator.ValidateFileWithOptions(path, strict)
	if err != nil {
		return invalid(err)
	}

	if fix && len(result.Fixes()) > 0 {
		result, err = a.applyFixes(path, result, strict)
		if err != nil {
			return invalid(err)
		}
	}

	printf(a.Stdout, "%s", result.String())

	if !result.Valid {
		return &exitError{code: ExitInvalid}
	}

	return nil
}

func (a *App) applyFixes(path string, result validator.ValidationResult, strict bool) (validator.ValidationResult, error) {
	config, err := graph.ReadConfig(path)
	if err != nil {
		return result, err
	}

	fixes := result.Fixes()
	if err := validator.ApplyFixes(config, fixes); err != nil {
		return result, err
	}

	data, err := config.Marshal()
	if err != nil {
		return result, err
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return result, fmt.Errorf("failed to write fixed definition: %w", err)
	}

	for _, f := range fixes {
		printf(a.Stdout, "fixed: %s\n", f.Description)
	}

	return validator.ValidateConfig(config, strict), nil
}

type mermaidFlags struct {
	direction    string
	theme        string
	revert       bool
	noConditions bool
	highlight    []string
}

func (a *App) mermaidCommand() *cobra.Command {
	var flags mermaidFlags

	cmd := &cobra.Command{
		Use:   "mermaid <definition.yaml>",
		Short: "Print a mermaid state diagram",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.mermaid(args[0], flags)
		},
	}

	cmd.Flags().StringVar(&flags.direction, "direction", "TD", "diagram direction: TD, LR, RL or BT")
	cmd.Flags().StringVar(&flags.theme, "theme", "", "mermaid theme")
	cmd.Flags().BoolVar(&flags.revert, "revert", false, "show generated revert events")
	cmd.Flags().BoolVar(&flags.noConditions, "no-conditions", false, "hide guard conditions")
	cmd.Flags().StringSliceVar(&flags.highlight, "highlight", nil, "comma separated states to highlight")

	return cmd
}

func (a *App) mermaid(path string, flags mermaidFlags) error {
	direction, err := visualizer.ParseDirection(flags.direction)
	if err != nil {
		return err
	}

	spec, err := buildSpec(path)
	if err != nil {
		return invalid(err)
	}

	adjust := []visualizer.Option{visualizer.WithDirection(direction), visualizer.WithTheme(flags.theme)}

	if flags.revert {
		adjust = append(adjust, visualizer.Show(visualizer.RevertEvents))
	}

	if flags.noConditions {
		adjust = append(adjust, visualizer.Hide(visualizer.Conditions))
	}

	if len(flags.highlight) > 0 {
		adjust = append(adjust, visualizer.Highlight(flags.highlight...))
	}

	diagram, err := visualizer.GenerateMermaidWithOptions(spec, visualizer.DefaultOptions().Apply(adjust...))
	if err != nil {
		return invalid(err)
	}

	printf(a.Stdout, "%s", diagram)

	return nil
}

func (a *App) playCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "play <definition.yaml>",
		Short: "Fire events interactively against an in-memory instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.play(cmd.Context(), args[0])
		},
	}
}

func (a *App) play(ctx context.Context, path string) error {
	spec, err := buildSpec(path)
	if err != nil {
		return invalid(err)
	}

	opts := []workflow.Option{}
	if a.Logger != nil {
		opts = append(opts, workflow.WithLogger(a.Logger))
	}

	if a.TracerProvider != nil {
		opts = append(opts, workflow.WithTracerProvider(a.TracerProvider))
	}

	session, err := NewSession(spec, opts...)
	if err != nil {
		return invalid(err)
	}

	if err := session.Play(ctx, a.Prompter, a.Stdout); err != nil {
		return invalid(err)
	}

	return nil
}

func buildSpec(path string) (*graph.Spec, error) {
	config, err := graph.ReadConfig(path)
	if err != nil {
		return nil, err
	}

	return config.Build()
}
