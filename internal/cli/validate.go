package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/charta-io/charta/internal/ir"
)

// ValidationResult holds the outcome of validating one IR file.
type ValidationResult struct {
	Valid   bool     `json:"valid"`
	Module  string   `json:"module,omitempty"`
	Version string   `json:"version,omitempty"`
	Signals []string `json:"signals,omitempty"`
	Coils   []string `json:"coils,omitempty"`
	Rungs   int      `json:"rungs,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <program.ir.json>",
		Short: "Validate an IR program without executing it",
		Long: `Parse and validate a compiled Charta IR file.

Checks the payload shape, declared signal/coil sets, contact and action
references, coil coverage, and rung dependency cycles, then reports the
declared program surface.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	payload, err := os.ReadFile(path)
	if err != nil {
		return outputValidateError(formatter, ExitCommandError, "E001", fmt.Sprintf("read %s: %v", path, err))
	}

	formatter.VerboseLog("validating %s (%d bytes)", path, len(payload))

	program, err := ir.Load(payload)
	if err != nil {
		code, message := classifyLoadError(err)
		return outputValidateError(formatter, ExitFailure, code, message)
	}

	result := ValidationResult{
		Valid:   true,
		Module:  program.Name(),
		Version: program.Version(),
		Signals: program.SignalNames(),
		Coils:   program.CoilNames(),
		Rungs:   program.RungCount(),
	}
	return outputValidateSuccess(formatter, result)
}

// classifyLoadError maps loader errors to a code/message pair for output.
func classifyLoadError(err error) (code, message string) {
	var loadErr *ir.LoadError
	if errors.As(err, &loadErr) {
		message := loadErr.Message
		if loadErr.Rung != "" {
			message = fmt.Sprintf("rung %q: %s", loadErr.Rung, loadErr.Message)
		}
		return loadErr.Code, message
	}
	var parseErr *ir.ParseError
	if errors.As(err, &parseErr) {
		return "E002", parseErr.Error()
	}
	return "E001", err.Error()
}

func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.JSON(CLIResponse{Status: "ok", Data: result})
	}

	w := formatter.Writer
	fmt.Fprintln(w, "✓ program valid")
	fmt.Fprintf(w, "module:  %s\n", result.Module)
	fmt.Fprintf(w, "version: %s\n", result.Version)
	fmt.Fprintf(w, "signals: %s\n", strings.Join(result.Signals, ", "))
	fmt.Fprintf(w, "coils:   %s\n", strings.Join(result.Coils, ", "))
	fmt.Fprintf(w, "rungs:   %d\n", result.Rungs)
	return nil
}

func outputValidateError(formatter *OutputFormatter, exitCode int, code, message string) error {
	if formatter.Format == "json" {
		_ = formatter.JSON(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message},
		})
	} else {
		fmt.Fprintln(formatter.Writer, "✗ validation failed")
		fmt.Fprintf(formatter.Writer, "  %s: %s\n", code, message)
	}
	return NewExitError(exitCode, fmt.Sprintf("%s: %s", code, message))
}
