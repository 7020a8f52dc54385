package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/charta-io/charta"
)

// RunScript is the YAML input script consumed by the run command: one
// scan cycle per step, each step applying a batch of signal values
// before the cycle executes.
type RunScript struct {
	Cycles []CycleStep `yaml:"cycles"`
}

// CycleStep describes one scripted cycle.
type CycleStep struct {
	Name   string          `yaml:"name,omitempty"`
	Inputs map[string]bool `yaml:"inputs,omitempty"`
}

// CycleReport is the per-cycle output record.
type CycleReport struct {
	Cycle   int              `json:"cycle"`
	Name    string           `json:"name,omitempty"`
	Changes []CoilTransition `json:"changes"`
	Coils   map[string]bool  `json:"coils"`
}

// CoilTransition records one coil change observed during a cycle.
type CoilTransition struct {
	Coil string `json:"coil"`
	Old  bool   `json:"old"`
	New  bool   `json:"new"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	var inputsPath string

	cmd := &cobra.Command{
		Use:   "run <program.ir.json>",
		Short: "Load an IR program and execute scan cycles",
		Long: `Load a compiled Charta IR file and execute scan cycles.

With --inputs, each step of the YAML script applies its signal batch
and executes one cycle. Without --inputs, a single cycle executes with
all signals false.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(rootOpts, args[0], inputsPath, cmd)
		},
	}

	cmd.Flags().StringVar(&inputsPath, "inputs", "", "YAML script of per-cycle signal batches")

	return cmd
}

func runRun(opts *RootOptions, programPath, inputsPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	script := RunScript{Cycles: []CycleStep{{}}}
	if inputsPath != "" {
		raw, err := os.ReadFile(inputsPath)
		if err != nil {
			return outputRunError(formatter, ExitCommandError, "E001", fmt.Sprintf("read %s: %v", inputsPath, err))
		}
		script = RunScript{}
		if err := yaml.Unmarshal(raw, &script); err != nil {
			return outputRunError(formatter, ExitCommandError, "E002", fmt.Sprintf("decode %s: %v", inputsPath, err))
		}
		if len(script.Cycles) == 0 {
			return outputRunError(formatter, ExitCommandError, "E002", fmt.Sprintf("%s declares no cycles", inputsPath))
		}
	}

	// Keep VM logs off stdout so the report output stays clean.
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if opts.Verbose {
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	vm := charta.New(charta.WithLogger(logger))

	if err := vm.LoadProgramFromFile(cmd.Context(), programPath); err != nil {
		exitCode := ExitFailure
		if charta.IsIO(err) {
			exitCode = ExitCommandError
		}
		return outputRunError(formatter, exitCode, "E003", err.Error())
	}

	coilOrder, err := vm.CoilNames()
	if err != nil {
		return outputRunError(formatter, ExitFailure, "E003", err.Error())
	}

	var transitions []CoilTransition
	sub := vm.OnAnyCoilChange(func(name string, oldValue, newValue bool) {
		transitions = append(transitions, CoilTransition{Coil: name, Old: oldValue, New: newValue})
	})
	defer sub.Cancel()

	var reports []CycleReport
	for i, step := range script.Cycles {
		transitions = nil
		snapshot, err := vm.ExecuteCycleWithInputs(step.Inputs)
		if err != nil {
			return outputRunError(formatter, ExitFailure, "E004",
				fmt.Sprintf("cycle %d: %v", i+1, err))
		}
		report := CycleReport{
			Cycle:   i + 1,
			Name:    step.Name,
			Changes: append([]CoilTransition(nil), transitions...),
			Coils:   snapshot,
		}
		if report.Changes == nil {
			report.Changes = []CoilTransition{}
		}
		reports = append(reports, report)
	}

	return outputRunReports(formatter, coilOrder, reports)
}

func outputRunReports(formatter *OutputFormatter, coilOrder []string, reports []CycleReport) error {
	if formatter.Format == "json" {
		return formatter.JSON(CLIResponse{Status: "ok", Data: reports})
	}

	w := formatter.Writer
	for _, report := range reports {
		if report.Name != "" {
			fmt.Fprintf(w, "cycle %d (%s)\n", report.Cycle, report.Name)
		} else {
			fmt.Fprintf(w, "cycle %d\n", report.Cycle)
		}
		for _, tr := range report.Changes {
			fmt.Fprintf(w, "  %s: %v -> %v\n", tr.Coil, tr.Old, tr.New)
		}
		fmt.Fprint(w, "  coils:")
		for _, coil := range coilOrder {
			fmt.Fprintf(w, " %s=%v", coil, report.Coils[coil])
		}
		fmt.Fprintln(w)
	}
	return nil
}

func outputRunError(formatter *OutputFormatter, exitCode int, code, message string) error {
	if formatter.Format == "json" {
		_ = formatter.JSON(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message},
		})
	} else {
		fmt.Fprintf(formatter.Writer, "✗ run failed\n  %s: %s\n", code, message)
	}
	return NewExitError(exitCode, fmt.Sprintf("%s: %s", code, message))
}
