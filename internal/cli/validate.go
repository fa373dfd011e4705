package cli

import (
	"github.com/spf13/cobra"

	"github.com/chronos-cal/chronos/internal/engine"
	"github.com/chronos-cal/chronos/internal/rule"
)

// ValidationResult holds rule validation results.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Rules    int      `json:"rules"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <rules-dir>",
		Short: "Validate rule files without running a pass",
		Long:  `Compile the CUE rule files, check templates against the placeholder
vocabulary, and report configuration warnings. Nothing is written to any
calendar.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, rulesDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	result := ValidationResult{Valid: true}
	set, errs := rule.Load(rulesDir)
	for _, err := range errs {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
	}
	if set != nil {
		result.Rules = len(set.Rules)
		result.Warnings = set.Warnings
		for _, err := range engine.ValidateTemplates(set) {
			result.Valid = false
			result.Errors = append(result.Errors, err.Error())
		}
	}

	if done, err := formatter.JSON(result); done || err != nil {
		if err != nil {
			return WrapExitError(ExitCommandError, "encode result", err)
		}
	} else {
		if result.Valid {
			formatter.Text("OK: %d rules", result.Rules)
		} else {
			formatter.Text("INVALID: %d errors", len(result.Errors))
			for _, msg := range result.Errors {
				formatter.Text("  error: %s", msg)
			}
		}
		for _, msg := range result.Warnings {
			formatter.Text("  warning: %s", msg)
		}
	}

	if !result.Valid {
		return NewExitError(ExitFailure, "rule validation failed")
	}
	return nil
}
