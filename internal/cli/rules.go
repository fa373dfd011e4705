package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/chronos-cal/chronos/internal/rule"
)

// RuleSummary is one compiled rule as listed by the rules command.
type RuleSummary struct {
	ID             string   `json:"id"`
	Keywords       []string `json:"keywords"`
	Template       string   `json:"template"`
	WarnOffsetDays int      `json:"warn_offset_days,omitempty"`
	WarningFor     string   `json:"warning_for,omitempty"`
}

// NewRulesCommand creates the rules command.
func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "rules <rules-dir>",
		Short:         "List compiled rules in pipeline order",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRules(rootOpts, args[0], cmd)
		},
	}
}

func runRules(opts *RootOptions, rulesDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	set, errs := rule.Load(rulesDir)
	if len(errs) > 0 {
		_ = formatter.Failure("E_RULES", "rule compilation failed", errorStrings(errs))
		return NewExitError(ExitFailure, "rule compilation failed")
	}

	summaries := make([]RuleSummary, 0, len(set.Rules))
	for i := range set.Rules {
		r := &set.Rules[i]
		summaries = append(summaries, RuleSummary{
			ID:             r.ID,
			Keywords:       r.Keywords,
			Template:       r.TitleTemplate,
			WarnOffsetDays: r.WarnOffsetDays,
			WarningFor:     r.PrimaryRuleID,
		})
	}

	if done, err := formatter.JSON(summaries); done || err != nil {
		if err != nil {
			return WrapExitError(ExitCommandError, "encode rules", err)
		}
		return nil
	}
	for _, s := range summaries {
		formatter.Text("%s  [%s]  %s", s.ID, strings.Join(s.Keywords, ", "), s.Template)
		if s.WarningFor != "" {
			formatter.Text("  warning variant of %s", s.WarningFor)
		}
	}
	return nil
}

func errorStrings(errs []error) []string {
	out := make([]string, len(errs))
	for i, err := range errs {
		out[i] = err.Error()
	}
	return out
}
