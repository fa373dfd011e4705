package cli

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/chronos-cal/chronos/internal/calendar"
	"github.com/chronos-cal/chronos/internal/calendar/caldav"
	"github.com/chronos-cal/chronos/internal/calendar/memorycal"
	"github.com/chronos-cal/chronos/internal/calendar/sqlitecal"
	"github.com/chronos-cal/chronos/internal/config"
	"github.com/chronos-cal/chronos/internal/engine"
	"github.com/chronos-cal/chronos/internal/rule"
)

// SyncOptions holds flags specific to the sync command.
type SyncOptions struct {
	ConfigPath string
	DryRun     bool
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one repair pass over the configured calendars",
		Long:  `Load the runtime configuration and rule files, open every configured
calendar, and run a single repair pass. Calendars are processed
concurrently; events within one calendar strictly in order.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "chronos.yaml", "runtime configuration file")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "run the full pipeline without writing anything")

	return cmd
}

func runSync(rootOpts *RootOptions, opts *SyncOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    rootOpts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   rootOpts.Verbose,
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		_ = formatter.Failure("E_CONFIG", err.Error(), nil)
		return WrapExitError(ExitCommandError, "load config", err)
	}

	set, errs := rule.Load(cfg.RulesDir)
	if len(errs) > 0 {
		_ = formatter.Failure("E_RULES", "rule compilation failed", errorStrings(errs))
		return NewExitError(ExitCommandError, "rule compilation failed")
	}
	for _, w := range set.Warnings {
		formatter.VerboseLog("rule warning: %s", w)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		_ = formatter.Failure("E_CONFIG", err.Error(), nil)
		return WrapExitError(ExitCommandError, "load timezone", err)
	}

	adapters, cleanup, err := openCalendars(cfg)
	defer cleanup()
	if err != nil {
		_ = formatter.Failure("E_CALENDAR", err.Error(), nil)
		return WrapExitError(ExitCommandError, "open calendars", err)
	}

	level := slog.LevelWarn
	if rootOpts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	eng := engine.New(set,
		engine.WithClock(engine.ClockAt(loc)),
		engine.WithDryRun(opts.DryRun),
		engine.WithLogger(logger),
	)
	reports := eng.Run(cmd.Context(), adapters)

	if done, jerr := formatter.JSON(reports); done || jerr != nil {
		if jerr != nil {
			return WrapExitError(ExitCommandError, "encode reports", jerr)
		}
	} else {
		for _, rep := range reports {
			printReport(formatter, rep)
		}
	}

	for _, rep := range reports {
		if rep.Counts[engine.OutcomeError] > 0 || len(rep.RuleAlerts) > 0 {
			return NewExitError(ExitFailure, "pass completed with errors")
		}
	}
	return nil
}

// openCalendars builds an adapter per configured calendar. The cleanup
// function closes whatever was opened, including on partial failure.
func openCalendars(cfg *config.Config) ([]calendar.Adapter, func(), error) {
	var adapters []calendar.Adapter
	var closers []func() error
	cleanup := func() {
		for _, c := range closers {
			_ = c()
		}
	}

	for _, cc := range cfg.Calendars {
		var (
			adapter calendar.Adapter
			err     error
		)
		switch cc.Type {
		case "caldav":
			var copts []caldav.Option
			if cc.Username != "" {
				copts = append(copts, caldav.WithBasicAuth(cc.Username, os.Getenv(cc.PasswordEnv)))
			}
			adapter, err = caldav.New(cc.ID, cc.URL, copts...)
		case "sqlite":
			var store *sqlitecal.Store
			store, err = sqlitecal.Open(cc.ID, cc.Path)
			if err == nil {
				closers = append(closers, store.Close)
				adapter = store
			}
		case "memory":
			adapter = memorycal.New(cc.ID)
		default:
			err = fmt.Errorf("unknown calendar type %q", cc.Type)
		}
		if err != nil {
			return nil, cleanup, fmt.Errorf("calendar %s: %w", cc.ID, err)
		}
		if cc.ReadOnly {
			adapter = calendar.ReadOnly(adapter)
		}
		adapters = append(adapters, adapter)
	}
	return adapters, cleanup, nil
}

func printReport(f *OutputFormatter, rep *engine.Report) {
	f.Text("calendar %s: attempted=%d elapsed=%s", rep.CalendarID, rep.Attempted, rep.Elapsed)
	outcomes := make([]string, 0, len(rep.Counts))
	for outcome := range rep.Counts {
		outcomes = append(outcomes, string(outcome))
	}
	sort.Strings(outcomes)
	for _, outcome := range outcomes {
		f.Text("  %-18s %d", outcome, rep.Counts[engine.Outcome(outcome)])
	}
	if rep.CreatedWarnings > 0 || rep.MovedWarnings > 0 || rep.PrunedWarnings > 0 {
		f.Text("  warnings: created=%d moved=%d pruned=%d", rep.CreatedWarnings, rep.MovedWarnings, rep.PrunedWarnings)
	}
	for _, alert := range rep.RuleAlerts {
		f.Text("  rule %s disabled: %s", alert.RuleID, alert.Reason)
	}
}
