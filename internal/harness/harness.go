package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/chronos-cal/chronos/internal/calendar"
	"github.com/chronos-cal/chronos/internal/calendar/memorycal"
	"github.com/chronos-cal/chronos/internal/engine"
	"github.com/chronos-cal/chronos/internal/rule"
	"github.com/chronos-cal/chronos/internal/testutil"
)

// Scenario defines one repair-pass conformance scenario.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Rules is the CUE rule directory, relative to the scenario file.
	Rules string `yaml:"rules"`

	// Today pins the engine clock, formatted 2006-01-02.
	Today string `yaml:"today"`

	// Passes is how many times the pass runs (default 1). Assertions
	// apply to the report of the final pass.
	Passes int `yaml:"passes,omitempty"`

	// DryRun and ReadOnly configure the engine and the store.
	DryRun   bool `yaml:"dry_run,omitempty"`
	ReadOnly bool `yaml:"read_only,omitempty"`

	// Events seeds the calendar before the first pass.
	Events []EventFixture `yaml:"events"`

	// Expect validates the final report and calendar state.
	Expect Expectation `yaml:"expect"`
}

// EventFixture is one seeded calendar event.
type EventFixture struct {
	ID           string            `yaml:"id"`
	Title        string            `yaml:"title"`
	Start        string            `yaml:"start"` // 2006-01-02
	AllDay       bool              `yaml:"all_day,omitempty"`
	RRule        string            `yaml:"rrule,omitempty"`
	RecurrenceID string            `yaml:"recurrence_id,omitempty"`
	Props        map[string]string `yaml:"props,omitempty"`
}

// Expectation is a subset match against the final report and store.
type Expectation struct {
	// Counts checks outcome tallies; unmentioned outcomes must be zero.
	Counts map[string]int `yaml:"counts,omitempty"`

	Attempted       int `yaml:"attempted,omitempty"`
	CreatedWarnings int `yaml:"created_warnings,omitempty"`
	MovedWarnings   int `yaml:"moved_warnings,omitempty"`
	PrunedWarnings  int `yaml:"pruned_warnings,omitempty"`

	// Titles maps event ids to their expected final titles.
	Titles map[string]string `yaml:"titles,omitempty"`

	// Absent lists event ids that must be gone after the pass.
	Absent []string `yaml:"absent,omitempty"`

	// WarningsLinked maps primary event ids to expected warning titles.
	WarningsLinked map[string]string `yaml:"warnings_linked,omitempty"`

	// NoWritesAfterFirstPass asserts that every pass beyond the first
	// performed zero conditional updates.
	NoWritesAfterFirstPass bool `yaml:"no_writes_after_first_pass,omitempty"`
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if s.Name == "" {
		return nil, fmt.Errorf("%s: scenario name is required", path)
	}
	if s.Today == "" {
		return nil, fmt.Errorf("%s: today is required", path)
	}
	if s.Rules == "" {
		return nil, fmt.Errorf("%s: rules dir is required", path)
	}
	if s.Passes == 0 {
		s.Passes = 1
	}
	s.Rules = filepath.Join(filepath.Dir(path), s.Rules)
	return &s, nil
}

// Run executes the scenario against a fresh in-memory calendar and
// asserts its expectations.
func Run(t *testing.T, s *Scenario) {
	t.Helper()

	set, errs := rule.Load(s.Rules)
	require.Empty(t, errs, "rule compilation")

	today, err := time.Parse("2006-01-02", s.Today)
	require.NoError(t, err)

	store := memorycal.New(s.Name)
	for _, f := range s.Events {
		store.Seed(fixtureEvent(t, f))
	}
	store.SetReadOnly(s.ReadOnly)

	eng := engine.New(set,
		engine.WithClock(testutil.NewFixedClock(today)),
		engine.WithDryRun(s.DryRun),
	)

	var rep *engine.Report
	lateWrites := 0
	for i := 0; i < s.Passes; i++ {
		if i == 1 && s.Expect.NoWritesAfterFirstPass {
			store.OnBeforeUpdate(func(string) { lateWrites++ })
		}
		rep, err = eng.SyncCalendar(context.Background(), store)
		require.NoError(t, err)
	}

	if s.Expect.NoWritesAfterFirstPass {
		assert.Zero(t, lateWrites, "writes after first pass")
	}
	assert.Equal(t, s.Expect.Attempted, rep.Attempted, "attempted")
	assert.Equal(t, s.Expect.CreatedWarnings, rep.CreatedWarnings, "created warnings")
	assert.Equal(t, s.Expect.MovedWarnings, rep.MovedWarnings, "moved warnings")
	assert.Equal(t, s.Expect.PrunedWarnings, rep.PrunedWarnings, "pruned warnings")
	for outcome, want := range s.Expect.Counts {
		assert.Equal(t, want, rep.Counts[engine.Outcome(outcome)], "count %s", outcome)
	}

	ctx := context.Background()
	for id, title := range s.Expect.Titles {
		ev, err := store.Fetch(ctx, id)
		require.NoError(t, err, "event %s", id)
		assert.Equal(t, title, ev.Title, "title of %s", id)
	}
	for _, id := range s.Expect.Absent {
		_, err := store.Fetch(ctx, id)
		assert.ErrorIs(t, err, calendar.ErrNotFound, "event %s should be gone", id)
	}
	for primary, title := range s.Expect.WarningsLinked {
		assert.Equal(t, title, warningTitleFor(t, store, today, primary), "warning of %s", primary)
	}
}

func fixtureEvent(t *testing.T, f EventFixture) calendar.Event {
	t.Helper()
	start, err := time.Parse("2006-01-02", f.Start)
	require.NoError(t, err, "event %s start", f.ID)
	ev := calendar.Event{
		ID:     f.ID,
		Title:  f.Title,
		Start:  start,
		AllDay: f.AllDay,
		RRule:  f.RRule,
		Props:  f.Props,
	}
	if f.RecurrenceID != "" {
		rid, err := time.Parse("2006-01-02", f.RecurrenceID)
		require.NoError(t, err, "event %s recurrence_id", f.ID)
		ev.RecurrenceID = &rid
	}
	return ev
}

func warningTitleFor(t *testing.T, store *memorycal.Store, today time.Time, primaryID string) string {
	t.Helper()
	events, err := store.List(context.Background(), today.AddDate(0, 0, -1), today.AddDate(1, 0, 0))
	require.NoError(t, err)
	for _, ev := range events {
		if ev.Prop(calendar.KeyWarningOf) == primaryID {
			return ev.Title
		}
	}
	return ""
}
