package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronos-cal/chronos/internal/calendar"
	"github.com/chronos-cal/chronos/internal/rule"
)

func TestProjectDate_LeapDayPolicies(t *testing.T) {
	feb29 := ParseResult{HasDate: true, Day: 29, Month: 2, Year: 2020}

	got := projectDate(feb29, 2024, rule.LeapDayFeb28, time.UTC)
	assert.Equal(t, ts(2024, 2, 29), got, "leap years keep the real date")

	got = projectDate(feb29, 2025, rule.LeapDayFeb28, time.UTC)
	assert.Equal(t, ts(2025, 2, 28), got)

	got = projectDate(feb29, 2025, rule.LeapDayMar01, time.UTC)
	assert.Equal(t, ts(2025, 3, 1), got)
}

func TestWarningStart_OffsetFromProjectedOccurrence(t *testing.T) {
	set := testRuleSet(t)
	bday, ok := set.ByID("bday")
	require.True(t, ok)

	pr := primaryResult{
		Event: calendar.Event{ID: "anna", Start: ts(1990, 3, 15), RRule: "FREQ=YEARLY"},
		Rule:  bday,
		Parse: ParseResult{Label: "Anna", HasDate: true, Day: 15, Month: 3, Year: 1990},
	}

	start, ok := warningStart(pr, ts(2025, 3, 1))
	require.True(t, ok)
	assert.Equal(t, ts(2025, 3, 8), start)
}

func TestWarningStart_LeapDaySource(t *testing.T) {
	set := testRuleSet(t)
	bday, ok := set.ByID("bday")
	require.True(t, ok)

	// The series itself sits on Feb 29 and only fires in leap years; the
	// parsed date plus the feb28 policy pins the warning anchor anyway.
	pr := primaryResult{
		Event: calendar.Event{ID: "kl", Start: ts(2020, 2, 29), RRule: "FREQ=YEARLY"},
		Rule:  bday,
		Parse: ParseResult{Label: "K & L", HasDate: true, Day: 29, Month: 2, Year: 2020},
	}

	start, ok := warningStart(pr, ts(2027, 1, 10))
	require.True(t, ok)
	assert.Equal(t, ts(2027, 2, 28).AddDate(0, 0, -7), start)
}

func TestWarningStart_NoFutureOccurrence(t *testing.T) {
	set := testRuleSet(t)
	bday, ok := set.ByID("bday")
	require.True(t, ok)

	pr := primaryResult{
		Event: calendar.Event{ID: "one-off", Start: ts(2024, 5, 1)},
		Rule:  bday,
		Parse: ParseResult{Label: "Old", HasDate: true, Day: 1, Month: 5, Year: 2024},
	}

	_, ok = warningStart(pr, ts(2025, 3, 1))
	assert.False(t, ok)
}
