package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronos-cal/chronos/internal/rule"
)

func testRuleSet(t *testing.T) *rule.Set {
	t.Helper()
	set, err := rule.NewSet(rule.Options{
		Separators:          []string{".", "-", "/"},
		DayFirst:            true,
		DayFirstBySeparator: map[string]bool{".": true},
		YearOptional:        true,
		StrictWhenAmbiguous: true,
		ReservedPrefixes:    []string{"ACTION", "MEETING", "CALL"},
		Pipeline:            []string{"bday", "bday_warn", "anniv"},
	}, []rule.Rule{
		{
			ID:                "bday",
			Keywords:          []string{"BDAY", "BIRTHDAY", "GEB", "GEBURTSTAG"},
			TitleTemplate:     "🎉 Birthday: {name} ({date_display}){age_suffix}",
			AgeSuffixTemplate: " – turns {age}.",
			AllDay:            true,
			Yearly:            true,
			LeapDay:           rule.LeapDayFeb28,
			WarnOffsetDays:    -7,
		},
		{
			ID:            "bday_warn",
			Keywords:      []string{"BDAYWARN"},
			TitleTemplate: "⚠️ {name_or_label} in {warn_abs_days} days",
			AllDay:        true,
			PrimaryRuleID: "bday",
		},
		{
			ID:                       "anniv",
			Keywords:                 []string{"ANNIV", "JUBILÄUM", "HOCHZEITSTAG"},
			TitleTemplate:            "💍 Anniversary: {name_or_label} ({date_display}){years_since_suffix}",
			YearsSinceSuffixTemplate: " – {years_since} years.",
			AllDay:                   true,
			Yearly:                   true,
			LeapDay:                  rule.LeapDayMar01,
		},
	})
	require.NoError(t, err)
	return set
}

func TestMatcher_SynonymsCollapseToOneRule(t *testing.T) {
	m := NewMatcher(testRuleSet(t))

	for _, title := range []string{
		"BDAY: Alice 03.07.1982",
		"bday: Alice 03.07.1982",
		"GEB: Alice 03.07.1982",
		"Geburtstag: Alice 03.07.1982",
	} {
		got, ok := m.Match(title)
		require.True(t, ok, title)
		assert.Equal(t, "bday", got.RuleID, title)
		assert.Equal(t, "Alice 03.07.1982", got.Payload, title)
	}
}

func TestMatcher_ReservedPrefixPassesThrough(t *testing.T) {
	m := NewMatcher(testRuleSet(t))

	for _, title := range []string{
		"ACTION: call Alice back",
		"action: call Alice back",
		"MEETING: sync with the team",
	} {
		_, ok := m.Match(title)
		assert.False(t, ok, title)
	}
}

func TestMatcher_NoMatch(t *testing.T) {
	m := NewMatcher(testRuleSet(t))

	for name, title := range map[string]string{
		"no delimiter":      "BDAY Alice",
		"unknown keyword":   "LUNCH: with Bob",
		"delimiter first":   ": Alice",
		"multi word prefix": "HAPPY BDAY: Alice",
		"already repaired":  "🎉 Birthday: Alice (03.07.) – turns 43.",
		"keyword mid title": "About BDAY: Alice",
		"empty title":       "",
	} {
		_, ok := m.Match(title)
		assert.False(t, ok, name)
	}
}

func TestMatcher_PayloadTrimmed(t *testing.T) {
	m := NewMatcher(testRuleSet(t))

	got, ok := m.Match("ANNIV:   K & L 29.02.2020  ")
	require.True(t, ok)
	assert.Equal(t, "anniv", got.RuleID)
	assert.Equal(t, "ANNIV", got.Keyword)
	assert.Equal(t, "K & L 29.02.2020", got.Payload)
}
