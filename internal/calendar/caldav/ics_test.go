package caldav

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronos-cal/chronos/internal/calendar"
)

const sampleICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//Radicale//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:bday-anna\r\n" +
	"DTSTAMP:20260101T000000Z\r\n" +
	"DTSTART;VALUE=DATE:20260315\r\n" +
	"DTEND;VALUE=DATE:20260316\r\n" +
	"RRULE:FREQ=YEARLY\r\n" +
	"SUMMARY:GEB: Anna Müller 15.03.1990\r\n" +
	"X-VENDOR-COLOR:red\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestParseEventICS(t *testing.T) {
	ev, err := parseEventICS([]byte(sampleICS), "etag-1")
	require.NoError(t, err)

	assert.Equal(t, "bday-anna", ev.ID)
	assert.Equal(t, "etag-1", ev.Etag)
	assert.Equal(t, "GEB: Anna Müller 15.03.1990", ev.Title)
	assert.True(t, ev.AllDay)
	assert.Equal(t, "FREQ=YEARLY", ev.RRule)
	assert.True(t, ev.IsMaster())
	assert.Nil(t, ev.RecurrenceID)
}

func TestBagKeyPropMapping(t *testing.T) {
	assert.Equal(t, "X-CHRONOS-RULE-ID", bagKeyToProp(calendar.KeyRuleID))
	assert.Equal(t, "X-CHRONOS-ORIGINAL-SUMMARY", bagKeyToProp(calendar.KeyOriginalSummary))

	key, ok := propToBagKey("X-CHRONOS-RULE-ID")
	require.True(t, ok)
	assert.Equal(t, calendar.KeyRuleID, key)

	_, ok = propToBagKey("X-VENDOR-COLOR")
	assert.False(t, ok, "foreign X-props are not part of the chronos bag")
}

func TestApplyPatch_PreservesForeignProperties(t *testing.T) {
	title := "🎉 Birthday: Anna Müller (15.03.) – turns 36."
	patched, err := applyPatch([]byte(sampleICS), "bday-anna", calendar.Patch{
		Title: &title,
		SetProps: map[string]string{
			calendar.KeyCleaned:         calendar.MarkerSchemaVersion,
			calendar.KeyOriginalSummary: "GEB: Anna Müller 15.03.1990",
		},
	})
	require.NoError(t, err)

	text := string(patched)
	assert.Contains(t, text, "X-VENDOR-COLOR:red", "unrelated X-props must survive")
	assert.Contains(t, text, "X-CHRONOS-CLEANED:1")
	assert.Contains(t, text, "RRULE:FREQ=YEARLY")
	assert.NotContains(t, text, "SUMMARY:GEB:", "old summary must be replaced")

	ev, err := parseEventICS(patched, "etag-2")
	require.NoError(t, err)
	assert.Equal(t, title, ev.Title)
	assert.Equal(t, "GEB: Anna Müller 15.03.1990", ev.Prop(calendar.KeyOriginalSummary))
}

func TestApplyPatch_MovePreservesDateForm(t *testing.T) {
	start := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 21, 0, 0, 0, 0, time.UTC)
	patched, err := applyPatch([]byte(sampleICS), "bday-anna", calendar.Patch{
		Start: &start,
		End:   &end,
	})
	require.NoError(t, err)

	text := string(patched)
	assert.Contains(t, text, "DTSTART;VALUE=DATE:20260320", "all-day events stay DATE-valued")
	assert.Contains(t, text, "DTEND;VALUE=DATE:20260321")
	assert.NotContains(t, text, "20260315")

	ev, err := parseEventICS(patched, "etag-2")
	require.NoError(t, err)
	assert.True(t, ev.AllDay)
	assert.Equal(t, 20, ev.Start.Day())
}

func TestApplyPatch_DeleteProps(t *testing.T) {
	withMarker, err := applyPatch([]byte(sampleICS), "bday-anna", calendar.Patch{
		SetProps: map[string]string{calendar.KeyCleaned: "1"},
	})
	require.NoError(t, err)

	cleared, err := applyPatch(withMarker, "bday-anna", calendar.Patch{
		DelProps: []string{calendar.KeyCleaned},
	})
	require.NoError(t, err)
	assert.NotContains(t, string(cleared), "X-CHRONOS-CLEANED")
}

func TestBuildEventICS_RoundTrip(t *testing.T) {
	ev := calendar.Event{
		ID:     "warn-1",
		Title:  "⚠️ Anna Müller in 7 days",
		Start:  mustParseICSTime(t, "20260308"),
		End:    mustParseICSTime(t, "20260309"),
		AllDay: true,
		Props: map[string]string{
			calendar.KeyWarningOf:   "bday-anna",
			calendar.KeyWarningRule: "bday_warn",
		},
	}

	body := buildEventICS(ev)
	require.True(t, strings.HasPrefix(string(body), "BEGIN:VCALENDAR"))

	got, err := parseEventICS(body, "")
	require.NoError(t, err)
	assert.Equal(t, "warn-1", got.ID)
	assert.True(t, got.AllDay)
	assert.Equal(t, "bday-anna", got.Prop(calendar.KeyWarningOf))
	assert.Equal(t, "bday_warn", got.Prop(calendar.KeyWarningRule))
}

func mustParseICSTime(t *testing.T, val string) time.Time {
	t.Helper()
	parsed, err := parseICSTime(val)
	require.NoError(t, err)
	return parsed
}
