package caldav

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/chronos-cal/chronos/internal/calendar"
)

// Extension-bag entries are stored as X-properties on the VEVENT so they
// survive round trips through other CalDAV clients. "chronos.rule_id"
// maps to "X-CHRONOS-RULE-ID" and back.
const xPropPrefix = "X-CHRONOS-"

func bagKeyToProp(key string) string {
	rest := strings.TrimPrefix(key, "chronos.")
	rest = strings.ReplaceAll(rest, "_", "-")
	return xPropPrefix + strings.ToUpper(rest)
}

func propToBagKey(name string) (string, bool) {
	if !strings.HasPrefix(name, xPropPrefix) {
		return "", false
	}
	rest := strings.TrimPrefix(name, xPropPrefix)
	rest = strings.ReplaceAll(strings.ToLower(rest), "-", "_")
	return "chronos." + rest, true
}

// parseEventICS parses a single-resource ICS body into a calendar.Event.
// The resource is expected to hold exactly one VEVENT (Radicale stores one
// scheduling object per resource); with a recurring series plus overrides
// the first VEVENT without RECURRENCE-ID is the master and is returned.
func parseEventICS(body []byte, etag string) (calendar.Event, error) {
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return calendar.Event{}, fmt.Errorf("parse ics: %w", err)
	}

	events := cal.Events()
	if len(events) == 0 {
		return calendar.Event{}, fmt.Errorf("parse ics: no VEVENT in resource")
	}

	ve := events[0]
	for _, cand := range events {
		if cand.GetProperty(ical.ComponentProperty("RECURRENCE-ID")) == nil {
			ve = cand
			break
		}
	}
	return eventFromVEvent(ve, etag)
}

func eventFromVEvent(ve *ical.VEvent, etag string) (calendar.Event, error) {
	out := calendar.Event{Etag: etag}

	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return out, fmt.Errorf("vevent missing UID")
	}
	out.ID = uid.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Title = p.Value
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return out, fmt.Errorf("vevent %s: start: %w", out.ID, err)
	}
	out.Start = start
	if end, err := ve.GetEndAt(); err == nil {
		out.End = end
	}

	// All-day detection: VALUE=DATE parameter or a date-only DTSTART value.
	if p := ve.GetProperty(ical.ComponentPropertyDtStart); p != nil {
		if params := p.ICalParameters; params != nil {
			if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
				out.AllDay = true
			}
		}
		if !strings.Contains(p.Value, "T") {
			out.AllDay = true
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RRule = p.Value
	}
	if p := ve.GetProperty(ical.ComponentProperty("RECURRENCE-ID")); p != nil {
		rid, err := parseICSTime(p.Value)
		if err != nil {
			return out, fmt.Errorf("vevent %s: recurrence-id %q: %w", out.ID, p.Value, err)
		}
		out.RecurrenceID = &rid
	}

	for _, p := range ve.Properties {
		if key, ok := propToBagKey(p.IANAToken); ok {
			if out.Props == nil {
				out.Props = make(map[string]string)
			}
			out.Props[key] = p.Value
		}
	}
	return out, nil
}

// applyPatch mutates the raw ICS body in place of rebuilding it, so every
// property the engine does not own (alarms, attendees, vendor X-props)
// survives the write-back untouched.
func applyPatch(body []byte, uid string, p calendar.Patch) ([]byte, error) {
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("patch ics: %w", err)
	}

	var target *ical.VEvent
	for _, ve := range cal.Events() {
		prop := ve.GetProperty(ical.ComponentPropertyUniqueId)
		if prop != nil && prop.Value == uid && ve.GetProperty(ical.ComponentProperty("RECURRENCE-ID")) == nil {
			target = ve
			break
		}
	}
	if target == nil && len(cal.Events()) == 1 {
		target = cal.Events()[0]
	}
	if target == nil {
		return nil, fmt.Errorf("patch ics: UID %s not found in resource", uid)
	}

	if p.Title != nil {
		target.SetProperty(ical.ComponentPropertySummary, *p.Title)
	}
	if p.Start != nil {
		if dateOnly(target, ical.ComponentPropertyDtStart) {
			target.SetAllDayStartAt(*p.Start)
		} else {
			target.SetStartAt(*p.Start)
		}
	}
	if p.End != nil {
		if dateOnly(target, ical.ComponentPropertyDtEnd) {
			target.SetAllDayEndAt(*p.End)
		} else {
			target.SetEndAt(*p.End)
		}
	}
	for key, value := range p.SetProps {
		target.SetProperty(ical.ComponentProperty(bagKeyToProp(key)), value)
	}
	for _, key := range p.DelProps {
		removeProperty(target, bagKeyToProp(key))
	}

	return []byte(cal.Serialize()), nil
}

// buildEventICS renders a calendar.Event into a fresh single-VEVENT resource.
// Used for Create (generated warning events).
func buildEventICS(ev calendar.Event) []byte {
	cal := ical.NewCalendar()
	cal.SetProductId("-//chronos//calendar repair//EN")

	ve := cal.AddEvent(ev.ID)
	ve.SetProperty(ical.ComponentPropertySummary, ev.Title)
	ve.SetDtStampTime(time.Now().UTC())
	if ev.AllDay {
		ve.SetAllDayStartAt(ev.Start)
		if !ev.End.IsZero() {
			ve.SetAllDayEndAt(ev.End)
		}
	} else {
		ve.SetStartAt(ev.Start)
		if !ev.End.IsZero() {
			ve.SetEndAt(ev.End)
		}
	}
	if ev.RRule != "" {
		ve.SetProperty(ical.ComponentPropertyRrule, ev.RRule)
	}
	for key, value := range ev.Props {
		ve.SetProperty(ical.ComponentProperty(bagKeyToProp(key)), value)
	}
	return []byte(cal.Serialize())
}

// dateOnly reports whether the property currently carries a DATE value,
// so a moved all-day event keeps its all-day form.
func dateOnly(ve *ical.VEvent, prop ical.ComponentProperty) bool {
	p := ve.GetProperty(prop)
	return p != nil && len(p.Value) == 8
}

func removeProperty(ve *ical.VEvent, name string) {
	kept := ve.Properties[:0]
	for _, p := range ve.Properties {
		if p.IANAToken != name {
			kept = append(kept, p)
		}
	}
	ve.Properties = kept
}

// parseICSTime handles the DATE, floating DATE-TIME, and UTC DATE-TIME
// forms used by RECURRENCE-ID values.
func parseICSTime(val string) (time.Time, error) {
	layouts := []string{"20060102T150405Z", "20060102T150405", "20060102"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, val); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized ics time %q", val)
}
