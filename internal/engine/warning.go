package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/chronos-cal/chronos/internal/calendar"
	"github.com/chronos-cal/chronos/internal/rule"
)

// warningIDPrefix namespaces engine-created warning events so their ids
// never collide with user events.
const warningIDPrefix = "chronos-warn-"

// primaryResult is one keyword-matched primary event after repair,
// carried into warning reconciliation.
type primaryResult struct {
	Event calendar.Event
	Rule  *rule.Rule
	Parse ParseResult
}

// projectDate places a parsed day/month into the occurrence year. Feb 29
// source dates in non-leap years land according to the rule's leap-day
// policy.
func projectDate(p ParseResult, year int, policy rule.LeapDayPolicy, loc *time.Location) time.Time {
	day, month := p.Day, p.Month
	if month == 2 && day == 29 && !isLeapYear(year) {
		if policy == rule.LeapDayMar01 {
			day, month = 1, 3
		} else {
			day = 28
		}
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
}

func isLeapYear(y int) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}

// warningStart computes when the auto warning for a primary should sit:
// the upcoming observation of its date shifted by the rule's day offset.
// A parsed day/month wins over the raw series occurrence, so a Feb 29
// series still warns every year under its leap-day policy even though
// the recurrence itself only fires in leap years.
func warningStart(pr primaryResult, today time.Time) (time.Time, bool) {
	occ, ok := nextOccurrence(pr.Event, today)
	if !ok {
		return time.Time{}, false
	}
	anchor := occ
	if pr.Parse.HasDate {
		anchor = projectDate(pr.Parse, today.Year(), pr.Rule.LeapDay, occ.Location())
		if beforeDay(anchor, today) {
			anchor = projectDate(pr.Parse, today.Year()+1, pr.Rule.LeapDay, occ.Location())
		}
	}
	return anchor.AddDate(0, 0, pr.Rule.WarnOffsetDays), true
}

// reconcileWarnings drives the warning lifecycle for one calendar pass:
// ensure exactly one warning per (primary, variant rule) at the offset
// the primary's current date demands, then prune auto warnings whose
// primary vanished. An existing auto warning whose start or title no
// longer matches (the primary's date was corrected upstream) is patched
// rather than recreated. Manual warnings, recognized by the absence of
// the link property, satisfy the "exactly one" demand and are never
// created, moved, or deleted by the engine.
func reconcileWarnings(ctx context.Context, cal calendar.Adapter, set *rule.Set, events []calendar.Event, primaries []primaryResult, manual map[string]map[string]bool, today time.Time, dryRun bool, rep *Report, log *slog.Logger) {
	autosByLink := make(map[string]calendar.Event)
	listedIDs := make(map[string]bool, len(events))
	for _, ev := range events {
		listedIDs[ev.ID] = true
		if of := ev.Prop(calendar.KeyWarningOf); of != "" {
			autosByLink[of+"\x00"+ev.Prop(calendar.KeyWarningRule)] = ev
		}
	}

	for _, pr := range primaries {
		variant, ok := set.WarningVariantOf(pr.Rule.ID)
		if !ok || pr.Rule.WarnOffsetDays == 0 {
			continue
		}
		if pr.Parse.NeedsReview {
			continue
		}
		if manual[variant.ID] != nil && manual[variant.ID][pr.Parse.Label] {
			continue
		}

		start, ok := warningStart(pr, today)
		if !ok {
			continue
		}
		title, err := Render(variant, RenderInput{
			Parse:          pr.Parse,
			OccurrenceYear: start.Year(),
			WarnOffsetDays: pr.Rule.WarnOffsetDays,
		})
		if err != nil {
			rep.addRuleAlert(variant.ID, err.Error())
			continue
		}

		if existing, linked := autosByLink[pr.Event.ID+"\x00"+variant.ID]; linked {
			// Warnings are all-day events; day granularity is their
			// identity regardless of how the backend encodes midnight.
			if existing.Title == title && sameDay(existing.Start, start) {
				continue
			}
			if dryRun {
				rep.MovedWarnings++
				continue
			}
			end := start.AddDate(0, 0, 1)
			_, uerr := cal.Update(ctx, existing.ID, existing.Etag, calendar.Patch{
				Title:          &title,
				Start:          &start,
				End:            &end,
				SuppressNotify: true,
			})
			if uerr != nil {
				if errors.Is(uerr, calendar.ErrReadOnly) || errors.Is(uerr, calendar.ErrConflict) {
					continue
				}
				log.WarnContext(ctx, "move warning failed",
					slog.String("warning_id", existing.ID),
					slog.String("primary_id", pr.Event.ID),
					slog.String("error", uerr.Error()))
				continue
			}
			rep.MovedWarnings++
			continue
		}

		if dryRun {
			rep.CreatedWarnings++
			log.DebugContext(ctx, "would create warning",
				slog.String("primary_id", pr.Event.ID),
				slog.String("rule_id", variant.ID))
			continue
		}
		_, err = cal.Create(ctx, calendar.Event{
			ID:     warningIDPrefix + uuid.NewString(),
			Title:  title,
			Start:  start,
			End:    start.AddDate(0, 0, 1),
			AllDay: true,
			Props: map[string]string{
				calendar.KeyWarningOf:   pr.Event.ID,
				calendar.KeyWarningRule: variant.ID,
			},
		})
		if err != nil {
			if errors.Is(err, calendar.ErrReadOnly) {
				continue
			}
			log.WarnContext(ctx, "create warning failed",
				slog.String("primary_id", pr.Event.ID),
				slog.String("error", err.Error()))
			continue
		}
		rep.CreatedWarnings++
	}

	// Prune pass: auto warnings orphaned by their primary's removal.
	// A primary that merely lost its keyword is still listed and keeps
	// its warning.
	for _, ev := range events {
		of := ev.Prop(calendar.KeyWarningOf)
		if of == "" || listedIDs[of] {
			continue
		}
		if dryRun {
			rep.PrunedWarnings++
			continue
		}
		if err := cal.Delete(ctx, ev.ID, ev.Etag); err != nil {
			if errors.Is(err, calendar.ErrConflict) || errors.Is(err, calendar.ErrReadOnly) {
				continue
			}
			log.WarnContext(ctx, "prune warning failed",
				slog.String("warning_id", ev.ID),
				slog.String("error", err.Error()))
			continue
		}
		rep.PrunedWarnings++
	}
}

