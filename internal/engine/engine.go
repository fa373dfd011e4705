package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chronos-cal/chronos/internal/calendar"
	"github.com/chronos-cal/chronos/internal/rule"
)

// Engine drives repair passes over calendars: match, guard, series
// resolution, parse, render, conditional write-back, and warning
// reconciliation, in that order for every event.
type Engine struct {
	set     *rule.Set
	matcher *Matcher
	parser  *DateParser
	clock   Clock
	dryRun  bool
	log     *slog.Logger

	mu       sync.Mutex
	disabled map[string]string // rule id -> disable reason, for this run
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine's notion of now.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithDryRun runs the full pipeline but suppresses every write.
func WithDryRun(on bool) Option {
	return func(e *Engine) { e.dryRun = on }
}

// WithLogger sets the structured logger for per-event records.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New builds an engine over a validated rule set.
func New(set *rule.Set, opts ...Option) *Engine {
	e := &Engine{
		set:      set,
		matcher:  NewMatcher(set),
		parser:   NewDateParser(set.Options),
		clock:    systemClock{},
		log:      slog.Default(),
		disabled: make(map[string]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes one pass over every calendar. Calendars proceed
// concurrently; within each calendar events are strictly sequential.
// Reports come back in adapter order. A calendar whose listing fails
// yields a report carrying only the error count; other calendars are
// unaffected.
func (e *Engine) Run(ctx context.Context, cals []calendar.Adapter) []*Report {
	reports := make([]*Report, len(cals))
	var wg sync.WaitGroup
	for i, cal := range cals {
		wg.Add(1)
		go func(i int, cal calendar.Adapter) {
			defer wg.Done()
			rep, err := e.SyncCalendar(ctx, cal)
			if err != nil {
				e.log.ErrorContext(ctx, "calendar pass failed",
					slog.String("calendar_id", cal.ID()),
					slog.String("error", err.Error()))
			}
			reports[i] = rep
		}(i, cal)
	}
	wg.Wait()
	return reports
}

// SyncCalendar runs one repair pass over a single calendar. The returned
// report is non-nil even on error; it reflects whatever portion of the
// pass completed. The pass is cancellable between events, never within
// one event's phases.
func (e *Engine) SyncCalendar(ctx context.Context, cal calendar.Adapter) (*Report, error) {
	passToken := uuid.NewString()
	rep := newReport(cal.ID(), passToken)
	started := time.Now()
	defer func() { rep.Elapsed = time.Since(started) }()

	today := e.clock.Now()
	from := today.AddDate(0, 0, -1)
	to := today.AddDate(1, 0, 0)
	events, err := cal.List(ctx, from, to)
	if err != nil {
		rep.Counts[OutcomeError]++
		return rep, err
	}

	log := e.log.With(
		slog.String("calendar_id", cal.ID()),
		slog.String("pass_token", passToken),
	)

	var primaries []primaryResult
	manual := make(map[string]map[string]bool)

	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		e.processEvent(ctx, cal, ev, today, rep, log, &primaries, manual)
	}

	reconcileWarnings(ctx, cal, e.set, events, primaries, manual, today, e.dryRun, rep, log)
	return rep, nil
}

// processEvent walks one event through the phase pipeline.
func (e *Engine) processEvent(ctx context.Context, cal calendar.Adapter, ev calendar.Event, today time.Time, rep *Report, log *slog.Logger, primaries *[]primaryResult, manual map[string]map[string]bool) {
	m, matched := e.matcher.Match(ev.Title)
	if !matched {
		// Already-repaired events carry no keyword but their marker
		// still anchors warning reconciliation.
		e.registerMarked(ev, primaries, manual)
		rep.record("", OutcomeNoMatch)
		return
	}
	rep.Attempted++

	r, ok := e.set.ByID(m.RuleID)
	if !ok {
		rep.record(m.RuleID, OutcomeError)
		return
	}
	if reason := e.disabledReason(r.ID); reason != "" {
		rep.record(r.ID, OutcomeRuleDisabled)
		return
	}

	parse := e.parser.Parse(m.Payload)
	if parse.NeedsReview {
		rep.record(r.ID, OutcomeNeedsReview)
		log.InfoContext(ctx, "needs review",
			slog.String("event_id", ev.ID),
			slog.String("rule_id", r.ID),
			slog.String("reason", parse.ReviewReason))
		return
	}
	if parse.Ambiguous {
		log.DebugContext(ctx, "ambiguous date read with default direction",
			slog.String("event_id", ev.ID),
			slog.String("rule_id", r.ID))
	}
	if !parse.HasDate && DateBearing(r.TitleTemplate) {
		// Nothing to substitute for the date placeholders; writing would
		// fabricate one. Leave the title for manual attention instead.
		rep.record(r.ID, OutcomeNeedsReview)
		log.InfoContext(ctx, "needs review",
			slog.String("event_id", ev.ID),
			slog.String("rule_id", r.ID),
			slog.String("reason", "payload carries no date"))
		return
	}

	sig := EventSignature(ev)
	if guardState(ev, sig) == StateCleanedUnchanged {
		rep.record(r.ID, OutcomeSkippedUnchanged)
		e.registerParsed(ev, r, parse, primaries, manual)
		log.DebugContext(ctx, "skip unchanged",
			slog.String("event_id", ev.ID),
			slog.String("rule_id", r.ID))
		return
	}

	decision, serr := resolveSeries(ev, today)
	if serr != nil {
		rep.record(r.ID, OutcomeError)
		log.WarnContext(ctx, "series resolution failed",
			slog.String("event_id", ev.ID),
			slog.String("error", serr.Error()))
		return
	}
	if decision == SeriesPastInstance {
		rep.record(r.ID, OutcomePastInstance)
		return
	}

	occYear := today.Year()
	if occ, ok := nextOccurrence(ev, today); ok {
		occYear = occ.Year()
	}
	title, rerr := Render(r, RenderInput{
		Parse:          parse,
		OccurrenceYear: occYear,
		WarnOffsetDays: e.warnOffsetFor(r),
	})
	if rerr != nil {
		e.disableRule(r.ID, rerr.Error())
		rep.addRuleAlert(r.ID, rerr.Error())
		rep.record(r.ID, OutcomeRuleDisabled)
		log.ErrorContext(ctx, "rule disabled",
			slog.String("rule_id", r.ID),
			slog.String("error", rerr.Error()))
		return
	}

	if e.dryRun {
		rep.record(r.ID, OutcomeDryRun)
		e.registerParsed(ev, r, parse, primaries, manual)
		log.InfoContext(ctx, "would repair",
			slog.String("event_id", ev.ID),
			slog.String("rule_id", r.ID),
			slog.String("title", title))
		return
	}

	props, perr := markerProps(Marker{
		SchemaVersion:   calendar.MarkerSchemaVersion,
		RuleID:          r.ID,
		Signature:       sig,
		OriginalSummary: ev.Title,
		Payload:         markerPayload(parse, r),
	})
	if perr != nil {
		rep.record(r.ID, OutcomeError)
		return
	}

	outcome, werr := writeBack(ctx, cal, ev, sig, calendar.Patch{
		Title:    &title,
		SetProps: props,
	})
	rep.record(r.ID, outcome)
	if outcome == OutcomeSucceeded {
		// Only confirmed repairs anchor warning reconciliation; a
		// conflicted patch was computed over a stale observation.
		e.registerParsed(ev, r, parse, primaries, manual)
	}

	rec := log.With(
		slog.String("event_id", ev.ID),
		slog.String("rule_id", r.ID),
		slog.String("etag", ev.Etag),
		slog.String("signature", sig),
		slog.String("outcome", string(outcome)),
	)
	switch outcome {
	case OutcomeSucceeded:
		rec.InfoContext(ctx, "repaired", slog.String("title", title))
	case OutcomeReadOnly:
		rec.InfoContext(ctx, "read-only target, repair skipped")
	case OutcomeConflict:
		rec.InfoContext(ctx, "concurrent edit, repair abandoned")
	default:
		rec.WarnContext(ctx, "write-back failed", slog.String("error", werr.Error()))
	}
}

// registerParsed records a freshly parsed match for warning
// reconciliation: primaries keep their parse, manual warnings register
// under the variant rule and label.
func (e *Engine) registerParsed(ev calendar.Event, r *rule.Rule, parse ParseResult, primaries *[]primaryResult, manual map[string]map[string]bool) {
	if r.IsWarningVariant() {
		if ev.Prop(calendar.KeyWarningOf) != "" {
			return
		}
		if manual[r.ID] == nil {
			manual[r.ID] = make(map[string]bool)
		}
		manual[r.ID][parse.Label] = true
		return
	}
	*primaries = append(*primaries, primaryResult{Event: ev, Rule: r, Parse: parse})
}

// registerMarked reconstructs the parse from a stored marker so repaired
// events keep participating in warning reconciliation across passes.
func (e *Engine) registerMarked(ev calendar.Event, primaries *[]primaryResult, manual map[string]map[string]bool) {
	mk, has := markerFrom(ev)
	if !has {
		return
	}
	r, ok := e.set.ByID(mk.RuleID)
	if !ok {
		return
	}
	parse := ParseResult{Label: mk.Payload.Name}
	if mk.Payload.Date != "" {
		if t, err := time.Parse("2006-01-02", mk.Payload.Date); err == nil {
			parse.HasDate = true
			parse.Day, parse.Month, parse.Year = t.Day(), int(t.Month()), t.Year()
		}
	}
	e.registerParsed(ev, r, parse, primaries, manual)
}

// warnOffsetFor resolves the day offset a template's {warn_abs_days}
// renders: a variant reads it off its primary rule.
func (e *Engine) warnOffsetFor(r *rule.Rule) int {
	if !r.IsWarningVariant() {
		return r.WarnOffsetDays
	}
	if primary, ok := e.set.ByID(r.PrimaryRuleID); ok {
		return primary.WarnOffsetDays
	}
	return 0
}

func markerPayload(parse ParseResult, r *rule.Rule) MarkerPayload {
	p := MarkerPayload{
		Name:   parse.Label,
		Locale: r.Enrichment["locale"],
	}
	if parse.HasDate && parse.Year != 0 {
		p.Date = time.Date(parse.Year, time.Month(parse.Month), parse.Day, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
	}
	return p
}

func (e *Engine) disableRule(id, reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.disabled[id] = reason
}

func (e *Engine) disabledReason(id string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.disabled[id]
}
