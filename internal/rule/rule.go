// Package rule defines the repair-rule model and loads it from declarative
// CUE configuration.
//
// The rule set is compiled once at process start and is immutable for the
// run's duration; concurrent calendar passes share it read-only. There is
// no class hierarchy per entity type: a rule is a tagged record (keyword
// set, templates, flags) and one generic pipeline interprets it, so new
// entry types are added by configuration, not code.
package rule

import "fmt"

// LeapDayPolicy decides which day a Feb 29 source date is observed on in
// non-leap years.
type LeapDayPolicy string

const (
	// LeapDayFeb28 observes Feb 29 dates on Feb 28 in non-leap years.
	LeapDayFeb28 LeapDayPolicy = "feb28"
	// LeapDayMar01 observes Feb 29 dates on Mar 1 in non-leap years.
	LeapDayMar01 LeapDayPolicy = "mar01"
)

// Rule is one repair rule. Loaded from CUE at startup, immutable thereafter.
type Rule struct {
	// ID uniquely identifies the rule and is stamped into markers.
	ID string

	// Keywords are the case-insensitive, locale-mixed tokens that select
	// this rule when found before the ":" delimiter (e.g. BDAY and GEB).
	Keywords []string

	// TitleTemplate produces the canonical title. See engine.Renderer for
	// the placeholder vocabulary.
	TitleTemplate string

	// AgeSuffixTemplate and YearsSinceSuffixTemplate render the
	// {age_suffix} / {years_since_suffix} placeholders. They apply only
	// when the source payload carried a year; without one they render as
	// empty strings.
	AgeSuffixTemplate        string
	YearsSinceSuffixTemplate string

	// AllDay marks repaired events (and generated warnings) as all-day.
	AllDay bool

	// Yearly marks the rule's events as recurring yearly.
	Yearly bool

	// LeapDay is the observation policy for Feb 29 source dates.
	LeapDay LeapDayPolicy

	// WarnOffsetDays, when non-zero, enables a derived warning event at
	// this offset from the primary occurrence (negative = before).
	WarnOffsetDays int

	// PrimaryRuleID marks this rule as the warning variant for the named
	// primary rule. Warning variants supply the generated warning's title
	// template and keywords for recognizing manually created warnings.
	PrimaryRuleID string

	// Enrichment is an opaque descriptor passed through to the downstream
	// enrichment collaborator. The engine never interprets it.
	Enrichment map[string]string
}

// IsWarningVariant reports whether the rule describes derived warning
// events rather than primary entries.
func (r *Rule) IsWarningVariant() bool { return r.PrimaryRuleID != "" }

// Options are the global parsing and matching options.
type Options struct {
	// Separators are the accepted date separators, e.g. ".", "-", "/".
	Separators []string

	// DayFirst is the default date interpretation when a separator has no
	// explicit override.
	DayFirst bool

	// DayFirstBySeparator overrides DayFirst per separator. A separator
	// with an entry here is never considered ambiguous.
	DayFirstBySeparator map[string]bool

	// YearOptional permits payload dates without a year.
	YearOptional bool

	// StrictWhenAmbiguous refuses to guess when both date components
	// could be the month: the event is tagged needs-review instead.
	StrictWhenAmbiguous bool

	// ReservedPrefixes are keyword-like tokens that must never match a
	// rule (e.g. ACTION, MEETING, CALL); titles carrying them pass
	// through untouched.
	ReservedPrefixes []string

	// Pipeline is the explicit rule evaluation order. When empty, rules
	// run in lexical id order.
	Pipeline []string
}

// Set is the compiled, validated rule set in pipeline order.
type Set struct {
	Options Options
	Rules   []Rule

	// Warnings are non-fatal configuration findings surfaced to the
	// operator (e.g. underspecified leap-day/suffix combinations).
	Warnings []string

	byID     map[string]int
	warnFor  map[string]int // primary rule id -> index of warning variant
}

// NewSet validates rules and options and arranges the rules in pipeline
// order. Validation failures are returned as a single error; non-fatal
// findings end up in Set.Warnings.
func NewSet(opts Options, rules []Rule) (*Set, error) {
	s := &Set{
		Options: opts,
		byID:    make(map[string]int, len(rules)),
		warnFor: make(map[string]int),
	}

	ordered, err := orderRules(opts.Pipeline, rules)
	if err != nil {
		return nil, err
	}
	s.Rules = ordered

	for i := range s.Rules {
		r := &s.Rules[i]
		if _, dup := s.byID[r.ID]; dup {
			return nil, fmt.Errorf("duplicate rule id %q", r.ID)
		}
		s.byID[r.ID] = i
		if r.IsWarningVariant() {
			if _, dup := s.warnFor[r.PrimaryRuleID]; dup {
				return nil, fmt.Errorf("rule %s: primary %q already has a warning variant", r.ID, r.PrimaryRuleID)
			}
			s.warnFor[r.PrimaryRuleID] = i
		}
	}

	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// ByID returns the rule with the given id.
func (s *Set) ByID(id string) (*Rule, bool) {
	i, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return &s.Rules[i], true
}

// WarningVariantOf returns the warning-variant rule for a primary rule id.
func (s *Set) WarningVariantOf(primaryID string) (*Rule, bool) {
	i, ok := s.warnFor[primaryID]
	if !ok {
		return nil, false
	}
	return &s.Rules[i], true
}
