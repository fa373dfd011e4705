package engine

import "time"

// Outcome is the terminal classification of one event within a sync pass.
type Outcome string

const (
	// OutcomeNoMatch: no keyword matched; normal pass-through, not an error.
	OutcomeNoMatch Outcome = "no_match"
	// OutcomeSucceeded: conditional patch landed and the marker was stamped.
	OutcomeSucceeded Outcome = "succeeded"
	// OutcomeSkippedUnchanged: marker signature matched; zero network writes.
	OutcomeSkippedUnchanged Outcome = "skipped_unchanged"
	// OutcomeConflict: concurrent edit detected and not recoverable by the
	// single retry; the event was left untouched.
	OutcomeConflict Outcome = "conflict"
	// OutcomeReadOnly: the target calendar refused the write; enrichment
	// downstream may still proceed on the unrepaired title.
	OutcomeReadOnly Outcome = "readonly_skip"
	// OutcomeNeedsReview: the payload date was ambiguous under strict
	// parsing; the event is tagged for manual attention, nothing written.
	OutcomeNeedsReview Outcome = "needs_review"
	// OutcomePastInstance: the keyword sat on an occurrence dated before
	// today; past instances are never written.
	OutcomePastInstance Outcome = "past_instance"
	// OutcomeRuleDisabled: the matched rule was disabled earlier in the
	// run by a template configuration error.
	OutcomeRuleDisabled Outcome = "rule_disabled"
	// OutcomeDryRun: the pipeline ran fully but the write was suppressed.
	OutcomeDryRun Outcome = "dry_run"
	// OutcomeError: an unexpected transport or backend failure; the pass
	// continues with the next event.
	OutcomeError Outcome = "error"
)

// RuleAlert records a rule disabled mid-run by a configuration error.
type RuleAlert struct {
	RuleID string `json:"rule_id"`
	Reason string `json:"reason"`
}

// Report aggregates the outcomes of one calendar's sync pass.
type Report struct {
	CalendarID string `json:"calendar_id"`

	// PassToken correlates the log records of one pass.
	PassToken string `json:"pass_token"`

	// Attempted counts events that matched a rule (the gate for all
	// downstream phases).
	Attempted int `json:"attempted"`

	Counts map[Outcome]int            `json:"counts"`
	ByRule map[string]map[Outcome]int `json:"by_rule,omitempty"`

	CreatedWarnings int `json:"created_warnings"`
	MovedWarnings   int `json:"moved_warnings"`
	PrunedWarnings  int `json:"pruned_warnings"`

	RuleAlerts []RuleAlert `json:"rule_alerts,omitempty"`

	Elapsed time.Duration `json:"elapsed_ns"`
}

func newReport(calendarID, passToken string) *Report {
	return &Report{
		CalendarID: calendarID,
		PassToken:  passToken,
		Counts:     make(map[Outcome]int),
		ByRule:     make(map[string]map[Outcome]int),
	}
}

// addRuleAlert registers a rule disabled for the rest of the run. Each
// rule is reported at most once per pass.
func (r *Report) addRuleAlert(ruleID, reason string) {
	for _, a := range r.RuleAlerts {
		if a.RuleID == ruleID {
			return
		}
	}
	r.RuleAlerts = append(r.RuleAlerts, RuleAlert{RuleID: ruleID, Reason: reason})
}

// record tallies an outcome, tagged by rule id when a rule was involved.
func (r *Report) record(ruleID string, o Outcome) {
	r.Counts[o]++
	if ruleID == "" {
		return
	}
	per := r.ByRule[ruleID]
	if per == nil {
		per = make(map[Outcome]int)
		r.ByRule[ruleID] = per
	}
	per[o]++
}
