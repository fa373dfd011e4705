package calendar

// Extension-bag keys written by the repair engine. All keys live in the
// "chronos." namespace so other clients can recognize and preserve them.
const (
	// KeyCleaned holds the marker schema version ("1"). Its presence
	// means the event has been repaired at least once.
	KeyCleaned = "chronos.cleaned"

	// KeyRuleID holds the id of the rule that performed the repair.
	KeyRuleID = "chronos.rule_id"

	// KeySignature holds the hash of the event's pre-repair identity
	// (original title, start, recurrence) at the time of the last repair.
	KeySignature = "chronos.signature"

	// KeyOriginalSummary holds the verbatim pre-repair title.
	KeyOriginalSummary = "chronos.original_summary"

	// KeyPayload holds the structured parse payload as JSON
	// (name, optional ISO date, locale).
	KeyPayload = "chronos.payload"

	// KeyWarningOf holds, on a generated warning event, the id of the
	// primary event it was derived from. Presence of this key is what
	// distinguishes an auto warning from a manually created one.
	KeyWarningOf = "chronos.warning_of"

	// KeyWarningRule holds, on a generated warning event, the id of the
	// warning-variant rule that produced it.
	KeyWarningRule = "chronos.warning_rule"
)

// MarkerSchemaVersion is the value stored under KeyCleaned.
const MarkerSchemaVersion = "1"
