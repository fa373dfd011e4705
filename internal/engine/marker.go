package engine

import (
	"encoding/json"
	"fmt"

	"github.com/chronos-cal/chronos/internal/calendar"
)

// Marker is the idempotency record stored in an event's private extension
// bag after a successful repair. It is written only as part of a confirmed
// conditional patch, never separately.
type Marker struct {
	SchemaVersion   string
	RuleID          string
	Signature       string
	OriginalSummary string
	Payload         MarkerPayload
}

// MarkerPayload is the structured parse result stamped alongside the
// marker, consumed by downstream enrichment.
type MarkerPayload struct {
	Name   string `json:"name"`
	Date   string `json:"date,omitempty"` // ISO 8601, present only when a year was known
	Locale string `json:"locale,omitempty"`
}

// GuardState is the idempotency decision for one observed event.
type GuardState int

const (
	// StateUnseen: no marker present; proceed to repair.
	StateUnseen GuardState = iota
	// StateCleanedUnchanged: marker present and its signature matches the
	// freshly computed one; skip write-back entirely.
	StateCleanedUnchanged
	// StateCleanedButDrifted: marker present but the event was edited
	// upstream since the last repair; treat as unseen.
	StateCleanedButDrifted
)

func (s GuardState) String() string {
	switch s {
	case StateUnseen:
		return "unseen"
	case StateCleanedUnchanged:
		return "cleaned_unchanged"
	case StateCleanedButDrifted:
		return "cleaned_but_drifted"
	default:
		return fmt.Sprintf("GuardState(%d)", int(s))
	}
}

// guardState compares the event's stored marker against the signature
// computed from the current observation.
func guardState(ev calendar.Event, signature string) GuardState {
	if ev.Prop(calendar.KeyCleaned) == "" {
		return StateUnseen
	}
	if ev.Prop(calendar.KeySignature) == signature {
		return StateCleanedUnchanged
	}
	return StateCleanedButDrifted
}

// markerProps encodes a marker as extension-bag entries for a patch.
func markerProps(m Marker) (map[string]string, error) {
	payload, err := json.Marshal(m.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode marker payload: %w", err)
	}
	return map[string]string{
		calendar.KeyCleaned:         m.SchemaVersion,
		calendar.KeyRuleID:          m.RuleID,
		calendar.KeySignature:       m.Signature,
		calendar.KeyOriginalSummary: m.OriginalSummary,
		calendar.KeyPayload:         string(payload),
	}, nil
}

// markerFrom decodes the marker stored on an event, if any.
func markerFrom(ev calendar.Event) (Marker, bool) {
	if ev.Prop(calendar.KeyCleaned) == "" {
		return Marker{}, false
	}
	m := Marker{
		SchemaVersion:   ev.Prop(calendar.KeyCleaned),
		RuleID:          ev.Prop(calendar.KeyRuleID),
		Signature:       ev.Prop(calendar.KeySignature),
		OriginalSummary: ev.Prop(calendar.KeyOriginalSummary),
	}
	if raw := ev.Prop(calendar.KeyPayload); raw != "" {
		// A foreign client may have mangled the JSON; a marker with an
		// unreadable payload is still a marker.
		_ = json.Unmarshal([]byte(raw), &m.Payload)
	}
	return m, true
}
