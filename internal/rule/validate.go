package rule

import (
	"fmt"
	"sort"
	"strings"
)

// orderRules arranges rules according to the explicit pipeline list. A
// non-empty pipeline must name every rule exactly once; an empty pipeline
// falls back to lexical id order.
func orderRules(pipeline []string, rules []Rule) ([]Rule, error) {
	byID := make(map[string]Rule, len(rules))
	for _, r := range rules {
		byID[r.ID] = r
	}

	if len(pipeline) == 0 {
		out := make([]Rule, len(rules))
		copy(out, rules)
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return out, nil
	}

	seen := make(map[string]bool, len(pipeline))
	out := make([]Rule, 0, len(rules))
	for _, id := range pipeline {
		if seen[id] {
			return nil, fmt.Errorf("pipeline lists rule %q twice", id)
		}
		seen[id] = true
		r, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("pipeline references unknown rule %q", id)
		}
		out = append(out, r)
	}
	for id := range byID {
		if !seen[id] {
			return nil, fmt.Errorf("rule %q missing from pipeline", id)
		}
	}
	return out, nil
}

func (s *Set) validate() error {
	if len(s.Options.Separators) == 0 {
		return fmt.Errorf("options: at least one date separator is required")
	}
	for sep := range s.Options.DayFirstBySeparator {
		if !contains(s.Options.Separators, sep) {
			return fmt.Errorf("options: day_first override for unconfigured separator %q", sep)
		}
	}

	keywordOwner := make(map[string]string)
	for i := range s.Rules {
		r := &s.Rules[i]
		if r.ID == "" {
			return fmt.Errorf("rule with empty id")
		}
		if len(r.Keywords) == 0 {
			return fmt.Errorf("rule %s: at least one keyword is required", r.ID)
		}
		if r.TitleTemplate == "" {
			return fmt.Errorf("rule %s: title template is required", r.ID)
		}
		switch r.LeapDay {
		case "", LeapDayFeb28, LeapDayMar01:
		default:
			return fmt.Errorf("rule %s: unknown leap_day policy %q", r.ID, r.LeapDay)
		}
		if r.LeapDay == "" {
			r.LeapDay = LeapDayFeb28
		}

		for _, kw := range r.Keywords {
			folded := strings.ToUpper(kw)
			if folded == "" {
				return fmt.Errorf("rule %s: empty keyword", r.ID)
			}
			if owner, dup := keywordOwner[folded]; dup {
				return fmt.Errorf("rule %s: keyword %q already claimed by rule %s", r.ID, kw, owner)
			}
			keywordOwner[folded] = r.ID
		}

		if r.PrimaryRuleID != "" {
			primary, ok := s.ByID(r.PrimaryRuleID)
			if !ok {
				return fmt.Errorf("rule %s: unknown primary rule %q", r.ID, r.PrimaryRuleID)
			}
			if primary.IsWarningVariant() {
				return fmt.Errorf("rule %s: primary %q is itself a warning variant", r.ID, r.PrimaryRuleID)
			}
		}
		if r.WarnOffsetDays != 0 {
			if r.IsWarningVariant() {
				return fmt.Errorf("rule %s: warn_offset_days belongs on the primary rule", r.ID)
			}
			if _, ok := s.warnFor[r.ID]; !ok {
				return fmt.Errorf("rule %s: warn_offset_days set but no warning variant references it", r.ID)
			}
		}
	}

	for _, prefix := range s.Options.ReservedPrefixes {
		if owner, clash := keywordOwner[strings.ToUpper(prefix)]; clash {
			return fmt.Errorf("reserved prefix %q collides with keyword of rule %s", prefix, owner)
		}
	}

	// Leap-day interaction with age suffixes for Feb 29 source dates is
	// underspecified upstream; surface it instead of guessing.
	for i := range s.Rules {
		r := &s.Rules[i]
		if r.Yearly && (r.AgeSuffixTemplate != "" || r.YearsSinceSuffixTemplate != "") {
			s.Warnings = append(s.Warnings, fmt.Sprintf(
				"rule %s: leap_day policy %s applies to Feb 29 dates, but its interaction with age/years-since suffixes is not specified; suffixes are rendered from the source year unadjusted",
				r.ID, r.LeapDay))
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
