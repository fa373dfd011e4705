package engine

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/chronos-cal/chronos/internal/rule"
)

// keywordDelimiter separates the keyword prefix from the payload.
const keywordDelimiter = ":"

// Match is a successful keyword match: which rule claimed the title and
// what payload remains for the date parser.
type Match struct {
	RuleID  string
	Keyword string
	Payload string
}

// Matcher maps locale-mixed keyword prefixes to rule ids.
//
// Matching is the only gate for all downstream phases: a title without a
// keyword (or with a reserved prefix) flows through the engine untouched.
type Matcher struct {
	folder   cases.Caser
	byToken  map[string]string // folded keyword -> rule id
	reserved map[string]bool   // folded reserved prefixes
}

// NewMatcher builds a matcher from the validated rule set. Keywords are
// case-folded once here so per-title matching is a single map lookup.
func NewMatcher(set *rule.Set) *Matcher {
	m := &Matcher{
		folder:   cases.Fold(),
		byToken:  make(map[string]string),
		reserved: make(map[string]bool),
	}
	for i := range set.Rules {
		r := &set.Rules[i]
		for _, kw := range r.Keywords {
			m.byToken[m.folder.String(kw)] = r.ID
		}
	}
	for _, prefix := range set.Options.ReservedPrefixes {
		m.reserved[m.folder.String(prefix)] = true
	}
	return m
}

// Match scans a raw title for an exact case-insensitive keyword token
// immediately preceding the ":" delimiter. EN/DE synonyms resolve to the
// same rule id because they share a keyword set. Reserved prefixes are
// explicitly excluded and pass through untouched.
func (m *Matcher) Match(title string) (Match, bool) {
	idx := strings.Index(title, keywordDelimiter)
	if idx <= 0 {
		return Match{}, false
	}

	token := strings.TrimSpace(title[:idx])
	if token == "" || strings.ContainsAny(token, " \t") {
		return Match{}, false
	}

	folded := m.folder.String(token)
	if m.reserved[folded] {
		return Match{}, false
	}
	ruleID, ok := m.byToken[folded]
	if !ok {
		return Match{}, false
	}
	return Match{
		RuleID:  ruleID,
		Keyword: token,
		Payload: strings.TrimSpace(title[idx+len(keywordDelimiter):]),
	}, true
}
