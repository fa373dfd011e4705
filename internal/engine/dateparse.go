package engine

import (
	"strings"
	"time"
	"unicode"

	"github.com/chronos-cal/chronos/internal/rule"
)

// Parse is the structured result of splitting a matched payload into a
// label and an optional trailing date.
type ParseResult struct {
	Label string

	// HasDate is false when the payload carries no trailing date token.
	HasDate bool
	Day     int
	Month   int
	Year    int // 0 when the year was omitted

	// Ambiguous marks a day/month order the options could not settle.
	// NeedsReview flags payloads the parser refuses to guess about:
	// an ambiguous order under strict options, or date-shaped tokens
	// that name no real calendar date.
	Ambiguous    bool
	NeedsReview  bool
	ReviewReason string
}

// DateParser splits payloads like "Alice 03.07.1982" into a greedy label
// and a trailing date token.
type DateParser struct {
	opts rule.Options
}

func NewDateParser(opts rule.Options) *DateParser {
	return &DateParser{opts: opts}
}

// Parse takes the payload after the keyword delimiter. Only the final
// whitespace-separated token is considered as a date; everything before
// it belongs to the label. A trailing token that is date-shaped but
// invalid is reported for review instead of being demoted to label text.
func (p *DateParser) Parse(payload string) ParseResult {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return ParseResult{}
	}

	idx := strings.LastIndexFunc(payload, unicode.IsSpace)
	label, token := "", payload
	if idx >= 0 {
		label = strings.TrimSpace(payload[:idx])
		token = payload[idx+1:]
	}

	parsed, shaped := p.parseToken(token)
	if !shaped {
		// No date at all: the whole payload is the label.
		return ParseResult{Label: payload}
	}
	parsed.Label = label
	if parsed.Label == "" {
		parsed.Label = payload
		parsed.HasDate = false
		parsed.Day, parsed.Month, parsed.Year = 0, 0, 0
		parsed.NeedsReview = false
		parsed.ReviewReason = ""
	}
	return parsed
}

// parseToken reports whether the token is date-shaped under any
// configured separator, and if so what it parses to.
func (p *DateParser) parseToken(token string) (ParseResult, bool) {
	for _, sep := range p.opts.Separators {
		trimmed := strings.TrimSuffix(token, sep)
		parts := strings.Split(trimmed, sep)
		if len(parts) != 2 && len(parts) != 3 {
			continue
		}
		if len(parts) == 2 && !p.opts.YearOptional {
			continue
		}
		nums := make([]int, len(parts))
		ok := true
		for i, part := range parts {
			n, valid := parseComponent(part, i == 2)
			if !valid {
				ok = false
				break
			}
			nums[i] = n
		}
		if !ok {
			continue
		}
		return p.resolve(sep, nums), true
	}
	return ParseResult{}, false
}

// resolve turns the numeric components into day/month/year, applying the
// per-separator direction overrides and the ambiguity policy.
func (p *DateParser) resolve(sep string, nums []int) ParseResult {
	first, second := nums[0], nums[1]
	year := 0
	if len(nums) == 3 {
		year = nums[2]
	}

	dayFirst := p.opts.DayFirst
	overridden := false
	if v, ok := p.opts.DayFirstBySeparator[sep]; ok {
		dayFirst = v
		overridden = true
	}

	ambiguous := !overridden && first <= 12 && second <= 12 && first != second
	if ambiguous && p.opts.StrictWhenAmbiguous {
		return ParseResult{
			HasDate:      true,
			Ambiguous:    true,
			NeedsReview:  true,
			ReviewReason: "ambiguous day/month order",
		}
	}
	if first > 12 {
		dayFirst = true
	} else if second > 12 {
		dayFirst = false
	}

	day, month := first, second
	if !dayFirst {
		day, month = second, first
	}

	if !validDate(day, month, year) {
		return ParseResult{
			HasDate:      true,
			NeedsReview:  true,
			ReviewReason: "no such calendar date",
		}
	}
	return ParseResult{HasDate: true, Ambiguous: ambiguous, Day: day, Month: month, Year: year}
}

// parseComponent accepts 1-2 digit day/month components and exactly
// 4-digit years. Anything else is not date-shaped.
func parseComponent(s string, isYear bool) (int, bool) {
	if isYear {
		if len(s) != 4 {
			return 0, false
		}
	} else if len(s) == 0 || len(s) > 2 {
		return 0, false
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

// validDate checks the components against the real calendar. With the
// year omitted, Feb 29 is accepted as a recurring leap-day date.
func validDate(day, month, year int) bool {
	if month < 1 || month > 12 || day < 1 {
		return false
	}
	if year == 0 {
		if month == 2 && day == 29 {
			return true
		}
		year = 2001 // any non-leap reference year
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return t.Day() == day && int(t.Month()) == month
}
