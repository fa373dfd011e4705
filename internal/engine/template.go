package engine

import (
	"fmt"
	"strings"

	"github.com/chronos-cal/chronos/internal/rule"
)

// RenderInput carries everything a title template can reference.
type RenderInput struct {
	Parse          ParseResult
	OccurrenceYear int
	WarnOffsetDays int
}

// knownPlaceholders lists every placeholder a template may use. Kept in
// one place so ValidateTemplates and render agree on the vocabulary.
var knownPlaceholders = map[string]bool{
	"name":               true,
	"label":              true,
	"name_or_label":      true,
	"date_display":       true,
	"date_day_month":     true,
	"date_iso":           true,
	"age":                true,
	"years_since":        true,
	"age_suffix":         true,
	"years_since_suffix": true,
	"warn_abs_days":      true,
}

// Render expands the rule's title template for one parsed payload. An
// unknown placeholder is a configuration error, not a data error: the
// caller disables the rule for the rest of the run.
func Render(r *rule.Rule, in RenderInput) (string, error) {
	return expand(r, r.TitleTemplate, in, true)
}

// ValidateTemplates checks every template the rule set carries against
// the placeholder vocabulary without rendering anything. Used by the
// validate command so misconfiguration is caught before any pass runs.
func ValidateTemplates(set *rule.Set) []error {
	var errs []error
	sample := RenderInput{
		Parse:          ParseResult{HasDate: true, Day: 1, Month: 1, Year: 2000},
		OccurrenceYear: 2000,
	}
	for i := range set.Rules {
		r := &set.Rules[i]
		for _, tmpl := range []string{r.TitleTemplate, r.AgeSuffixTemplate, r.YearsSinceSuffixTemplate} {
			if tmpl == "" {
				continue
			}
			if _, err := expand(r, tmpl, sample, false); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errs
}

// DateBearing reports whether the template prints the parsed date
// itself. Age and suffix placeholders already render empty without a
// year, so only the direct date forms count.
func DateBearing(tmpl string) bool {
	for _, ph := range []string{"{date_display}", "{date_day_month}", "{date_iso}"} {
		if strings.Contains(tmpl, ph) {
			return true
		}
	}
	return false
}

// expand walks the template once, substituting {placeholder} tokens.
// Braces with no closing partner or unknown names fail the whole rule.
func expand(r *rule.Rule, tmpl string, in RenderInput, nested bool) (string, error) {
	var b strings.Builder
	rest := tmpl
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return "", newTemplateError(r.ID, fmt.Sprintf("unterminated placeholder in %q", tmpl))
		}
		b.WriteString(rest[:open])
		name := rest[open+1 : open+end]
		rest = rest[open+end+1:]

		if !knownPlaceholders[name] {
			return "", newTemplateError(r.ID, fmt.Sprintf("unknown placeholder {%s}", name))
		}
		val, err := placeholderValue(r, name, in, nested)
		if err != nil {
			return "", err
		}
		b.WriteString(val)
	}
}

func placeholderValue(r *rule.Rule, name string, in RenderInput, nested bool) (string, error) {
	p := in.Parse
	switch name {
	case "name", "label", "name_or_label":
		return p.Label, nil
	case "date_display":
		return fmt.Sprintf("%02d.%02d.", p.Day, p.Month), nil
	case "date_day_month":
		return fmt.Sprintf("%02d.%02d", p.Day, p.Month), nil
	case "date_iso":
		if p.Year == 0 {
			return fmt.Sprintf("--%02d-%02d", p.Month, p.Day), nil
		}
		return fmt.Sprintf("%04d-%02d-%02d", p.Year, p.Month, p.Day), nil
	case "age", "years_since":
		if p.Year == 0 {
			return "", nil
		}
		return fmt.Sprintf("%d", in.OccurrenceYear-p.Year), nil
	case "age_suffix":
		return expandSuffix(r, r.AgeSuffixTemplate, in, nested)
	case "years_since_suffix":
		return expandSuffix(r, r.YearsSinceSuffixTemplate, in, nested)
	case "warn_abs_days":
		days := in.WarnOffsetDays
		if days < 0 {
			days = -days
		}
		return fmt.Sprintf("%d", days), nil
	}
	return "", newTemplateError(r.ID, fmt.Sprintf("unknown placeholder {%s}", name))
}

// expandSuffix renders a suffix template, or nothing when the source
// year is unknown. Suffix templates cannot nest further suffixes.
func expandSuffix(r *rule.Rule, tmpl string, in RenderInput, nested bool) (string, error) {
	if !nested {
		return "", nil
	}
	if tmpl == "" || in.Parse.Year == 0 {
		return "", nil
	}
	return expand(r, tmpl, in, false)
}
