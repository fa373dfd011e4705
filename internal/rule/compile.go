package rule

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"
)

// CompileError is a structured configuration error with the CUE source
// position when available.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// compileRule parses one rule struct from its CUE value. The rule id is the
// struct label: rule: bday: {...} compiles to Rule{ID: "bday", ...}.
func compileRule(id string, v cue.Value) (Rule, error) {
	if err := v.Err(); err != nil {
		return Rule{}, &CompileError{Field: "rule." + id, Message: err.Error(), Pos: v.Pos()}
	}
	r := Rule{ID: id}

	keywords, err := stringList(v, "keywords")
	if err != nil {
		return Rule{}, err
	}
	if len(keywords) == 0 {
		return Rule{}, &CompileError{Field: "rule." + id + ".keywords", Message: "at least one keyword is required", Pos: v.Pos()}
	}
	r.Keywords = keywords

	r.TitleTemplate, err = requiredString(v, "title")
	if err != nil {
		return Rule{}, &CompileError{Field: "rule." + id + ".title", Message: err.Error(), Pos: v.Pos()}
	}
	if r.AgeSuffixTemplate, err = optionalString(v, "age_suffix"); err != nil {
		return Rule{}, err
	}
	if r.YearsSinceSuffixTemplate, err = optionalString(v, "years_since_suffix"); err != nil {
		return Rule{}, err
	}
	if r.AllDay, err = optionalBool(v, "all_day", false); err != nil {
		return Rule{}, err
	}
	if r.Yearly, err = optionalBool(v, "yearly", false); err != nil {
		return Rule{}, err
	}

	leapDay, err := optionalString(v, "leap_day")
	if err != nil {
		return Rule{}, err
	}
	r.LeapDay = LeapDayPolicy(leapDay)

	warnOffset, err := optionalInt(v, "warn_offset_days", 0)
	if err != nil {
		return Rule{}, err
	}
	r.WarnOffsetDays = int(warnOffset)

	if r.PrimaryRuleID, err = optionalString(v, "primary"); err != nil {
		return Rule{}, err
	}
	if r.Enrichment, err = stringMap(v, "enrichment"); err != nil {
		return Rule{}, err
	}
	return r, nil
}

// compileOptions parses the global options struct. Every field has a
// defensible default so a config may omit the whole block.
func compileOptions(v cue.Value) (Options, error) {
	opts := Options{
		Separators:          []string{".", "-", "/"},
		DayFirst:            true,
		YearOptional:        true,
		StrictWhenAmbiguous: true,
	}
	if !v.Exists() {
		return opts, nil
	}
	if err := v.Err(); err != nil {
		return opts, &CompileError{Field: "options", Message: err.Error(), Pos: v.Pos()}
	}

	var err error
	if seps, serr := stringList(v, "separators"); serr != nil {
		return opts, serr
	} else if seps != nil {
		opts.Separators = seps
	}
	if opts.DayFirst, err = optionalBool(v, "day_first", opts.DayFirst); err != nil {
		return opts, err
	}
	if opts.YearOptional, err = optionalBool(v, "year_optional", opts.YearOptional); err != nil {
		return opts, err
	}
	if opts.StrictWhenAmbiguous, err = optionalBool(v, "strict_when_ambiguous", opts.StrictWhenAmbiguous); err != nil {
		return opts, err
	}
	if opts.ReservedPrefixes, err = stringList(v, "reserved_prefixes"); err != nil {
		return opts, err
	}
	if opts.Pipeline, err = stringList(v, "pipeline"); err != nil {
		return opts, err
	}
	if opts.DayFirstBySeparator, err = boolMap(v, "day_first_by_separator"); err != nil {
		return opts, err
	}
	return opts, nil
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", fmt.Errorf("%s is required", field)
	}
	s, err := fv.String()
	if err != nil {
		return "", err
	}
	return s, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", &CompileError{Field: field, Message: err.Error(), Pos: fv.Pos()}
	}
	return s, nil
}

func optionalBool(v cue.Value, field string, def bool) (bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return def, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return def, &CompileError{Field: field, Message: err.Error(), Pos: fv.Pos()}
	}
	return b, nil
}

func optionalInt(v cue.Value, field string, def int64) (int64, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return def, nil
	}
	n, err := fv.Int64()
	if err != nil {
		return def, &CompileError{Field: field, Message: err.Error(), Pos: fv.Pos()}
	}
	return n, nil
}

func stringList(v cue.Value, field string) ([]string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, nil
	}
	iter, err := fv.List()
	if err != nil {
		return nil, &CompileError{Field: field, Message: err.Error(), Pos: fv.Pos()}
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{Field: field, Message: err.Error(), Pos: iter.Value().Pos()}
		}
		out = append(out, s)
	}
	return out, nil
}

func stringMap(v cue.Value, field string) (map[string]string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, nil
	}
	iter, err := fv.Fields()
	if err != nil {
		return nil, &CompileError{Field: field, Message: err.Error(), Pos: fv.Pos()}
	}
	out := make(map[string]string)
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{Field: field, Message: err.Error(), Pos: iter.Value().Pos()}
		}
		out[iter.Selector().Unquoted()] = s
	}
	return out, nil
}

func boolMap(v cue.Value, field string) (map[string]bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, nil
	}
	iter, err := fv.Fields()
	if err != nil {
		return nil, &CompileError{Field: field, Message: err.Error(), Pos: fv.Pos()}
	}
	out := make(map[string]bool)
	for iter.Next() {
		b, err := iter.Value().Bool()
		if err != nil {
			return nil, &CompileError{Field: field, Message: err.Error(), Pos: iter.Value().Pos()}
		}
		out[iter.Selector().Unquoted()] = b
	}
	return out, nil
}
