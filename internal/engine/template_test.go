package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronos-cal/chronos/internal/rule"
)

func TestRender_BirthdayWithAge(t *testing.T) {
	set := testRuleSet(t)
	r, ok := set.ByID("bday")
	require.True(t, ok)

	got, err := Render(r, RenderInput{
		Parse:          ParseResult{Label: "Anna Müller", HasDate: true, Day: 15, Month: 3, Year: 1990},
		OccurrenceYear: 2025,
	})
	require.NoError(t, err)
	assert.Equal(t, "🎉 Birthday: Anna Müller (15.03.) – turns 35.", got)
}

func TestRender_SuffixEmptyWithoutYear(t *testing.T) {
	set := testRuleSet(t)
	r, ok := set.ByID("bday")
	require.True(t, ok)

	got, err := Render(r, RenderInput{
		Parse:          ParseResult{Label: "Anna Müller", HasDate: true, Day: 15, Month: 3},
		OccurrenceYear: 2025,
	})
	require.NoError(t, err)
	assert.Equal(t, "🎉 Birthday: Anna Müller (15.03.)", got)
}

func TestRender_YearsSinceSuffix(t *testing.T) {
	set := testRuleSet(t)
	r, ok := set.ByID("anniv")
	require.True(t, ok)

	got, err := Render(r, RenderInput{
		Parse:          ParseResult{Label: "K & L", HasDate: true, Day: 29, Month: 2, Year: 2020},
		OccurrenceYear: 2025,
	})
	require.NoError(t, err)
	assert.Equal(t, "💍 Anniversary: K & L (29.02.) – 5 years.", got)
}

func TestRender_WarningTemplate(t *testing.T) {
	set := testRuleSet(t)
	r, ok := set.ByID("bday_warn")
	require.True(t, ok)

	got, err := Render(r, RenderInput{
		Parse:          ParseResult{Label: "Anna Müller"},
		WarnOffsetDays: -7,
	})
	require.NoError(t, err)
	assert.Equal(t, "⚠️ Anna Müller in 7 days", got)
}

func TestRender_UnknownPlaceholderIsConfigError(t *testing.T) {
	r := &rule.Rule{ID: "broken", TitleTemplate: "Hello {nmae}"}

	_, err := Render(r, RenderInput{Parse: ParseResult{Label: "x"}})
	require.Error(t, err)
	assert.True(t, IsTemplateConfigError(err))
	assert.Contains(t, err.Error(), "{nmae}")
	assert.Contains(t, err.Error(), "broken")
}

func TestRender_UnterminatedPlaceholder(t *testing.T) {
	r := &rule.Rule{ID: "broken", TitleTemplate: "Hello {name"}

	_, err := Render(r, RenderInput{Parse: ParseResult{Label: "x"}})
	require.Error(t, err)
	assert.True(t, IsTemplateConfigError(err))
}

func TestRender_DateISO(t *testing.T) {
	r := &rule.Rule{ID: "iso", TitleTemplate: "{label} {date_iso}"}

	got, err := Render(r, RenderInput{
		Parse: ParseResult{Label: "Alice", HasDate: true, Day: 3, Month: 7, Year: 1982},
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice 1982-07-03", got)

	got, err = Render(r, RenderInput{
		Parse: ParseResult{Label: "Alice", HasDate: true, Day: 3, Month: 7},
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice --07-03", got)
}

func TestDateBearing(t *testing.T) {
	assert.True(t, DateBearing("🎉 Birthday: {name} ({date_display}){age_suffix}"))
	assert.True(t, DateBearing("{label} {date_iso}"))
	assert.True(t, DateBearing("{date_day_month}"))
	assert.False(t, DateBearing("⚠️ {name_or_label} in {warn_abs_days} days"))
	assert.False(t, DateBearing("{name}{age_suffix}"))
}

func TestValidateTemplates(t *testing.T) {
	assert.Empty(t, ValidateTemplates(testRuleSet(t)))

	set, err := rule.NewSet(rule.Options{Separators: []string{"."}}, []rule.Rule{
		{ID: "a", Keywords: []string{"A"}, TitleTemplate: "{typo}"},
		{ID: "b", Keywords: []string{"B"}, TitleTemplate: "{name}", AgeSuffixTemplate: "{also_typo}"},
	})
	require.NoError(t, err)

	errs := ValidateTemplates(set)
	require.Len(t, errs, 2)
	for _, e := range errs {
		assert.True(t, IsTemplateConfigError(e))
	}
}
