package app

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"survey-service/internal/domain"
)

func TestFormCleansEachKind(t *testing.T) {
	questions := []domain.Question{
		{ID: "name", Kind: domain.KindSingleLine, Required: true},
		{ID: "mail", Kind: domain.KindEmail},
		{ID: "age", Kind: domain.KindPositiveNumber},
		{ID: "site", Kind: domain.KindURL},
		{ID: "born", Kind: domain.KindDate},
		{ID: "seen", Kind: domain.KindDateTime},
		{ID: "fruit", Kind: domain.KindRadio, Choices: []string{"apple", "pear"}},
		{ID: "tags", Kind: domain.KindCheckboxes, Choices: []string{"a", "b", "c"}},
		{ID: "agree", Kind: domain.KindCheckbox, Choices: []string{"true", "false"}},
		{ID: "notes", Kind: domain.KindMultiLine},
	}
	values, errs := NewForm(questions).Validate(url.Values{
		"name":  {"  Ada "},
		"mail":  {"ada@example.com"},
		"age":   {"36"},
		"site":  {"https://example.com/x"},
		"born":  {"1815-12-10"},
		"seen":  {"2024-01-02 15:04"},
		"fruit": {"pear"},
		"tags":  {"a", "c"},
		"agree": {"on"},
	})
	require.Empty(t, errs)
	assert.Equal(t, "Ada", values["name"])
	assert.Equal(t, "ada@example.com", values["mail"])
	assert.Equal(t, float64(36), values["age"])
	assert.Equal(t, "https://example.com/x", values["site"])
	assert.Equal(t, "1815-12-10", values["born"])
	assert.Equal(t, "2024-01-02T15:04:00Z", values["seen"])
	assert.Equal(t, "pear", values["fruit"])
	assert.Equal(t, []string{"a", "c"}, values["tags"])
	assert.Equal(t, true, values["agree"])
	assert.Equal(t, "", values["notes"])
}

func TestFormReportsFieldErrors(t *testing.T) {
	questions := []domain.Question{
		{ID: "name", Kind: domain.KindSingleLine, Required: true},
		{ID: "mail", Kind: domain.KindEmail},
		{ID: "age", Kind: domain.KindPositiveNumber},
		{ID: "fruit", Kind: domain.KindDropdown, Choices: []string{"apple"}},
		{ID: "tags", Kind: domain.KindCheckboxes, Choices: []string{"a"}},
		{ID: "long", Kind: domain.KindSingleLine},
		{ID: "terms", Kind: domain.KindCheckbox, Required: true},
	}
	_, errs := NewForm(questions).Validate(url.Values{
		"mail":  {"not-an-address"},
		"age":   {"-1"},
		"fruit": {"banana"},
		"tags":  {"a", "z"},
		"long":  {strings.Repeat("x", SingleLineMaxLength+1)},
	})
	assert.Equal(t, []string{"This field is required."}, errs["name"])
	assert.Equal(t, []string{"Enter a valid email address."}, errs["mail"])
	assert.Equal(t, []string{"Ensure this value is greater than or equal to 0."}, errs["age"])
	assert.Equal(t, []string{"Select a valid choice. banana is not one of the available choices."}, errs["fruit"])
	assert.Contains(t, errs["tags"][0], "z is not one of the available choices")
	assert.Contains(t, errs["long"][0], "at most 255 characters")
	assert.Equal(t, []string{"This field is required."}, errs["terms"])
}

func TestOptionalFormIgnoresRequired(t *testing.T) {
	questions := []domain.Question{
		{ID: "name", Kind: domain.KindSingleLine, Required: true},
		{ID: "age", Kind: domain.KindNumber, Required: true},
	}
	values, errs := NewOptionalForm(questions).Validate(url.Values{})
	require.Empty(t, errs)
	assert.Equal(t, "", values["name"])
	assert.Nil(t, values["age"])
	assert.Contains(t, values, "age")
}

func TestFormConstraint(t *testing.T) {
	questions := []domain.Question{
		{
			ID:         "age",
			Kind:       domain.KindNumber,
			Constraint: &domain.Rule{Expression: "value >= 18", Message: "You must be an adult."},
		},
		{
			ID:         "nick",
			Kind:       domain.KindSingleLine,
			Constraint: &domain.Rule{Expression: `len(value) >= 3`},
		},
	}
	_, errs := NewForm(questions).Validate(url.Values{"age": {"12"}, "nick": {"al"}})
	assert.Equal(t, []string{"You must be an adult."}, errs["age"])
	assert.Equal(t, []string{defaultRuleMessage}, errs["nick"])

	_, errs = NewForm(questions).Validate(url.Values{"age": {"40"}, "nick": {"alan"}})
	assert.Empty(t, errs)

	// Empty optional answers skip their constraint.
	_, errs = NewForm(questions).Validate(url.Values{})
	assert.Empty(t, errs)
}

func TestSurveyRules(t *testing.T) {
	rules := []domain.Rule{{Expression: `answers.colour != "red" || answers.agree == true`, Message: "Red needs agreement."}}

	errs := checkSurveyRules(rules, map[string]any{"colour": "red", "agree": false})
	assert.Equal(t, []string{"Red needs agreement."}, errs[domain.NonFieldKey])

	errs = checkSurveyRules(rules, map[string]any{"colour": "red", "agree": true})
	assert.Empty(t, errs)
}

func TestSessionValuesRoundTripThroughForm(t *testing.T) {
	questions := []domain.Question{
		{ID: "n", Kind: domain.KindNumber},
		{ID: "tags", Kind: domain.KindCheckboxes, Choices: []string{"a", "b"}},
		{ID: "ok", Kind: domain.KindCheckbox},
		{ID: "when", Kind: domain.KindDateTime},
	}
	// Shapes as they come back from JSON-decoded session data.
	stored := map[string]any{
		"n":    float64(2.5),
		"tags": []any{"a", "b"},
		"ok":   true,
		"when": "2024-01-02T15:04:00Z",
	}
	values, errs := NewOptionalForm(questions).Validate(toFormValues(stored))
	require.Empty(t, errs)
	assert.Equal(t, float64(2.5), values["n"])
	assert.Equal(t, []string{"a", "b"}, values["tags"])
	assert.Equal(t, true, values["ok"])
	assert.Equal(t, "2024-01-02T15:04:00Z", values["when"])
}

func TestFormConstraintSeesPriorAnswers(t *testing.T) {
	questions := []domain.Question{{
		ID:         "signed",
		Kind:       domain.KindSingleLine,
		Constraint: &domain.Rule{Expression: `answers.age >= 18 || value == "parent"`},
	}}
	_, errs := NewForm(questions).WithAnswers(map[string]any{"age": 30.0}).Validate(url.Values{"signed": {"me"}})
	assert.Empty(t, errs)

	_, errs = NewForm(questions).WithAnswers(map[string]any{"age": 12.0}).Validate(url.Values{"signed": {"me"}})
	assert.Equal(t, []string{defaultRuleMessage}, errs["signed"])
}
