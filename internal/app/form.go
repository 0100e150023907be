package app

import (
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"survey-service/internal/domain"
)

// SingleLineMaxLength caps singleline answers.
const SingleLineMaxLength = 255

const dateLayout = "2006-01-02"

var dateTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

var (
	errRequired     = errors.New("This field is required.")
	errEmail        = errors.New("Enter a valid email address.")
	errNumber       = errors.New("Enter a number.")
	errPositive     = errors.New("Ensure this value is greater than or equal to 0.")
	errURL          = errors.New("Enter a valid URL.")
	errDate         = errors.New("Enter a valid date.")
	errDateTime     = errors.New("Enter a valid date/time.")
	errChoicesLimit = fmt.Errorf("The combined choices' maximum characters limit has been exceeded (%d character(s)).", domain.ChoiceCharacterLimit)
)

func errInvalidChoice(value string) error {
	return fmt.Errorf("Select a valid choice. %s is not one of the available choices.", value)
}

// Form cleans submitted values for a set of questions.
type Form struct {
	questions []domain.Question
	optional  bool
	prior     map[string]any
}

// NewForm validates questions with their configured required flags.
func NewForm(questions []domain.Question) *Form {
	return &Form{questions: questions}
}

// NewOptionalForm treats every question as optional. It re-validates answers
// gathered over several steps, where skipped questions are legitimately empty.
func NewOptionalForm(questions []domain.Question) *Form {
	return &Form{questions: questions, optional: true}
}

// WithAnswers makes answers given on earlier steps visible to constraints.
// Values cleaned by this form take precedence.
func (f *Form) WithAnswers(prior map[string]any) *Form {
	f.prior = prior
	return f
}

// Validate cleans values. The result carries an entry for every question of
// the form, empty answers included.
func (f *Form) Validate(values url.Values) (map[string]any, domain.FieldErrors) {
	cleaned := make(map[string]any, len(f.questions))
	errs := domain.FieldErrors{}
	for _, q := range f.questions {
		value, err := cleanField(q, values[q.ID], q.Required && !f.optional)
		if err != nil {
			errs.Add(q.ID, err.Error())
			continue
		}
		cleaned[q.ID] = value
	}
	answers := cleaned
	if len(f.prior) > 0 {
		answers = make(map[string]any, len(f.prior)+len(cleaned))
		for id, v := range f.prior {
			answers[id] = v
		}
		for id, v := range cleaned {
			answers[id] = v
		}
	}
	for _, q := range f.questions {
		if q.Constraint == nil || isEmptyAnswer(cleaned[q.ID]) {
			continue
		}
		if _, failed := errs[q.ID]; failed {
			continue
		}
		ok, err := evalRule(*q.Constraint, newRuleEnv(cleaned[q.ID], answers))
		if err != nil || !ok {
			errs.Add(q.ID, ruleMessage(*q.Constraint))
		}
	}
	return cleaned, errs
}

func cleanField(q domain.Question, values []string, required bool) (any, error) {
	switch q.Kind {
	case domain.KindCheckboxes:
		return cleanMultiChoice(q, values, required)
	case domain.KindCheckbox:
		return cleanCheckbox(values, required)
	}

	raw := ""
	if len(values) > 0 {
		raw = strings.TrimSpace(values[0])
	}
	if raw == "" {
		if required {
			return nil, errRequired
		}
		return emptyValue(q.Kind), nil
	}

	switch q.Kind {
	case domain.KindSingleLine:
		if n := utf8.RuneCountInString(raw); n > SingleLineMaxLength {
			return nil, fmt.Errorf("Ensure this value has at most %d characters (it has %d).", SingleLineMaxLength, n)
		}
		return raw, nil
	case domain.KindMultiLine:
		return raw, nil
	case domain.KindEmail:
		addr, err := mail.ParseAddress(raw)
		if err != nil || addr.Address != raw {
			return nil, errEmail
		}
		return raw, nil
	case domain.KindNumber, domain.KindPositiveNumber:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, errNumber
		}
		if q.Kind == domain.KindPositiveNumber && n < 0 {
			return nil, errPositive
		}
		return n, nil
	case domain.KindURL:
		u, err := url.ParseRequestURI(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, errURL
		}
		return raw, nil
	case domain.KindDate:
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			return nil, errDate
		}
		return t.Format(dateLayout), nil
	case domain.KindDateTime:
		for _, layout := range dateTimeLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t.Format(time.RFC3339), nil
			}
		}
		return nil, errDateTime
	case domain.KindDropdown, domain.KindRadio:
		if !hasChoice(q.Choices, raw) {
			return nil, errInvalidChoice(raw)
		}
		return raw, nil
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrUnknownInputKind, q.Kind)
}

func cleanMultiChoice(q domain.Question, values []string, required bool) (any, error) {
	selected := make([]string, 0, len(values))
	total := 0
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if !hasChoice(q.Choices, v) {
			return nil, errInvalidChoice(v)
		}
		total += utf8.RuneCountInString(v)
		selected = append(selected, v)
	}
	if len(selected) == 0 && required {
		return nil, errRequired
	}
	if total > domain.ChoiceCharacterLimit {
		return nil, errChoicesLimit
	}
	return selected, nil
}

func cleanCheckbox(values []string, required bool) (any, error) {
	checked := false
	if len(values) > 0 {
		switch strings.ToLower(strings.TrimSpace(values[0])) {
		case "on", "true", "1", "yes":
			checked = true
		}
	}
	if required && !checked {
		return nil, errRequired
	}
	return checked, nil
}

func emptyValue(kind domain.InputKind) any {
	switch kind {
	case domain.KindNumber, domain.KindPositiveNumber, domain.KindDate, domain.KindDateTime:
		return nil
	}
	return ""
}

func hasChoice(choices []string, value string) bool {
	for _, c := range choices {
		if strings.TrimSpace(c) == value {
			return true
		}
	}
	return false
}

func isEmptyAnswer(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []string:
		return len(t) == 0
	case []any:
		return len(t) == 0
	}
	return false
}

// toFormValues turns answers kept in the session back into raw form values so
// they can be cleaned again.
func toFormValues(answers map[string]any) url.Values {
	out := url.Values{}
	for key, v := range answers {
		switch t := v.(type) {
		case nil:
		case string:
			out.Set(key, t)
		case bool:
			if t {
				out.Set(key, "true")
			}
		case float64:
			out.Set(key, strconv.FormatFloat(t, 'f', -1, 64))
		case []string:
			out[key] = append([]string(nil), t...)
		case []any:
			for _, item := range t {
				out.Add(key, fmt.Sprint(item))
			}
		default:
			out.Set(key, fmt.Sprint(t))
		}
	}
	return out
}
