package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrSurveyNotFound indicates the survey could not be loaded.
	ErrSurveyNotFound = errors.New("survey not found")
	// ErrNotInCohort is returned when a segmented survey is requested by a visitor outside its cohort.
	ErrNotInCohort = errors.New("survey does not match your segments")
	// ErrSubmissionNotFound indicates an unknown submission id.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrPageNotAnInteger is returned for a step number that is not numeric.
	ErrPageNotAnInteger = errors.New("page number is not an integer")
	// ErrEmptyPage is returned for a step number outside the survey.
	ErrEmptyPage = errors.New("page contains no results")
	// ErrUnknownChoice is the sentinel behind UnknownChoiceError.
	ErrUnknownChoice = errors.New("answer does not match any choice")
	// ErrSessionRequired is returned when a visitor arrives without a session id.
	ErrSessionRequired = errors.New("session id is required")
	// ErrResultsHidden is returned for results of a survey that does not publish them.
	ErrResultsHidden = errors.New("survey results are not public")
)

// Authoring errors, raised when a survey definition is saved.
var (
	ErrCheckboxRuleCount   = errors.New("checkbox type questions must have 2 answer options: a true and false")
	ErrChoicesTooLong      = fmt.Errorf("the combined choices' maximum characters limit has been exceeded (%d character(s))", ChoiceCharacterLimit)
	ErrChoiceRequired      = errors.New("choice label is required")
	ErrSelfLoopBranch      = errors.New("cannot skip to self, please select a different survey")
	ErrBackwardBranch      = errors.New("skip logic can only jump to a later question")
	ErrCrossCohortBranch   = errors.New("cannot link to a target with a different segment")
	ErrUnknownBranchTarget = errors.New("skip logic target does not exist")
	ErrInvalidConstraint   = errors.New("constraint expression does not compile")
	ErrDuplicateOrder      = errors.New("question order must be unique")
	ErrUnknownInputKind    = errors.New("unrecognised field type")
)

// UnknownChoiceError is returned when a submitted answer matches no skip logic rule.
type UnknownChoiceError struct {
	QuestionID string
	Choice     string
}

func (e *UnknownChoiceError) Error() string {
	return fmt.Sprintf("question %s: %q does not match any choice", e.QuestionID, e.Choice)
}

func (e *UnknownChoiceError) Unwrap() error { return ErrUnknownChoice }

// AuthoringError ties an authoring problem to a question and, for skip logic
// problems, to the rule position. Position is -1 for question-level errors.
type AuthoringError struct {
	QuestionID string
	Position   int
	Err        error
}

func (e *AuthoringError) Error() string {
	if e.Position >= 0 {
		return fmt.Sprintf("question %s, answer option %d: %v", e.QuestionID, e.Position+1, e.Err)
	}
	return fmt.Sprintf("question %s: %v", e.QuestionID, e.Err)
}

func (e *AuthoringError) Unwrap() error { return e.Err }

// NonFieldKey holds errors that concern the whole form.
const NonFieldKey = "__all__"

// FieldErrors collects validation messages per field.
type FieldErrors map[string][]string

// Add appends a message for field.
func (fe FieldErrors) Add(field, message string) {
	fe[field] = append(fe[field], message)
}

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(fe[k], "; "))
	}
	return "invalid form: " + strings.Join(parts, ", ")
}
