package domain

import "time"

// InputKind is the control a question is answered with.
type InputKind string

const (
	KindSingleLine     InputKind = "singleline"
	KindMultiLine      InputKind = "multiline"
	KindEmail          InputKind = "email"
	KindNumber         InputKind = "number"
	KindPositiveNumber InputKind = "positive_number"
	KindURL            InputKind = "url"
	KindDate           InputKind = "date"
	KindDateTime       InputKind = "datetime"
	KindDropdown       InputKind = "dropdown"
	KindRadio          InputKind = "radio"
	KindCheckboxes     InputKind = "checkboxes"
	KindCheckbox       InputKind = "checkbox"
)

// CanBranch reports whether answers of this kind may carry skip logic.
func (k InputKind) CanBranch() bool {
	switch k {
	case KindDropdown, KindRadio, KindCheckbox:
		return true
	}
	return false
}

// HasChoices reports whether the kind is answered from a fixed choice list.
func (k InputKind) HasChoices() bool {
	return k.CanBranch() || k == KindCheckboxes
}

// Valid reports whether k is a known kind.
func (k InputKind) Valid() bool {
	switch k {
	case KindSingleLine, KindMultiLine, KindEmail, KindNumber, KindPositiveNumber,
		KindURL, KindDate, KindDateTime, KindDropdown, KindRadio, KindCheckboxes, KindCheckbox:
		return true
	}
	return false
}

// BranchRule maps one choice label to the action taken when it is answered.
type BranchRule struct {
	Choice string `json:"choice" yaml:"choice"`
	Action Action `json:"action" yaml:"action"`
}

// Rule is an expr-lang expression that must evaluate to true.
type Rule struct {
	Expression string `json:"expression" yaml:"expression"`
	Message    string `json:"message" yaml:"message"`
}

// Question is one survey question. Order defines the canonical sequence.
type Question struct {
	ID           string       `json:"id" yaml:"id"`
	Order        int          `json:"order" yaml:"order"`
	Label        string       `json:"label" yaml:"label"`
	HelpText     string       `json:"helpText,omitempty" yaml:"helpText"`
	Kind         InputKind    `json:"kind" yaml:"kind"`
	Required     bool         `json:"required" yaml:"required"`
	PageBreak    bool         `json:"pageBreak" yaml:"pageBreak"`
	Choices      []string     `json:"choices,omitempty" yaml:"choices"`
	DefaultValue string       `json:"defaultValue,omitempty" yaml:"defaultValue"`
	SkipLogic    []BranchRule `json:"skipLogic,omitempty" yaml:"skipLogic"`
	CohortID     string       `json:"cohortId,omitempty" yaml:"cohortId"`
	Constraint   *Rule        `json:"constraint,omitempty" yaml:"constraint"`
}

// HasSkipping reports whether any rule does something other than continue.
func (q Question) HasSkipping() bool {
	for _, rule := range q.SkipLogic {
		if rule.Action.Kind != ActionContinue {
			return true
		}
	}
	return false
}

// SyncChoices re-derives Choices from the skip logic labels.
func (q *Question) SyncChoices() {
	if len(q.SkipLogic) == 0 {
		return
	}
	choices := make([]string, 0, len(q.SkipLogic))
	for i, rule := range q.SkipLogic {
		label := rule.Choice
		if q.Kind == KindCheckbox {
			label = checkboxLabels[i%2]
		}
		choices = append(choices, label)
	}
	q.Choices = choices
}

var checkboxLabels = [2]string{"true", "false"}

// ChoiceCharacterLimit caps the combined length of a question's choice labels.
const ChoiceCharacterLimit = 512

// Survey is a published questionnaire.
type Survey struct {
	ID                       string     `json:"id" yaml:"id"`
	Slug                     string     `json:"slug" yaml:"slug"`
	Title                    string     `json:"title" yaml:"title"`
	Intro                    string     `json:"intro,omitempty" yaml:"intro"`
	ThankYouText             string     `json:"thankYouText,omitempty" yaml:"thankYouText"`
	SubmitText               string     `json:"submitText,omitempty" yaml:"submitText"`
	CohortID                 string     `json:"cohortId,omitempty" yaml:"cohortId"`
	MultiStep                bool       `json:"multiStep" yaml:"multiStep"`
	DisplayDirectly          bool       `json:"displayDirectly" yaml:"displayDirectly"`
	AllowAnonymous           bool       `json:"allowAnonymous" yaml:"allowAnonymous"`
	AllowMultipleSubmissions bool       `json:"allowMultipleSubmissions" yaml:"allowMultipleSubmissions"`
	ShowResults              bool       `json:"showResults" yaml:"showResults"`
	ShowResultsAsPercentage  bool       `json:"showResultsAsPercentage" yaml:"showResultsAsPercentage"`
	Questions                []Question `json:"questions" yaml:"questions"`
	Rules                    []Rule     `json:"rules,omitempty" yaml:"rules"`
}

// Question returns the question with the given id.
func (s Survey) Question(id string) (Question, bool) {
	for _, q := range s.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// Submission is a finished set of answers. It is written once.
type Submission struct {
	ID         string         `json:"id"`
	SurveyID   string         `json:"surveyId"`
	UserID     string         `json:"userId,omitempty"`
	Answers    map[string]any `json:"answers"`
	CreatedAt  time.Time      `json:"createdAt"`
	ArticleRef string         `json:"articleRef,omitempty"`
}

// Username is the export/display name of the submitting user.
func (s Submission) Username() string {
	if s.UserID == "" {
		return "Anonymous"
	}
	return s.UserID
}

// ChoiceCount is the tally for one choice of a question.
type ChoiceCount struct {
	Choice string `json:"choice"`
	Count  int    `json:"count"`
}

// QuestionResult aggregates all answers given to one choice question.
type QuestionResult struct {
	QuestionID string        `json:"questionId"`
	Label      string        `json:"label"`
	Choices    []ChoiceCount `json:"choices"`
}

// Results is a snapshot of a survey's aggregated answers.
type Results struct {
	SurveyID    string           `json:"surveyId"`
	Percentage  bool             `json:"percentage"`
	Submissions int              `json:"submissions"`
	Questions   []QuestionResult `json:"questions"`
	GeneratedAt time.Time        `json:"generatedAt"`
}
