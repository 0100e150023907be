package domain

import (
	"fmt"
	"strings"
)

// ActionKind tags the variant of an Action.
type ActionKind int

const (
	ActionContinue ActionKind = iota
	ActionEnd
	ActionSurvey
	ActionQuestion
)

var actionNames = map[ActionKind]string{
	ActionContinue: "next",
	ActionEnd:      "end",
	ActionSurvey:   "survey",
	ActionQuestion: "question",
}

func (k ActionKind) String() string {
	if name, ok := actionNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ActionKind(%d)", int(k))
}

// MarshalText encodes the kind with the names editors use.
func (k ActionKind) MarshalText() ([]byte, error) {
	name, ok := actionNames[k]
	if !ok {
		return nil, fmt.Errorf("unknown skip logic action %d", int(k))
	}
	return []byte(name), nil
}

// UnmarshalText rejects anything that is not a known action name.
func (k *ActionKind) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*k = ActionContinue
		return nil
	}
	for kind, name := range actionNames {
		if name == raw {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown skip logic action %q", raw)
}

// Action is what happens after a choice is answered. Survey is set only for
// ActionSurvey and Question only for ActionQuestion.
type Action struct {
	Kind     ActionKind `json:"kind" yaml:"kind"`
	Survey   string     `json:"survey,omitempty" yaml:"survey"`
	Question string     `json:"question,omitempty" yaml:"question"`
}

func Continue() Action { return Action{Kind: ActionContinue} }

func EndSurvey() Action { return Action{Kind: ActionEnd} }

func JumpToSurvey(surveyID string) Action {
	return Action{Kind: ActionSurvey, Survey: surveyID}
}

func JumpToQuestion(questionID string) Action {
	return Action{Kind: ActionQuestion, Question: questionID}
}

// Terminal reports whether the action finishes the current survey.
func (a Action) Terminal() bool {
	return a.Kind == ActionEnd || a.Kind == ActionSurvey
}

// Resolve maps a submitted answer of q to its branch action. Questions without
// skip logic always continue, and so does an empty answer. Any other answer
// must match a configured choice exactly.
func Resolve(q Question, answer any) (Action, error) {
	if len(q.SkipLogic) == 0 || !q.Kind.CanBranch() {
		return Continue(), nil
	}
	if q.Kind == KindCheckbox {
		return resolveCheckbox(q, answer)
	}

	var choice string
	switch v := answer.(type) {
	case nil:
		return Continue(), nil
	case string:
		choice = v
	default:
		return Action{}, &UnknownChoiceError{QuestionID: q.ID, Choice: fmt.Sprint(answer)}
	}
	if choice == "" {
		return Continue(), nil
	}
	for _, rule := range q.SkipLogic {
		if rule.Choice == choice {
			return rule.Action, nil
		}
	}
	return Action{}, &UnknownChoiceError{QuestionID: q.ID, Choice: choice}
}

// resolveCheckbox uses the first rule for a ticked box and the second for an
// unticked one.
func resolveCheckbox(q Question, answer any) (Action, error) {
	var checked bool
	switch v := answer.(type) {
	case nil:
		return Continue(), nil
	case bool:
		checked = v
	case string:
		switch v {
		case "":
			return Continue(), nil
		case "true":
			checked = true
		case "false":
		default:
			return Action{}, &UnknownChoiceError{QuestionID: q.ID, Choice: v}
		}
	default:
		return Action{}, &UnknownChoiceError{QuestionID: q.ID, Choice: fmt.Sprint(answer)}
	}

	idx := 1
	if checked {
		idx = 0
	}
	if idx >= len(q.SkipLogic) {
		return Action{}, &UnknownChoiceError{QuestionID: q.ID, Choice: fmt.Sprint(checked)}
	}
	return q.SkipLogic[idx].Action, nil
}
