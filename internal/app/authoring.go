package app

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"survey-service/internal/domain"
)

// SurveyLookup finds another survey by id or slug.
type SurveyLookup func(ref string) (domain.Survey, bool)

// PrepareSurvey validates a survey definition and normalizes it for storage:
// questions are sorted by order, skip logic is dropped from kinds that cannot
// carry it and choices are re-derived from the rule labels. All problems are
// returned together.
func PrepareSurvey(s *domain.Survey, lookup SurveyLookup) error {
	var errs []error
	fail := func(questionID string, position int, err error) {
		errs = append(errs, &domain.AuthoringError{QuestionID: questionID, Position: position, Err: err})
	}

	sort.SliceStable(s.Questions, func(i, j int) bool {
		return s.Questions[i].Order < s.Questions[j].Order
	})

	orders := make(map[int]string, len(s.Questions))
	for i := range s.Questions {
		q := &s.Questions[i]
		if !q.Kind.Valid() {
			fail(q.ID, -1, fmt.Errorf("%w: %q", domain.ErrUnknownInputKind, q.Kind))
			continue
		}
		if other, dup := orders[q.Order]; dup {
			fail(q.ID, -1, fmt.Errorf("%w: %d is also used by %s", domain.ErrDuplicateOrder, q.Order, other))
		}
		orders[q.Order] = q.ID

		normalizeSkipLogic(q)
		checkChoices(q, fail)
		for pos, rule := range q.SkipLogic {
			if err := checkTarget(s, q, rule.Action, lookup); err != nil {
				fail(q.ID, pos, err)
			}
		}
		if q.Constraint != nil {
			if err := CompileRule(q.Constraint.Expression); err != nil {
				fail(q.ID, -1, fmt.Errorf("%w: %v", domain.ErrInvalidConstraint, err))
			}
		}
		q.SyncChoices()
	}

	for _, rule := range s.Rules {
		if err := CompileRule(rule.Expression); err != nil {
			fail(domain.NonFieldKey, -1, fmt.Errorf("%w: %v", domain.ErrInvalidConstraint, err))
		}
	}
	return errors.Join(errs...)
}

func normalizeSkipLogic(q *domain.Question) {
	switch {
	case !q.Kind.HasChoices():
		q.SkipLogic = nil
		q.Choices = nil
	case len(q.SkipLogic) == 0 && q.Kind != domain.KindCheckbox:
		for _, choice := range q.Choices {
			q.SkipLogic = append(q.SkipLogic, domain.BranchRule{Choice: strings.TrimSpace(choice), Action: domain.Continue()})
		}
	case q.Kind == domain.KindCheckboxes:
		for i := range q.SkipLogic {
			q.SkipLogic[i].Action = domain.Continue()
		}
	case q.Kind == domain.KindCheckbox:
		for i := range q.SkipLogic {
			q.SkipLogic[i].Choice = ""
		}
	}
	for i := range q.SkipLogic {
		q.SkipLogic[i].Choice = strings.TrimSpace(q.SkipLogic[i].Choice)
	}
}

func checkChoices(q *domain.Question, fail func(string, int, error)) {
	if q.Kind == domain.KindCheckbox {
		if len(q.SkipLogic) != 2 {
			fail(q.ID, -1, domain.ErrCheckboxRuleCount)
		}
		return
	}
	if !q.Kind.HasChoices() {
		return
	}
	total := 0
	for pos, rule := range q.SkipLogic {
		if rule.Choice == "" {
			fail(q.ID, pos, domain.ErrChoiceRequired)
		}
		total += utf8.RuneCountInString(rule.Choice)
	}
	if total > domain.ChoiceCharacterLimit {
		fail(q.ID, -1, domain.ErrChoicesTooLong)
	}
}

func checkTarget(s *domain.Survey, q *domain.Question, action domain.Action, lookup SurveyLookup) error {
	switch action.Kind {
	case domain.ActionSurvey:
		if action.Survey == "" {
			return domain.ErrUnknownBranchTarget
		}
		if action.Survey == s.ID || action.Survey == s.Slug {
			return domain.ErrSelfLoopBranch
		}
		if lookup == nil {
			return fmt.Errorf("%w: survey %s", domain.ErrUnknownBranchTarget, action.Survey)
		}
		target, ok := lookup(action.Survey)
		if !ok {
			return fmt.Errorf("%w: survey %s", domain.ErrUnknownBranchTarget, action.Survey)
		}
		if target.CohortID != "" && target.CohortID != s.CohortID {
			return domain.ErrCrossCohortBranch
		}
	case domain.ActionQuestion:
		target, ok := s.Question(action.Question)
		if !ok {
			return fmt.Errorf("%w: question %s", domain.ErrUnknownBranchTarget, action.Question)
		}
		if target.ID == q.ID {
			return domain.ErrSelfLoopBranch
		}
		if target.Order <= q.Order {
			return domain.ErrBackwardBranch
		}
		if target.CohortID != "" && target.CohortID != q.CohortID {
			return domain.ErrCrossCohortBranch
		}
	}
	return nil
}
