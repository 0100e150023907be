package app

import "survey-service/internal/domain"

type cohortSet map[string]struct{}

func newCohortSet(cohorts []string) cohortSet {
	set := make(cohortSet, len(cohorts))
	for _, c := range cohorts {
		if c != "" {
			set[c] = struct{}{}
		}
	}
	return set
}

func (s cohortSet) has(cohort string) bool {
	_, ok := s[cohort]
	return ok
}

// allows reports whether content restricted to cohort is visible. Content
// without a cohort is visible to everyone.
func (s cohortSet) allows(cohort string) bool {
	return cohort == "" || s.has(cohort)
}

// VisibleQuestions keeps the questions a visitor in cohorts may answer,
// preserving order.
func VisibleQuestions(questions []domain.Question, cohorts []string) []domain.Question {
	set := newCohortSet(cohorts)
	visible := make([]domain.Question, 0, len(questions))
	for _, q := range questions {
		if set.allows(q.CohortID) {
			visible = append(visible, q)
		}
	}
	return visible
}
