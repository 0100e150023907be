package app

import (
	"fmt"
	"strconv"
	"strings"

	"survey-service/internal/domain"
)

// Paginator splits the visible questions of a survey into steps. Step
// boundaries are computed once; which step follows a given step depends on the
// answer to it, so that part is decided by Step.
type Paginator struct {
	questions []domain.Question
	bounds    []int
	skipLogic bool
}

// NewSkipLogicPaginator partitions questions around skip logic. A branching
// question always sits alone in its step, and steps also end after page
// breaks and start at jump targets. Without any branching question every
// question gets its own step.
func NewSkipLogicPaginator(questions []domain.Question) *Paginator {
	return &Paginator{
		questions: questions,
		bounds:    partition(questions),
		skipLogic: HasSkipLogic(questions),
	}
}

// NewPaginator puts perPage questions on every step.
func NewPaginator(questions []domain.Question, perPage int) *Paginator {
	if perPage < 1 {
		perPage = 1
	}
	bounds := []int{0}
	for i := perPage; i < len(questions); i += perPage {
		bounds = append(bounds, i)
	}
	if len(questions) > 0 {
		bounds = append(bounds, len(questions))
	}
	return &Paginator{questions: questions, bounds: bounds}
}

// HasSkipLogic reports whether any question branches somewhere other than the
// next step.
func HasSkipLogic(questions []domain.Question) bool {
	for _, q := range questions {
		if q.HasSkipping() {
			return true
		}
	}
	return false
}

func partition(questions []domain.Question) []int {
	n := len(questions)
	if !HasSkipLogic(questions) {
		bounds := make([]int, 0, n+1)
		for i := 0; i <= n; i++ {
			bounds = append(bounds, i)
		}
		return bounds
	}

	targets := jumpTargets(questions)
	bounds := []int{0}
	cut := func(i int) {
		if bounds[len(bounds)-1] != i {
			bounds = append(bounds, i)
		}
	}
	for i, q := range questions {
		branching := q.HasSkipping()
		if branching || targets[q.ID] {
			cut(i)
		}
		if branching || q.PageBreak {
			cut(i + 1)
		}
	}
	cut(n)
	return bounds
}

func jumpTargets(questions []domain.Question) map[string]bool {
	targets := make(map[string]bool)
	for _, q := range questions {
		for _, rule := range q.SkipLogic {
			if rule.Action.Kind == domain.ActionQuestion {
				targets[rule.Action.Question] = true
			}
		}
	}
	return targets
}

// NumPages is the number of steps. It is zero for a survey without visible questions.
func (p *Paginator) NumPages() int {
	return len(p.bounds) - 1
}

// HasSkipLogic reports whether the partition was cut around branching questions.
func (p *Paginator) HasSkipLogic() bool {
	return p.skipLogic
}

// Questions returns every question the paginator was built from.
func (p *Paginator) Questions() []domain.Question {
	return p.questions
}

// ParseNumber converts the raw step parameter. An empty value means step 1.
func (p *Paginator) ParseNumber(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", domain.ErrPageNotAnInteger, raw)
	}
	return n, nil
}

// Page returns step number, 1-based.
func (p *Paginator) Page(number int) (Step, error) {
	if number < 1 || number > p.NumPages() {
		return Step{}, fmt.Errorf("%w: %d", domain.ErrEmptyPage, number)
	}
	return p.step(number), nil
}

// Locate resolves a raw step parameter without failing. Non-numeric values
// and numbers below 1 give the first step; numbers past the end give the last
// step and report isLast.
func (p *Paginator) Locate(raw string) (step Step, isLast bool) {
	number, err := p.ParseNumber(raw)
	if err != nil {
		number = 1
	}
	if number < 1 {
		number = 1
	}
	if number > p.NumPages() {
		return p.step(p.NumPages()), true
	}
	return p.step(number), false
}

// StepOf returns the number of the step holding the question.
func (p *Paginator) StepOf(questionID string) (int, bool) {
	for idx, q := range p.questions {
		if q.ID != questionID {
			continue
		}
		for number := 1; number <= p.NumPages(); number++ {
			if idx < p.bounds[number] {
				return number, true
			}
		}
	}
	return 0, false
}

func (p *Paginator) step(number int) Step {
	if number < 1 {
		return Step{pager: p}
	}
	return Step{
		Number:    number,
		Questions: p.questions[p.bounds[number-1]:p.bounds[number]],
		pager:     p,
	}
}

// Step is one page of a multi-step survey. The zero-numbered step is the
// empty step of a survey without questions.
type Step struct {
	Number    int
	Questions []domain.Question
	pager     *Paginator
}

// LastQuestion is the question whose answer decides what follows the step.
func (s Step) LastQuestion() (domain.Question, bool) {
	if len(s.Questions) == 0 {
		return domain.Question{}, false
	}
	return s.Questions[len(s.Questions)-1], true
}

// NextAction resolves the answer given to the step's last question.
func (s Step) NextAction(lastAnswer any) (domain.Action, error) {
	q, ok := s.LastQuestion()
	if !ok || !q.HasSkipping() {
		return domain.Continue(), nil
	}
	return domain.Resolve(q, lastAnswer)
}

// IsEnd reports whether lastAnswer finishes the survey at this step.
func (s Step) IsEnd(lastAnswer any) bool {
	action, err := s.NextAction(lastAnswer)
	return err == nil && action.Terminal()
}

// HasNext reports whether another step follows once lastAnswer is given.
func (s Step) HasNext(lastAnswer any) bool {
	if s.pager == nil || s.Number >= s.pager.NumPages() {
		return false
	}
	return !s.IsEnd(lastAnswer)
}

// NextNumber is the step shown after this one: the following step, or the
// step holding the question lastAnswer jumps to. Jumps may only go forward.
func (s Step) NextNumber(lastAnswer any) (int, error) {
	action, err := s.NextAction(lastAnswer)
	if err != nil {
		return 0, err
	}
	if action.Kind != domain.ActionQuestion {
		return s.Number + 1, nil
	}
	number, ok := s.pager.StepOf(action.Question)
	if !ok || number <= s.Number {
		return 0, fmt.Errorf("step %d jumps to question %q: %w", s.Number, action.Question, domain.ErrUnknownBranchTarget)
	}
	return number, nil
}

// SuccessTarget is where the visitor goes once the survey is finished at this step.
func (s Step) SuccessTarget(lastAnswer any, slug string) Target {
	action, err := s.NextAction(lastAnswer)
	if err == nil && action.Kind == domain.ActionSurvey {
		return Target{SurveyID: action.Survey}
	}
	return Target{Slug: slug, ThankYou: true}
}

// Target is a redirect destination after a survey is finalized: the thank-you
// view of Slug, or the entry point of another survey.
type Target struct {
	Slug     string
	SurveyID string
	ThankYou bool
}
