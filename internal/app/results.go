package app

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"survey-service/internal/domain"
)

// Results aggregates the answers of a survey that shows its results.
func (s *SurveyService) Results(ctx context.Context, slug string) (domain.Results, error) {
	survey, err := s.surveys.GetSurvey(ctx, slug)
	if err != nil {
		return domain.Results{}, err
	}
	if !survey.ShowResults {
		return domain.Results{}, domain.ErrResultsHidden
	}
	return s.aggregate(ctx, survey)
}

// SubscribeResults returns a channel that receives the current results and
// every later update. The caller must invoke the returned cancel function to
// avoid leaks.
func (s *SurveyService) SubscribeResults(ctx context.Context, slug string) (<-chan domain.Results, func(), error) {
	if s.results == nil {
		return nil, nil, domain.ErrResultsHidden
	}
	survey, err := s.surveys.GetSurvey(ctx, slug)
	if err != nil {
		return nil, nil, err
	}
	if !survey.ShowResults {
		return nil, nil, domain.ErrResultsHidden
	}
	initial, err := s.aggregate(ctx, survey)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.results.Subscribe(initial)
	return ch, cancel, nil
}

func (s *SurveyService) aggregate(ctx context.Context, survey domain.Survey) (domain.Results, error) {
	subs, err := s.submissions.List(ctx, survey.ID)
	if err != nil {
		return domain.Results{}, fmt.Errorf("list submissions: %w", err)
	}
	return BuildResults(survey, subs, s.now()), nil
}

// BuildResults tallies the choice questions of survey. Percentages are taken
// over the submissions that answered the question and rounded to whole numbers.
func BuildResults(survey domain.Survey, subs []domain.Submission, now time.Time) domain.Results {
	results := domain.Results{
		SurveyID:    survey.ID,
		Percentage:  survey.ShowResultsAsPercentage,
		Submissions: len(subs),
		Questions:   []domain.QuestionResult{},
		GeneratedAt: now.UTC(),
	}
	for _, q := range survey.Questions {
		if !q.Kind.HasChoices() {
			continue
		}
		counts := make(map[string]int, len(q.Choices))
		answered := 0
		for _, sub := range subs {
			picked := answerChoices(q, sub.Answers[q.ID])
			if len(picked) == 0 {
				continue
			}
			answered++
			for _, c := range picked {
				counts[c]++
			}
		}
		qr := domain.QuestionResult{QuestionID: q.ID, Label: q.Label, Choices: make([]domain.ChoiceCount, 0, len(q.Choices))}
		for _, choice := range q.Choices {
			n := counts[choice]
			if results.Percentage && answered > 0 {
				n = int(math.Round(float64(n) * 100 / float64(answered)))
			}
			qr.Choices = append(qr.Choices, domain.ChoiceCount{Choice: choice, Count: n})
		}
		results.Questions = append(results.Questions, qr)
	}
	return results
}

func answerChoices(q domain.Question, answer any) []string {
	switch v := answer.(type) {
	case nil:
		return nil
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case bool:
		if q.Kind == domain.KindCheckbox {
			return []string{strconv.FormatBool(v)}
		}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	}
	return nil
}

// ResultsHub fans out result snapshots to live subscribers, per survey.
type ResultsHub struct {
	mu          sync.Mutex
	subscribers map[string]map[chan domain.Results]struct{}
}

func NewResultsHub() *ResultsHub {
	return &ResultsHub{subscribers: make(map[string]map[chan domain.Results]struct{})}
}

// Subscribe registers a subscriber for initial.SurveyID and delivers initial first.
func (h *ResultsHub) Subscribe(initial domain.Results) (<-chan domain.Results, func()) {
	ch := make(chan domain.Results, 8)
	surveyID := initial.SurveyID
	// Buffered before registration so no Publish can overtake it.
	ch <- initial

	h.mu.Lock()
	subs, ok := h.subscribers[surveyID]
	if !ok {
		subs = make(map[chan domain.Results]struct{})
		h.subscribers[surveyID] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs := h.subscribers[surveyID]
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(h.subscribers, surveyID)
		}
	}
	return ch, cancel
}

// HasSubscribers reports whether anyone listens to surveyID.
func (h *ResultsHub) HasSubscribers(surveyID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[surveyID]) > 0
}

// Publish delivers results to every subscriber of its survey. A subscriber that
// has not drained its buffer loses the oldest pending snapshot.
func (h *ResultsHub) Publish(results domain.Results) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers[results.SurveyID] {
		select {
		case ch <- results:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- results
		}
	}
}
