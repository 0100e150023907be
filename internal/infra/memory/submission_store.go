package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"survey-service/internal/domain"
)

// SubmissionStore keeps submissions in process memory.
type SubmissionStore struct {
	mu   sync.RWMutex
	subs map[string]domain.Submission
}

func NewSubmissionStore() *SubmissionStore {
	return &SubmissionStore{subs: make(map[string]domain.Submission)}
}

func (s *SubmissionStore) Create(_ context.Context, sub domain.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.subs[sub.ID]; exists {
		return fmt.Errorf("submission %s already exists", sub.ID)
	}
	s.subs[sub.ID] = sub
	return nil
}

func (s *SubmissionStore) HasUserSubmitted(_ context.Context, surveyID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subs {
		if sub.SurveyID == surveyID && sub.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s *SubmissionStore) List(_ context.Context, surveyID string) ([]domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Submission, 0)
	for _, sub := range s.subs {
		if sub.SurveyID == surveyID {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *SubmissionStore) AttachArticle(_ context.Context, submissionID, articleRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[submissionID]
	if !ok {
		return domain.ErrSubmissionNotFound
	}
	sub.ArticleRef = articleRef
	s.subs[submissionID] = sub
	return nil
}
