package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"survey-service/internal/domain"
)

type submissionModel struct {
	bun.BaseModel `bun:"table:submissions,alias:s"`

	ID         string         `bun:"id,pk"`
	SurveyID   string         `bun:"survey_id,notnull"`
	UserID     string         `bun:"user_id,nullzero"`
	Answers    map[string]any `bun:"answers,type:jsonb"`
	ArticleRef string         `bun:"article_ref,nullzero"`
	CreatedAt  time.Time      `bun:"created_at,notnull"`
}

func toModel(sub domain.Submission) *submissionModel {
	return &submissionModel{
		ID:         sub.ID,
		SurveyID:   sub.SurveyID,
		UserID:     sub.UserID,
		Answers:    sub.Answers,
		ArticleRef: sub.ArticleRef,
		CreatedAt:  sub.CreatedAt,
	}
}

func (m submissionModel) toDomain() domain.Submission {
	return domain.Submission{
		ID:         m.ID,
		SurveyID:   m.SurveyID,
		UserID:     m.UserID,
		Answers:    m.Answers,
		ArticleRef: m.ArticleRef,
		CreatedAt:  m.CreatedAt,
	}
}

// SubmissionStore persists submissions in Postgres through bun.
type SubmissionStore struct {
	db *bun.DB
}

func NewSubmissionStore(db *bun.DB) *SubmissionStore {
	return &SubmissionStore{db: db}
}

func (s *SubmissionStore) Create(ctx context.Context, sub domain.Submission) error {
	if _, err := s.db.NewInsert().Model(toModel(sub)).Exec(ctx); err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (s *SubmissionStore) HasUserSubmitted(ctx context.Context, surveyID, userID string) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*submissionModel)(nil)).
		Where("survey_id = ?", surveyID).
		Where("user_id = ?", userID).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check submission: %w", err)
	}
	return exists, nil
}

func (s *SubmissionStore) List(ctx context.Context, surveyID string) ([]domain.Submission, error) {
	var models []submissionModel
	err := s.db.NewSelect().
		Model(&models).
		Where("survey_id = ?", surveyID).
		Order("created_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	out := make([]domain.Submission, 0, len(models))
	for _, m := range models {
		out = append(out, m.toDomain())
	}
	return out, nil
}

func (s *SubmissionStore) AttachArticle(ctx context.Context, submissionID, articleRef string) error {
	res, err := s.db.NewUpdate().
		Model((*submissionModel)(nil)).
		Set("article_ref = ?", articleRef).
		Where("id = ?", submissionID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("attach article: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrSubmissionNotFound
	}
	return nil
}
