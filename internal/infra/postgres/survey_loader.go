package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"survey-service/internal/domain"
)

// SurveyLoader loads survey JSONB from Postgres.
type SurveyLoader struct {
	pool *pgxpool.Pool
}

func NewSurveyLoader(pool *pgxpool.Pool) *SurveyLoader {
	return &SurveyLoader{pool: pool}
}

// LoadSurvey finds a survey by id or slug.
func (l *SurveyLoader) LoadSurvey(ctx context.Context, ref string) (domain.Survey, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM surveys WHERE id=$1 OR slug=$1 LIMIT 1`, ref).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Survey{}, domain.ErrSurveyNotFound
	}
	if err != nil {
		return domain.Survey{}, fmt.Errorf("load survey: %w", err)
	}
	var survey domain.Survey
	if err := json.Unmarshal(raw, &survey); err != nil {
		return domain.Survey{}, fmt.Errorf("unmarshal survey: %w", err)
	}
	return survey, nil
}

// SaveSurvey inserts or replaces a prepared survey definition.
func (l *SurveyLoader) SaveSurvey(ctx context.Context, survey domain.Survey) error {
	raw, err := json.Marshal(survey)
	if err != nil {
		return fmt.Errorf("marshal survey: %w", err)
	}
	_, err = l.pool.Exec(ctx, `
INSERT INTO surveys (id, slug, data, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (id) DO UPDATE SET slug = EXCLUDED.slug, data = EXCLUDED.data, updated_at = now()`,
		survey.ID, survey.Slug, raw)
	if err != nil {
		return fmt.Errorf("save survey %s: %w", survey.ID, err)
	}
	return nil
}
