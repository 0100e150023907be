package app

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"survey-service/internal/domain"
)

// ExportCSV writes every submission of a survey as CSV: creation time, user
// name, then one column per question in order. Questions restricted to a
// cohort carry the cohort in their header.
func (s *SurveyService) ExportCSV(ctx context.Context, slug string, w io.Writer) error {
	survey, err := s.surveys.GetSurvey(ctx, slug)
	if err != nil {
		return err
	}
	subs, err := s.submissions.List(ctx, survey.ID)
	if err != nil {
		return fmt.Errorf("list submissions: %w", err)
	}
	return WriteCSV(w, survey, subs)
}

// WriteCSV renders subs of survey as CSV.
func WriteCSV(w io.Writer, survey domain.Survey, subs []domain.Submission) error {
	cw := csv.NewWriter(w)
	header := []string{"created_at", "username"}
	for _, q := range survey.Questions {
		label := q.Label
		if q.CohortID != "" {
			label = fmt.Sprintf("%s (%s)", label, q.CohortID)
		}
		header = append(header, label)
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, sub := range subs {
		row := make([]string, 0, len(header))
		row = append(row, sub.CreatedAt.UTC().Format(time.RFC3339), sub.Username())
		for _, q := range survey.Questions {
			row = append(row, formatAnswer(sub.Answers[q.ID]))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatAnswer(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []string:
		return strings.Join(t, ", ")
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ", ")
	}
	return fmt.Sprint(v)
}
