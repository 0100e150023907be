package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"survey-service/internal/domain"
)

func TestSubmissionStoreListsOldestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewSubmissionStore()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"c", "a", "b"} {
		err := store.Create(ctx, domain.Submission{
			ID:        id,
			SurveyID:  "s1",
			UserID:    "u" + id,
			CreatedAt: base.Add(time.Duration(-i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	if err := store.Create(ctx, domain.Submission{ID: "x", SurveyID: "s2"}); err != nil {
		t.Fatalf("create other survey: %v", err)
	}

	subs, err := store.List(ctx, "s1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subs) != 3 || subs[0].ID != "b" || subs[2].ID != "c" {
		t.Fatalf("unexpected order %+v", subs)
	}

	done, _ := store.HasUserSubmitted(ctx, "s1", "ua")
	if !done {
		t.Fatalf("expected ua to have submitted")
	}
	done, _ = store.HasUserSubmitted(ctx, "s2", "ua")
	if done {
		t.Fatalf("expected ua not to have submitted s2")
	}
}

func TestSubmissionStoreAttachArticle(t *testing.T) {
	ctx := context.Background()
	store := NewSubmissionStore()
	if err := store.Create(ctx, domain.Submission{ID: "sub-1", SurveyID: "s1"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.AttachArticle(ctx, "sub-1", "article-9"); err != nil {
		t.Fatalf("attach: %v", err)
	}
	subs, _ := store.List(ctx, "s1")
	if subs[0].ArticleRef != "article-9" {
		t.Fatalf("expected article ref, got %q", subs[0].ArticleRef)
	}
	if err := store.AttachArticle(ctx, "missing", "x"); !errors.Is(err, domain.ErrSubmissionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
