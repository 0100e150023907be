package memory

import (
	"context"
	"testing"
	"time"
)

func TestSessionStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(0)

	if err := store.Set(ctx, "s1", "survey_data-a", []byte(`{"q1":"x"}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, ok, err := store.Get(ctx, "s1", "survey_data-a")
	if err != nil || !ok {
		t.Fatalf("expected value present, ok=%v err=%v", ok, err)
	}
	if string(value) != `{"q1":"x"}` {
		t.Fatalf("unexpected value %s", value)
	}
	if _, ok, _ := store.Get(ctx, "s2", "survey_data-a"); ok {
		t.Fatalf("sessions must not share values")
	}

	if err := store.Delete(ctx, "s1", "survey_data-a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "s1", "survey_data-a"); ok {
		t.Fatalf("expected value removed")
	}
}

func TestSessionStoreExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewSessionStore(time.Minute)
	store.clock = func() time.Time { return now }

	if err := store.Set(ctx, "s1", "completed_surveys", []byte(`["a"]`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	now = now.Add(30 * time.Second)
	if _, ok, _ := store.Get(ctx, "s1", "completed_surveys"); !ok {
		t.Fatalf("expected value before ttl")
	}
	now = now.Add(time.Minute)
	if _, ok, _ := store.Get(ctx, "s1", "completed_surveys"); ok {
		t.Fatalf("expected value expired after ttl")
	}
}

func TestSessionStoreSweepsAbandonedSessions(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewSessionStore(time.Minute)
	store.clock = func() time.Time { return now }

	for _, id := range []string{"a", "b", "c"} {
		if err := store.Set(ctx, id, "survey_data-x", []byte(`{}`)); err != nil {
			t.Fatalf("set %s: %v", id, err)
		}
	}
	now = now.Add(2 * time.Minute)
	if err := store.Set(ctx, "d", "survey_data-x", []byte(`{}`)); err != nil {
		t.Fatalf("set d: %v", err)
	}

	store.mu.RLock()
	defer store.mu.RUnlock()
	if len(store.sessions) != 1 {
		t.Fatalf("expected only the fresh session to remain, got %d", len(store.sessions))
	}
	if _, ok := store.sessions["d"]; !ok {
		t.Fatalf("expected session d to remain")
	}
}
