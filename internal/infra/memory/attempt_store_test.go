package memory

import (
	"context"
	"testing"
	"time"

	"quiz-attempt-service/internal/domain"
)

func TestAttemptStoreCreateIsFirstWins(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore()

	first, err := store.Create(ctx, sampleAttempt("a1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := store.Create(ctx, sampleAttempt("a2"))
	if err != nil {
		t.Fatalf("create duplicate: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected existing attempt %s back, got %s", first.ID, second.ID)
	}

	got, ok, err := store.InProgress(ctx, "quiz-1", "student-1")
	if err != nil || !ok {
		t.Fatalf("in-progress lookup: ok=%v err=%v", ok, err)
	}
	if got.ID != "a1" {
		t.Fatalf("expected a1 in progress, got %s", got.ID)
	}
}

func TestAttemptStoreClaimWinsOnce(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore()
	_, _ = store.Create(ctx, sampleAttempt("a1"))

	at := time.Now()
	_, won, err := store.Claim(ctx, "a1", domain.AttemptCompleted, at, false)
	if err != nil || !won {
		t.Fatalf("first claim: won=%v err=%v", won, err)
	}
	claimed, won, err := store.Claim(ctx, "a1", domain.AttemptExpired, at.Add(time.Minute), true)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if won {
		t.Fatalf("second claim must lose")
	}
	if claimed.Status != domain.AttemptCompleted {
		t.Fatalf("loser must observe the winning transition, got %s", claimed.Status)
	}

	// claimed attempts free the in-progress slot
	if _, ok, _ := store.InProgress(ctx, "quiz-1", "student-1"); ok {
		t.Fatalf("expected in-progress slot released")
	}
}

func TestAttemptStoreCountsTerminal(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore()

	a1 := sampleAttempt("a1")
	_, _ = store.Create(ctx, a1)
	_, _, _ = store.Claim(ctx, "a1", domain.AttemptExpired, time.Now(), true)

	a2 := sampleAttempt("a2")
	_, _ = store.Create(ctx, a2)
	_, _, _ = store.Claim(ctx, "a2", domain.AttemptAbandoned, time.Now(), false)

	n, err := store.CountTerminal(ctx, "quiz-1", "student-1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected abandoned excluded from budget, got %d", n)
	}
}

func TestAttemptStoreSaveAnswerGuards(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore()
	_, _ = store.Create(ctx, sampleAttempt("a1"))

	if err := store.SaveAnswer(ctx, "missing", "q1", "o1"); err != domain.ErrAttemptNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.SaveAnswer(ctx, "a1", "q1", "o1"); err != nil {
		t.Fatalf("save: %v", err)
	}

	_, _, _ = store.Claim(ctx, "a1", domain.AttemptCompleted, time.Now(), false)
	if err := store.SaveAnswer(ctx, "a1", "q1", "o2"); err != domain.ErrAttemptClosed {
		t.Fatalf("expected closed, got %v", err)
	}
}

func sampleAttempt(id string) domain.Attempt {
	return domain.Attempt{
		ID:        id,
		QuizID:    "quiz-1",
		StudentID: "student-1",
		Status:    domain.AttemptInProgress,
		StartedAt: time.Now(),
		Settings:  domain.Settings{TimeLimitMinutes: 10},
		Answers:   map[string]string{},
	}
}
