package memory

import (
	"context"
	"testing"

	"quiz-attempt-service/internal/domain"
)

func TestResultStoreCreateIsFirstWins(t *testing.T) {
	ctx := context.Background()
	store := NewResultStore()

	first := domain.Result{ID: "r1", AttemptID: "a1", QuizID: "quiz-1", StudentID: "s1"}
	stored, created, err := store.Create(ctx, first)
	if err != nil || !created {
		t.Fatalf("create: created=%v err=%v", created, err)
	}
	if stored.ID != "r1" {
		t.Fatalf("expected r1 stored, got %s", stored.ID)
	}

	dup := domain.Result{ID: "r2", AttemptID: "a1", QuizID: "quiz-1", StudentID: "s1"}
	stored, created, err = store.Create(ctx, dup)
	if err != nil {
		t.Fatalf("duplicate create: %v", err)
	}
	if created || stored.ID != "r1" {
		t.Fatalf("expected existing r1 back, got created=%v id=%s", created, stored.ID)
	}
}

func TestResultStoreRanks(t *testing.T) {
	ctx := context.Background()
	store := NewResultStore()

	_, _, _ = store.Create(ctx, domain.Result{ID: "r1", AttemptID: "a1", QuizID: "quiz-1", StudentID: "s1"})
	_, _, _ = store.Create(ctx, domain.Result{ID: "r2", AttemptID: "a2", QuizID: "quiz-1", StudentID: "s2"})

	if err := store.UpdateRanks(ctx, "quiz-1", map[string]int{"r1": 2, "r2": 1}); err != nil {
		t.Fatalf("update ranks: %v", err)
	}

	got, err := store.ByAttempt(ctx, "a1")
	if err != nil {
		t.Fatalf("by attempt: %v", err)
	}
	if got.Rank != 2 {
		t.Fatalf("expected rank 2, got %d", got.Rank)
	}

	all, err := store.ByQuiz(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("by quiz: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 results, got %d", len(all))
	}
}

func TestResultStoreByQuizAndStudent(t *testing.T) {
	ctx := context.Background()
	store := NewResultStore()

	_, _, _ = store.Create(ctx, domain.Result{ID: "r1", AttemptID: "a1", QuizID: "quiz-1", StudentID: "s1"})
	_, _, _ = store.Create(ctx, domain.Result{ID: "r2", AttemptID: "a2", QuizID: "quiz-1", StudentID: "s2"})

	mine, err := store.ByQuizAndStudent(ctx, "quiz-1", "s1")
	if err != nil {
		t.Fatalf("by student: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != "r1" {
		t.Fatalf("expected only s1's result, got %+v", mine)
	}

	if _, err := store.ByAttempt(ctx, "missing"); err != domain.ErrResultNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
