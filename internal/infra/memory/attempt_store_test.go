package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"campus-assessment-service/internal/domain"
)

func sampleAttempt(id, quizID, studentID string) domain.Attempt {
	started := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	return domain.Attempt{
		ID:        id,
		QuizID:    quizID,
		StudentID: studentID,
		Status:    domain.AttemptInProgress,
		StartedAt: started,
		Deadline:  started.Add(30 * time.Minute),
	}
}

func TestAttemptStoreEnforcesOnePerStudent(t *testing.T) {
	store := NewAttemptStore()
	ctx := context.Background()

	if err := store.Create(ctx, sampleAttempt("a1", "quiz-1", "s1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := store.Create(ctx, sampleAttempt("a2", "quiz-1", "s1"))
	if !errors.Is(err, domain.ErrAttemptExists) {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}
	// Same student on a different quiz is fine.
	if err := store.Create(ctx, sampleAttempt("a3", "quiz-2", "s1")); err != nil {
		t.Fatalf("create on other quiz: %v", err)
	}
}

func TestAttemptStoreUpdatePersistsOnlyOnChange(t *testing.T) {
	store := NewAttemptStore()
	ctx := context.Background()

	if err := store.Create(ctx, sampleAttempt("a1", "quiz-1", "s1")); err != nil {
		t.Fatalf("create: %v", err)
	}

	marks := 2
	updated, err := store.Update(ctx, "a1", func(a *domain.Attempt) (bool, error) {
		a.Status = domain.AttemptCompleted
		a.MarksObtained = &marks
		return true, nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != domain.AttemptCompleted {
		t.Fatalf("expected completed, got %s", updated.Status)
	}

	// A no-change pass must leave the stored row untouched.
	_, err = store.Update(ctx, "a1", func(a *domain.Attempt) (bool, error) {
		a.MarksObtained = nil // local mutation, not persisted
		return false, nil
	})
	if err != nil {
		t.Fatalf("no-op update: %v", err)
	}
	stored, err := store.Get(ctx, "a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.MarksObtained == nil || *stored.MarksObtained != 2 {
		t.Fatalf("no-op update leaked: %+v", stored.MarksObtained)
	}
}

func TestAttemptStoreReturnsCopies(t *testing.T) {
	store := NewAttemptStore()
	ctx := context.Background()

	attempt := sampleAttempt("a1", "quiz-1", "s1")
	attempt.Answers = map[string]int{"q1": 2}
	if err := store.Create(ctx, attempt); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := store.Get(ctx, "a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got.Answers["q1"] = 4

	reread, err := store.Get(ctx, "a1")
	if err != nil {
		t.Fatalf("reread: %v", err)
	}
	if reread.Answers["q1"] != 2 {
		t.Fatalf("caller mutation leaked into store: %+v", reread.Answers)
	}
}

func TestAttemptStoreLookups(t *testing.T) {
	store := NewAttemptStore()
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := store.FindByQuizStudent(ctx, "quiz-1", "s1"); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	for _, a := range []domain.Attempt{
		sampleAttempt("a1", "quiz-1", "s1"),
		sampleAttempt("a2", "quiz-1", "s2"),
		sampleAttempt("a3", "quiz-2", "s1"),
	} {
		if err := store.Create(ctx, a); err != nil {
			t.Fatalf("create %s: %v", a.ID, err)
		}
	}

	list, err := store.ListByQuiz(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(list))
	}
	count, err := store.CountByQuiz(ctx, "quiz-1")
	if err != nil || count != 2 {
		t.Fatalf("expected count 2, got %d (%v)", count, err)
	}
}
