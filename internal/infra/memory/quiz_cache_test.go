package memory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"campus-assessment-service/internal/domain"
)

type countingLoader struct {
	quiz  domain.Quiz
	err   error
	calls atomic.Int64
}

func (l *countingLoader) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	l.calls.Add(1)
	if l.err != nil {
		return domain.Quiz{}, l.err
	}
	if quizID != l.quiz.ID {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return l.quiz, nil
}

func TestQuizCacheServesFromCache(t *testing.T) {
	loader := &countingLoader{quiz: domain.Quiz{ID: "quiz-1", Title: "Midterm"}}
	cache := NewQuizCache(loader, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		quiz, err := cache.GetQuiz(ctx, "quiz-1")
		if err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		if quiz.Title != "Midterm" {
			t.Fatalf("unexpected quiz: %+v", quiz)
		}
	}
	if got := loader.calls.Load(); got != 1 {
		t.Fatalf("expected a single loader hit, got %d", got)
	}
}

func TestQuizCacheExpires(t *testing.T) {
	loader := &countingLoader{quiz: domain.Quiz{ID: "quiz-1"}}
	cache := NewQuizCache(loader, time.Minute)

	current := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	cache.clock = func() time.Time { return current }

	ctx := context.Background()
	if _, err := cache.GetQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("get: %v", err)
	}
	// Jitter is at most 10%, so 2x TTL is safely past expiry.
	current = current.Add(2 * time.Minute)
	if _, err := cache.GetQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("get after expiry: %v", err)
	}
	if got := loader.calls.Load(); got != 2 {
		t.Fatalf("expected reload after expiry, got %d hits", got)
	}
}

func TestQuizCacheInvalidateForcesReload(t *testing.T) {
	loader := &countingLoader{quiz: domain.Quiz{ID: "quiz-1"}}
	cache := NewQuizCache(loader, time.Hour)
	ctx := context.Background()

	if _, err := cache.GetQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("get: %v", err)
	}
	cache.Invalidate(ctx, "quiz-1")
	if _, err := cache.GetQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("get after invalidate: %v", err)
	}
	if got := loader.calls.Load(); got != 2 {
		t.Fatalf("expected reload after invalidate, got %d hits", got)
	}
}

func TestQuizCachePropagatesLoaderErrors(t *testing.T) {
	loader := &countingLoader{err: errors.New("store down")}
	cache := NewQuizCache(loader, time.Minute)

	if _, err := cache.GetQuiz(context.Background(), "quiz-1"); err == nil {
		t.Fatal("expected loader error")
	}
	// Errors are not cached.
	loader.err = nil
	loader.quiz = domain.Quiz{ID: "quiz-1"}
	if _, err := cache.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get after recovery: %v", err)
	}
}
