package memory

import (
	"context"
	"sync"

	"campus-assessment-service/internal/domain"
)

type pairKey struct {
	quizID    string
	studentID string
}

// AttemptStore is an in-memory implementation of app.AttemptStore. A single
// store-wide mutex serializes every mutation, which trivially satisfies the
// per-attempt serialization contract; the Postgres store does the same with a
// row lock instead.
type AttemptStore struct {
	mu       sync.RWMutex
	attempts map[string]*domain.Attempt
	byPair   map[pairKey]string
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{
		attempts: make(map[string]*domain.Attempt),
		byPair:   make(map[pairKey]string),
	}
}

func (s *AttemptStore) Create(_ context.Context, attempt domain.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{attempt.QuizID, attempt.StudentID}
	if _, ok := s.byPair[key]; ok {
		return domain.ErrAttemptExists
	}
	clone := cloneAttempt(attempt)
	s.attempts[attempt.ID] = &clone
	s.byPair[key] = attempt.ID
	return nil
}

func (s *AttemptStore) Get(_ context.Context, id string) (domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	attempt, ok := s.attempts[id]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return cloneAttempt(*attempt), nil
}

func (s *AttemptStore) FindByQuizStudent(_ context.Context, quizID, studentID string) (domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byPair[pairKey{quizID, studentID}]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return cloneAttempt(*s.attempts[id]), nil
}

func (s *AttemptStore) Update(_ context.Context, id string, fn func(*domain.Attempt) (bool, error)) (domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.attempts[id]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}

	working := cloneAttempt(*stored)
	changed, err := fn(&working)
	if err != nil {
		return domain.Attempt{}, err
	}
	if changed {
		updated := cloneAttempt(working)
		s.attempts[id] = &updated
	}
	return working, nil
}

func (s *AttemptStore) ListByQuiz(_ context.Context, quizID string) ([]domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Attempt
	for _, attempt := range s.attempts {
		if attempt.QuizID == quizID {
			out = append(out, cloneAttempt(*attempt))
		}
	}
	return out, nil
}

func (s *AttemptStore) CountByQuiz(_ context.Context, quizID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, attempt := range s.attempts {
		if attempt.QuizID == quizID {
			count++
		}
	}
	return count, nil
}

// deleteByQuiz supports the quiz store's cascade; callers hold no locks.
func (s *AttemptStore) deleteByQuiz(quizID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, attempt := range s.attempts {
		if attempt.QuizID == quizID {
			delete(s.byPair, pairKey{attempt.QuizID, attempt.StudentID})
			delete(s.attempts, id)
		}
	}
}

func cloneAttempt(a domain.Attempt) domain.Attempt {
	if a.Answers != nil {
		answers := make(map[string]int, len(a.Answers))
		for k, v := range a.Answers {
			answers[k] = v
		}
		a.Answers = answers
	}
	if a.MarksObtained != nil {
		marks := *a.MarksObtained
		a.MarksObtained = &marks
	}
	if a.SubmittedAt != nil {
		at := *a.SubmittedAt
		a.SubmittedAt = &at
	}
	return a
}
