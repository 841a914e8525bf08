package memory

import (
	"context"
	"sort"
	"sync"

	"campus-assessment-service/internal/domain"
)

// QuizStore is an in-memory implementation of app.QuizStore. It holds a
// reference to the attempt store so Delete can cascade the way the Postgres
// foreign keys do.
type QuizStore struct {
	mu       sync.RWMutex
	quizzes  map[string]*domain.Quiz
	attempts *AttemptStore
}

func NewQuizStore(attempts *AttemptStore) *QuizStore {
	return &QuizStore{
		quizzes:  make(map[string]*domain.Quiz),
		attempts: attempts,
	}
}

func (s *QuizStore) Create(_ context.Context, quiz domain.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := cloneQuiz(quiz)
	s.quizzes[quiz.ID] = &clone
	return nil
}

func (s *QuizStore) Get(_ context.Context, id string) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	quiz, ok := s.quizzes[id]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return cloneQuiz(*quiz), nil
}

// LoadQuiz satisfies the cache loader interfaces.
func (s *QuizStore) LoadQuiz(ctx context.Context, id string) (domain.Quiz, error) {
	return s.Get(ctx, id)
}

func (s *QuizStore) ListBySection(_ context.Context, sectionID string) ([]domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Quiz
	for _, quiz := range s.quizzes {
		if quiz.SectionID == sectionID {
			out = append(out, cloneQuiz(*quiz))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out, nil
}

func (s *QuizStore) ListAll(_ context.Context) ([]domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Quiz, 0, len(s.quizzes))
	for _, quiz := range s.quizzes {
		out = append(out, cloneQuiz(*quiz))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *QuizStore) ReplaceQuestions(_ context.Context, quizID string, questions []domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	quiz.Questions = append([]domain.Question(nil), questions...)
	return nil
}

func (s *QuizStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	if _, ok := s.quizzes[id]; !ok {
		s.mu.Unlock()
		return domain.ErrQuizNotFound
	}
	delete(s.quizzes, id)
	s.mu.Unlock()

	s.attempts.deleteByQuiz(id)
	return nil
}

func cloneQuiz(q domain.Quiz) domain.Quiz {
	q.Questions = append([]domain.Question(nil), q.Questions...)
	return q
}
