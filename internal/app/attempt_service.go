package app

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"campus-assessment-service/internal/domain"
)

// QuizProvider loads quiz content, possibly through a cache.
type QuizProvider interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// AttemptStore abstracts how attempts are persisted (in-memory, Postgres).
// Implementations must enforce the one-attempt-per-(quiz,student) invariant on
// Create and serialize Update calls per attempt id, so a duplicate start and a
// submit, or two near-simultaneous submits, can never produce two distinct
// graded results.
type AttemptStore interface {
	Create(ctx context.Context, attempt domain.Attempt) error
	Get(ctx context.Context, id string) (domain.Attempt, error)
	FindByQuizStudent(ctx context.Context, quizID, studentID string) (domain.Attempt, error)
	// Update runs fn against the current row under exclusive ownership of the
	// attempt and persists the result when fn reports a change.
	Update(ctx context.Context, id string, fn func(*domain.Attempt) (bool, error)) (domain.Attempt, error)
	ListByQuiz(ctx context.Context, quizID string) ([]domain.Attempt, error)
	CountByQuiz(ctx context.Context, quizID string) (int, error)
}

// Bootstrap is everything the attempt view needs: quiz metadata, the question
// list with correct answers stripped by the transport layer, and the
// server-authoritative countdown.
type Bootstrap struct {
	Quiz             domain.Quiz
	Attempt          domain.Attempt
	RemainingSeconds int
}

// AttemptService is the state machine governing one student's relationship to
// one quiz: admission control, countdown, locking, and submission acceptance.
type AttemptService struct {
	quizzes  QuizProvider
	attempts AttemptStore
	now      func() time.Time
}

func NewAttemptService(quizzes QuizProvider, attempts AttemptStore) *AttemptService {
	return NewAttemptServiceWithClock(quizzes, attempts, time.Now)
}

// NewAttemptServiceWithClock is test-only for deterministic timestamps.
func NewAttemptServiceWithClock(quizzes QuizProvider, attempts AttemptStore, now func() time.Time) *AttemptService {
	return &AttemptService{quizzes: quizzes, attempts: attempts, now: now}
}

// Start admits a student into a quiz or resumes their live attempt.
//
// Admission requires the current time to fall inside [start_time, end_time).
// A second call while the attempt is in progress returns the same attempt, so
// a client reload resumes instead of erroring. The deadline is fixed at
// min(started_at + duration, quiz.end_time): the window is a hard ceiling, a
// late starter gets a shortened effective duration, never an extension.
func (s *AttemptService) Start(ctx context.Context, quizID, studentID string) (domain.Attempt, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Attempt{}, err
	}

	// Two passes: a lost race on Create is resolved by re-reading the row the
	// winner inserted.
	for range [2]struct{}{} {
		existing, err := s.attempts.FindByQuizStudent(ctx, quizID, studentID)
		switch {
		case err == nil:
			return s.resume(ctx, existing)
		case !errors.Is(err, domain.ErrAttemptNotFound):
			return domain.Attempt{}, err
		}

		now := s.now()
		if now.Before(quiz.StartTime) {
			return domain.Attempt{}, domain.ErrWindowNotOpen
		}
		if !now.Before(quiz.EndTime) {
			return domain.Attempt{}, domain.ErrWindowClosed
		}

		deadline := now.Add(quiz.Duration())
		if deadline.After(quiz.EndTime) {
			deadline = quiz.EndTime
		}
		attempt := domain.Attempt{
			ID:         uuid.NewString(),
			QuizID:     quiz.ID,
			StudentID:  studentID,
			Status:     domain.AttemptInProgress,
			StartedAt:  now,
			Deadline:   deadline,
			TotalMarks: len(quiz.Questions),
		}
		err = s.attempts.Create(ctx, attempt)
		if err == nil {
			return attempt, nil
		}
		if !errors.Is(err, domain.ErrAttemptExists) {
			return domain.Attempt{}, err
		}
	}
	return domain.Attempt{}, domain.ErrAttemptExists
}

// resume re-enters an existing attempt, enforcing the deadline server-side: an
// overdue attempt is finalized here rather than handed back to the client.
func (s *AttemptService) resume(ctx context.Context, attempt domain.Attempt) (domain.Attempt, error) {
	if attempt.Status == domain.AttemptCompleted {
		return attempt, domain.ErrAlreadyCompleted
	}
	if attempt.Expired(s.now()) {
		finalized, err := s.FinalizeOverdue(ctx, attempt.ID)
		if err != nil {
			return domain.Attempt{}, err
		}
		return finalized, domain.ErrAlreadyCompleted
	}
	return attempt, nil
}

// BootstrapAttempt admits (or resumes) the student and returns the attempt
// view payload in one call.
func (s *AttemptService) BootstrapAttempt(ctx context.Context, quizID, studentID string) (Bootstrap, error) {
	attempt, err := s.Start(ctx, quizID, studentID)
	if err != nil {
		return Bootstrap{}, err
	}
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return Bootstrap{}, err
	}
	return Bootstrap{
		Quiz:             quiz,
		Attempt:          attempt,
		RemainingSeconds: attempt.RemainingSeconds(s.now()),
	}, nil
}

// Attempt returns the stored attempt without enforcing the deadline. Callers
// checking ownership before a submit must use this rather than Status: a
// finalizing read would complete an overdue attempt first and the late
// manual submit would replay the empty result instead of being graded.
func (s *AttemptService) Attempt(ctx context.Context, attemptID string) (domain.Attempt, error) {
	return s.attempts.Get(ctx, attemptID)
}

// Submit grades an attempt and completes it. The call is idempotent: a replay
// on an already-completed attempt returns the previously computed result
// untouched, absorbing network retries and duplicate auto-submit timers. A
// manual submit arriving after the deadline is accepted but flagged
// auto_submitted, as if the clock had already fired.
func (s *AttemptService) Submit(ctx context.Context, attemptID string, answers map[string]int, isAuto bool) (domain.Attempt, error) {
	attempt, err := s.attempts.Get(ctx, attemptID)
	if err != nil {
		return domain.Attempt{}, err
	}
	quiz, err := s.quizzes.GetQuiz(ctx, attempt.QuizID)
	if err != nil {
		return domain.Attempt{}, err
	}

	return s.attempts.Update(ctx, attemptID, func(a *domain.Attempt) (bool, error) {
		if a.Status == domain.AttemptCompleted {
			return false, nil
		}
		now := s.now()
		a.Answers = normalizeAnswers(quiz.Questions, answers)
		result := Grade(quiz.Questions, a.Answers)
		a.MarksObtained = &result.MarksObtained
		a.TotalMarks = result.TotalMarks
		a.Status = domain.AttemptCompleted
		submitted := now
		a.SubmittedAt = &submitted
		a.AutoSubmitted = isAuto || now.After(a.Deadline)
		return true, nil
	})
}

// FinalizeOverdue force-completes an attempt whose deadline has passed,
// grading whatever answers were last durably received (none persist before
// submission, so every question scores as unanswered). It is a no-op on an
// attempt that is already completed, which makes concurrent lazy checks safe.
func (s *AttemptService) FinalizeOverdue(ctx context.Context, attemptID string) (domain.Attempt, error) {
	attempt, err := s.attempts.Get(ctx, attemptID)
	if err != nil {
		return domain.Attempt{}, err
	}
	quiz, err := s.quizzes.GetQuiz(ctx, attempt.QuizID)
	if err != nil {
		return domain.Attempt{}, err
	}

	return s.attempts.Update(ctx, attemptID, func(a *domain.Attempt) (bool, error) {
		if a.Status == domain.AttemptCompleted {
			return false, nil
		}
		if !a.Expired(s.now()) {
			return false, nil
		}
		a.Answers = normalizeAnswers(quiz.Questions, a.Answers)
		result := Grade(quiz.Questions, a.Answers)
		a.MarksObtained = &result.MarksObtained
		a.TotalMarks = result.TotalMarks
		a.Status = domain.AttemptCompleted
		// Answers were locked at the deadline, not at whichever read noticed.
		submitted := a.Deadline
		a.SubmittedAt = &submitted
		a.AutoSubmitted = true
		return true, nil
	})
}

// Status returns the attempt with the deadline lazily enforced: reading an
// overdue attempt transitions it to completed so the server never depends on
// the client calling submit.
func (s *AttemptService) Status(ctx context.Context, attemptID string) (domain.Attempt, int, error) {
	attempt, err := s.attempts.Get(ctx, attemptID)
	if err != nil {
		return domain.Attempt{}, 0, err
	}
	if attempt.Status == domain.AttemptInProgress && attempt.Expired(s.now()) {
		attempt, err = s.FinalizeOverdue(ctx, attemptID)
		if err != nil {
			return domain.Attempt{}, 0, err
		}
	}
	return attempt, attempt.RemainingSeconds(s.now()), nil
}
