package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"campus-assessment-service/internal/domain"
)

// QuizStore abstracts quiz persistence (in-memory, Postgres). Delete cascades
// to questions and attempts in one transaction.
type QuizStore interface {
	Create(ctx context.Context, quiz domain.Quiz) error
	Get(ctx context.Context, id string) (domain.Quiz, error)
	ListBySection(ctx context.Context, sectionID string) ([]domain.Quiz, error)
	ListAll(ctx context.Context) ([]domain.Quiz, error)
	ReplaceQuestions(ctx context.Context, quizID string, questions []domain.Question) error
	Delete(ctx context.Context, id string) error
}

// SectionDirectory resolves sections, which are owned by an external system.
type SectionDirectory interface {
	SectionName(ctx context.Context, sectionID string) (string, error)
}

// CacheInvalidator drops cached quiz content after a mutation.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, quizID string)
}

// QuestionDraft is the pre-validation shape of one question.
type QuestionDraft struct {
	Text          string
	OptionA       string
	OptionB       string
	OptionC       string
	OptionD       string
	CorrectOption int
}

// QuizDraft is the pre-validation shape of a quiz definition.
type QuizDraft struct {
	Title           string
	SectionID       string
	DurationMinutes int
	StartTime       time.Time
	EndTime         time.Time
	CreatedBy       string
	Questions       []QuestionDraft
}

// AdminQuizRow is one entry of the administrator quiz list.
type AdminQuizRow struct {
	Quiz          domain.Quiz `json:"quiz"`
	SectionName   string      `json:"sectionName"`
	QuestionCount int         `json:"questionCount"`
	TotalMarks    int         `json:"totalMarks"`
}

// QuizService owns quiz definitions: creation, listing, question edits, and
// cascading deletion.
type QuizService struct {
	store    QuizStore
	attempts AttemptStore
	sections SectionDirectory
	cache    CacheInvalidator
	now      func() time.Time
}

func NewQuizService(store QuizStore, attempts AttemptStore, sections SectionDirectory, cache CacheInvalidator) *QuizService {
	return NewQuizServiceWithClock(store, attempts, sections, cache, time.Now)
}

// NewQuizServiceWithClock is test-only for deterministic timestamps.
func NewQuizServiceWithClock(store QuizStore, attempts AttemptStore, sections SectionDirectory, cache CacheInvalidator, now func() time.Time) *QuizService {
	return &QuizService{store: store, attempts: attempts, sections: sections, cache: cache, now: now}
}

// Create validates and persists a quiz with its question bank. Nothing is
// written when any invariant fails; all problems are reported together.
func (s *QuizService) Create(ctx context.Context, draft QuizDraft) (domain.Quiz, error) {
	problems := s.validateDraft(ctx, draft)
	if len(problems) > 0 {
		return domain.Quiz{}, &domain.ValidationError{Problems: problems}
	}

	quiz := domain.Quiz{
		ID:              uuid.NewString(),
		Title:           draft.Title,
		SectionID:       draft.SectionID,
		DurationMinutes: draft.DurationMinutes,
		StartTime:       draft.StartTime,
		EndTime:         draft.EndTime,
		CreatedBy:       draft.CreatedBy,
		CreatedAt:       s.now(),
	}
	quiz.Questions = buildQuestions(quiz.ID, draft.Questions)

	if err := s.store.Create(ctx, quiz); err != nil {
		return domain.Quiz{}, err
	}
	return quiz, nil
}

func (s *QuizService) validateDraft(ctx context.Context, draft QuizDraft) []string {
	var problems []string
	if draft.Title == "" {
		problems = append(problems, "title is required")
	}
	if _, err := s.sections.SectionName(ctx, draft.SectionID); err != nil {
		problems = append(problems, fmt.Sprintf("unknown section %q", draft.SectionID))
	}
	if draft.DurationMinutes <= 0 {
		problems = append(problems, "duration must be positive")
	}
	if !draft.StartTime.Before(draft.EndTime) {
		problems = append(problems, "start time must precede end time")
	} else if draft.DurationMinutes > 0 {
		window := draft.EndTime.Sub(draft.StartTime)
		if time.Duration(draft.DurationMinutes)*time.Minute > window {
			problems = append(problems, "duration exceeds the open window")
		}
	}
	if len(draft.Questions) == 0 {
		problems = append(problems, "at least one question is required")
	}
	problems = append(problems, validateQuestions(draft.Questions)...)
	return problems
}

func validateQuestions(drafts []QuestionDraft) []string {
	var problems []string
	for i, q := range drafts {
		if q.Text == "" {
			problems = append(problems, fmt.Sprintf("question %d: text is required", i+1))
		}
		if q.OptionA == "" || q.OptionB == "" || q.OptionC == "" || q.OptionD == "" {
			problems = append(problems, fmt.Sprintf("question %d: all four options are required", i+1))
		}
		if q.CorrectOption < 1 || q.CorrectOption > 4 {
			problems = append(problems, fmt.Sprintf("question %d: correct option must be 1-4", i+1))
		}
	}
	return problems
}

func buildQuestions(quizID string, drafts []QuestionDraft) []domain.Question {
	questions := make([]domain.Question, 0, len(drafts))
	for _, d := range drafts {
		questions = append(questions, domain.Question{
			ID:            uuid.NewString(),
			QuizID:        quizID,
			Text:          d.Text,
			OptionA:       d.OptionA,
			OptionB:       d.OptionB,
			OptionC:       d.OptionC,
			OptionD:       d.OptionD,
			CorrectOption: d.CorrectOption,
		})
	}
	return questions
}

// Get returns a quiz with its full question bank, answer key included. Admin
// use only; the student bootstrap path strips answers at the transport layer.
func (s *QuizService) Get(ctx context.Context, quizID string) (domain.Quiz, error) {
	return s.store.Get(ctx, quizID)
}

// AdminList returns every quiz with its section name and question count,
// newest first.
func (s *QuizService) AdminList(ctx context.Context) ([]AdminQuizRow, error) {
	quizzes, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]AdminQuizRow, 0, len(quizzes))
	for _, quiz := range quizzes {
		name, err := s.sections.SectionName(ctx, quiz.SectionID)
		if err != nil {
			name = "Unknown"
		}
		rows = append(rows, AdminQuizRow{
			Quiz:          quiz,
			SectionName:   name,
			QuestionCount: len(quiz.Questions),
			TotalMarks:    len(quiz.Questions),
		})
	}
	return rows, nil
}

// ListForSection returns the quizzes of one section together with the
// requesting student's attempt status for each. An in-progress attempt whose
// deadline has passed is reported as completed; the persisted transition
// happens on the next attempt read.
func (s *QuizService) ListForSection(ctx context.Context, sectionID, studentID string) ([]domain.QuizListing, error) {
	if _, err := s.sections.SectionName(ctx, sectionID); err != nil {
		return nil, err
	}
	quizzes, err := s.store.ListBySection(ctx, sectionID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	listings := make([]domain.QuizListing, 0, len(quizzes))
	for _, quiz := range quizzes {
		status := domain.AttemptNotStarted
		attempt, err := s.attempts.FindByQuizStudent(ctx, quiz.ID, studentID)
		switch {
		case err == nil:
			status = attempt.Status
			if status == domain.AttemptInProgress && attempt.Expired(now) {
				status = domain.AttemptCompleted
			}
		case !errors.Is(err, domain.ErrAttemptNotFound):
			return nil, err
		}
		listings = append(listings, domain.QuizListing{
			Quiz:          quiz,
			QuestionCount: len(quiz.Questions),
			TotalMarks:    len(quiz.Questions),
			AttemptStatus: status,
		})
	}
	return listings, nil
}

// UpdateQuestions replaces the question bank. Once any attempt exists the
// bank is frozen: changing questions under a graded attempt would corrupt
// recorded marks.
func (s *QuizService) UpdateQuestions(ctx context.Context, quizID string, drafts []QuestionDraft) (domain.Quiz, error) {
	quiz, err := s.store.Get(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}

	count, err := s.attempts.CountByQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if count > 0 {
		return domain.Quiz{}, domain.ErrEditConflict
	}

	var problems []string
	if len(drafts) == 0 {
		problems = append(problems, "at least one question is required")
	}
	problems = append(problems, validateQuestions(drafts)...)
	if len(problems) > 0 {
		return domain.Quiz{}, &domain.ValidationError{Problems: problems}
	}

	questions := buildQuestions(quizID, drafts)
	if err := s.store.ReplaceQuestions(ctx, quizID, questions); err != nil {
		return domain.Quiz{}, err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, quizID)
	}
	quiz.Questions = questions
	return quiz, nil
}

// Delete removes the quiz, its questions, and its attempts transactionally.
func (s *QuizService) Delete(ctx context.Context, quizID string) error {
	if err := s.store.Delete(ctx, quizID); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, quizID)
	}
	return nil
}
