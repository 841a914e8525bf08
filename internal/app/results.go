package app

import (
	"context"
	"errors"
	"sort"
	"time"

	"campus-assessment-service/internal/domain"
)

// StudentDirectory resolves display names for the admin results view. Student
// accounts live in an external system; implementations may fall back to the
// raw id when a name is unknown.
type StudentDirectory interface {
	StudentName(ctx context.Context, studentID string) (string, error)
}

// Rank orders completed attempts by marks descending and assigns 1-based
// positional ranks. Ties receive distinct sequential ranks (two students tied
// at the top rank 1 and 2, not both 1); the sort is stable so tied attempts
// keep their input order.
func Rank(attempts []domain.Attempt) []domain.RankedResult {
	completed := make([]domain.Attempt, 0, len(attempts))
	for _, a := range attempts {
		if a.Status == domain.AttemptCompleted {
			completed = append(completed, a)
		}
	}
	sort.SliceStable(completed, func(i, j int) bool {
		return marksOf(completed[i]) > marksOf(completed[j])
	})

	ranked := make([]domain.RankedResult, 0, len(completed))
	for i, a := range completed {
		ranked = append(ranked, domain.RankedResult{
			Rank:          i + 1,
			StudentID:     a.StudentID,
			MarksObtained: marksOf(a),
			TotalMarks:    a.TotalMarks,
			SubmittedAt:   a.SubmittedAt,
			AutoSubmitted: a.AutoSubmitted,
		})
	}
	return ranked
}

// Stats summarizes marks across completed attempts only. Average is 0 when
// there are no completed attempts.
func Stats(attempts []domain.Attempt) domain.ResultStats {
	stats := domain.ResultStats{}
	sum := 0
	for _, a := range attempts {
		if a.Status != domain.AttemptCompleted {
			continue
		}
		m := marksOf(a)
		if stats.Count == 0 || m > stats.Max {
			stats.Max = m
		}
		if stats.Count == 0 || m < stats.Min {
			stats.Min = m
		}
		sum += m
		stats.Count++
	}
	if stats.Count > 0 {
		stats.Average = float64(sum) / float64(stats.Count)
	}
	return stats
}

func marksOf(a domain.Attempt) int {
	if a.MarksObtained == nil {
		return 0
	}
	return *a.MarksObtained
}

// QuizResults is the admin-facing report for one quiz.
type QuizResults struct {
	QuizID  string                `json:"quizId"`
	Title   string                `json:"title"`
	Results []domain.RankedResult `json:"results"`
	Stats   domain.ResultStats    `json:"stats"`
}

// StudentResult is the student-facing view of their own outcome.
type StudentResult struct {
	QuizID        string               `json:"quizId"`
	Status        domain.AttemptStatus `json:"status"`
	MarksObtained int                  `json:"marksObtained"`
	TotalMarks    int                  `json:"totalMarks"`
	SubmittedAt   *time.Time           `json:"submittedAt,omitempty"`
	AutoSubmitted bool                 `json:"autoSubmitted"`
}

// ResultsService ranks attempts and serves the two result views.
type ResultsService struct {
	quizzes  QuizProvider
	attempts AttemptStore
	sessions *AttemptService
	students StudentDirectory
	now      func() time.Time
}

func NewResultsService(quizzes QuizProvider, attempts AttemptStore, sessions *AttemptService, students StudentDirectory) *ResultsService {
	return NewResultsServiceWithClock(quizzes, attempts, sessions, students, time.Now)
}

// NewResultsServiceWithClock is test-only for deterministic timestamps.
func NewResultsServiceWithClock(quizzes QuizProvider, attempts AttemptStore, sessions *AttemptService, students StudentDirectory, now func() time.Time) *ResultsService {
	return &ResultsService{quizzes: quizzes, attempts: attempts, sessions: sessions, students: students, now: now}
}

// AdminResults returns the ranked report for a quiz. Overdue in-progress
// attempts are finalized first so the report never shows a live countdown as
// an empty row.
func (s *ResultsService) AdminResults(ctx context.Context, quizID string) (QuizResults, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return QuizResults{}, err
	}

	attempts, err := s.attempts.ListByQuiz(ctx, quizID)
	if err != nil {
		return QuizResults{}, err
	}
	now := s.now()
	for i, a := range attempts {
		if a.Status == domain.AttemptInProgress && a.Expired(now) {
			finalized, err := s.sessions.FinalizeOverdue(ctx, a.ID)
			if err != nil {
				return QuizResults{}, err
			}
			attempts[i] = finalized
		}
	}

	ranked := Rank(attempts)
	for i := range ranked {
		name, err := s.students.StudentName(ctx, ranked[i].StudentID)
		if err != nil {
			name = ranked[i].StudentID
		}
		ranked[i].StudentName = name
	}

	return QuizResults{
		QuizID:  quiz.ID,
		Title:   quiz.Title,
		Results: ranked,
		Stats:   Stats(attempts),
	}, nil
}

// StudentResult returns the requester's own outcome for a quiz. Results are
// concealed until the quiz window has closed so a live leaderboard never
// leaks during an active session.
func (s *ResultsService) StudentResult(ctx context.Context, quizID, studentID string) (StudentResult, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return StudentResult{}, err
	}
	if s.now().Before(quiz.EndTime) {
		return StudentResult{}, domain.ErrResultsNotReady
	}

	result := StudentResult{
		QuizID:     quiz.ID,
		Status:     domain.AttemptNotStarted,
		TotalMarks: len(quiz.Questions),
	}

	attempt, err := s.attempts.FindByQuizStudent(ctx, quizID, studentID)
	if errors.Is(err, domain.ErrAttemptNotFound) {
		return result, nil
	}
	if err != nil {
		return StudentResult{}, err
	}

	if attempt.Status == domain.AttemptInProgress && attempt.Expired(s.now()) {
		attempt, err = s.sessions.FinalizeOverdue(ctx, attempt.ID)
		if err != nil {
			return StudentResult{}, err
		}
	}

	result.Status = attempt.Status
	result.SubmittedAt = attempt.SubmittedAt
	result.AutoSubmitted = attempt.AutoSubmitted
	if attempt.MarksObtained != nil {
		result.MarksObtained = *attempt.MarksObtained
	}
	if attempt.TotalMarks > 0 {
		result.TotalMarks = attempt.TotalMarks
	}
	return result, nil
}
