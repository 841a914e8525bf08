package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"campus-assessment-service/internal/app"
	"campus-assessment-service/internal/domain"
	"campus-assessment-service/internal/infra/memory"
)

type resultsFixture struct {
	*attemptFixture
	svc *app.ResultsService
}

func newResultsFixture(t *testing.T) *resultsFixture {
	t.Helper()
	f := newAttemptFixture(t)
	cache := memory.NewQuizCache(f.quizzes, time.Minute)
	students := memory.NewStudentDirectory(map[string]string{"s1": "Alice", "s2": "Bob"})
	return &resultsFixture{
		attemptFixture: f,
		svc:            app.NewResultsServiceWithClock(cache, f.store, f.svc, students, f.clock.Now),
	}
}

func (f *resultsFixture) submitFor(t *testing.T, student string, answers map[string]int) {
	t.Helper()
	ctx := context.Background()
	attempt, err := f.attemptFixture.svc.Start(ctx, "quiz-1", student)
	if err != nil {
		t.Fatalf("start %s: %v", student, err)
	}
	if _, err := f.attemptFixture.svc.Submit(ctx, attempt.ID, answers, false); err != nil {
		t.Fatalf("submit %s: %v", student, err)
	}
}

func TestAdminResultsRanksAndSummarizes(t *testing.T) {
	f := newResultsFixture(t)
	ctx := context.Background()

	f.submitFor(t, "s1", map[string]int{"q1": 2, "q2": 4, "q3": 1}) // 3 marks
	f.submitFor(t, "s2", map[string]int{"q1": 2})                  // 1 mark

	report, err := f.svc.AdminResults(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("admin results: %v", err)
	}
	if len(report.Results) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(report.Results))
	}
	top := report.Results[0]
	if top.Rank != 1 || top.StudentName != "Alice" || top.MarksObtained != 3 {
		t.Fatalf("unexpected leader: %+v", top)
	}
	if report.Stats.Count != 2 || report.Stats.Average != 2 || report.Stats.Max != 3 || report.Stats.Min != 1 {
		t.Fatalf("unexpected stats: %+v", report.Stats)
	}
}

// An overdue in-progress attempt is finalized by the report itself, so an
// abandoned session shows up as a zero-mark auto-submitted row.
func TestAdminResultsFinalizesOverdueAttempts(t *testing.T) {
	f := newResultsFixture(t)
	ctx := context.Background()

	if _, err := f.attemptFixture.svc.Start(ctx, "quiz-1", "s1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.clock.Advance(31 * time.Minute)

	report, err := f.svc.AdminResults(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("admin results: %v", err)
	}
	if len(report.Results) != 1 {
		t.Fatalf("expected 1 row, got %d", len(report.Results))
	}
	row := report.Results[0]
	if row.MarksObtained != 0 || !row.AutoSubmitted {
		t.Fatalf("expected forced zero-mark row, got %+v", row)
	}
	if report.Stats.Count != 1 {
		t.Fatalf("expected forced attempt counted, got %+v", report.Stats)
	}
}

// Students cannot see their result while the window is still open.
func TestStudentResultGatedUntilWindowCloses(t *testing.T) {
	f := newResultsFixture(t)
	ctx := context.Background()

	f.submitFor(t, "s1", map[string]int{"q1": 2, "q2": 4, "q3": 1})

	_, err := f.svc.StudentResult(ctx, "quiz-1", "s1")
	if !errors.Is(err, domain.ErrResultsNotReady) {
		t.Fatalf("expected results gate, got %v", err)
	}

	f.clock.Set(windowEnd)
	result, err := f.svc.StudentResult(ctx, "quiz-1", "s1")
	if err != nil {
		t.Fatalf("student result: %v", err)
	}
	if result.Status != domain.AttemptCompleted || result.MarksObtained != 3 || result.TotalMarks != 3 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestStudentResultNotAttempted(t *testing.T) {
	f := newResultsFixture(t)
	f.clock.Set(windowEnd)

	result, err := f.svc.StudentResult(context.Background(), "quiz-1", "s9")
	if err != nil {
		t.Fatalf("student result: %v", err)
	}
	if result.Status != domain.AttemptNotStarted {
		t.Fatalf("expected not_started, got %s", result.Status)
	}
	if result.MarksObtained != 0 || result.TotalMarks != 3 {
		t.Fatalf("total marks must still reflect the bank: %+v", result)
	}
}
