package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"campus-assessment-service/internal/domain"
)

const uniqueViolation = "23505"

const attemptColumns = `id, quiz_id, student_id, status, started_at, deadline, submitted_at, marks_obtained, total_marks, auto_submitted`

// AttemptStore persists attempts in Postgres. The (quiz_id, student_id)
// unique index enforces admission control; Update takes a row lock so the
// admission-then-submit sequence is serialized per attempt.
type AttemptStore struct {
	pool *pgxpool.Pool
}

func NewAttemptStore(pool *pgxpool.Pool) *AttemptStore {
	return &AttemptStore{pool: pool}
}

func (s *AttemptStore) Create(ctx context.Context, attempt domain.Attempt) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO quiz_attempts (id, quiz_id, student_id, status, started_at, deadline, submitted_at, marks_obtained, total_marks, auto_submitted)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		attempt.ID, attempt.QuizID, attempt.StudentID, string(attempt.Status),
		attempt.StartedAt, attempt.Deadline, attempt.SubmittedAt,
		attempt.MarksObtained, attempt.TotalMarks, attempt.AutoSubmitted)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrAttemptExists
		}
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func (s *AttemptStore) Get(ctx context.Context, id string) (domain.Attempt, error) {
	attempt, err := scanAttempt(s.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM quiz_attempts WHERE id = $1`, id))
	if err != nil {
		return domain.Attempt{}, err
	}
	attempt.Answers, err = s.loadAnswers(ctx, s.pool, id)
	if err != nil {
		return domain.Attempt{}, err
	}
	return attempt, nil
}

func (s *AttemptStore) FindByQuizStudent(ctx context.Context, quizID, studentID string) (domain.Attempt, error) {
	return scanAttempt(s.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM quiz_attempts WHERE quiz_id = $1 AND student_id = $2`,
		quizID, studentID))
}

// Update locks the attempt row, applies fn, and persists the result along
// with the answer set. The row lock is what makes a duplicate submit and a
// lazy deadline check read-modify-write safe against each other.
func (s *AttemptStore) Update(ctx context.Context, id string, fn func(*domain.Attempt) (bool, error)) (domain.Attempt, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("begin update attempt: %w", err)
	}
	defer tx.Rollback(ctx)

	attempt, err := scanAttempt(tx.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM quiz_attempts WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return domain.Attempt{}, err
	}
	attempt.Answers, err = s.loadAnswers(ctx, tx, id)
	if err != nil {
		return domain.Attempt{}, err
	}

	changed, err := fn(&attempt)
	if err != nil {
		return domain.Attempt{}, err
	}
	if !changed {
		return attempt, tx.Commit(ctx)
	}

	_, err = tx.Exec(ctx,
		`UPDATE quiz_attempts
		 SET status = $2, submitted_at = $3, marks_obtained = $4, total_marks = $5, auto_submitted = $6
		 WHERE id = $1`,
		id, string(attempt.Status), attempt.SubmittedAt, attempt.MarksObtained, attempt.TotalMarks, attempt.AutoSubmitted)
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("update attempt: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM quiz_answers WHERE attempt_id = $1`, id); err != nil {
		return domain.Attempt{}, fmt.Errorf("clear answers: %w", err)
	}
	for questionID, selected := range attempt.Answers {
		// is_correct is derived inside the statement so the answer row can
		// never disagree with the question's answer key.
		_, err := tx.Exec(ctx,
			`INSERT INTO quiz_answers (attempt_id, question_id, selected_option, is_correct)
			 SELECT $1, q.id, $3, q.correct_option = $3
			 FROM quiz_questions q WHERE q.id = $2`,
			id, questionID, selected)
		if err != nil {
			return domain.Attempt{}, fmt.Errorf("insert answer: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Attempt{}, fmt.Errorf("commit update attempt: %w", err)
	}
	return attempt, nil
}

func (s *AttemptStore) ListByQuiz(ctx context.Context, quizID string) ([]domain.Attempt, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+attemptColumns+` FROM quiz_attempts WHERE quiz_id = $1`, quizID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []domain.Attempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, attempt)
	}
	return attempts, rows.Err()
}

func (s *AttemptStore) CountByQuiz(ctx context.Context, quizID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM quiz_attempts WHERE quiz_id = $1`, quizID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return count, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

func (s *AttemptStore) loadAnswers(ctx context.Context, q querier, attemptID string) (map[string]int, error) {
	rows, err := q.Query(ctx,
		`SELECT question_id, selected_option FROM quiz_answers WHERE attempt_id = $1`, attemptID)
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}
	defer rows.Close()

	var answers map[string]int
	for rows.Next() {
		var questionID string
		var selected int
		if err := rows.Scan(&questionID, &selected); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		if answers == nil {
			answers = make(map[string]int)
		}
		answers[questionID] = selected
	}
	return answers, rows.Err()
}

func scanAttempt(row pgx.Row) (domain.Attempt, error) {
	var a domain.Attempt
	var status string
	err := row.Scan(&a.ID, &a.QuizID, &a.StudentID, &status, &a.StartedAt,
		&a.Deadline, &a.SubmittedAt, &a.MarksObtained, &a.TotalMarks, &a.AutoSubmitted)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("scan attempt: %w", err)
	}
	a.Status = domain.AttemptStatus(status)
	return a, nil
}
