package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"campus-assessment-service/internal/domain"
)

// QuizStore persists quiz definitions in Postgres.
type QuizStore struct {
	pool *pgxpool.Pool
}

func NewQuizStore(pool *pgxpool.Pool) *QuizStore {
	return &QuizStore{pool: pool}
}

func (s *QuizStore) Create(ctx context.Context, quiz domain.Quiz) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create quiz: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO quizzes (id, title, section_id, duration_minutes, start_time, end_time, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		quiz.ID, quiz.Title, quiz.SectionID, quiz.DurationMinutes,
		quiz.StartTime, quiz.EndTime, quiz.CreatedBy, quiz.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert quiz: %w", err)
	}

	if err := insertQuestions(ctx, tx, quiz.ID, quiz.Questions); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertQuestions(ctx context.Context, tx pgx.Tx, quizID string, questions []domain.Question) error {
	for i, q := range questions {
		_, err := tx.Exec(ctx,
			`INSERT INTO quiz_questions (id, quiz_id, position, question_text, option_a, option_b, option_c, option_d, correct_option)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			q.ID, quizID, i, q.Text, q.OptionA, q.OptionB, q.OptionC, q.OptionD, q.CorrectOption)
		if err != nil {
			return fmt.Errorf("insert question: %w", err)
		}
	}
	return nil
}

func (s *QuizStore) Get(ctx context.Context, id string) (domain.Quiz, error) {
	var quiz domain.Quiz
	err := s.pool.QueryRow(ctx,
		`SELECT id, title, section_id, duration_minutes, start_time, end_time, created_by, created_at
		 FROM quizzes WHERE id = $1`, id).
		Scan(&quiz.ID, &quiz.Title, &quiz.SectionID, &quiz.DurationMinutes,
			&quiz.StartTime, &quiz.EndTime, &quiz.CreatedBy, &quiz.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}

	quiz.Questions, err = s.loadQuestions(ctx, id)
	if err != nil {
		return domain.Quiz{}, err
	}
	return quiz, nil
}

// LoadQuiz satisfies the cache loader interfaces.
func (s *QuizStore) LoadQuiz(ctx context.Context, id string) (domain.Quiz, error) {
	return s.Get(ctx, id)
}

func (s *QuizStore) loadQuestions(ctx context.Context, quizID string) ([]domain.Question, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, quiz_id, question_text, option_a, option_b, option_c, option_d, correct_option
		 FROM quiz_questions WHERE quiz_id = $1 ORDER BY position`, quizID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var q domain.Question
		if err := rows.Scan(&q.ID, &q.QuizID, &q.Text, &q.OptionA, &q.OptionB, &q.OptionC, &q.OptionD, &q.CorrectOption); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (s *QuizStore) ListBySection(ctx context.Context, sectionID string) ([]domain.Quiz, error) {
	return s.list(ctx,
		`SELECT id, title, section_id, duration_minutes, start_time, end_time, created_by, created_at
		 FROM quizzes WHERE section_id = $1 ORDER BY start_time DESC`, sectionID)
}

func (s *QuizStore) ListAll(ctx context.Context) ([]domain.Quiz, error) {
	return s.list(ctx,
		`SELECT id, title, section_id, duration_minutes, start_time, end_time, created_by, created_at
		 FROM quizzes ORDER BY created_at DESC`)
}

func (s *QuizStore) list(ctx context.Context, query string, args ...interface{}) ([]domain.Quiz, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	var quizzes []domain.Quiz
	for rows.Next() {
		var quiz domain.Quiz
		if err := rows.Scan(&quiz.ID, &quiz.Title, &quiz.SectionID, &quiz.DurationMinutes,
			&quiz.StartTime, &quiz.EndTime, &quiz.CreatedBy, &quiz.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan quiz: %w", err)
		}
		quizzes = append(quizzes, quiz)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range quizzes {
		quizzes[i].Questions, err = s.loadQuestions(ctx, quizzes[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return quizzes, nil
}

func (s *QuizStore) ReplaceQuestions(ctx context.Context, quizID string, questions []domain.Question) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace questions: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `SELECT 1 FROM quizzes WHERE id = $1`, quizID)
	if err != nil {
		return fmt.Errorf("check quiz: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuizNotFound
	}

	if _, err := tx.Exec(ctx, `DELETE FROM quiz_questions WHERE quiz_id = $1`, quizID); err != nil {
		return fmt.Errorf("clear questions: %w", err)
	}
	if err := insertQuestions(ctx, tx, quizID, questions); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Delete removes the quiz row; questions, attempts, and answers go with it via
// the foreign key cascades, so the whole removal is one transaction.
func (s *QuizStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM quizzes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuizNotFound
	}
	return nil
}
