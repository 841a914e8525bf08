package app

import "campus-assessment-service/internal/domain"

// Grade scores submitted answers against a question bank. Every question is
// worth exactly one mark; unanswered or out-of-range choices score zero. The
// function is pure: no side effects, deterministic for identical inputs.
func Grade(questions []domain.Question, answers map[string]int) domain.GradeResult {
	marks := 0
	for _, q := range questions {
		if answers[q.ID] == q.CorrectOption {
			marks++
		}
	}
	return domain.GradeResult{
		MarksObtained: marks,
		TotalMarks:    len(questions),
	}
}

// normalizeAnswers returns one entry per question in the bank: the student's
// choice when it is a valid option, otherwise Unanswered. Choices for unknown
// question ids are dropped.
func normalizeAnswers(questions []domain.Question, answers map[string]int) map[string]int {
	normalized := make(map[string]int, len(questions))
	for _, q := range questions {
		choice := answers[q.ID]
		if choice < 1 || choice > 4 {
			choice = domain.Unanswered
		}
		normalized[q.ID] = choice
	}
	return normalized
}
