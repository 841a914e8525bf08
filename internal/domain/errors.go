package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrQuizNotFound indicates the quiz does not exist (or was deleted).
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrAttemptNotFound indicates the attempt id is unknown.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrSectionNotFound indicates the referenced section is unknown.
	ErrSectionNotFound = errors.New("section not found")
	// ErrWindowNotOpen is returned when a student shows up before start_time.
	ErrWindowNotOpen = errors.New("quiz has not started yet")
	// ErrWindowClosed is returned when a student shows up at or after end_time.
	ErrWindowClosed = errors.New("quiz window has closed")
	// ErrAlreadyCompleted is the locked signal: the attempt is terminal and the
	// client must redirect away from the attempt view.
	ErrAlreadyCompleted = errors.New("attempt already completed")
	// ErrAttemptExists guards the one-attempt-per-(quiz,student) invariant at
	// the storage layer.
	ErrAttemptExists = errors.New("attempt already exists for student")
	// ErrEditConflict rejects question edits once any attempt exists.
	ErrEditConflict = errors.New("quiz has attempts, questions are frozen")
	// ErrResultsNotReady conceals student results while the quiz window is open.
	ErrResultsNotReady = errors.New("results are not available until the quiz ends")
)

// ValidationError carries the field-level problems of a malformed quiz or
// question definition. It is rejected before anything is persisted.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid quiz definition: %s", strings.Join(e.Problems, "; "))
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
