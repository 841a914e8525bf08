package domain

import "time"

// AttemptStatus tracks the lifecycle of a student's attempt. Transitions only
// move forward: not_started -> in_progress -> completed.
type AttemptStatus string

const (
	AttemptNotStarted AttemptStatus = "not_started"
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
)

// Unanswered is the sentinel choice for a question the student never answered.
const Unanswered = 0

// Question models a single-best-of-four MCQ owned by exactly one quiz.
// CorrectOption is 1-based (1=A .. 4=D).
type Question struct {
	ID            string `json:"id"`
	QuizID        string `json:"quizId"`
	Text          string `json:"text"`
	OptionA       string `json:"optionA"`
	OptionB       string `json:"optionB"`
	OptionC       string `json:"optionC"`
	OptionD       string `json:"optionD"`
	CorrectOption int    `json:"correctOption"`
}

// Quiz is the definition of a timed assessment: metadata plus its question bank.
type Quiz struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	SectionID       string     `json:"sectionId"`
	DurationMinutes int        `json:"durationMinutes"`
	StartTime       time.Time  `json:"startTime"`
	EndTime         time.Time  `json:"endTime"`
	CreatedBy       string     `json:"createdBy"`
	CreatedAt       time.Time  `json:"createdAt"`
	Questions       []Question `json:"questions"`
}

// Duration is the per-student time limit.
func (q Quiz) Duration() time.Duration {
	return time.Duration(q.DurationMinutes) * time.Minute
}

// WindowOpen reports whether the quiz admits new attempts at the given time.
// The window is half-open: [StartTime, EndTime).
func (q Quiz) WindowOpen(now time.Time) bool {
	return !now.Before(q.StartTime) && now.Before(q.EndTime)
}

// Attempt is one student's single authorized try at one quiz. The deadline is
// fixed at admission and is the sole authority for the countdown.
type Attempt struct {
	ID            string         `json:"id"`
	QuizID        string         `json:"quizId"`
	StudentID     string         `json:"studentId"`
	Status        AttemptStatus  `json:"status"`
	StartedAt     time.Time      `json:"startedAt"`
	Deadline      time.Time      `json:"deadline"`
	SubmittedAt   *time.Time     `json:"submittedAt,omitempty"`
	MarksObtained *int           `json:"marksObtained,omitempty"`
	TotalMarks    int            `json:"totalMarks"`
	AutoSubmitted bool           `json:"autoSubmitted"`
	Answers       map[string]int `json:"answers,omitempty"` // questionID -> chosen option, Unanswered if skipped
}

// RemainingSeconds computes the countdown from wall-clock time, floored at 0.
func (a Attempt) RemainingSeconds(now time.Time) int {
	if a.Status == AttemptCompleted {
		return 0
	}
	left := a.Deadline.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(left / time.Second)
}

// Expired reports whether the attempt's deadline has passed.
func (a Attempt) Expired(now time.Time) bool {
	return now.After(a.Deadline)
}

// GradeResult is the outcome of grading one attempt.
type GradeResult struct {
	MarksObtained int `json:"marksObtained"`
	TotalMarks    int `json:"totalMarks"`
}

// RankedResult is one row of the admin results view.
type RankedResult struct {
	Rank          int        `json:"rank"`
	StudentID     string     `json:"studentId"`
	StudentName   string     `json:"studentName"`
	MarksObtained int        `json:"marksObtained"`
	TotalMarks    int        `json:"totalMarks"`
	SubmittedAt   *time.Time `json:"submittedAt,omitempty"`
	AutoSubmitted bool       `json:"autoSubmitted"`
}

// ResultStats summarizes completed attempts for a quiz.
type ResultStats struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
	Max     int     `json:"max"`
	Min     int     `json:"min"`
}

// QuizListing is one entry of the per-section quiz list shown to a student.
type QuizListing struct {
	Quiz          Quiz          `json:"quiz"`
	QuestionCount int           `json:"questionCount"`
	TotalMarks    int           `json:"totalMarks"`
	AttemptStatus AttemptStatus `json:"attemptStatus"`
}
