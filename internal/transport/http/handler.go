package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"campus-assessment-service/internal/app"
	"campus-assessment-service/internal/domain"
)

// Handler exposes the assessment use cases over REST plus one websocket for
// the countdown resync channel.
type Handler struct {
	quizzes  *app.QuizService
	attempts *app.AttemptService
	results  *app.ResultsService
	timer    *TimerHandler
	identity *IdentityMiddleware
	validate *validator.Validate
}

func NewHandler(quizzes *app.QuizService, attempts *app.AttemptService, results *app.ResultsService, identity *IdentityMiddleware) *Handler {
	return &Handler{
		quizzes:  quizzes,
		attempts: attempts,
		results:  results,
		timer:    NewTimerHandler(attempts),
		identity: identity,
		validate: validator.New(),
	}
}

// Routes wires every endpoint onto a method-aware mux, with the identity
// middleware around the whole surface.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("POST /api/quizzes", requireAdmin(h.createQuiz))
	mux.HandleFunc("GET /api/quizzes", requireAdmin(h.listQuizzes))
	mux.HandleFunc("GET /api/quizzes/{id}", requireAdmin(h.getQuiz))
	mux.HandleFunc("PUT /api/quizzes/{id}/questions", requireAdmin(h.updateQuestions))
	mux.HandleFunc("DELETE /api/quizzes/{id}", requireAdmin(h.deleteQuiz))
	mux.HandleFunc("GET /api/quizzes/{id}/results", requireAdmin(h.adminResults))

	mux.HandleFunc("GET /api/sections/{id}/quizzes", requireStudent(h.listSectionQuizzes))
	mux.HandleFunc("GET /api/quizzes/{id}/attempt", requireStudent(h.bootstrapAttempt))
	mux.HandleFunc("POST /api/quizzes/{id}/submit", requireStudent(h.submit))
	mux.HandleFunc("GET /api/quizzes/{id}/my-result", requireStudent(h.myResult))
	mux.HandleFunc("GET /ws/attempt", requireStudent(h.timer.Serve))

	return h.identity.Wrap(mux)
}

type questionPayload struct {
	Text          string `json:"text" validate:"required"`
	OptionA       string `json:"optionA" validate:"required"`
	OptionB       string `json:"optionB" validate:"required"`
	OptionC       string `json:"optionC" validate:"required"`
	OptionD       string `json:"optionD" validate:"required"`
	CorrectOption int    `json:"correctOption" validate:"required,min=1,max=4"`
}

type createQuizRequest struct {
	Title           string            `json:"title" validate:"required"`
	SectionID       string            `json:"sectionId" validate:"required"`
	DurationMinutes int               `json:"durationMinutes" validate:"required,gt=0"`
	StartTime       time.Time         `json:"startTime" validate:"required"`
	EndTime         time.Time         `json:"endTime" validate:"required"`
	Questions       []questionPayload `json:"questions" validate:"required,min=1,dive"`
}

type updateQuestionsRequest struct {
	Questions []questionPayload `json:"questions" validate:"required,min=1,dive"`
}

type submitRequest struct {
	AttemptID  string         `json:"attemptId" validate:"required"`
	Answers    map[string]int `json:"answers"`
	AutoSubmit bool           `json:"autoSubmit"`
}

// quizMetaView is the student-safe projection of a quiz: no question content,
// no answer key.
type quizMetaView struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	SectionID       string    `json:"sectionId"`
	DurationMinutes int       `json:"durationMinutes"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
}

// questionView strips the correct option before a question reaches a student.
type questionView struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	OptionA string `json:"optionA"`
	OptionB string `json:"optionB"`
	OptionC string `json:"optionC"`
	OptionD string `json:"optionD"`
}

type listingView struct {
	Quiz          quizMetaView         `json:"quiz"`
	QuestionCount int                  `json:"questionCount"`
	TotalMarks    int                  `json:"totalMarks"`
	AttemptStatus domain.AttemptStatus `json:"attemptStatus"`
}

type bootstrapResponse struct {
	Quiz             quizMetaView         `json:"quiz"`
	Questions        []questionView       `json:"questions"`
	AttemptID        string               `json:"attemptId"`
	Status           domain.AttemptStatus `json:"status"`
	RemainingSeconds int                  `json:"remainingSeconds"`
}

type submitResponse struct {
	AttemptID     string     `json:"attemptId"`
	MarksObtained int        `json:"marksObtained"`
	TotalMarks    int        `json:"totalMarks"`
	AutoSubmitted bool       `json:"autoSubmitted"`
	SubmittedAt   *time.Time `json:"submittedAt,omitempty"`
}

func (h *Handler) createQuiz(w http.ResponseWriter, r *http.Request, identity Identity) {
	var req createQuizRequest
	if !h.decode(w, r, &req) {
		return
	}

	draft := app.QuizDraft{
		Title:           req.Title,
		SectionID:       req.SectionID,
		DurationMinutes: req.DurationMinutes,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		CreatedBy:       identity.AdminID,
		Questions:       toDrafts(req.Questions),
	}
	quiz, err := h.quizzes.Create(r.Context(), draft)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, quiz)
}

func (h *Handler) listQuizzes(w http.ResponseWriter, r *http.Request, _ Identity) {
	rows, err := h.quizzes.AdminList(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"quizzes": rows})
}

func (h *Handler) getQuiz(w http.ResponseWriter, r *http.Request, _ Identity) {
	quiz, err := h.quizzes.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (h *Handler) updateQuestions(w http.ResponseWriter, r *http.Request, _ Identity) {
	var req updateQuestionsRequest
	if !h.decode(w, r, &req) {
		return
	}
	quiz, err := h.quizzes.UpdateQuestions(r.Context(), r.PathValue("id"), toDrafts(req.Questions))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (h *Handler) deleteQuiz(w http.ResponseWriter, r *http.Request, _ Identity) {
	if err := h.quizzes.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) adminResults(w http.ResponseWriter, r *http.Request, _ Identity) {
	report, err := h.results.AdminResults(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) listSectionQuizzes(w http.ResponseWriter, r *http.Request, identity Identity) {
	sectionID := r.PathValue("id")
	if identity.SectionID != "" && identity.SectionID != sectionID {
		http.Error(w, "section mismatch", http.StatusForbidden)
		return
	}
	listings, err := h.quizzes.ListForSection(r.Context(), sectionID, identity.StudentID)
	if err != nil {
		writeError(w, err)
		return
	}

	views := make([]listingView, 0, len(listings))
	for _, l := range listings {
		views = append(views, listingView{
			Quiz:          toMetaView(l.Quiz),
			QuestionCount: l.QuestionCount,
			TotalMarks:    l.TotalMarks,
			AttemptStatus: l.AttemptStatus,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"quizzes": views})
}

func (h *Handler) bootstrapAttempt(w http.ResponseWriter, r *http.Request, identity Identity) {
	boot, err := h.attempts.BootstrapAttempt(r.Context(), r.PathValue("id"), identity.StudentID)
	if err != nil {
		writeError(w, err)
		return
	}

	questions := make([]questionView, 0, len(boot.Quiz.Questions))
	for _, q := range boot.Quiz.Questions {
		questions = append(questions, questionView{
			ID: q.ID, Text: q.Text,
			OptionA: q.OptionA, OptionB: q.OptionB, OptionC: q.OptionC, OptionD: q.OptionD,
		})
	}
	writeJSON(w, http.StatusOK, bootstrapResponse{
		Quiz:             toMetaView(boot.Quiz),
		Questions:        questions,
		AttemptID:        boot.Attempt.ID,
		Status:           boot.Attempt.Status,
		RemainingSeconds: boot.RemainingSeconds,
	})
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request, identity Identity) {
	var req submitRequest
	if !h.decode(w, r, &req) {
		return
	}

	// Ownership check on a plain read: a finalizing read here would absorb a
	// late manual submit before its answers could be graded.
	attempt, err := h.attempts.Attempt(r.Context(), req.AttemptID)
	if err != nil {
		writeError(w, err)
		return
	}
	if attempt.StudentID != identity.StudentID || attempt.QuizID != r.PathValue("id") {
		writeError(w, domain.ErrAttemptNotFound)
		return
	}

	graded, err := h.attempts.Submit(r.Context(), req.AttemptID, req.Answers, req.AutoSubmit)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := submitResponse{
		AttemptID:     graded.ID,
		TotalMarks:    graded.TotalMarks,
		AutoSubmitted: graded.AutoSubmitted,
		SubmittedAt:   graded.SubmittedAt,
	}
	if graded.MarksObtained != nil {
		resp.MarksObtained = *graded.MarksObtained
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) myResult(w http.ResponseWriter, r *http.Request, identity Identity) {
	result, err := h.results.StudentResult(r.Context(), r.PathValue("id"), identity.StudentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return false
	}
	return true
}

func toDrafts(payloads []questionPayload) []app.QuestionDraft {
	drafts := make([]app.QuestionDraft, 0, len(payloads))
	for _, p := range payloads {
		drafts = append(drafts, app.QuestionDraft{
			Text:          p.Text,
			OptionA:       p.OptionA,
			OptionB:       p.OptionB,
			OptionC:       p.OptionC,
			OptionD:       p.OptionD,
			CorrectOption: p.CorrectOption,
		})
	}
	return drafts
}

func toMetaView(q domain.Quiz) quizMetaView {
	return quizMetaView{
		ID:              q.ID,
		Title:           q.Title,
		SectionID:       q.SectionID,
		DurationMinutes: q.DurationMinutes,
		StartTime:       q.StartTime,
		EndTime:         q.EndTime,
	}
}

type errorResponse struct {
	Error  string `json:"error"`
	Locked bool   `json:"locked,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	resp := errorResponse{Error: err.Error()}

	switch {
	case domain.IsValidation(err):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrAttemptNotFound),
		errors.Is(err, domain.ErrSectionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyCompleted):
		status = http.StatusForbidden
		resp.Locked = true
	case errors.Is(err, domain.ErrWindowNotOpen),
		errors.Is(err, domain.ErrWindowClosed),
		errors.Is(err, domain.ErrResultsNotReady):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrEditConflict),
		errors.Is(err, domain.ErrAttemptExists):
		status = http.StatusConflict
	default:
		log.Printf("internal error: %v", err)
		resp.Error = "internal error"
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write response: %v", err)
	}
}
