package http

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"campus-assessment-service/internal/app"
	"campus-assessment-service/internal/domain"
)

// TimerHandler streams the server-authoritative countdown for one attempt.
// The client may decrement a local copy between ticks but every pushed
// remaining_seconds overrides it. When the deadline passes the server
// finalizes the attempt itself and emits a terminal completed event, so the
// attempt locks even if the client process dies mid-session.
type TimerHandler struct {
	attempts *app.AttemptService
	upgrader websocket.Upgrader
	interval time.Duration
}

func NewTimerHandler(attempts *app.AttemptService) *TimerHandler {
	return &TimerHandler{
		attempts: attempts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		interval: time.Second,
	}
}

type tickMessage struct {
	Type             string `json:"type"`
	RemainingSeconds int    `json:"remainingSeconds"`
}

type completedMessage struct {
	Type          string `json:"type"`
	MarksObtained int    `json:"marksObtained"`
	TotalMarks    int    `json:"totalMarks"`
	AutoSubmitted bool   `json:"autoSubmitted"`
}

func (h *TimerHandler) Serve(w http.ResponseWriter, r *http.Request, identity Identity) {
	attemptID := r.URL.Query().Get("attemptId")
	if attemptID == "" {
		http.Error(w, "missing attemptId", http.StatusBadRequest)
		return
	}

	attempt, remaining, err := h.attempts.Status(r.Context(), attemptID)
	if err != nil {
		writeError(w, err)
		return
	}
	if attempt.StudentID != identity.StudentID {
		writeError(w, domain.ErrAttemptNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Reader only watches for the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if h.push(conn, attempt, remaining) {
		return
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
			attempt, remaining, err = h.attempts.Status(r.Context(), attemptID)
			if err != nil {
				log.Printf("timer status: %v", err)
				return
			}
			if h.push(conn, attempt, remaining) {
				return
			}
		}
	}
}

// push sends one update and reports whether the stream is finished.
func (h *TimerHandler) push(conn *websocket.Conn, attempt domain.Attempt, remaining int) bool {
	if attempt.Status == domain.AttemptCompleted {
		msg := completedMessage{
			Type:          "completed",
			TotalMarks:    attempt.TotalMarks,
			AutoSubmitted: attempt.AutoSubmitted,
		}
		if attempt.MarksObtained != nil {
			msg.MarksObtained = *attempt.MarksObtained
		}
		_ = conn.WriteJSON(msg)
		return true
	}
	if err := conn.WriteJSON(tickMessage{Type: "tick", RemainingSeconds: remaining}); err != nil {
		return true
	}
	return false
}
