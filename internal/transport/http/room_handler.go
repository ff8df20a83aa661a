package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"quizroom-service/internal/app"
	"quizroom-service/internal/domain"
)

// RoomHandler serves the host-side REST surface: room creation before the
// websocket attaches, and per-session result export afterwards.
type RoomHandler struct {
	rooms   *app.RoomService
	answers *app.AnswerService
}

func NewRoomHandler(rooms *app.RoomService, answers *app.AnswerService) *RoomHandler {
	return &RoomHandler{rooms: rooms, answers: answers}
}

type createRoomRequest struct {
	TeacherID             string             `json:"teacherId"`
	QuizID                string             `json:"quizId"`
	ClassName             string             `json:"className"`
	Grade                 string             `json:"grade"`
	Notes                 string             `json:"notes"`
	ControlMode           domain.ControlMode `json:"controlMode"`
	TimeLimitSeconds      int                `json:"timeLimitSeconds"`
	ShowResultsToStudents bool               `json:"showResultsToStudents"`
}

// CreateRoom handles POST /rooms.
func (h *RoomHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	room, err := h.rooms.CreateRoom(r.Context(), app.CreateRoomParams{
		TeacherID:             req.TeacherID,
		QuizID:                req.QuizID,
		ClassName:             req.ClassName,
		Grade:                 req.Grade,
		Notes:                 req.Notes,
		ControlMode:           req.ControlMode,
		TimeLimitSeconds:      req.TimeLimitSeconds,
		ShowResultsToStudents: req.ShowResultsToStudents,
	})
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrQuizNotFound):
		http.Error(w, "quiz not found", http.StatusNotFound)
		return
	case errors.Is(err, domain.ErrCodeExhausted):
		http.Error(w, "could not allocate a join code", http.StatusServiceUnavailable)
		return
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(room); err != nil {
		log.Printf("encode room: %v", err)
	}
}

type exportResponse struct {
	Room     domain.Room     `json:"room"`
	Session  int             `json:"session"`
	Sessions []int           `json:"sessions"`
	Rows     []app.ExportRow `json:"rows"`
}

// Export handles GET /rooms/export?roomId=...&session=N. With no session it
// exports the room's current one. Sessions lists every session with answers so
// the client can offer a picker.
func (h *RoomHandler) Export(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	roomID := r.URL.Query().Get("roomId")
	if roomID == "" {
		http.Error(w, "missing roomId", http.StatusBadRequest)
		return
	}
	room, err := h.rooms.Room(r.Context(), roomID)
	if errors.Is(err, domain.ErrRoomNotFound) {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	session := room.SessionNumber
	if raw := r.URL.Query().Get("session"); raw != "" {
		session, err = strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "invalid session", http.StatusBadRequest)
			return
		}
	}

	participants, err := h.rooms.Participants(r.Context(), room.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	answers, err := h.answers.AllAnswers(r.Context(), room.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	quiz, err := h.rooms.SessionSnapshot(r.Context(), room, session)
	if err != nil {
		// export still works without question text
		quiz = domain.Quiz{}
	}

	resp := exportResponse{
		Room:     room,
		Session:  session,
		Sessions: app.SessionNumbers(answers),
		Rows:     app.SessionExport(quiz, participants, answers, session),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("encode export: %v", err)
	}
}
