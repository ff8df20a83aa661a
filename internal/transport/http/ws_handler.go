package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"quizroom-service/internal/app"
	"quizroom-service/internal/domain"
)

// WSHandler upgrades connections and speaks the room protocol. Two roles share
// one endpoint: players join with a code and name, hosts attach to a room they
// control by id.
type WSHandler struct {
	rooms    *app.RoomService
	answers  *app.AnswerService
	upgrader websocket.Upgrader
}

func NewWSHandler(rooms *app.RoomService, answers *app.AnswerService) *WSHandler {
	return &WSHandler{
		rooms:   rooms,
		answers: answers,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type joinedPayload struct {
	Room         domain.Room        `json:"room"`
	Participant  domain.Participant `json:"participant"`
	SessionToken string             `json:"sessionToken"`
}

type quizPayload struct {
	Title     string            `json:"title"`
	Questions []domain.Question `json:"questions"`
}

type answerInbound struct {
	QuestionIndex int                  `json:"questionIndex"`
	SessionNumber int                  `json:"sessionNumber"`
	Answer        domain.AnswerPayload `json:"answer"`
	ElapsedMs     int                  `json:"elapsedMs"`
}

type reactionInbound struct {
	Emoji string `json:"emoji"`
}

type kickInbound struct {
	ParticipantID string `json:"participantId"`
}

type resultsPayload struct {
	Session int             `json:"session"`
	Rows    []app.ResultRow `json:"rows"`
}

// wsSession is one live connection's state.
type wsSession struct {
	handler *WSHandler
	roomID  string
	isHost  bool

	// player only
	participantID string
	token         string

	send chan outboundMessage[any]
}

// ServeWS upgrades the request and runs the connection until the peer
// disconnects or, for players, until they are kicked.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	isHost := query.Get("roomId") != ""
	if !isHost && query.Get("code") == "" {
		http.Error(w, "missing code or roomId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	sess := &wsSession{
		handler: h,
		isHost:  isHost,
		send:    make(chan outboundMessage[any], 16),
	}

	var room domain.Room
	if isHost {
		room, err = h.rooms.Room(ctx, query.Get("roomId"))
		if err != nil {
			_ = conn.WriteJSON(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
			return
		}
	} else {
		token := query.Get("token")
		if token == "" {
			token = uuid.NewString()
		}
		var avatar *domain.Avatar
		if character := query.Get("avatarCharacter"); character != "" {
			avatar = &domain.Avatar{Character: character, Accessory: query.Get("avatarAccessory")}
		}
		var participant domain.Participant
		room, participant, err = h.rooms.Join(ctx, query.Get("code"), query.Get("name"), token, avatar)
		if err != nil {
			_ = conn.WriteJSON(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
			return
		}
		sess.participantID = participant.ID
		sess.token = token
	}
	sess.roomID = room.ID

	events, cancel, err := h.rooms.Subscribe(ctx, room.ID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range sess.send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(eventsDone)
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				if !sess.handleEvent(ctx, event, closeSignals) {
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	sess.sendInitialState(ctx, room)

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		sess.handleInbound(ctx, inbound)
	}

	close(closeSignals)
	<-eventsDone
	close(sess.send)
	<-writerDone
}

func (s *wsSession) push(msgType string, payload any) bool {
	select {
	case s.send <- outboundMessage[any]{Type: msgType, Payload: payload}:
		return true
	default:
		// writer is wedged; drop rather than block the event loop
		return false
	}
}

func (s *wsSession) pushError(err error) {
	s.push("error", errorPayload{Message: err.Error()})
}

func (s *wsSession) sendInitialState(ctx context.Context, room domain.Room) {
	if s.isHost {
		s.push("room", room)
	} else if p, err := s.handler.rooms.ParticipantByID(ctx, s.participantID); err == nil {
		s.push("joined", joinedPayload{Room: room, Participant: p, SessionToken: s.token})
	}
	s.pushQuiz(ctx, room)
	s.pushParticipants(ctx)
	s.pushLeaderboard(ctx, room)
}

// pushQuiz sends the session's frozen questions: the full form to the host,
// the public form (grading material stripped) to players. Only meaningful once
// the room has started at least once.
func (s *wsSession) pushQuiz(ctx context.Context, room domain.Room) {
	if room.Status == domain.RoomWaiting && room.StartedAt == nil {
		return
	}
	quiz, err := s.handler.rooms.Snapshot(ctx, room)
	if err != nil {
		return
	}
	payload := quizPayload{Title: quiz.Title, Questions: quiz.Questions}
	if !s.isHost {
		public := make([]domain.Question, len(quiz.Questions))
		for i, q := range quiz.Questions {
			public[i] = q.Public()
		}
		payload.Questions = public
	}
	s.push("quiz", payload)
}

func (s *wsSession) pushParticipants(ctx context.Context) {
	participants, err := s.handler.rooms.Participants(ctx, s.roomID)
	if err != nil {
		return
	}
	s.push("participants", participants)
}

// pushLeaderboard recomputes standings from the answer log. Hosts always see
// it; players only after completion, and only if the room opted in.
func (s *wsSession) pushLeaderboard(ctx context.Context, room domain.Room) {
	if !s.isHost && !(room.Status == domain.RoomCompleted && room.ShowResultsToStudents) {
		return
	}
	participants, err := s.handler.rooms.Participants(ctx, room.ID)
	if err != nil {
		return
	}
	answers, err := s.handler.answers.SessionAnswers(ctx, room.ID, room.SessionNumber)
	if err != nil {
		return
	}
	s.push("leaderboard", app.Standings(participants, answers, room.SessionNumber))
}

// handleEvent reacts to one bus event; events carry no state, the session
// refetches whatever the event invalidated. Returns false when the connection
// should shut down (player kicked).
func (s *wsSession) handleEvent(ctx context.Context, event app.Event, closeSignals <-chan struct{}) bool {
	switch event.Kind {
	case app.EventRoom:
		room, err := s.handler.rooms.Room(ctx, s.roomID)
		if err != nil {
			return true
		}
		s.push("room", room)
		s.pushQuiz(ctx, room)
		s.pushLeaderboard(ctx, room)
	case app.EventParticipants:
		if !s.isHost {
			p, err := s.handler.rooms.ParticipantByID(ctx, s.participantID)
			if err == nil && !p.IsActive {
				s.push("kicked", errorPayload{Message: "removed from room"})
				return false
			}
		}
		s.pushParticipants(ctx)
	case app.EventAnswers:
		room, err := s.handler.rooms.Room(ctx, s.roomID)
		if err != nil {
			return true
		}
		s.pushLeaderboard(ctx, room)
	case app.EventReaction:
		if event.Reaction != nil {
			s.push("reaction", *event.Reaction)
		}
	}
	select {
	case <-closeSignals:
		return false
	default:
	}
	return true
}

func (s *wsSession) handleInbound(ctx context.Context, inbound inboundMessage) {
	if s.isHost {
		s.handleHostInbound(ctx, inbound)
		return
	}
	switch inbound.Type {
	case "answer":
		var payload answerInbound
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			s.push("error", errorPayload{Message: "invalid answer payload"})
			return
		}
		result, err := s.handler.answers.Submit(ctx, app.SubmitParams{
			RoomID:        s.roomID,
			ParticipantID: s.participantID,
			QuestionIndex: payload.QuestionIndex,
			SessionNumber: payload.SessionNumber,
			Payload:       payload.Answer,
			ElapsedMs:     payload.ElapsedMs,
		})
		if errors.Is(err, domain.ErrAlreadyAnswered) {
			s.push("error", errorPayload{Message: "already answered"})
			return
		}
		if err != nil {
			s.pushError(err)
			return
		}
		s.push("answerResult", result)
	case "reaction":
		var payload reactionInbound
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.Emoji == "" {
			s.push("error", errorPayload{Message: "invalid reaction payload"})
			return
		}
		p, err := s.handler.rooms.ParticipantByID(ctx, s.participantID)
		sender := ""
		if err == nil {
			sender = p.StudentName
		}
		if err := s.handler.rooms.React(ctx, s.roomID, domain.Reaction{Emoji: payload.Emoji, Sender: sender}); err != nil {
			s.pushError(err)
		}
	case "avatar":
		var avatar domain.Avatar
		if err := json.Unmarshal(inbound.Payload, &avatar); err != nil {
			s.push("error", errorPayload{Message: "invalid avatar payload"})
			return
		}
		if err := s.handler.rooms.UpdateAvatar(ctx, s.roomID, s.participantID, avatar); err != nil {
			s.pushError(err)
		}
	default:
		s.push("error", errorPayload{Message: "unsupported message type"})
	}
}

func (s *wsSession) handleHostInbound(ctx context.Context, inbound inboundMessage) {
	switch inbound.Type {
	case "start":
		if _, err := s.handler.rooms.Start(ctx, s.roomID); err != nil {
			s.pushError(err)
		}
	case "advance":
		if _, err := s.handler.rooms.Advance(ctx, s.roomID); err != nil {
			s.pushError(err)
		}
	case "end":
		if _, err := s.handler.rooms.End(ctx, s.roomID); err != nil {
			s.pushError(err)
		}
	case "restart":
		if _, err := s.handler.rooms.Restart(ctx, s.roomID); err != nil {
			s.pushError(err)
		}
	case "kick":
		var payload kickInbound
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.ParticipantID == "" {
			s.push("error", errorPayload{Message: "invalid kick payload"})
			return
		}
		if err := s.handler.rooms.Kick(ctx, s.roomID, payload.ParticipantID); err != nil {
			s.pushError(err)
		}
	case "results":
		var payload struct {
			Session int `json:"session"`
		}
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			s.push("error", errorPayload{Message: "invalid results payload"})
			return
		}
		s.pushResults(ctx, payload.Session)
	case "reaction":
		var r reactionInbound
		if err := json.Unmarshal(inbound.Payload, &r); err != nil || r.Emoji == "" {
			s.push("error", errorPayload{Message: "invalid reaction payload"})
			return
		}
		if err := s.handler.rooms.React(ctx, s.roomID, domain.Reaction{Emoji: r.Emoji}); err != nil {
			s.pushError(err)
		}
	default:
		s.push("error", errorPayload{Message: "unsupported message type"})
	}
}

// pushResults sends the historical results of one past session to the host.
func (s *wsSession) pushResults(ctx context.Context, session int) {
	room, err := s.handler.rooms.Room(ctx, s.roomID)
	if err != nil {
		s.pushError(err)
		return
	}
	participants, err := s.handler.rooms.Participants(ctx, room.ID)
	if err != nil {
		s.pushError(err)
		return
	}
	answers, err := s.handler.answers.AllAnswers(ctx, room.ID)
	if err != nil {
		s.pushError(err)
		return
	}
	quiz, err := s.handler.rooms.SessionSnapshot(ctx, room, session)
	if err != nil {
		quiz, err = s.handler.rooms.Snapshot(ctx, room)
	}
	total := 0
	if err == nil {
		total = len(quiz.Questions)
	}
	s.push("results", resultsPayload{
		Session: session,
		Rows:    app.SessionResults(participants, answers, session, total),
	})
}
