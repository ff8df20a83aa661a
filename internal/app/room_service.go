package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"quizroom-service/internal/domain"
)

const codeAllocationRetries = 5

// RoomService owns the room lifecycle and the membership protocol. All state
// transitions are teacher-initiated; students only join, update their avatar,
// and submit answers (see AnswerService).
type RoomService struct {
	rooms        RoomStore
	participants ParticipantStore
	answers      AnswerStore
	snapshots    *QuizSnapshots
	bus          Bus
	now          func() time.Time
	newCode      func() string
}

func NewRoomService(rooms RoomStore, participants ParticipantStore, answers AnswerStore, snapshots *QuizSnapshots, bus Bus) *RoomService {
	return &RoomService{
		rooms:        rooms,
		participants: participants,
		answers:      answers,
		snapshots:    snapshots,
		bus:          bus,
		now:          time.Now,
		// package-level rand: CreateRoom is called from concurrent requests
		newCode: func() string {
			return fmt.Sprintf("%06d", 100000+rand.Intn(900000))
		},
	}
}

// CreateRoomParams carries the teacher's room setup choices.
type CreateRoomParams struct {
	TeacherID             string
	QuizID                string
	ClassName             string
	Grade                 string
	Notes                 string
	ControlMode           domain.ControlMode
	TimeLimitSeconds      int
	ShowResultsToStudents bool
}

// CreateRoom allocates a room with a fresh 6-digit join code, retrying a
// bounded number of times on code collision.
func (s *RoomService) CreateRoom(ctx context.Context, params CreateRoomParams) (domain.Room, error) {
	quiz, err := s.snapshots.loader.LoadQuiz(ctx, params.QuizID)
	if err != nil {
		return domain.Room{}, err
	}
	if err := domain.ValidateQuiz(quiz); err != nil {
		return domain.Room{}, err
	}

	mode := params.ControlMode
	if mode == "" {
		mode = domain.ControlAuto
	}
	limit := params.TimeLimitSeconds
	if limit == 0 {
		limit = domain.DefaultTimeLimitSeconds
	}

	for attempt := 0; attempt < codeAllocationRetries; attempt++ {
		room := domain.Room{
			ID:                    uuid.NewString(),
			TeacherID:             params.TeacherID,
			QuizID:                params.QuizID,
			Code:                  s.newCode(),
			Status:                domain.RoomWaiting,
			ClassName:             params.ClassName,
			Grade:                 params.Grade,
			Notes:                 params.Notes,
			ControlMode:           mode,
			TimeLimitSeconds:      limit,
			ShowResultsToStudents: params.ShowResultsToStudents,
			CurrentQuestionIndex:  0,
			SessionNumber:         1,
			CreatedAt:             s.now(),
		}
		err := s.rooms.CreateRoom(ctx, &room)
		if err == nil {
			return room, nil
		}
		if !errors.Is(err, domain.ErrCodeTaken) {
			return domain.Room{}, err
		}
	}
	return domain.Room{}, domain.ErrCodeExhausted
}

// Room fetches the current room row.
func (s *RoomService) Room(ctx context.Context, roomID string) (domain.Room, error) {
	return s.rooms.GetRoom(ctx, roomID)
}

// FindJoinableRoom resolves a join code to a room that is open for joining.
// Completed rooms are unavailable; the student returns to code entry.
func (s *RoomService) FindJoinableRoom(ctx context.Context, code string) (domain.Room, error) {
	room, err := s.rooms.GetRoomByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			return domain.Room{}, domain.ErrRoomUnavailable
		}
		return domain.Room{}, err
	}
	if room.Status == domain.RoomCompleted {
		return domain.Room{}, domain.ErrRoomUnavailable
	}
	return room, nil
}

// Join adds a student to a room, or re-associates a rejoining client: the
// durable session token matches at most one active participant, and a match
// reuses that row so a reconnect keeps its answers and score.
func (s *RoomService) Join(ctx context.Context, code, name, sessionToken string, avatar *domain.Avatar) (domain.Room, domain.Participant, error) {
	if err := domain.ValidateStudentName(name); err != nil {
		return domain.Room{}, domain.Participant{}, err
	}
	room, err := s.FindJoinableRoom(ctx, code)
	if err != nil {
		return domain.Room{}, domain.Participant{}, err
	}

	if existing, err := s.participants.FindActiveBySessionToken(ctx, room.ID, sessionToken); err == nil {
		return room, existing, nil
	} else if !errors.Is(err, domain.ErrParticipantNotFound) {
		return domain.Room{}, domain.Participant{}, err
	}

	participant := domain.Participant{
		ID:           uuid.NewString(),
		RoomID:       room.ID,
		StudentName:  strings.TrimSpace(name),
		SessionToken: sessionToken,
		IsActive:     true,
		Avatar:       avatar,
		JoinedAt:     s.now(),
	}
	if err := s.participants.CreateParticipant(ctx, &participant); err != nil {
		return domain.Room{}, domain.Participant{}, err
	}
	s.publish(ctx, room.ID, Event{Kind: EventParticipants, RoomID: room.ID})
	return room, participant, nil
}

// ParticipantByID fetches one membership row.
func (s *RoomService) ParticipantByID(ctx context.Context, participantID string) (domain.Participant, error) {
	return s.participants.GetParticipant(ctx, participantID)
}

// Participants lists every membership row of the room, active or not.
func (s *RoomService) Participants(ctx context.Context, roomID string) ([]domain.Participant, error) {
	return s.participants.ListParticipants(ctx, roomID)
}

// Start begins the session. Valid only from waiting, and only with an
// audience. The quiz's question list is snapshotted here; later quiz edits do
// not reach this session.
func (s *RoomService) Start(ctx context.Context, roomID string) (domain.Room, error) {
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return domain.Room{}, err
	}
	if room.Status != domain.RoomWaiting {
		return domain.Room{}, fmt.Errorf("start from %s: %w", room.Status, domain.ErrInvalidTransition)
	}
	active, err := s.activeCount(ctx, roomID)
	if err != nil {
		return domain.Room{}, err
	}
	if active == 0 {
		return domain.Room{}, domain.ErrNoParticipants
	}
	if _, err := s.snapshots.Prime(ctx, room.QuizID, room.ID, room.SessionNumber); err != nil {
		return domain.Room{}, err
	}

	now := s.now()
	room.Status = domain.RoomActive
	room.CurrentQuestionIndex = 0
	room.StartedAt = &now
	room.EndedAt = nil
	if err := s.rooms.UpdateRoom(ctx, &room); err != nil {
		return domain.Room{}, err
	}
	log.Printf("room %s started session %d with %d participants", room.Code, room.SessionNumber, active)
	s.publish(ctx, room.ID, Event{Kind: EventRoom, RoomID: room.ID})
	return room, nil
}

// Advance moves the shared question pointer forward. Advancing past the last
// question is equivalent to End. In auto control mode the shared pointer is
// not the one students follow (their clients advance locally), but the
// operation stays valid for the presenter's own view.
func (s *RoomService) Advance(ctx context.Context, roomID string) (domain.Room, error) {
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return domain.Room{}, err
	}
	if room.Status != domain.RoomActive {
		return domain.Room{}, fmt.Errorf("advance from %s: %w", room.Status, domain.ErrInvalidTransition)
	}
	quiz, err := s.snapshots.Get(ctx, room.QuizID, room.ID, room.SessionNumber)
	if err != nil {
		return domain.Room{}, err
	}
	next := room.CurrentQuestionIndex + 1
	if next >= len(quiz.Questions) {
		return s.End(ctx, roomID)
	}
	room.CurrentQuestionIndex = next
	if err := s.rooms.UpdateRoom(ctx, &room); err != nil {
		return domain.Room{}, err
	}
	s.publish(ctx, room.ID, Event{Kind: EventRoom, RoomID: room.ID})
	return room, nil
}

// End completes the session. Terminal until Restart.
func (s *RoomService) End(ctx context.Context, roomID string) (domain.Room, error) {
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return domain.Room{}, err
	}
	if room.Status != domain.RoomActive {
		return domain.Room{}, fmt.Errorf("end from %s: %w", room.Status, domain.ErrInvalidTransition)
	}
	now := s.now()
	room.Status = domain.RoomCompleted
	room.EndedAt = &now
	if err := s.rooms.UpdateRoom(ctx, &room); err != nil {
		return domain.Room{}, err
	}
	log.Printf("room %s completed session %d", room.Code, room.SessionNumber)
	s.publish(ctx, room.ID, Event{Kind: EventRoom, RoomID: room.ID})
	return room, nil
}

// Restart opens a new session epoch: participants are deactivated (not
// deleted), the session number increments, and the room returns to waiting.
// The prior session's answers stay untouched as history.
func (s *RoomService) Restart(ctx context.Context, roomID string) (domain.Room, error) {
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return domain.Room{}, err
	}
	if room.Status != domain.RoomCompleted {
		return domain.Room{}, fmt.Errorf("restart from %s: %w", room.Status, domain.ErrInvalidTransition)
	}
	if err := s.participants.DeactivateParticipants(ctx, roomID); err != nil {
		return domain.Room{}, err
	}
	room.Status = domain.RoomWaiting
	room.CurrentQuestionIndex = 0
	room.SessionNumber++
	room.StartedAt = nil
	room.EndedAt = nil
	if err := s.rooms.UpdateRoom(ctx, &room); err != nil {
		return domain.Room{}, err
	}
	log.Printf("room %s restarted into session %d", room.Code, room.SessionNumber)
	s.publish(ctx, room.ID, Event{Kind: EventParticipants, RoomID: room.ID})
	s.publish(ctx, room.ID, Event{Kind: EventRoom, RoomID: room.ID})
	return room, nil
}

// Kick deactivates one participant. The kicked client notices on the next
// participants event and returns to the join screen; rejoining needs a fresh
// join (the token only matches active rows).
func (s *RoomService) Kick(ctx context.Context, roomID, participantID string) error {
	p, err := s.participants.GetParticipant(ctx, participantID)
	if err != nil {
		return err
	}
	if p.RoomID != roomID {
		return domain.ErrParticipantNotFound
	}
	if err := s.participants.SetParticipantActive(ctx, participantID, false); err != nil {
		return err
	}
	s.publish(ctx, roomID, Event{Kind: EventParticipants, RoomID: roomID})
	return nil
}

// UpdateAvatar stores a participant's cosmetic avatar choice.
func (s *RoomService) UpdateAvatar(ctx context.Context, roomID, participantID string, avatar domain.Avatar) error {
	if err := s.participants.UpdateParticipantAvatar(ctx, participantID, avatar); err != nil {
		return err
	}
	s.publish(ctx, roomID, Event{Kind: EventParticipants, RoomID: roomID})
	return nil
}

// React broadcasts an ephemeral reaction; nothing is stored and delivery is
// best-effort.
func (s *RoomService) React(ctx context.Context, roomID string, reaction domain.Reaction) error {
	return s.bus.Publish(ctx, roomID, Event{Kind: EventReaction, RoomID: roomID, Reaction: &reaction})
}

// Subscribe opens the room's change-event stream.
func (s *RoomService) Subscribe(ctx context.Context, roomID string) (<-chan Event, func(), error) {
	return s.bus.Subscribe(ctx, roomID)
}

// Snapshot exposes the current session's frozen quiz for views and grading.
func (s *RoomService) Snapshot(ctx context.Context, room domain.Room) (domain.Quiz, error) {
	return s.snapshots.Get(ctx, room.QuizID, room.ID, room.SessionNumber)
}

// SessionSnapshot exposes the quiz a past session was played against, so
// historical views count questions as that session saw them, not as the quiz
// looks today.
func (s *RoomService) SessionSnapshot(ctx context.Context, room domain.Room, session int) (domain.Quiz, error) {
	return s.snapshots.Get(ctx, room.QuizID, room.ID, session)
}

func (s *RoomService) activeCount(ctx context.Context, roomID string) (int, error) {
	participants, err := s.participants.ListParticipants(ctx, roomID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range participants {
		if p.IsActive {
			n++
		}
	}
	return n, nil
}

func (s *RoomService) publish(ctx context.Context, roomID string, ev Event) {
	if err := s.bus.Publish(ctx, roomID, ev); err != nil {
		log.Printf("publish %s event for room %s: %v", ev.Kind, roomID, err)
	}
}
