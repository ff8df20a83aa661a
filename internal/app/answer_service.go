package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"quizroom-service/internal/domain"
)

// AnswerService implements the submission protocol: grade, score, and persist
// exactly one answer per participant per question per session. Idempotency is
// delegated to the store's uniqueness constraint rather than any in-process
// lock, so retried network requests resolve safely.
type AnswerService struct {
	rooms        RoomStore
	participants ParticipantStore
	answers      AnswerStore
	snapshots    *QuizSnapshots
	bus          Bus
	now          func() time.Time
}

func NewAnswerService(rooms RoomStore, participants ParticipantStore, answers AnswerStore, snapshots *QuizSnapshots, bus Bus) *AnswerService {
	return &AnswerService{
		rooms:        rooms,
		participants: participants,
		answers:      answers,
		snapshots:    snapshots,
		bus:          bus,
		now:          time.Now,
	}
}

// SubmitParams is one participant's response to one question. QuestionIndex
// and SessionNumber are the values the client believed it was answering; the
// server deliberately does not re-check them against the room's current
// pointer, so an in-flight submission that crosses a teacher advance is still
// recorded against the right question.
type SubmitParams struct {
	RoomID        string
	ParticipantID string
	QuestionIndex int
	SessionNumber int
	Payload       domain.AnswerPayload
	ElapsedMs     int
}

// SubmitResult reports the grading outcome, revealing the correct answer for
// client-side feedback.
type SubmitResult struct {
	Answer          domain.Answer `json:"answer"`
	CorrectOptionID string        `json:"correctOptionId,omitempty"`
	CorrectAnswer   string        `json:"correctAnswer,omitempty"`
}

// Submit grades and appends one answer. A second submission for the same slot
// returns domain.ErrAlreadyAnswered and leaves the original row untouched.
func (s *AnswerService) Submit(ctx context.Context, params SubmitParams) (SubmitResult, error) {
	room, err := s.rooms.GetRoom(ctx, params.RoomID)
	if err != nil {
		return SubmitResult{}, err
	}
	if room.Status != domain.RoomActive {
		return SubmitResult{}, domain.ErrRoomNotActive
	}

	participant, err := s.participants.GetParticipant(ctx, params.ParticipantID)
	if err != nil {
		return SubmitResult{}, err
	}
	if participant.RoomID != room.ID || !participant.IsActive {
		return SubmitResult{}, domain.ErrParticipantNotFound
	}

	quiz, err := s.snapshots.Get(ctx, room.QuizID, room.ID, params.SessionNumber)
	if err != nil {
		return SubmitResult{}, err
	}
	if params.QuestionIndex < 0 || params.QuestionIndex >= len(quiz.Questions) {
		return SubmitResult{}, domain.ErrQuestionNotFound
	}
	question := quiz.Questions[params.QuestionIndex]

	correct := question.Grade(params.Payload)
	limitMs := question.EffectiveTimeLimit(room.TimeLimitSeconds) * 1000
	elapsed := params.ElapsedMs
	if elapsed < 0 {
		elapsed = 0
	}

	answer := domain.Answer{
		ID:            uuid.NewString(),
		RoomID:        room.ID,
		ParticipantID: participant.ID,
		QuestionIndex: params.QuestionIndex,
		SessionNumber: params.SessionNumber,
		Payload:       params.Payload,
		IsCorrect:     correct,
		TimeTakenMs:   elapsed,
		Score:         domain.Score(correct, elapsed, limitMs),
		AnsweredAt:    s.now(),
	}
	if err := s.answers.InsertAnswer(ctx, &answer); err != nil {
		return SubmitResult{}, err
	}

	// best-effort; the write above is the definitive success signal
	_ = s.bus.Publish(ctx, room.ID, Event{Kind: EventAnswers, RoomID: room.ID})

	result := SubmitResult{Answer: answer}
	switch question.Type {
	case domain.QuestionMultipleChoice:
		for _, opt := range question.Options {
			if opt.IsCorrect {
				result.CorrectOptionID = opt.ID
				break
			}
		}
	case domain.QuestionTextInput:
		result.CorrectAnswer = question.CorrectAnswer
	}
	return result, nil
}

// SessionAnswers lists one session's slice of the answer log.
func (s *AnswerService) SessionAnswers(ctx context.Context, roomID string, session int) ([]domain.Answer, error) {
	return s.answers.ListSessionAnswers(ctx, roomID, session)
}

// AllAnswers lists the room's full answer history across sessions.
func (s *AnswerService) AllAnswers(ctx context.Context, roomID string) ([]domain.Answer, error) {
	return s.answers.ListAnswers(ctx, roomID)
}
