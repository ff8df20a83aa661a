package app_test

import (
	"context"
	"errors"
	"testing"

	"quizroom-service/internal/app"
	"quizroom-service/internal/domain"
)

func startedRoom(t *testing.T, env *testEnv) (domain.Room, domain.Participant) {
	t.Helper()
	room := env.createRoom(t)
	p := env.join(t, room, "Ana", "tok-1")
	started, err := env.rooms.Start(context.Background(), room.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	return started, p
}

func TestSubmitGradesAndScores(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	room, ana := startedRoom(t, env)

	result, err := env.answers.Submit(ctx, app.SubmitParams{
		RoomID:        room.ID,
		ParticipantID: ana.ID,
		QuestionIndex: 0,
		SessionNumber: 1,
		Payload:       domain.AnswerPayload{SelectedOptionID: "o1"},
		ElapsedMs:     0,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !result.Answer.IsCorrect || result.Answer.Score != 1000 {
		t.Fatalf("instant correct answer should score 1000, got %+v", result.Answer)
	}
	if result.CorrectOptionID != "o1" {
		t.Fatalf("result should reveal the correct option, got %q", result.CorrectOptionID)
	}

	wrong, err := env.answers.Submit(ctx, app.SubmitParams{
		RoomID:        room.ID,
		ParticipantID: ana.ID,
		QuestionIndex: 1,
		SessionNumber: 1,
		Payload:       domain.AnswerPayload{Text: "Vienna"},
		ElapsedMs:     3000,
	})
	if err != nil {
		t.Fatalf("submit wrong: %v", err)
	}
	if wrong.Answer.IsCorrect || wrong.Answer.Score != 0 {
		t.Fatalf("incorrect answer should score 0, got %+v", wrong.Answer)
	}
	if wrong.CorrectAnswer != "Budapest" {
		t.Fatalf("result should reveal the correct answer, got %q", wrong.CorrectAnswer)
	}
}

func TestSubmitIsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	room, ana := startedRoom(t, env)

	params := app.SubmitParams{
		RoomID:        room.ID,
		ParticipantID: ana.ID,
		QuestionIndex: 0,
		SessionNumber: 1,
		Payload:       domain.AnswerPayload{SelectedOptionID: "o1"},
		ElapsedMs:     2000,
	}
	first, err := env.answers.Submit(ctx, params)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	// a retried request changes nothing, even with a different payload
	params.Payload = domain.AnswerPayload{SelectedOptionID: "o2"}
	if _, err := env.answers.Submit(ctx, params); !errors.Is(err, domain.ErrAlreadyAnswered) {
		t.Fatalf("expected ErrAlreadyAnswered, got %v", err)
	}

	answers, err := env.answers.SessionAnswers(ctx, room.ID, 1)
	if err != nil {
		t.Fatalf("session answers: %v", err)
	}
	if len(answers) != 1 || answers[0].ID != first.Answer.ID {
		t.Fatalf("log must keep exactly the first row, got %+v", answers)
	}
}

func TestSubmitRequiresActiveRoomAndParticipant(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	room := env.createRoom(t)
	ana := env.join(t, room, "Ana", "tok-1")

	params := app.SubmitParams{
		RoomID:        room.ID,
		ParticipantID: ana.ID,
		QuestionIndex: 0,
		SessionNumber: 1,
		Payload:       domain.AnswerPayload{SelectedOptionID: "o1"},
	}
	if _, err := env.answers.Submit(ctx, params); !errors.Is(err, domain.ErrRoomNotActive) {
		t.Fatalf("waiting room: expected ErrRoomNotActive, got %v", err)
	}

	if _, err := env.rooms.Start(ctx, room.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := env.rooms.Kick(ctx, room.ID, ana.ID); err != nil {
		t.Fatalf("kick: %v", err)
	}
	if _, err := env.answers.Submit(ctx, params); !errors.Is(err, domain.ErrParticipantNotFound) {
		t.Fatalf("kicked participant: expected ErrParticipantNotFound, got %v", err)
	}
}

func TestSubmitBoundsQuestionIndex(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	room, ana := startedRoom(t, env)

	params := app.SubmitParams{
		RoomID:        room.ID,
		ParticipantID: ana.ID,
		QuestionIndex: 99,
		SessionNumber: 1,
		Payload:       domain.AnswerPayload{SelectedOptionID: "o1"},
	}
	if _, err := env.answers.Submit(ctx, params); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected ErrQuestionNotFound, got %v", err)
	}
	params.QuestionIndex = -1
	if _, err := env.answers.Submit(ctx, params); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected ErrQuestionNotFound for negative index, got %v", err)
	}
}

// A submission that declares a question index behind the room's shared pointer
// is still recorded: the client's declared slot wins over the live pointer.
func TestSubmitAcceptsStaleQuestionIndex(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	room, ana := startedRoom(t, env)

	if _, err := env.rooms.Advance(ctx, room.ID); err != nil {
		t.Fatalf("advance: %v", err)
	}

	result, err := env.answers.Submit(ctx, app.SubmitParams{
		RoomID:        room.ID,
		ParticipantID: ana.ID,
		QuestionIndex: 0, // pointer is already at 1
		SessionNumber: 1,
		Payload:       domain.AnswerPayload{SelectedOptionID: "o1"},
		ElapsedMs:     4000,
	})
	if err != nil {
		t.Fatalf("stale submit: %v", err)
	}
	if result.Answer.QuestionIndex != 0 || !result.Answer.IsCorrect {
		t.Fatalf("stale submission misrecorded: %+v", result.Answer)
	}
}

func TestSubmitClampsNegativeElapsed(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	room, ana := startedRoom(t, env)

	result, err := env.answers.Submit(ctx, app.SubmitParams{
		RoomID:        room.ID,
		ParticipantID: ana.ID,
		QuestionIndex: 0,
		SessionNumber: 1,
		Payload:       domain.AnswerPayload{SelectedOptionID: "o1"},
		ElapsedMs:     -500,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Answer.TimeTakenMs != 0 || result.Answer.Score != 1000 {
		t.Fatalf("negative elapsed not clamped: %+v", result.Answer)
	}
}
