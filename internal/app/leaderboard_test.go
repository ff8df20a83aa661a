package app_test

import (
	"testing"
	"time"

	"quizroom-service/internal/app"
	"quizroom-service/internal/domain"
)

func participant(id, name string, active bool) domain.Participant {
	return domain.Participant{ID: id, RoomID: "r1", StudentName: name, IsActive: active}
}

func answer(pid string, idx, session, score, timeMs int, correct bool) domain.Answer {
	return domain.Answer{
		ID:            pid + "-" + time.Now().String(),
		RoomID:        "r1",
		ParticipantID: pid,
		QuestionIndex: idx,
		SessionNumber: session,
		Score:         score,
		TimeTakenMs:   timeMs,
		IsCorrect:     correct,
		AnsweredAt:    time.Now(),
	}
}

func TestStandingsRanksByScoreThenSpeed(t *testing.T) {
	participants := []domain.Participant{
		participant("p1", "Ana", true),
		participant("p2", "Ben", true),
		participant("p3", "Cleo", true),
	}
	answers := []domain.Answer{
		answer("p1", 0, 1, 800, 3000, true),
		answer("p2", 0, 1, 800, 2000, true),
		answer("p3", 0, 1, 500, 1000, true),
	}

	rows := app.Standings(participants, answers, 1)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	// p1 and p2 tie on score; p2 was faster
	if rows[0].Participant.ID != "p2" || rows[1].Participant.ID != "p1" || rows[2].Participant.ID != "p3" {
		t.Fatalf("unexpected order: %s %s %s",
			rows[0].Participant.ID, rows[1].Participant.ID, rows[2].Participant.ID)
	}
}

func TestStandingsIncludesSilentActiveParticipants(t *testing.T) {
	participants := []domain.Participant{
		participant("p1", "Ana", true),
		participant("p2", "Ben", true),   // never answered
		participant("p3", "Cleo", false), // inactive
	}
	answers := []domain.Answer{answer("p1", 0, 1, 1000, 500, true)}

	rows := app.Standings(participants, answers, 1)
	if len(rows) != 2 {
		t.Fatalf("expected active participants only, got %d rows", len(rows))
	}
	if rows[1].Participant.ID != "p2" || rows[1].TotalScore != 0 || rows[1].Answered != 0 {
		t.Fatalf("silent participant row wrong: %+v", rows[1])
	}
}

func TestStandingsIgnoresOtherSessions(t *testing.T) {
	participants := []domain.Participant{participant("p1", "Ana", true)}
	answers := []domain.Answer{
		answer("p1", 0, 1, 1000, 500, true),
		answer("p1", 0, 2, 300, 9000, true),
	}

	rows := app.Standings(participants, answers, 2)
	if rows[0].TotalScore != 300 {
		t.Fatalf("session 2 score = %d, want 300", rows[0].TotalScore)
	}
}

func TestSessionResultsKeepsInactiveAnswerers(t *testing.T) {
	participants := []domain.Participant{
		participant("p1", "Ana", false), // deactivated by a later restart
		participant("p2", "Ben", true),  // joined session 2, never answered in 1
	}
	answers := []domain.Answer{
		answer("p1", 0, 1, 700, 4000, true),
		answer("p1", 1, 1, 0, 8000, false),
	}

	rows := app.SessionResults(participants, answers, 1, 2)
	if len(rows) != 1 {
		t.Fatalf("expected only session-1 answerers, got %d rows", len(rows))
	}
	row := rows[0]
	if row.Participant.ID != "p1" || row.CorrectCount != 1 || row.TotalQuestions != 2 {
		t.Fatalf("result row wrong: %+v", row)
	}
	if row.Percentage != 50 {
		t.Fatalf("percentage = %d, want 50", row.Percentage)
	}
}

func TestSessionNumbersNewestFirst(t *testing.T) {
	answers := []domain.Answer{
		answer("p1", 0, 1, 100, 0, true),
		answer("p1", 0, 3, 100, 0, true),
		answer("p1", 0, 2, 100, 0, true),
		answer("p2", 0, 3, 100, 0, true),
	}
	sessions := app.SessionNumbers(answers)
	if len(sessions) != 3 || sessions[0] != 3 || sessions[1] != 2 || sessions[2] != 1 {
		t.Fatalf("sessions = %v", sessions)
	}
}

func TestSessionExportOrdersBySubmissionTime(t *testing.T) {
	quiz := testQuiz()
	participants := []domain.Participant{
		participant("p1", "Ana", true),
		participant("p2", "Ben", true),
	}
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	answers := []domain.Answer{
		{
			ID: "a2", RoomID: "r1", ParticipantID: "p2", QuestionIndex: 0, SessionNumber: 1,
			Payload: domain.AnswerPayload{SelectedOptionID: "o2"}, Score: 0,
			AnsweredAt: base.Add(5 * time.Second),
		},
		{
			ID: "a1", RoomID: "r1", ParticipantID: "p1", QuestionIndex: 0, SessionNumber: 1,
			Payload: domain.AnswerPayload{SelectedOptionID: "o1"}, IsCorrect: true, Score: 900,
			AnsweredAt: base,
		},
	}

	rows := app.SessionExport(quiz, participants, answers, 1)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].StudentName != "Ana" || rows[1].StudentName != "Ben" {
		t.Fatalf("rows out of submission order: %+v", rows)
	}
	if rows[0].AnswerText != "Paris" || rows[0].QuestionNumber != 1 {
		t.Fatalf("export row denormalization wrong: %+v", rows[0])
	}
	if rows[0].AnsweredAt != "2026-03-01T10:00:00Z" {
		t.Fatalf("timestamp format wrong: %s", rows[0].AnsweredAt)
	}
}

func TestStandingsAverageTime(t *testing.T) {
	participants := []domain.Participant{participant("p1", "Ana", true)}
	answers := []domain.Answer{
		answer("p1", 0, 1, 1000, 1000, true),
		answer("p1", 1, 1, 500, 2000, true),
	}
	rows := app.Standings(participants, answers, 1)
	if rows[0].AvgTimeMs != 1500 {
		t.Fatalf("avg time = %dms, want 1500", rows[0].AvgTimeMs)
	}
	if rows[0].AvgTimeSecond != 1.5 {
		t.Fatalf("avg time seconds = %v, want 1.5", rows[0].AvgTimeSecond)
	}
}
