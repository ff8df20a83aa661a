package app

import (
	"fmt"
	"math"
	"sort"
	"time"

	"quizroom-service/internal/domain"
)

// StandingsRow is one ranked line of a leaderboard.
type StandingsRow struct {
	Participant   domain.Participant `json:"participant"`
	TotalScore    int                `json:"totalScore"`
	CorrectCount  int                `json:"correctCount"`
	Answered      int                `json:"answered"`
	AvgTimeMs     int                `json:"avgTimeMs"`
	AvgTimeSecond float64            `json:"averageResponseTimeSeconds"`
}

// ResultRow extends a standings row with per-session completeness for the
// historical results view.
type ResultRow struct {
	StandingsRow
	TotalQuestions int `json:"totalQuestions"`
	Percentage     int `json:"percentage"`
}

// ExportRow is one answer of a session, denormalized for export.
type ExportRow struct {
	StudentName    string `json:"studentName"`
	QuestionNumber int    `json:"questionNumber"`
	QuestionText   string `json:"questionText"`
	AnswerText     string `json:"answerText"`
	IsCorrect      bool   `json:"isCorrect"`
	Score          int    `json:"score"`
	TimeTakenMs    int    `json:"timeTakenMs"`
	AnsweredAt     string `json:"answeredAt"`
}

// Standings derives the live leaderboard for one session. Every active
// participant appears, answers or not; nothing is read from stored totals —
// the sum is recomputed from the log on every call.
func Standings(participants []domain.Participant, answers []domain.Answer, session int) []StandingsRow {
	rows := make([]StandingsRow, 0, len(participants))
	for _, p := range participants {
		if !p.IsActive {
			continue
		}
		rows = append(rows, tally(p, answers, session))
	}
	sortRows(rows)
	return rows
}

// SessionResults derives the historical results of one session. Participants
// are included iff they answered in that session, active or not, so past
// sessions keep their people after a restart.
func SessionResults(participants []domain.Participant, answers []domain.Answer, session, totalQuestions int) []ResultRow {
	answered := make(map[string]bool)
	for _, a := range answers {
		if a.SessionNumber == session {
			answered[a.ParticipantID] = true
		}
	}
	rows := make([]StandingsRow, 0, len(answered))
	for _, p := range participants {
		if !answered[p.ID] {
			continue
		}
		rows = append(rows, tally(p, answers, session))
	}
	sortRows(rows)

	out := make([]ResultRow, len(rows))
	for i, row := range rows {
		pct := 0
		if totalQuestions > 0 {
			pct = int(math.Round(float64(row.CorrectCount) / float64(totalQuestions) * 100))
		}
		out[i] = ResultRow{StandingsRow: row, TotalQuestions: totalQuestions, Percentage: pct}
	}
	return out
}

// SessionNumbers lists the sessions present in the answer log, newest first.
func SessionNumbers(answers []domain.Answer) []int {
	seen := make(map[int]bool)
	for _, a := range answers {
		seen[a.SessionNumber] = true
	}
	sessions := make([]int, 0, len(seen))
	for s := range seen {
		sessions = append(sessions, s)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(sessions)))
	return sessions
}

// SessionExport denormalizes one session's answers for export, ordered by
// submission time.
func SessionExport(quiz domain.Quiz, participants []domain.Participant, answers []domain.Answer, session int) []ExportRow {
	names := make(map[string]string, len(participants))
	for _, p := range participants {
		names[p.ID] = p.StudentName
	}

	sessionAnswers := make([]domain.Answer, 0, len(answers))
	for _, a := range answers {
		if a.SessionNumber == session {
			sessionAnswers = append(sessionAnswers, a)
		}
	}
	sort.Slice(sessionAnswers, func(i, j int) bool {
		return sessionAnswers[i].AnsweredAt.Before(sessionAnswers[j].AnsweredAt)
	})

	rows := make([]ExportRow, 0, len(sessionAnswers))
	for _, a := range sessionAnswers {
		row := ExportRow{
			StudentName:    names[a.ParticipantID],
			QuestionNumber: a.QuestionIndex + 1,
			IsCorrect:      a.IsCorrect,
			Score:          a.Score,
			TimeTakenMs:    a.TimeTakenMs,
			AnsweredAt:     a.AnsweredAt.UTC().Format(time.RFC3339),
		}
		if a.QuestionIndex >= 0 && a.QuestionIndex < len(quiz.Questions) {
			q := quiz.Questions[a.QuestionIndex]
			row.QuestionText = q.Text
			row.AnswerText = answerText(q, a.Payload)
		}
		rows = append(rows, row)
	}
	return rows
}

func answerText(q domain.Question, p domain.AnswerPayload) string {
	switch q.Type {
	case domain.QuestionMultipleChoice:
		for _, opt := range q.Options {
			if opt.ID == p.SelectedOptionID {
				return opt.Text
			}
		}
		return ""
	case domain.QuestionTextInput:
		return p.Text
	case domain.QuestionMatching:
		return fmt.Sprintf("%d/%d", p.CorrectPairs, len(q.Pairs))
	}
	return ""
}

func tally(p domain.Participant, answers []domain.Answer, session int) StandingsRow {
	row := StandingsRow{Participant: p}
	totalMs := 0
	for _, a := range answers {
		if a.SessionNumber != session || a.ParticipantID != p.ID {
			continue
		}
		row.Answered++
		row.TotalScore += a.Score
		totalMs += a.TimeTakenMs
		if a.IsCorrect {
			row.CorrectCount++
		}
	}
	if row.Answered > 0 {
		row.AvgTimeMs = totalMs / row.Answered
		row.AvgTimeSecond = math.Round(float64(row.AvgTimeMs)/100) / 10
	}
	return row
}

// sortRows applies the one ranking used everywhere: total score descending,
// ties broken by faster average response, then name for determinism.
func sortRows(rows []StandingsRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].TotalScore != rows[j].TotalScore {
			return rows[i].TotalScore > rows[j].TotalScore
		}
		if rows[i].AvgTimeMs != rows[j].AvgTimeMs {
			// no answers means no average; rank answered rows first
			if rows[i].Answered > 0 && rows[j].Answered > 0 {
				return rows[i].AvgTimeMs < rows[j].AvgTimeMs
			}
			return rows[i].Answered > rows[j].Answered
		}
		return rows[i].Participant.StudentName < rows[j].Participant.StudentName
	})
}
