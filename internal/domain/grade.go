package domain

import (
	"math"
	"strings"
)

// Grade checks a payload against the question, dispatching on the variant tag.
// Matching is all-or-nothing; the client may reveal partial progress but the
// graded record only cares whether every pair was found.
func (q Question) Grade(p AnswerPayload) bool {
	switch q.Type {
	case QuestionMultipleChoice:
		for _, opt := range q.Options {
			if opt.ID == p.SelectedOptionID {
				return opt.IsCorrect
			}
		}
		return false
	case QuestionTextInput:
		return strings.EqualFold(strings.TrimSpace(p.Text), strings.TrimSpace(q.CorrectAnswer))
	case QuestionMatching:
		return len(q.Pairs) > 0 && p.CorrectPairs == len(q.Pairs)
	}
	return false
}

// EffectiveTimeLimit resolves the limit in seconds: question override, else
// room default, else DefaultTimeLimitSeconds.
func (q Question) EffectiveTimeLimit(roomDefault int) int {
	if q.TimeLimit > 0 {
		return q.TimeLimit
	}
	if roomDefault > 0 {
		return roomDefault
	}
	return DefaultTimeLimitSeconds
}

// Score computes the points for a graded answer. Incorrect answers score 0.
// Correct answers score round(100 + (1 - elapsed/limit) * 900), with the
// time ratio clamped at 0 so a late correct answer still floors at 100.
func Score(correct bool, elapsedMs, limitMs int) int {
	if !correct {
		return 0
	}
	ratio := 0.0
	if limitMs > 0 {
		ratio = 1 - float64(elapsedMs)/float64(limitMs)
	}
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	return int(math.Round(100 + ratio*900))
}
