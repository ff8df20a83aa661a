package domain

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateQuiz checks quiz content before it is published or offered to a room.
func ValidateQuiz(q Quiz) error {
	if err := validate.Var(q.Title, "required,max=200"); err != nil {
		return fmt.Errorf("quiz title: %w", err)
	}
	if err := validate.Var(q.Questions, "required,min=1,max=100"); err != nil {
		return fmt.Errorf("quiz questions: %w", err)
	}
	for i, question := range q.Questions {
		if err := ValidateQuestion(question); err != nil {
			return fmt.Errorf("question %d: %w", i+1, err)
		}
	}
	return nil
}

// ValidateQuestion checks one question's base fields and its variant payload.
func ValidateQuestion(q Question) error {
	if err := validate.Var(q.Text, "required"); err != nil {
		return fmt.Errorf("text: %w", err)
	}
	if err := validate.Var(q.TimeLimit, "omitempty,min=5,max=120"); err != nil {
		return fmt.Errorf("time limit: %w", err)
	}
	switch q.Type {
	case QuestionMultipleChoice:
		if err := validate.Var(q.Options, "min=2,max=6"); err != nil {
			return fmt.Errorf("options: %w", err)
		}
		correct := 0
		for _, opt := range q.Options {
			if opt.IsCorrect {
				correct++
			}
		}
		if correct != 1 {
			return fmt.Errorf("options: expected exactly one correct option, got %d", correct)
		}
	case QuestionTextInput:
		if err := validate.Var(q.CorrectAnswer, "required"); err != nil {
			return fmt.Errorf("correct answer: %w", err)
		}
	case QuestionMatching:
		if err := validate.Var(q.Pairs, "min=2,max=8"); err != nil {
			return fmt.Errorf("pairs: %w", err)
		}
		for _, pair := range q.Pairs {
			if pair.Left == "" || pair.Right == "" {
				return fmt.Errorf("pairs: pair %q has an empty side", pair.ID)
			}
		}
	default:
		return fmt.Errorf("unknown question type %q", q.Type)
	}
	return nil
}

// ValidateStudentName bounds the display name a student joins with.
func ValidateStudentName(name string) error {
	if err := validate.Var(name, "required,min=1,max=30"); err != nil {
		return fmt.Errorf("student name: %w", err)
	}
	return nil
}
