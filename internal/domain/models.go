package domain

import "time"

// QuestionType discriminates the question variants carried in a quiz.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple-choice"
	QuestionTextInput      QuestionType = "text-input"
	QuestionMatching       QuestionType = "matching"
)

// DefaultTimeLimitSeconds applies when neither the question nor the room sets one.
const DefaultTimeLimitSeconds = 15

// Option is one possible answer of a multiple-choice question.
type Option struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

// MatchPair is one left/right pairing of a matching question. The shared ID is
// what makes a pairing correct.
type MatchPair struct {
	ID    string `json:"id"`
	Left  string `json:"left"`
	Right string `json:"right"`
}

// Question is a tagged union: a shared base plus exactly one variant payload,
// selected by Type.
type Question struct {
	ID        string       `json:"id"`
	Type      QuestionType `json:"type"`
	Text      string       `json:"text"`
	ImageURL  string       `json:"imageUrl,omitempty"`
	TimeLimit int          `json:"timeLimit,omitempty"` // seconds

	Options       []Option    `json:"options,omitempty"`       // multiple-choice
	CorrectAnswer string      `json:"correctAnswer,omitempty"` // text-input
	Pairs         []MatchPair `json:"pairs,omitempty"`         // matching
}

// Public strips grading material so the question can be sent to students.
// Matching pairs keep their shared IDs; the pairing is the gameplay.
func (q Question) Public() Question {
	out := q
	out.CorrectAnswer = ""
	if len(q.Options) > 0 {
		out.Options = make([]Option, len(q.Options))
		for i, opt := range q.Options {
			opt.IsCorrect = false
			out.Options[i] = opt
		}
	}
	return out
}

// Quiz is the authoring artifact a room plays. A room snapshots Questions once
// at start; later edits never leak into a running session.
type Quiz struct {
	ID          string     `json:"id"`
	TeacherID   string     `json:"teacherId"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Subject     string     `json:"subject,omitempty"`
	GradeLevel  string     `json:"gradeLevel,omitempty"`
	Questions   []Question `json:"questions"`
	IsPublished bool       `json:"isPublished"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// RoomStatus is the room lifecycle state.
type RoomStatus string

const (
	RoomWaiting   RoomStatus = "waiting"
	RoomActive    RoomStatus = "active"
	RoomCompleted RoomStatus = "completed"
)

// ControlMode selects who drives question advancement.
type ControlMode string

const (
	// ControlAuto lets each student advance their own local question pointer
	// after answering; the room row is not written for those advances.
	ControlAuto ControlMode = "auto"
	// ControlManual keeps every student on the teacher-driven index.
	ControlManual ControlMode = "manual"
)

// Room is the authoritative runtime session of a quiz. Only the teacher role
// writes it.
type Room struct {
	ID                    string      `json:"id"`
	TeacherID             string      `json:"teacherId"`
	QuizID                string      `json:"quizId"`
	Code                  string      `json:"code"`
	Status                RoomStatus  `json:"status"`
	ClassName             string      `json:"className,omitempty"`
	Grade                 string      `json:"grade,omitempty"`
	Notes                 string      `json:"notes,omitempty"`
	ControlMode           ControlMode `json:"controlMode"`
	TimeLimitSeconds      int         `json:"timeLimitSeconds"`
	ShowResultsToStudents bool        `json:"showResultsToStudents"`
	CurrentQuestionIndex  int         `json:"currentQuestionIndex"`
	SessionNumber         int         `json:"sessionNumber"`
	StartedAt             *time.Time  `json:"startedAt,omitempty"`
	EndedAt               *time.Time  `json:"endedAt,omitempty"`
	CreatedAt             time.Time   `json:"createdAt"`
}

// Avatar is cosmetic participant metadata; scoring never reads it.
type Avatar struct {
	Character string `json:"character"`
	Accessory string `json:"accessory"`
}

// Participant is one student's membership in a room for one session. Restart
// deactivates participants instead of deleting them so history survives.
type Participant struct {
	ID           string    `json:"id"`
	RoomID       string    `json:"roomId"`
	StudentName  string    `json:"studentName"`
	SessionToken string    `json:"-"`
	IsActive     bool      `json:"isActive"`
	Avatar       *Avatar   `json:"avatar,omitempty"`
	JoinedAt     time.Time `json:"joinedAt"`
}

// AnswerPayload is the opaque per-variant answer body. Only the submitted
// variant's fields are set; the whole struct is persisted as-is.
type AnswerPayload struct {
	SelectedOptionID string `json:"selectedOptionId,omitempty"`
	Text             string `json:"text,omitempty"`
	CorrectPairs     int    `json:"correctPairs,omitempty"`
	TotalPairs       int    `json:"totalPairs,omitempty"`
}

// Answer is an immutable log entry: one participant's graded response to one
// question in one session. Never updated after insert.
type Answer struct {
	ID            string        `json:"id"`
	RoomID        string        `json:"roomId"`
	ParticipantID string        `json:"participantId"`
	QuestionIndex int           `json:"questionIndex"`
	SessionNumber int           `json:"sessionNumber"`
	Payload       AnswerPayload `json:"answer"`
	IsCorrect     bool          `json:"isCorrect"`
	TimeTakenMs   int           `json:"timeTakenMs"`
	Score         int           `json:"score"`
	AnsweredAt    time.Time     `json:"answeredAt"`
}

// Reaction is an ephemeral fire-and-forget broadcast; never persisted.
type Reaction struct {
	Emoji  string `json:"emoji"`
	Sender string `json:"sender,omitempty"`
}
