package app

import (
	"context"

	"quizroom-service/internal/domain"
)

// RoomStore persists room rows. Updates are single-row last-write-wins; the
// protocol relies on a single presenter issuing transitions sequentially.
type RoomStore interface {
	CreateRoom(ctx context.Context, room *domain.Room) error
	GetRoom(ctx context.Context, id string) (domain.Room, error)
	GetRoomByCode(ctx context.Context, code string) (domain.Room, error)
	UpdateRoom(ctx context.Context, room *domain.Room) error
}

// ParticipantStore persists room membership rows.
type ParticipantStore interface {
	CreateParticipant(ctx context.Context, p *domain.Participant) error
	GetParticipant(ctx context.Context, id string) (domain.Participant, error)
	ListParticipants(ctx context.Context, roomID string) ([]domain.Participant, error)
	// FindActiveBySessionToken re-associates a rejoining client with its
	// participant row for the current session. Inactive rows never match,
	// which is what forces a fresh join after restart.
	FindActiveBySessionToken(ctx context.Context, roomID, token string) (domain.Participant, error)
	SetParticipantActive(ctx context.Context, id string, active bool) error
	DeactivateParticipants(ctx context.Context, roomID string) error
	UpdateParticipantAvatar(ctx context.Context, id string, avatar domain.Avatar) error
}

// AnswerStore persists the append-only answer log. InsertAnswer must return
// domain.ErrAlreadyAnswered when the (room, participant, question, session)
// slot is already filled; that constraint is the sole concurrency control
// point of the submission protocol.
type AnswerStore interface {
	InsertAnswer(ctx context.Context, a *domain.Answer) error
	ListAnswers(ctx context.Context, roomID string) ([]domain.Answer, error)
	ListSessionAnswers(ctx context.Context, roomID string, session int) ([]domain.Answer, error)
}

// QuizLoader loads quiz content from the backing store.
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// EventKind tags a change notification.
type EventKind string

const (
	// EventRoom signals the room row changed; clients refetch the room.
	EventRoom EventKind = "room"
	// EventParticipants signals membership changed; clients refetch the list.
	EventParticipants EventKind = "participants"
	// EventAnswers signals the answer log grew; clients refetch standings.
	EventAnswers EventKind = "answers"
	// EventReaction carries an ephemeral reaction inline; nothing to refetch.
	EventReaction EventKind = "reaction"
)

// Event is a cache-invalidation trigger, not an incremental patch. Delivery is
// at-least-once and unordered, so subscribers re-derive state from the store
// on every event instead of applying payloads.
type Event struct {
	Kind     EventKind        `json:"kind"`
	RoomID   string           `json:"roomId"`
	Reaction *domain.Reaction `json:"reaction,omitempty"`
}

// Bus fans change notifications out to the clients of a room. Publishing is
// best-effort; the store remains the source of truth and a client that missed
// events can always refetch.
type Bus interface {
	Publish(ctx context.Context, roomID string, ev Event) error
	// Subscribe returns a channel of events for one room. The caller must
	// invoke the returned cancel function to avoid leaks.
	Subscribe(ctx context.Context, roomID string) (<-chan Event, func(), error)
}
