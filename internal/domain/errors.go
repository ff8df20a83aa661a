package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrRoomNotFound is returned when no room matches the given id.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomUnavailable is returned on join when the code matches no room
	// that is open for joining.
	ErrRoomUnavailable = errors.New("room unavailable")
	// ErrRoomNotActive rejects submissions outside an active session.
	ErrRoomNotActive = errors.New("room is not active")
	// ErrParticipantNotFound is returned when a participant id or session
	// token matches no active participant.
	ErrParticipantNotFound = errors.New("participant not found in room")
	// ErrNoParticipants rejects starting a room with no audience.
	ErrNoParticipants = errors.New("no active participants in room")
	// ErrInvalidTransition rejects lifecycle operations from the wrong state.
	ErrInvalidTransition = errors.New("invalid room state transition")
	// ErrAlreadyAnswered is the idempotent rejection of a duplicate
	// submission; the original grading stands.
	ErrAlreadyAnswered = errors.New("already answered this question")
	// ErrQuestionNotFound indicates a submitted question index is out of range.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrCodeTaken is the store-level signal that a join code collided.
	ErrCodeTaken = errors.New("room code already taken")
	// ErrCodeExhausted is returned after bounded code regeneration fails.
	ErrCodeExhausted = errors.New("could not allocate room code")
)
