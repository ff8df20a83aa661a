package memory

import (
	"context"
	"sync"

	"quizroom-service/internal/domain"
)

// Store is an in-memory implementation of the app store interfaces, mirroring
// the SQL schema's constraints: unique room codes and one answer per
// (room, participant, question, session) slot. Useful for tests and demo runs
// without Postgres.
type Store struct {
	mu           sync.RWMutex
	rooms        map[string]domain.Room
	codes        map[string]string // code -> room id
	participants map[string]domain.Participant
	answers      map[string]domain.Answer
	answerSlots  map[answerSlot]bool
}

type answerSlot struct {
	roomID        string
	participantID string
	questionIndex int
	sessionNumber int
}

func NewStore() *Store {
	return &Store{
		rooms:        make(map[string]domain.Room),
		codes:        make(map[string]string),
		participants: make(map[string]domain.Participant),
		answers:      make(map[string]domain.Answer),
		answerSlots:  make(map[answerSlot]bool),
	}
}

func (s *Store) CreateRoom(_ context.Context, room *domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.codes[room.Code]; taken {
		return domain.ErrCodeTaken
	}
	s.codes[room.Code] = room.ID
	s.rooms[room.ID] = *room
	return nil
}

func (s *Store) GetRoom(_ context.Context, id string) (domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[id]
	if !ok {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	return room, nil
}

func (s *Store) GetRoomByCode(_ context.Context, code string) (domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.codes[code]
	if !ok {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	return s.rooms[id], nil
}

func (s *Store) UpdateRoom(_ context.Context, room *domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room.ID]; !ok {
		return domain.ErrRoomNotFound
	}
	s.rooms[room.ID] = *room
	return nil
}

func (s *Store) CreateParticipant(_ context.Context, p *domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participants[p.ID] = *p
	return nil
}

func (s *Store) GetParticipant(_ context.Context, id string) (domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[id]
	if !ok {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	return p, nil
}

func (s *Store) ListParticipants(_ context.Context, roomID string) ([]domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Participant, 0)
	for _, p := range s.participants {
		if p.RoomID == roomID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) FindActiveBySessionToken(_ context.Context, roomID, token string) (domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if token == "" {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	for _, p := range s.participants {
		if p.RoomID == roomID && p.SessionToken == token && p.IsActive {
			return p, nil
		}
	}
	return domain.Participant{}, domain.ErrParticipantNotFound
}

func (s *Store) SetParticipantActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[id]
	if !ok {
		return domain.ErrParticipantNotFound
	}
	p.IsActive = active
	s.participants[id] = p
	return nil
}

func (s *Store) DeactivateParticipants(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.participants {
		if p.RoomID == roomID && p.IsActive {
			p.IsActive = false
			s.participants[id] = p
		}
	}
	return nil
}

func (s *Store) UpdateParticipantAvatar(_ context.Context, id string, avatar domain.Avatar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[id]
	if !ok {
		return domain.ErrParticipantNotFound
	}
	p.Avatar = &avatar
	s.participants[id] = p
	return nil
}

func (s *Store) InsertAnswer(_ context.Context, a *domain.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot := answerSlot{a.RoomID, a.ParticipantID, a.QuestionIndex, a.SessionNumber}
	if s.answerSlots[slot] {
		return domain.ErrAlreadyAnswered
	}
	s.answerSlots[slot] = true
	s.answers[a.ID] = *a
	return nil
}

func (s *Store) ListAnswers(_ context.Context, roomID string) ([]domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Answer, 0)
	for _, a := range s.answers {
		if a.RoomID == roomID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) ListSessionAnswers(_ context.Context, roomID string, session int) ([]domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Answer, 0)
	for _, a := range s.answers {
		if a.RoomID == roomID && a.SessionNumber == session {
			out = append(out, a)
		}
	}
	return out, nil
}

// StaticQuizLoader is a simple loader backed by an in-memory map (useful for
// tests/demos).
type StaticQuizLoader struct {
	mu      sync.RWMutex
	quizzes map[string]domain.Quiz
}

func NewStaticQuizLoader(quizzes map[string]domain.Quiz) *StaticQuizLoader {
	if quizzes == nil {
		quizzes = make(map[string]domain.Quiz)
	}
	return &StaticQuizLoader{quizzes: quizzes}
}

func (l *StaticQuizLoader) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if quiz, ok := l.quizzes[quizID]; ok {
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

// PutQuiz replaces quiz content; lets tests simulate mid-session edits.
func (l *StaticQuizLoader) PutQuiz(quiz domain.Quiz) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.quizzes[quiz.ID] = quiz
}
