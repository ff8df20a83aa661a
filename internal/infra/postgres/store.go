package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"quizroom-service/internal/domain"
)

// Store persists rooms, participants, and the answer log with bun. Uniqueness
// of room codes and answer slots is enforced by the database, not in Go; a
// unique violation maps to the matching domain sentinel.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

type roomRow struct {
	bun.BaseModel `bun:"table:rooms"`

	ID                    string     `bun:"id,pk"`
	TeacherID             string     `bun:"teacher_id"`
	QuizID                string     `bun:"quiz_id"`
	Code                  string     `bun:"code"`
	Status                string     `bun:"status"`
	ClassName             string     `bun:"class_name"`
	Grade                 string     `bun:"grade"`
	Notes                 string     `bun:"notes"`
	ControlMode           string     `bun:"control_mode"`
	TimeLimitSeconds      int        `bun:"time_limit_seconds"`
	ShowResultsToStudents bool       `bun:"show_results_to_students"`
	CurrentQuestionIndex  int        `bun:"current_question_index"`
	SessionNumber         int        `bun:"session_number"`
	StartedAt             *time.Time `bun:"started_at"`
	EndedAt               *time.Time `bun:"ended_at"`
	CreatedAt             time.Time  `bun:"created_at"`
}

type participantRow struct {
	bun.BaseModel `bun:"table:room_participants"`

	ID           string          `bun:"id,pk"`
	RoomID       string          `bun:"room_id"`
	StudentName  string          `bun:"student_name"`
	SessionToken string          `bun:"session_token"`
	IsActive     bool            `bun:"is_active"`
	Avatar       json.RawMessage `bun:"avatar,type:jsonb,nullzero"`
	JoinedAt     time.Time       `bun:"joined_at"`
}

type answerRow struct {
	bun.BaseModel `bun:"table:quiz_answers"`

	ID            string          `bun:"id,pk"`
	RoomID        string          `bun:"room_id"`
	ParticipantID string          `bun:"participant_id"`
	QuestionIndex int             `bun:"question_index"`
	SessionNumber int             `bun:"session_number"`
	Answer        json.RawMessage `bun:"answer,type:jsonb"`
	IsCorrect     bool            `bun:"is_correct"`
	TimeTakenMs   int             `bun:"time_taken_ms"`
	Score         int             `bun:"score"`
	AnsweredAt    time.Time       `bun:"answered_at"`
}

func (s *Store) CreateRoom(ctx context.Context, room *domain.Room) error {
	row := toRoomRow(room)
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrCodeTaken
		}
		return fmt.Errorf("insert room: %w", err)
	}
	return nil
}

func (s *Store) GetRoom(ctx context.Context, id string) (domain.Room, error) {
	var row roomRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	if err != nil {
		return domain.Room{}, fmt.Errorf("select room: %w", err)
	}
	return fromRoomRow(row), nil
}

func (s *Store) GetRoomByCode(ctx context.Context, code string) (domain.Room, error) {
	var row roomRow
	err := s.db.NewSelect().Model(&row).Where("code = ?", code).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	if err != nil {
		return domain.Room{}, fmt.Errorf("select room by code: %w", err)
	}
	return fromRoomRow(row), nil
}

func (s *Store) UpdateRoom(ctx context.Context, room *domain.Room) error {
	row := toRoomRow(room)
	res, err := s.db.NewUpdate().Model(&row).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("update room: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}

func (s *Store) CreateParticipant(ctx context.Context, p *domain.Participant) error {
	row, err := toParticipantRow(p)
	if err != nil {
		return err
	}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

func (s *Store) GetParticipant(ctx context.Context, id string) (domain.Participant, error) {
	var row participantRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	if err != nil {
		return domain.Participant{}, fmt.Errorf("select participant: %w", err)
	}
	return fromParticipantRow(row)
}

func (s *Store) ListParticipants(ctx context.Context, roomID string) ([]domain.Participant, error) {
	var rows []participantRow
	err := s.db.NewSelect().Model(&rows).
		Where("room_id = ?", roomID).
		Order("joined_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select participants: %w", err)
	}
	out := make([]domain.Participant, 0, len(rows))
	for _, row := range rows {
		p, err := fromParticipantRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) FindActiveBySessionToken(ctx context.Context, roomID, token string) (domain.Participant, error) {
	if token == "" {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	var row participantRow
	err := s.db.NewSelect().Model(&row).
		Where("room_id = ?", roomID).
		Where("session_token = ?", token).
		Where("is_active").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	if err != nil {
		return domain.Participant{}, fmt.Errorf("select participant by token: %w", err)
	}
	return fromParticipantRow(row)
}

func (s *Store) SetParticipantActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.NewUpdate().Model((*participantRow)(nil)).
		Set("is_active = ?", active).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update participant: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrParticipantNotFound
	}
	return nil
}

func (s *Store) DeactivateParticipants(ctx context.Context, roomID string) error {
	_, err := s.db.NewUpdate().Model((*participantRow)(nil)).
		Set("is_active = FALSE").
		Where("room_id = ?", roomID).
		Where("is_active").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("deactivate participants: %w", err)
	}
	return nil
}

func (s *Store) UpdateParticipantAvatar(ctx context.Context, id string, avatar domain.Avatar) error {
	payload, err := json.Marshal(avatar)
	if err != nil {
		return err
	}
	res, err := s.db.NewUpdate().Model((*participantRow)(nil)).
		Set("avatar = ?", string(payload)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update avatar: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrParticipantNotFound
	}
	return nil
}

func (s *Store) InsertAnswer(ctx context.Context, a *domain.Answer) error {
	payload, err := json.Marshal(a.Payload)
	if err != nil {
		return err
	}
	row := answerRow{
		ID:            a.ID,
		RoomID:        a.RoomID,
		ParticipantID: a.ParticipantID,
		QuestionIndex: a.QuestionIndex,
		SessionNumber: a.SessionNumber,
		Answer:        payload,
		IsCorrect:     a.IsCorrect,
		TimeTakenMs:   a.TimeTakenMs,
		Score:         a.Score,
		AnsweredAt:    a.AnsweredAt,
	}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyAnswered
		}
		return fmt.Errorf("insert answer: %w", err)
	}
	return nil
}

func (s *Store) ListAnswers(ctx context.Context, roomID string) ([]domain.Answer, error) {
	var rows []answerRow
	err := s.db.NewSelect().Model(&rows).
		Where("room_id = ?", roomID).
		Order("answered_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select answers: %w", err)
	}
	return fromAnswerRows(rows)
}

func (s *Store) ListSessionAnswers(ctx context.Context, roomID string, session int) ([]domain.Answer, error) {
	var rows []answerRow
	err := s.db.NewSelect().Model(&rows).
		Where("room_id = ?", roomID).
		Where("session_number = ?", session).
		Order("answered_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select session answers: %w", err)
	}
	return fromAnswerRows(rows)
}

func toRoomRow(room *domain.Room) roomRow {
	return roomRow{
		ID:                    room.ID,
		TeacherID:             room.TeacherID,
		QuizID:                room.QuizID,
		Code:                  room.Code,
		Status:                string(room.Status),
		ClassName:             room.ClassName,
		Grade:                 room.Grade,
		Notes:                 room.Notes,
		ControlMode:           string(room.ControlMode),
		TimeLimitSeconds:      room.TimeLimitSeconds,
		ShowResultsToStudents: room.ShowResultsToStudents,
		CurrentQuestionIndex:  room.CurrentQuestionIndex,
		SessionNumber:         room.SessionNumber,
		StartedAt:             room.StartedAt,
		EndedAt:               room.EndedAt,
		CreatedAt:             room.CreatedAt,
	}
}

func fromRoomRow(row roomRow) domain.Room {
	return domain.Room{
		ID:                    row.ID,
		TeacherID:             row.TeacherID,
		QuizID:                row.QuizID,
		Code:                  row.Code,
		Status:                domain.RoomStatus(row.Status),
		ClassName:             row.ClassName,
		Grade:                 row.Grade,
		Notes:                 row.Notes,
		ControlMode:           domain.ControlMode(row.ControlMode),
		TimeLimitSeconds:      row.TimeLimitSeconds,
		ShowResultsToStudents: row.ShowResultsToStudents,
		CurrentQuestionIndex:  row.CurrentQuestionIndex,
		SessionNumber:         row.SessionNumber,
		StartedAt:             row.StartedAt,
		EndedAt:               row.EndedAt,
		CreatedAt:             row.CreatedAt,
	}
}

func toParticipantRow(p *domain.Participant) (participantRow, error) {
	row := participantRow{
		ID:           p.ID,
		RoomID:       p.RoomID,
		StudentName:  p.StudentName,
		SessionToken: p.SessionToken,
		IsActive:     p.IsActive,
		JoinedAt:     p.JoinedAt,
	}
	if p.Avatar != nil {
		payload, err := json.Marshal(p.Avatar)
		if err != nil {
			return participantRow{}, err
		}
		row.Avatar = payload
	}
	return row, nil
}

func fromParticipantRow(row participantRow) (domain.Participant, error) {
	p := domain.Participant{
		ID:           row.ID,
		RoomID:       row.RoomID,
		StudentName:  row.StudentName,
		SessionToken: row.SessionToken,
		IsActive:     row.IsActive,
		JoinedAt:     row.JoinedAt,
	}
	if len(row.Avatar) > 0 {
		var avatar domain.Avatar
		if err := json.Unmarshal(row.Avatar, &avatar); err != nil {
			return domain.Participant{}, fmt.Errorf("unmarshal avatar: %w", err)
		}
		p.Avatar = &avatar
	}
	return p, nil
}

func fromAnswerRows(rows []answerRow) ([]domain.Answer, error) {
	out := make([]domain.Answer, 0, len(rows))
	for _, row := range rows {
		var payload domain.AnswerPayload
		if err := json.Unmarshal(row.Answer, &payload); err != nil {
			return nil, fmt.Errorf("unmarshal answer payload: %w", err)
		}
		out = append(out, domain.Answer{
			ID:            row.ID,
			RoomID:        row.RoomID,
			ParticipantID: row.ParticipantID,
			QuestionIndex: row.QuestionIndex,
			SessionNumber: row.SessionNumber,
			Payload:       payload,
			IsCorrect:     row.IsCorrect,
			TimeTakenMs:   row.TimeTakenMs,
			Score:         row.Score,
			AnsweredAt:    row.AnsweredAt,
		})
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == "23505"
}
