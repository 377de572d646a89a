package chat

import (
	"context"
	"database/sql"
	"support-backend/internal/database"

	"gorm.io/gorm"
)

// Store is the message store contract the controllers drive. The gorm
// implementation below is the production one; tests substitute fakes.
type Store interface {
	InsertMessage(ctx context.Context, msg Message) error
	LoadMessagesByUser(ctx context.Context, userId int64) ([]Message, error)
	LoadActiveMessages(ctx context.Context) ([]Message, error)
	MarkMessageInactive(ctx context.Context, messageId int64) error
	MarkChatInactiveForUser(ctx context.Context, chat string, userId int64) error
}

type DBStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *DBStore {
	return &DBStore{db: db}
}

func (s *DBStore) InsertMessage(ctx context.Context, msg Message) error {
	row := toRow(msg)
	return database.InsertMessage(ctx, s.db, &row)
}

func (s *DBStore) LoadMessagesByUser(ctx context.Context, userId int64) ([]Message, error) {
	rows, err := database.LoadMessagesByUser(ctx, s.db, userId)
	if err != nil {
		return nil, err
	}
	return fromRows(rows), nil
}

func (s *DBStore) LoadActiveMessages(ctx context.Context) ([]Message, error) {
	rows, err := database.LoadActiveMessages(ctx, s.db)
	if err != nil {
		return nil, err
	}
	return fromRows(rows), nil
}

func (s *DBStore) MarkMessageInactive(ctx context.Context, messageId int64) error {
	return database.MarkMessageInactive(ctx, s.db, messageId)
}

func (s *DBStore) MarkChatInactiveForUser(ctx context.Context, chat string, userId int64) error {
	return database.MarkChatInactiveForUser(ctx, s.db, chat, userId)
}

func toRow(m Message) database.Message {
	row := database.Message{
		Text:      m.Text,
		Active:    m.Active,
		Answer:    m.Answer,
		CreatedAt: m.CreatedAt,
	}
	// An unbound message is stored with null user and chat, matching the
	// anonymous single-turn shape.
	if m.UserId != 0 {
		row.UserId = sql.NullInt64{Int64: m.UserId, Valid: true}
	}
	if m.Chat != "" {
		row.Chat = sql.NullString{String: m.Chat, Valid: true}
	}
	return row
}

func fromRows(rows []database.Message) []Message {
	messages := make([]Message, len(rows))
	for i, row := range rows {
		messages[i] = Message{
			Id:        int64(row.Id),
			UserId:    row.UserId.Int64,
			Text:      row.Text,
			Active:    row.Active,
			Answer:    row.Answer,
			Chat:      row.Chat.String,
			CreatedAt: row.CreatedAt,
		}
	}
	return messages
}
