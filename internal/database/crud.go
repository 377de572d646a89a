package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
)

func InsertMessage(ctx context.Context, db *gorm.DB, msg *Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	if err := db.WithContext(ctx).Create(msg).Error; err != nil {
		slog.Error("error inserting message", "chat", msg.Chat.String, "error", err)
		return err
	}
	return nil
}

// LoadMessagesByUser returns every message bound to the user, oldest first,
// for conversation replay.
func LoadMessagesByUser(ctx context.Context, db *gorm.DB, userId int64) ([]Message, error) {
	var messages []Message
	if err := db.WithContext(ctx).
		Where("user_id = ?", userId).
		Order("created_at ASC").
		Find(&messages).
		Error; err != nil {
		return nil, fmt.Errorf("could not load messages for user %d: %w", userId, err)
	}
	return messages, nil
}

// LoadActiveMessages returns all messages still awaiting a reply, across
// every user and anonymous visitor. This feeds the admin pending queue.
func LoadActiveMessages(ctx context.Context, db *gorm.DB) ([]Message, error) {
	var messages []Message
	if err := db.WithContext(ctx).
		Where("active = ?", true).
		Order("created_at ASC").
		Find(&messages).
		Error; err != nil {
		return nil, fmt.Errorf("could not load active messages: %w", err)
	}
	return messages, nil
}

func MarkMessageInactive(ctx context.Context, db *gorm.DB, messageId int64) error {
	if err := db.WithContext(ctx).
		Model(&Message{}).
		Where("id = ?", messageId).
		Update("active", false).
		Error; err != nil {
		slog.Error("error marking message inactive", "message_id", messageId, "error", err)
		return err
	}
	return nil
}

// MarkChatInactiveForUser clears the pending flag on every active message of
// one chat, invoked after an admin reply has been stored.
func MarkChatInactiveForUser(ctx context.Context, db *gorm.DB, chat string, userId int64) error {
	if err := db.WithContext(ctx).
		Model(&Message{}).
		Where("chat = ? AND user_id = ? AND active = ?", chat, userId, true).
		Update("active", false).
		Error; err != nil {
		slog.Error("error marking chat inactive", "chat", chat, "user_id", userId, "error", err)
		return err
	}
	return nil
}

func CreateUser(ctx context.Context, db *gorm.DB, email, passwordHash, role string) (*User, error) {
	user := User{
		Email:     email,
		Password:  passwordHash,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("could not create user: %w", err)
	}
	return &user, nil
}

// FindUserByEmail returns gorm.ErrRecordNotFound when no user exists with
// the given email.
func FindUserByEmail(ctx context.Context, db *gorm.DB, email string) (*User, error) {
	var user User
	if err := db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
