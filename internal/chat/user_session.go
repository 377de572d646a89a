package chat

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// WelcomeText opens the temporary conversation shown to unauthenticated
// visitors.
const WelcomeText = "Welcome! You can start chatting without registering, " +
	"but please leave your email address in the message."

// UserSession is the end user's view controller. Authenticated users see
// their conversation list ordered by recency with unanswered chats last;
// anonymous visitors get a synthetic single-message welcome conversation
// that exists only in memory.
type UserSession struct {
	mu       sync.Mutex
	store    Store
	userId   int64 // 0 for anonymous visitors
	messages []Message
	current  string
	inputOn  bool
	closed   bool
}

func NewUserSession(store Store, userId int64) *UserSession {
	return &UserSession{store: store, userId: userId}
}

type UserView struct {
	Current      string
	InputEnabled bool
	Messages     []Message
	Chats        []*Conversation
}

// Load fetches the user's messages and opens the most recently active chat
// that is not waiting on an admin answer. Anonymous visitors, and any load
// failure, fall back to the welcome conversation.
func (s *UserSession) Load(ctx context.Context) {
	if s.userId == 0 {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return
		}
		s.welcomeLocked()
		return
	}

	messages, err := s.store.LoadMessagesByUser(ctx, s.userId)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if err != nil {
		slog.Error("error loading user chats", "user_id", s.userId, "error", err)
		s.welcomeLocked()
		return
	}

	s.messages = messages
	if len(messages) == 0 {
		s.current = ""
		s.inputOn = true
		return
	}

	chats := UserChats(Group(messages))
	s.current = chats[0].Chat
	s.gateInputLocked()
}

// Send appends the text as a new user message. The append is optimistic:
// the message joins local state keyed by a fresh client id whether or not
// the store call succeeded, and input stays disabled until the next load or
// until an answer arrives.
func (s *UserSession) Send(ctx context.Context, text string) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Message{}, ErrSessionClosed
	}
	if !s.inputOn {
		return Message{}, ErrInputDisabled
	}

	s.inputOn = false

	now := time.Now().UTC()
	msg := Message{
		Id:        now.UnixMilli(),
		UserId:    s.userId,
		Chat:      s.current,
		Text:      text,
		Active:    true,
		Answer:    false,
		CreatedAt: now,
		Key:       uuid.New(),
	}

	if err := s.store.InsertMessage(ctx, msg); err != nil {
		// The optimistic append is kept even when the insert fails; the
		// failure surfaces only in the log.
		slog.Error("error sending message", "user_id", s.userId, "chat", s.current, "error", err)
	}
	s.messages = append(s.messages, msg)

	return msg, nil
}

// NewChat starts a conversation purely client-side: a fresh numeric id from
// the current timestamp, no store row until the first message is sent.
func (s *UserSession) NewChat() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrSessionClosed
	}

	chat := strconv.FormatInt(time.Now().UnixMilli(), 10)
	s.current = chat
	s.messages = withoutChat(s.messages, chat)
	s.inputOn = true
	return chat, nil
}

// Select opens one of the user's chats.
func (s *UserSession) Select(chat string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if _, ok := Group(s.messages)[chat]; !ok {
		return ErrUnknownChat
	}

	s.current = chat
	s.gateInputLocked()
	return nil
}

func (s *UserSession) View() UserView {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := ChatMessages(s.messages, s.current)
	if s.userId == 0 {
		// The welcome conversation is unbound, so it groups under a
		// synthetic key; anonymous visitors always see the whole set.
		messages = append([]Message(nil), s.messages...)
	}

	return UserView{
		Current:      s.current,
		InputEnabled: s.inputOn,
		Messages:     messages,
		Chats:        UserChats(Group(s.messages)),
	}
}

func (s *UserSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *UserSession) welcomeLocked() {
	s.messages = []Message{{
		Id:        1,
		Text:      WelcomeText,
		Active:    true,
		Answer:    true,
		CreatedAt: time.Now().UTC(),
	}}
	s.current = ""
	s.inputOn = true
}

// gateInputLocked enables input only when the open chat's latest message is
// an admin answer (or the chat is empty): one user message at a time.
func (s *UserSession) gateInputLocked() {
	chatMessages := ChatMessages(s.messages, s.current)
	if len(chatMessages) == 0 {
		s.inputOn = true
		return
	}
	s.inputOn = chatMessages[len(chatMessages)-1].Answer
}
