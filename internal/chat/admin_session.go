package chat

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrSessionClosed  = errors.New("session is closed")
	ErrNoChatSelected = errors.New("no chat selected")
	ErrChatAnonymous  = errors.New("chat has no bound user, it can only be skipped")
	ErrUnknownChat    = errors.New("chat not found")
	ErrInputDisabled  = errors.New("input is disabled")
)

// AdminSession is the admin operator's view controller. It holds the set of
// pending (active) messages, the currently open chat and the input gate, and
// rotates through the pending queue oldest-first as chats are answered or
// skipped. All state transitions are serialized behind one mutex; a closed
// session discards in-flight results instead of mutating torn-down state.
type AdminSession struct {
	mu       sync.Mutex
	store    Store
	messages []Message
	current  string
	inputOn  bool
	closed   bool
}

func NewAdminSession(store Store) *AdminSession {
	return &AdminSession{store: store}
}

// AdminView is an immutable snapshot of the controller state.
type AdminView struct {
	Current      string
	InputEnabled bool
	Messages     []Message
	Queue        []*Conversation
}

// Load fetches all pending messages and opens the chat whose request has
// waited longest. A store failure resets to the empty, input-disabled view;
// the error never propagates past the snapshot.
func (s *AdminSession) Load(ctx context.Context) {
	messages, err := s.store.LoadActiveMessages(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if err != nil {
		slog.Error("error loading admin queue", "error", err)
		s.messages = nil
		s.current = ""
		s.inputOn = false
		return
	}

	s.messages = messages
	s.openFirstLocked()
}

// Reply stores an answer to the current chat, clears its pending messages,
// and advances to the next-oldest pending chat. A store failure re-enables
// input and leaves the queue untouched.
func (s *AdminSession) Reply(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.current == "" {
		return ErrNoChatSelected
	}
	if !s.inputOn {
		return ErrInputDisabled
	}

	conversation, ok := Group(s.messages)[s.current]
	if !ok {
		return ErrUnknownChat
	}
	last := conversation.Last
	if !last.HasUser() {
		return ErrChatAnonymous
	}

	s.inputOn = false

	answer := Message{
		UserId:    last.UserId,
		Chat:      s.current,
		Text:      text,
		Active:    false,
		Answer:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.InsertMessage(ctx, answer); err != nil {
		s.inputOn = true
		return err
	}

	// A bound-user message sent without a chat groups under a synthetic
	// key that matches no stored chat column, so it is cleared directly.
	var clearErr error
	if conversation.Anonymous() {
		clearErr = s.store.MarkMessageInactive(ctx, conversation.First.Id)
	} else {
		clearErr = s.store.MarkChatInactiveForUser(ctx, s.current, last.UserId)
	}
	if clearErr != nil {
		// The reply itself is stored, so the chat is answered; the stale
		// active flags resurface on the next load at worst.
		slog.Error("error clearing pending flags after reply", "chat", s.current, "error", clearErr)
	}

	s.advanceLocked()
	return nil
}

// Skip dismisses the current chat without replying by marking its oldest
// pending message inactive, then advances exactly like after a send. This is
// the only action available on anonymous chats.
func (s *AdminSession) Skip(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.current == "" {
		return ErrNoChatSelected
	}

	conversation, ok := Group(s.messages)[s.current]
	if !ok {
		return ErrUnknownChat
	}
	if err := s.store.MarkMessageInactive(ctx, conversation.First.Id); err != nil {
		return err
	}

	s.advanceLocked()
	return nil
}

// Select opens a specific chat from the pending queue.
func (s *AdminSession) Select(chat string) error {
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

func (s *AdminSession) View() AdminView {
	s.mu.Lock()
	defer s.mu.Unlock()

	return AdminView{
		Current:      s.current,
		InputEnabled: s.inputOn,
		Messages:     ChatMessages(s.messages, s.current),
		Queue:        AdminQueue(Group(s.messages)),
	}
}

func (s *AdminSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *AdminSession) advanceLocked() {
	s.messages = withoutChat(s.messages, s.current)
	s.openFirstLocked()
}

func (s *AdminSession) openFirstLocked() {
	queue := AdminQueue(Group(s.messages))
	if len(queue) == 0 {
		s.current = ""
		s.inputOn = false
		return
	}
	s.current = queue[0].Chat
	s.gateInputLocked()
}

// gateInputLocked enables input only when the open chat's latest message has
// a bound user: anonymous chats cannot be replied to inline.
func (s *AdminSession) gateInputLocked() {
	chatMessages := ChatMessages(s.messages, s.current)
	if len(chatMessages) == 0 {
		s.inputOn = true
		return
	}
	s.inputOn = chatMessages[len(chatMessages)-1].HasUser()
}
