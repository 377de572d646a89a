package api

import "github.com/google/uuid"

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse mirrors the inline form state: validation failures come back
// with Success=false and per-field messages instead of an error status.
type AuthResponse struct {
	Success     bool              `json:"success"`
	Id          int64             `json:"id,omitempty"`
	Role        string            `json:"role,omitempty"`
	Error       string            `json:"error,omitempty"`
	FieldErrors map[string]string `json:"field_errors,omitempty"`
}

// Message timestamps are rendered in the "HH:MM DD.MM.YYYY" display format;
// ordering is decided server-side on the raw instants. Key is present only
// on the optimistic echo of a just-sent message.
type Message struct {
	Id        int64     `json:"id"`
	User      int64     `json:"user,omitempty"`
	Text      string    `json:"text"`
	Active    bool      `json:"active"`
	Answer    bool      `json:"answer"`
	Chat      string    `json:"chat,omitempty"`
	CreatedAt string    `json:"created_at"`
	Key       uuid.UUID `json:"key,omitempty"`
}

type Conversation struct {
	Chat         string `json:"chat"`
	HasUser      bool   `json:"has_user"`
	Unread       bool   `json:"unread"`
	MessageCount int    `json:"message_count"`
	LastActivity string `json:"last_activity"`
	PendingSince string `json:"pending_since,omitempty"`
}

// ChatView is the controller snapshot served to both the end-user page and
// the admin queue page.
type ChatView struct {
	CurrentChat   string         `json:"current_chat"`
	InputEnabled  bool           `json:"input_enabled"`
	Messages      []Message      `json:"messages"`
	Conversations []Conversation `json:"conversations"`
}

type SendMessageRequest struct {
	Text string `json:"text"`
}

type SendMessageResponse struct {
	Message Message `json:"message"`
}

type ReplyRequest struct {
	Text string `json:"text"`
}

type NewChatResponse struct {
	Chat string `json:"chat"`
}

// AnalysisResponse is the assist verdict for the admin's current chat: the
// likely category pair, a suggested reply the operator can copy, and the
// match confidence.
type AnalysisResponse struct {
	Score           float64 `json:"score"`
	OfferedResponse string  `json:"offered_response"`
	MainCategory    string  `json:"main_category"`
	SubCategory     string  `json:"sub_category"`
}

type SelectChatParams struct {
	Chat string `schema:"chat,required"`
}
