package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"support-backend/internal/analysis"
	"support-backend/internal/auth"
	"support-backend/internal/chat"
	"support-backend/pkg/api"
)

// Analyzer classifies a support question for the admin assist panel.
type Analyzer interface {
	Analyze(ctx context.Context, question string) (analysis.Result, error)
}

// maxMountedControllers bounds the number of live per-principal view
// controllers on each registry before the least recently used one is
// unmounted.
const maxMountedControllers = 256

// SupportService hosts the chat view controllers: one admin session per
// operator and one user session per authenticated user, each with its own
// periodic refresh scheduler. Anonymous visitors get an ephemeral session
// per request.
type SupportService struct {
	store    chat.Store
	secret   []byte
	admins   *chat.Registry[*chat.AdminSession]
	users    *chat.Registry[*chat.UserSession]
	refresh  time.Duration
	analyzer Analyzer // nil disables the analysis assist
}

func NewSupportService(db *gorm.DB, secret []byte, refreshInterval time.Duration, analyzer Analyzer) *SupportService {
	store := chat.NewStore(db)
	s := &SupportService{store: store, secret: secret, refresh: refreshInterval, analyzer: analyzer}

	s.admins = chat.NewRegistry(maxMountedControllers, func(id int64) (*chat.AdminSession, *chat.RefreshScheduler) {
		session := chat.NewAdminSession(store)
		session.Load(context.Background())
		scheduler := chat.NewRefreshScheduler(refreshInterval, func() {
			session.Load(context.Background())
		})
		return session, scheduler
	})

	s.users = chat.NewRegistry(maxMountedControllers, func(id int64) (*chat.UserSession, *chat.RefreshScheduler) {
		session := chat.NewUserSession(store, id)
		session.Load(context.Background())
		scheduler := chat.NewRefreshScheduler(refreshInterval, func() {
			session.Load(context.Background())
		})
		return session, scheduler
	})

	return s
}

func (s *SupportService) AddRoutes(r chi.Router) {
	r.Route("/support/chat", func(r chi.Router) {
		// Anonymous visitors may read the welcome chat and send a
		// single-turn message; everything else needs a session.
		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalSession(s.secret))
			r.Get("/", RestHandler(s.UserView))
			r.Post("/messages", RestHandler(s.SendMessage))
		})
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireSession(s.secret))
			r.Post("/new", RestHandler(s.NewChat))
			r.Post("/select", RestHandler(s.SelectChat))
			r.Post("/refresh", RestHandler(s.Refresh))
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(auth.RequireAdmin(s.secret))
		r.Get("/queue", RestHandler(s.AdminQueue))
		r.Post("/reply", RestHandler(s.AdminReply))
		r.Post("/skip", RestHandler(s.AdminSkip))
		r.Post("/select", RestHandler(s.AdminSelect))
		r.Post("/refresh", RestHandler(s.AdminRefresh))
		r.Post("/analyze", RestHandler(s.AdminAnalyze))
	})
}

// Close unmounts every live controller.
func (s *SupportService) Close() {
	s.admins.CloseAll()
	s.users.CloseAll()
}

// userSession resolves the caller's controller: the mounted one for
// authenticated users, a loaded ephemeral one for anonymous visitors.
func (s *SupportService) userSession(r *http.Request) (*chat.UserSession, *chat.RefreshScheduler) {
	if claims, ok := auth.SessionFromContext(r.Context()); ok {
		return s.users.Get(claims.UserId)
	}
	session := chat.NewUserSession(s.store, 0)
	session.Load(r.Context())
	return session, nil
}

func (s *SupportService) UserView(r *http.Request) (any, error) {
	session, _ := s.userSession(r)
	return userViewResponse(session.View()), nil
}

func (s *SupportService) SendMessage(r *http.Request) (any, error) {
	req, err := ParseRequest[api.SendMessageRequest](r)
	if err != nil {
		return nil, err
	}
	if req.Text == "" {
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "message text is required")
	}

	session, scheduler := s.userSession(r)
	msg, err := session.Send(r.Context(), req.Text)
	if err != nil {
		return nil, chatError(err)
	}
	if scheduler != nil {
		scheduler.MarkSend()
	}

	return api.SendMessageResponse{Message: toApiMessage(msg)}, nil
}

func (s *SupportService) NewChat(r *http.Request) (any, error) {
	session, _ := s.userSession(r)
	chatId, err := session.NewChat()
	if err != nil {
		return nil, chatError(err)
	}
	return api.NewChatResponse{Chat: chatId}, nil
}

func (s *SupportService) SelectChat(r *http.Request) (any, error) {
	params, err := ParseRequestQueryParams[api.SelectChatParams](r)
	if err != nil {
		return nil, err
	}

	session, _ := s.userSession(r)
	if err := session.Select(params.Chat); err != nil {
		return nil, chatError(err)
	}
	return userViewResponse(session.View()), nil
}

func (s *SupportService) Refresh(r *http.Request) (any, error) {
	session, _ := s.userSession(r)
	session.Load(r.Context())
	return userViewResponse(session.View()), nil
}

func (s *SupportService) adminSession(r *http.Request) (*chat.AdminSession, *chat.RefreshScheduler, error) {
	claims, ok := auth.SessionFromContext(r.Context())
	if !ok {
		return nil, nil, CodedErrorf(http.StatusUnauthorized, "missing session")
	}
	session, scheduler := s.admins.Get(claims.UserId)
	return session, scheduler, nil
}

func (s *SupportService) AdminQueue(r *http.Request) (any, error) {
	session, _, err := s.adminSession(r)
	if err != nil {
		return nil, err
	}
	return adminViewResponse(session.View()), nil
}

func (s *SupportService) AdminReply(r *http.Request) (any, error) {
	req, err := ParseRequest[api.ReplyRequest](r)
	if err != nil {
		return nil, err
	}
	if req.Text == "" {
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "reply text is required")
	}

	session, scheduler, err := s.adminSession(r)
	if err != nil {
		return nil, err
	}
	if err := session.Reply(r.Context(), req.Text); err != nil {
		return nil, chatError(err)
	}
	scheduler.MarkSend()

	return adminViewResponse(session.View()), nil
}

func (s *SupportService) AdminSkip(r *http.Request) (any, error) {
	session, _, err := s.adminSession(r)
	if err != nil {
		return nil, err
	}
	if err := session.Skip(r.Context()); err != nil {
		return nil, chatError(err)
	}
	return adminViewResponse(session.View()), nil
}

func (s *SupportService) AdminSelect(r *http.Request) (any, error) {
	params, err := ParseRequestQueryParams[api.SelectChatParams](r)
	if err != nil {
		return nil, err
	}

	session, _, err := s.adminSession(r)
	if err != nil {
		return nil, err
	}
	if err := session.Select(params.Chat); err != nil {
		return nil, chatError(err)
	}
	return adminViewResponse(session.View()), nil
}

func (s *SupportService) AdminRefresh(r *http.Request) (any, error) {
	session, _, err := s.adminSession(r)
	if err != nil {
		return nil, err
	}
	session.Load(r.Context())
	return adminViewResponse(session.View()), nil
}

// AdminAnalyze runs the analysis assist on the opening question of the
// admin's current chat. It is read-only: controller state and the store are
// untouched.
func (s *SupportService) AdminAnalyze(r *http.Request) (any, error) {
	if s.analyzer == nil {
		return nil, CodedErrorf(http.StatusServiceUnavailable, "analysis is not configured")
	}

	session, _, err := s.adminSession(r)
	if err != nil {
		return nil, err
	}

	view := session.View()
	if view.Current == "" || len(view.Messages) == 0 {
		return nil, chatError(chat.ErrNoChatSelected)
	}

	result, err := s.analyzer.Analyze(r.Context(), view.Messages[0].Text)
	if err != nil {
		return nil, CodedErrorf(http.StatusBadGateway, "analysis failed: %v", err)
	}

	return api.AnalysisResponse{
		Score:           result.Score,
		OfferedResponse: result.OfferedResponse,
		MainCategory:    result.MainCategory,
		SubCategory:     result.SubCategory,
	}, nil
}

// chatError translates controller errors into HTTP status codes.
func chatError(err error) error {
	switch {
	case errors.Is(err, chat.ErrUnknownChat):
		return CodedError(http.StatusNotFound, err)
	case errors.Is(err, chat.ErrNoChatSelected),
		errors.Is(err, chat.ErrChatAnonymous),
		errors.Is(err, chat.ErrInputDisabled):
		return CodedError(http.StatusUnprocessableEntity, err)
	case errors.Is(err, chat.ErrSessionClosed):
		return CodedError(http.StatusServiceUnavailable, err)
	default:
		return err
	}
}

func toApiMessage(m chat.Message) api.Message {
	return api.Message{
		Id:        m.Id,
		User:      m.UserId,
		Text:      m.Text,
		Active:    m.Active,
		Answer:    m.Answer,
		Chat:      m.Chat,
		CreatedAt: chat.FormatDisplayTime(m.CreatedAt),
		Key:       m.Key,
	}
}

func toApiMessages(messages []chat.Message) []api.Message {
	out := make([]api.Message, len(messages))
	for i, m := range messages {
		out[i] = toApiMessage(m)
	}
	return out
}

func userViewResponse(view chat.UserView) api.ChatView {
	conversations := make([]api.Conversation, len(view.Chats))
	for i, c := range view.Chats {
		conversations[i] = api.Conversation{
			Chat:         c.Chat,
			HasUser:      c.Last.HasUser(),
			Unread:       c.Unread(),
			MessageCount: c.Count,
			LastActivity: chat.FormatDisplayTime(c.Last.CreatedAt),
		}
	}
	return api.ChatView{
		CurrentChat:   view.Current,
		InputEnabled:  view.InputEnabled,
		Messages:      toApiMessages(view.Messages),
		Conversations: conversations,
	}
}

func adminViewResponse(view chat.AdminView) api.ChatView {
	conversations := make([]api.Conversation, len(view.Queue))
	for i, c := range view.Queue {
		conversations[i] = api.Conversation{
			Chat:         c.Chat,
			HasUser:      c.Last.HasUser(),
			Unread:       c.Unread(),
			MessageCount: c.Count,
			LastActivity: chat.FormatDisplayTime(c.Last.CreatedAt),
			PendingSince: chat.FormatDisplayTime(c.First.CreatedAt),
		}
	}
	return api.ChatView{
		CurrentChat:   view.Current,
		InputEnabled:  view.InputEnabled,
		Messages:      toApiMessages(view.Messages),
		Conversations: conversations,
	}
}
