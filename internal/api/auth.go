package api

import (
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"support-backend/internal/auth"
	"support-backend/internal/database"
	"support-backend/pkg/api"
)

var emailRegexp = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const (
	minPasswordLength = 6
	maxPasswordLength = 30
)

type AuthService struct {
	db     *gorm.DB
	secret []byte
}

func NewAuthService(db *gorm.DB, secret []byte) *AuthService {
	return &AuthService{db: db, secret: secret}
}

func (s *AuthService) AddRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", RestResponseHandler(s.Register))
		r.Post("/login", RestResponseHandler(s.Login))
		r.Post("/logout", RestResponseHandler(s.Logout))
	})
}

// validateCredentials surfaces format problems per field, without touching
// the store.
func validateCredentials(email, password string) map[string]string {
	fieldErrors := make(map[string]string)
	if !emailRegexp.MatchString(email) {
		fieldErrors["email"] = "enter a valid email address"
	}
	if len(password) < minPasswordLength {
		fieldErrors["password"] = "password must be at least 6 characters"
	} else if len(password) > maxPasswordLength {
		fieldErrors["password"] = "password must be at most 30 characters"
	}
	if len(fieldErrors) == 0 {
		return nil
	}
	return fieldErrors
}

func (s *AuthService) Register(w http.ResponseWriter, r *http.Request) (any, error) {
	req, err := ParseRequest[api.RegisterRequest](r)
	if err != nil {
		return nil, err
	}

	email := strings.TrimSpace(req.Email)
	if fieldErrors := validateCredentials(email, req.Password); fieldErrors != nil {
		return api.AuthResponse{Success: false, Error: "check the entered values", FieldErrors: fieldErrors}, nil
	}

	ctx := r.Context()

	if _, err := database.FindUserByEmail(ctx, s.db, email); err == nil {
		return api.AuthResponse{
			Success:     false,
			Error:       "this email is already in use",
			FieldErrors: map[string]string{"email": "this email is already in use"},
		}, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, CodedErrorf(http.StatusInternalServerError, "error checking email: %w", err)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "error hashing password: %w", err)
	}

	user, err := database.CreateUser(ctx, s.db, email, hash, database.RoleUser)
	if err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "error creating user: %w", err)
	}

	if err := s.issueSession(w, user); err != nil {
		return nil, err
	}
	return api.AuthResponse{Success: true, Id: int64(user.Id), Role: user.Role}, nil
}

func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) (any, error) {
	req, err := ParseRequest[api.LoginRequest](r)
	if err != nil {
		return nil, err
	}

	email := strings.TrimSpace(req.Email)
	if fieldErrors := validateCredentials(email, req.Password); fieldErrors != nil {
		return api.AuthResponse{Success: false, Error: "check the entered values", FieldErrors: fieldErrors}, nil
	}

	// One generic message for unknown email and wrong password, so the
	// endpoint does not confirm which accounts exist.
	user, err := database.FindUserByEmail(r.Context(), s.db, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, CodedErrorf(http.StatusUnauthorized, "invalid email or password")
		}
		return nil, CodedErrorf(http.StatusInternalServerError, "error loading user")
	}
	if !auth.VerifyPassword(user.Password, req.Password) {
		return nil, CodedErrorf(http.StatusUnauthorized, "invalid email or password")
	}

	if err := s.issueSession(w, user); err != nil {
		return nil, err
	}
	return api.AuthResponse{Success: true, Id: int64(user.Id), Role: user.Role}, nil
}

func (s *AuthService) Logout(w http.ResponseWriter, r *http.Request) (any, error) {
	auth.ClearSessionCookie(w)
	return nil, nil
}

func (s *AuthService) issueSession(w http.ResponseWriter, user *database.User) error {
	token, expires, err := auth.SignSession(s.secret, int64(user.Id), user.Role)
	if err != nil {
		return CodedErrorf(http.StatusInternalServerError, "error issuing session: %w", err)
	}
	auth.SetSessionCookie(w, token, expires)
	return nil
}
