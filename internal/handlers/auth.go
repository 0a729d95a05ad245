package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aimaster/apiserver/internal/metrics"
	"github.com/aimaster/apiserver/internal/services"
	"github.com/aimaster/apiserver/types"
)

// UserService is the account use-case surface the handlers need.
type UserService interface {
	Register(ctx context.Context, email, password, username string) (types.User, error)
	Authenticate(ctx context.Context, email, password string) (types.User, error)
	GetByID(ctx context.Context, id int) (types.User, error)
	AddCredits(ctx context.Context, id, amount int) (int, error)
}

// SessionStore issues and revokes bearer tokens.
type SessionStore interface {
	Issue(userID int) (string, error)
	Revoke(token string)
}

// AuthHandler provides registration, login and logout.
type AuthHandler struct {
	users    UserService
	sessions SessionStore
	cookies  *SessionCookies
}

// NewAuthHandler constructs an AuthHandler. cookies may be nil.
func NewAuthHandler(users UserService, sessions SessionStore, cookies *SessionCookies) *AuthHandler {
	return &AuthHandler{users: users, sessions: sessions, cookies: cookies}
}

// AuthRouter registers the public auth routes and the guarded logout.
func AuthRouter(r chi.Router, handler *AuthHandler, requireUser func(http.Handler) http.Handler) {
	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.With(requireUser).Post("/logout", handler.Logout)
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Username string `json:"username" validate:"omitempty,max=64,excludesall=@"`
}

type RegisterResponse struct {
	ID       int    `json:"id,string"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	ID    int    `json:"id,string"`
	Email string `json:"email"`
	Token string `json:"token"`
}

// Register creates an account. It does not log the user in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	if err := validate.Struct(req); err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("register", "invalid").Inc()
		writeServiceError(w, r, err, "failed to create user")
		return
	}

	user, err := h.users.Register(r.Context(), req.Email, req.Password, req.Username)
	if err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("register", registerResult(err)).Inc()
		writeServiceError(w, r, err, "failed to create user")
		return
	}
	metrics.AuthAttemptsTotal.WithLabelValues("register", "ok").Inc()

	writeJSON(w, http.StatusCreated, RegisterResponse{ID: user.ID, Email: user.Email, Username: user.Username})
}

// Login checks the credentials, issues a bearer token and sets the browser
// session cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeServiceError(w, r, err, "failed to authenticate")
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		result := "error"
		if errors.Is(err, services.ErrInvalidCredentials) {
			result = "invalid"
		}
		metrics.AuthAttemptsTotal.WithLabelValues("login", result).Inc()
		writeServiceError(w, r, err, "failed to authenticate")
		return
	}

	token, err := h.sessions.Issue(user.ID)
	if err != nil {
		writeServiceError(w, r, err, "failed to create token")
		return
	}
	if err := h.cookies.Set(w, user.ID); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Int("user_id", user.ID).Msg("session cookie not set")
	}
	metrics.AuthAttemptsTotal.WithLabelValues("login", "ok").Inc()

	writeJSON(w, http.StatusOK, LoginResponse{ID: user.ID, Email: user.Email, Token: token})
}

// Logout revokes the presented bearer token, if any, and clears the session
// cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := bearerToken(r); token != "" {
		h.sessions.Revoke(token)
	}
	h.cookies.Clear(w)
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func registerResult(err error) string {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		return "invalid"
	case errors.Is(err, services.ErrEmailTaken), errors.Is(err, services.ErrUsernameTaken):
		return "conflict"
	default:
		return "error"
	}
}
