package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// UserHandler serves the caller's account and credit balance.
type UserHandler struct {
	users UserService
}

func NewUserHandler(users UserService) *UserHandler {
	return &UserHandler{users: users}
}

// UserRouter registers the account routes. Every route requires a caller.
func UserRouter(r chi.Router, handler *UserHandler) {
	r.Get("/", handler.Me)
	r.Get("/credits", handler.Credits)
	r.Post("/credits", handler.AddCredits)
}

type UserResponse struct {
	ID       int    `json:"id,string"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
	Credits  int    `json:"credits"`
}

type CreditsRequest struct {
	Amount int `json:"amount" validate:"gt=0,lte=2147483647"`
}

type CreditsResponse struct {
	Credits int `json:"credits"`
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err, "failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, UserResponse{
		ID:       user.ID,
		Email:    user.Email,
		Username: user.Username,
		Credits:  user.Credits,
	})
}

func (h *UserHandler) Credits(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err, "failed to load credits")
		return
	}
	writeJSON(w, http.StatusOK, CreditsResponse{Credits: user.Credits})
}

// AddCredits adds a positive amount to the caller's balance.
func (h *UserHandler) AddCredits(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req CreditsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeServiceError(w, r, err, "failed to add credits")
		return
	}

	credits, err := h.users.AddCredits(r.Context(), userID, req.Amount)
	if err != nil {
		writeServiceError(w, r, err, "failed to add credits")
		return
	}
	writeJSON(w, http.StatusOK, CreditsResponse{Credits: credits})
}
