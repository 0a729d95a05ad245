package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/aimaster/apiserver/internal/services"
	"github.com/aimaster/apiserver/internal/store"
)

// writeServiceError maps err to a status code and a client-safe message.
// Unexpected errors are logged and answered with fallback.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status, msg := resolveError(err)
	if status == http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("unhandled error")
		msg = fallback
	}
	writeError(w, status, msg)
}

func resolveError(err error) (int, string) {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, verr.Message
	}

	switch {
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, services.ErrEmailTaken):
		return http.StatusConflict, "email already registered"
	case errors.Is(err, services.ErrUsernameTaken):
		return http.StatusConflict, "username already taken"
	case errors.Is(err, services.ErrDeckNotFound):
		return http.StatusNotFound, "deck not found or unauthorized"
	case errors.Is(err, services.ErrUserNotFound):
		return http.StatusNotFound, "user not found"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, services.ErrNotInitialized):
		return http.StatusConflict, "not initialized"
	}
	return http.StatusInternalServerError, "internal server error"
}
