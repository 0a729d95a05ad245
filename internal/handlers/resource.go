package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aimaster/apiserver/internal/services"
	"github.com/aimaster/apiserver/types"
)

// ResourceService is the owner-scoped deck and routine surface.
type ResourceService interface {
	ListDecks(ctx context.Context, ownerID int) ([]types.Deck, error)
	GetDeck(ctx context.Context, ownerID, id int) (types.Deck, error)
	CreateDeck(ctx context.Context, ownerID int, in services.DeckInput) (types.Deck, error)
	UpdateDeck(ctx context.Context, ownerID, id int, in services.DeckInput) (types.Deck, error)
	DeleteDeck(ctx context.Context, ownerID, id int) error

	ListRoutines(ctx context.Context, ownerID int) ([]types.Routine, error)
	GetRoutine(ctx context.Context, ownerID, id int) (types.Routine, error)
	CreateRoutine(ctx context.Context, ownerID int, in services.RoutineInput) (types.Routine, error)
	UpdateRoutine(ctx context.Context, ownerID, id int, in services.RoutineInput) (types.Routine, error)
	DeleteRoutine(ctx context.Context, ownerID, id int) error
}

// ResourceHandler serves decks and routines of the calling user.
type ResourceHandler struct {
	resources ResourceService
}

func NewResourceHandler(resources ResourceService) *ResourceHandler {
	return &ResourceHandler{resources: resources}
}

// DeckRouter registers deck routes. Every route requires a caller.
func DeckRouter(r chi.Router, handler *ResourceHandler) {
	r.Get("/", handler.ListDecks)
	r.Post("/", handler.CreateDeck)
	r.Route("/{deckID}", func(r chi.Router) {
		r.Get("/", handler.GetDeck)
		r.Put("/", handler.UpdateDeck)
		r.Delete("/", handler.DeleteDeck)
	})
}

// RoutineRouter registers routine routes. Every route requires a caller.
func RoutineRouter(r chi.Router, handler *ResourceHandler) {
	r.Get("/", handler.ListRoutines)
	r.Post("/", handler.CreateRoutine)
	r.Route("/{routineID}", func(r chi.Router) {
		r.Get("/", handler.GetRoutine)
		r.Put("/", handler.UpdateRoutine)
		r.Delete("/", handler.DeleteRoutine)
	})
}

func (h *ResourceHandler) ListDecks(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := callerID(w, r)
	if !ok {
		return
	}
	decks, err := h.resources.ListDecks(r.Context(), ownerID)
	if err != nil {
		writeServiceError(w, r, err, "failed to list decks")
		return
	}
	writeJSON(w, http.StatusOK, decks)
}

func (h *ResourceHandler) GetDeck(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := callerID(w, r)
	if !ok {
		return
	}
	id, err := parseID(r, "deckID")
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	deck, err := h.resources.GetDeck(r.Context(), ownerID, id)
	if err != nil {
		writeServiceError(w, r, err, "failed to fetch deck")
		return
	}
	writeJSON(w, http.StatusOK, deck)
}

func (h *ResourceHandler) CreateDeck(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := callerID(w, r)
	if !ok {
		return
	}
	var body fields
	if err := decodeJSON(w, r, &body); err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	in, err := parseDeckInput(body)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	deck, err := h.resources.CreateDeck(r.Context(), ownerID, in)
	if err != nil {
		writeServiceError(w, r, err, "failed to create deck")
		return
	}
	writeJSON(w, http.StatusCreated, deck)
}

func (h *ResourceHandler) UpdateDeck(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := callerID(w, r)
	if !ok {
		return
	}
	id, err := parseID(r, "deckID")
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	var body fields
	if err := decodeJSON(w, r, &body); err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	in, err := parseDeckInput(body)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	deck, err := h.resources.UpdateDeck(r.Context(), ownerID, id, in)
	if err != nil {
		writeServiceError(w, r, err, "failed to update deck")
		return
	}
	writeJSON(w, http.StatusOK, deck)
}

func (h *ResourceHandler) DeleteDeck(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := callerID(w, r)
	if !ok {
		return
	}
	id, err := parseID(r, "deckID")
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	if err := h.resources.DeleteDeck(r.Context(), ownerID, id); err != nil {
		writeServiceError(w, r, err, "failed to delete deck")
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func (h *ResourceHandler) ListRoutines(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := callerID(w, r)
	if !ok {
		return
	}
	routines, err := h.resources.ListRoutines(r.Context(), ownerID)
	if err != nil {
		writeServiceError(w, r, err, "failed to list routines")
		return
	}
	writeJSON(w, http.StatusOK, routines)
}

func (h *ResourceHandler) GetRoutine(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := callerID(w, r)
	if !ok {
		return
	}
	id, err := parseID(r, "routineID")
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	routine, err := h.resources.GetRoutine(r.Context(), ownerID, id)
	if err != nil {
		writeServiceError(w, r, err, "failed to fetch routine")
		return
	}
	writeJSON(w, http.StatusOK, routine)
}

func (h *ResourceHandler) CreateRoutine(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := callerID(w, r)
	if !ok {
		return
	}
	var body fields
	if err := decodeJSON(w, r, &body); err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	in, err := parseRoutineInput(body)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	routine, err := h.resources.CreateRoutine(r.Context(), ownerID, in)
	if err != nil {
		writeServiceError(w, r, err, "failed to create routine")
		return
	}
	writeJSON(w, http.StatusCreated, routine)
}

func (h *ResourceHandler) UpdateRoutine(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := callerID(w, r)
	if !ok {
		return
	}
	id, err := parseID(r, "routineID")
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	var body fields
	if err := decodeJSON(w, r, &body); err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	in, err := parseRoutineInput(body)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	routine, err := h.resources.UpdateRoutine(r.Context(), ownerID, id, in)
	if err != nil {
		writeServiceError(w, r, err, "failed to update routine")
		return
	}
	writeJSON(w, http.StatusOK, routine)
}

func (h *ResourceHandler) DeleteRoutine(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := callerID(w, r)
	if !ok {
		return
	}
	id, err := parseID(r, "routineID")
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	if err := h.resources.DeleteRoutine(r.Context(), ownerID, id); err != nil {
		writeServiceError(w, r, err, "failed to delete routine")
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// callerID writes the authentication error itself when the guard did not run.
func callerID(w http.ResponseWriter, r *http.Request) (int, bool) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return 0, false
	}
	return userID, true
}
