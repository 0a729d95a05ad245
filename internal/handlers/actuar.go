package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/aimaster/apiserver/internal/services"
	"github.com/aimaster/apiserver/types"
)

// ActuarService is the publish surface.
type ActuarService interface {
	Publish(ctx context.Context, userID int, text string) (services.PublishResult, error)
	Init(ctx context.Context, userID int, values []string) ([]string, error)
	Publish2(ctx context.Context, userID int, value, text string) (services.PublishResult, error)
}

// LookupService resolves public identifiers.
type LookupService interface {
	Resolve(ctx context.Context, identifier string) (types.PublishRecord, error)
}

// ActuarHandler serves both publish flows and the public lookup.
type ActuarHandler struct {
	actuar ActuarService
	lookup LookupService
}

func NewActuarHandler(actuar ActuarService, lookup LookupService) *ActuarHandler {
	return &ActuarHandler{actuar: actuar, lookup: lookup}
}

// ActuarRouter registers the publish routes under the guard and the lookup
// without it.
func ActuarRouter(r chi.Router, handler *ActuarHandler, requireUser func(http.Handler) http.Handler) {
	r.With(requireUser).Post("/actuar", handler.Publish)
	r.With(requireUser).Post("/actuar2/init", handler.Init)
	r.With(requireUser).Post("/actuar2", handler.Publish2)
	r.Get("/actuar/{identifier}", handler.Lookup)
}

type PublishRequest struct {
	Text *string `json:"text" validate:"required"`
}

type PublishResponse struct {
	Success bool                `json:"success"`
	Actuar  types.PublishRecord `json:"actuar"`
	Static  types.Artifact      `json:"static"`
}

type InitRequest struct {
	Values *[]string `json:"values" validate:"required"`
}

type InitResponse struct {
	Values []string `json:"values"`
}

type Publish2Request struct {
	Value *string `json:"value" validate:"required"`
	Text  *string `json:"text" validate:"required"`
}

type Publish2Response struct {
	Success bool           `json:"success"`
	Value   string         `json:"value"`
	Static  types.Artifact `json:"static"`
}

// Publish replaces the caller's published text. An artifact failure is
// reported under "static" with a 200.
func (h *ActuarHandler) Publish(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req PublishRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeServiceError(w, r, err, "failed to publish")
		return
	}

	res, err := h.actuar.Publish(r.Context(), userID, *req.Text)
	if err != nil {
		writeServiceError(w, r, err, "failed to publish")
		return
	}
	writeJSON(w, http.StatusOK, PublishResponse{Success: true, Actuar: res.Record, Static: res.Artifact})
}

func (h *ActuarHandler) Init(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req InitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeServiceError(w, r, err, "failed to initialize")
		return
	}

	values, err := h.actuar.Init(r.Context(), userID, *req.Values)
	if err != nil {
		writeServiceError(w, r, err, "failed to initialize")
		return
	}
	writeJSON(w, http.StatusOK, InitResponse{Values: values})
}

func (h *ActuarHandler) Publish2(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req Publish2Request
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeServiceError(w, r, err, "failed to publish")
		return
	}

	res, err := h.actuar.Publish2(r.Context(), userID, *req.Value, *req.Text)
	if err != nil {
		writeServiceError(w, r, err, "failed to publish")
		return
	}
	writeJSON(w, http.StatusOK, Publish2Response{Success: true, Value: res.Value, Static: res.Artifact})
}

// Lookup is public: it resolves an email, username or email local-part.
func (h *ActuarHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	identifier, err := url.PathUnescape(chi.URLParam(r, "identifier"))
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	record, err := h.lookup.Resolve(r.Context(), strings.TrimSpace(identifier))
	if err != nil {
		writeServiceError(w, r, err, "failed to resolve")
		return
	}
	writeJSON(w, http.StatusOK, record)
}
