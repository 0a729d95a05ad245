package handlers

import (
	"net/http"

	"github.com/aimaster/apiserver/internal/catalog"
)

// ConfigHandler serves the public node catalog.
type ConfigHandler struct {
	catalog catalog.Catalog
}

func NewConfigHandler(c catalog.Catalog) *ConfigHandler {
	return &ConfigHandler{catalog: c}
}

func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog)
}

// Healthz reports that the process is serving.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not found")
}

func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
