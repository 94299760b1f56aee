// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/listkeeper/listkeeper/internal/config"
	"github.com/listkeeper/listkeeper/internal/handler/dto"
)

// Version is reported by the index endpoint.
const Version = "0.1.0"

// Handler serves the unauthenticated service endpoints.
type Handler struct {
	projects *config.Projects
}

// New creates a new Handler instance.
func New(projects *config.Projects) *Handler {
	return &Handler{projects: projects}
}

// ServiceInfo describes the running service.
type ServiceInfo struct {
	Service  string   `json:"service"`
	Version  string   `json:"version"`
	Projects []string `json:"projects"`
}

// Index reports the service name and the projects it serves.
// GET /
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	info := ServiceInfo{
		Service:  "listkeeper",
		Version:  Version,
		Projects: []string{},
	}
	if h.projects != nil {
		for _, p := range h.projects.All() {
			info.Projects = append(info.Projects, p.Name)
		}
	}
	writeJSON(w, http.StatusOK, info)
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeErrorJSON(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeErrorJSON(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeErrorJSON writes the standard error envelope.
func writeErrorJSON(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{Error: message, Code: code})
}
