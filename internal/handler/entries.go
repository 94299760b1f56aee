package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/listkeeper/listkeeper/internal/config"
	"github.com/listkeeper/listkeeper/internal/handler/dto"
	"github.com/listkeeper/listkeeper/internal/service"
)

// EntriesHandler serves read-only access to recorded allow list entries.
type EntriesHandler struct {
	svc      *service.EntryService
	projects *config.Projects
	logger   *slog.Logger
}

// NewEntriesHandler creates a new EntriesHandler.
func NewEntriesHandler(svc *service.EntryService, projects *config.Projects, logger *slog.Logger) *EntriesHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EntriesHandler{
		svc:      svc,
		projects: projects,
		logger:   logger,
	}
}

// List handles GET /api/v1/projects/{project}/entries.
// Repeat the list parameter to include several lists.
func (h *EntriesHandler) List(w http.ResponseWriter, r *http.Request) {
	project, ok := h.project(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()

	limit := 20
	if l := query.Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	result, err := h.svc.ListEntries(r.Context(), service.ListEntriesInput{
		Project:   project,
		ListNames: query["list"],
		Cursor:    query.Get("cursor"),
		Limit:     limit,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToEntryListResponse(result.Entries, result.NextCursor, result.HasMore))
}

// Count handles GET /api/v1/projects/{project}/entries/count.
func (h *EntriesHandler) Count(w http.ResponseWriter, r *http.Request) {
	project, ok := h.project(w, r)
	if !ok {
		return
	}

	listName := r.URL.Query().Get("list")
	count, err := h.svc.Count(r.Context(), project, listName)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.CountResponse{Project: project, ListName: listName, Count: count})
}

// GetUser handles GET /api/v1/projects/{project}/users/{userID}.
// Without a list parameter the user's most recent entry is returned.
func (h *EntriesHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	project, ok := h.project(w, r)
	if !ok {
		return
	}

	userID, err := service.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "INVALID_USER_ID", "User ID must be a numeric snowflake")
		return
	}

	entry, err := h.svc.Lookup(r.Context(), project, userID, r.URL.Query().Get("list"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToEntryResponse(entry))
}

// project resolves the {project} path parameter against the configured projects.
func (h *EntriesHandler) project(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := chi.URLParam(r, "project")
	if h.projects != nil {
		if _, ok := h.projects.ByName(name); !ok {
			writeErrorJSON(w, http.StatusNotFound, "PROJECT_NOT_FOUND", "Project not found")
			return "", false
		}
	}
	return name, true
}

func (h *EntriesHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrEntryNotFound):
		writeErrorJSON(w, http.StatusNotFound, "ENTRY_NOT_FOUND", "Entry not found")
	case errors.Is(err, service.ErrInvalidCursor):
		writeErrorJSON(w, http.StatusBadRequest, "INVALID_CURSOR", "Invalid pagination cursor")
	case errors.Is(err, service.ErrStoreUnavailable):
		h.logger.Error("entry store unavailable", "path", r.URL.Path, "error", err)
		writeErrorJSON(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Entry store unavailable")
	default:
		h.logger.Error("unexpected service error", "path", r.URL.Path, "error", err)
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}
