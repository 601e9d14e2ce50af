package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stardylog/backend/internal/auth"
	"github.com/stardylog/backend/internal/service"
)

// SubjectHandler exposes the caller's subjects under /api/subjects.
type SubjectHandler struct {
	subjects *service.SubjectService
	logger   *slog.Logger
}

func NewSubjectHandler(subjects *service.SubjectService, logger *slog.Logger) *SubjectHandler {
	return &SubjectHandler{subjects: subjects, logger: logger}
}

type subjectRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// HandleList handles GET /api/subjects.
func (h *SubjectHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	uid, err := auth.SubjectIDFromContext(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	subjects, err := h.subjects.List(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subjects)
}

// HandleCreate handles POST /api/subjects.
func (h *SubjectHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	uid, err := auth.SubjectIDFromContext(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	var req subjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	subject, err := h.subjects.Create(r.Context(), uid, req.Name, req.Color)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, subject) // 201 Created
}

// HandleUpdate handles PUT /api/subjects/{id}.
func (h *SubjectHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	uid, err := auth.SubjectIDFromContext(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	var req subjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	subject, err := h.subjects.Update(r.Context(), uid, chi.URLParam(r, "id"), req.Name, req.Color)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subject)
}

// HandleDelete handles DELETE /api/subjects/{id}.
func (h *SubjectHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	uid, err := auth.SubjectIDFromContext(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.subjects.Delete(r.Context(), uid, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent) // 204 No Content
}
