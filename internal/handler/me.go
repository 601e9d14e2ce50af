package handler

import (
	"log/slog"
	"net/http"

	"github.com/stardylog/backend/internal/auth"
	"github.com/stardylog/backend/internal/service"
)

// MeHandler serves the caller's own profile.
//
// There is no login endpoint: clients sign in with the identity provider's
// SDK and send the ID token on every request. By the time these handlers
// run, auth.Admission has verified the token and provisioned the user row.
type MeHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

func NewMeHandler(users *service.UserService, logger *slog.Logger) *MeHandler {
	return &MeHandler{users: users, logger: logger}
}

// HandleMe handles GET /me.
func (h *MeHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	uid, err := auth.SubjectIDFromContext(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.Me(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type displayNameRequest struct {
	DisplayName string `json:"displayName"`
}

// HandleSetDisplayName handles POST /me/display-name.
func (h *MeHandler) HandleSetDisplayName(w http.ResponseWriter, r *http.Request) {
	uid, err := auth.SubjectIDFromContext(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	var req displayNameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.SetDisplayName(r.Context(), uid, req.DisplayName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
