package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/quran-notes/internal/auth"
	"github.com/sakif/quran-notes/internal/model"
	"github.com/sakif/quran-notes/internal/service"
)

// AdminHandler serves account administration. The admin check itself lives
// in AuthService; these routes only need an authenticated caller.
type AdminHandler struct {
	auth   *service.AuthService
	logger *slog.Logger
}

func NewAdminHandler(authService *service.AuthService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{auth: authService, logger: logger}
}

// HandleApprove approves a registered account.
//
// HTTP: POST /api/admin/users/{id}/approve
func (h *AdminHandler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.ApproveUser(r.Context(), auth.ActorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type roleRequest struct {
	Role model.Role `json:"role"`
}

// HandleSetRole changes an account's role.
//
// HTTP: PUT /api/admin/users/{id}/role
// REQUEST BODY: {"role": "ulama"}
func (h *AdminHandler) HandleSetRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.auth.SetRole(r.Context(), auth.ActorFromContext(r.Context()), chi.URLParam(r, "id"), req.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleListUnapproved lists accounts waiting for approval.
//
// HTTP: GET /api/admin/users/unapproved[?limit=&offset=]
func (h *AdminHandler) HandleListUnapproved(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	users, err := h.auth.ListUnapproved(r.Context(), auth.ActorFromContext(r.Context()), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}
