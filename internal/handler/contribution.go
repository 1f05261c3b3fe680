package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/quran-notes/internal/apperror"
	"github.com/sakif/quran-notes/internal/auth"
	"github.com/sakif/quran-notes/internal/model"
	"github.com/sakif/quran-notes/internal/service"
)

// ContributionHandler exposes submission, moderation and listing of
// tafsir, themes and generic notes.
type ContributionHandler struct {
	contributions *service.ContributionService
	logger        *slog.Logger
}

func NewContributionHandler(contributions *service.ContributionService, logger *slog.Logger) *ContributionHandler {
	return &ContributionHandler{contributions: contributions, logger: logger}
}

type submitRequest struct {
	Kind      model.ContributionKind `json:"kind"`
	Reference string                 `json:"reference"`
	Content   string                 `json:"content"`
}

// HandleSubmit stores a new contribution.
//
// HTTP: POST /api/contributions
// REQUEST BODY: {"kind": "tafsir", "reference": "2:255", "content": "..."}
//
// Responds 201 with the stored item; its status tells the client whether it
// went into the moderation queue or was approved straight away.
func (h *ContributionHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	c, err := h.contributions.Submit(r.Context(), auth.ActorFromContext(r.Context()), req.Kind, req.Reference, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

type moderateRequest struct {
	Decision model.Decision `json:"decision"`
}

// HandleModerate approves or rejects a pending contribution.
//
// HTTP: POST /api/contributions/{id}/moderate
// REQUEST BODY: {"decision": "approve"} or {"decision": "reject"}
// Auth: ulama or admin
//
// A second decision on the same item is a 409 already_moderated.
func (h *ContributionHandler) HandleModerate(w http.ResponseWriter, r *http.Request) {
	var req moderateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	c, err := h.contributions.Moderate(r.Context(), auth.ActorFromContext(r.Context()), chi.URLParam(r, "id"), req.Decision)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HandleGet returns one contribution the caller may see.
//
// HTTP: GET /api/contributions/{id}
func (h *ContributionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	c, err := h.contributions.Get(r.Context(), auth.ActorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HandleListPending returns the moderation queue.
//
// HTTP: GET /api/contributions/pending[?limit=&offset=]
// Auth: ulama or admin
func (h *ContributionHandler) HandleListPending(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	list, err := h.contributions.ListPending(r.Context(), auth.ActorFromContext(r.Context()), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleList lists contributions by reference or by author.
//
// HTTP: GET /api/contributions?reference=2:255
//
//	GET /api/contributions?author={userID}
//
// Exactly one of the two filters is required.
func (h *ContributionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	viewer := auth.ActorFromContext(r.Context())
	reference := r.URL.Query().Get("reference")
	authorID := r.URL.Query().Get("author")

	var list []model.Contribution
	switch {
	case reference != "" && authorID != "":
		err = apperror.ValidationFailed("reference", "filter by reference or by author, not both")
	case reference != "":
		list, err = h.contributions.ListByReference(r.Context(), viewer, reference, limit, offset)
	case authorID != "":
		list, err = h.contributions.ListByAuthor(r.Context(), viewer, authorID, limit, offset)
	default:
		err = apperror.ValidationFailed("reference", "a reference or author filter is required")
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
