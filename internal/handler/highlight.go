package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/quran-notes/internal/auth"
	"github.com/sakif/quran-notes/internal/service"
)

// HighlightHandler serves the caller's own word highlights. Every route is
// behind RequireAuth; the owner is always the authenticated actor.
type HighlightHandler struct {
	highlights *service.HighlightService
	logger     *slog.Logger
}

func NewHighlightHandler(highlights *service.HighlightService, logger *slog.Logger) *HighlightHandler {
	return &HighlightHandler{highlights: highlights, logger: logger}
}

type highlightRequest struct {
	Color string `json:"color"`
	Note  string `json:"note"`
}

// HandleSet creates or replaces a highlight.
//
// HTTP: PUT /api/highlights/{surah}/{ayah}/{position}
// REQUEST BODY: {"color": "#ffff00", "note": "optional"}
func (h *HighlightHandler) HandleSet(w http.ResponseWriter, r *http.Request) {
	surah, ayah, err := verseParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	position, err := intParam(r, "position")
	if err != nil {
		writeError(w, err)
		return
	}
	var req highlightRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	actor := auth.ActorFromContext(r.Context())
	hl, err := h.highlights.SetHighlight(r.Context(), actor, actor.ID, surah, ayah, position, req.Color, req.Note)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hl)
}

// HandleGet returns one highlight, or 204 when the word is not highlighted.
//
// HTTP: GET /api/highlights/{surah}/{ayah}/{position}
func (h *HighlightHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	surah, ayah, err := verseParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	position, err := intParam(r, "position")
	if err != nil {
		writeError(w, err)
		return
	}

	actor := auth.ActorFromContext(r.Context())
	hl, err := h.highlights.GetHighlight(r.Context(), actor, actor.ID, surah, ayah, position)
	if err != nil {
		writeError(w, err)
		return
	}
	if hl == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, hl)
}

// HandleListVerse returns the caller's highlights in one verse.
//
// HTTP: GET /api/highlights/{surah}/{ayah}
func (h *HighlightHandler) HandleListVerse(w http.ResponseWriter, r *http.Request) {
	surah, ayah, err := verseParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	actor := auth.ActorFromContext(r.Context())
	list, err := h.highlights.ListVerseHighlights(r.Context(), actor, actor.ID, surah, ayah)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
