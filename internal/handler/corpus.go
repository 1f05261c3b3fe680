package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/quran-notes/internal/apperror"
	"github.com/sakif/quran-notes/internal/auth"
	"github.com/sakif/quran-notes/internal/model"
	"github.com/sakif/quran-notes/internal/service"
)

// defaultLanguage is used when a read request has no ?lang=.
const defaultLanguage = "en"

// CorpusHandler serves the public read side of the corpus (verses, words,
// search) and the admin import endpoints.
type CorpusHandler struct {
	corpus *service.CorpusService
	logger *slog.Logger
}

func NewCorpusHandler(corpus *service.CorpusService, logger *slog.Logger) *CorpusHandler {
	return &CorpusHandler{corpus: corpus, logger: logger}
}

// verseWordsResponse is the assembled verse. Degraded is set when the
// client asked for a lenient rendering and some slots are orphans.
type verseWordsResponse struct {
	Surah    int               `json:"surah"`
	Ayah     int               `json:"ayah"`
	Words    []model.VerseWord `json:"words"`
	Degraded bool              `json:"degraded,omitempty"`
}

// HandleVerseWords returns the words of a verse in order.
//
// HTTP: GET /api/verses/{surah}/{ayah}/words[?lenient=1]
//
// A verse with an orphan word is a 422 by default. With ?lenient=1 the
// words are returned anyway, orphan slots marked, and "degraded": true.
func (h *CorpusHandler) HandleVerseWords(w http.ResponseWriter, r *http.Request) {
	surah, ayah, err := verseParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	words, err := h.corpus.AssembleVerse(r.Context(), surah, ayah)
	degraded := false
	if err != nil {
		if !(errors.Is(err, apperror.ErrOrphanWord) && lenient(r) && words != nil) {
			writeError(w, err)
			return
		}
		degraded = true
	}

	writeJSON(w, http.StatusOK, verseWordsResponse{
		Surah:    surah,
		Ayah:     ayah,
		Words:    words,
		Degraded: degraded,
	})
}

func lenient(r *http.Request) bool {
	switch strings.ToLower(r.URL.Query().Get("lenient")) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// HandleVerse returns the text of a verse in one language.
//
// HTTP: GET /api/verses/{surah}/{ayah}[?lang=en]
func (h *CorpusHandler) HandleVerse(w http.ResponseWriter, r *http.Request) {
	surah, ayah, err := verseParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	verse, err := h.corpus.GetVerse(r.Context(), surah, ayah, languageParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verse)
}

// HandleWord returns one dictionary entry.
//
// HTTP: GET /api/words/{wordID}
func (h *CorpusHandler) HandleWord(w http.ResponseWriter, r *http.Request) {
	entry, err := h.corpus.LookupWord(r.Context(), chi.URLParam(r, "wordID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// HandleSearch finds verses by substring, ignoring case.
//
// HTTP: GET /api/search?q=mercy[&lang=en]
func (h *CorpusHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	results, err := h.corpus.Search(r.Context(), r.URL.Query().Get("q"), languageParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func languageParam(r *http.Request) string {
	if lang := r.URL.Query().Get("lang"); lang != "" {
		return lang
	}
	return defaultLanguage
}

// importResponse is the import report plus, when lines were skipped, the
// partial-failure message. The import has been committed either way.
type importResponse struct {
	*service.ImportReport
	Warning string `json:"warning,omitempty"`
}

// HandleImport replaces one corpus table with the uploaded dump.
//
// HTTP: POST /api/admin/imports/{table}[?language=en]
// Auth: admin
// BODY: the raw dump, plain or xz/gzip compressed
//
// {table} is one of dictionary, mapping, translations. Translations need
// ?language=.
func (h *CorpusHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	actor := auth.ActorFromContext(r.Context())
	defer r.Body.Close()

	var (
		report *service.ImportReport
		err    error
	)
	switch table := chi.URLParam(r, "table"); table {
	case "dictionary":
		report, err = h.corpus.ImportDictionary(r.Context(), actor, r.Body)
	case "mapping":
		report, err = h.corpus.ImportWordMapping(r.Context(), actor, r.Body)
	case "translations":
		report, err = h.corpus.ImportVerseTranslations(r.Context(), actor, r.URL.Query().Get("language"), r.Body)
	default:
		err = apperror.ValidationFailed("table", "table must be one of dictionary, mapping, translations")
	}
	if err != nil {
		writeError(w, err)
		return
	}

	resp := importResponse{ImportReport: report}
	if partial := report.Err(); partial != nil {
		resp.Warning = partial.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleListImports lists the import audit log, newest first.
//
// HTTP: GET /api/admin/imports[?limit=&offset=]
// Auth: admin
func (h *CorpusHandler) HandleListImports(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	runs, err := h.corpus.ListImportRuns(r.Context(), auth.ActorFromContext(r.Context()), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}
