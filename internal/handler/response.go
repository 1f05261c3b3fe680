package handler

// RESPONSE HELPERS:
// These functions standardise how we read requests and send JSON responses.
//
// CONSISTENT ERROR FORMAT:
// Every error response from our API has the same shape:
//   {"error": "not_found", "message": "contribution not found with id abc123"}
//
// Validation errors also name the offending field:
//   {"error": "validation_error", "message": "...", "field": "color"}

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/quran-notes/internal/apperror"
)

// maxJSONBody bounds every JSON request body. Corpus uploads have their own
// limit in the import pipeline.
const maxJSONBody = 1 << 20

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`           // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"`         // Human-readable description
	Field   string `json:"field,omitempty"` // Set for validation errors
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status code go out before the body; anything set after the
// first Write is silently ignored.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// statusFor maps a domain error to its HTTP status and machine-readable type.
//
// ERROR MAPPING:
//
//	ErrValidation                      → 400 validation_error
//	ErrUnauthenticated                 → 401 unauthenticated
//	ErrUnauthorized                    → 403 forbidden
//	ErrNotFound                        → 404 not_found
//	ErrConflict, ErrAlreadyModerated   → 409
//	ErrIncompleteVerse, ErrOrphanWord  → 422 (the data is broken, not the request)
//	ErrImportPartialFailure            → 422
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrAlreadyModerated):
		return http.StatusConflict, "already_moderated"
	case errors.Is(err, apperror.ErrIncompleteVerse):
		return http.StatusUnprocessableEntity, "incomplete_verse"
	case errors.Is(err, apperror.ErrOrphanWord):
		return http.StatusUnprocessableEntity, "orphan_word"
	case errors.Is(err, apperror.ErrImportPartialFailure):
		return http.StatusUnprocessableEntity, "import_partial_failure"
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeError maps a domain error to the appropriate HTTP status code and
// sends it.
//
// The service layer never knows about HTTP status codes; corpusctl prints
// the same errors as plain messages.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status, errorType := statusFor(err)
		if status != http.StatusInternalServerError {
			writeJSON(w, status, ErrorResponse{
				Error:   errorType,
				Message: appErr.Message,
				Field:   appErr.Field,
			})
			return
		}
	}

	// Unknown error: never expose internal details (SQL, file paths) to the client.
	slog.Error("internal error", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

// decodeJSON reads a bounded JSON body into dst. Unknown fields are
// rejected so typos in a request surface as 400s instead of silent no-ops.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperror.ValidationFailed("body", fmt.Sprintf("invalid JSON body: %v", err))
	}
	if _, err := dec.Token(); err != io.EOF {
		return apperror.ValidationFailed("body", "request body must hold a single JSON object")
	}
	return nil
}

// intParam reads an integer chi URL parameter.
func intParam(r *http.Request, name string) (int, error) {
	raw := chi.URLParam(r, name)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.ValidationFailed(name, fmt.Sprintf("%s must be a number, got %q", name, raw))
	}
	return n, nil
}

// verseParams reads {surah} and {ayah}.
func verseParams(r *http.Request) (surah, ayah int, err error) {
	if surah, err = intParam(r, "surah"); err != nil {
		return 0, 0, err
	}
	if ayah, err = intParam(r, "ayah"); err != nil {
		return 0, 0, err
	}
	return surah, ayah, nil
}

// pageParams reads the optional ?limit= and ?offset= query parameters. The
// services clamp the values; only non-numbers are rejected here.
func pageParams(r *http.Request) (limit, offset int, err error) {
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			return 0, 0, apperror.ValidationFailed("limit", "limit must be a number")
		}
	}
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil {
			return 0, 0, apperror.ValidationFailed("offset", "offset must be a number")
		}
	}
	return limit, offset, nil
}
