// Package apperror defines the typed errors returned by the core.
//
// Every error the services hand back to a caller either wraps one of the
// sentinels below (so callers can use errors.Is) or is an infrastructure
// failure wrapped with fmt.Errorf. Handlers translate sentinels to status
// codes; the core itself never logs-and-swallows them.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("Validation Error")
	ErrConflict   = errors.New("conflict")

	// ErrUnauthorized means the actor's role or approval is insufficient.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUnauthenticated means the caller could not prove who they are.
	ErrUnauthenticated = errors.New("unauthenticated")

	// Corpus integrity violations.
	ErrIncompleteVerse = errors.New("incomplete verse")
	ErrOrphanWord      = errors.New("orphan word")

	// ErrAlreadyModerated is returned when a contribution has left the
	// pending state before the moderation call reached the database.
	ErrAlreadyModerated = errors.New("already moderated")

	// ErrImportPartialFailure marks an import that finished with some
	// records rejected. It is informational, never fatal.
	ErrImportPartialFailure = errors.New("import partial failure")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Unauthorized returns an AppError indicating the actor may not perform the
// operation. HTTP handlers map this to 403 Forbidden.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Unauthenticated is returned for wrong credentials. The message never says
// which half of the pair was wrong.
func Unauthenticated() *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Message: "invalid username or password",
	}
}

// IncompleteVerse reports a gap in the word positions of a verse.
func IncompleteVerse(surah, ayah, missing int) *AppError {
	return &AppError{
		Err:     ErrIncompleteVerse,
		Message: fmt.Sprintf("verse %d:%d is incomplete: position %d is missing", surah, ayah, missing),
	}
}

// OrphanWord reports a word position whose word_id has no dictionary entry.
func OrphanWord(surah, ayah, position int, wordID string) *AppError {
	return &AppError{
		Err: ErrOrphanWord,
		Message: fmt.Sprintf("verse %d:%d position %d references unknown word %s",
			surah, ayah, position, wordID),
	}
}

func AlreadyModerated(id, status string) *AppError {
	return &AppError{
		Err:     ErrAlreadyModerated,
		Message: fmt.Sprintf("contribution %s is already %s", id, status),
	}
}

// ImportPartialFailure summarises rejected records of a finished import.
func ImportPartialFailure(table string, accepted, rejected int) *AppError {
	return &AppError{
		Err: ErrImportPartialFailure,
		Message: fmt.Sprintf("%s import accepted %d records and rejected %d",
			table, accepted, rejected),
	}
}
