// Package service contains the business rules of the annotation engine.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP) / corpusctl (CLI) → parse input, render output
//	Service                          → authorize, validate, orchestrate
//	Repository                       → read/write SQLite
//
// THE ACTOR RULE:
// Every service method that reads per-user data or changes state takes a
// model.Actor as an explicit argument and calls auth.Require before touching
// a repository. Nothing here reads "who is logged in" from a context value or
// a global; the HTTP middleware and the CLI each build the Actor and pass it
// in. That makes each authorization decision visible in the signature and
// trivially testable with a literal Actor{...}.
//
// Services depend on repository interfaces only, so the tests in this
// package run against in-memory fakes.
package service

import (
	"fmt"

	"github.com/sakif/quran-notes/internal/apperror"
	"github.com/sakif/quran-notes/internal/model"
	"github.com/sakif/quran-notes/internal/repository"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// listOptions clamps caller supplied pagination to sane bounds.
func listOptions(limit, offset int) repository.ListOptions {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return repository.ListOptions{Limit: limit, Offset: offset}
}

func validateVerse(surah, ayah int) error {
	if surah < 1 || surah > model.MaxSurah {
		return apperror.ValidationFailed("surah",
			fmt.Sprintf("surah must be between 1 and %d", model.MaxSurah))
	}
	if ayah < 1 {
		return apperror.ValidationFailed("ayah", "ayah must be 1 or greater")
	}
	return nil
}

func validateWord(surah, ayah, position int) error {
	if err := validateVerse(surah, ayah); err != nil {
		return err
	}
	if position < 1 {
		return apperror.ValidationFailed("position", "position must be 1 or greater")
	}
	return nil
}
