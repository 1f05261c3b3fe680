package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sakif/quran-notes/internal/apperror"
	"github.com/sakif/quran-notes/internal/auth"
	"github.com/sakif/quran-notes/internal/model"
	"github.com/sakif/quran-notes/internal/repository"
)

const MaxNoteLength = 2000

var colorPattern = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// HighlightService is the Annotation Store: private, per-user word
// highlights with upsert semantics.
type HighlightService struct {
	highlights repository.HighlightRepository
	corpus     repository.CorpusRepository
	logger     *slog.Logger
}

func NewHighlightService(highlights repository.HighlightRepository, corpus repository.CorpusRepository, logger *slog.Logger) *HighlightService {
	return &HighlightService{highlights: highlights, corpus: corpus, logger: logger}
}

// SetHighlight creates or overwrites the caller's highlight on one word.
//
// Preconditions: the actor is an approved user (or higher) and writes its
// own highlight; the coordinate exists in the word mapping. Calling it again
// with a different color or note replaces both; no history is kept. An empty
// note clears the note.
func (s *HighlightService) SetHighlight(ctx context.Context, actor model.Actor, userID string, surah, ayah, position int, color, note string) (*model.Highlight, error) {
	if err := auth.Require(actor, model.RoleUser); err != nil {
		return nil, err
	}
	if actor.ID != userID {
		return nil, apperror.Unauthorized("highlights can only be written by their owner")
	}
	if err := validateWord(surah, ayah, position); err != nil {
		return nil, err
	}
	color = strings.TrimSpace(color)
	if !colorPattern.MatchString(color) {
		return nil, apperror.ValidationFailed("color", "color must be a hex value like #ffff00")
	}
	if utf8.RuneCountInString(note) > MaxNoteLength {
		return nil, apperror.ValidationFailed("note",
			fmt.Sprintf("note must be %d characters or less", MaxNoteLength))
	}

	if _, err := s.corpus.WordIDAt(ctx, surah, ayah, position); err != nil {
		return nil, err
	}

	h := &model.Highlight{
		UserID:   userID,
		Surah:    surah,
		Ayah:     ayah,
		Position: position,
		Color:    strings.ToLower(color),
		Note:     note,
	}
	if err := s.highlights.UpsertHighlight(ctx, h); err != nil {
		s.logger.Error("failed to save highlight",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("saving highlight: %w", err)
	}
	return h, nil
}

// GetHighlight returns the caller's highlight on one word, or nil without
// an error when the word is not highlighted.
func (s *HighlightService) GetHighlight(ctx context.Context, actor model.Actor, userID string, surah, ayah, position int) (*model.Highlight, error) {
	if err := s.checkOwner(actor, userID); err != nil {
		return nil, err
	}
	if err := validateWord(surah, ayah, position); err != nil {
		return nil, err
	}
	h, err := s.highlights.GetHighlight(ctx, userID, surah, ayah, position)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, nil
	}
	return h, err
}

// ListVerseHighlights returns the caller's highlights in one verse, for
// rendering a verse page.
func (s *HighlightService) ListVerseHighlights(ctx context.Context, actor model.Actor, userID string, surah, ayah int) ([]model.Highlight, error) {
	if err := s.checkOwner(actor, userID); err != nil {
		return nil, err
	}
	if err := validateVerse(surah, ayah); err != nil {
		return nil, err
	}
	return s.highlights.ListVerseHighlights(ctx, userID, surah, ayah)
}

// checkOwner gates reads. Highlights are private, so only the owner reads
// them; an unapproved owner may still see what they wrote before.
func (s *HighlightService) checkOwner(actor model.Actor, userID string) error {
	if actor.IsAnonymous() || actor.ID != userID {
		return apperror.Unauthorized("highlights are private to their owner")
	}
	return nil
}
