package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sakif/quran-notes/internal/apperror"
	"github.com/sakif/quran-notes/internal/auth"
	"github.com/sakif/quran-notes/internal/model"
	"github.com/sakif/quran-notes/internal/repository"
)

const (
	MaxReferenceLength = 64
	MaxContentLength   = 20000
)

// ContributionService is the Moderation Engine.
//
// LIFECYCLE:
//
//	submit ──(author below ulama)──▶ pending ──moderate(approve)──▶ approved
//	   │                                  └──────moderate(reject)──▶ rejected
//	   └──(author ulama or admin)───────────────────────────────────▶ approved
//
// approved and rejected are terminal. The pending check lives in the
// repository's conditional UPDATE, not in a read here, so two reviewers
// racing on one contribution cannot both win.
type ContributionService struct {
	repo   repository.ContributionRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewContributionService(repo repository.ContributionRepository, logger *slog.Logger) *ContributionService {
	return &ContributionService{repo: repo, logger: logger, now: time.Now}
}

// Submit stores a new contribution.
//
// AUTO-APPROVAL:
// A contribution from an actor that itself satisfies the ulama requirement
// is approved immediately, with no reviewer recorded. This is the only
// place in the system where someone's work skips moderation.
func (s *ContributionService) Submit(ctx context.Context, author model.Actor, kind model.ContributionKind, reference, content string) (*model.Contribution, error) {
	if err := auth.Require(author, model.RoleUser); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, apperror.ValidationFailed("kind", "kind must be one of tafsir, theme, generic")
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, apperror.ValidationFailed("reference", "reference is required")
	}
	if len(reference) > MaxReferenceLength {
		return nil, apperror.ValidationFailed("reference",
			fmt.Sprintf("reference must be %d characters or less", MaxReferenceLength))
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperror.ValidationFailed("content", "content is required")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, apperror.ValidationFailed("content",
			fmt.Sprintf("content must be %d characters or less", MaxContentLength))
	}

	status := model.StatusPending
	if auth.Authorize(author, model.RoleUlama) {
		status = model.StatusApproved
	}

	c := &model.Contribution{
		AuthorID:  author.ID,
		Kind:      kind,
		Reference: reference,
		Content:   content,
		Status:    status,
	}
	if err := s.repo.CreateContribution(ctx, c); err != nil {
		s.logger.Error("failed to create contribution",
			slog.String("authorID", author.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("submitting contribution: %w", err)
	}

	s.logger.Info("contribution submitted",
		slog.String("id", c.ID),
		slog.String("authorID", c.AuthorID),
		slog.String("kind", string(c.Kind)),
		slog.String("status", string(c.Status)),
	)
	return c, nil
}

// Moderate approves or rejects a pending contribution. A contribution that
// is no longer pending yields AlreadyModerated and is left unchanged; the
// error is not retried.
func (s *ContributionService) Moderate(ctx context.Context, reviewer model.Actor, id string, decision model.Decision) (*model.Contribution, error) {
	if err := auth.Require(reviewer, model.RoleUlama); err != nil {
		return nil, err
	}
	status, ok := decision.Status()
	if !ok {
		return nil, apperror.ValidationFailed("decision", "decision must be approve or reject")
	}
	if strings.TrimSpace(id) == "" {
		return nil, apperror.ValidationFailed("id", "contribution ID is required")
	}

	c, err := s.repo.TransitionContribution(ctx, id, status, reviewer.ID, s.now())
	if err != nil {
		if errors.Is(err, apperror.ErrAlreadyModerated) {
			s.logger.Info("moderation lost the race",
				slog.String("id", id),
				slog.String("reviewerID", reviewer.ID),
			)
		}
		return nil, err
	}

	s.logger.Info("contribution moderated",
		slog.String("id", c.ID),
		slog.String("status", string(c.Status)),
		slog.String("reviewerID", reviewer.ID),
	)
	return c, nil
}

// Get returns one contribution if viewer may see it. A contribution the
// viewer may not see is reported as NotFound.
func (s *ContributionService) Get(ctx context.Context, viewer model.Actor, id string) (*model.Contribution, error) {
	c, err := s.repo.GetContribution(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSee(viewer, c) {
		return nil, apperror.NotFound("contribution", id)
	}
	return c, nil
}

// ListPending returns the moderation queue, newest first. Ulama and above.
func (s *ContributionService) ListPending(ctx context.Context, reviewer model.Actor, limit, offset int) ([]model.Contribution, error) {
	if err := auth.Require(reviewer, model.RoleUlama); err != nil {
		return nil, err
	}
	return s.repo.ListContributions(ctx, repository.ContributionFilter{
		Statuses: []model.ContributionStatus{model.StatusPending},
	}, listOptions(limit, offset))
}

// ListByAuthor returns the contributions of authorID that viewer may see.
//
// The author sees every status of their own items, ulama and admins see
// everything, and everyone else sees approved items only.
func (s *ContributionService) ListByAuthor(ctx context.Context, viewer model.Actor, authorID string, limit, offset int) ([]model.Contribution, error) {
	if strings.TrimSpace(authorID) == "" {
		return nil, apperror.ValidationFailed("authorId", "author ID is required")
	}
	filter := repository.ContributionFilter{AuthorID: authorID}
	if !seesAll(viewer) && viewer.ID != authorID {
		filter.Statuses = []model.ContributionStatus{model.StatusApproved}
	}
	return s.repo.ListContributions(ctx, filter, listOptions(limit, offset))
}

// ListByReference returns the contributions anchored at reference that
// viewer may see: approved ones, plus the viewer's own, plus everything
// for ulama and admins.
func (s *ContributionService) ListByReference(ctx context.Context, viewer model.Actor, reference string, limit, offset int) ([]model.Contribution, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, apperror.ValidationFailed("reference", "reference is required")
	}
	filter := repository.ContributionFilter{Reference: reference}
	if !seesAll(viewer) {
		filter.Statuses = []model.ContributionStatus{model.StatusApproved}
		filter.OwnerID = viewer.ID
	}
	return s.repo.ListContributions(ctx, filter, listOptions(limit, offset))
}

func seesAll(viewer model.Actor) bool {
	return auth.Authorize(viewer, model.RoleUlama)
}

func canSee(viewer model.Actor, c *model.Contribution) bool {
	return c.Status == model.StatusApproved ||
		(!viewer.IsAnonymous() && viewer.ID == c.AuthorID) ||
		seesAll(viewer)
}
