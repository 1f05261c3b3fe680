// Package repository declares the storage contracts used by the service layer.
//
// Services depend on these interfaces, never on the sqlite package, so they
// can be tested against in-memory fakes.
package repository

import (
	"context"
	"time"

	"github.com/sakif/quran-notes/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	UpsertGitHubUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	// ApproveUser flips approved from false to true. It returns a Conflict
	// error when the account is already approved.
	ApproveUser(ctx context.Context, id string) error
	SetUserRole(ctx context.Context, id string, role model.Role) error
	ListUnapprovedUsers(ctx context.Context, opts ListOptions) ([]model.User, error)
}

// VerseMatcher decides whether a verse row matches a search.
type VerseMatcher func(arabic, translation string) bool

type CorpusRepository interface {
	// VerseWords returns the word slots of a verse ordered by position.
	// Slots whose word_id has no dictionary entry come back with Orphan set.
	VerseWords(ctx context.Context, surah, ayah int) ([]model.VerseWord, error)
	GetWord(ctx context.Context, wordID string) (*model.WordEntry, error)
	WordIDAt(ctx context.Context, surah, ayah, position int) (string, error)
	GetVerseTranslation(ctx context.Context, surah, ayah int, language string) (*model.VerseTranslation, error)
	// SearchVerses scans the verses of one language in verse order and
	// returns at most limit rows accepted by match.
	SearchVerses(ctx context.Context, language string, match VerseMatcher, limit int) ([]model.SearchResult, error)

	// The Replace methods swap a whole table (or, for translations, one
	// language) in a single transaction and record run alongside it.
	ReplaceDictionary(ctx context.Context, entries []model.WordEntry, run *model.ImportRun) error
	ReplaceWordMapping(ctx context.Context, positions []model.WordPosition, run *model.ImportRun) error
	ReplaceVerseTranslations(ctx context.Context, language string, verses []model.VerseTranslation, run *model.ImportRun) error
	ListImportRuns(ctx context.Context, opts ListOptions) ([]model.ImportRun, error)
}

type HighlightRepository interface {
	// UpsertHighlight inserts the highlight or overwrites color and note of
	// the existing row with the same key.
	UpsertHighlight(ctx context.Context, h *model.Highlight) error
	GetHighlight(ctx context.Context, userID string, surah, ayah, position int) (*model.Highlight, error)
	ListVerseHighlights(ctx context.Context, userID string, surah, ayah int) ([]model.Highlight, error)
}

// ContributionFilter narrows a contribution listing.
//
// Statuses limits rows to the given statuses, except that rows written by
// OwnerID are always included. Empty fields do not filter.
type ContributionFilter struct {
	AuthorID  string
	Reference string
	Statuses  []model.ContributionStatus
	OwnerID   string
}

type ContributionRepository interface {
	CreateContribution(ctx context.Context, c *model.Contribution) error
	GetContribution(ctx context.Context, id string) (*model.Contribution, error)
	// TransitionContribution moves a pending contribution to status in one
	// conditional update. It fails with AlreadyModerated when the row is no
	// longer pending and NotFound when it does not exist.
	TransitionContribution(ctx context.Context, id string, status model.ContributionStatus, reviewerID string, at time.Time) (*model.Contribution, error)
	ListContributions(ctx context.Context, filter ContributionFilter, opts ListOptions) ([]model.Contribution, error)
}
