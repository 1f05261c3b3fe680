package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/sakif/quran-notes/internal/apperror"
	"github.com/sakif/quran-notes/internal/model"
	"github.com/sakif/quran-notes/internal/repository"
)

// =========================================================================
// IN-MEMORY FAKES
// =========================================================================
//
// Hand-written fakes of the repository interfaces. They keep just enough
// behaviour (not-found errors, conditional updates, ordering) for the
// service rules to be tested without SQLite. The SQLite behaviour itself is
// covered in internal/repository/sqlite.

// testLogger only lets errors through, so a failing test shows why.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// ---- users ----

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[string]*model.User
	nextID int
	// set to a non-nil error to simulate a database failure
	createErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*model.User{}}
}

var _ repository.UserRepository = (*fakeUserRepo)(nil)

func (f *fakeUserRepo) CreateUser(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, existing := range f.users {
		if existing.Username == u.Username {
			return apperror.Conflict("user", u.Username)
		}
	}
	f.nextID++
	u.ID = fmt.Sprintf("user-%d", f.nextID)
	u.CreatedAt = time.Now()
	stored := *u
	f.users[u.ID] = &stored
	return nil
}

func (f *fakeUserRepo) UpsertGitHubUser(ctx context.Context, u *model.User) error {
	f.mu.Lock()
	for _, existing := range f.users {
		if existing.GitHubID == u.GitHubID {
			*u = *existing
			f.mu.Unlock()
			return nil
		}
	}
	f.mu.Unlock()
	return f.CreateUser(ctx, u)
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", username)
}

func (f *fakeUserRepo) ApproveUser(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	if u.Approved {
		return apperror.Conflict("user approval", id)
	}
	u.Approved = true
	return nil
}

func (f *fakeUserRepo) SetUserRole(_ context.Context, id string, role model.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.Role = role
	return nil
}

func (f *fakeUserRepo) ListUnapprovedUsers(_ context.Context, _ repository.ListOptions) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.User{}
	for _, u := range f.users {
		if !u.Approved {
			out = append(out, *u)
		}
	}
	return out, nil
}

// ---- corpus ----

type fakeCorpusRepo struct {
	mu           sync.Mutex
	dictionary   map[string]model.WordEntry
	positions    []model.WordPosition
	translations []model.VerseTranslation
	runs         []model.ImportRun
	failReplace  error
}

func newFakeCorpusRepo() *fakeCorpusRepo {
	return &fakeCorpusRepo{dictionary: map[string]model.WordEntry{}}
}

var _ repository.CorpusRepository = (*fakeCorpusRepo)(nil)

func (f *fakeCorpusRepo) VerseWords(_ context.Context, surah, ayah int) ([]model.VerseWord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	words := []model.VerseWord{}
	for _, p := range f.positions {
		if p.Surah != surah || p.Ayah != ayah {
			continue
		}
		w := model.VerseWord{WordID: p.WordID, Position: p.Position}
		if entry, ok := f.dictionary[p.WordID]; ok {
			w.Arabic = entry.Arabic
			w.Meanings = entry.Translations
		} else {
			w.Orphan = true
		}
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool { return words[i].Position < words[j].Position })
	return words, nil
}

func (f *fakeCorpusRepo) GetWord(_ context.Context, wordID string) (*model.WordEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.dictionary[wordID]
	if !ok {
		return nil, apperror.NotFound("word", wordID)
	}
	return &entry, nil
}

func (f *fakeCorpusRepo) WordIDAt(_ context.Context, surah, ayah, position int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.positions {
		if p.Surah == surah && p.Ayah == ayah && p.Position == position {
			return p.WordID, nil
		}
	}
	return "", apperror.NotFound("word position", fmt.Sprintf("%d:%d:%d", surah, ayah, position))
}

func (f *fakeCorpusRepo) GetVerseTranslation(_ context.Context, surah, ayah int, language string) (*model.VerseTranslation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.translations {
		if v.Surah == surah && v.Ayah == ayah && v.Language == language {
			return &v, nil
		}
	}
	return nil, apperror.NotFound("verse", fmt.Sprintf("%d:%d/%s", surah, ayah, language))
}

func (f *fakeCorpusRepo) SearchVerses(_ context.Context, language string, match repository.VerseMatcher, limit int) ([]model.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	verses := append([]model.VerseTranslation(nil), f.translations...)
	sort.Slice(verses, func(i, j int) bool {
		if verses[i].Surah != verses[j].Surah {
			return verses[i].Surah < verses[j].Surah
		}
		return verses[i].Ayah < verses[j].Ayah
	})
	results := []model.SearchResult{}
	for _, v := range verses {
		if v.Language != language || !match(v.Arabic, v.Translation) {
			continue
		}
		results = append(results, model.SearchResult{Surah: v.Surah, Ayah: v.Ayah, Arabic: v.Arabic, Translation: v.Translation})
		if len(results) == limit {
			break
		}
	}
	return results, nil
}

func (f *fakeCorpusRepo) record(run *model.ImportRun) {
	run.ID = fmt.Sprintf("run-%d", len(f.runs)+1)
	run.CreatedAt = time.Now()
	f.runs = append(f.runs, *run)
}

func (f *fakeCorpusRepo) ReplaceDictionary(_ context.Context, entries []model.WordEntry, run *model.ImportRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReplace != nil {
		return f.failReplace
	}
	f.dictionary = map[string]model.WordEntry{}
	for _, e := range entries {
		f.dictionary[e.WordID] = e
	}
	f.record(run)
	return nil
}

func (f *fakeCorpusRepo) ReplaceWordMapping(_ context.Context, positions []model.WordPosition, run *model.ImportRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReplace != nil {
		return f.failReplace
	}
	f.positions = append([]model.WordPosition(nil), positions...)
	f.record(run)
	return nil
}

func (f *fakeCorpusRepo) ReplaceVerseTranslations(_ context.Context, language string, verses []model.VerseTranslation, run *model.ImportRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReplace != nil {
		return f.failReplace
	}
	kept := f.translations[:0:0]
	for _, v := range f.translations {
		if v.Language != language {
			kept = append(kept, v)
		}
	}
	f.translations = append(kept, verses...)
	f.record(run)
	return nil
}

func (f *fakeCorpusRepo) ListImportRuns(_ context.Context, _ repository.ListOptions) ([]model.ImportRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.ImportRun, 0, len(f.runs))
	for i := len(f.runs) - 1; i >= 0; i-- {
		out = append(out, f.runs[i])
	}
	return out, nil
}

// ---- highlights ----

type highlightKey struct {
	userID                 string
	surah, ayah, position int
}

type fakeHighlightRepo struct {
	mu   sync.Mutex
	rows map[highlightKey]model.Highlight
}

func newFakeHighlightRepo() *fakeHighlightRepo {
	return &fakeHighlightRepo{rows: map[highlightKey]model.Highlight{}}
}

var _ repository.HighlightRepository = (*fakeHighlightRepo)(nil)

func (f *fakeHighlightRepo) UpsertHighlight(_ context.Context, h *model.Highlight) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	h.UpdatedAt = time.Now()
	f.rows[highlightKey{h.UserID, h.Surah, h.Ayah, h.Position}] = *h
	return nil
}

func (f *fakeHighlightRepo) GetHighlight(_ context.Context, userID string, surah, ayah, position int) (*model.Highlight, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.rows[highlightKey{userID, surah, ayah, position}]
	if !ok {
		return nil, apperror.NotFound("highlight", fmt.Sprintf("%d:%d:%d", surah, ayah, position))
	}
	return &h, nil
}

func (f *fakeHighlightRepo) ListVerseHighlights(_ context.Context, userID string, surah, ayah int) ([]model.Highlight, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Highlight{}
	for k, h := range f.rows {
		if k.userID == userID && k.surah == surah && k.ayah == ayah {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// ---- contributions ----

type fakeContributionRepo struct {
	mu     sync.Mutex
	rows   map[string]*model.Contribution
	order  []string
	nextID int
}

func newFakeContributionRepo() *fakeContributionRepo {
	return &fakeContributionRepo{rows: map[string]*model.Contribution{}}
}

var _ repository.ContributionRepository = (*fakeContributionRepo)(nil)

func (f *fakeContributionRepo) CreateContribution(_ context.Context, c *model.Contribution) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	c.ID = fmt.Sprintf("c-%d", f.nextID)
	c.CreatedAt = time.Now()
	stored := *c
	f.rows[c.ID] = &stored
	f.order = append(f.order, c.ID)
	return nil
}

func (f *fakeContributionRepo) GetContribution(_ context.Context, id string) (*model.Contribution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok {
		return nil, apperror.NotFound("contribution", id)
	}
	copied := *c
	return &copied, nil
}

// TransitionContribution mirrors the conditional UPDATE: the status check
// and the write happen under one lock.
func (f *fakeContributionRepo) TransitionContribution(_ context.Context, id string, status model.ContributionStatus, reviewerID string, at time.Time) (*model.Contribution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok {
		return nil, apperror.NotFound("contribution", id)
	}
	if c.Status != model.StatusPending {
		return nil, apperror.AlreadyModerated(id, string(c.Status))
	}
	c.Status = status
	c.ReviewerID = reviewerID
	c.ReviewedAt = &at
	copied := *c
	return &copied, nil
}

func (f *fakeContributionRepo) ListContributions(_ context.Context, filter repository.ContributionFilter, opts repository.ListOptions) ([]model.Contribution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Contribution{}
	for i := len(f.order) - 1; i >= 0; i-- {
		c := f.rows[f.order[i]]
		if filter.AuthorID != "" && c.AuthorID != filter.AuthorID {
			continue
		}
		if filter.Reference != "" && c.Reference != filter.Reference {
			continue
		}
		if len(filter.Statuses) > 0 && !(filter.OwnerID != "" && c.AuthorID == filter.OwnerID) {
			matched := false
			for _, s := range filter.Statuses {
				matched = matched || c.Status == s
			}
			if !matched {
				continue
			}
		}
		out = append(out, *c)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}
