package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/text/cases"

	"github.com/sakif/quran-notes/internal/apperror"
	"github.com/sakif/quran-notes/internal/auth"
	"github.com/sakif/quran-notes/internal/corpus"
	"github.com/sakif/quran-notes/internal/model"
	"github.com/sakif/quran-notes/internal/repository"
)

// MaxSearchResults caps every search.
const MaxSearchResults = 50

var languagePattern = regexp.MustCompile(`^[a-z]{2,3}(-[a-zA-Z0-9]{2,8})?$`)

// CorpusService is the read side of the Word Index (verse assembly, word
// lookup, search) plus the Import Reconciler that replaces it.
type CorpusService struct {
	repo     repository.CorpusRepository
	maxBytes int64
	logger   *slog.Logger
}

// NewCorpusService creates a CorpusService. maxImportBytes bounds the
// decompressed size of one import batch (<= 0 means corpus.DefaultMaxBytes).
func NewCorpusService(repo repository.CorpusRepository, maxImportBytes int64, logger *slog.Logger) *CorpusService {
	return &CorpusService{repo: repo, maxBytes: maxImportBytes, logger: logger}
}

// AssembleVerse returns the words of a verse ordered by position.
//
// INTEGRITY CHECKS, IN THIS ORDER:
//  1. No rows at all → NotFound
//  2. Positions must run 1..n without gaps → IncompleteVerse naming the
//     first missing position (the verse cannot be rendered in order)
//  3. Every word_id must resolve in the dictionary → OrphanWord
//
// On OrphanWord the assembled words are returned together with the error,
// orphan slots marked, so a caller that prefers a degraded rendering to an
// error page can choose to use them. Callers that only check err != nil get
// the strict behaviour.
func (s *CorpusService) AssembleVerse(ctx context.Context, surah, ayah int) ([]model.VerseWord, error) {
	if err := validateVerse(surah, ayah); err != nil {
		return nil, err
	}

	words, err := s.repo.VerseWords(ctx, surah, ayah)
	if err != nil {
		return nil, fmt.Errorf("assembling verse %d:%d: %w", surah, ayah, err)
	}
	if len(words) == 0 {
		return nil, apperror.NotFound("verse", fmt.Sprintf("%d:%d", surah, ayah))
	}

	for i, w := range words {
		if w.Position != i+1 {
			return nil, apperror.IncompleteVerse(surah, ayah, i+1)
		}
	}

	for _, w := range words {
		if w.Orphan {
			s.logger.Warn("verse references unknown word",
				slog.Int("surah", surah),
				slog.Int("ayah", ayah),
				slog.Int("position", w.Position),
				slog.String("wordID", w.WordID),
			)
			return words, apperror.OrphanWord(surah, ayah, w.Position, w.WordID)
		}
	}
	return words, nil
}

// LookupWord returns a dictionary entry.
func (s *CorpusService) LookupWord(ctx context.Context, wordID string) (*model.WordEntry, error) {
	wordID = strings.TrimSpace(wordID)
	if wordID == "" {
		return nil, apperror.ValidationFailed("wordId", "word ID is required")
	}
	return s.repo.GetWord(ctx, wordID)
}

// GetVerse returns the text of one verse in one language.
func (s *CorpusService) GetVerse(ctx context.Context, surah, ayah int, language string) (*model.VerseTranslation, error) {
	if err := validateVerse(surah, ayah); err != nil {
		return nil, err
	}
	if err := validateLanguage(language); err != nil {
		return nil, err
	}
	return s.repo.GetVerseTranslation(ctx, surah, ayah, language)
}

// Search finds verses of one language whose Arabic text or translation
// contains query, ignoring case.
//
// Both sides are Unicode case folded with cases.Fold, so "MERCY" matches
// "Mercy" in any script that has case. Arabic has no case and passes through
// unchanged. Results come in verse order, at most MaxSearchResults. An empty
// or whitespace query returns an empty list, not everything.
func (s *CorpusService) Search(ctx context.Context, query, language string) ([]model.SearchResult, error) {
	if err := validateLanguage(language); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return []model.SearchResult{}, nil
	}

	// A Caser carries state and is not safe for concurrent use; one per call.
	fold := cases.Fold()
	needle := fold.String(query)
	match := func(arabic, translation string) bool {
		return strings.Contains(fold.String(arabic), needle) ||
			strings.Contains(fold.String(translation), needle)
	}

	results, err := s.repo.SearchVerses(ctx, language, match, MaxSearchResults)
	if err != nil {
		return nil, fmt.Errorf("searching %q in %s: %w", query, language, err)
	}
	return results, nil
}

// ImportReport is the outcome of one import.
type ImportReport struct {
	Run         *model.ImportRun   `json:"run"`
	Report      corpus.Report      `json:"report"`
	Compression corpus.Compression `json:"compression"`
}

// Err returns an ImportPartialFailure when records were skipped, nil
// otherwise. The import itself has already been committed either way.
func (r *ImportReport) Err() error {
	if r.Report.Rejected == 0 {
		return nil
	}
	return apperror.ImportPartialFailure(string(r.Run.Table), r.Report.Accepted, r.Report.Rejected)
}

// ImportDictionary replaces the whole word dictionary with the batch in r.
//
// Existing highlights and contributions are not touched: they address words
// by coordinate, and a coordinate keeps its meaning across dictionary
// replacements even if the entry behind its word_id changes.
func (s *CorpusService) ImportDictionary(ctx context.Context, actor model.Actor, r io.Reader) (*ImportReport, error) {
	return s.importBatch(ctx, actor, model.TableDictionary, "", r,
		func(data []byte) (corpus.Report, commitFunc, error) {
			entries, report, err := corpus.ParseDictionary(bytes.NewReader(data))
			return report, func(run *model.ImportRun) error {
				return s.repo.ReplaceDictionary(ctx, entries, run)
			}, err
		})
}

// ImportWordMapping replaces the whole word-position mapping. Word ids that
// the dictionary does not know are accepted; they surface as OrphanWord when
// the affected verse is assembled.
func (s *CorpusService) ImportWordMapping(ctx context.Context, actor model.Actor, r io.Reader) (*ImportReport, error) {
	return s.importBatch(ctx, actor, model.TableWordMapping, "", r,
		func(data []byte) (corpus.Report, commitFunc, error) {
			positions, report, err := corpus.ParseMapping(bytes.NewReader(data))
			return report, func(run *model.ImportRun) error {
				return s.repo.ReplaceWordMapping(ctx, positions, run)
			}, err
		})
}

// ImportVerseTranslations replaces the verse texts of one language; other
// languages are left as they are.
func (s *CorpusService) ImportVerseTranslations(ctx context.Context, actor model.Actor, language string, r io.Reader) (*ImportReport, error) {
	if err := auth.Require(actor, model.RoleAdmin); err != nil {
		return nil, err
	}
	if err := validateLanguage(language); err != nil {
		return nil, err
	}
	return s.importBatch(ctx, actor, model.TableTranslations, language, r,
		func(data []byte) (corpus.Report, commitFunc, error) {
			verses, report, err := corpus.ParseTranslations(bytes.NewReader(data), language)
			return report, func(run *model.ImportRun) error {
				return s.repo.ReplaceVerseTranslations(ctx, language, verses, run)
			}, err
		})
}

// commitFunc writes parsed records together with their run record.
type commitFunc func(run *model.ImportRun) error

// importBatch is the shared import pipeline: authorize, read and
// fingerprint, parse, then replace in one repository transaction.
func (s *CorpusService) importBatch(
	ctx context.Context,
	actor model.Actor,
	table model.ImportTable,
	language string,
	r io.Reader,
	parse func(data []byte) (corpus.Report, commitFunc, error),
) (*ImportReport, error) {
	if err := auth.Require(actor, model.RoleAdmin); err != nil {
		return nil, err
	}

	batch, err := corpus.ReadBatch(r, s.maxBytes)
	if err != nil {
		return nil, err
	}

	report, commit, err := parse(batch.Data)
	if err != nil {
		return nil, apperror.ValidationFailed("batch", err.Error())
	}
	if report.Accepted == 0 {
		// Replacing with nothing would wipe the table; treat it as a bad upload.
		return nil, apperror.ValidationFailed("batch",
			fmt.Sprintf("%s batch has no valid records (%d rejected)", table, report.Rejected))
	}

	run := &model.ImportRun{
		Table:      table,
		Language:   language,
		Accepted:   report.Accepted,
		Rejected:   report.Rejected,
		Digest:     batch.Digest,
		ImportedBy: actor.ID,
	}
	if err := commit(run); err != nil {
		s.logger.Error("corpus import failed",
			slog.String("table", string(table)),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("importing %s: %w", table, err)
	}

	s.logger.Info("corpus imported",
		slog.String("table", string(table)),
		slog.String("language", language),
		slog.Int("accepted", report.Accepted),
		slog.Int("rejected", report.Rejected),
		slog.String("compression", string(batch.Compression)),
		slog.String("digest", batch.Digest),
		slog.String("by", actor.ID),
	)
	return &ImportReport{Run: run, Report: report, Compression: batch.Compression}, nil
}

// ListImportRuns lists the import audit log, newest first. Admin only.
func (s *CorpusService) ListImportRuns(ctx context.Context, actor model.Actor, limit, offset int) ([]model.ImportRun, error) {
	if err := auth.Require(actor, model.RoleAdmin); err != nil {
		return nil, err
	}
	return s.repo.ListImportRuns(ctx, listOptions(limit, offset))
}

func validateLanguage(language string) error {
	if !languagePattern.MatchString(language) {
		return apperror.ValidationFailed("language", "language must be a code like \"en\" or \"ur\"")
	}
	return nil
}
