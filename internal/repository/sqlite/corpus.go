package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/quran-notes/internal/apperror"
	"github.com/sakif/quran-notes/internal/model"
	"github.com/sakif/quran-notes/internal/repository"
)

var _ repository.CorpusRepository = (*DB)(nil)

// VerseWords returns the word slots of a verse ordered by position.
//
// The LEFT JOIN keeps positions whose word_id has no dictionary entry; those
// come back with Orphan set so the service can report them instead of
// silently rendering a hole.
func (db *DB) VerseWords(ctx context.Context, surah, ayah int) ([]model.VerseWord, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT wp.position, wp.word_id, d.word_id IS NULL,
		        COALESCE(d.arabic, ''), COALESCE(d.translations, '{}')
		 FROM word_positions wp
		 LEFT JOIN dictionary d ON d.word_id = wp.word_id
		 WHERE wp.surah = ? AND wp.ayah = ?
		 ORDER BY wp.position`,
		surah, ayah,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading verse %d:%d: %w", surah, ayah, err)
	}
	defer rows.Close()

	var words []model.VerseWord
	for rows.Next() {
		var (
			w            model.VerseWord
			translations string
		)
		if err := rows.Scan(&w.Position, &w.WordID, &w.Orphan, &w.Arabic, &translations); err != nil {
			return nil, fmt.Errorf("sqlite: scanning verse word: %w", err)
		}
		if !w.Orphan {
			if err := json.Unmarshal([]byte(translations), &w.Meanings); err != nil {
				return nil, fmt.Errorf("sqlite: decoding meanings of word %s: %w", w.WordID, err)
			}
		}
		words = append(words, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating verse words: %w", err)
	}
	return words, nil
}

// GetWord returns a dictionary entry.
func (db *DB) GetWord(ctx context.Context, wordID string) (*model.WordEntry, error) {
	var (
		e            model.WordEntry
		translations string
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT word_id, arabic, diacritics, translations FROM dictionary WHERE word_id = ?`,
		wordID,
	).Scan(&e.WordID, &e.Arabic, &e.Diacritics, &translations)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("word", wordID)
		}
		return nil, fmt.Errorf("sqlite: getting word %s: %w", wordID, err)
	}
	if err := json.Unmarshal([]byte(translations), &e.Translations); err != nil {
		return nil, fmt.Errorf("sqlite: decoding translations of word %s: %w", wordID, err)
	}
	return &e, nil
}

// WordIDAt resolves a word coordinate.
func (db *DB) WordIDAt(ctx context.Context, surah, ayah, position int) (string, error) {
	var wordID string
	err := db.conn.QueryRowContext(ctx,
		`SELECT word_id FROM word_positions WHERE surah = ? AND ayah = ? AND position = ?`,
		surah, ayah, position,
	).Scan(&wordID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", apperror.NotFound("word position", coordinate(surah, ayah, position))
		}
		return "", fmt.Errorf("sqlite: resolving %s: %w", coordinate(surah, ayah, position), err)
	}
	return wordID, nil
}

// GetVerseTranslation returns the verse text in one language.
func (db *DB) GetVerseTranslation(ctx context.Context, surah, ayah int, language string) (*model.VerseTranslation, error) {
	v := model.VerseTranslation{Surah: surah, Ayah: ayah, Language: language}
	err := db.conn.QueryRowContext(ctx,
		`SELECT arabic, translation FROM verse_translations
		 WHERE surah = ? AND ayah = ? AND language = ?`,
		surah, ayah, language,
	).Scan(&v.Arabic, &v.Translation)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("verse", fmt.Sprintf("%d:%d/%s", surah, ayah, language))
		}
		return nil, fmt.Errorf("sqlite: getting verse %d:%d/%s: %w", surah, ayah, language, err)
	}
	return &v, nil
}

// SearchVerses walks the verses of one language in verse order and keeps
// the first limit rows accepted by match.
//
// Matching happens in Go rather than with LIKE: SQLite's LIKE only folds
// ASCII case, and the corpus is mostly non-ASCII.
func (db *DB) SearchVerses(ctx context.Context, language string, match repository.VerseMatcher, limit int) ([]model.SearchResult, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT surah, ayah, arabic, translation FROM verse_translations
		 WHERE language = ?
		 ORDER BY surah, ayah`,
		language,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: searching verses: %w", err)
	}
	defer rows.Close()

	results := []model.SearchResult{}
	for rows.Next() {
		var r model.SearchResult
		if err := rows.Scan(&r.Surah, &r.Ayah, &r.Arabic, &r.Translation); err != nil {
			return nil, fmt.Errorf("sqlite: scanning verse row: %w", err)
		}
		if !match(r.Arabic, r.Translation) {
			continue
		}
		results = append(results, r)
		if len(results) >= limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating verses: %w", err)
	}
	return results, nil
}

// ReplaceDictionary swaps the whole dictionary for entries.
func (db *DB) ReplaceDictionary(ctx context.Context, entries []model.WordEntry, run *model.ImportRun) error {
	return db.replace(ctx, run, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM dictionary`); err != nil {
			return fmt.Errorf("clearing dictionary: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO dictionary (word_id, arabic, diacritics, translations) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("preparing dictionary insert: %w", err)
		}
		defer stmt.Close()

		for _, e := range entries {
			translations, err := json.Marshal(e.Translations)
			if err != nil {
				return fmt.Errorf("encoding translations of word %s: %w", e.WordID, err)
			}
			if _, err := stmt.ExecContext(ctx, e.WordID, e.Arabic, e.Diacritics, string(translations)); err != nil {
				return fmt.Errorf("inserting word %s: %w", e.WordID, err)
			}
		}
		return nil
	})
}

// ReplaceWordMapping swaps the whole word_positions table.
func (db *DB) ReplaceWordMapping(ctx context.Context, positions []model.WordPosition, run *model.ImportRun) error {
	return db.replace(ctx, run, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM word_positions`); err != nil {
			return fmt.Errorf("clearing word positions: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO word_positions (surah, ayah, position, word_id) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("preparing word position insert: %w", err)
		}
		defer stmt.Close()

		for _, p := range positions {
			if _, err := stmt.ExecContext(ctx, p.Surah, p.Ayah, p.Position, p.WordID); err != nil {
				return fmt.Errorf("inserting %s: %w", coordinate(p.Surah, p.Ayah, p.Position), err)
			}
		}
		return nil
	})
}

// ReplaceVerseTranslations swaps every verse of one language. Other
// languages are left as they are: the language is part of the row identity.
func (db *DB) ReplaceVerseTranslations(ctx context.Context, language string, verses []model.VerseTranslation, run *model.ImportRun) error {
	return db.replace(ctx, run, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM verse_translations WHERE language = ?`, language); err != nil {
			return fmt.Errorf("clearing %s translations: %w", language, err)
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO verse_translations (surah, ayah, language, arabic, translation) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("preparing translation insert: %w", err)
		}
		defer stmt.Close()

		for _, v := range verses {
			if _, err := stmt.ExecContext(ctx, v.Surah, v.Ayah, language, v.Arabic, v.Translation); err != nil {
				return fmt.Errorf("inserting verse %d:%d: %w", v.Surah, v.Ayah, err)
			}
		}
		return nil
	})
}

// replace runs fill and records run inside one transaction. Nothing fill
// does is visible to other connections until Commit, and a failure anywhere
// rolls the table back to its previous contents.
func (db *DB) replace(ctx context.Context, run *model.ImportRun, fill func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning %s import: %w", run.Table, err)
	}
	defer tx.Rollback() // no-op after Commit

	if err := fill(tx); err != nil {
		return fmt.Errorf("sqlite: importing %s: %w", run.Table, err)
	}

	run.ID = xid.New().String()
	run.CreatedAt = time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO import_runs (id, table_name, language, accepted, rejected, digest, imported_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Table), run.Language, run.Accepted, run.Rejected,
		run.Digest, run.ImportedBy, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: recording %s import: %w", run.Table, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing %s import: %w", run.Table, err)
	}
	return nil
}

// ListImportRuns returns the import audit log, newest first.
func (db *DB) ListImportRuns(ctx context.Context, opts repository.ListOptions) ([]model.ImportRun, error) {
	limit, offset := clampList(opts)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, table_name, language, accepted, rejected, digest, imported_by, created_at
		 FROM import_runs
		 ORDER BY created_at DESC
		 LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing import runs: %w", err)
	}
	defer rows.Close()

	runs := make([]model.ImportRun, 0, limit)
	for rows.Next() {
		var (
			r     model.ImportRun
			table string
		)
		if err := rows.Scan(&r.ID, &table, &r.Language, &r.Accepted, &r.Rejected,
			&r.Digest, &r.ImportedBy, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning import run: %w", err)
		}
		r.Table = model.ImportTable(table)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating import runs: %w", err)
	}
	return runs, nil
}

func coordinate(surah, ayah, position int) string {
	return strconv.Itoa(surah) + ":" + strconv.Itoa(ayah) + ":" + strconv.Itoa(position)
}
