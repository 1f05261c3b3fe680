package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sakif/quran-notes/internal/apperror"
	"github.com/sakif/quran-notes/internal/model"
	"github.com/sakif/quran-notes/internal/repository"
)

var _ repository.HighlightRepository = (*DB)(nil)

// UpsertHighlight writes a highlight keyed by (user, surah, ayah, position).
//
// ON CONFLICT ... DO UPDATE keeps it a single statement: there is never a
// moment where the old row is gone and the new one not yet written, and
// repeating the call leaves exactly one row holding the latest values.
func (db *DB) UpsertHighlight(ctx context.Context, h *model.Highlight) error {
	h.UpdatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO highlights (user_id, surah, ayah, position, color, note, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, surah, ayah, position)
		 DO UPDATE SET color = excluded.color,
		               note = excluded.note,
		               updated_at = excluded.updated_at`,
		h.UserID, h.Surah, h.Ayah, h.Position, h.Color, h.Note, h.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting highlight %s@%s: %w",
			h.UserID, coordinate(h.Surah, h.Ayah, h.Position), err)
	}
	return nil
}

// GetHighlight returns apperror.ErrNotFound when the word is not highlighted.
func (db *DB) GetHighlight(ctx context.Context, userID string, surah, ayah, position int) (*model.Highlight, error) {
	h := model.Highlight{UserID: userID, Surah: surah, Ayah: ayah, Position: position}
	err := db.conn.QueryRowContext(ctx,
		`SELECT color, note, updated_at FROM highlights
		 WHERE user_id = ? AND surah = ? AND ayah = ? AND position = ?`,
		userID, surah, ayah, position,
	).Scan(&h.Color, &h.Note, &h.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("highlight", coordinate(surah, ayah, position))
		}
		return nil, fmt.Errorf("sqlite: getting highlight: %w", err)
	}
	return &h, nil
}

// ListVerseHighlights returns the user's highlights in one verse by position.
func (db *DB) ListVerseHighlights(ctx context.Context, userID string, surah, ayah int) ([]model.Highlight, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT position, color, note, updated_at FROM highlights
		 WHERE user_id = ? AND surah = ? AND ayah = ?
		 ORDER BY position`,
		userID, surah, ayah,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing highlights: %w", err)
	}
	defer rows.Close()

	highlights := []model.Highlight{}
	for rows.Next() {
		h := model.Highlight{UserID: userID, Surah: surah, Ayah: ayah}
		if err := rows.Scan(&h.Position, &h.Color, &h.Note, &h.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning highlight: %w", err)
		}
		highlights = append(highlights, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating highlights: %w", err)
	}
	return highlights, nil
}
