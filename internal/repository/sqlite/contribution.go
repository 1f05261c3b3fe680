package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/quran-notes/internal/apperror"
	"github.com/sakif/quran-notes/internal/model"
	"github.com/sakif/quran-notes/internal/repository"
)

var _ repository.ContributionRepository = (*DB)(nil)

const contributionColumns = `id, author_id, kind, reference, content, status, reviewer_id, created_at, reviewed_at`

// CreateContribution inserts c with the status the service decided on.
func (db *DB) CreateContribution(ctx context.Context, c *model.Contribution) error {
	c.ID = xid.New().String()
	c.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO contributions (id, author_id, kind, reference, content, status, reviewer_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		c.AuthorID,
		string(c.Kind),
		c.Reference,
		c.Content,
		string(c.Status),
		nullString(c.ReviewerID),
		c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating contribution: %w", err)
	}
	return nil
}

// GetContribution retrieves a contribution by ID.
func (db *DB) GetContribution(ctx context.Context, id string) (*model.Contribution, error) {
	c, err := scanContribution(db.conn.QueryRowContext(ctx,
		`SELECT `+contributionColumns+` FROM contributions WHERE id = ?`, id,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("contribution", id)
		}
		return nil, fmt.Errorf("sqlite: getting contribution %s: %w", id, err)
	}
	return c, nil
}

// TransitionContribution moves a pending contribution to a terminal status.
//
// The precondition lives in the WHERE clause: "status = 'pending'". SQLite
// serialises writers, so when two reviewers race exactly one UPDATE matches
// the row and the other affects zero rows. The read of the updated row
// happens in the same transaction, so a failed read leaves the contribution
// pending rather than moderated behind the caller's back.
func (db *DB) TransitionContribution(ctx context.Context, id string, status model.ContributionStatus, reviewerID string, at time.Time) (*model.Contribution, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: beginning moderation of %s: %w", id, err)
	}
	defer tx.Rollback() // no-op after Commit

	result, err := tx.ExecContext(ctx,
		`UPDATE contributions
		 SET status = ?, reviewer_id = ?, reviewed_at = ?
		 WHERE id = ? AND status = 'pending'`,
		string(status), reviewerID, at.UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: moderating contribution %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}

	current, err := scanContribution(tx.QueryRowContext(ctx,
		`SELECT `+contributionColumns+` FROM contributions WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("contribution", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading contribution %s: %w", id, err)
	}
	if n == 0 {
		return nil, apperror.AlreadyModerated(id, string(current.Status))
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: committing moderation of %s: %w", id, err)
	}
	return current, nil
}

// ListContributions returns contributions matching filter, newest first.
func (db *DB) ListContributions(ctx context.Context, filter repository.ContributionFilter, opts repository.ListOptions) ([]model.Contribution, error) {
	limit, offset := clampList(opts)

	var (
		where []string
		args  []any
	)
	if filter.AuthorID != "" {
		where = append(where, "author_id = ?")
		args = append(args, filter.AuthorID)
	}
	if filter.Reference != "" {
		where = append(where, "reference = ?")
		args = append(args, filter.Reference)
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, string(s))
		}
		clause := "status IN (" + strings.Join(placeholders, ", ") + ")"
		if filter.OwnerID != "" {
			clause = "(" + clause + " OR author_id = ?)"
			args = append(args, filter.OwnerID)
		}
		where = append(where, clause)
	}

	query := `SELECT ` + contributionColumns + ` FROM contributions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing contributions: %w", err)
	}
	defer rows.Close()

	contributions := make([]model.Contribution, 0, limit)
	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning contribution row: %w", err)
		}
		contributions = append(contributions, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating contributions: %w", err)
	}
	return contributions, nil
}

func scanContribution(row rowScanner) (*model.Contribution, error) {
	var (
		c          model.Contribution
		kind       string
		status     string
		reviewerID sql.NullString
		reviewedAt sql.NullTime
	)
	if err := row.Scan(
		&c.ID,
		&c.AuthorID,
		&kind,
		&c.Reference,
		&c.Content,
		&status,
		&reviewerID,
		&c.CreatedAt,
		&reviewedAt,
	); err != nil {
		return nil, err
	}
	c.Kind = model.ContributionKind(kind)
	c.Status = model.ContributionStatus(status)
	c.ReviewerID = reviewerID.String
	if reviewedAt.Valid {
		t := reviewedAt.Time
		c.ReviewedAt = &t
	}
	return &c, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
