package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/warp/library-engine/library"
)

// =============================================================================
// RANKINGS
// =============================================================================

type bookRankingRow struct {
	BookID    int64  `db:"book_id"`
	Title     string `db:"title"`
	Author    string `db:"author"`
	LoanCount int    `db:"loan_count"`
}

type userRankingRow struct {
	UserID    int64  `db:"user_id"`
	Name      string `db:"name"`
	Email     string `db:"email"`
	Role      string `db:"role"`
	LoanCount int    `db:"loan_count"`
}

// TopBorrowedBooks counts every loan ever made, books without loans included.
func (s *Store) TopBorrowedBooks(ctx context.Context, limit int) ([]library.BookRanking, error) {
	defer s.rlock()()

	var rows []bookRankingRow
	err := s.selectAll(ctx, &rows, `
		SELECT b.id AS book_id, b.title, b.author, COUNT(l.id) AS loan_count
		FROM books b
		LEFT JOIN loans l ON l.book_id = b.id
		GROUP BY b.id, b.title, b.author
		ORDER BY loan_count DESC, b.id ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}

	out := make([]library.BookRanking, len(rows))
	for i, r := range rows {
		out[i] = library.BookRanking{BookID: r.BookID, Title: r.Title, Author: r.Author, LoanCount: r.LoanCount}
	}
	return out, nil
}

func (s *Store) TopBorrowingUsers(ctx context.Context, limit int) ([]library.UserRanking, error) {
	defer s.rlock()()

	var rows []userRankingRow
	err := s.selectAll(ctx, &rows, `
		SELECT u.id AS user_id, u.name, u.email, u.role, COUNT(l.id) AS loan_count
		FROM users u
		LEFT JOIN loans l ON l.user_id = u.id
		GROUP BY u.id, u.name, u.email, u.role
		ORDER BY loan_count DESC, u.id ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}

	out := make([]library.UserRanking, len(rows))
	for i, r := range rows {
		out[i] = library.UserRanking{
			UserID:    r.UserID,
			Name:      r.Name,
			Email:     r.Email,
			Role:      library.Role(r.Role),
			LoanCount: r.LoanCount,
		}
	}
	return out, nil
}

// =============================================================================
// SWEEP RUNS
// =============================================================================

type sweepRunRow struct {
	ID           string         `db:"id"`
	StartedAt    string         `db:"started_at"`
	CompletedAt  sql.NullString `db:"completed_at"`
	OverdueCount int            `db:"overdue_count"`
	DueSoonCount int            `db:"due_soon_count"`
	Transitioned int64          `db:"transitioned"`
	Error        string         `db:"error"`
}

// SaveSweepRun inserts or replaces a run by id.
func (s *Store) SaveSweepRun(ctx context.Context, r library.SweepRun) error {
	defer s.lock()()

	var completedAt sql.NullString
	if r.CompletedAt != nil {
		completedAt = sql.NullString{String: r.CompletedAt.UTC().Format(time.RFC3339), Valid: true}
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO sweep_runs (id, started_at, completed_at, overdue_count, due_soon_count, transitioned, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			completed_at = excluded.completed_at,
			overdue_count = excluded.overdue_count,
			due_soon_count = excluded.due_soon_count,
			transitioned = excluded.transitioned,
			error = excluded.error`,
		r.ID, r.StartedAt.UTC().Format(time.RFC3339), completedAt,
		r.OverdueCount, r.DueSoonCount, r.Transitioned, r.Error)
	return err
}

// ListSweepRuns returns the most recent runs first.
func (s *Store) ListSweepRuns(ctx context.Context, limit int) ([]library.SweepRun, error) {
	defer s.rlock()()

	var rows []sweepRunRow
	err := s.selectAll(ctx, &rows, `
		SELECT id, started_at, completed_at, overdue_count, due_soon_count, transitioned, error
		FROM sweep_runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}

	runs := make([]library.SweepRun, len(rows))
	for i, r := range rows {
		runs[i] = library.SweepRun{
			ID:           r.ID,
			StartedAt:    parseTime(r.StartedAt),
			OverdueCount: r.OverdueCount,
			DueSoonCount: r.DueSoonCount,
			Transitioned: r.Transitioned,
			Error:        r.Error,
		}
		if r.CompletedAt.Valid {
			t := parseTime(r.CompletedAt.String)
			runs[i].CompletedAt = &t
		}
	}
	return runs, nil
}
