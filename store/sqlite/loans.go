package sqlite

import (
	"context"
	"database/sql"

	"github.com/warp/library-engine/library"
)

type loanRow struct {
	ID             int64          `db:"id"`
	UserID         int64          `db:"user_id"`
	BookID         int64          `db:"book_id"`
	LoanDate       string         `db:"loan_date"`
	ExpectedReturn string         `db:"expected_return_date"`
	ActualReturn   sql.NullString `db:"actual_return_date"`
	Status         string         `db:"status"`
	Notes          string         `db:"notes"`
	CreatedAt      string         `db:"created_at"`
	UpdatedAt      string         `db:"updated_at"`
	UserName       string         `db:"user_name"`
	UserEmail      string         `db:"user_email"`
	BookTitle      string         `db:"book_title"`
	BookAuthor     string         `db:"book_author"`
}

func (r loanRow) toLoan() library.Loan {
	l := library.Loan{
		ID:             r.ID,
		UserID:         r.UserID,
		BookID:         r.BookID,
		LoanDate:       parseDate(r.LoanDate),
		ExpectedReturn: parseDate(r.ExpectedReturn),
		Status:         library.LoanStatus(r.Status),
		Notes:          r.Notes,
		CreatedAt:      parseTime(r.CreatedAt),
		UpdatedAt:      parseTime(r.UpdatedAt),
		UserName:       r.UserName,
		UserEmail:      r.UserEmail,
		BookTitle:      r.BookTitle,
		BookAuthor:     r.BookAuthor,
	}
	if r.ActualReturn.Valid {
		d := parseDate(r.ActualReturn.String)
		l.ActualReturn = &d
	}
	return l
}

const loanSelect = `
	SELECT l.id, l.user_id, l.book_id, l.loan_date, l.expected_return_date,
		l.actual_return_date, l.status, l.notes, l.created_at, l.updated_at,
		COALESCE(u.name, '') AS user_name, COALESCE(u.email, '') AS user_email,
		COALESCE(b.title, '') AS book_title, COALESCE(b.author, '') AS book_author
	FROM loans l
	LEFT JOIN users u ON u.id = l.user_id
	LEFT JOIN books b ON b.id = l.book_id
`

func (s *Store) InsertLoan(ctx context.Context, l *library.Loan) error {
	defer s.lock()()

	ts := now()
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO loans (user_id, book_id, loan_date, expected_return_date, status, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.UserID, l.BookID, l.LoanDate.String(), l.ExpectedReturn.String(),
		string(l.Status), l.Notes, ts, ts)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	l.ID = id
	l.CreatedAt = parseTime(ts)
	l.UpdatedAt = l.CreatedAt
	return nil
}

func (s *Store) GetLoan(ctx context.Context, id int64) (*library.Loan, error) {
	defer s.rlock()()

	var row loanRow
	found, err := s.get(ctx, &row, loanSelect+` WHERE l.id = ?`, id)
	if err != nil || !found {
		return nil, err
	}
	l := row.toLoan()
	return &l, nil
}

// MarkReturned is guarded by status so a second return changes nothing.
func (s *Store) MarkReturned(ctx context.Context, id int64, on library.Date) (bool, error) {
	defer s.lock()()
	return s.exec(ctx, `
		UPDATE loans SET actual_return_date = ?, status = 'RETURNED', updated_at = ?
		WHERE id = ? AND status != 'RETURNED'`,
		on.String(), now(), id)
}

// MarkOverdue is one set-based statement; re-running it on the same day is a no-op.
func (s *Store) MarkOverdue(ctx context.Context, today library.Date) (int64, error) {
	defer s.lock()()

	res, err := s.q.ExecContext(ctx, `
		UPDATE loans SET status = 'OVERDUE', updated_at = ?
		WHERE status = 'ACTIVE' AND expected_return_date < ?`,
		now(), today.String())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) ListAllLoans(ctx context.Context) ([]library.Loan, error) {
	return s.queryLoans(ctx, loanSelect+` ORDER BY l.loan_date DESC, l.id DESC`)
}

func (s *Store) ListActiveLoans(ctx context.Context) ([]library.Loan, error) {
	return s.queryLoans(ctx, loanSelect+`
		WHERE l.status IN ('ACTIVE', 'OVERDUE')
		ORDER BY l.expected_return_date ASC, l.id ASC`)
}

func (s *Store) ListOverdueLoans(ctx context.Context, today library.Date) ([]library.Loan, error) {
	return s.queryLoans(ctx, loanSelect+`
		WHERE l.status != 'RETURNED' AND l.actual_return_date IS NULL
			AND l.expected_return_date < ?
		ORDER BY l.expected_return_date ASC, l.id ASC`, today.String())
}

func (s *Store) ListLoansDueBetween(ctx context.Context, from, to library.Date) ([]library.Loan, error) {
	return s.queryLoans(ctx, loanSelect+`
		WHERE l.status = 'ACTIVE'
			AND l.expected_return_date BETWEEN ? AND ?
		ORDER BY l.expected_return_date ASC, l.id ASC`, from.String(), to.String())
}

func (s *Store) ListLoansByUser(ctx context.Context, userID int64) ([]library.Loan, error) {
	return s.queryLoans(ctx, loanSelect+`
		WHERE l.user_id = ?
		ORDER BY l.loan_date DESC, l.id DESC`, userID)
}

func (s *Store) queryLoans(ctx context.Context, query string, args ...any) ([]library.Loan, error) {
	defer s.rlock()()

	var rows []loanRow
	if err := s.selectAll(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	loans := make([]library.Loan, len(rows))
	for i, r := range rows {
		loans[i] = r.toLoan()
	}
	return loans, nil
}

func (s *Store) CountOpenLoans(ctx context.Context, userID, bookID int64) (int, error) {
	defer s.rlock()()
	return s.count(ctx, `
		SELECT COUNT(*) FROM loans
		WHERE user_id = ? AND book_id = ? AND status != 'RETURNED'`, userID, bookID)
}

func (s *Store) CountLoansByBook(ctx context.Context, bookID int64) (int, error) {
	defer s.rlock()()
	return s.count(ctx, `SELECT COUNT(*) FROM loans WHERE book_id = ?`, bookID)
}

func (s *Store) CountLoansByUser(ctx context.Context, userID int64) (int, error) {
	defer s.rlock()()
	return s.count(ctx, `SELECT COUNT(*) FROM loans WHERE user_id = ?`, userID)
}

func (s *Store) CountActiveLoans(ctx context.Context) (int, error) {
	defer s.rlock()()
	return s.count(ctx, `SELECT COUNT(*) FROM loans WHERE status IN ('ACTIVE', 'OVERDUE')`)
}
