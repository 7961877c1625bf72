/*
ledger.go - Loan ledger, the coordinator of the checkout/return cycle

PURPOSE:
  The only writer of loan status. Checkout and return each run in one
  database transaction together with the book's availability change, so
  the two can never diverge, including under concurrent checkouts of the
  last copy.

STATE MACHINE:
  ACTIVE  --sweep (today > expected)--> OVERDUE
  ACTIVE  --return-->                   RETURNED
  OVERDUE --return-->                   RETURNED
  RETURNED is terminal.

STORED vs EFFECTIVE STATUS:
  Queries that filter on the stored snapshot:  ListActive, ListDueWithin
  Queries that derive lateness from dates:     ListOverdue
  Loan.EffectiveStatus always recomputes from dates.

SEE ALSO:
  - loan.go: derived accessors
  - sweeper.go: periodic SweepOverdue
*/
package library

import (
	"context"
	"fmt"
)

type Ledger struct {
	service
}

func NewLedger(store Store, opts Options) *Ledger {
	return &Ledger{service: newService(store, "ledger", opts)}
}

// Today is the ledger's notion of the current day.
func (l *Ledger) Today() Date {
	return l.clock.Today()
}

// Checkout lends one copy of bookID to userID. The loan is due after the
// user's role allowance.
func (l *Ledger) Checkout(ctx context.Context, userID, bookID int64, notes string) (*Loan, error) {
	today := l.Today()
	var loan Loan

	err := l.store.WithTx(ctx, func(tx Store) error {
		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrUserNotFound
		}
		if !user.Active {
			return ErrUserInactive
		}
		book, err := tx.GetBook(ctx, bookID)
		if err != nil {
			return err
		}
		if book == nil {
			return ErrBookNotFound
		}
		open, err := tx.CountOpenLoans(ctx, userID, bookID)
		if err != nil {
			return err
		}
		if open > 0 {
			return ErrDuplicateLoan
		}

		loan = Loan{
			UserID:         userID,
			BookID:         bookID,
			LoanDate:       today,
			ExpectedReturn: today.AddDays(user.Role.LoanDays()),
			Status:         LoanActive,
			Notes:          notes,
		}
		if err := tx.InsertLoan(ctx, &loan); err != nil {
			return err
		}
		return checkoutCopy(ctx, l.service, tx, bookID)
	})
	if err != nil {
		if IsClientError(err) || IsNotFound(err) {
			l.log.WithError(err).WithField("user_id", userID).WithField("book_id", bookID).Warn("checkout rejected")
		}
		return nil, l.check("checkout", err)
	}

	l.log.WithField("loan_id", loan.ID).Infof("loan created: user %d book %d due %s", userID, bookID, loan.ExpectedReturn)
	l.record(ctx, "CHECKOUT", fmt.Sprintf("loan %d: book %d to user %d, due %s", loan.ID, bookID, userID, loan.ExpectedReturn))
	return l.GetLoan(ctx, loan.ID)
}

// Return closes a loan today and puts the copy back on the shelf. A loan
// that is already returned fails with ErrAlreadyReturned and leaves
// availability untouched.
func (l *Ledger) Return(ctx context.Context, loanID int64) (*Loan, error) {
	today := l.Today()
	var atCapacity bool
	var bookID int64

	err := l.store.WithTx(ctx, func(tx Store) error {
		loan, err := tx.GetLoan(ctx, loanID)
		if err != nil {
			return err
		}
		if loan == nil {
			return ErrLoanNotFound
		}
		bookID = loan.BookID

		ok, err := tx.MarkReturned(ctx, loanID, today)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyReturned
		}

		err = returnCopy(ctx, l.service, tx, loan.BookID)
		switch {
		case err == nil:
			return nil
		case IsConflict(err) || IsNotFound(err):
			// The loan still closes; the counter was already at its bound.
			atCapacity = true
			return nil
		default:
			return err
		}
	})
	if err != nil {
		if IsClientError(err) || IsNotFound(err) {
			l.log.WithError(err).WithField("loan_id", loanID).Warn("return rejected")
		}
		return nil, l.check("return", err)
	}

	if atCapacity {
		l.log.WithField("loan_id", loanID).WithField("book_id", bookID).
			Warn("returned loan for a book already at capacity or removed")
	}
	l.log.WithField("loan_id", loanID).Infof("loan returned on %s", today)
	l.record(ctx, "RETURN", fmt.Sprintf("loan %d: book %d returned", loanID, bookID))
	return l.GetLoan(ctx, loanID)
}

// SweepOverdue persists ACTIVE -> OVERDUE for every loan due before today.
// Running it twice on the same day changes nothing the second time.
func (l *Ledger) SweepOverdue(ctx context.Context) (int64, error) {
	n, err := l.store.MarkOverdue(ctx, l.Today())
	if err != nil {
		return 0, l.check("sweep overdue", err)
	}
	if n > 0 {
		l.record(ctx, "SWEEP_OVERDUE", fmt.Sprintf("%d loan(s) marked overdue", n))
	}
	return n, nil
}

// =============================================================================
// QUERIES
// =============================================================================

func (l *Ledger) GetLoan(ctx context.Context, id int64) (*Loan, error) {
	loan, err := l.store.GetLoan(ctx, id)
	if err != nil {
		return nil, l.check("get loan", err)
	}
	if loan == nil {
		return nil, ErrLoanNotFound
	}
	return loan, nil
}

// ListAll returns every loan, newest first.
func (l *Ledger) ListAll(ctx context.Context) ([]Loan, error) {
	loans, err := l.store.ListAllLoans(ctx)
	return loans, l.check("list loans", err)
}

// ListActive returns loans whose stored status is ACTIVE or OVERDUE, earliest due first.
func (l *Ledger) ListActive(ctx context.Context) ([]Loan, error) {
	loans, err := l.store.ListActiveLoans(ctx)
	return loans, l.check("list active loans", err)
}

// ListOverdue returns open loans due before today, earliest due first.
// It does not depend on the sweep having run.
func (l *Ledger) ListOverdue(ctx context.Context) ([]Loan, error) {
	loans, err := l.store.ListOverdueLoans(ctx, l.Today())
	return loans, l.check("list overdue loans", err)
}

// ListDueWithin returns ACTIVE loans due between today and today+days inclusive.
func (l *Ledger) ListDueWithin(ctx context.Context, days int) ([]Loan, error) {
	if days < 0 {
		return nil, invalid("days", "days must not be negative")
	}
	today := l.Today()
	loans, err := l.store.ListLoansDueBetween(ctx, today, today.AddDays(days))
	return loans, l.check("list loans due", err)
}

// ListByUser returns a user's loans, newest first.
func (l *Ledger) ListByUser(ctx context.Context, userID int64) ([]Loan, error) {
	loans, err := l.store.ListLoansByUser(ctx, userID)
	return loans, l.check("list loans by user", err)
}

// CountActive counts loans whose stored status is ACTIVE or OVERDUE.
func (l *Ledger) CountActive(ctx context.Context) (int, error) {
	n, err := l.store.CountActiveLoans(ctx)
	return n, l.check("count active loans", err)
}
