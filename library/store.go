/*
store.go - Persistence contracts for the library engine

PURPOSE:
  Services depend on these interfaces, never on a concrete database.
  store/sqlite provides the production implementation.

CONVENTIONS:
  - Get* returns (nil, nil) when the record does not exist.
  - Update, Delete and Mark methods return false when no row matched.
  - Unique violations come back as the matching library sentinel
    (ErrDuplicateISBN, ErrEmailInUse, ErrDuplicateCategory).
  - Any other error is an infrastructure fault.

ATOMICITY:
  WithTx runs fn against a store bound to one database transaction.
  Checkout and return use it so the loan row and the availability
  counter always move together.
*/
package library

import (
	"context"
)

// CatalogStore persists categories and books.
type CatalogStore interface {
	InsertCategory(ctx context.Context, c *Category) error
	UpdateCategory(ctx context.Context, c Category) (bool, error)
	DeleteCategory(ctx context.Context, id int64) (bool, error)
	GetCategory(ctx context.Context, id int64) (*Category, error)
	GetCategoryByName(ctx context.Context, name string) (*Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
	CountBooksInCategory(ctx context.Context, id int64) (int, error)

	InsertBook(ctx context.Context, b *Book) error
	UpdateBook(ctx context.Context, b Book) (bool, error)
	DeleteBook(ctx context.Context, id int64) (bool, error)
	GetBook(ctx context.Context, id int64) (*Book, error)
	GetBookByISBN(ctx context.Context, isbn string) (*Book, error)
	ListBooks(ctx context.Context, filter BookFilter) ([]Book, error)
	CountBooks(ctx context.Context) (int, error)

	// DecrementAvailable succeeds only while available > 0.
	DecrementAvailable(ctx context.Context, bookID int64) (bool, error)
	// IncrementAvailable succeeds only while available < total.
	IncrementAvailable(ctx context.Context, bookID int64) (bool, error)
}

// UserFilter narrows ListUsers. Zero values mean "any".
type UserFilter struct {
	Name       string
	Role       Role
	ActiveOnly bool
}

// UserStore persists directory entries.
type UserStore interface {
	InsertUser(ctx context.Context, u *User) error
	UpdateUser(ctx context.Context, u User) (bool, error)
	UpdatePassword(ctx context.Context, id int64, hash string) (bool, error)
	SetActive(ctx context.Context, id int64, active bool) (bool, error)
	DeleteUser(ctx context.Context, id int64) (bool, error)
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context, filter UserFilter) ([]User, error)
	CountUsers(ctx context.Context) (int, error)
}

// LoanStore persists the loan ledger.
type LoanStore interface {
	InsertLoan(ctx context.Context, l *Loan) error
	GetLoan(ctx context.Context, id int64) (*Loan, error)

	// MarkReturned closes the loan unless it is already RETURNED.
	MarkReturned(ctx context.Context, id int64, on Date) (bool, error)

	// MarkOverdue moves every ACTIVE loan due before today to OVERDUE.
	MarkOverdue(ctx context.Context, today Date) (int64, error)

	ListAllLoans(ctx context.Context) ([]Loan, error)
	ListActiveLoans(ctx context.Context) ([]Loan, error)
	ListOverdueLoans(ctx context.Context, today Date) ([]Loan, error)
	ListLoansDueBetween(ctx context.Context, from, to Date) ([]Loan, error)
	ListLoansByUser(ctx context.Context, userID int64) ([]Loan, error)

	CountOpenLoans(ctx context.Context, userID, bookID int64) (int, error)
	CountLoansByBook(ctx context.Context, bookID int64) (int, error)
	CountLoansByUser(ctx context.Context, userID int64) (int, error)
	CountActiveLoans(ctx context.Context) (int, error)
}

// ReportStore serves read-only aggregates and the sweep history.
type ReportStore interface {
	TopBorrowedBooks(ctx context.Context, limit int) ([]BookRanking, error)
	TopBorrowingUsers(ctx context.Context, limit int) ([]UserRanking, error)

	SaveSweepRun(ctx context.Context, run SweepRun) error
	ListSweepRuns(ctx context.Context, limit int) ([]SweepRun, error)
}

// Store is the full persistence surface.
type Store interface {
	CatalogStore
	UserStore
	LoanStore
	ReportStore

	WithTx(ctx context.Context, fn func(Store) error) error
}
