package library

import (
	"time"
)

// =============================================================================
// CATALOG
// =============================================================================

type Category struct {
	ID          int64
	Name        string
	Description string
	BookCount   int // derived by list queries, never stored
	CreatedAt   time.Time
}

// Book is a catalog title with a pool of interchangeable copies.
// Invariant: 0 <= Available <= Total.
type Book struct {
	ID           int64
	Title        string
	Author       string
	ISBN         string
	CategoryID   int64
	CategoryName string
	Total        int
	Available    int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OnLoan is the number of copies currently checked out.
func (b Book) OnLoan() int {
	return b.Total - b.Available
}

// BookFilter narrows FilterBooks. Zero values mean "any".
type BookFilter struct {
	Title         string
	Author        string
	CategoryID    int64
	AvailableOnly bool
}

// =============================================================================
// DIRECTORY
// =============================================================================

type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// =============================================================================
// LOANS
// =============================================================================

type LoanStatus string

const (
	LoanActive   LoanStatus = "ACTIVE"
	LoanReturned LoanStatus = "RETURNED"
	LoanOverdue  LoanStatus = "OVERDUE"
)

func (s LoanStatus) Valid() bool {
	switch s {
	case LoanActive, LoanReturned, LoanOverdue:
		return true
	}
	return false
}

// Loan is one checkout of one copy. Status is the snapshot stored by the
// last write (checkout, return or sweep); EffectiveStatus recomputes it.
type Loan struct {
	ID             int64
	UserID         int64
	BookID         int64
	LoanDate       Date
	ExpectedReturn Date
	ActualReturn   *Date
	Status         LoanStatus
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time

	// Display fields joined from users/books.
	UserName   string
	UserEmail  string
	BookTitle  string
	BookAuthor string
}

// =============================================================================
// REPORTING
// =============================================================================

// BookRanking is one row of the most-borrowed books report.
type BookRanking struct {
	BookID    int64
	Title     string
	Author    string
	LoanCount int
}

// UserRanking is one row of the most-active users report.
type UserRanking struct {
	UserID    int64
	Name      string
	Email     string
	Role      Role
	LoanCount int
}

// Summary holds the dashboard counters.
type Summary struct {
	TotalBooks   int
	TotalUsers   int
	ActiveLoans  int
	OverdueLoans int
}

// SweepRun records one execution of the overdue sweeper.
type SweepRun struct {
	ID           string
	StartedAt    time.Time
	CompletedAt  *time.Time
	OverdueCount int
	DueSoonCount int
	Transitioned int64
	Error        string
}
