package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/library-engine/library"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

type seed struct {
	category library.Category
	book     library.Book
	user     library.User
}

func seedStore(t *testing.T, s *Store, copies int) seed {
	t.Helper()
	ctx := context.Background()

	sd := seed{category: library.Category{Name: "Fiction"}}
	require.NoError(t, s.InsertCategory(ctx, &sd.category))

	sd.book = library.Book{
		Title: "Emma", Author: "Jane Austen", ISBN: "978-0141439587",
		CategoryID: sd.category.ID, Total: copies, Available: copies,
	}
	require.NoError(t, s.InsertBook(ctx, &sd.book))

	sd.user = library.User{
		Name: "Harriet", Email: "harriet@example.org", PasswordHash: "hash",
		Role: library.RoleStudent, Active: true,
	}
	require.NoError(t, s.InsertUser(ctx, &sd.user))
	return sd
}

func openLoan(t *testing.T, s *Store, sd seed, on library.Date, days int) library.Loan {
	t.Helper()
	l := library.Loan{
		UserID: sd.user.ID, BookID: sd.book.ID,
		LoanDate: on, ExpectedReturn: on.AddDays(days),
		Status: library.LoanActive,
	}
	require.NoError(t, s.InsertLoan(context.Background(), &l))
	return l
}

// =============================================================================
// AVAILABILITY GUARDS
// =============================================================================

func TestAvailabilityGuards(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sd := seedStore(t, s, 2)

	ok, err := s.IncrementAvailable(ctx, sd.book.ID)
	require.NoError(t, err)
	assert.False(t, ok, "cannot exceed total copies")

	for i := 0; i < 2; i++ {
		ok, err = s.DecrementAvailable(ctx, sd.book.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err = s.DecrementAvailable(ctx, sd.book.ID)
	require.NoError(t, err)
	assert.False(t, ok, "cannot go below zero")

	b, err := s.GetBook(ctx, sd.book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, b.Available)
	assert.Equal(t, "Fiction", b.CategoryName)

	ok, err = s.DecrementAvailable(ctx, 999)
	require.NoError(t, err)
	assert.False(t, ok)

	missing, err := s.GetBook(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

// =============================================================================
// LOANS
// =============================================================================

func TestLoanTransitions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sd := seedStore(t, s, 3)
	d := library.NewDate(2025, time.March, 10)

	late := openLoan(t, s, sd, d, 14)
	onTime := openLoan(t, s, sd, d.AddDays(10), 14)

	today := d.AddDays(15)
	overdue, err := s.ListOverdueLoans(ctx, today)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, late.ID, overdue[0].ID)
	assert.Equal(t, "Emma", overdue[0].BookTitle)
	assert.Equal(t, "Harriet", overdue[0].UserName)

	n, err := s.MarkOverdue(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = s.MarkOverdue(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	overdue, err = s.ListOverdueLoans(ctx, today)
	require.NoError(t, err)
	assert.Len(t, overdue, 1, "swept loans still count as overdue")

	ok, err := s.MarkReturned(ctx, late.ID, today)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.MarkReturned(ctx, late.ID, today)
	require.NoError(t, err)
	assert.False(t, ok, "second return changes nothing")

	got, err := s.GetLoan(ctx, late.ID)
	require.NoError(t, err)
	assert.Equal(t, library.LoanReturned, got.Status)
	require.NotNil(t, got.ActualReturn)
	assert.Equal(t, today, *got.ActualReturn)

	open, err := s.CountOpenLoans(ctx, sd.user.ID, sd.book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, open)

	due, err := s.ListLoansDueBetween(ctx, today, today.AddDays(10))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, onTime.ID, due[0].ID)

	total, err := s.CountLoansByBook(ctx, sd.book.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	none, err := s.GetLoan(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, none)
}

// =============================================================================
// TRANSACTIONS AND CONSTRAINTS
// =============================================================================

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sd := seedStore(t, s, 1)
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx library.Store) error {
		ok, err := tx.DecrementAvailable(ctx, sd.book.ID)
		require.NoError(t, err)
		require.True(t, ok)
		l := library.Loan{
			UserID: sd.user.ID, BookID: sd.book.ID,
			LoanDate: library.NewDate(2025, 3, 10), ExpectedReturn: library.NewDate(2025, 3, 24),
			Status: library.LoanActive,
		}
		require.NoError(t, tx.InsertLoan(ctx, &l))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	b, err := s.GetBook(ctx, sd.book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, b.Available)
	loans, err := s.ListAllLoans(ctx)
	require.NoError(t, err)
	assert.Empty(t, loans)

	err = s.WithTx(ctx, func(tx library.Store) error {
		_, err := tx.DecrementAvailable(ctx, sd.book.ID)
		return err
	})
	require.NoError(t, err)
	b, err = s.GetBook(ctx, sd.book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, b.Available)
}

func TestUniqueViolations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sd := seedStore(t, s, 1)

	dupCat := library.Category{Name: "Fiction"}
	assert.ErrorIs(t, s.InsertCategory(ctx, &dupCat), library.ErrDuplicateCategory)

	dupBook := sd.book
	dupBook.ID = 0
	dupBook.Title = "Emma (again)"
	assert.ErrorIs(t, s.InsertBook(ctx, &dupBook), library.ErrDuplicateISBN)

	dupUser := sd.user
	dupUser.ID = 0
	assert.ErrorIs(t, s.InsertUser(ctx, &dupUser), library.ErrEmailInUse)

	// The schema refuses availability above total even without the guards.
	bad := sd.book
	bad.Available = bad.Total + 1
	_, err := s.UpdateBook(ctx, bad)
	assert.Error(t, err)
}

// =============================================================================
// REPORTS
// =============================================================================

func TestSweepRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	started := time.Date(2025, 3, 10, 2, 0, 0, 0, time.UTC)

	run := library.SweepRun{ID: "run-1", StartedAt: started}
	require.NoError(t, s.SaveSweepRun(ctx, run))

	done := started.Add(time.Second)
	run.CompletedAt = &done
	run.OverdueCount = 4
	run.Transitioned = 2
	require.NoError(t, s.SaveSweepRun(ctx, run))

	require.NoError(t, s.SaveSweepRun(ctx, library.SweepRun{ID: "run-2", StartedAt: started.Add(time.Hour), Error: "notify: boom"}))

	runs, err := s.ListSweepRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID, "newest first")
	assert.Nil(t, runs[0].CompletedAt)
	assert.Equal(t, "notify: boom", runs[0].Error)
	assert.Equal(t, 4, runs[1].OverdueCount)
	assert.Equal(t, int64(2), runs[1].Transitioned)
	require.NotNil(t, runs[1].CompletedAt)
	assert.True(t, done.Equal(*runs[1].CompletedAt))
}
