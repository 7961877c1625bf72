package library_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/library-engine/library"
)

// =============================================================================
// CATEGORIES
// =============================================================================

func TestCatalog_Categories(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fiction := f.category(t, "  Fiction  ")
	assert.Equal(t, "Fiction", fiction.Name)

	_, err := f.catalog.CreateCategory(ctx, library.Category{Name: "Fiction"})
	assert.ErrorIs(t, err, library.ErrDuplicateCategory)

	_, err = f.catalog.CreateCategory(ctx, library.Category{Name: "   "})
	var verr *library.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Field)

	science := f.category(t, "Science")
	f.book(t, fiction.ID, "Emma", "isbn-e", 1)
	f.book(t, fiction.ID, "Persuasion", "isbn-p", 1)

	cats, err := f.catalog.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "Fiction", cats[0].Name)
	assert.Equal(t, 2, cats[0].BookCount)
	assert.Equal(t, 0, cats[1].BookCount)

	renamed, err := f.catalog.UpdateCategory(ctx, library.Category{ID: science.ID, Name: "Natural Science", Description: "physics, biology"})
	require.NoError(t, err)
	assert.Equal(t, "Natural Science", renamed.Name)

	_, err = f.catalog.UpdateCategory(ctx, library.Category{ID: science.ID, Name: "Fiction"})
	assert.ErrorIs(t, err, library.ErrDuplicateCategory)

	found, err := f.catalog.FindCategoryByName(ctx, "Natural Science")
	require.NoError(t, err)
	assert.Equal(t, science.ID, found.ID)

	assert.ErrorIs(t, f.catalog.DeleteCategory(ctx, fiction.ID), library.ErrCategoryInUse)
	require.NoError(t, f.catalog.DeleteCategory(ctx, science.ID))
	_, err = f.catalog.GetCategory(ctx, science.ID)
	assert.ErrorIs(t, err, library.ErrCategoryNotFound)
	assert.ErrorIs(t, f.catalog.DeleteCategory(ctx, science.ID), library.ErrCategoryNotFound)
}

// =============================================================================
// BOOKS
// =============================================================================

func TestCatalog_CreateBook_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cat := f.category(t, "Fiction")

	tests := []struct {
		name  string
		book  library.Book
		field string
	}{
		{"missing title", library.Book{Author: "A", ISBN: "1", CategoryID: cat.ID, Total: 1}, "title"},
		{"blank author", library.Book{Title: "T", Author: "  ", ISBN: "1", CategoryID: cat.ID, Total: 1}, "author"},
		{"missing isbn", library.Book{Title: "T", Author: "A", CategoryID: cat.ID, Total: 1}, "isbn"},
		{"zero copies", library.Book{Title: "T", Author: "A", ISBN: "1", CategoryID: cat.ID, Total: 0}, "total"},
		{"no category", library.Book{Title: "T", Author: "A", ISBN: "1", Total: 1}, "category_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.catalog.CreateBook(ctx, tt.book)
			var verr *library.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.ErrorIs(t, err, library.ErrValidation)
		})
	}

	n, err := f.catalog.CountBooks(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "nothing is stored after a validation failure")
}

func TestCatalog_CreateBook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cat := f.category(t, "Fiction")

	b := f.book(t, cat.ID, "  Middlemarch ", " isbn-m ", 4)
	assert.Equal(t, "Middlemarch", b.Title)
	assert.Equal(t, "isbn-m", b.ISBN)
	assert.Equal(t, 4, b.Total)
	assert.Equal(t, 4, b.Available, "new copies start on the shelf")
	assert.Equal(t, "Fiction", b.CategoryName)

	_, err := f.catalog.CreateBook(ctx, library.Book{Title: "Other", Author: "X", ISBN: "isbn-m", CategoryID: cat.ID, Total: 1})
	assert.ErrorIs(t, err, library.ErrDuplicateISBN)

	_, err = f.catalog.CreateBook(ctx, library.Book{Title: "Other", Author: "X", ISBN: "isbn-x", CategoryID: 999, Total: 1})
	assert.ErrorIs(t, err, library.ErrCategoryNotFound)

	byISBN, err := f.catalog.FindByISBN(ctx, "isbn-m")
	require.NoError(t, err)
	assert.Equal(t, b.ID, byISBN.ID)
}

func TestCatalog_UpdateBook_ShiftsAvailability(t *testing.T) {
	// GIVEN: A book with 3 copies, 2 of them on loan
	// WHEN: Total copies change
	// THEN: Available moves by the same amount; total below on-loan is refused

	f := newFixture(t)
	ctx := context.Background()
	cat := f.category(t, "Fiction")
	b := f.book(t, cat.ID, "Ulysses", "isbn-u", 3)
	require.NoError(t, f.catalog.Checkout(ctx, b.ID))
	require.NoError(t, f.catalog.Checkout(ctx, b.ID))

	edit := *b
	edit.Total = 5
	edit.Available = 99 // ignored
	updated, err := f.catalog.UpdateBook(ctx, edit)
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Total)
	assert.Equal(t, 3, updated.Available)
	assert.Equal(t, 2, updated.OnLoan())

	edit.Total = 1
	_, err = f.catalog.UpdateBook(ctx, edit)
	var verr *library.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "total", verr.Field)

	edit.Total = 2
	updated, err = f.catalog.UpdateBook(ctx, edit)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.Available)

	other := f.book(t, cat.ID, "Dubliners", "isbn-d", 1)
	edit.ISBN = other.ISBN
	_, err = f.catalog.UpdateBook(ctx, edit)
	assert.ErrorIs(t, err, library.ErrDuplicateISBN)

	missing := edit
	missing.ID = 999
	missing.ISBN = "isbn-new"
	_, err = f.catalog.UpdateBook(ctx, missing)
	assert.ErrorIs(t, err, library.ErrBookNotFound)
}

// interleavingStore fires interleave once, right after the first book read.
type interleavingStore struct {
	library.Store
	once       *sync.Once
	interleave func()
}

func (s interleavingStore) GetBook(ctx context.Context, id int64) (*library.Book, error) {
	b, err := s.Store.GetBook(ctx, id)
	s.once.Do(s.interleave)
	return b, err
}

func (s interleavingStore) WithTx(ctx context.Context, fn func(library.Store) error) error {
	return s.Store.WithTx(ctx, func(tx library.Store) error {
		return fn(interleavingStore{Store: tx, once: s.once, interleave: s.interleave})
	})
}

func TestCatalog_UpdateBook_CheckoutDuringEditIsKept(t *testing.T) {
	// GIVEN: A book with 3 copies, none on loan
	// WHEN: A checkout starts right after UpdateBook has read the book
	// THEN: Both land and available still equals total minus active loans

	f := newFixture(t)
	ctx := context.Background()
	cat := f.category(t, "Fiction")
	b := f.book(t, cat.ID, "Middlemarch", "isbn-m", 3)
	u := f.user(t, "Dora", "dora@example.org", library.RoleStudent)

	done := make(chan error, 1)
	store := interleavingStore{
		Store: f.store,
		once:  &sync.Once{},
		interleave: func() {
			go func() {
				_, err := f.ledger.Checkout(ctx, u.ID, b.ID, "")
				done <- err
			}()
		},
	}
	catalog := library.NewCatalog(store, f.opts)

	edit := *b
	edit.Title = "Middlemarch: A Study of Provincial Life"
	updated, err := catalog.UpdateBook(ctx, edit)
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Total)
	require.NoError(t, <-done)

	active, err := f.ledger.CountActive(ctx)
	require.NoError(t, err)
	got := f.bookNow(t, b.ID)
	assert.Equal(t, 1, active)
	assert.Equal(t, got.Total-active, got.Available)
	assert.Equal(t, 2, got.Available)
}

func TestCatalog_AvailabilityBounds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cat := f.category(t, "Fiction")
	b := f.book(t, cat.ID, "Beloved", "isbn-b", 1)

	assert.ErrorIs(t, f.catalog.Return(ctx, b.ID), library.ErrBookAtCapacity)
	require.NoError(t, f.catalog.Checkout(ctx, b.ID))
	assert.ErrorIs(t, f.catalog.Checkout(ctx, b.ID), library.ErrBookUnavailable)
	assert.Equal(t, 0, f.bookNow(t, b.ID).Available)
	require.NoError(t, f.catalog.Return(ctx, b.ID))
	assert.Equal(t, 1, f.bookNow(t, b.ID).Available)

	assert.ErrorIs(t, f.catalog.Checkout(ctx, 999), library.ErrBookNotFound)
	assert.ErrorIs(t, f.catalog.Return(ctx, 999), library.ErrBookNotFound)
}

func TestCatalog_DeleteBook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cat := f.category(t, "Fiction")
	loaned := f.book(t, cat.ID, "Loaned", "isbn-l", 1)
	unused := f.book(t, cat.ID, "Unused", "isbn-n", 1)
	u := f.user(t, "Una", "una@example.org", library.RoleStudent)

	loan, err := f.ledger.Checkout(ctx, u.ID, loaned.ID, "")
	require.NoError(t, err)
	_, err = f.ledger.Return(ctx, loan.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, f.catalog.DeleteBook(ctx, loaned.ID), library.ErrBookHasLoans)
	require.NoError(t, f.catalog.DeleteBook(ctx, unused.ID))
	_, err = f.catalog.GetBook(ctx, unused.ID)
	assert.ErrorIs(t, err, library.ErrBookNotFound)
	assert.ErrorIs(t, f.catalog.DeleteBook(ctx, unused.ID), library.ErrBookNotFound)
}

func TestCatalog_FilterBooks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fiction := f.category(t, "Fiction")
	science := f.category(t, "Science")
	f.book(t, fiction.ID, "The Hobbit", "isbn-1", 1)
	lotr := f.book(t, fiction.ID, "The Lord of the Rings", "isbn-2", 1)
	f.book(t, science.ID, "A Brief History of Time", "isbn-3", 2)
	require.NoError(t, f.catalog.Checkout(ctx, lotr.ID))

	all, err := f.catalog.ListBooks(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "A Brief History of Time", all[0].Title, "ordered by title")

	hits, err := f.catalog.SearchBooks(ctx, "the ")
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	hits, err = f.catalog.SearchBooks(ctx, "HOBBIT")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "The Hobbit", hits[0].Title)

	avail, err := f.catalog.ListAvailable(ctx)
	require.NoError(t, err)
	assert.Len(t, avail, 2)

	inScience, err := f.catalog.ListByCategory(ctx, science.ID)
	require.NoError(t, err)
	require.Len(t, inScience, 1)
	assert.Equal(t, "Science", inScience[0].CategoryName)

	combined, err := f.catalog.FilterBooks(ctx, library.BookFilter{
		Author:        "author of the",
		CategoryID:    fiction.ID,
		AvailableOnly: true,
	})
	require.NoError(t, err)
	require.Len(t, combined, 1)
	assert.Equal(t, "The Hobbit", combined[0].Title)

	n, err := f.catalog.CountBooksInCategory(ctx, fiction.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
