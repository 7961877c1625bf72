/*
catalog.go - Catalog service (books and categories)

PURPOSE:
  Validates and persists catalog records, and owns the availability
  counter that checkout/return move.

INVARIANTS:
  - 0 <= available <= total for every book, at all times.
  - ISBN and category name are unique.
  - Callers never set available directly; it only moves through
    Checkout, Return, or the total-copies delta in UpdateBook.

SEE ALSO:
  - ledger.go: the only caller of Checkout/Return in normal operation
  - store/sqlite/catalog.go: conditional UPDATEs that enforce the bounds
*/
package library

import (
	"context"
	"fmt"
	"strings"
)

type Catalog struct {
	service
}

func NewCatalog(store Store, opts Options) *Catalog {
	return &Catalog{service: newService(store, "catalog", opts)}
}

// =============================================================================
// CATEGORIES
// =============================================================================

func (c *Catalog) CreateCategory(ctx context.Context, cat Category) (*Category, error) {
	if err := validateCategory(&cat); err != nil {
		return nil, err
	}
	existing, err := c.store.GetCategoryByName(ctx, cat.Name)
	if err != nil {
		return nil, c.check("create category", err)
	}
	if existing != nil {
		return nil, ErrDuplicateCategory
	}
	if err := c.store.InsertCategory(ctx, &cat); err != nil {
		return nil, c.check("create category", err)
	}
	c.log.WithField("category_id", cat.ID).Infof("category created: %s", cat.Name)
	c.record(ctx, "CREATE_CATEGORY", fmt.Sprintf("category %d %q", cat.ID, cat.Name))
	return &cat, nil
}

func (c *Catalog) UpdateCategory(ctx context.Context, cat Category) (*Category, error) {
	if err := validateCategory(&cat); err != nil {
		return nil, err
	}
	existing, err := c.store.GetCategoryByName(ctx, cat.Name)
	if err != nil {
		return nil, c.check("update category", err)
	}
	if existing != nil && existing.ID != cat.ID {
		return nil, ErrDuplicateCategory
	}
	ok, err := c.store.UpdateCategory(ctx, cat)
	if err != nil {
		return nil, c.check("update category", err)
	}
	if !ok {
		return nil, ErrCategoryNotFound
	}
	c.record(ctx, "UPDATE_CATEGORY", fmt.Sprintf("category %d %q", cat.ID, cat.Name))
	return c.GetCategory(ctx, cat.ID)
}

func (c *Catalog) DeleteCategory(ctx context.Context, id int64) error {
	n, err := c.store.CountBooksInCategory(ctx, id)
	if err != nil {
		return c.check("delete category", err)
	}
	if n > 0 {
		return ErrCategoryInUse
	}
	ok, err := c.store.DeleteCategory(ctx, id)
	if err != nil {
		return c.check("delete category", err)
	}
	if !ok {
		return ErrCategoryNotFound
	}
	c.record(ctx, "DELETE_CATEGORY", fmt.Sprintf("category %d", id))
	return nil
}

func (c *Catalog) GetCategory(ctx context.Context, id int64) (*Category, error) {
	cat, err := c.store.GetCategory(ctx, id)
	if err != nil {
		return nil, c.check("get category", err)
	}
	if cat == nil {
		return nil, ErrCategoryNotFound
	}
	return cat, nil
}

func (c *Catalog) FindCategoryByName(ctx context.Context, name string) (*Category, error) {
	cat, err := c.store.GetCategoryByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return nil, c.check("find category", err)
	}
	if cat == nil {
		return nil, ErrCategoryNotFound
	}
	return cat, nil
}

// ListCategories returns every category ordered by name, each with its book count.
func (c *Catalog) ListCategories(ctx context.Context) ([]Category, error) {
	cats, err := c.store.ListCategories(ctx)
	return cats, c.check("list categories", err)
}

func (c *Catalog) CountBooksInCategory(ctx context.Context, id int64) (int, error) {
	n, err := c.store.CountBooksInCategory(ctx, id)
	return n, c.check("count books in category", err)
}

// =============================================================================
// BOOKS
// =============================================================================

// CreateBook registers a title with all of its copies on the shelf.
func (c *Catalog) CreateBook(ctx context.Context, b Book) (*Book, error) {
	if err := validateBook(&b); err != nil {
		return nil, err
	}
	if err := c.ensureCategory(ctx, c.store, b.CategoryID); err != nil {
		return nil, err
	}
	if err := c.ensureISBNFree(ctx, c.store, b.ISBN, 0); err != nil {
		return nil, err
	}

	b.Available = b.Total
	if err := c.store.InsertBook(ctx, &b); err != nil {
		return nil, c.check("create book", err)
	}
	c.log.WithField("book_id", b.ID).Infof("book created: %s", b.Title)
	c.record(ctx, "CREATE_BOOK", fmt.Sprintf("book %d %q isbn=%s copies=%d", b.ID, b.Title, b.ISBN, b.Total))
	return c.GetBook(ctx, b.ID)
}

// UpdateBook edits a title. Available shifts by the change in Total; the
// caller's Available is ignored.
func (c *Catalog) UpdateBook(ctx context.Context, b Book) (*Book, error) {
	if err := validateBook(&b); err != nil {
		return nil, err
	}
	// Checkouts and returns cannot land between the read and the write.
	err := c.store.WithTx(ctx, func(tx Store) error {
		current, err := tx.GetBook(ctx, b.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrBookNotFound
		}
		if b.Total < current.OnLoan() {
			return invalid("total", "total copies cannot be less than the %d copies on loan", current.OnLoan())
		}
		if b.CategoryID != current.CategoryID {
			if err := c.ensureCategory(ctx, tx, b.CategoryID); err != nil {
				return err
			}
		}
		if err := c.ensureISBNFree(ctx, tx, b.ISBN, b.ID); err != nil {
			return err
		}

		b.Available = current.Available + (b.Total - current.Total)
		ok, err := tx.UpdateBook(ctx, b)
		if err != nil {
			return err
		}
		if !ok {
			return ErrBookNotFound
		}
		return nil
	})
	if err != nil {
		return nil, c.check("update book", err)
	}
	c.record(ctx, "UPDATE_BOOK", fmt.Sprintf("book %d %q copies=%d", b.ID, b.Title, b.Total))
	return c.GetBook(ctx, b.ID)
}

// DeleteBook removes a title that has never been loaned.
func (c *Catalog) DeleteBook(ctx context.Context, id int64) error {
	n, err := c.store.CountLoansByBook(ctx, id)
	if err != nil {
		return c.check("delete book", err)
	}
	if n > 0 {
		return ErrBookHasLoans
	}
	ok, err := c.store.DeleteBook(ctx, id)
	if err != nil {
		return c.check("delete book", err)
	}
	if !ok {
		return ErrBookNotFound
	}
	c.record(ctx, "DELETE_BOOK", fmt.Sprintf("book %d", id))
	return nil
}

func (c *Catalog) GetBook(ctx context.Context, id int64) (*Book, error) {
	b, err := c.store.GetBook(ctx, id)
	if err != nil {
		return nil, c.check("get book", err)
	}
	if b == nil {
		return nil, ErrBookNotFound
	}
	return b, nil
}

func (c *Catalog) FindByISBN(ctx context.Context, isbn string) (*Book, error) {
	b, err := c.store.GetBookByISBN(ctx, strings.TrimSpace(isbn))
	if err != nil {
		return nil, c.check("find book by isbn", err)
	}
	if b == nil {
		return nil, ErrBookNotFound
	}
	return b, nil
}

func (c *Catalog) ListBooks(ctx context.Context) ([]Book, error) {
	return c.FilterBooks(ctx, BookFilter{})
}

// SearchBooks matches a title substring, case-insensitively.
func (c *Catalog) SearchBooks(ctx context.Context, title string) ([]Book, error) {
	return c.FilterBooks(ctx, BookFilter{Title: strings.TrimSpace(title)})
}

func (c *Catalog) ListAvailable(ctx context.Context) ([]Book, error) {
	return c.FilterBooks(ctx, BookFilter{AvailableOnly: true})
}

func (c *Catalog) ListByCategory(ctx context.Context, categoryID int64) ([]Book, error) {
	return c.FilterBooks(ctx, BookFilter{CategoryID: categoryID})
}

// FilterBooks lists books ordered by title.
func (c *Catalog) FilterBooks(ctx context.Context, f BookFilter) ([]Book, error) {
	books, err := c.store.ListBooks(ctx, f)
	return books, c.check("list books", err)
}

func (c *Catalog) CountBooks(ctx context.Context) (int, error) {
	n, err := c.store.CountBooks(ctx)
	return n, c.check("count books", err)
}

// =============================================================================
// AVAILABILITY
// =============================================================================

// Checkout takes one copy off the shelf.
func (c *Catalog) Checkout(ctx context.Context, bookID int64) error {
	return checkoutCopy(ctx, c.service, c.store, bookID)
}

// Return puts one copy back, never above total.
func (c *Catalog) Return(ctx context.Context, bookID int64) error {
	return returnCopy(ctx, c.service, c.store, bookID)
}

func checkoutCopy(ctx context.Context, s service, store Store, bookID int64) error {
	ok, err := store.DecrementAvailable(ctx, bookID)
	if err != nil {
		return s.check("checkout copy", err)
	}
	if !ok {
		b, err := store.GetBook(ctx, bookID)
		if err != nil {
			return s.check("checkout copy", err)
		}
		if b == nil {
			return ErrBookNotFound
		}
		return ErrBookUnavailable
	}
	s.log.WithField("book_id", bookID).Debug("copy checked out")
	return nil
}

func returnCopy(ctx context.Context, s service, store Store, bookID int64) error {
	ok, err := store.IncrementAvailable(ctx, bookID)
	if err != nil {
		return s.check("return copy", err)
	}
	if !ok {
		b, err := store.GetBook(ctx, bookID)
		if err != nil {
			return s.check("return copy", err)
		}
		if b == nil {
			return ErrBookNotFound
		}
		return ErrBookAtCapacity
	}
	s.log.WithField("book_id", bookID).Debug("copy returned")
	return nil
}

func (c *Catalog) ensureCategory(ctx context.Context, st Store, id int64) error {
	cat, err := st.GetCategory(ctx, id)
	if err != nil {
		return c.check("get category", err)
	}
	if cat == nil {
		return ErrCategoryNotFound
	}
	return nil
}

func (c *Catalog) ensureISBNFree(ctx context.Context, st Store, isbn string, selfID int64) error {
	existing, err := st.GetBookByISBN(ctx, isbn)
	if err != nil {
		return c.check("find book by isbn", err)
	}
	if existing != nil && existing.ID != selfID {
		return ErrDuplicateISBN
	}
	return nil
}
