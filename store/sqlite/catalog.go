package sqlite

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/warp/library-engine/library"
)

// =============================================================================
// CATEGORIES
// =============================================================================

type categoryRow struct {
	ID          int64  `db:"id"`
	Name        string `db:"name"`
	Description string `db:"description"`
	BookCount   int    `db:"book_count"`
	CreatedAt   string `db:"created_at"`
}

func (r categoryRow) toCategory() library.Category {
	return library.Category{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		BookCount:   r.BookCount,
		CreatedAt:   parseTime(r.CreatedAt),
	}
}

const categorySelect = `
	SELECT c.id, c.name, c.description, c.created_at,
		(SELECT COUNT(*) FROM books b WHERE b.category_id = c.id) AS book_count
	FROM categories c
`

func (s *Store) InsertCategory(ctx context.Context, c *library.Category) error {
	defer s.lock()()

	created := now()
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO categories (name, description, created_at) VALUES (?, ?, ?)`,
		c.Name, c.Description, created)
	if err != nil {
		return uniqueViolation(err, "categories.name", library.ErrDuplicateCategory)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = id
	c.CreatedAt = parseTime(created)
	return nil
}

func (s *Store) UpdateCategory(ctx context.Context, c library.Category) (bool, error) {
	defer s.lock()()

	ok, err := s.exec(ctx,
		`UPDATE categories SET name = ?, description = ? WHERE id = ?`,
		c.Name, c.Description, c.ID)
	if err != nil {
		return false, uniqueViolation(err, "categories.name", library.ErrDuplicateCategory)
	}
	return ok, nil
}

func (s *Store) DeleteCategory(ctx context.Context, id int64) (bool, error) {
	defer s.lock()()
	return s.exec(ctx, `DELETE FROM categories WHERE id = ?`, id)
}

func (s *Store) GetCategory(ctx context.Context, id int64) (*library.Category, error) {
	defer s.rlock()()

	var row categoryRow
	found, err := s.get(ctx, &row, categorySelect+` WHERE c.id = ?`, id)
	if err != nil || !found {
		return nil, err
	}
	c := row.toCategory()
	return &c, nil
}

func (s *Store) GetCategoryByName(ctx context.Context, name string) (*library.Category, error) {
	defer s.rlock()()

	var row categoryRow
	found, err := s.get(ctx, &row, categorySelect+` WHERE c.name = ?`, name)
	if err != nil || !found {
		return nil, err
	}
	c := row.toCategory()
	return &c, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]library.Category, error) {
	defer s.rlock()()

	var rows []categoryRow
	if err := s.selectAll(ctx, &rows, categorySelect+` ORDER BY c.name`); err != nil {
		return nil, err
	}
	cats := make([]library.Category, len(rows))
	for i, r := range rows {
		cats[i] = r.toCategory()
	}
	return cats, nil
}

func (s *Store) CountBooksInCategory(ctx context.Context, id int64) (int, error) {
	defer s.rlock()()
	return s.count(ctx, `SELECT COUNT(*) FROM books WHERE category_id = ?`, id)
}

// =============================================================================
// BOOKS
// =============================================================================

type bookRow struct {
	ID           int64  `db:"id"`
	Title        string `db:"title"`
	Author       string `db:"author"`
	ISBN         string `db:"isbn"`
	CategoryID   int64  `db:"category_id"`
	CategoryName string `db:"category_name"`
	Total        int    `db:"total_copies"`
	Available    int    `db:"available_copies"`
	CreatedAt    string `db:"created_at"`
	UpdatedAt    string `db:"updated_at"`
}

func (r bookRow) toBook() library.Book {
	return library.Book{
		ID:           r.ID,
		Title:        r.Title,
		Author:       r.Author,
		ISBN:         r.ISBN,
		CategoryID:   r.CategoryID,
		CategoryName: r.CategoryName,
		Total:        r.Total,
		Available:    r.Available,
		CreatedAt:    parseTime(r.CreatedAt),
		UpdatedAt:    parseTime(r.UpdatedAt),
	}
}

func booksDataset() *goqu.SelectDataset {
	return dialect.From(goqu.T("books").As("b")).
		LeftJoin(goqu.T("categories").As("c"), goqu.On(goqu.I("c.id").Eq(goqu.I("b.category_id")))).
		Select(
			goqu.I("b.id"), goqu.I("b.title"), goqu.I("b.author"), goqu.I("b.isbn"),
			goqu.I("b.category_id"), goqu.COALESCE(goqu.I("c.name"), "").As("category_name"),
			goqu.I("b.total_copies"), goqu.I("b.available_copies"),
			goqu.I("b.created_at"), goqu.I("b.updated_at"),
		)
}

func (s *Store) InsertBook(ctx context.Context, b *library.Book) error {
	defer s.lock()()

	ts := now()
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO books (title, author, isbn, category_id, total_copies, available_copies, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Title, b.Author, b.ISBN, b.CategoryID, b.Total, b.Available, ts, ts)
	if err != nil {
		return uniqueViolation(err, "books.isbn", library.ErrDuplicateISBN)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = id
	b.CreatedAt = parseTime(ts)
	b.UpdatedAt = b.CreatedAt
	return nil
}

func (s *Store) UpdateBook(ctx context.Context, b library.Book) (bool, error) {
	defer s.lock()()

	ok, err := s.exec(ctx, `
		UPDATE books
		SET title = ?, author = ?, isbn = ?, category_id = ?,
			total_copies = ?, available_copies = ?, updated_at = ?
		WHERE id = ?`,
		b.Title, b.Author, b.ISBN, b.CategoryID, b.Total, b.Available, now(), b.ID)
	if err != nil {
		return false, uniqueViolation(err, "books.isbn", library.ErrDuplicateISBN)
	}
	return ok, nil
}

func (s *Store) DeleteBook(ctx context.Context, id int64) (bool, error) {
	defer s.lock()()
	return s.exec(ctx, `DELETE FROM books WHERE id = ?`, id)
}

func (s *Store) GetBook(ctx context.Context, id int64) (*library.Book, error) {
	return s.getBookWhere(ctx, goqu.Ex{"b.id": id})
}

func (s *Store) GetBookByISBN(ctx context.Context, isbn string) (*library.Book, error) {
	return s.getBookWhere(ctx, goqu.Ex{"b.isbn": isbn})
}

func (s *Store) getBookWhere(ctx context.Context, where goqu.Ex) (*library.Book, error) {
	defer s.rlock()()

	var rows []bookRow
	if err := s.selectDataset(ctx, &rows, booksDataset().Where(where).Limit(1)); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	b := rows[0].toBook()
	return &b, nil
}

// ListBooks applies the filter and orders by title.
func (s *Store) ListBooks(ctx context.Context, f library.BookFilter) ([]library.Book, error) {
	defer s.rlock()()

	ds := booksDataset()
	if f.Title != "" {
		ds = ds.Where(goqu.L("LOWER(b.title) LIKE ?", likePattern(f.Title)))
	}
	if f.Author != "" {
		ds = ds.Where(goqu.L("LOWER(b.author) LIKE ?", likePattern(f.Author)))
	}
	if f.CategoryID != 0 {
		ds = ds.Where(goqu.Ex{"b.category_id": f.CategoryID})
	}
	if f.AvailableOnly {
		ds = ds.Where(goqu.I("b.available_copies").Gt(0))
	}
	ds = ds.Order(goqu.I("b.title").Asc(), goqu.I("b.id").Asc())

	var rows []bookRow
	if err := s.selectDataset(ctx, &rows, ds); err != nil {
		return nil, err
	}
	books := make([]library.Book, len(rows))
	for i, r := range rows {
		books[i] = r.toBook()
	}
	return books, nil
}

func (s *Store) CountBooks(ctx context.Context) (int, error) {
	defer s.rlock()()
	return s.count(ctx, `SELECT COUNT(*) FROM books`)
}

// DecrementAvailable takes a copy only while one is on the shelf.
func (s *Store) DecrementAvailable(ctx context.Context, bookID int64) (bool, error) {
	defer s.lock()()
	return s.exec(ctx, `
		UPDATE books SET available_copies = available_copies - 1, updated_at = ?
		WHERE id = ? AND available_copies > 0`,
		now(), bookID)
}

// IncrementAvailable returns a copy only while some are out.
func (s *Store) IncrementAvailable(ctx context.Context, bookID int64) (bool, error) {
	defer s.lock()()
	return s.exec(ctx, `
		UPDATE books SET available_copies = available_copies + 1, updated_at = ?
		WHERE id = ? AND available_copies < total_copies`,
		now(), bookID)
}
