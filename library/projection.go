/*
projection.go - Read-only reporting over the ledger, catalog and directory

PURPOSE:
  Ranked summaries and the overdue list, plus the dashboard counters.
  Nothing here writes to the store.

RANKINGS:
  Books and users with zero loans are included (outer join) with count 0.
  Ties are broken by id ascending so repeated runs return the same order.

RENDERING:
  BuildDocument turns a report into a title, a timestamp and a rectangular
  table; the Renderer (document package) writes it and returns the path.
*/
package library

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultReportLimit = 10
	MaxReportLimit     = 100
)

// ReportKind names a renderable report.
type ReportKind string

const (
	ReportTopBooks ReportKind = "top-books"
	ReportTopUsers ReportKind = "top-users"
	ReportOverdue  ReportKind = "overdue"
)

func ParseReportKind(s string) (ReportKind, error) {
	switch k := ReportKind(s); k {
	case ReportTopBooks, ReportTopUsers, ReportOverdue:
		return k, nil
	}
	return "", invalid("kind", "unknown report %q", s)
}

// Document is a rendered report's content.
type Document struct {
	Title       string
	FileStem    string
	GeneratedAt time.Time
	Columns     []string
	Widths      []float64 // relative column widths; empty means equal
	Rows        [][]string
	Landscape   bool
}

// Renderer writes a Document to a paginated file and returns its path.
type Renderer interface {
	Render(doc Document) (string, error)
}

type Projection struct {
	service
	ledger        *Ledger
	renderer      Renderer
	LateFeePerDay decimal.Decimal
}

func NewProjection(store Store, ledger *Ledger, renderer Renderer, opts Options) *Projection {
	return &Projection{
		service:  newService(store, "reports", opts),
		ledger:   ledger,
		renderer: renderer,
	}
}

func checkLimit(limit int) error {
	if limit < 1 || limit > MaxReportLimit {
		return invalid("limit", "limit must be between 1 and %d", MaxReportLimit)
	}
	return nil
}

// TopBorrowedBooks ranks books by lifetime loan count.
func (p *Projection) TopBorrowedBooks(ctx context.Context, limit int) ([]BookRanking, error) {
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	rows, err := p.store.TopBorrowedBooks(ctx, limit)
	return rows, p.check("top borrowed books", err)
}

// TopBorrowingUsers ranks users by lifetime loan count.
func (p *Projection) TopBorrowingUsers(ctx context.Context, limit int) ([]UserRanking, error) {
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	rows, err := p.store.TopBorrowingUsers(ctx, limit)
	return rows, p.check("top borrowing users", err)
}

func (p *Projection) OverdueLoans(ctx context.Context) ([]Loan, error) {
	return p.ledger.ListOverdue(ctx)
}

// Summary collects the dashboard counters.
func (p *Projection) Summary(ctx context.Context) (Summary, error) {
	var sum Summary
	var err error

	if sum.TotalBooks, err = p.store.CountBooks(ctx); err != nil {
		return Summary{}, p.check("summary", err)
	}
	if sum.TotalUsers, err = p.store.CountUsers(ctx); err != nil {
		return Summary{}, p.check("summary", err)
	}
	if sum.ActiveLoans, err = p.store.CountActiveLoans(ctx); err != nil {
		return Summary{}, p.check("summary", err)
	}
	overdue, err := p.OverdueLoans(ctx)
	if err != nil {
		return Summary{}, err
	}
	sum.OverdueLoans = len(overdue)
	return sum, nil
}

// LateFee is the fee accrued so far on loan.
func (p *Projection) LateFee(loan Loan) decimal.Decimal {
	return loan.LateFee(p.ledger.Today(), p.LateFeePerDay)
}

// =============================================================================
// DOCUMENTS
// =============================================================================

const reportDateLayout = "02/01/2006"

// BuildDocument assembles the table for kind. limit is ignored for the overdue report.
func (p *Projection) BuildDocument(ctx context.Context, kind ReportKind, limit int) (Document, error) {
	doc := Document{GeneratedAt: p.clock.Now()}

	switch kind {
	case ReportTopBooks:
		rows, err := p.TopBorrowedBooks(ctx, limit)
		if err != nil {
			return Document{}, err
		}
		doc.Title = "Most Borrowed Books"
		doc.FileStem = "most_borrowed_books"
		doc.Columns = []string{"#", "Title", "Author", "Loans"}
		doc.Widths = []float64{1, 8, 6, 2}
		for i, r := range rows {
			doc.Rows = append(doc.Rows, []string{
				strconv.Itoa(i + 1), r.Title, r.Author, strconv.Itoa(r.LoanCount),
			})
		}

	case ReportTopUsers:
		rows, err := p.TopBorrowingUsers(ctx, limit)
		if err != nil {
			return Document{}, err
		}
		doc.Title = "Most Active Users"
		doc.FileStem = "most_active_users"
		doc.Columns = []string{"#", "Name", "Email", "Role", "Loans"}
		doc.Widths = []float64{1, 6, 7, 3, 2}
		for i, r := range rows {
			doc.Rows = append(doc.Rows, []string{
				strconv.Itoa(i + 1), r.Name, r.Email, r.Role.Label(), strconv.Itoa(r.LoanCount),
			})
		}

	case ReportOverdue:
		loans, err := p.OverdueLoans(ctx)
		if err != nil {
			return Document{}, err
		}
		today := p.ledger.Today()
		doc.Title = "Overdue Loans"
		doc.FileStem = "overdue_loans"
		doc.Landscape = true
		doc.Columns = []string{"User", "Email", "Book", "Loan date", "Due date", "Days late", "Fee"}
		doc.Widths = []float64{5, 6, 7, 3, 3, 2, 2}
		for _, l := range loans {
			doc.Rows = append(doc.Rows, []string{
				l.UserName, l.UserEmail, l.BookTitle,
				l.LoanDate.Format(reportDateLayout),
				l.ExpectedReturn.Format(reportDateLayout),
				strconv.Itoa(l.DaysLate(today)),
				l.LateFee(today, p.LateFeePerDay).StringFixed(2),
			})
		}

	default:
		return Document{}, invalid("kind", "unknown report %q", kind)
	}

	return doc, nil
}

// Render builds the report and writes it through the Renderer.
func (p *Projection) Render(ctx context.Context, kind ReportKind, limit int) (string, error) {
	if p.renderer == nil {
		return "", p.check("render report", fmt.Errorf("no renderer configured"))
	}
	doc, err := p.BuildDocument(ctx, kind, limit)
	if err != nil {
		return "", err
	}
	path, err := p.renderer.Render(doc)
	if err != nil {
		return "", p.check("render report", err)
	}
	p.log.WithField("path", path).Infof("report generated: %s", doc.Title)
	p.record(ctx, "GENERATE_REPORT", fmt.Sprintf("%s (%d rows) -> %s", kind, len(doc.Rows), path))
	return path, nil
}
