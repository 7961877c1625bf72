/*
dto.go - JSON shapes for requests and responses

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

Dates are YYYY-MM-DD, timestamps RFC3339. Password hashes never leave
the server. Money is a decimal string with two places.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/library-engine/library"
)

const dateLayout = "2006-01-02"

// =============================================================================
// SESSION
// =============================================================================

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string  `json:"token"`
	ExpiresAt string  `json:"expires_at"`
	User      UserDTO `json:"user"`
}

type SessionDTO struct {
	ID        string  `json:"id"`
	User      UserDTO `json:"user"`
	IsAdmin   bool    `json:"is_admin"`
	ExpiresAt string  `json:"expires_at,omitempty"`
}

type ChangePasswordRequest struct {
	Password string `json:"password"`
}

// =============================================================================
// CATALOG
// =============================================================================

type CategoryDTO struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	BookCount   int    `json:"book_count"`
	CreatedAt   string `json:"created_at"`
}

type CategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type BookDTO struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Author       string `json:"author"`
	ISBN         string `json:"isbn"`
	CategoryID   int64  `json:"category_id"`
	CategoryName string `json:"category_name"`
	Total        int    `json:"total_copies"`
	Available    int    `json:"available_copies"`
	OnLoan       int    `json:"on_loan"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type BookRequest struct {
	Title      string `json:"title"`
	Author     string `json:"author"`
	ISBN       string `json:"isbn"`
	CategoryID int64  `json:"category_id"`
	Total      int    `json:"total_copies"`
}

// =============================================================================
// USERS
// =============================================================================

type UserDTO struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	RoleLabel string `json:"role_label"`
	LoanDays  int    `json:"loan_days"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
}

type CreateUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// UpdateUserRequest is a partial update; omitted fields keep their value.
type UpdateUserRequest struct {
	Name   *string `json:"name"`
	Email  *string `json:"email"`
	Role   *string `json:"role"`
	Active *bool   `json:"active"`
}

type ResetPasswordResponse struct {
	Password string `json:"password"`
}

// =============================================================================
// LOANS
// =============================================================================

type LoanDTO struct {
	ID              int64   `json:"id"`
	UserID          int64   `json:"user_id"`
	UserName        string  `json:"user_name"`
	UserEmail       string  `json:"user_email"`
	BookID          int64   `json:"book_id"`
	BookTitle       string  `json:"book_title"`
	BookAuthor      string  `json:"book_author"`
	LoanDate        string  `json:"loan_date"`
	ExpectedReturn  string  `json:"expected_return_date"`
	ActualReturn    *string `json:"actual_return_date"`
	Status          string  `json:"status"`
	EffectiveStatus string  `json:"effective_status"`
	DaysLate        int     `json:"days_late"`
	DaysRemaining   int     `json:"days_remaining"`
	LateFee         string  `json:"late_fee"`
	Notes           string  `json:"notes"`
}

type CheckoutRequest struct {
	UserID int64  `json:"user_id"`
	BookID int64  `json:"book_id"`
	Notes  string `json:"notes"`
}

// =============================================================================
// REPORTS
// =============================================================================

type BookRankingDTO struct {
	Rank      int    `json:"rank"`
	BookID    int64  `json:"book_id"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	LoanCount int    `json:"loan_count"`
}

type UserRankingDTO struct {
	Rank      int    `json:"rank"`
	UserID    int64  `json:"user_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	LoanCount int    `json:"loan_count"`
}

type SummaryDTO struct {
	TotalBooks   int `json:"total_books"`
	TotalUsers   int `json:"total_users"`
	ActiveLoans  int `json:"active_loans"`
	OverdueLoans int `json:"overdue_loans"`
}

type RenderResponse struct {
	Kind string `json:"kind"`
	Path string `json:"path"`
}

type SweepRunDTO struct {
	ID           string  `json:"id"`
	StartedAt    string  `json:"started_at"`
	CompletedAt  *string `json:"completed_at"`
	OverdueCount int     `json:"overdue_count"`
	DueSoonCount int     `json:"due_soon_count"`
	Transitioned int64   `json:"transitioned"`
	Error        string  `json:"error,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toCategoryDTO(c library.Category) CategoryDTO {
	return CategoryDTO{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		BookCount:   c.BookCount,
		CreatedAt:   c.CreatedAt.Format(time.RFC3339),
	}
}

func toBookDTO(b library.Book) BookDTO {
	return BookDTO{
		ID:           b.ID,
		Title:        b.Title,
		Author:       b.Author,
		ISBN:         b.ISBN,
		CategoryID:   b.CategoryID,
		CategoryName: b.CategoryName,
		Total:        b.Total,
		Available:    b.Available,
		OnLoan:       b.OnLoan(),
		CreatedAt:    b.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    b.UpdatedAt.Format(time.RFC3339),
	}
}

func toUserDTO(u library.User) UserDTO {
	return UserDTO{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      string(u.Role),
		RoleLabel: u.Role.Label(),
		LoanDays:  u.Role.LoanDays(),
		Active:    u.Active,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}

func toLoanDTO(l library.Loan, today library.Date, feePerDay decimal.Decimal) LoanDTO {
	dto := LoanDTO{
		ID:              l.ID,
		UserID:          l.UserID,
		UserName:        l.UserName,
		UserEmail:       l.UserEmail,
		BookID:          l.BookID,
		BookTitle:       l.BookTitle,
		BookAuthor:      l.BookAuthor,
		LoanDate:        l.LoanDate.Format(dateLayout),
		ExpectedReturn:  l.ExpectedReturn.Format(dateLayout),
		Status:          string(l.Status),
		EffectiveStatus: string(l.EffectiveStatus(today)),
		DaysLate:        l.DaysLate(today),
		DaysRemaining:   l.DaysRemaining(today),
		LateFee:         l.LateFee(today, feePerDay).StringFixed(2),
		Notes:           l.Notes,
	}
	if l.ActualReturn != nil {
		s := l.ActualReturn.Format(dateLayout)
		dto.ActualReturn = &s
	}
	return dto
}

func toSweepRunDTO(r library.SweepRun) SweepRunDTO {
	dto := SweepRunDTO{
		ID:           r.ID,
		StartedAt:    r.StartedAt.Format(time.RFC3339),
		OverdueCount: r.OverdueCount,
		DueSoonCount: r.DueSoonCount,
		Transitioned: r.Transitioned,
		Error:        r.Error,
	}
	if r.CompletedAt != nil {
		s := r.CompletedAt.Format(time.RFC3339)
		dto.CompletedAt = &s
	}
	return dto
}
