/*
handlers.go - HTTP API handlers for the library

PURPOSE:
  Exposes the catalog, directory, loan ledger, reports and the overdue
  sweeper over REST. Handlers decode the request, call one service
  operation and encode the result; every rule lives in package library.

ENDPOINTS:
  Session:
    POST   /api/login                   Exchange email/password for a token
    POST   /api/logout                  Revoke the current token
    GET    /api/session                 Current user
    PUT    /api/session/password        Change own password
    GET    /api/session/loans           Own loan history

  Catalog (any session; writes need admin):
    GET    /api/categories              List with book counts
    POST   /api/categories
    GET    /api/categories/{id}
    PUT    /api/categories/{id}
    DELETE /api/categories/{id}
    GET    /api/books                   ?title=&author=&category_id=&available=true
    POST   /api/books
    GET    /api/books/isbn/{isbn}
    GET    /api/books/{id}
    PUT    /api/books/{id}
    DELETE /api/books/{id}

  Users (admin):
    GET    /api/users                   ?name=&role=&active=true
    POST   /api/users
    GET    /api/users/{id}
    PUT    /api/users/{id}
    DELETE /api/users/{id}
    POST   /api/users/{id}/deactivate
    POST   /api/users/{id}/reset-password
    GET    /api/users/{id}/loans

  Loans (admin):
    GET    /api/loans                   ?status=all|active|overdue|due&days=
    POST   /api/loans                   Checkout
    GET    /api/loans/{id}
    POST   /api/loans/{id}/return

  Reports (admin):
    GET    /api/reports/summary
    GET    /api/reports/top-books       ?limit=
    GET    /api/reports/top-users       ?limit=
    GET    /api/reports/overdue
    POST   /api/reports/{kind}/render   ?limit=

  Admin:
    POST   /api/admin/sweep             Run the overdue sweep now
    GET    /api/admin/sweeps            ?limit=

ERROR HANDLING:
  Domain errors map onto HTTP status:
  - 400: validation (with the offending field)
  - 401: invalid credentials, missing or bad token
  - 403: not an administrator
  - 404: not found
  - 409: conflict (duplicate, unavailable, has history)
  - 500: "operation failed"; the cause is only in the server log
*/
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/warp/library-engine/library"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// SweepRuns lists recorded sweep runs, newest first.
type SweepRuns interface {
	ListSweepRuns(ctx context.Context, limit int) ([]library.SweepRun, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Catalog    *library.Catalog
	Directory  *library.Directory
	Ledger     *library.Ledger
	Projection *library.Projection
	Sweeper    *library.OverdueSweeper
	SweepRuns  SweepRuns
	Tokens     *TokenIssuer
	SessionTTL time.Duration
	Log        logrus.FieldLogger
}

// =============================================================================
// SESSION HANDLERS
// =============================================================================

// Login authenticates and returns a bearer token.
// POST /api/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decode(w, r, &req) {
		return
	}

	sess, err := h.Directory.Login(r.Context(), req.Email, req.Password, h.SessionTTL)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	token, err := h.Tokens.Issue(sess)
	if err != nil {
		h.Log.WithError(err).Error("failed to sign session token")
		writeError(w, http.StatusInternalServerError, "operation failed", nil)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: sess.ExpiresAt.Format(time.RFC3339),
		User:      toUserDTO(sess.User),
	})
}

// Logout revokes the caller's token.
// POST /api/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	sess, _ := library.SessionFrom(r.Context())
	h.Tokens.Revoke(sess.ID, sess.ExpiresAt)
	h.Directory.Logout(r.Context(), sess)
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/session
func (h *Handler) CurrentSession(w http.ResponseWriter, r *http.Request) {
	sess, _ := library.SessionFrom(r.Context())
	dto := SessionDTO{ID: sess.ID, User: toUserDTO(sess.User), IsAdmin: sess.IsAdmin()}
	if !sess.ExpiresAt.IsZero() {
		dto.ExpiresAt = sess.ExpiresAt.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, dto)
}

// PUT /api/session/password
func (h *Handler) ChangeOwnPassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if !decode(w, r, &req) {
		return
	}
	sess, _ := library.SessionFrom(r.Context())
	if err := h.Directory.ChangePassword(r.Context(), sess.User.ID, req.Password); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/session/loans
func (h *Handler) OwnLoans(w http.ResponseWriter, r *http.Request) {
	sess, _ := library.SessionFrom(r.Context())
	loans, err := h.Ledger.ListByUser(r.Context(), sess.User.ID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.loanDTOs(loans))
}

// =============================================================================
// CATEGORY HANDLERS
// =============================================================================

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.Catalog.ListCategories(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]CategoryDTO, len(cats))
	for i, c := range cats {
		dtos[i] = toCategoryDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	cat, err := h.Catalog.GetCategory(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryDTO(*cat))
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if !decode(w, r, &req) {
		return
	}
	cat, err := h.Catalog.CreateCategory(r.Context(), library.Category{Name: req.Name, Description: req.Description})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryDTO(*cat))
}

func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req CategoryRequest
	if !decode(w, r, &req) {
		return
	}
	cat, err := h.Catalog.UpdateCategory(r.Context(), library.Category{ID: id, Name: req.Name, Description: req.Description})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryDTO(*cat))
}

func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Catalog.DeleteCategory(r.Context(), id); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// BOOK HANDLERS
// =============================================================================

// ListBooks returns the catalog, optionally filtered.
// GET /api/books?title=&author=&category_id=&available=true
func (h *Handler) ListBooks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := library.BookFilter{
		Title:  q.Get("title"),
		Author: q.Get("author"),
	}
	if v := q.Get("category_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "category_id must be an integer", nil)
			return
		}
		f.CategoryID = id
	}
	if v := q.Get("available"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "available must be true or false", nil)
			return
		}
		f.AvailableOnly = b
	}

	books, err := h.Catalog.FilterBooks(r.Context(), f)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]BookDTO, len(books))
	for i, b := range books {
		dtos[i] = toBookDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	book, err := h.Catalog.GetBook(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookDTO(*book))
}

// GET /api/books/isbn/{isbn}
func (h *Handler) GetBookByISBN(w http.ResponseWriter, r *http.Request) {
	book, err := h.Catalog.FindByISBN(r.Context(), chi.URLParam(r, "isbn"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookDTO(*book))
}

func (h *Handler) CreateBook(w http.ResponseWriter, r *http.Request) {
	var req BookRequest
	if !decode(w, r, &req) {
		return
	}
	book, err := h.Catalog.CreateBook(r.Context(), library.Book{
		Title:      req.Title,
		Author:     req.Author,
		ISBN:       req.ISBN,
		CategoryID: req.CategoryID,
		Total:      req.Total,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookDTO(*book))
}

// UpdateBook replaces the editable fields. Available copies follow the
// change in total; a total below the copies on loan is rejected.
func (h *Handler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req BookRequest
	if !decode(w, r, &req) {
		return
	}
	book, err := h.Catalog.UpdateBook(r.Context(), library.Book{
		ID:         id,
		Title:      req.Title,
		Author:     req.Author,
		ISBN:       req.ISBN,
		CategoryID: req.CategoryID,
		Total:      req.Total,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookDTO(*book))
}

func (h *Handler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Catalog.DeleteBook(r.Context(), id); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// USER HANDLERS
// =============================================================================

// GET /api/users?name=&role=&active=true
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := library.UserFilter{Name: q.Get("name")}
	if v := q.Get("role"); v != "" {
		role, err := library.ParseRole(v)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		f.Role = role
	}
	if v := q.Get("active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "active must be true or false", nil)
			return
		}
		f.ActiveOnly = b
	}

	users, err := h.Directory.FilterUsers(r.Context(), f)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]UserDTO, len(users))
	for i, u := range users {
		dtos[i] = toUserDTO(u)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	u, err := h.Directory.GetUser(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(*u))
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !decode(w, r, &req) {
		return
	}
	role, err := library.ParseRole(req.Role)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	u, err := h.Directory.CreateUser(r.Context(), library.NewUser{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     role,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(*u))
}

// UpdateUser applies a partial update.
// PUT /api/users/{id}
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req UpdateUserRequest
	if !decode(w, r, &req) {
		return
	}

	u, err := h.Directory.GetUser(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if req.Name != nil {
		u.Name = *req.Name
	}
	if req.Email != nil {
		u.Email = *req.Email
	}
	if req.Role != nil {
		role, err := library.ParseRole(*req.Role)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		u.Role = role
	}
	if req.Active != nil {
		u.Active = *req.Active
	}

	updated, err := h.Directory.UpdateUser(r.Context(), *u)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(*updated))
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Directory.DeleteUser(r.Context(), id); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Directory.Deactivate(r.Context(), id); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResetPassword returns the generated password once; it is not stored in clear.
// POST /api/users/{id}/reset-password
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	secret, err := h.Directory.ResetPassword(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ResetPasswordResponse{Password: secret})
}

// GET /api/users/{id}/loans
func (h *Handler) UserLoans(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if _, err := h.Directory.GetUser(r.Context(), id); err != nil {
		h.writeDomainError(w, err)
		return
	}
	loans, err := h.Ledger.ListByUser(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.loanDTOs(loans))
}

// =============================================================================
// LOAN HANDLERS
// =============================================================================

// ListLoans returns loans by status.
// GET /api/loans?status=all|active|overdue|due&days=
func (h *Handler) ListLoans(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var loans []library.Loan
	var err error
	switch status := strings.ToLower(q.Get("status")); status {
	case "", "all":
		loans, err = h.Ledger.ListAll(ctx)
	case "active":
		loans, err = h.Ledger.ListActive(ctx)
	case "overdue":
		loans, err = h.Ledger.ListOverdue(ctx)
	case "due":
		days, ok := queryInt(w, r, "days", 2)
		if !ok {
			return
		}
		loans, err = h.Ledger.ListDueWithin(ctx, days)
	default:
		writeError(w, http.StatusBadRequest, "unknown status "+strconv.Quote(status), nil)
		return
	}
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.loanDTOs(loans))
}

func (h *Handler) GetLoan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	loan, err := h.Ledger.GetLoan(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.loanDTO(*loan))
}

// Checkout lends one copy of a book to a user.
// POST /api/loans
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if !decode(w, r, &req) {
		return
	}
	loan, err := h.Ledger.Checkout(r.Context(), req.UserID, req.BookID, req.Notes)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.loanDTO(*loan))
}

// Return closes a loan and puts the copy back.
// POST /api/loans/{id}/return
func (h *Handler) Return(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	loan, err := h.Ledger.Return(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.loanDTO(*loan))
}

func (h *Handler) loanDTO(l library.Loan) LoanDTO {
	return toLoanDTO(l, h.Ledger.Today(), h.Projection.LateFeePerDay)
}

func (h *Handler) loanDTOs(loans []library.Loan) []LoanDTO {
	today := h.Ledger.Today()
	dtos := make([]LoanDTO, len(loans))
	for i, l := range loans {
		dtos[i] = toLoanDTO(l, today, h.Projection.LateFeePerDay)
	}
	return dtos
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.Projection.Summary(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SummaryDTO{
		TotalBooks:   sum.TotalBooks,
		TotalUsers:   sum.TotalUsers,
		ActiveLoans:  sum.ActiveLoans,
		OverdueLoans: sum.OverdueLoans,
	})
}

// GET /api/reports/top-books?limit=
func (h *Handler) TopBooks(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit", library.DefaultReportLimit)
	if !ok {
		return
	}
	rows, err := h.Projection.TopBorrowedBooks(r.Context(), limit)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]BookRankingDTO, len(rows))
	for i, b := range rows {
		dtos[i] = BookRankingDTO{Rank: i + 1, BookID: b.BookID, Title: b.Title, Author: b.Author, LoanCount: b.LoanCount}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GET /api/reports/top-users?limit=
func (h *Handler) TopUsers(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit", library.DefaultReportLimit)
	if !ok {
		return
	}
	rows, err := h.Projection.TopBorrowingUsers(r.Context(), limit)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]UserRankingDTO, len(rows))
	for i, u := range rows {
		dtos[i] = UserRankingDTO{
			Rank:      i + 1,
			UserID:    u.UserID,
			Name:      u.Name,
			Email:     u.Email,
			Role:      string(u.Role),
			LoanCount: u.LoanCount,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) OverdueReport(w http.ResponseWriter, r *http.Request) {
	loans, err := h.Projection.OverdueLoans(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.loanDTOs(loans))
}

// RenderReport writes a PDF on the server and returns its path.
// POST /api/reports/{kind}/render?limit=
func (h *Handler) RenderReport(w http.ResponseWriter, r *http.Request) {
	kind, err := library.ParseReportKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	limit, ok := queryInt(w, r, "limit", library.DefaultReportLimit)
	if !ok {
		return
	}
	path, err := h.Projection.Render(r.Context(), kind, limit)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, RenderResponse{Kind: string(kind), Path: path})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// TriggerSweep runs the overdue sweep synchronously.
// POST /api/admin/sweep
func (h *Handler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	run := h.Sweeper.RunNow(r.Context())
	writeJSON(w, http.StatusOK, toSweepRunDTO(run))
}

// GET /api/admin/sweeps?limit=
func (h *Handler) ListSweeps(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit", 20)
	if !ok {
		return
	}
	runs, err := h.SweepRuns.ListSweepRuns(r.Context(), limit)
	if err != nil {
		h.Log.WithError(err).Error("failed to list sweep runs")
		writeError(w, http.StatusInternalServerError, "operation failed", nil)
		return
	}
	dtos := make([]SweepRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toSweepRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps a library error onto a status code.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var verr *library.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: verr.Error(), Field: verr.Field})
	case errors.Is(err, library.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, library.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error(), nil)
	case errors.Is(err, library.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error(), nil)
	case errors.Is(err, library.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, library.ErrConflict):
		writeError(w, http.StatusConflict, err.Error(), nil)
	default:
		if !errors.Is(err, library.ErrOperationFailed) {
			h.Log.WithError(err).Error("unhandled error")
		}
		writeError(w, http.StatusInternalServerError, library.ErrOperationFailed.Error(), nil)
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "id must be a positive integer", nil)
		return 0, false
	}
	return id, true
}

func queryInt(w http.ResponseWriter, r *http.Request, key string, def int) (int, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		writeError(w, http.StatusBadRequest, key+" must be an integer", nil)
		return 0, false
	}
	return n, true
}
