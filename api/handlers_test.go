package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/library-engine/library"
	"github.com/warp/library-engine/store/sqlite"
	"golang.org/x/crypto/bcrypt"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testAPI struct {
	router *chi.Mux
	h      *Handler
	now    time.Time
}

func newTestAPI(t *testing.T, loginRate int) *testAPI {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log, _ := test.NewNullLogger()
	a := &testAPI{now: time.Date(2025, time.March, 10, 9, 30, 0, 0, time.UTC)}
	clock := library.Clock(func() time.Time { return a.now })
	opts := library.Options{
		Logger: log,
		Clock:  clock,
		Hasher: library.BcryptHasher{Cost: bcrypt.MinCost},
	}

	ledger := library.NewLedger(store, opts)
	projection := library.NewProjection(store, ledger, nil, opts)
	projection.LateFeePerDay = decimal.RequireFromString("0.50")
	a.h = &Handler{
		Catalog:    library.NewCatalog(store, opts),
		Directory:  library.NewDirectory(store, opts),
		Ledger:     ledger,
		Projection: projection,
		Sweeper:    library.NewOverdueSweeper(ledger, store, opts),
		SweepRuns:  store,
		Tokens:     NewTokenIssuer("test-secret-test-secret-test-secret", clock),
		SessionTTL: 8 * time.Hour,
		Log:        log,
	}
	a.router = NewRouter(a.h, RouterConfig{LoginRatePerMinute: loginRate})

	ctx := context.Background()
	for _, u := range []library.NewUser{
		{Name: "Ada Admin", Email: "admin@example.org", Password: "admin-secret", Role: library.RoleAdministrator},
		{Name: "Sam Student", Email: "sam@example.org", Password: "sam-secret", Role: library.RoleStudent},
	} {
		_, err := a.h.Directory.CreateUser(ctx, u)
		require.NoError(t, err)
	}
	return a
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) login(t *testing.T, email, password string) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/login", "", LoginRequest{Email: email, Password: password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// =============================================================================
// SESSIONS
// =============================================================================

func TestLogin(t *testing.T) {
	a := newTestAPI(t, 100)

	rec := a.do(t, http.MethodPost, "/api/login", "", LoginRequest{Email: "admin@example.org", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, library.ErrInvalidCredentials.Error(), decodeBody[ErrorResponse](t, rec).Error)

	rec = a.do(t, http.MethodPost, "/api/login", "", LoginRequest{Email: "nobody@example.org", Password: "admin-secret"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, library.ErrInvalidCredentials.Error(), decodeBody[ErrorResponse](t, rec).Error, "unknown email looks the same")

	token := a.login(t, "ADMIN@example.org", "admin-secret")
	rec = a.do(t, http.MethodGet, "/api/session", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sess := decodeBody[SessionDTO](t, rec)
	assert.True(t, sess.IsAdmin)
	assert.Equal(t, "admin@example.org", sess.User.Email)
	assert.Equal(t, "2025-03-10T17:30:00Z", sess.ExpiresAt)
}

func TestAuthentication(t *testing.T) {
	a := newTestAPI(t, 100)

	rec := a.do(t, http.MethodGet, "/api/books", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/books", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := a.login(t, "sam@example.org", "sam-secret")
	rec = a.do(t, http.MethodGet, "/api/books", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Tokens expire with the session.
	a.now = a.now.Add(9 * time.Hour)
	rec = a.do(t, http.MethodGet, "/api/books", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStudentCannotManage(t *testing.T) {
	a := newTestAPI(t, 100)
	token := a.login(t, "sam@example.org", "sam-secret")

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/categories"},
		{http.MethodPost, "/api/books"},
		{http.MethodGet, "/api/users"},
		{http.MethodPost, "/api/loans"},
		{http.MethodGet, "/api/reports/summary"},
		{http.MethodPost, "/api/admin/sweep"},
	} {
		rec := a.do(t, tc.method, tc.path, token, map[string]string{})
		assert.Equal(t, http.StatusForbidden, rec.Code, "%s %s", tc.method, tc.path)
	}

	rec := a.do(t, http.MethodGet, "/api/session/loans", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	a := newTestAPI(t, 100)
	token := a.login(t, "admin@example.org", "admin-secret")

	rec := a.do(t, http.MethodPost, "/api/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/session", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// A fresh login still works.
	fresh := a.login(t, "admin@example.org", "admin-secret")
	rec = a.do(t, http.MethodGet, "/api/session", fresh, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDeactivatedUserLosesAccess(t *testing.T) {
	a := newTestAPI(t, 100)
	admin := a.login(t, "admin@example.org", "admin-secret")
	student := a.login(t, "sam@example.org", "sam-secret")

	sam, err := a.h.Directory.FindByEmail(context.Background(), "sam@example.org")
	require.NoError(t, err)
	rec := a.do(t, http.MethodPost, fmt.Sprintf("/api/users/%d/deactivate", sam.ID), admin, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/api/books", student, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginRateLimit(t *testing.T) {
	a := newTestAPI(t, 3)

	for i := 0; i < 3; i++ {
		rec := a.do(t, http.MethodPost, "/api/login", "", LoginRequest{Email: "admin@example.org", Password: "wrong"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := a.do(t, http.MethodPost, "/api/login", "", LoginRequest{Email: "admin@example.org", Password: "admin-secret"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

// =============================================================================
// CATALOG AND LOANS
// =============================================================================

func TestCatalogAndLoanFlow(t *testing.T) {
	// GIVEN: An administrator, a student and an empty catalog
	// WHEN: A one-copy book is added, lent, refused to a second borrower and returned
	// THEN: Status codes and availability follow each step

	a := newTestAPI(t, 100)
	admin := a.login(t, "admin@example.org", "admin-secret")
	student := a.login(t, "sam@example.org", "sam-secret")

	rec := a.do(t, http.MethodPost, "/api/categories", admin, CategoryRequest{Name: "Fiction"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	cat := decodeBody[CategoryDTO](t, rec)

	rec = a.do(t, http.MethodPost, "/api/books", admin, BookRequest{Title: "Emma", Author: "Jane Austen", ISBN: "isbn-1", CategoryID: cat.ID})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "total", decodeBody[ErrorResponse](t, rec).Field)

	rec = a.do(t, http.MethodPost, "/api/books", admin, BookRequest{Title: "Emma", Author: "Jane Austen", ISBN: "isbn-1", CategoryID: cat.ID, Total: 1})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	book := decodeBody[BookDTO](t, rec)
	assert.Equal(t, 1, book.Available)

	rec = a.do(t, http.MethodPost, "/api/books", admin, BookRequest{Title: "Emma 2", Author: "X", ISBN: "isbn-1", CategoryID: cat.ID, Total: 1})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/books/isbn/isbn-1", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/books/999", student, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/books/abc", student, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	sam, err := a.h.Directory.FindByEmail(context.Background(), "sam@example.org")
	require.NoError(t, err)
	adminUser, err := a.h.Directory.FindByEmail(context.Background(), "admin@example.org")
	require.NoError(t, err)

	rec = a.do(t, http.MethodPost, "/api/loans", admin, CheckoutRequest{UserID: sam.ID, BookID: book.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	loan := decodeBody[LoanDTO](t, rec)
	assert.Equal(t, "2025-03-10", loan.LoanDate)
	assert.Equal(t, "2025-03-24", loan.ExpectedReturn)
	assert.Equal(t, "ACTIVE", loan.Status)
	assert.Equal(t, "0.00", loan.LateFee)

	rec = a.do(t, http.MethodPost, "/api/loans", admin, CheckoutRequest{UserID: adminUser.ID, BookID: book.ID})
	assert.Equal(t, http.StatusConflict, rec.Code, "last copy is out")

	// Six days late.
	a.now = a.now.AddDate(0, 0, 20)
	admin = a.login(t, "admin@example.org", "admin-secret")

	rec = a.do(t, http.MethodGet, "/api/loans?status=overdue", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	overdue := decodeBody[[]LoanDTO](t, rec)
	require.Len(t, overdue, 1)
	assert.Equal(t, "OVERDUE", overdue[0].EffectiveStatus)
	assert.Equal(t, 6, overdue[0].DaysLate)
	assert.Equal(t, "3.00", overdue[0].LateFee)

	rec = a.do(t, http.MethodGet, "/api/reports/summary", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, SummaryDTO{TotalBooks: 1, TotalUsers: 2, ActiveLoans: 1, OverdueLoans: 1}, decodeBody[SummaryDTO](t, rec))

	rec = a.do(t, http.MethodPost, "/api/admin/sweep", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	run := decodeBody[SweepRunDTO](t, rec)
	assert.Equal(t, int64(1), run.Transitioned)

	rec = a.do(t, http.MethodPost, fmt.Sprintf("/api/loans/%d/return", loan.ID), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	returned := decodeBody[LoanDTO](t, rec)
	assert.Equal(t, "RETURNED", returned.Status)
	require.NotNil(t, returned.ActualReturn)
	assert.Equal(t, "2025-03-30", *returned.ActualReturn)

	rec = a.do(t, http.MethodPost, fmt.Sprintf("/api/loans/%d/return", loan.ID), admin, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, http.MethodGet, fmt.Sprintf("/api/books/%d", book.ID), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeBody[BookDTO](t, rec).Available)

	rec = a.do(t, http.MethodGet, "/api/reports/top-books?limit=0", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/reports/top-books", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	top := decodeBody[[]BookRankingDTO](t, rec)
	require.Len(t, top, 1)
	assert.Equal(t, 1, top[0].Rank)
	assert.Equal(t, 1, top[0].LoanCount)

	rec = a.do(t, http.MethodGet, "/api/admin/sweeps", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]SweepRunDTO](t, rec), 1)
}

func TestUserManagement(t *testing.T) {
	a := newTestAPI(t, 100)
	admin := a.login(t, "admin@example.org", "admin-secret")

	rec := a.do(t, http.MethodPost, "/api/users", admin, CreateUserRequest{Name: "Fay", Email: "fay@example.org", Password: "short", Role: "faculty"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "password", decodeBody[ErrorResponse](t, rec).Field)

	rec = a.do(t, http.MethodPost, "/api/users", admin, CreateUserRequest{Name: "Fay", Email: "fay@example.org", Password: "fay-secret", Role: "faculty"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	fay := decodeBody[UserDTO](t, rec)
	assert.Equal(t, "FACULTY", fay.Role)
	assert.Equal(t, 30, fay.LoanDays)
	assert.NotContains(t, rec.Body.String(), "hash")

	rec = a.do(t, http.MethodPost, "/api/users", admin, CreateUserRequest{Name: "Dup", Email: "FAY@example.org", Password: "fay-secret", Role: "student"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	name := "Fay Faculty"
	rec = a.do(t, http.MethodPut, fmt.Sprintf("/api/users/%d", fay.ID), admin, UpdateUserRequest{Name: &name})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Fay Faculty", decodeBody[UserDTO](t, rec).Name)

	rec = a.do(t, http.MethodPost, fmt.Sprintf("/api/users/%d/reset-password", fay.ID), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	generated := decodeBody[ResetPasswordResponse](t, rec).Password
	assert.Len(t, generated, 10)
	a.login(t, "fay@example.org", generated)

	rec = a.do(t, http.MethodGet, "/api/users?role=faculty", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]UserDTO](t, rec), 1)

	rec = a.do(t, http.MethodDelete, fmt.Sprintf("/api/users/%d", fay.ID), admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = a.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d", fay.ID), admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMalformedBody(t *testing.T) {
	a := newTestAPI(t, 100)
	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
