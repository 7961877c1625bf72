package library_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"github.com/warp/library-engine/library"
	"github.com/warp/library-engine/store/sqlite"
	"golang.org/x/crypto/bcrypt"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// day0 is the reference "today" of every test.
var day0 = time.Date(2025, time.March, 10, 9, 30, 0, 0, time.UTC)

type auditEntry struct {
	UserID int64 // 0 for system actions
	Action string
	Desc   string
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (a *recordingAudit) UserAction(userID int64, action, desc string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, auditEntry{UserID: userID, Action: action, Desc: desc})
}

func (a *recordingAudit) SystemAction(action, desc string) {
	a.UserAction(0, action, desc)
}

func (a *recordingAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.entries))
	for i, e := range a.entries {
		out[i] = e.Action
	}
	return out
}

func (a *recordingAudit) last(action string) (auditEntry, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := len(a.entries) - 1; i >= 0; i-- {
		if a.entries[i].Action == action {
			return a.entries[i], true
		}
	}
	return auditEntry{}, false
}

type fixture struct {
	store *sqlite.Store
	now   time.Time
	log   *logrus.Logger
	hook  *test.Hook
	audit *recordingAudit
	opts  library.Options

	catalog    *library.Catalog
	directory  *library.Directory
	ledger     *library.Ledger
	projection *library.Projection
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	f := &fixture{store: store, now: day0, log: log, hook: hook, audit: &recordingAudit{}}
	f.opts = library.Options{
		Logger: log,
		Audit:  f.audit,
		Clock:  func() time.Time { return f.now },
		Hasher: library.BcryptHasher{Cost: bcrypt.MinCost},
	}
	f.catalog = library.NewCatalog(store, f.opts)
	f.directory = library.NewDirectory(store, f.opts)
	f.ledger = library.NewLedger(store, f.opts)
	f.projection = library.NewProjection(store, f.ledger, nil, f.opts)
	f.projection.LateFeePerDay = decimal.RequireFromString("0.50")
	return f
}

// advance moves the clock forward by whole days.
func (f *fixture) advance(days int) {
	f.now = f.now.AddDate(0, 0, days)
}

func (f *fixture) today() library.Date {
	return library.DateOf(f.now)
}

func (f *fixture) category(t *testing.T, name string) *library.Category {
	t.Helper()
	c, err := f.catalog.CreateCategory(context.Background(), library.Category{Name: name})
	require.NoError(t, err)
	return c
}

func (f *fixture) book(t *testing.T, categoryID int64, title, isbn string, copies int) *library.Book {
	t.Helper()
	b, err := f.catalog.CreateBook(context.Background(), library.Book{
		Title:      title,
		Author:     "Author of " + title,
		ISBN:       isbn,
		CategoryID: categoryID,
		Total:      copies,
	})
	require.NoError(t, err)
	return b
}

func (f *fixture) user(t *testing.T, name, email string, role library.Role) *library.User {
	t.Helper()
	u, err := f.directory.CreateUser(context.Background(), library.NewUser{
		Name:     name,
		Email:    email,
		Password: "secret123",
		Role:     role,
	})
	require.NoError(t, err)
	return u
}

func (f *fixture) bookNow(t *testing.T, id int64) *library.Book {
	t.Helper()
	b, err := f.catalog.GetBook(context.Background(), id)
	require.NoError(t, err)
	return b
}

// hasLog reports whether any captured entry carries field=value.
func (f *fixture) hasLog(level logrus.Level, field, value string) bool {
	for _, e := range f.hook.AllEntries() {
		if e.Level == level && e.Data[field] == value {
			return true
		}
	}
	return false
}

func adminContext(u *library.User) context.Context {
	return library.WithSession(context.Background(), library.NewSession(*u, day0, time.Hour))
}
