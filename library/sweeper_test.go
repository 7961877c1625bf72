package library_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/library-engine/library"
)

type recordingNotifier struct {
	mu      sync.Mutex
	overdue map[int64]int
	dueSoon map[int64]int
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{overdue: map[int64]int{}, dueSoon: map[int64]int{}}
}

func (n *recordingNotifier) LoanOverdue(loan library.Loan, daysLate int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.overdue[loan.ID] = daysLate
}

func (n *recordingNotifier) LoanDueSoon(loan library.Loan, daysRemaining int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dueSoon[loan.ID] = daysRemaining
}

type panickingNotifier struct{}

func (panickingNotifier) LoanOverdue(library.Loan, int) { panic("mail server on fire") }
func (panickingNotifier) LoanDueSoon(library.Loan, int) {}

// failingStore breaks one query and passes everything else through.
type failingStore struct {
	library.Store
}

func (failingStore) ListOverdueLoans(context.Context, library.Date) ([]library.Loan, error) {
	return nil, errors.New("disk I/O error")
}

// sweepScenario leaves one loan three days late and one due in two days.
func sweepScenario(t *testing.T, f *fixture) (late, soon *library.Loan) {
	t.Helper()
	ctx := context.Background()
	cat := f.category(t, "Fiction")
	b1 := f.book(t, cat.ID, "Late Book", "isbn-late", 1)
	b2 := f.book(t, cat.ID, "Soon Book", "isbn-soon", 1)
	u := f.user(t, "Lena", "lena@example.org", library.RoleStudent)

	late, err := f.ledger.Checkout(ctx, u.ID, b1.ID, "") // due D+14
	require.NoError(t, err)
	f.advance(5)
	soon, err = f.ledger.Checkout(ctx, u.ID, b2.ID, "") // due D+19
	require.NoError(t, err)
	f.advance(12) // D+17
	return late, soon
}

func TestSweeper_RunNow(t *testing.T) {
	// GIVEN: One loan 3 days late and one due in 2 days
	// WHEN: A sweep runs
	// THEN: Both are notified, the late one is marked OVERDUE, and the run is recorded

	f := newFixture(t)
	ctx := context.Background()
	late, soon := sweepScenario(t, f)

	notifier := newRecordingNotifier()
	sweeper := library.NewOverdueSweeper(f.ledger, f.store, f.opts)
	sweeper.Notifier = notifier

	run := sweeper.RunNow(ctx)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, 1, run.OverdueCount)
	assert.Equal(t, 1, run.DueSoonCount)
	assert.Equal(t, int64(1), run.Transitioned)
	assert.Empty(t, run.Error)
	require.NotNil(t, run.CompletedAt)

	assert.Equal(t, map[int64]int{late.ID: 3}, notifier.overdue)
	assert.Equal(t, map[int64]int{soon.ID: 2}, notifier.dueSoon)

	stored, err := f.ledger.GetLoan(ctx, late.ID)
	require.NoError(t, err)
	assert.Equal(t, library.LoanOverdue, stored.Status)

	again := sweeper.RunNow(ctx)
	assert.Equal(t, int64(0), again.Transitioned, "sweeping twice on one day changes nothing")
	assert.Equal(t, 1, again.OverdueCount)

	runs, err := f.store.ListSweepRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	ids := []string{runs[0].ID, runs[1].ID}
	assert.ElementsMatch(t, []string{run.ID, again.ID}, ids)
}

func TestSweeper_StepFailuresDoNotStopTheRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sweepScenario(t, f)

	t.Run("store error", func(t *testing.T) {
		broken := library.NewLedger(failingStore{Store: f.store}, f.opts)
		sweeper := library.NewOverdueSweeper(broken, f.store, f.opts)
		sweeper.Notifier = newRecordingNotifier()

		run := sweeper.RunNow(ctx)
		assert.Contains(t, run.Error, "overdue notifications")
		assert.Contains(t, run.Error, library.ErrOperationFailed.Error())
		assert.Equal(t, 1, run.DueSoonCount, "later steps still run")
		assert.Equal(t, int64(1), run.Transitioned)
	})

	t.Run("notifier panic", func(t *testing.T) {
		sweeper := library.NewOverdueSweeper(f.ledger, nil, f.opts)
		sweeper.Notifier = panickingNotifier{}

		run := sweeper.RunNow(ctx)
		assert.Contains(t, run.Error, "panic")
		assert.Equal(t, 1, run.DueSoonCount)
	})
}

func TestSweeper_StartStop(t *testing.T) {
	f := newFixture(t)
	sweeper := library.NewOverdueSweeper(f.ledger, f.store, f.opts)
	sweeper.Interval = 10 * time.Millisecond

	sweeper.Start()
	sweeper.Start() // no-op

	require.Eventually(t, func() bool {
		runs, err := f.store.ListSweepRuns(context.Background(), 5)
		return err == nil && len(runs) >= 2
	}, 2*time.Second, 5*time.Millisecond, "runs once at start and then on every tick")

	sweeper.Stop()
	sweeper.Stop() // no-op

	select {
	case <-sweeper.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
	assert.False(t, sweeper.NextRunTime().IsZero())
}

func TestSweeper_Disabled(t *testing.T) {
	f := newFixture(t)
	sweeper := library.NewOverdueSweeper(f.ledger, f.store, f.opts)
	sweeper.Enabled = false

	sweeper.Start()
	select {
	case <-sweeper.Done():
	default:
		t.Fatal("a disabled sweeper should be done immediately")
	}
	sweeper.Stop()

	runs, err := f.store.ListSweepRuns(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
