/*
sweeper.go - Periodic overdue sweep

PURPOSE:
  Wakes on a fixed interval and, in order:
    1. logs every overdue loan with its days late
    2. logs every loan due within DueSoonDays
    3. persists ACTIVE -> OVERDUE via Ledger.SweepOverdue
    4. logs a summary and records the run

  A failing step (error or panic) is logged and the remaining steps still
  run. Nothing a tick does can end the loop; only Stop does.

CONFIGURATION:
  - Interval:    how often to sweep (default: 1 hour)
  - DueSoonDays: look-ahead for reminders (default: 2)
  - Enabled:     whether Start launches the loop (default: true)
  - RunOnStart:  sweep immediately when started (default: true)

USAGE:
  sweeper := library.NewOverdueSweeper(ledger, store, opts)
  sweeper.Start()
  // ... later
  sweeper.Stop()
  <-sweeper.Done()
*/
package library

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Notifier receives the per-loan reminders produced by a sweep.
type Notifier interface {
	LoanOverdue(loan Loan, daysLate int)
	LoanDueSoon(loan Loan, daysRemaining int)
}

// LogNotifier writes reminders to the log.
type LogNotifier struct {
	Log logrus.FieldLogger
}

func (n LogNotifier) LoanOverdue(loan Loan, daysLate int) {
	n.Log.WithFields(logrus.Fields{
		"loan_id":   loan.ID,
		"user_id":   loan.UserID,
		"book_id":   loan.BookID,
		"days_late": daysLate,
	}).Warnf("overdue loan: %q held by %s (%s), %d day(s) late",
		loan.BookTitle, loan.UserName, loan.UserEmail, daysLate)
}

func (n LogNotifier) LoanDueSoon(loan Loan, daysRemaining int) {
	n.Log.WithFields(logrus.Fields{
		"loan_id":        loan.ID,
		"user_id":        loan.UserID,
		"book_id":        loan.BookID,
		"days_remaining": daysRemaining,
	}).Infof("loan due soon: %q held by %s (%s), due %s",
		loan.BookTitle, loan.UserName, loan.UserEmail, loan.ExpectedReturn)
}

// SweepHistory stores completed sweep runs.
type SweepHistory interface {
	SaveSweepRun(ctx context.Context, run SweepRun) error
}

// OverdueSweeper runs the overdue sweep on a timer and on demand.
type OverdueSweeper struct {
	Ledger      *Ledger
	History     SweepHistory
	Notifier    Notifier
	Interval    time.Duration
	DueSoonDays int
	Enabled     bool
	RunOnStart  bool

	log   logrus.FieldLogger
	clock Clock

	mu       sync.Mutex
	runMu    sync.Mutex
	started  bool
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	lastRun  time.Time
}

func NewOverdueSweeper(ledger *Ledger, history SweepHistory, opts Options) *OverdueSweeper {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	log := logger.WithField("component", "sweeper")
	return &OverdueSweeper{
		Ledger:      ledger,
		History:     history,
		Notifier:    LogNotifier{Log: log},
		Interval:    time.Hour,
		DueSoonDays: 2,
		Enabled:     true,
		RunOnStart:  true,
		log:         log,
		clock:       opts.Clock,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Start launches the background loop. Calling it twice is a no-op.
func (s *OverdueSweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}
	s.started = true

	if !s.Enabled {
		s.log.Info("sweeper disabled, not starting")
		close(s.done)
		return
	}

	go s.loop()

	s.log.Infof("sweeper started with interval %v", s.Interval)
}

// Stop asks the loop to exit and returns immediately. A sleeping loop wakes
// at once; a sweep in progress finishes first. Wait on Done to join.
func (s *OverdueSweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.log.Info("sweeper stop requested")
	})
}

// Done is closed once the loop has exited.
func (s *OverdueSweeper) Done() <-chan struct{} {
	return s.done
}

func (s *OverdueSweeper) loop() {
	defer close(s.done)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	if s.RunOnStart {
		s.RunNow(context.Background())
	}

	for {
		select {
		case <-ticker.C:
			s.RunNow(context.Background())
		case <-s.stop:
			s.log.Info("sweeper stopped")
			return
		}
	}
}

// RunNow performs one sweep synchronously. Timer-driven and on-demand
// runs share this path and never overlap.
func (s *OverdueSweeper) RunNow(ctx context.Context) SweepRun {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	run := SweepRun{ID: uuid.NewString(), StartedAt: s.clock.Now().UTC()}
	today := s.Ledger.Today()
	var errs []error

	errs = append(errs, s.step("overdue notifications", func() error {
		loans, err := s.Ledger.ListOverdue(ctx)
		if err != nil {
			return err
		}
		run.OverdueCount = len(loans)
		for _, loan := range loans {
			s.Notifier.LoanOverdue(loan, loan.DaysLate(today))
		}
		return nil
	}))

	errs = append(errs, s.step("due-soon notifications", func() error {
		loans, err := s.Ledger.ListDueWithin(ctx, s.DueSoonDays)
		if err != nil {
			return err
		}
		run.DueSoonCount = len(loans)
		for _, loan := range loans {
			s.Notifier.LoanDueSoon(loan, loan.DaysRemaining(today))
		}
		return nil
	}))

	errs = append(errs, s.step("status sweep", func() error {
		n, err := s.Ledger.SweepOverdue(ctx)
		run.Transitioned = n
		return err
	}))

	completed := s.clock.Now().UTC()
	run.CompletedAt = &completed
	if err := errors.Join(errs...); err != nil {
		run.Error = err.Error()
	}

	s.log.WithFields(logrus.Fields{
		"run_id":       run.ID,
		"overdue":      run.OverdueCount,
		"due_soon":     run.DueSoonCount,
		"transitioned": run.Transitioned,
	}).Infof("sweep completed: %d overdue, %d due within %d day(s), %d marked overdue",
		run.OverdueCount, run.DueSoonCount, s.DueSoonDays, run.Transitioned)

	if s.History != nil {
		s.step("record run", func() error {
			return s.History.SaveSweepRun(ctx, run)
		})
	}

	s.mu.Lock()
	s.lastRun = completed
	s.mu.Unlock()
	return run
}

// NextRunTime estimates when the timer fires next.
func (s *OverdueSweeper) NextRunTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRun.IsZero() {
		return s.clock.Now().Add(s.Interval)
	}
	return s.lastRun.Add(s.Interval)
}

// step runs fn, turning a panic into an error, and logs any failure.
func (s *OverdueSweeper) step(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", name, r)
		}
		if err != nil {
			s.log.WithError(err).Errorf("sweep step %q failed", name)
		}
	}()
	if err := fn(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
