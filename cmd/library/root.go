package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/warp/library-engine/activity"
	"github.com/warp/library-engine/config"
	"github.com/warp/library-engine/document"
	"github.com/warp/library-engine/library"
	"github.com/warp/library-engine/store/sqlite"
)

var (
	dbPath string // overrides LIBRARY_DB
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "library",
	Short: "library - catalog, loans and reports for a small library",
	Long: `library manages the book catalog, user accounts and loans of a small
library. It serves a JSON API, sweeps overdue loans on a timer and writes
PDF reports.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("configuration: %w", err)
		}
		if dbPath != "" {
			loaded.DBPath = dbPath
		}
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("configuration: %w", err)
		}
		cfg = loaded
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides LIBRARY_DB)")

	rootCmd.AddCommand(serveCmd, sweepCmd, reportCmd, userCmd)
}

// app wires the services for one command invocation.
type app struct {
	log        *activity.Log
	store      *sqlite.Store
	catalog    *library.Catalog
	directory  *library.Directory
	ledger     *library.Ledger
	projection *library.Projection
	sweeper    *library.OverdueSweeper
}

func openApp(c *config.Config, console bool) (*app, error) {
	log, err := activity.New(activity.Config{
		File:    c.LogFile,
		Level:   c.LogLevel,
		Console: console && c.LogConsole,
	})
	if err != nil {
		return nil, err
	}

	store, err := sqlite.New(c.DBPath)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	opts := library.Options{Logger: log.Logger, Audit: log}
	ledger := library.NewLedger(store, opts)

	projection := library.NewProjection(store, ledger, document.NewPDFRenderer(c.ReportsDir), opts)
	projection.LateFeePerDay = c.LateFeePerDay

	sweeper := library.NewOverdueSweeper(ledger, store, opts)
	sweeper.Interval = c.SweepInterval
	sweeper.DueSoonDays = c.DueSoonDays
	sweeper.Enabled = c.SweepEnabled

	return &app{
		log:        log,
		store:      store,
		catalog:    library.NewCatalog(store, opts),
		directory:  library.NewDirectory(store, opts),
		ledger:     ledger,
		projection: projection,
		sweeper:    sweeper,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.WithError(err).Warn("failed to close database")
	}
	a.log.Close()
}
