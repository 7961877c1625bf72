package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one overdue sweep and exit",
	Long: `sweep logs a notice for every overdue loan and every loan due within
DUE_SOON_DAYS, then marks past-due active loans OVERDUE. It is the same
run the server performs on its timer.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cfg, true)
		if err != nil {
			return err
		}
		defer a.Close()

		run := a.sweeper.RunNow(cmd.Context())

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Sweep %s\n", run.ID)
		fmt.Fprintf(out, "  overdue loans:        %d\n", run.OverdueCount)
		fmt.Fprintf(out, "  due within %d day(s): %d\n", a.sweeper.DueSoonDays, run.DueSoonCount)
		fmt.Fprintf(out, "  marked overdue:       %d\n", run.Transitioned)
		if run.Error != "" {
			return fmt.Errorf("sweep finished with errors: %s", run.Error)
		}
		return nil
	},
}
