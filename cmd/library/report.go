package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/warp/library-engine/library"
)

var reportLimit int

var reportCmd = &cobra.Command{
	Use:       "report <top-books|top-users|overdue|summary>",
	Short:     "Write a PDF report or print the dashboard counters",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"top-books", "top-users", "overdue", "summary"},
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cfg, false)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		if args[0] == "summary" {
			sum, err := a.projection.Summary(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Books:         %d\n", sum.TotalBooks)
			fmt.Fprintf(out, "Users:         %d\n", sum.TotalUsers)
			fmt.Fprintf(out, "Active loans:  %d\n", sum.ActiveLoans)
			fmt.Fprintf(out, "Overdue loans: %d\n", sum.OverdueLoans)
			return nil
		}

		kind, err := library.ParseReportKind(args[0])
		if err != nil {
			return err
		}
		path, err := a.projection.Render(ctx, kind, reportLimit)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Report written to %s\n", path)
		return nil
	},
}

func init() {
	reportCmd.Flags().IntVar(&reportLimit, "limit", library.DefaultReportLimit, "rows in ranking reports (1-100)")
}
