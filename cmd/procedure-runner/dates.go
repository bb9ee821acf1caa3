package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kingrea/procedure-runner/internal/workflow/window"
)

func newDatesCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "dates",
		Short: "Show which weekday resolves to which date and whether it would run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			clock, err := parseRunDate(date)
			if err != nil {
				return err
			}
			today := clock()
			w := window.New(today)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run date: %s (%s)  Week start: %s", today.Format(window.DateLayout), today.Weekday(), w.WeekStart.Format(window.DateLayout))
			if w.CatchUp() {
				fmt.Fprint(out, "  catch-up run")
			}
			fmt.Fprintln(out)

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, day := range window.Weekdays() {
				res, err := window.ResolveAndValidate(day, today)
				if err != nil {
					return err
				}
				status := "run"
				if !res.Valid {
					status = fmt.Sprintf("skip (%s) %s", res.Reason, res.Message)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", day, res.Formatted(), status)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Run date to resolve against (YYYY-MM-DD)")
	return cmd
}
