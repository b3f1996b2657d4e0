package commands

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

func newRecurringCommand(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recurring",
		Short: "Recurring transaction templates",
	}

	var asOf string
	run := &cobra.Command{
		Use:   "run",
		Short: "Materialize every template due on or before a date, once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			when := time.Now().UTC()
			if asOf != "" {
				var err error
				if when, err = time.Parse(time.DateOnly, asOf); err != nil {
					return fmt.Errorf("--as-of must be YYYY-MM-DD: %w", err)
				}
			}

			a, err := openApp(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.recurring.ProcessDue(cmd.Context(), when)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, txn := range res.Posted {
				fmt.Fprintf(out, "posted %s  %s  %s\n", txn.Date.Format(time.DateOnly), txn.Total(), txn.Description)
			}
			ids := make([]string, 0, len(res.Failed))
			for id := range res.Failed {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				fmt.Fprintf(out, "failed %s: %v\n", id, res.Failed[id])
			}
			fmt.Fprintf(out, "%d posted, %d failed\n", len(res.Posted), len(res.Failed))
			return nil
		},
	}
	run.Flags().StringVar(&asOf, "as-of", "", "materialize templates due on or before this date (default today)")

	cmd.AddCommand(run)
	return cmd
}
