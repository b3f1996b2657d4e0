package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/pocketledger/internal/model"
)

func newRolloverCommand(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rollover",
		Short: "Budget rollover maintenance",
	}
	cmd.AddCommand(newRolloverRecalcCommand(cfgPath), newRolloverPruneCommand(cfgPath))
	return cmd
}

func newRolloverRecalcCommand(cfgPath *string) *cobra.Command {
	var party, through string

	cmd := &cobra.Command{
		Use:   "recalc",
		Short: "Recompute budgets flagged by changes to already-calculated months",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var until model.Period
			if through != "" {
				var err error
				if until, err = model.ParsePeriod(through); err != nil {
					return fmt.Errorf("--through must be YYYY-MM: %w", err)
				}
			}

			a, err := openApp(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			partyID, err := a.party(party)
			if err != nil {
				return err
			}
			calcs, err := a.rollover.ProcessPending(cmd.Context(), partyID, until)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, c := range calcs {
				fmt.Fprintf(out, "%s  %s  rollover %s\n", c.Period, c.CategoryID, c.RolloverAmount)
			}
			fmt.Fprintf(out, "%d calculations\n", len(calcs))
			return nil
		},
	}
	cmd.Flags().StringVar(&party, "party", "", "party id (default: default_party from config)")
	cmd.Flags().StringVar(&through, "through", "", "last period to recompute, YYYY-MM (default: no limit)")
	return cmd
}

func newRolloverPruneCommand(cfgPath *string) *cobra.Command {
	var before string

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete rollover audit rows older than a date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.Rollover.AuditRetentionDays)
			if before != "" {
				if cutoff, err = time.Parse(time.DateOnly, before); err != nil {
					return fmt.Errorf("--before must be YYYY-MM-DD: %w", err)
				}
			} else if a.cfg.Rollover.AuditRetentionDays == 0 {
				return fmt.Errorf("--before is required when audit_retention_days is 0")
			}

			n, err := a.rollover.Prune(cmd.Context(), cutoff)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned %d audit rows before %s\n", n, cutoff.Format(time.DateOnly))
			return nil
		},
	}
	cmd.Flags().StringVar(&before, "before", "", "delete rows created before this date, YYYY-MM-DD (default: now minus audit_retention_days)")
	return cmd
}
