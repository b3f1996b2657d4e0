package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/pocketledger/internal/model"
)

func newExportCommand(cfgPath *string) *cobra.Command {
	var party, period, output string
	var includeVoided bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a period's postings as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := model.ParsePeriod(period)
			if err != nil {
				return fmt.Errorf("--period must be YYYY-MM: %w", err)
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

			w := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}
			return a.journal.Export(cmd.Context(), w, partyID, p, includeVoided)
		},
	}
	cmd.Flags().StringVar(&party, "party", "", "party id (default: default_party from config)")
	cmd.Flags().StringVar(&period, "period", "", "period to export, YYYY-MM (required)")
	_ = cmd.MarkFlagRequired("period")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&includeVoided, "include-voided", false, "include voided transactions")
	return cmd
}
