package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/pocketledger/internal/importer"
	"github.com/cleared-dev/pocketledger/internal/log"
)

func newImportCommand(cfgPath *string) *cobra.Command {
	var (
		party string
		opts  importer.Options
	)

	cmd := &cobra.Command{
		Use:   "import <file|dir>",
		Short: "Import a CSV export, or every CSV in a directory, posting one transaction per row",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := os.Stat(args[0])
			if err != nil {
				return err
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

			var sums []importer.Summary
			if info.IsDir() {
				sums, err = a.importer.ImportDir(cmd.Context(), partyID, args[0], opts)
			} else {
				var sum importer.Summary
				sum, err = a.importer.ImportFile(cmd.Context(), partyID, args[0], opts)
				sums = append(sums, sum)
			}
			history := make([]importer.HistoryEntry, len(sums))
			for i, s := range sums {
				printSummary(cmd.OutOrStdout(), s)
				history[i] = importer.NewHistoryEntry(time.Now(), partyID, s)
			}
			if len(history) > 0 {
				if herr := importer.AppendHistory(filepath.Dir(*cfgPath), history); herr != nil {
					a.logger.Warn("import log not written", log.FieldError, herr)
				}
			}
			return err
		},
	}
	cmd.Flags().StringVar(&party, "party", "", "party id (default: default_party from config)")
	cmd.Flags().StringVar(&opts.Format, "format", "", "parser format (default: detect from header)")
	cmd.Flags().StringVar(&opts.AccountID, "account", "", "asset or liability account the rows belong to (default: party default)")
	cmd.Flags().StringVar(&opts.DefaultExpenseCategory, "expense-category", "Uncategorized", "category for money out when a row has none")
	cmd.Flags().StringVar(&opts.DefaultIncomeCategory, "income-category", "Salary", "category for money in when a row has none")
	return cmd
}

func printSummary(w io.Writer, s importer.Summary) {
	fmt.Fprintf(w, "%s (%s): %d posted, %d duplicates, %d errors\n", s.File, s.Format, s.Posted, s.Duplicates, len(s.Errors))
	for _, e := range s.Errors {
		fmt.Fprintf(w, "  %v\n", e)
	}
}
