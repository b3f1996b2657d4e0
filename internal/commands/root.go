// Package commands implements the pocketledger CLI.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/pocketledger/internal/buildinfo"
	"github.com/cleared-dev/pocketledger/internal/config"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	var cfgPath string

	rootCmd := &cobra.Command{
		Use:     "pocketledger",
		Short:   "Double-entry personal finance ledger with budget rollover",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", config.FileName, "path to "+config.FileName)

	rootCmd.AddCommand(
		newInitCommand(),
		newMigrateCommand(&cfgPath),
		newServeCommand(&cfgPath),
		newRecurringCommand(&cfgPath),
		newRolloverCommand(&cfgPath),
		newImportCommand(&cfgPath),
		newExportCommand(&cfgPath),
	)

	return rootCmd
}
