package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/pocketledger/internal/store/sqlstore"
)

func newMigrateCommand(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			dialect, err := sqlstore.ParseDialect(cfg.Database.Driver)
			if err != nil {
				return err
			}
			if err := sqlstore.RunMigrations(dialect, cfg.Database.DSN); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrations applied (%s)\n", dialect)
			return nil
		},
	}
}
