package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/pocketledger/internal/accounts"
	"github.com/cleared-dev/pocketledger/internal/config"
	"github.com/cleared-dev/pocketledger/internal/model"
	"github.com/cleared-dev/pocketledger/internal/store/sqlstore"
)

type initOptions struct {
	name      string
	partyType string
	chartPath string
	driver    string
	dsn       string
}

func newInitCommand() *cobra.Command {
	var opts initOptions

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a ledger: config, database and a party with its chart of accounts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			party, err := runInit(cmd.Context(), absDir, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized ledger at %s (party %s)\n", absDir, party)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.name, "name", "", "party name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&opts.partyType, "party-type", string(model.PartyTypeUser), "USER or HOUSEHOLD")
	cmd.Flags().StringVar(&opts.chartPath, "chart", "", "chart of accounts CSV (default: built-in personal chart)")
	cmd.Flags().StringVar(&opts.driver, "driver", "sqlite", "database driver: sqlite or postgres")
	cmd.Flags().StringVar(&opts.dsn, "dsn", "", "database DSN (default: pocketledger.db in the ledger directory)")

	return cmd
}

func runInit(ctx context.Context, dir string, opts initOptions) (string, error) {
	cfgPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return "", fmt.Errorf("%s already exists", cfgPath)
	}

	typ := model.PartyType(strings.ToUpper(opts.partyType))
	if typ != model.PartyTypeUser && typ != model.PartyTypeHousehold {
		return "", fmt.Errorf("party type %q: must be USER or HOUSEHOLD", opts.partyType)
	}

	chart := accounts.DefaultChart()
	if opts.chartPath != "" {
		f, err := os.Open(opts.chartPath)
		if err != nil {
			return "", fmt.Errorf("opening chart: %w", err)
		}
		chart, err = accounts.ReadChart(f)
		f.Close()
		if err != nil {
			return "", err
		}
	}

	for _, d := range []string{"accounts", "logs", "import", filepath.Join("import", "processed"), "exports"} {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return "", fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	cfg := config.Default()
	cfg.Database.Driver = opts.driver
	if opts.dsn != "" {
		cfg.Database.DSN = opts.dsn
	}
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	dialect, err := sqlstore.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return "", err
	}
	dsn := cfg.Database.DSN
	if dialect == sqlstore.SQLite && !filepath.IsAbs(dsn) {
		dsn = filepath.Join(dir, dsn)
	}
	logger := cfg.Logger()
	st, err := sqlstore.Open(ctx, dialect, dsn, logger)
	if err != nil {
		return "", err
	}
	defer st.Close()

	party, _, err := accounts.NewService(st, logger).SeedParty(ctx, opts.name, typ, chart)
	if err != nil {
		return "", fmt.Errorf("seeding party: %w", err)
	}

	chartFile, err := os.Create(filepath.Join(dir, "accounts", "chart.csv"))
	if err != nil {
		return "", fmt.Errorf("writing chart: %w", err)
	}
	defer chartFile.Close()
	if err := accounts.WriteChart(chartFile, chart); err != nil {
		return "", err
	}

	cfg.DefaultParty = party.ID
	if err := config.Save(cfgPath, cfg); err != nil {
		return "", fmt.Errorf("writing config: %w", err)
	}

	gitignore := "*.db\n*.db-*\nexports/\n.env\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return "", fmt.Errorf("writing .gitignore: %w", err)
	}
	return party.ID, nil
}
