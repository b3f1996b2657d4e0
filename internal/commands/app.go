package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/cleared-dev/pocketledger/internal/accounts"
	"github.com/cleared-dev/pocketledger/internal/allocation"
	"github.com/cleared-dev/pocketledger/internal/config"
	"github.com/cleared-dev/pocketledger/internal/events"
	"github.com/cleared-dev/pocketledger/internal/importer"
	"github.com/cleared-dev/pocketledger/internal/journal"
	"github.com/cleared-dev/pocketledger/internal/log"
	"github.com/cleared-dev/pocketledger/internal/recurring"
	"github.com/cleared-dev/pocketledger/internal/rollover"
	"github.com/cleared-dev/pocketledger/internal/store/sqlstore"
)

// loadConfig reads the config file, falling back to defaults when it does
// not exist, then applies .env and POCKETLEDGER_* overrides. A relative
// SQLite path is resolved against the config file's directory.
func loadConfig(path string) (*config.Config, error) {
	// .env is optional.
	_ = godotenv.Load()

	cfg, err := config.Load(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		cfg = config.Default()
	case err != nil:
		return nil, err
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Database.Driver == string(sqlstore.SQLite) && !filepath.IsAbs(cfg.Database.DSN) {
		cfg.Database.DSN = filepath.Join(filepath.Dir(path), cfg.Database.DSN)
	}
	return cfg, nil
}

// app is the wired set of services a command runs against.
type app struct {
	cfg    *config.Config
	logger *log.Logger
	store  *sqlstore.Store
	events events.Publisher

	accounts  *accounts.Service
	journal   *journal.Service
	rollover  *rollover.Service
	recurring *recurring.Service
	planner   *allocation.Planner
	importer  *importer.Service

	closers []func() error
}

func openApp(ctx context.Context, cfgPath string) (*app, error) {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger()
	log.SetDefault(logger)

	dialect, err := sqlstore.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}
	st, err := sqlstore.Open(ctx, dialect, cfg.Database.DSN, logger)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, store: st, events: events.Nop{}}
	a.closers = append(a.closers, st.Close)

	if cfg.Events.AMQPURL != "" {
		pub, err := events.NewAMQPPublisher(cfg.Events.AMQPURL, cfg.Events.Exchange, cfg.Events.Queue, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.events = pub
		a.closers = append(a.closers, pub.Close)
	}

	a.accounts = accounts.NewService(st, logger)
	a.journal = journal.NewService(st, a.events, logger)
	a.rollover = rollover.NewService(st, a.events, logger)
	a.rollover.SetDefaultPolicy(cfg.Rollover.DefaultPolicy)
	a.recurring = recurring.NewService(st, a.journal, a.events, logger)
	a.planner = allocation.NewPlanner(a.recurring, logger)
	a.importer = importer.NewService(st, a.journal, logger)
	return a, nil
}

// party returns flagValue, or the configured default party.
func (a *app) party(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if a.cfg.DefaultParty != "" {
		return a.cfg.DefaultParty, nil
	}
	return "", fmt.Errorf("--party is required (no default_party in config)")
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", log.FieldError, err)
		}
	}
}
