package importer

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cleared-dev/pocketledger/internal/journal"
	"github.com/cleared-dev/pocketledger/internal/log"
	"github.com/cleared-dev/pocketledger/internal/model"
	"github.com/cleared-dev/pocketledger/internal/store"
)

var (
	ErrUnknownFormat   = errors.New("unknown import format")
	ErrUnknownCategory = errors.New("unknown category")
)

// Options controls how rows are posted.
type Options struct {
	Format                 string // "" = detect from header
	AccountID              string // "" = party default
	DefaultExpenseCategory string
	DefaultIncomeCategory  string
}

// RowError is a row that could not be posted.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }

func (e RowError) Unwrap() error { return e.Err }

// Summary reports the outcome of importing one file.
type Summary struct {
	File       string
	Format     string
	Posted     int
	Duplicates int
	Errors     []RowError
}

// Skipped counts rows not posted, duplicates included.
func (s Summary) Skipped() int { return s.Duplicates + len(s.Errors) }

// Service posts imported rows through the journal.
type Service struct {
	store    store.Store
	journal  *journal.Service
	registry *Registry
	logger   *log.Logger
}

// NewService creates an importer using the default parser registry.
func NewService(st store.Store, j *journal.Service, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:    st,
		journal:  j,
		registry: DefaultRegistry(),
		logger:   logger.WithComponent(log.ComponentImporter),
	}
}

// Registry returns the parser registry so callers can add formats.
func (s *Service) Registry() *Registry { return s.registry }

func defaults(opts Options) Options {
	if opts.DefaultExpenseCategory == "" {
		opts.DefaultExpenseCategory = "Uncategorized"
	}
	if opts.DefaultIncomeCategory == "" {
		opts.DefaultIncomeCategory = "Salary"
	}
	return opts
}

// ImportFile parses path and posts each row as its own transaction.
// A parse failure aborts before anything is posted; row failures are
// collected in the summary.
func (s *Service) ImportFile(ctx context.Context, partyID, path string, opts Options) (Summary, error) {
	opts = defaults(opts)
	data, err := os.ReadFile(path)
	if err != nil {
		return Summary{}, fmt.Errorf("reading %s: %w", path, err)
	}

	p, err := s.parser(data, opts.Format)
	if err != nil {
		return Summary{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	rows, err := p.Parse(bytes.NewReader(data))
	if err != nil {
		return Summary{}, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}

	sum := Summary{File: filepath.Base(path), Format: p.Format()}
	seen := map[string]int{}
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if row.ExternalID == "" {
			row.ExternalID = derivedKey(p.Format(), row, seen)
		}

		txn, err := s.postRow(ctx, partyID, row, opts)
		switch {
		case err == nil:
			sum.Posted++
			s.journal.Posted(ctx, txn)
		case errors.Is(err, journal.ErrDuplicateTransaction):
			sum.Duplicates++
		default:
			sum.Errors = append(sum.Errors, RowError{Line: row.Line, Err: err})
			s.logger.WarnContext(ctx, "import row skipped",
				log.FieldFile, sum.File, "line", row.Line, log.FieldError, err)
		}
	}

	s.logger.InfoContext(ctx, "file imported",
		log.FieldParty, partyID,
		log.FieldFile, sum.File,
		"format", sum.Format,
		"posted", sum.Posted,
		"duplicates", sum.Duplicates,
		"errors", len(sum.Errors))
	return sum, nil
}

// ImportDir imports every CSV in dir and moves each successfully parsed
// file into dir/processed.
func (s *Service) ImportDir(ctx context.Context, partyID, dir string, opts Options) ([]Summary, error) {
	files, err := Scan(dir)
	if err != nil {
		return nil, err
	}

	var out []Summary
	for _, f := range files {
		sum, err := s.ImportFile(ctx, partyID, f.Path, opts)
		if err != nil {
			return out, err
		}
		out = append(out, sum)
		if err := MarkProcessed(dir, f.Name); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (s *Service) parser(data []byte, format string) (Parser, error) {
	if format != "" {
		if p := s.registry.Get(format); p != nil {
			return p, nil
		}
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if p := s.registry.Detect(header); p != nil {
		return p, nil
	}
	return nil, fmt.Errorf("%w: header %q", ErrUnknownFormat, strings.Join(header, ","))
}

func (s *Service) postRow(ctx context.Context, partyID string, row Row, opts Options) (model.Transaction, error) {
	dir, amount, fallback := journal.DirectionExpense, row.Amount.Neg(), opts.DefaultExpenseCategory
	if row.Amount.IsPositive() {
		dir, amount, fallback = journal.DirectionIncome, row.Amount, opts.DefaultIncomeCategory
	}
	name := row.Category
	if name == "" {
		name = fallback
	}

	var txn model.Transaction
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		cat, err := tx.FindAccountByName(ctx, partyID, name)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %q", ErrUnknownCategory, name)
		}
		if err != nil {
			return err
		}

		txn, err = s.journal.PostTx(ctx, tx, journal.Simple{
			Header: journal.Header{
				PartyID:     partyID,
				Date:        row.Date,
				Description: row.Description,
				ExternalID:  row.ExternalID,
			},
			Direction:  dir,
			CategoryID: cat.ID,
			AccountID:  opts.AccountID,
			Amount:     amount,
		})
		return err
	})
	return txn, err
}

// derivedKey builds a stable dedupe key such as
// chase_20250103_GITHUBPROS_-400_1. Identical rows within a file get
// increasing suffixes.
func derivedKey(format string, row Row, seen map[string]int) string {
	key := strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, row.Description)
	if len(key) > 10 {
		key = key[:10]
	}
	base := fmt.Sprintf("%s_%s_%s_%d", format, row.Date.Format("20060102"), key, row.Amount.Cents())
	seen[base]++
	return fmt.Sprintf("%s_%d", base, seen[base])
}
