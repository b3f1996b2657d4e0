// Package store defines the transactional persistence boundary used by
// the ledger, rollover and recurring services.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/cleared-dev/pocketledger/internal/model"
	"github.com/cleared-dev/pocketledger/internal/money"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store hands out units of work.
type Store interface {
	// InTx runs fn in a single unit of work. It commits when fn returns nil
	// and rolls back on error or panic.
	InTx(ctx context.Context, fn func(Tx) error) error
	Close() error
}

// EntrySum selects the entries added up by Tx.SumEntries. Zero From/To
// leave that side of the date range open. Entries of voided transactions
// never count.
type EntrySum struct {
	AccountID      string
	From           time.Time
	To             time.Time // inclusive
	ReportableOnly bool
}

// Tx is the set of reads and writes available inside a unit of work.
type Tx interface {
	CreateParty(ctx context.Context, p model.Party) error
	GetParty(ctx context.Context, id string) (model.Party, error)
	UpdateParty(ctx context.Context, p model.Party) error

	CreateAccount(ctx context.Context, a model.Account) error
	GetAccount(ctx context.Context, id string) (model.Account, error)
	FindAccountByName(ctx context.Context, partyID, name string) (model.Account, error)
	ListAccounts(ctx context.Context, partyID string) ([]model.Account, error)
	// UpdateAccount persists name, parent and active flag. Type is never rewritten.
	UpdateAccount(ctx context.Context, a model.Account) error

	// InsertTransaction writes the header and all of its entries.
	InsertTransaction(ctx context.Context, t model.Transaction) error
	GetTransaction(ctx context.Context, id string) (model.Transaction, error)
	FindTransactionByExternalID(ctx context.Context, partyID, externalID string) (model.Transaction, error)
	SetTransactionStatus(ctx context.Context, id string, status model.TransactionStatus) error
	// ListTransactions returns the party's transactions dated within [from, to], oldest first.
	ListTransactions(ctx context.Context, partyID string, from, to time.Time) ([]model.Transaction, error)
	SumEntries(ctx context.Context, q EntrySum) (money.Amount, error)

	CreateBudget(ctx context.Context, b model.Budget) error
	GetBudget(ctx context.Context, id string) (model.Budget, error)
	FindBudget(ctx context.Context, partyID string, period model.Period) (model.Budget, error)
	// ListBudgets returns the party's budgets in period order.
	ListBudgets(ctx context.Context, partyID string) ([]model.Budget, error)
	SetBudgetRecalc(ctx context.Context, id string, needsRecalc bool) error
	// DeleteBudget removes the budget and the category budgets it owns.
	DeleteBudget(ctx context.Context, id string) error

	UpsertCategoryBudget(ctx context.Context, cb model.CategoryBudget) error
	GetCategoryBudget(ctx context.Context, budgetID, categoryID string) (model.CategoryBudget, error)
	// LockCategoryBudget reads the row and holds a write lock on it until the unit of work ends.
	LockCategoryBudget(ctx context.Context, budgetID, categoryID string) (model.CategoryBudget, error)
	ListCategoryBudgets(ctx context.Context, budgetID string) ([]model.CategoryBudget, error)

	InsertCalculation(ctx context.Context, c model.RolloverCalculation) error
	LatestCalculation(ctx context.Context, budgetID, categoryID string) (model.RolloverCalculation, error)
	ListCalculations(ctx context.Context, budgetID, categoryID string) ([]model.RolloverCalculation, error)
	InsertChangeLog(ctx context.Context, l model.RolloverChangeLog) error
	ListChangeLogs(ctx context.Context, budgetID, categoryID string) ([]model.RolloverChangeLog, error)
	// PruneAudit deletes calculation and change-log rows created before the cutoff.
	PruneAudit(ctx context.Context, before time.Time) (int64, error)

	CreateTemplate(ctx context.Context, t model.RecurringTemplate) error
	GetTemplate(ctx context.Context, id string) (model.RecurringTemplate, error)
	UpdateTemplate(ctx context.Context, t model.RecurringTemplate) error
	// ListDueTemplates returns active templates with NextDueDate on or before asOf.
	ListDueTemplates(ctx context.Context, asOf time.Time) ([]model.RecurringTemplate, error)
	ListActiveTemplates(ctx context.Context, partyID string) ([]model.RecurringTemplate, error)
}
