// Package memory is an in-process store.Store. Units of work are
// serialized by a mutex and run against a copy of the data that replaces
// the original only on commit.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cleared-dev/pocketledger/internal/model"
	"github.com/cleared-dev/pocketledger/internal/money"
	"github.com/cleared-dev/pocketledger/internal/store"
)

type cbKey struct{ budgetID, categoryID string }

type data struct {
	parties      map[string]model.Party
	accounts     map[string]model.Account
	transactions map[string]model.Transaction
	budgets      map[string]model.Budget
	catBudgets   map[cbKey]model.CategoryBudget
	calculations []model.RolloverCalculation
	changeLogs   []model.RolloverChangeLog
	templates    map[string]model.RecurringTemplate
}

func newData() *data {
	return &data{
		parties:      map[string]model.Party{},
		accounts:     map[string]model.Account{},
		transactions: map[string]model.Transaction{},
		budgets:      map[string]model.Budget{},
		catBudgets:   map[cbKey]model.CategoryBudget{},
		templates:    map[string]model.RecurringTemplate{},
	}
}

func (d *data) clone() *data {
	c := newData()
	for k, v := range d.parties {
		c.parties[k] = v
	}
	for k, v := range d.accounts {
		c.accounts[k] = v
	}
	for k, v := range d.transactions {
		c.transactions[k] = copyTxn(v)
	}
	for k, v := range d.budgets {
		c.budgets[k] = v
	}
	for k, v := range d.catBudgets {
		c.catBudgets[k] = v
	}
	c.calculations = append([]model.RolloverCalculation(nil), d.calculations...)
	c.changeLogs = append([]model.RolloverChangeLog(nil), d.changeLogs...)
	for k, v := range d.templates {
		c.templates[k] = v
	}
	return c
}

func copyTxn(t model.Transaction) model.Transaction {
	t.Entries = append([]model.Entry(nil), t.Entries...)
	return t
}

// Store is a store.Store held in memory.
type Store struct {
	mu   sync.Mutex
	data *data
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{data: newData()}
}

// InTx runs fn against a snapshot and publishes it only if fn succeeds.
func (s *Store) InTx(ctx context.Context, fn func(store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &tx{d: s.data.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.data = tx.d
	return nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

type tx struct {
	d *data
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
}

// Parties

func (t *tx) CreateParty(_ context.Context, p model.Party) error {
	if _, ok := t.d.parties[p.ID]; ok {
		return fmt.Errorf("party %s already exists", p.ID)
	}
	t.d.parties[p.ID] = p
	return nil
}

func (t *tx) GetParty(_ context.Context, id string) (model.Party, error) {
	p, ok := t.d.parties[id]
	if !ok {
		return model.Party{}, notFound("party", id)
	}
	return p, nil
}

func (t *tx) UpdateParty(_ context.Context, p model.Party) error {
	if _, ok := t.d.parties[p.ID]; !ok {
		return notFound("party", p.ID)
	}
	t.d.parties[p.ID] = p
	return nil
}

// Accounts

func (t *tx) CreateAccount(_ context.Context, a model.Account) error {
	if _, ok := t.d.accounts[a.ID]; ok {
		return fmt.Errorf("account %s already exists", a.ID)
	}
	t.d.accounts[a.ID] = a
	return nil
}

func (t *tx) GetAccount(_ context.Context, id string) (model.Account, error) {
	a, ok := t.d.accounts[id]
	if !ok {
		return model.Account{}, notFound("account", id)
	}
	return a, nil
}

func (t *tx) FindAccountByName(_ context.Context, partyID, name string) (model.Account, error) {
	var found []model.Account
	for _, a := range t.d.accounts {
		if a.PartyID == partyID && a.Name == name {
			found = append(found, a)
		}
	}
	if len(found) == 0 {
		return model.Account{}, notFound("account", name)
	}
	sort.Slice(found, func(i, j int) bool { return found[i].ID < found[j].ID })
	return found[0], nil
}

func (t *tx) ListAccounts(_ context.Context, partyID string) ([]model.Account, error) {
	var out []model.Account
	for _, a := range t.d.accounts {
		if a.PartyID == partyID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *tx) UpdateAccount(_ context.Context, a model.Account) error {
	cur, ok := t.d.accounts[a.ID]
	if !ok {
		return notFound("account", a.ID)
	}
	cur.Name = a.Name
	cur.ParentID = a.ParentID
	cur.Active = a.Active
	t.d.accounts[a.ID] = cur
	return nil
}

// Transactions

func (t *tx) InsertTransaction(_ context.Context, txn model.Transaction) error {
	if _, ok := t.d.transactions[txn.ID]; ok {
		return fmt.Errorf("transaction %s already exists", txn.ID)
	}
	t.d.transactions[txn.ID] = copyTxn(txn)
	return nil
}

func (t *tx) GetTransaction(_ context.Context, id string) (model.Transaction, error) {
	txn, ok := t.d.transactions[id]
	if !ok {
		return model.Transaction{}, notFound("transaction", id)
	}
	return copyTxn(txn), nil
}

func (t *tx) FindTransactionByExternalID(_ context.Context, partyID, externalID string) (model.Transaction, error) {
	for _, txn := range t.d.transactions {
		if txn.PartyID == partyID && txn.ExternalID == externalID && externalID != "" {
			return copyTxn(txn), nil
		}
	}
	return model.Transaction{}, notFound("transaction external id", externalID)
}

func (t *tx) SetTransactionStatus(_ context.Context, id string, status model.TransactionStatus) error {
	txn, ok := t.d.transactions[id]
	if !ok {
		return notFound("transaction", id)
	}
	txn.Status = status
	t.d.transactions[id] = txn
	return nil
}

func (t *tx) ListTransactions(_ context.Context, partyID string, from, to time.Time) ([]model.Transaction, error) {
	var out []model.Transaction
	for _, txn := range t.d.transactions {
		if txn.PartyID == partyID && inRange(txn.Date, from, to) {
			out = append(out, copyTxn(txn))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *tx) SumEntries(_ context.Context, q store.EntrySum) (money.Amount, error) {
	var sum money.Amount
	for _, txn := range t.d.transactions {
		if !txn.IsActive() || !inRange(txn.Date, q.From, q.To) {
			continue
		}
		for _, e := range txn.Entries {
			if e.AccountID != q.AccountID || (q.ReportableOnly && !e.Reportable) {
				continue
			}
			sum += e.Amount
		}
	}
	return sum, nil
}

func inRange(d, from, to time.Time) bool {
	if !from.IsZero() && d.Before(from) {
		return false
	}
	if !to.IsZero() && d.After(to) {
		return false
	}
	return true
}

// Budgets

func (t *tx) CreateBudget(_ context.Context, b model.Budget) error {
	if _, ok := t.d.budgets[b.ID]; ok {
		return fmt.Errorf("budget %s already exists", b.ID)
	}
	for _, other := range t.d.budgets {
		if other.PartyID == b.PartyID && other.Period == b.Period {
			return fmt.Errorf("budget for %s already exists", b.Period)
		}
	}
	t.d.budgets[b.ID] = b
	return nil
}

func (t *tx) GetBudget(_ context.Context, id string) (model.Budget, error) {
	b, ok := t.d.budgets[id]
	if !ok {
		return model.Budget{}, notFound("budget", id)
	}
	return b, nil
}

func (t *tx) FindBudget(_ context.Context, partyID string, period model.Period) (model.Budget, error) {
	for _, b := range t.d.budgets {
		if b.PartyID == partyID && b.Period == period {
			return b, nil
		}
	}
	return model.Budget{}, notFound("budget", period.String())
}

func (t *tx) ListBudgets(_ context.Context, partyID string) ([]model.Budget, error) {
	var out []model.Budget
	for _, b := range t.d.budgets {
		if b.PartyID == partyID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period.Before(out[j].Period) })
	return out, nil
}

func (t *tx) SetBudgetRecalc(_ context.Context, id string, needsRecalc bool) error {
	b, ok := t.d.budgets[id]
	if !ok {
		return notFound("budget", id)
	}
	b.RolloverNeedsRecalc = needsRecalc
	t.d.budgets[id] = b
	return nil
}

func (t *tx) DeleteBudget(_ context.Context, id string) error {
	if _, ok := t.d.budgets[id]; !ok {
		return notFound("budget", id)
	}
	for k := range t.d.catBudgets {
		if k.budgetID == id {
			delete(t.d.catBudgets, k)
		}
	}
	delete(t.d.budgets, id)
	return nil
}

// Category budgets

func (t *tx) UpsertCategoryBudget(_ context.Context, cb model.CategoryBudget) error {
	if _, ok := t.d.budgets[cb.BudgetID]; !ok {
		return notFound("budget", cb.BudgetID)
	}
	t.d.catBudgets[cbKey{cb.BudgetID, cb.CategoryID}] = cb
	return nil
}

func (t *tx) GetCategoryBudget(_ context.Context, budgetID, categoryID string) (model.CategoryBudget, error) {
	cb, ok := t.d.catBudgets[cbKey{budgetID, categoryID}]
	if !ok {
		return model.CategoryBudget{}, notFound("category budget", budgetID+"/"+categoryID)
	}
	return cb, nil
}

// LockCategoryBudget is GetCategoryBudget: the store-wide mutex already
// serializes units of work.
func (t *tx) LockCategoryBudget(ctx context.Context, budgetID, categoryID string) (model.CategoryBudget, error) {
	return t.GetCategoryBudget(ctx, budgetID, categoryID)
}

func (t *tx) ListCategoryBudgets(_ context.Context, budgetID string) ([]model.CategoryBudget, error) {
	var out []model.CategoryBudget
	for k, cb := range t.d.catBudgets {
		if k.budgetID == budgetID {
			out = append(out, cb)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CategoryID < out[j].CategoryID })
	return out, nil
}

// Audit

func (t *tx) InsertCalculation(_ context.Context, c model.RolloverCalculation) error {
	t.d.calculations = append(t.d.calculations, c)
	return nil
}

func (t *tx) LatestCalculation(_ context.Context, budgetID, categoryID string) (model.RolloverCalculation, error) {
	for i := len(t.d.calculations) - 1; i >= 0; i-- {
		c := t.d.calculations[i]
		if c.BudgetID == budgetID && c.CategoryID == categoryID {
			return c, nil
		}
	}
	return model.RolloverCalculation{}, notFound("rollover calculation", budgetID+"/"+categoryID)
}

func (t *tx) ListCalculations(_ context.Context, budgetID, categoryID string) ([]model.RolloverCalculation, error) {
	var out []model.RolloverCalculation
	for _, c := range t.d.calculations {
		if c.BudgetID == budgetID && c.CategoryID == categoryID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (t *tx) InsertChangeLog(_ context.Context, l model.RolloverChangeLog) error {
	t.d.changeLogs = append(t.d.changeLogs, l)
	return nil
}

func (t *tx) ListChangeLogs(_ context.Context, budgetID, categoryID string) ([]model.RolloverChangeLog, error) {
	var out []model.RolloverChangeLog
	for _, l := range t.d.changeLogs {
		if l.BudgetID == budgetID && l.CategoryID == categoryID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (t *tx) PruneAudit(_ context.Context, before time.Time) (int64, error) {
	var n int64
	calcs := t.d.calculations[:0]
	for _, c := range t.d.calculations {
		if c.CreatedAt.Before(before) {
			n++
			continue
		}
		calcs = append(calcs, c)
	}
	t.d.calculations = calcs

	logs := t.d.changeLogs[:0]
	for _, l := range t.d.changeLogs {
		if l.CreatedAt.Before(before) {
			n++
			continue
		}
		logs = append(logs, l)
	}
	t.d.changeLogs = logs
	return n, nil
}

// Recurring templates

func (t *tx) CreateTemplate(_ context.Context, rt model.RecurringTemplate) error {
	if _, ok := t.d.templates[rt.ID]; ok {
		return fmt.Errorf("template %s already exists", rt.ID)
	}
	t.d.templates[rt.ID] = rt
	return nil
}

func (t *tx) GetTemplate(_ context.Context, id string) (model.RecurringTemplate, error) {
	rt, ok := t.d.templates[id]
	if !ok {
		return model.RecurringTemplate{}, notFound("template", id)
	}
	return rt, nil
}

func (t *tx) UpdateTemplate(_ context.Context, rt model.RecurringTemplate) error {
	if _, ok := t.d.templates[rt.ID]; !ok {
		return notFound("template", rt.ID)
	}
	t.d.templates[rt.ID] = rt
	return nil
}

func (t *tx) ListDueTemplates(_ context.Context, asOf time.Time) ([]model.RecurringTemplate, error) {
	var out []model.RecurringTemplate
	for _, rt := range t.d.templates {
		if rt.Active && !rt.NextDueDate.After(asOf) {
			out = append(out, rt)
		}
	}
	sortTemplates(out)
	return out, nil
}

func (t *tx) ListActiveTemplates(_ context.Context, partyID string) ([]model.RecurringTemplate, error) {
	var out []model.RecurringTemplate
	for _, rt := range t.d.templates {
		if rt.Active && rt.PartyID == partyID {
			out = append(out, rt)
		}
	}
	sortTemplates(out)
	return out, nil
}

func sortTemplates(ts []model.RecurringTemplate) {
	sort.Slice(ts, func(i, j int) bool {
		if !ts[i].NextDueDate.Equal(ts[j].NextDueDate) {
			return ts[i].NextDueDate.Before(ts[j].NextDueDate)
		}
		return ts[i].ID < ts[j].ID
	})
}
