// Package storetest holds behaviour checks shared by every store.Store
// implementation.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/pocketledger/internal/id"
	"github.com/cleared-dev/pocketledger/internal/model"
	"github.com/cleared-dev/pocketledger/internal/money"
	"github.com/cleared-dev/pocketledger/internal/store"
)

// Run exercises s. Each subtest receives a fresh store from newStore.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("PartyAndAccounts", func(t *testing.T) { testPartyAndAccounts(t, newStore(t)) })
	t.Run("Transactions", func(t *testing.T) { testTransactions(t, newStore(t)) })
	t.Run("Rollback", func(t *testing.T) { testRollback(t, newStore(t)) })
	t.Run("Budgets", func(t *testing.T) { testBudgets(t, newStore(t)) })
	t.Run("Audit", func(t *testing.T) { testAudit(t, newStore(t)) })
	t.Run("Templates", func(t *testing.T) { testTemplates(t, newStore(t)) })
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, s store.Store) (model.Party, model.Account, model.Account) {
	t.Helper()
	p := model.Party{ID: id.New(), Type: model.PartyTypeUser, Name: "Alex", CreatedAt: now}
	cash := model.Account{ID: id.New(), PartyID: p.ID, Name: "Cash", Type: model.AccountTypeAsset, Active: true, CreatedAt: now}
	food := model.Account{ID: id.New(), PartyID: p.ID, Name: "Groceries", Type: model.AccountTypeExpense, Active: true, CreatedAt: now}
	err := s.InTx(context.Background(), func(tx store.Tx) error {
		if err := tx.CreateParty(context.Background(), p); err != nil {
			return err
		}
		for _, a := range []model.Account{cash, food} {
			if err := tx.CreateAccount(context.Background(), a); err != nil {
				return err
			}
		}
		p.DefaultAccountID = cash.ID
		return tx.UpdateParty(context.Background(), p)
	})
	require.NoError(t, err)
	return p, cash, food
}

func txn(partyID string, d time.Time, from, to string, amount money.Amount) model.Transaction {
	tid := id.New()
	return model.Transaction{
		ID: tid, PartyID: partyID, Date: d, Description: "test",
		Kind: model.KindSimple, Status: model.StatusActive, CreatedAt: now,
		Entries: []model.Entry{
			{ID: id.FormatLegID(tid, 0), TransactionID: tid, AccountID: from, Amount: -amount, Reportable: true},
			{ID: id.FormatLegID(tid, 1), TransactionID: tid, AccountID: to, Amount: amount, Reportable: true},
		},
	}
}

func testPartyAndAccounts(t *testing.T, s store.Store) {
	ctx := context.Background()
	p, cash, _ := seed(t, s)

	err := s.InTx(ctx, func(tx store.Tx) error {
		got, err := tx.GetParty(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, cash.ID, got.DefaultAccountID)
		assert.Equal(t, "Alex", got.Name)

		accts, err := tx.ListAccounts(ctx, p.ID)
		require.NoError(t, err)
		require.Len(t, accts, 2)
		assert.Equal(t, "Cash", accts[0].Name)
		assert.Equal(t, "Groceries", accts[1].Name)

		byName, err := tx.FindAccountByName(ctx, p.ID, "Groceries")
		require.NoError(t, err)
		assert.Equal(t, model.AccountTypeExpense, byName.Type)

		changed := cash
		changed.Name = "Wallet"
		changed.Type = model.AccountTypeExpense
		require.NoError(t, tx.UpdateAccount(ctx, changed))
		got2, err := tx.GetAccount(ctx, cash.ID)
		require.NoError(t, err)
		assert.Equal(t, "Wallet", got2.Name)
		assert.Equal(t, model.AccountTypeAsset, got2.Type, "type is never rewritten")

		_, err = tx.GetAccount(ctx, "missing")
		assert.True(t, errors.Is(err, store.ErrNotFound))
		_, err = tx.GetParty(ctx, "missing")
		assert.True(t, errors.Is(err, store.ErrNotFound))
		return nil
	})
	require.NoError(t, err)
}

func testTransactions(t *testing.T, s store.Store) {
	ctx := context.Background()
	p, cash, food := seed(t, s)

	t1 := txn(p.ID, date(2025, 1, 5), cash.ID, food.ID, money.MustParse("40.25"))
	t1.ExternalID = "bank-1"
	t2 := txn(p.ID, date(2025, 1, 20), cash.ID, food.ID, money.MustParse("10"))
	t2.Entries[1].Reportable = false
	t3 := txn(p.ID, date(2025, 2, 1), cash.ID, food.ID, money.MustParse("5"))

	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		for _, x := range []model.Transaction{t3, t1, t2} {
			if err := tx.InsertTransaction(ctx, x); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		got, err := tx.GetTransaction(ctx, t1.ID)
		require.NoError(t, err)
		assert.Equal(t, "bank-1", got.ExternalID)
		assert.True(t, got.Date.Equal(t1.Date))
		require.Len(t, got.Entries, 2)
		assert.Equal(t, money.MustParse("-40.25"), got.Entries[0].Amount)
		assert.Equal(t, money.Zero, got.Balance())

		dup, err := tx.FindTransactionByExternalID(ctx, p.ID, "bank-1")
		require.NoError(t, err)
		assert.Equal(t, t1.ID, dup.ID)
		_, err = tx.FindTransactionByExternalID(ctx, p.ID, "bank-2")
		assert.ErrorIs(t, err, store.ErrNotFound)

		jan, err := tx.ListTransactions(ctx, p.ID, date(2025, 1, 1), date(2025, 1, 31))
		require.NoError(t, err)
		require.Len(t, jan, 2)
		assert.Equal(t, t1.ID, jan[0].ID)
		assert.Equal(t, t2.ID, jan[1].ID)

		all, err := tx.SumEntries(ctx, store.EntrySum{AccountID: food.ID})
		require.NoError(t, err)
		assert.Equal(t, money.MustParse("55.25"), all)

		reportable, err := tx.SumEntries(ctx, store.EntrySum{AccountID: food.ID, From: date(2025, 1, 1), To: date(2025, 1, 31), ReportableOnly: true})
		require.NoError(t, err)
		assert.Equal(t, money.MustParse("40.25"), reportable)

		require.NoError(t, tx.SetTransactionStatus(ctx, t1.ID, model.StatusVoided))
		after, err := tx.SumEntries(ctx, store.EntrySum{AccountID: cash.ID})
		require.NoError(t, err)
		assert.Equal(t, money.MustParse("-15"), after)
		return nil
	}))
}

func testRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	p, cash, food := seed(t, s)
	x := txn(p.ID, date(2025, 1, 5), cash.ID, food.ID, money.MustParse("1"))
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.InsertTransaction(ctx, x))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	assert.Panics(t, func() {
		_ = s.InTx(ctx, func(tx store.Tx) error {
			_ = tx.InsertTransaction(ctx, x)
			panic("half-written")
		})
	})

	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		_, err := tx.GetTransaction(ctx, x.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
		sum, err := tx.SumEntries(ctx, store.EntrySum{AccountID: cash.ID})
		require.NoError(t, err)
		assert.Equal(t, money.Zero, sum)
		return nil
	}))
}

func testBudgets(t *testing.T, s store.Store) {
	ctx := context.Background()
	p, _, food := seed(t, s)
	feb := model.Budget{ID: id.New(), PartyID: p.ID, Period: model.NewPeriod(2025, time.February), Active: true, CreatedAt: now}
	jan := model.Budget{ID: id.New(), PartyID: p.ID, Period: model.NewPeriod(2025, time.January), Active: true, CreatedAt: now}
	cb := model.CategoryBudget{
		BudgetID: jan.ID, CategoryID: food.ID, BudgetAmount: money.MustParse("500"),
		RolloverEnabled: true, Policy: model.RolloverRemaining,
		RolloverPercentage: decimal.NewFromInt(80), MaxRolloverAmount: money.MustParse("100"),
		RolloverExpiryMonths: 3, State: model.StateNotCalculated, UpdatedAt: now,
	}

	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.CreateBudget(ctx, feb))
		require.NoError(t, tx.CreateBudget(ctx, jan))
		return tx.UpsertCategoryBudget(ctx, cb)
	}))

	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		list, err := tx.ListBudgets(ctx, p.ID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, jan.ID, list[0].ID)

		found, err := tx.FindBudget(ctx, p.ID, model.NewPeriod(2025, time.February))
		require.NoError(t, err)
		assert.Equal(t, feb.ID, found.ID)
		_, err = tx.FindBudget(ctx, p.ID, model.NewPeriod(2025, time.March))
		assert.ErrorIs(t, err, store.ErrNotFound)

		require.NoError(t, tx.SetBudgetRecalc(ctx, jan.ID, true))
		b, err := tx.GetBudget(ctx, jan.ID)
		require.NoError(t, err)
		assert.True(t, b.RolloverNeedsRecalc)

		got, err := tx.LockCategoryBudget(ctx, jan.ID, food.ID)
		require.NoError(t, err)
		assert.Equal(t, money.MustParse("500"), got.BudgetAmount)
		assert.True(t, got.RolloverPercentage.Equal(decimal.NewFromInt(80)))
		assert.Equal(t, money.MustParse("100"), got.MaxRolloverAmount)
		assert.Equal(t, 3, got.RolloverExpiryMonths)
		assert.Equal(t, model.RolloverRemaining, got.Policy)
		assert.False(t, got.Calculated())

		got.RolloverAmount = money.MustParse("74.50")
		got.RolloverOrigin = jan.Period
		got.State = model.StateCalculated
		got.CalculatedAt = now
		require.NoError(t, tx.UpsertCategoryBudget(ctx, got))
		again, err := tx.GetCategoryBudget(ctx, jan.ID, food.ID)
		require.NoError(t, err)
		assert.Equal(t, money.MustParse("74.50"), again.RolloverAmount)
		assert.Equal(t, jan.Period, again.RolloverOrigin)
		assert.True(t, again.Calculated())

		require.NoError(t, tx.DeleteBudget(ctx, jan.ID))
		_, err = tx.GetCategoryBudget(ctx, jan.ID, food.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
		cbs, err := tx.ListCategoryBudgets(ctx, jan.ID)
		require.NoError(t, err)
		assert.Empty(t, cbs)
		return nil
	}))
}

func testAudit(t *testing.T, s store.Store) {
	ctx := context.Background()
	p, _, food := seed(t, s)
	b := model.Budget{ID: id.New(), PartyID: p.ID, Period: model.NewPeriod(2025, time.January), Active: true, CreatedAt: now}
	old := now.Add(-48 * time.Hour)

	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.CreateBudget(ctx, b))
		for i, at := range []time.Time{old, now} {
			require.NoError(t, tx.InsertCalculation(ctx, model.RolloverCalculation{
				ID: id.New(), BudgetID: b.ID, CategoryID: food.ID, Period: b.Period,
				BaseBudget: money.MustParse("500"), SpentAmount: money.Amount(i), RolloverAmount: money.Amount(i),
				Policy: model.RolloverBoth, Origin: b.Period, Reason: "test", CreatedAt: at,
			}))
			require.NoError(t, tx.InsertChangeLog(ctx, model.RolloverChangeLog{
				ID: id.New(), BudgetID: b.ID, CategoryID: food.ID, Period: b.Period,
				ChangeType: model.ChangeRecalculation, NewAmount: money.Amount(i), Actor: "system", CreatedAt: at,
			}))
		}
		return nil
	}))

	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		latest, err := tx.LatestCalculation(ctx, b.ID, food.ID)
		require.NoError(t, err)
		assert.Equal(t, money.Amount(1), latest.RolloverAmount)
		assert.Equal(t, b.Period, latest.Origin)

		n, err := tx.PruneAudit(ctx, now.Add(-time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		calcs, err := tx.ListCalculations(ctx, b.ID, food.ID)
		require.NoError(t, err)
		assert.Len(t, calcs, 1)
		logs, err := tx.ListChangeLogs(ctx, b.ID, food.ID)
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, model.ChangeRecalculation, logs[0].ChangeType)
		return nil
	}))
}

func testTemplates(t *testing.T, s store.Store) {
	ctx := context.Background()
	p, cash, food := seed(t, s)
	rent := model.RecurringTemplate{
		ID: id.New(), PartyID: p.ID, Description: "Rent", Direction: model.DirectionExpense,
		CategoryID: food.ID, SourceAccountID: cash.ID, Amount: money.MustParse("1200"),
		Frequency: model.FrequencyMonthly, Flexibility: model.FlexExact, Priority: model.PriorityCritical,
		StartDate: date(2025, 1, 1), NextDueDate: date(2025, 3, 1), Active: true, CreatedAt: now, UpdatedAt: now,
	}
	gym := rent
	gym.ID = id.New()
	gym.Description = "Gym"
	gym.NextDueDate = date(2025, 4, 1)
	gym.EndDate = date(2025, 12, 31)

	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.CreateTemplate(ctx, gym))
		return tx.CreateTemplate(ctx, rent)
	}))

	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		due, err := tx.ListDueTemplates(ctx, date(2025, 3, 15))
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, rent.ID, due[0].ID)
		assert.Equal(t, money.MustParse("1200"), due[0].Amount)
		assert.True(t, due[0].EndDate.IsZero())

		active, err := tx.ListActiveTemplates(ctx, p.ID)
		require.NoError(t, err)
		require.Len(t, active, 2)
		assert.Equal(t, "Rent", active[0].Description)
		assert.True(t, active[1].EndDate.Equal(gym.EndDate))

		rent.Active = false
		rent.LastRunDate = date(2025, 3, 1)
		require.NoError(t, tx.UpdateTemplate(ctx, rent))
		got, err := tx.GetTemplate(ctx, rent.ID)
		require.NoError(t, err)
		assert.False(t, got.Active)
		assert.True(t, got.LastRunDate.Equal(date(2025, 3, 1)))

		due, err = tx.ListDueTemplates(ctx, date(2025, 12, 31))
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, gym.ID, due[0].ID)
		return nil
	}))
}
