package journal

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/pocketledger/internal/events"
	"github.com/cleared-dev/pocketledger/internal/id"
	"github.com/cleared-dev/pocketledger/internal/model"
	"github.com/cleared-dev/pocketledger/internal/money"
	"github.com/cleared-dev/pocketledger/internal/share"
	"github.com/cleared-dev/pocketledger/internal/split"
	"github.com/cleared-dev/pocketledger/internal/store"
	"github.com/cleared-dev/pocketledger/internal/store/memory"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func amt(s string) money.Amount { return money.MustParse(s) }

var now = time.Date(2025, 3, 15, 9, 30, 0, 0, time.UTC)

type fixture struct {
	svc    *Service
	st     *memory.Store
	events *events.Recorder
	party  model.Party

	cash, checking, savings, card    model.Account
	groceries, clothing, dining, old model.Account
	salary                           model.Account
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{st: memory.New(), events: &events.Recorder{}}
	f.party = model.Party{ID: id.New(), Type: model.PartyTypeUser, Name: "Alex", CreatedAt: now}

	mk := func(name string, typ model.AccountType) model.Account {
		return model.Account{ID: id.New(), PartyID: f.party.ID, Name: name, Type: typ, Active: true, CreatedAt: now}
	}
	f.cash = mk("Cash", model.AccountTypeAsset)
	f.checking = mk("Checking", model.AccountTypeAsset)
	f.savings = mk("Savings", model.AccountTypeAsset)
	f.card = mk("Credit Card", model.AccountTypeLiability)
	f.groceries = mk("Groceries", model.AccountTypeExpense)
	f.clothing = mk("Clothing", model.AccountTypeExpense)
	f.dining = mk("Dining", model.AccountTypeExpense)
	f.old = mk("Old Hobby", model.AccountTypeExpense)
	f.old.Active = false
	f.salary = mk("Salary", model.AccountTypeIncome)
	f.party.DefaultAccountID = f.cash.ID

	err := f.st.InTx(context.Background(), func(tx store.Tx) error {
		if err := tx.CreateParty(context.Background(), f.party); err != nil {
			return err
		}
		for _, a := range []model.Account{f.cash, f.checking, f.savings, f.card, f.groceries, f.clothing, f.dining, f.old, f.salary} {
			if err := tx.CreateAccount(context.Background(), a); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	f.svc = NewService(f.st, f.events, nil)
	f.svc.SetClock(func() time.Time { return now })
	return f
}

func (f *fixture) header(d time.Time) Header {
	return Header{PartyID: f.party.ID, Date: d, Description: "test"}
}

func (f *fixture) balance(t *testing.T, a model.Account) money.Amount {
	t.Helper()
	b, err := f.svc.Balance(context.Background(), f.party.ID, a.ID, time.Time{})
	require.NoError(t, err)
	return b
}

func (f *fixture) count(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, f.st.InTx(context.Background(), func(tx store.Tx) error {
		txns, err := tx.ListTransactions(context.Background(), f.party.ID, time.Time{}, time.Time{})
		n = len(txns)
		return err
	}))
	return n
}

type posting struct {
	account model.Account
	amount  string
}

func assertEntries(t *testing.T, txn model.Transaction, want ...posting) {
	t.Helper()
	require.Len(t, txn.Entries, len(want))
	for i, w := range want {
		assert.Equal(t, w.account.ID, txn.Entries[i].AccountID, "entry %d account", i)
		assert.Equal(t, amt(w.amount), txn.Entries[i].Amount, "entry %d amount", i)
		assert.Equal(t, id.FormatLegID(txn.ID, i), txn.Entries[i].ID)
	}
	assert.Equal(t, money.Zero, txn.Balance())
}

func TestPost_SimpleExpense(t *testing.T) {
	f := newFixture(t)
	txn, err := f.svc.Post(context.Background(), Simple{
		Header:     f.header(date(2025, 3, 2)),
		CategoryID: f.groceries.ID,
		Amount:     amt("42.17"),
	})
	require.NoError(t, err)
	assert.Equal(t, model.KindSimple, txn.Kind)
	assert.Equal(t, model.StatusActive, txn.Status)
	assertEntries(t, txn, posting{f.cash, "-42.17"}, posting{f.groceries, "42.17"})

	assert.Equal(t, amt("-42.17"), f.balance(t, f.cash))
	posted := f.events.OfType(events.TransactionPosted)
	require.Len(t, posted, 1)
	assert.Equal(t, txn.ID, posted[0].SubjectID)
	assert.Equal(t, "42.17", posted[0].Data["amount"])
}

func TestPost_SimpleIncome(t *testing.T) {
	f := newFixture(t)
	txn, err := f.svc.Post(context.Background(), Simple{
		Header:     f.header(date(2025, 3, 1)),
		Direction:  DirectionIncome,
		CategoryID: f.salary.ID,
		AccountID:  f.checking.ID,
		Amount:     amt("3000"),
	})
	require.NoError(t, err)
	assertEntries(t, txn, posting{f.checking, "3000"}, posting{f.salary, "-3000"})

	_, err = f.svc.Post(context.Background(), Simple{
		Header:     f.header(date(2025, 3, 1)),
		Direction:  DirectionIncome,
		CategoryID: f.groceries.ID,
		Amount:     amt("1"),
	})
	assert.ErrorIs(t, err, ErrAccountTypeMismatch)
}

func TestPost_SplitScenario(t *testing.T) {
	f := newFixture(t)
	txn, err := f.svc.Post(context.Background(), Split{
		Header: f.header(date(2025, 3, 3)),
		Total:  amt("150"),
		Lines: []split.Line{
			{CategoryID: f.groceries.ID, Amount: amt("100")},
			{CategoryID: f.clothing.ID, Amount: amt("50")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, model.KindSplit, txn.Kind)
	assertEntries(t, txn,
		posting{f.cash, "-150"},
		posting{f.groceries, "100"},
		posting{f.clothing, "50"},
	)
}

func TestPost_SplitAbsorbsRoundingCent(t *testing.T) {
	f := newFixture(t)
	txn, err := f.svc.Post(context.Background(), Split{
		Header: f.header(date(2025, 3, 3)),
		Total:  amt("100"),
		Lines: []split.Line{
			{CategoryID: f.groceries.ID, Amount: amt("33.33")},
			{CategoryID: f.clothing.ID, Amount: amt("33.33")},
			{CategoryID: f.dining.ID, Amount: amt("33.33")},
		},
	})
	require.NoError(t, err)
	assertEntries(t, txn,
		posting{f.cash, "-100"},
		posting{f.groceries, "33.33"},
		posting{f.clothing, "33.33"},
		posting{f.dining, "33.34"},
	)
}

func TestPost_SharedScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	txn, err := f.svc.Post(ctx, Shared{
		Header:     f.header(date(2025, 3, 4)),
		CategoryID: f.dining.ID,
		Total:      amt("200"),
		Share:      share.Config{Method: share.MethodFixed, Value: decimal.NewFromInt(80)},
	})
	require.NoError(t, err)
	require.Len(t, txn.Entries, 3)

	var party model.Party
	require.NoError(t, f.st.InTx(ctx, func(tx store.Tx) error {
		var err error
		party, err = tx.GetParty(ctx, f.party.ID)
		return err
	}))
	require.NotEmpty(t, party.ReimbursableAccountID)
	reimb := model.Account{ID: party.ReimbursableAccountID}

	assertEntries(t, txn, posting{f.cash, "-200"}, posting{f.dining, "80"}, posting{reimb, "120"})
	assert.True(t, txn.Entries[1].Reportable)
	assert.False(t, txn.Entries[2].Reportable, "reimbursable leg is excluded from spending")

	// Second shared expense reuses the designated account.
	txn2, err := f.svc.Post(ctx, Shared{
		Header:     f.header(date(2025, 3, 5)),
		CategoryID: f.dining.ID,
		Total:      amt("100"),
		Share:      share.Config{Method: share.MethodEqual, Value: decimal.NewFromInt(3)},
	})
	require.NoError(t, err)
	assertEntries(t, txn2, posting{f.cash, "-100"}, posting{f.dining, "33.33"}, posting{reimb, "66.67"})
	assert.Equal(t, amt("186.67"), f.balance(t, reimb))
}

func TestPost_SharedFullyPersonalSkipsReimbursableLeg(t *testing.T) {
	f := newFixture(t)
	txn, err := f.svc.Post(context.Background(), Shared{
		Header:     f.header(date(2025, 3, 4)),
		CategoryID: f.dining.ID,
		Total:      amt("20"),
		Share:      share.Config{Method: share.MethodPercentage, Value: decimal.NewFromInt(100)},
	})
	require.NoError(t, err)
	assertEntries(t, txn, posting{f.cash, "-20"}, posting{f.dining, "20"})
}

func TestPost_TransferScenario(t *testing.T) {
	f := newFixture(t)
	txn, err := f.svc.Post(context.Background(), Transfer{
		Header:        f.header(date(2025, 3, 6)),
		FromAccountID: f.checking.ID,
		ToAccountID:   f.savings.ID,
		Amount:        amt("500"),
	})
	require.NoError(t, err)
	assertEntries(t, txn, posting{f.savings, "500"}, posting{f.checking, "-500"})

	_, err = f.svc.Post(context.Background(), Transfer{
		Header:        f.header(date(2025, 3, 6)),
		FromAccountID: f.checking.ID,
		ToAccountID:   f.groceries.ID,
		Amount:        amt("500"),
	})
	assert.ErrorIs(t, err, ErrAccountTypeMismatch)
	assert.Equal(t, 1, f.count(t), "failed transfer writes nothing")
}

func TestPost_TransferToCreditCard(t *testing.T) {
	f := newFixture(t)
	txn, err := f.svc.Post(context.Background(), Transfer{
		Header:        f.header(date(2025, 3, 6)),
		FromAccountID: f.checking.ID,
		ToAccountID:   f.card.ID,
		Amount:        amt("120.50"),
	})
	require.NoError(t, err)
	assertEntries(t, txn, posting{f.card, "120.50"}, posting{f.checking, "-120.50"})
}

func TestPost_Errors(t *testing.T) {
	f := newFixture(t)
	other := newFixture(t)

	// Copy the other party's account into this store so ownership, not existence, fails.
	require.NoError(t, f.st.InTx(context.Background(), func(tx store.Tx) error {
		if err := tx.CreateParty(context.Background(), other.party); err != nil {
			return err
		}
		return tx.CreateAccount(context.Background(), other.cash)
	}))

	noDefault := model.Party{ID: id.New(), Name: "Nobody"}
	require.NoError(t, f.st.InTx(context.Background(), func(tx store.Tx) error {
		return tx.CreateParty(context.Background(), noDefault)
	}))

	h := f.header(date(2025, 3, 7))
	tests := []struct {
		name   string
		intent Intent
		want   error
	}{
		{"zero amount", Simple{Header: h, CategoryID: f.groceries.ID}, ErrZeroAmount},
		{"negative amount", Simple{Header: h, CategoryID: f.groceries.ID, Amount: amt("-1")}, money.ErrInvalidAmount},
		{"inactive category", Simple{Header: h, CategoryID: f.old.ID, Amount: amt("1")}, ErrCategoryInactive},
		{"asset as category", Simple{Header: h, CategoryID: f.savings.ID, Amount: amt("1")}, ErrAccountTypeMismatch},
		{"expense as source", Simple{Header: h, CategoryID: f.groceries.ID, AccountID: f.dining.ID, Amount: amt("1")}, ErrAccountTypeMismatch},
		{"source not owned", Simple{Header: h, CategoryID: f.groceries.ID, AccountID: other.cash.ID, Amount: amt("1")}, ErrAccountNotOwned},
		{"transfer not owned", Transfer{Header: h, FromAccountID: f.checking.ID, ToAccountID: other.cash.ID, Amount: amt("1")}, ErrAccountNotOwned},
		{"transfer same account", Transfer{Header: h, FromAccountID: f.checking.ID, ToAccountID: f.checking.ID, Amount: amt("1")}, ErrSameAccount},
		{"no default account", Simple{Header: Header{PartyID: noDefault.ID, Date: h.Date}, CategoryID: f.groceries.ID, Amount: amt("1")}, ErrNoDefaultAccount},
		{"split mismatch", Split{Header: h, Total: amt("150"), Lines: []split.Line{
			{CategoryID: f.groceries.ID, Amount: amt("100")},
			{CategoryID: f.clothing.ID, Amount: amt("40")},
		}}, split.ErrSplitMismatch},
		{"split empty", Split{Header: h, Total: amt("150")}, split.ErrEmptySplit},
		{"split unknown category", Split{Header: h, Total: amt("10"), Lines: []split.Line{{CategoryID: "nope", Amount: amt("10")}}}, split.ErrInvalidSplitCategory},
		{"share exceeds total", Shared{Header: h, CategoryID: f.dining.ID, Total: amt("10"),
			Share: share.Config{Method: share.MethodFixed, Value: decimal.NewFromInt(11)}}, share.ErrShareExceedsTotal},
		{"share bad percentage", Shared{Header: h, CategoryID: f.dining.ID, Total: amt("10"),
			Share: share.Config{Method: share.MethodPercentage, Value: decimal.NewFromInt(101)}}, share.ErrInvalidPercentage},
		{"unknown party", Simple{Header: Header{PartyID: "ghost"}, CategoryID: f.groceries.ID, Amount: amt("1")}, store.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Post(context.Background(), tt.intent)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Equal(t, 0, f.count(t), "no failed posting leaves rows behind")
	assert.Empty(t, f.events.Events())
}

func TestPost_DuplicateExternalID(t *testing.T) {
	f := newFixture(t)
	in := Simple{Header: f.header(date(2025, 3, 1)), CategoryID: f.groceries.ID, Amount: amt("9.99")}
	in.ExternalID = "bank-123"

	_, err := f.svc.Post(context.Background(), in)
	require.NoError(t, err)
	_, err = f.svc.Post(context.Background(), in)
	assert.ErrorIs(t, err, ErrDuplicateTransaction)

	var ee *model.EntityError
	assert.ErrorAs(t, err, &ee)
	assert.Equal(t, 1, f.count(t))
}

func TestPost_DefaultsDateToToday(t *testing.T) {
	f := newFixture(t)
	txn, err := f.svc.Post(context.Background(), Simple{
		Header:     Header{PartyID: f.party.ID},
		CategoryID: f.groceries.ID,
		Amount:     amt("1"),
	})
	require.NoError(t, err)
	assert.Equal(t, date(2025, 3, 15), txn.Date)
}

func TestPost_BalanceInvariantAcrossIntents(t *testing.T) {
	f := newFixture(t)
	totals := []string{"0.01", "0.03", "1.00", "99.99", "100.00", "1234.56", "999999.99"}
	for _, s := range totals {
		total := amt(s)
		intents := []Intent{
			Simple{Header: f.header(date(2025, 3, 1)), CategoryID: f.groceries.ID, Amount: total},
			Transfer{Header: f.header(date(2025, 3, 1)), FromAccountID: f.checking.ID, ToAccountID: f.savings.ID, Amount: total},
			Shared{Header: f.header(date(2025, 3, 1)), CategoryID: f.dining.ID, Total: total,
				Share: share.Config{Method: share.MethodEqual, Value: decimal.NewFromInt(3)}},
			Shared{Header: f.header(date(2025, 3, 1)), CategoryID: f.dining.ID, Total: total,
				Share: share.Config{Method: share.MethodPercentage, Value: decimal.RequireFromString("37.5")}},
		}
		if total >= 2 {
			half := total / 2
			intents = append(intents, Split{Header: f.header(date(2025, 3, 1)), Total: total, Lines: []split.Line{
				{CategoryID: f.groceries.ID, Amount: half},
				{CategoryID: f.clothing.ID, Amount: total - half},
			}})
		}
		for _, in := range intents {
			txn, err := f.svc.Post(context.Background(), in)
			require.NoError(t, err, "%T %s", in, s)
			assert.Equal(t, money.Zero, txn.Balance(), "%T %s", in, s)
			assert.Equal(t, total, txn.Total(), "%T %s", in, s)
		}
	}
}

func TestVoid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	txn, err := f.svc.Post(ctx, Simple{Header: f.header(date(2025, 3, 2)), CategoryID: f.groceries.ID, Amount: amt("10")})
	require.NoError(t, err)

	voided, err := f.svc.Void(ctx, f.party.ID, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusVoided, voided.Status)
	assert.Equal(t, money.Zero, f.balance(t, f.cash))
	assert.Equal(t, 1, f.count(t), "voided rows are kept")
	assert.Len(t, f.events.OfType(events.TransactionVoided), 1)

	_, err = f.svc.Void(ctx, f.party.ID, txn.ID)
	assert.ErrorIs(t, err, ErrTransactionVoided)

	_, err = f.svc.Void(ctx, "someone-else", txn.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestBalance_AsOf(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, d := range []time.Time{date(2025, 1, 10), date(2025, 2, 10), date(2025, 3, 10)} {
		_, err := f.svc.Post(ctx, Simple{Header: f.header(d), CategoryID: f.groceries.ID, Amount: amt("10")})
		require.NoError(t, err)
	}
	got, err := f.svc.Balance(ctx, f.party.ID, f.groceries.ID, date(2025, 2, 28))
	require.NoError(t, err)
	assert.Equal(t, amt("20"), got)

	_, err = f.svc.Balance(ctx, "someone-else", f.groceries.ID, time.Time{})
	assert.ErrorIs(t, err, ErrAccountNotOwned)
}

func TestPost_FlagsCalculatedEarlierBudget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	feb := model.Budget{ID: id.New(), PartyID: f.party.ID, Period: model.NewPeriod(2025, time.February), Active: true}
	mar := model.Budget{ID: id.New(), PartyID: f.party.ID, Period: model.NewPeriod(2025, time.March), Active: true}
	require.NoError(t, f.st.InTx(ctx, func(tx store.Tx) error {
		for _, b := range []model.Budget{feb, mar} {
			if err := tx.CreateBudget(ctx, b); err != nil {
				return err
			}
			if err := tx.UpsertCategoryBudget(ctx, model.CategoryBudget{
				BudgetID: b.ID, CategoryID: f.groceries.ID, BudgetAmount: amt("500"),
				RolloverEnabled: true, Policy: model.RolloverBoth, State: model.StateCalculated,
			}); err != nil {
				return err
			}
		}
		return nil
	}))

	needsRecalc := func(b model.Budget) bool {
		var got model.Budget
		require.NoError(t, f.st.InTx(ctx, func(tx store.Tx) error {
			var err error
			got, err = tx.GetBudget(ctx, b.ID)
			return err
		}))
		return got.RolloverNeedsRecalc
	}

	// Current month: no flag.
	_, err := f.svc.Post(ctx, Simple{Header: f.header(date(2025, 3, 1)), CategoryID: f.groceries.ID, Amount: amt("5")})
	require.NoError(t, err)
	assert.False(t, needsRecalc(mar))

	// Category without a budget row: no flag.
	_, err = f.svc.Post(ctx, Simple{Header: f.header(date(2025, 2, 1)), CategoryID: f.dining.ID, Amount: amt("5")})
	require.NoError(t, err)
	assert.False(t, needsRecalc(feb))

	txn, err := f.svc.Post(ctx, Simple{Header: f.header(date(2025, 2, 14)), CategoryID: f.groceries.ID, Amount: amt("5")})
	require.NoError(t, err)
	assert.True(t, needsRecalc(feb))

	// Voiding also flags.
	require.NoError(t, f.st.InTx(ctx, func(tx store.Tx) error { return tx.SetBudgetRecalc(ctx, feb.ID, false) }))
	_, err = f.svc.Void(ctx, f.party.ID, txn.ID)
	require.NoError(t, err)
	assert.True(t, needsRecalc(feb))
}
