package recurring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/pocketledger/internal/events"
	"github.com/cleared-dev/pocketledger/internal/id"
	"github.com/cleared-dev/pocketledger/internal/journal"
	"github.com/cleared-dev/pocketledger/internal/model"
	"github.com/cleared-dev/pocketledger/internal/store"
	"github.com/cleared-dev/pocketledger/internal/store/memory"
)

var now = time.Date(2025, 3, 20, 8, 0, 0, 0, time.UTC)

type fixture struct {
	svc    *Service
	st     *memory.Store
	events *events.Recorder
	party  model.Party

	cash, rent, utilities, gym, salary model.Account
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{st: memory.New(), events: &events.Recorder{}}
	f.party = model.Party{ID: id.New(), Type: model.PartyTypeUser, Name: "Robin", CreatedAt: now}
	mk := func(name string, typ model.AccountType) model.Account {
		return model.Account{ID: id.New(), PartyID: f.party.ID, Name: name, Type: typ, Active: true, CreatedAt: now}
	}
	f.cash = mk("Cash", model.AccountTypeAsset)
	f.rent = mk("Housing", model.AccountTypeExpense)
	f.utilities = mk("Utilities", model.AccountTypeExpense)
	f.gym = mk("Gym", model.AccountTypeExpense)
	f.salary = mk("Salary", model.AccountTypeIncome)
	f.party.DefaultAccountID = f.cash.ID

	require.NoError(t, f.st.InTx(ctx, func(tx store.Tx) error {
		if err := tx.CreateParty(ctx, f.party); err != nil {
			return err
		}
		for _, a := range []model.Account{f.cash, f.rent, f.utilities, f.gym, f.salary} {
			if err := tx.CreateAccount(ctx, a); err != nil {
				return err
			}
		}
		return nil
	}))

	clock := func() time.Time { return now }
	j := journal.NewService(f.st, f.events, nil)
	j.SetClock(clock)
	f.svc = NewService(f.st, j, f.events, nil)
	f.svc.SetClock(clock)
	return f
}

func (f *fixture) template(t *testing.T, mutate func(*model.RecurringTemplate)) model.RecurringTemplate {
	t.Helper()
	tpl := model.RecurringTemplate{
		PartyID:     f.party.ID,
		Description: "Rent",
		Direction:   model.DirectionExpense,
		CategoryID:  f.rent.ID,
		Amount:      amt("1200"),
		Frequency:   model.FrequencyMonthly,
		Flexibility: model.FlexExact,
		StartDate:   date(2025, 3, 1),
	}
	if mutate != nil {
		mutate(&tpl)
	}
	created, err := f.svc.CreateTemplate(context.Background(), tpl)
	require.NoError(t, err)
	return created
}

func (f *fixture) get(t *testing.T, templateID string) model.RecurringTemplate {
	t.Helper()
	var tpl model.RecurringTemplate
	require.NoError(t, f.st.InTx(context.Background(), func(tx store.Tx) error {
		var err error
		tpl, err = tx.GetTemplate(context.Background(), templateID)
		return err
	}))
	return tpl
}

func (f *fixture) transactions(t *testing.T) []model.Transaction {
	t.Helper()
	var txns []model.Transaction
	require.NoError(t, f.st.InTx(context.Background(), func(tx store.Tx) error {
		var err error
		txns, err = tx.ListTransactions(context.Background(), f.party.ID, time.Time{}, time.Time{})
		return err
	}))
	return txns
}

func TestMaterialize(t *testing.T) {
	f := newFixture(t)
	tpl := f.template(t, nil)

	txn, err := f.svc.Materialize(context.Background(), tpl.ID, time.Time{}, nil)
	require.NoError(t, err)
	assert.Equal(t, date(2025, 3, 1), txn.Date)
	assert.Equal(t, tpl.ID, txn.RecurringTemplateID)
	assert.Equal(t, "Rent", txn.Description)
	require.Len(t, txn.Entries, 2)
	assert.Equal(t, f.cash.ID, txn.Entries[0].AccountID)
	assert.Equal(t, amt("-1200"), txn.Entries[0].Amount)
	assert.Equal(t, f.rent.ID, txn.Entries[1].AccountID)
	assert.Equal(t, amt("1200"), txn.Entries[1].Amount)

	after := f.get(t, tpl.ID)
	assert.Equal(t, date(2025, 4, 1), after.NextDueDate)
	assert.Equal(t, date(2025, 3, 1), after.LastRunDate)
	assert.True(t, after.Active)

	assert.Len(t, f.events.OfType(events.TransactionPosted), 1)
	mat := f.events.OfType(events.RecurringMaterialized)
	require.Len(t, mat, 1)
	assert.Equal(t, tpl.ID, mat[0].SubjectID)
	assert.Equal(t, txn.ID, mat[0].Data["transaction_id"])
	assert.Equal(t, "2025-04-01", mat[0].Data["next_due_date"])
}

func TestMaterialize_SameOccurrenceTwice(t *testing.T) {
	f := newFixture(t)
	tpl := f.template(t, nil)
	ctx := context.Background()

	_, err := f.svc.Materialize(ctx, tpl.ID, date(2025, 3, 1), nil)
	require.NoError(t, err)
	_, err = f.svc.Materialize(ctx, tpl.ID, date(2025, 3, 1), nil)
	require.ErrorIs(t, err, journal.ErrDuplicateTransaction)

	assert.Len(t, f.transactions(t), 1)
	assert.Equal(t, date(2025, 4, 1), f.get(t, tpl.ID).NextDueDate)
}

func TestMaterialize_FlexibleVariableIncome(t *testing.T) {
	f := newFixture(t)
	tpl := f.template(t, func(tpl *model.RecurringTemplate) {
		tpl.Description = "Paycheck"
		tpl.Direction = model.DirectionIncome
		tpl.CategoryID = f.salary.ID
		tpl.Amount = 0
		tpl.IsVariable = true
		tpl.EstimatedMin = amt("2000")
		tpl.EstimatedMax = amt("2400")
		tpl.Flexibility = model.FlexWeekday
		tpl.StartDate = date(2025, 3, 1)
	})

	txn, err := f.svc.Materialize(context.Background(), tpl.ID, time.Time{}, nil)
	require.NoError(t, err)
	assert.Equal(t, date(2025, 3, 3), txn.Date, "saturday rolls to monday")
	require.Len(t, txn.Entries, 2)
	assert.Equal(t, f.cash.ID, txn.Entries[0].AccountID)
	assert.Equal(t, amt("2200"), txn.Entries[0].Amount)
	assert.Equal(t, f.salary.ID, txn.Entries[1].AccountID)

	// The schedule advances from the due date, not the shifted posting date.
	assert.Equal(t, date(2025, 4, 1), f.get(t, tpl.ID).NextDueDate)
}

func TestMaterialize_ActualAmount(t *testing.T) {
	f := newFixture(t)
	tpl := f.template(t, func(tpl *model.RecurringTemplate) {
		tpl.CategoryID = f.utilities.ID
		tpl.Amount = 0
		tpl.IsVariable = true
		tpl.EstimatedMin = amt("80")
		tpl.EstimatedMax = amt("120")
	})
	actual := amt("93.47")
	txn, err := f.svc.Materialize(context.Background(), tpl.ID, time.Time{}, &actual)
	require.NoError(t, err)
	assert.Equal(t, actual, txn.Total())
}

func TestMaterialize_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Materialize(ctx, id.New(), time.Time{}, nil)
	require.ErrorIs(t, err, store.ErrNotFound)

	inactive := f.template(t, nil)
	require.NoError(t, f.svc.Deactivate(ctx, inactive.ID))
	_, err = f.svc.Materialize(ctx, inactive.ID, time.Time{}, nil)
	require.ErrorIs(t, err, ErrTemplateInactive)
	var ee *model.EntityError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, inactive.ID, ee.ID)

	seasonal := f.template(t, func(tpl *model.RecurringTemplate) { tpl.Flexibility = model.FlexSeasonal })
	_, err = f.svc.Materialize(ctx, seasonal.ID, time.Time{}, nil)
	require.ErrorIs(t, err, ErrUnresolvedSeason)

	assert.Empty(t, f.transactions(t))
	assert.Equal(t, date(2025, 3, 1), f.get(t, seasonal.ID).NextDueDate)
}

func TestMaterialize_SeasonResolver(t *testing.T) {
	f := newFixture(t)
	f.svc.SetSeasonResolver(func(tpl model.RecurringTemplate, due time.Time) (int, int, bool) {
		if due.Month() < time.March || due.Month() > time.May {
			return 0, 0, false
		}
		return 10, 12, true
	})
	tpl := f.template(t, func(tpl *model.RecurringTemplate) {
		tpl.CategoryID = f.gym.ID
		tpl.Amount = amt("30")
		tpl.Flexibility = model.FlexSeasonal
		tpl.Preference = model.PreferLatest
	})

	txn, err := f.svc.Materialize(context.Background(), tpl.ID, time.Time{}, nil)
	require.NoError(t, err)
	assert.Equal(t, date(2025, 3, 12), txn.Date)

	_, err = f.svc.Materialize(context.Background(), tpl.ID, date(2025, 7, 1), nil)
	require.ErrorIs(t, err, ErrUnresolvedSeason)
}

func TestMaterialize_EndDateDeactivates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tpl := f.template(t, func(tpl *model.RecurringTemplate) {
		tpl.CategoryID = f.gym.ID
		tpl.Amount = amt("15")
		tpl.Frequency = model.FrequencyWeekly
		tpl.StartDate = date(2025, 3, 3)
		tpl.EndDate = date(2025, 3, 10)
	})

	_, err := f.svc.Materialize(ctx, tpl.ID, time.Time{}, nil)
	require.NoError(t, err)
	assert.True(t, f.get(t, tpl.ID).Active)

	_, err = f.svc.Materialize(ctx, tpl.ID, time.Time{}, nil)
	require.NoError(t, err)
	after := f.get(t, tpl.ID)
	assert.False(t, after.Active)
	assert.Equal(t, date(2025, 3, 17), after.NextDueDate)

	_, err = f.svc.Materialize(ctx, tpl.ID, time.Time{}, nil)
	require.ErrorIs(t, err, ErrTemplateInactive)
}

func TestProcessDue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rent := f.template(t, func(tpl *model.RecurringTemplate) { tpl.StartDate = date(2025, 1, 1) })
	future := f.template(t, func(tpl *model.RecurringTemplate) {
		tpl.CategoryID = f.utilities.ID
		tpl.StartDate = date(2025, 3, 25)
	})
	broken := f.template(t, func(tpl *model.RecurringTemplate) {
		tpl.CategoryID = f.gym.ID
		tpl.StartDate = date(2025, 3, 10)
	})
	gym := f.gym
	gym.Active = false
	require.NoError(t, f.st.InTx(ctx, func(tx store.Tx) error { return tx.UpdateAccount(ctx, gym) }))

	res, err := f.svc.ProcessDue(ctx, now)
	require.NoError(t, err)

	require.Len(t, res.Posted, 3, "january through march rent")
	for i, want := range []time.Time{date(2025, 1, 1), date(2025, 2, 1), date(2025, 3, 1)} {
		assert.Equal(t, want, res.Posted[i].Date)
		assert.Equal(t, rent.ID, res.Posted[i].RecurringTemplateID)
	}
	assert.Equal(t, date(2025, 4, 1), f.get(t, rent.ID).NextDueDate)

	require.Contains(t, res.Failed, broken.ID)
	assert.ErrorIs(t, res.Failed[broken.ID], journal.ErrCategoryInactive)
	assert.NotContains(t, res.Failed, future.ID)
	assert.Equal(t, date(2025, 3, 25), f.get(t, future.ID).NextDueDate)

	again, err := f.svc.ProcessDue(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, again.Posted)
}

func TestProject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rent := f.template(t, func(tpl *model.RecurringTemplate) {
		tpl.Priority = model.PriorityCritical
		tpl.StartDate = date(2025, 3, 1)
	})
	gym := f.template(t, func(tpl *model.RecurringTemplate) {
		tpl.CategoryID = f.gym.ID
		tpl.Amount = amt("15")
		tpl.Frequency = model.FrequencyBiweekly
		tpl.StartDate = date(2025, 3, 5)
	})
	f.template(t, func(tpl *model.RecurringTemplate) {
		tpl.CategoryID = f.utilities.ID
		tpl.Flexibility = model.FlexSeasonal
	})

	occ, err := f.svc.Project(ctx, f.party.ID, model.NewPeriod(2025, time.March))
	require.NoError(t, err)
	require.Len(t, occ, 3)
	assert.Equal(t, rent.ID, occ[0].TemplateID)
	assert.Equal(t, model.PriorityCritical, occ[0].Priority)
	assert.Equal(t, amt("1200"), occ[0].Amount)
	assert.Equal(t, gym.ID, occ[1].TemplateID)
	assert.Equal(t, date(2025, 3, 5), occ[1].Date)
	assert.Equal(t, date(2025, 3, 19), occ[2].Date)
	assert.Equal(t, model.PriorityMedium, occ[2].Priority)
}

func TestCreateTemplate_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := model.RecurringTemplate{
		PartyID:     f.party.ID,
		Description: "Rent",
		CategoryID:  f.rent.ID,
		Amount:      amt("1200"),
		Frequency:   model.FrequencyMonthly,
		StartDate:   date(2025, 3, 1),
	}

	income := base
	income.Direction = model.DirectionIncome
	_, err := f.svc.CreateTemplate(ctx, income)
	require.ErrorIs(t, err, journal.ErrAccountTypeMismatch)

	unknown := base
	unknown.CategoryID = id.New()
	_, err = f.svc.CreateTemplate(ctx, unknown)
	require.ErrorIs(t, err, store.ErrNotFound)

	noParty := base
	noParty.PartyID = id.New()
	_, err = f.svc.CreateTemplate(ctx, noParty)
	require.ErrorIs(t, err, store.ErrNotFound)

	created, err := f.svc.CreateTemplate(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, model.DirectionExpense, created.Direction)
	assert.Equal(t, model.PriorityMedium, created.Priority)
	assert.Equal(t, date(2025, 3, 1), created.NextDueDate)
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := newFixture(t)
	f.template(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, f.svc.Run(ctx, time.Minute))
	assert.Empty(t, f.transactions(t), "cancelled before the first run posted")
}
