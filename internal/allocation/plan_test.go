package allocation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/pocketledger/internal/model"
	"github.com/cleared-dev/pocketledger/internal/money"
	"github.com/cleared-dev/pocketledger/internal/recurring"
)

func date(m, d int) time.Time { return time.Date(2025, time.Month(m), d, 0, 0, 0, 0, time.UTC) }

func amt(s string) money.Amount { return money.MustParse(s) }

func expense(id, amount string, due time.Time, p model.Priority) Expense {
	return Expense{ID: id, Description: id, Amount: amt(amount), DueDate: due, Priority: p}
}

func ids(b Bucket) []string {
	var out []string
	for _, a := range b.Assignments {
		out = append(out, a.Expense.ID)
	}
	return out
}

func TestPlan_EarliestCoveringPaycheck(t *testing.T) {
	paychecks := []Paycheck{
		{ID: "p2", Date: date(3, 15), Amount: amt("2000"), Source: "Acme"},
		{ID: "p1", Date: date(3, 1), Amount: amt("2000"), Source: "Acme"},
	}
	expenses := []Expense{
		expense("phone", "150", date(3, 20), model.PriorityLow),
		expense("groceries", "600", date(3, 20), model.PriorityMedium),
		expense("car", "400", date(3, 10), model.PriorityMedium),
		expense("rent", "1500", date(3, 1), model.PriorityHigh),
	}

	res := Plan(paychecks, expenses)
	require.Len(t, res.Buckets, 2)

	first, second := res.Buckets[0], res.Buckets[1]
	assert.Equal(t, "p1", first.Paycheck.ID)
	assert.Equal(t, []string{"rent", "car"}, ids(first))
	assert.Equal(t, amt("1900"), first.Allocated)
	assert.Equal(t, amt("100"), first.Remaining)
	assert.False(t, first.OverAllocated)

	assert.Equal(t, "p2", second.Paycheck.ID)
	assert.Equal(t, []string{"groceries", "phone"}, ids(second))
	assert.Equal(t, amt("1250"), second.Remaining)

	assert.Equal(t, amt("4000"), res.TotalIncome)
	assert.Equal(t, amt("2650"), res.TotalExpenses)
	assert.Equal(t, amt("1350"), res.Surplus)
}

func TestPlan_PriorityBeatsDueDate(t *testing.T) {
	paychecks := []Paycheck{{ID: "p1", Date: date(3, 1), Amount: amt("1000")}}
	expenses := []Expense{
		expense("streaming", "600", date(3, 2), model.PriorityLow),
		expense("insurance", "600", date(3, 28), model.PriorityCritical),
	}
	res := Plan(paychecks, expenses)
	b := res.Buckets[0]
	require.Len(t, b.Assignments, 2)
	assert.Equal(t, "insurance", b.Assignments[0].Expense.ID)
	assert.False(t, b.Assignments[0].Shortfall)
	assert.Equal(t, "streaming", b.Assignments[1].Expense.ID)
	assert.True(t, b.Assignments[1].Shortfall)
	assert.Equal(t, amt("-200"), b.Remaining)
	assert.True(t, b.OverAllocated)
}

func TestPlan_ShortfallGoesToLastPaycheck(t *testing.T) {
	paychecks := []Paycheck{
		{ID: "p1", Date: date(3, 5), Amount: amt("1000")},
		{ID: "p2", Date: date(3, 19), Amount: amt("300")},
	}
	expenses := []Expense{
		expense("early", "800", date(3, 1), model.PriorityHigh),
		expense("big", "5000", date(3, 25), model.PriorityMedium),
	}
	res := Plan(paychecks, expenses)

	assert.Empty(t, res.Buckets[0].Assignments, "no paycheck is dated on or before march 1")
	last := res.Buckets[1]
	assert.Equal(t, []string{"early", "big"}, ids(last))
	assert.True(t, last.Assignments[0].Shortfall)
	assert.True(t, last.Assignments[1].Shortfall)
	assert.Equal(t, amt("-5500"), last.Remaining)
	assert.True(t, last.OverAllocated)
	assert.Equal(t, amt("-4500"), res.Surplus)
}

func TestPlan_NoPaychecks(t *testing.T) {
	res := Plan(nil, []Expense{
		expense("rent", "1200", date(3, 1), model.PriorityHigh),
		expense("gym", "30", date(3, 3), model.PriorityLow),
	})
	require.Len(t, res.Buckets, 1)
	b := res.Buckets[0]
	assert.True(t, b.Unfunded)
	assert.Equal(t, UnfundedID, b.Paycheck.ID)
	assert.Equal(t, money.Zero, b.Paycheck.Amount)
	assert.Equal(t, []string{"rent", "gym"}, ids(b))
	assert.Equal(t, amt("-1230"), b.Remaining)
	assert.True(t, b.OverAllocated)

	empty := Plan(nil, nil)
	require.Len(t, empty.Buckets, 1)
	assert.True(t, empty.Buckets[0].Unfunded)
	assert.False(t, empty.Buckets[0].OverAllocated)
}

func TestPlan_StableForEqualKeys(t *testing.T) {
	paychecks := []Paycheck{{ID: "p1", Date: date(3, 1), Amount: amt("100")}}
	var expenses []Expense
	for _, id := range []string{"c", "a", "b"} {
		expenses = append(expenses, expense(id, "10", date(3, 5), model.PriorityMedium))
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids(Plan(paychecks, expenses).Buckets[0]))
}

func TestPlan_Completeness(t *testing.T) {
	priorities := []model.Priority{model.PriorityCritical, model.PriorityHigh, model.PriorityMedium, model.PriorityLow, ""}
	amounts := []string{"0", "0.01", "-5", "999999.99", "12.34", "250"}
	for n := 0; n < 40; n++ {
		var paychecks []Paycheck
		for i := 0; i < n%4; i++ {
			paychecks = append(paychecks, Paycheck{ID: fmt.Sprint("p", i), Date: date(3, 1+i*9), Amount: amt(amounts[(n+i)%len(amounts)])})
		}
		var expenses []Expense
		for i := 0; i < n; i++ {
			expenses = append(expenses, expense(fmt.Sprint("e", i), amounts[(n*i)%len(amounts)], date(3, 1+(i*7)%28), priorities[i%len(priorities)]))
		}

		res := Plan(paychecks, expenses)
		seen := map[string]int{}
		var allocated money.Amount
		for _, b := range res.Buckets {
			for _, a := range b.Assignments {
				seen[a.Expense.ID]++
			}
			allocated += b.Allocated
			assert.Equal(t, b.Paycheck.Amount-b.Allocated, b.Remaining)
		}
		require.Len(t, seen, len(expenses), "round %d", n)
		for id, c := range seen {
			assert.Equal(t, 1, c, "expense %s placed once", id)
		}
		assert.Equal(t, res.TotalExpenses, allocated)
	}
}

type fakeProjector struct {
	occ []recurring.Occurrence
	err error
}

func (f fakeProjector) Project(context.Context, string, model.Period) ([]recurring.Occurrence, error) {
	return f.occ, f.err
}

func TestPlanPeriod_ProjectsTemplates(t *testing.T) {
	proj := fakeProjector{occ: []recurring.Occurrence{
		{TemplateID: "pay", Description: "Salary", Direction: model.DirectionIncome, Due: date(3, 1), Date: date(3, 3), Amount: amt("3000")},
		{TemplateID: "rent", Description: "Rent", Direction: model.DirectionExpense, Due: date(3, 5), Date: date(3, 5), Amount: amt("1400"), Priority: model.PriorityCritical},
	}}
	p := NewPlanner(proj, nil)

	res, err := p.PlanPeriod(context.Background(), Request{
		PartyID:          "party",
		Period:           model.NewPeriod(2025, time.March),
		Expenses:         []Expense{expense("vet", "200", date(3, 20), model.PriorityHigh)},
		ProjectRecurring: true,
		ProjectIncome:    true,
	})
	require.NoError(t, err)
	require.Len(t, res.Buckets, 1)
	b := res.Buckets[0]
	assert.Equal(t, "pay@2025-03-01", b.Paycheck.ID)
	assert.Equal(t, "Salary", b.Paycheck.Source)
	assert.Equal(t, []string{"rent@2025-03-05", "vet"}, ids(b))
	assert.Equal(t, "rent", b.Assignments[0].Expense.TemplateID)
	assert.Equal(t, amt("1400"), b.Remaining)

	noIncome, err := p.PlanPeriod(context.Background(), Request{Period: model.NewPeriod(2025, time.March), ProjectRecurring: true})
	require.NoError(t, err)
	assert.True(t, noIncome.Buckets[0].Unfunded)
	assert.Equal(t, []string{"rent@2025-03-05"}, ids(noIncome.Buckets[0]))
}

func TestPlanPeriod_ProjectionError(t *testing.T) {
	boom := errors.New("boom")
	p := NewPlanner(fakeProjector{err: boom}, nil)
	_, err := p.PlanPeriod(context.Background(), Request{Period: model.NewPeriod(2025, time.March), ProjectRecurring: true})
	require.ErrorIs(t, err, boom)

	res, err := p.PlanPeriod(context.Background(), Request{Expenses: []Expense{expense("x", "1", date(3, 1), "")}})
	require.NoError(t, err, "no projection requested")
	assert.Len(t, res.Buckets[0].Assignments, 1)
}
