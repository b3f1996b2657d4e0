// Package allocation assigns a month's upcoming expenses to the paychecks
// expected to cover them.
package allocation

import (
	"cmp"
	"slices"
	"time"

	"github.com/cleared-dev/pocketledger/internal/model"
	"github.com/cleared-dev/pocketledger/internal/money"
)

// UnfundedID names the placeholder bucket used when there are no paychecks.
const UnfundedID = "unfunded"

// Paycheck is expected income on a date.
type Paycheck struct {
	ID     string       `json:"id"`
	Date   time.Time    `json:"date"`
	Amount money.Amount `json:"amount"`
	Source string       `json:"source"`
}

// Expense is a known or projected outflow due on a date.
type Expense struct {
	ID          string         `json:"id"`
	Description string         `json:"description"`
	CategoryID  string         `json:"category_id,omitempty"`
	Amount      money.Amount   `json:"amount"`
	DueDate     time.Time      `json:"due_date"`
	Priority    model.Priority `json:"priority"`
	TemplateID  string         `json:"template_id,omitempty"`
}

// Assignment places one expense on a paycheck. Shortfall is set when no
// paycheck dated on or before the due date had room for it.
type Assignment struct {
	Expense   Expense `json:"expense"`
	Shortfall bool    `json:"shortfall"`
}

// Bucket is a paycheck with the expenses it funds.
type Bucket struct {
	Paycheck      Paycheck     `json:"paycheck"`
	Assignments   []Assignment `json:"expenses"`
	Allocated     money.Amount `json:"total_allocation_amount"`
	Remaining     money.Amount `json:"remaining_amount"`
	OverAllocated bool         `json:"over_allocated"`
	Unfunded      bool         `json:"unfunded,omitempty"`
}

// Result is a complete allocation: every input expense appears exactly once.
type Result struct {
	Buckets       []Bucket     `json:"paychecks"`
	TotalIncome   money.Amount `json:"total_income"`
	TotalExpenses money.Amount `json:"total_expenses"`
	Surplus       money.Amount `json:"surplus"`
}

// Plan assigns each expense to the earliest paycheck dated on or before its
// due date that still has room for it. Expenses are placed in descending
// priority, then ascending due date. An expense no paycheck can cover goes
// on the last paycheck, which may then go negative. Plan never fails.
func Plan(paychecks []Paycheck, expenses []Expense) Result {
	pays := slices.Clone(paychecks)
	slices.SortStableFunc(pays, func(a, b Paycheck) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	exps := slices.Clone(expenses)
	slices.SortStableFunc(exps, func(a, b Expense) int {
		if c := cmp.Compare(b.Priority.Rank(), a.Priority.Rank()); c != 0 {
			return c
		}
		return a.DueDate.Compare(b.DueDate)
	})

	var res Result
	if len(pays) == 0 {
		pays = []Paycheck{{ID: UnfundedID, Source: UnfundedID}}
	}
	res.Buckets = make([]Bucket, len(pays))
	for i, p := range pays {
		res.Buckets[i] = Bucket{Paycheck: p, Remaining: p.Amount, Unfunded: len(paychecks) == 0}
		res.TotalIncome += p.Amount
	}

	for _, e := range exps {
		i, ok := pick(res.Buckets, e)
		b := &res.Buckets[i]
		b.Assignments = append(b.Assignments, Assignment{Expense: e, Shortfall: !ok})
		b.Allocated += e.Amount
		b.Remaining -= e.Amount
		res.TotalExpenses += e.Amount
	}

	for i := range res.Buckets {
		b := &res.Buckets[i]
		b.OverAllocated = b.Remaining.IsNegative() || (b.Unfunded && len(b.Assignments) > 0)
	}
	res.Surplus = res.TotalIncome - res.TotalExpenses
	return res
}

// pick returns the bucket for e and whether it genuinely covers it.
func pick(buckets []Bucket, e Expense) (int, bool) {
	for i, b := range buckets {
		if b.Unfunded || b.Paycheck.Date.After(e.DueDate) {
			break
		}
		if b.Remaining >= e.Amount {
			return i, true
		}
	}
	return len(buckets) - 1, false
}
