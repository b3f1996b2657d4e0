package allocation

import (
	"context"
	"fmt"

	"github.com/cleared-dev/pocketledger/internal/log"
	"github.com/cleared-dev/pocketledger/internal/model"
	"github.com/cleared-dev/pocketledger/internal/recurring"
)

// Projector lists a party's recurring occurrences in a period.
type Projector interface {
	Project(ctx context.Context, partyID string, period model.Period) ([]recurring.Occurrence, error)
}

// Request asks for a period's allocation.
type Request struct {
	PartyID   string
	Period    model.Period
	Paychecks []Paycheck
	Expenses  []Expense
	// ProjectRecurring adds expense templates' occurrences to Expenses.
	ProjectRecurring bool
	// ProjectIncome adds income templates' occurrences to Paychecks.
	ProjectIncome bool
}

// Planner builds allocations, optionally from recurring templates.
type Planner struct {
	projector Projector
	logger    *log.Logger
}

func NewPlanner(projector Projector, logger *log.Logger) *Planner {
	if logger == nil {
		logger = log.Nop()
	}
	return &Planner{projector: projector, logger: logger.WithComponent(log.ComponentAllocation)}
}

// PlanPeriod merges projected occurrences into the request and plans it.
// Only projection can fail; planning itself never does.
func (p *Planner) PlanPeriod(ctx context.Context, req Request) (Result, error) {
	paychecks := req.Paychecks
	expenses := req.Expenses

	if (req.ProjectRecurring || req.ProjectIncome) && p.projector != nil {
		occ, err := p.projector.Project(ctx, req.PartyID, req.Period)
		if err != nil {
			return Result{}, fmt.Errorf("project recurring for %s: %w", req.Period, err)
		}
		for _, o := range occ {
			key := o.TemplateID + "@" + o.Due.Format("2006-01-02")
			switch {
			case o.Direction == model.DirectionIncome && req.ProjectIncome:
				paychecks = append(paychecks, Paycheck{ID: key, Date: o.Date, Amount: o.Amount, Source: o.Description})
			case o.Direction != model.DirectionIncome && req.ProjectRecurring:
				expenses = append(expenses, Expense{
					ID:          key,
					Description: o.Description,
					CategoryID:  o.CategoryID,
					Amount:      o.Amount,
					DueDate:     o.Date,
					Priority:    o.Priority,
					TemplateID:  o.TemplateID,
				})
			}
		}
	}

	res := Plan(paychecks, expenses)
	p.logger.DebugContext(ctx, "allocation planned",
		log.FieldParty, req.PartyID,
		log.FieldPeriod, req.Period.String(),
		"paychecks", len(paychecks),
		"expenses", len(expenses),
		"surplus", res.Surplus.String())
	return res, nil
}
