package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cleared-dev/pocketledger/internal/allocation"
	"github.com/cleared-dev/pocketledger/internal/model"
	"github.com/cleared-dev/pocketledger/internal/money"
	"github.com/cleared-dev/pocketledger/internal/store"
)

func (s *Server) materialize(c *gin.Context) {
	var req struct {
		DueDate      string        `json:"due_date"`
		ActualAmount *money.Amount `json:"actual_amount"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.fail(c, badRequest("%v", err))
			return
		}
	}
	due, err := parseDate("due_date", req.DueDate)
	if err != nil {
		s.fail(c, err)
		return
	}

	ctx := c.Request.Context()
	tpl, err := s.svc.Recurring.Template(ctx, c.Param("id"))
	if err == nil && tpl.PartyID != partyID(c) {
		err = model.NewEntityError("template", tpl.ID, store.ErrNotFound)
	}
	if err != nil {
		s.fail(c, err)
		return
	}

	txn, err := s.svc.Recurring.Materialize(ctx, tpl.ID, due, req.ActualAmount)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, newTransactionResponse(txn))
}

type paycheckRequest struct {
	ID     string       `json:"id"`
	Date   string       `json:"date"`
	Amount money.Amount `json:"amount"`
	Source string       `json:"source"`
}

type expenseRequest struct {
	ID          string         `json:"id"`
	Description string         `json:"description"`
	CategoryID  string         `json:"category_id"`
	Amount      money.Amount   `json:"amount"`
	DueDate     string         `json:"due_date"`
	Priority    model.Priority `json:"priority"`
}

type allocationRequest struct {
	Period           string            `json:"period"`
	Paychecks        []paycheckRequest `json:"paychecks"`
	Expenses         []expenseRequest  `json:"expenses"`
	ProjectRecurring bool              `json:"project_recurring"`
	ProjectIncome    bool              `json:"project_income"`
}

func (r allocationRequest) request(partyID string) (allocation.Request, error) {
	period, err := parsePeriod("period", r.Period)
	if err != nil {
		return allocation.Request{}, err
	}
	if period.IsZero() && (r.ProjectRecurring || r.ProjectIncome) {
		return allocation.Request{}, badRequest("period is required to project recurring templates")
	}

	out := allocation.Request{
		PartyID:          partyID,
		Period:           period,
		ProjectRecurring: r.ProjectRecurring,
		ProjectIncome:    r.ProjectIncome,
	}
	for i, p := range r.Paychecks {
		d, err := parseDate("paychecks.date", p.Date)
		if err != nil {
			return allocation.Request{}, err
		}
		if p.Amount.IsNegative() {
			return allocation.Request{}, badRequest("paycheck %d amount is negative", i+1)
		}
		out.Paychecks = append(out.Paychecks, allocation.Paycheck{ID: p.ID, Date: d, Amount: p.Amount, Source: p.Source})
	}
	for i, e := range r.Expenses {
		d, err := parseDate("expenses.due_date", e.DueDate)
		if err != nil {
			return allocation.Request{}, err
		}
		if e.Amount.IsNegative() {
			return allocation.Request{}, badRequest("expense %d amount is negative", i+1)
		}
		out.Expenses = append(out.Expenses, allocation.Expense{
			ID:          e.ID,
			Description: e.Description,
			CategoryID:  e.CategoryID,
			Amount:      e.Amount,
			DueDate:     d,
			Priority:    e.Priority,
		})
	}
	return out, nil
}

func (s *Server) allocate(c *gin.Context) {
	var req allocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest("%v", err))
		return
	}
	areq, err := req.request(partyID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	res, err := s.svc.Planner.PlanPeriod(c.Request.Context(), areq)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
