package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/pocketledger/internal/model"
	"github.com/cleared-dev/pocketledger/internal/money"
	"github.com/cleared-dev/pocketledger/internal/rollover"
)

type calculationResponse struct {
	ID               string          `json:"id"`
	BudgetID         string          `json:"budget_id"`
	CategoryID       string          `json:"category_id"`
	Period           model.Period    `json:"period"`
	BaseBudget       money.Amount    `json:"base_budget"`
	PreviousRollover money.Amount    `json:"previous_rollover"`
	EffectiveBudget  money.Amount    `json:"effective_budget"`
	SpentAmount      money.Amount    `json:"spent_amount"`
	RawRollover      money.Amount    `json:"raw_rollover"`
	RolloverAmount   money.Amount    `json:"rollover_amount"`
	Policy           string          `json:"policy"`
	Origin           *model.Period   `json:"origin,omitempty"`
	Status           rollover.Status `json:"status"`
	Reason           string          `json:"reason"`
	CreatedAt        time.Time       `json:"created_at"`
}

func (s *Server) calculation(c model.RolloverCalculation) calculationResponse {
	out := calculationResponse{
		ID:               c.ID,
		BudgetID:         c.BudgetID,
		CategoryID:       c.CategoryID,
		Period:           c.Period,
		BaseBudget:       c.BaseBudget,
		PreviousRollover: c.PreviousRollover,
		EffectiveBudget:  c.EffectiveBudget,
		SpentAmount:      c.SpentAmount,
		RawRollover:      c.RawRollover,
		RolloverAmount:   c.RolloverAmount,
		Policy:           string(c.Policy),
		Status:           rollover.StatusOf(c, s.threshold),
		Reason:           c.Reason,
		CreatedAt:        c.CreatedAt,
	}
	if !c.Origin.IsZero() {
		origin := c.Origin
		out.Origin = &origin
	}
	return out
}

func (s *Server) calculations(calcs []model.RolloverCalculation) []calculationResponse {
	out := make([]calculationResponse, len(calcs))
	for i, c := range calcs {
		out[i] = s.calculation(c)
	}
	return out
}

type categoryBudgetResponse struct {
	BudgetID             string          `json:"budget_id"`
	CategoryID           string          `json:"category_id"`
	BudgetAmount         money.Amount    `json:"budget_amount"`
	RolloverEnabled      bool            `json:"rollover_enabled"`
	Policy               string          `json:"rollover_policy"`
	RolloverPercentage   decimal.Decimal `json:"rollover_percentage"`
	MaxRolloverAmount    money.Amount    `json:"max_rollover_amount"`
	RolloverExpiryMonths int             `json:"rollover_expiry_months"`
	RolloverAmount       money.Amount    `json:"rollover_amount"`
	State                string          `json:"rollover_state"`
}

func newCategoryBudgetResponse(cb model.CategoryBudget) categoryBudgetResponse {
	return categoryBudgetResponse{
		BudgetID:             cb.BudgetID,
		CategoryID:           cb.CategoryID,
		BudgetAmount:         cb.BudgetAmount,
		RolloverEnabled:      cb.RolloverEnabled,
		Policy:               string(cb.Policy),
		RolloverPercentage:   cb.RolloverPercentage,
		MaxRolloverAmount:    cb.MaxRolloverAmount,
		RolloverExpiryMonths: cb.RolloverExpiryMonths,
		RolloverAmount:       cb.RolloverAmount,
		State:                string(cb.State),
	}
}

// ownBudget loads the path's budget and hides budgets of other parties.
func (s *Server) ownBudget(c *gin.Context) (model.Budget, bool) {
	b, err := s.svc.Rollover.Budget(c.Request.Context(), c.Param("budget_id"))
	if err == nil && b.PartyID != partyID(c) {
		err = model.NewEntityError("budget", b.ID, rollover.ErrBudgetNotFound)
	}
	if err != nil {
		s.fail(c, err)
		return model.Budget{}, false
	}
	return b, true
}

func (s *Server) ensureBudget(c *gin.Context) {
	var req struct {
		Period string `json:"period" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest("%v", err))
		return
	}
	period, err := parsePeriod("period", req.Period)
	if err != nil {
		s.fail(c, err)
		return
	}
	b, err := s.svc.Rollover.EnsureBudget(c.Request.Context(), partyID(c), period)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":                    b.ID,
		"period":                b.Period,
		"rollover_needs_recalc": b.RolloverNeedsRecalc,
	})
}

type categoryBudgetRequest struct {
	BudgetAmount         money.Amount     `json:"budget_amount"`
	RolloverEnabled      bool             `json:"rollover_enabled"`
	Policy               string           `json:"rollover_policy"`
	RolloverPercentage   *decimal.Decimal `json:"rollover_percentage"`
	MaxRolloverAmount    money.Amount     `json:"max_rollover_amount"`
	RolloverExpiryMonths int              `json:"rollover_expiry_months"`
	// Legacy flags, used only when rollover_policy is empty.
	RolloverUnused    *bool `json:"rollover_unused"`
	RolloverOverspend *bool `json:"rollover_overspend"`
}

func (r categoryBudgetRequest) settings() rollover.Settings {
	policy := model.RolloverPolicy(r.Policy)
	if policy == "" && (r.RolloverUnused != nil || r.RolloverOverspend != nil) {
		policy = model.PolicyFromFlags(r.RolloverUnused != nil && *r.RolloverUnused,
			r.RolloverOverspend != nil && *r.RolloverOverspend)
	}
	return rollover.Settings{
		BudgetAmount:      r.BudgetAmount,
		RolloverEnabled:   r.RolloverEnabled,
		Policy:            policy,
		Percentage:        r.RolloverPercentage,
		MaxRolloverAmount: r.MaxRolloverAmount,
		ExpiryMonths:      r.RolloverExpiryMonths,
	}
}

func (s *Server) setCategoryBudget(c *gin.Context) {
	b, ok := s.ownBudget(c)
	if !ok {
		return
	}
	var req categoryBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest("%v", err))
		return
	}
	cb, err := s.svc.Rollover.SetCategoryBudget(c.Request.Context(), b.ID, c.Param("category_id"), req.settings())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newCategoryBudgetResponse(cb))
}

func (s *Server) computeRollover(c *gin.Context) {
	b, ok := s.ownBudget(c)
	if !ok {
		return
	}
	calc, err := s.svc.Rollover.ComputeRollover(c.Request.Context(), b.ID, c.Param("category_id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.calculation(calc))
}

func (s *Server) overrideRollover(c *gin.Context) {
	b, ok := s.ownBudget(c)
	if !ok {
		return
	}
	var req struct {
		Amount *money.Amount `json:"rollover_amount" binding:"required"`
		Actor  string        `json:"actor"`
		Reason string        `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest("%v", err))
		return
	}
	cb, calcs, err := s.svc.Rollover.OverrideRollover(c.Request.Context(), b.ID, c.Param("category_id"), *req.Amount, req.Actor, req.Reason)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"category_budget": newCategoryBudgetResponse(cb),
		"recalculated":    s.calculations(calcs),
	})
}

func (s *Server) recalculate(c *gin.Context) {
	b, ok := s.ownBudget(c)
	if !ok {
		return
	}
	var req struct {
		Through      string        `json:"through"`
		BudgetAmount *money.Amount `json:"budget_amount"`
		Actor        string        `json:"actor"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.fail(c, badRequest("%v", err))
			return
		}
	}
	through, err := parsePeriod("through", req.Through)
	if err != nil {
		s.fail(c, err)
		return
	}

	ctx := c.Request.Context()
	var calcs []model.RolloverCalculation
	if req.BudgetAmount != nil {
		calcs, err = s.svc.Rollover.UpdateBudgetAmount(ctx, b.ID, c.Param("category_id"), *req.BudgetAmount, req.Actor, through)
	} else {
		calcs, err = s.svc.Rollover.RecalculateFrom(ctx, b.ID, c.Param("category_id"), through)
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recalculated": s.calculations(calcs)})
}

func (s *Server) rolloverHistory(c *gin.Context) {
	b, ok := s.ownBudget(c)
	if !ok {
		return
	}
	calcs, logs, err := s.svc.Rollover.History(c.Request.Context(), b.ID, c.Param("category_id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	changes := make([]gin.H, len(logs))
	for i, l := range logs {
		changes[i] = gin.H{
			"id":          l.ID,
			"period":      l.Period,
			"change_type": l.ChangeType,
			"old_amount":  l.OldAmount,
			"new_amount":  l.NewAmount,
			"actor":       l.Actor,
			"reason":      l.Reason,
			"created_at":  l.CreatedAt,
		}
	}
	c.JSON(http.StatusOK, gin.H{"calculations": s.calculations(calcs), "changes": changes})
}
