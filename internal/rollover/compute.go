package rollover

import (
	"context"
	"errors"
	"fmt"

	"github.com/cleared-dev/pocketledger/internal/id"
	"github.com/cleared-dev/pocketledger/internal/log"
	"github.com/cleared-dev/pocketledger/internal/model"
	"github.com/cleared-dev/pocketledger/internal/money"
	"github.com/cleared-dev/pocketledger/internal/store"
)

// carry is the amount a predecessor period hands forward.
type carry struct {
	amount money.Amount
	origin model.Period
	note   string
}

// compute runs one rollover calculation for the pair in budget's period,
// storing the result on the category budget and writing the audit rows.
func (s *Service) compute(ctx context.Context, tx store.Tx, budget model.Budget, categoryID string, ch change, depth int) (model.RolloverCalculation, error) {
	cb, err := lockPair(ctx, tx, budget, categoryID)
	if err != nil {
		return model.RolloverCalculation{}, err
	}

	prev, err := s.previous(ctx, tx, budget, cb, depth)
	if err != nil {
		return model.RolloverCalculation{}, err
	}

	spent, err := tx.SumEntries(ctx, store.EntrySum{
		AccountID:      categoryID,
		From:           budget.Period.Start(),
		To:             budget.Period.End(),
		ReportableOnly: true,
	})
	if err != nil {
		return model.RolloverCalculation{}, err
	}

	policy := cb.EffectivePolicy()
	effective := cb.BudgetAmount + prev.amount
	raw := effective - spent
	amount := applyPolicy(policy, raw)
	amount = applyPercentage(amount, cb)
	amount = applyCap(amount, cb.MaxRolloverAmount)

	// A carry only dates back to its predecessor while this period adds
	// nothing to it in the same direction.
	own := cb.BudgetAmount - spent
	var origin model.Period
	switch {
	case amount.IsZero():
	case !prev.amount.IsZero() && prev.amount.IsNegative() == amount.IsNegative() && !sameSign(own, amount):
		origin = prev.origin
	default:
		origin = budget.Period
	}

	now := s.now().UTC()
	calc := model.RolloverCalculation{
		ID:               id.New(),
		BudgetID:         budget.ID,
		CategoryID:       categoryID,
		Period:           budget.Period,
		BaseBudget:       cb.BudgetAmount,
		PreviousRollover: prev.amount,
		EffectiveBudget:  effective,
		SpentAmount:      spent,
		RawRollover:      raw,
		RolloverAmount:   amount,
		Policy:           policy,
		Origin:           origin,
		Reason:           reason(ch, prev),
		CreatedAt:        now,
	}
	if err := tx.InsertCalculation(ctx, calc); err != nil {
		return model.RolloverCalculation{}, err
	}

	old := cb.RolloverAmount
	if old != amount {
		if err := tx.InsertChangeLog(ctx, model.RolloverChangeLog{
			ID:         id.New(),
			BudgetID:   budget.ID,
			CategoryID: categoryID,
			Period:     budget.Period,
			ChangeType: ch.kind,
			OldAmount:  old,
			NewAmount:  amount,
			Actor:      ch.actor,
			Reason:     ch.reason,
			CreatedAt:  now,
		}); err != nil {
			return model.RolloverCalculation{}, err
		}
	}

	cb.RolloverAmount = amount
	cb.RolloverOrigin = origin
	cb.State = model.StateCalculated
	cb.CalculatedAt = now
	cb.UpdatedAt = now
	if err := tx.UpsertCategoryBudget(ctx, cb); err != nil {
		return model.RolloverCalculation{}, err
	}

	s.logger.DebugContext(ctx, "rollover computed",
		log.FieldBudget, budget.ID,
		log.FieldCategory, categoryID,
		log.FieldPeriod, budget.Period.String(),
		log.FieldAmount, amount.String(),
	)
	return calc, nil
}

// previous resolves the carry from the month before budget's period. A
// missing budget or category budget carries zero, as does a predecessor
// with rollover disabled. An uncalculated predecessor is computed first.
func (s *Service) previous(ctx context.Context, tx store.Tx, budget model.Budget, cb model.CategoryBudget, depth int) (carry, error) {
	prevPeriod := budget.Period.Prev()
	pb, err := tx.FindBudget(ctx, budget.PartyID, prevPeriod)
	if errors.Is(err, store.ErrNotFound) {
		return carry{note: "no budget for " + prevPeriod.String()}, nil
	}
	if err != nil {
		return carry{}, err
	}
	pcb, err := tx.GetCategoryBudget(ctx, pb.ID, cb.CategoryID)
	if errors.Is(err, store.ErrNotFound) {
		return carry{note: "category not budgeted in " + prevPeriod.String()}, nil
	}
	if err != nil {
		return carry{}, err
	}
	if pcb.EffectivePolicy() == model.RolloverNone {
		return carry{note: "rollover disabled in " + prevPeriod.String()}, nil
	}

	if !pcb.Calculated() {
		if depth >= maxChainDepth {
			return carry{}, fmt.Errorf("rollover chain deeper than %d months at %s", maxChainDepth, prevPeriod)
		}
		if _, err := s.compute(ctx, tx, pb, cb.CategoryID, recalculation, depth+1); err != nil {
			return carry{}, err
		}
		if pcb, err = tx.GetCategoryBudget(ctx, pb.ID, cb.CategoryID); err != nil {
			return carry{}, err
		}
	}

	c := carry{amount: pcb.RolloverAmount, origin: pcb.RolloverOrigin}
	if expired(c, cb.RolloverExpiryMonths, budget.Period) {
		return carry{note: fmt.Sprintf("carry from %s expired", c.origin)}, nil
	}
	return c, nil
}

// expired reports whether a carry earned in its origin month is older than
// months when used in period. Zero months never expires.
func expired(c carry, months int, period model.Period) bool {
	if months <= 0 || c.amount.IsZero() || c.origin.IsZero() {
		return false
	}
	return c.origin.MonthsUntil(period) > months
}

func sameSign(a, b money.Amount) bool {
	return (a.IsPositive() && b.IsPositive()) || (a.IsNegative() && b.IsNegative())
}

func applyPolicy(policy model.RolloverPolicy, raw money.Amount) money.Amount {
	switch policy {
	case model.RolloverRemaining:
		return max(raw, 0)
	case model.RolloverOverspend:
		return min(raw, 0)
	case model.RolloverBoth:
		return raw
	}
	return 0
}

// applyPercentage scales a positive carry. Deficits always carry in full.
func applyPercentage(amount money.Amount, cb model.CategoryBudget) money.Amount {
	if !amount.IsPositive() || cb.RolloverPercentage.Equal(hundred) {
		return amount
	}
	return amount.MulDecimal(cb.RolloverPercentage.Div(hundred))
}

func applyCap(amount, limit money.Amount) money.Amount {
	if !limit.IsPositive() || amount.Abs() <= limit {
		return amount
	}
	if amount.IsNegative() {
		return limit.Neg()
	}
	return limit
}

func reason(ch change, prev carry) string {
	r := string(ch.kind)
	if ch.reason != "" {
		r += ": " + ch.reason
	}
	if prev.note != "" {
		r += "; " + prev.note
	}
	return r
}
