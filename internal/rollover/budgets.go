package rollover

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/pocketledger/internal/id"
	"github.com/cleared-dev/pocketledger/internal/log"
	"github.com/cleared-dev/pocketledger/internal/model"
	"github.com/cleared-dev/pocketledger/internal/money"
	"github.com/cleared-dev/pocketledger/internal/store"
)

// Settings configures one category budget.
type Settings struct {
	BudgetAmount    money.Amount
	RolloverEnabled bool
	// Policy defaults to the service default when empty.
	Policy model.RolloverPolicy
	// Percentage defaults to 100 when nil.
	Percentage        *decimal.Decimal
	MaxRolloverAmount money.Amount
	ExpiryMonths      int
}

func (st Settings) validate() error {
	var errs []error
	if st.BudgetAmount.IsNegative() {
		errs = append(errs, fmt.Errorf("%w: budget amount %s is negative", money.ErrInvalidAmount, st.BudgetAmount))
	}
	if st.Policy != "" && !st.Policy.Valid() {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidPolicy, st.Policy))
	}
	if p := st.Percentage; p != nil && (p.IsNegative() || p.GreaterThan(hundred)) {
		errs = append(errs, fmt.Errorf("%w: percentage %s outside 0..100", ErrInvalidSettings, p))
	}
	if st.MaxRolloverAmount.IsNegative() {
		errs = append(errs, fmt.Errorf("%w: max rollover %s is negative", ErrInvalidSettings, st.MaxRolloverAmount))
	}
	if st.ExpiryMonths < 0 {
		errs = append(errs, fmt.Errorf("%w: expiry months %d is negative", ErrInvalidSettings, st.ExpiryMonths))
	}
	return errors.Join(errs...)
}

// SetDefaultPolicy sets the policy applied when Settings.Policy is empty.
func (s *Service) SetDefaultPolicy(p model.RolloverPolicy) {
	if p.Valid() {
		s.defaultPolicy = p
	}
}

// EnsureBudget returns the party's budget for period, creating it if needed.
func (s *Service) EnsureBudget(ctx context.Context, partyID string, period model.Period) (model.Budget, error) {
	if period.IsZero() {
		return model.Budget{}, fmt.Errorf("%w: period is required", ErrInvalidSettings)
	}
	var b model.Budget
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetParty(ctx, partyID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return model.NewEntityError("party", partyID, err)
			}
			return err
		}
		var err error
		b, err = tx.FindBudget(ctx, partyID, period)
		if err == nil || !errors.Is(err, store.ErrNotFound) {
			return err
		}
		b = model.Budget{
			ID:        id.New(),
			PartyID:   partyID,
			Period:    period,
			Active:    true,
			CreatedAt: s.now().UTC(),
		}
		return tx.CreateBudget(ctx, b)
	})
	return b, err
}

// SetCategoryBudget creates or reconfigures the budget line for an expense
// category. Reconfiguring clears the calculated state so the next read of
// the chain recomputes it; the stored rollover amount is kept.
func (s *Service) SetCategoryBudget(ctx context.Context, budgetID, categoryID string, st Settings) (model.CategoryBudget, error) {
	if err := st.validate(); err != nil {
		return model.CategoryBudget{}, err
	}
	var cb model.CategoryBudget
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		budget, err := getBudget(ctx, tx, budgetID)
		if err != nil {
			return err
		}
		acct, err := tx.GetAccount(ctx, categoryID)
		if errors.Is(err, store.ErrNotFound) || (err == nil && acct.PartyID != budget.PartyID) {
			return model.NewEntityError("account", categoryID, store.ErrNotFound)
		}
		if err != nil {
			return err
		}
		if acct.Type != model.AccountTypeExpense {
			return model.NewEntityError("account", categoryID, ErrNotExpenseBudget)
		}

		cb, err = tx.LockCategoryBudget(ctx, budgetID, categoryID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if errors.Is(err, store.ErrNotFound) {
			cb = model.CategoryBudget{BudgetID: budgetID, CategoryID: categoryID}
		}

		cb.BudgetAmount = st.BudgetAmount
		cb.RolloverEnabled = st.RolloverEnabled
		cb.Policy = st.Policy
		if cb.Policy == "" {
			cb.Policy = s.defaultPolicy
		}
		cb.RolloverPercentage = model.DefaultRolloverPercentage
		if st.Percentage != nil {
			cb.RolloverPercentage = *st.Percentage
		}
		cb.MaxRolloverAmount = st.MaxRolloverAmount
		cb.RolloverExpiryMonths = st.ExpiryMonths
		cb.State = model.StateNotCalculated
		cb.UpdatedAt = s.now().UTC()
		return tx.UpsertCategoryBudget(ctx, cb)
	})
	if err != nil {
		return model.CategoryBudget{}, err
	}
	s.logger.InfoContext(ctx, "category budget set",
		log.FieldBudget, budgetID, log.FieldCategory, categoryID, log.FieldAmount, st.BudgetAmount.String())
	return cb, nil
}

// DeleteBudget removes a budget with its category budgets. Audit rows stay
// until pruned.
func (s *Service) DeleteBudget(ctx context.Context, budgetID string) error {
	return s.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := getBudget(ctx, tx, budgetID); err != nil {
			return err
		}
		return tx.DeleteBudget(ctx, budgetID)
	})
}
