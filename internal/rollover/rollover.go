// Package rollover computes, audits and propagates monthly budget rollover.
package rollover

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/pocketledger/internal/events"
	"github.com/cleared-dev/pocketledger/internal/id"
	"github.com/cleared-dev/pocketledger/internal/log"
	"github.com/cleared-dev/pocketledger/internal/model"
	"github.com/cleared-dev/pocketledger/internal/money"
	"github.com/cleared-dev/pocketledger/internal/store"
)

var (
	ErrBudgetNotFound   = errors.New("budget not found")
	ErrInvalidPolicy    = errors.New("invalid rollover policy")
	ErrInvalidSettings  = errors.New("invalid rollover settings")
	ErrNotExpenseBudget = errors.New("category budgets need an expense account")
)

// SystemActor is recorded on change logs written by automatic recomputation.
const SystemActor = "system"

// maxChainDepth bounds recursive computation of uncalculated predecessors.
const maxChainDepth = 240

var hundred = decimal.NewFromInt(100)

// Service owns the rollover state machine of every (budget, category) pair.
type Service struct {
	store         store.Store
	publisher     events.Publisher
	logger        *log.Logger
	now           func() time.Time
	defaultPolicy model.RolloverPolicy
}

// NewService creates a rollover Service. publisher and logger may be nil.
func NewService(st store.Store, publisher events.Publisher, logger *log.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:         st,
		publisher:     publisher,
		logger:        logger.WithComponent(log.ComponentRollover),
		now:           time.Now,
		defaultPolicy: model.RolloverRemaining,
	}
}

// SetClock replaces the time source used for audit timestamps.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// change describes why a computation runs.
type change struct {
	kind   model.ChangeType
	actor  string
	reason string
}

var recalculation = change{kind: model.ChangeRecalculation, actor: SystemActor}

// ComputeRollover computes the pair's rollover for its budget's period and
// returns the new audit record. Running it again with unchanged inputs
// stores the same amount and writes no change log.
func (s *Service) ComputeRollover(ctx context.Context, budgetID, categoryID string) (model.RolloverCalculation, error) {
	var (
		calc    model.RolloverCalculation
		partyID string
	)
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		budget, err := getBudget(ctx, tx, budgetID)
		if err != nil {
			return err
		}
		partyID = budget.PartyID
		calc, err = s.compute(ctx, tx, budget, categoryID, recalculation, 0)
		return err
	})
	if err != nil {
		return model.RolloverCalculation{}, err
	}
	s.published(ctx, partyID, []model.RolloverCalculation{calc})
	return calc, nil
}

// RecalculateFrom recomputes the pair in the budget's period and then every
// later budget of the party holding the same category, in order, through
// the given period. A zero through means no upper bound.
func (s *Service) RecalculateFrom(ctx context.Context, budgetID, categoryID string, through model.Period) ([]model.RolloverCalculation, error) {
	return s.runCascade(ctx, budgetID, categoryID, through, recalculation)
}

func (s *Service) runCascade(ctx context.Context, budgetID, categoryID string, through model.Period, ch change) ([]model.RolloverCalculation, error) {
	var (
		calcs   []model.RolloverCalculation
		partyID string
	)
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		start, err := getBudget(ctx, tx, budgetID)
		if err != nil {
			return err
		}
		partyID = start.PartyID
		calcs, err = s.cascade(ctx, tx, start, categoryID, through, ch, true)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.published(ctx, partyID, calcs)
	return calcs, nil
}

// ProcessPending recomputes every category of every budget flagged with
// RolloverNeedsRecalc, cascading forward through the given period, and
// clears the flags.
func (s *Service) ProcessPending(ctx context.Context, partyID string, through model.Period) ([]model.RolloverCalculation, error) {
	var calcs []model.RolloverCalculation
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		budgets, err := tx.ListBudgets(ctx, partyID)
		if err != nil {
			return err
		}

		// Earliest flagged budget per category; a cascade from there covers later flags.
		var order []string
		startFor := map[string]model.Budget{}
		var flagged []model.Budget
		for _, b := range budgets {
			if !b.RolloverNeedsRecalc {
				continue
			}
			flagged = append(flagged, b)
			cbs, err := tx.ListCategoryBudgets(ctx, b.ID)
			if err != nil {
				return err
			}
			for _, cb := range cbs {
				if _, ok := startFor[cb.CategoryID]; !ok {
					startFor[cb.CategoryID] = b
					order = append(order, cb.CategoryID)
				}
			}
		}

		ch := change{kind: model.ChangeTransactionUpdate, actor: SystemActor, reason: "transactions changed in a calculated period"}
		for _, categoryID := range order {
			out, err := s.cascade(ctx, tx, startFor[categoryID], categoryID, through, ch, true)
			if err != nil {
				return err
			}
			calcs = append(calcs, out...)
		}

		for _, b := range flagged {
			if err := tx.SetBudgetRecalc(ctx, b.ID, false); err != nil {
				return err
			}
		}
		if len(flagged) > 0 {
			s.logger.InfoContext(ctx, "pending rollovers processed",
				log.FieldParty, partyID, "budgets", len(flagged), log.FieldCount, len(calcs))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.published(ctx, partyID, calcs)
	return calcs, nil
}

// OverrideRollover sets the pair's carried amount by hand, logs a
// manual_override change when the amount differs and recomputes later
// periods from it.
func (s *Service) OverrideRollover(ctx context.Context, budgetID, categoryID string, amount money.Amount, actor, reason string) (model.CategoryBudget, []model.RolloverCalculation, error) {
	var (
		cb      model.CategoryBudget
		calcs   []model.RolloverCalculation
		partyID string
	)
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		budget, err := getBudget(ctx, tx, budgetID)
		if err != nil {
			return err
		}
		partyID = budget.PartyID
		cb, err = lockPair(ctx, tx, budget, categoryID)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		old := cb.RolloverAmount
		cb.RolloverAmount = amount
		cb.RolloverOrigin = model.Period{}
		if !amount.IsZero() {
			cb.RolloverOrigin = budget.Period
		}
		cb.State = model.StateCalculated
		cb.CalculatedAt = now
		cb.UpdatedAt = now
		if err := tx.UpsertCategoryBudget(ctx, cb); err != nil {
			return err
		}
		if old != amount {
			if err := tx.InsertChangeLog(ctx, model.RolloverChangeLog{
				ID:         id.New(),
				BudgetID:   budget.ID,
				CategoryID: categoryID,
				Period:     budget.Period,
				ChangeType: model.ChangeManualOverride,
				OldAmount:  old,
				NewAmount:  amount,
				Actor:      actorOr(actor),
				Reason:     reason,
				CreatedAt:  now,
			}); err != nil {
				return err
			}
		}

		calcs, err = s.cascade(ctx, tx, budget, categoryID, model.Period{}, recalculation, false)
		return err
	})
	if err != nil {
		return model.CategoryBudget{}, nil, err
	}
	s.logger.InfoContext(ctx, "rollover overridden",
		log.FieldBudget, budgetID, log.FieldCategory, categoryID, log.FieldAmount, amount.String(), "actor", actorOr(actor))
	s.published(ctx, partyID, calcs)
	return cb, calcs, nil
}

// UpdateBudgetAmount changes the pair's base budget and recomputes it and
// later periods through the given one, logging changes as budget_update.
func (s *Service) UpdateBudgetAmount(ctx context.Context, budgetID, categoryID string, amount money.Amount, actor string, through model.Period) ([]model.RolloverCalculation, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("%w: budget amount %s is negative", money.ErrInvalidAmount, amount)
	}
	var (
		calcs   []model.RolloverCalculation
		partyID string
	)
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		budget, err := getBudget(ctx, tx, budgetID)
		if err != nil {
			return err
		}
		partyID = budget.PartyID
		cb, err := lockPair(ctx, tx, budget, categoryID)
		if err != nil {
			return err
		}
		cb.BudgetAmount = amount
		cb.UpdatedAt = s.now().UTC()
		if err := tx.UpsertCategoryBudget(ctx, cb); err != nil {
			return err
		}
		ch := change{kind: model.ChangeBudgetUpdate, actor: actorOr(actor), reason: "budget amount set to " + amount.String()}
		calcs, err = s.cascade(ctx, tx, budget, categoryID, through, ch, true)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.published(ctx, partyID, calcs)
	return calcs, nil
}

// History returns the pair's audit records and change logs, oldest first.
func (s *Service) History(ctx context.Context, budgetID, categoryID string) ([]model.RolloverCalculation, []model.RolloverChangeLog, error) {
	var (
		calcs []model.RolloverCalculation
		logs  []model.RolloverChangeLog
	)
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		budget, err := getBudget(ctx, tx, budgetID)
		if err != nil {
			return err
		}
		if _, err := pair(ctx, tx, budget, categoryID); err != nil {
			return err
		}
		if calcs, err = tx.ListCalculations(ctx, budgetID, categoryID); err != nil {
			return err
		}
		logs, err = tx.ListChangeLogs(ctx, budgetID, categoryID)
		return err
	})
	return calcs, logs, err
}

// Prune deletes audit rows created before cutoff.
func (s *Service) Prune(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		n, err = tx.PruneAudit(ctx, before)
		return err
	})
	if err == nil {
		s.logger.InfoContext(ctx, "rollover audit pruned", log.FieldCount, n, "before", before.Format(time.RFC3339))
	}
	return n, err
}

// cascade recomputes the pair from start (or the period after it when
// includeStart is false) through every later budget of the party.
func (s *Service) cascade(ctx context.Context, tx store.Tx, start model.Budget, categoryID string, through model.Period, ch change, includeStart bool) ([]model.RolloverCalculation, error) {
	if includeStart {
		if _, err := pair(ctx, tx, start, categoryID); err != nil {
			return nil, err
		}
	}

	budgets, err := tx.ListBudgets(ctx, start.PartyID)
	if err != nil {
		return nil, err
	}

	var out []model.RolloverCalculation
	for _, b := range budgets {
		if b.Period.Before(start.Period) || (!includeStart && b.Period == start.Period) {
			continue
		}
		if !through.IsZero() && b.Period.After(through) {
			break
		}
		if _, err := tx.GetCategoryBudget(ctx, b.ID, categoryID); errors.Is(err, store.ErrNotFound) {
			continue
		} else if err != nil {
			return nil, err
		}
		calc, err := s.compute(ctx, tx, b, categoryID, ch, 0)
		if err != nil {
			return nil, err
		}
		out = append(out, calc)
	}
	return out, nil
}

func (s *Service) published(ctx context.Context, partyID string, calcs []model.RolloverCalculation) {
	for _, c := range calcs {
		e := events.Event{
			ID:         id.New(),
			Type:       events.RolloverRecalculated,
			PartyID:    partyID,
			SubjectID:  c.CategoryID,
			OccurredAt: c.CreatedAt,
			Data: map[string]any{
				"budget_id":       c.BudgetID,
				"period":          c.Period.String(),
				"rollover_amount": c.RolloverAmount.String(),
			},
		}
		if err := s.publisher.Publish(ctx, e); err != nil {
			s.logger.WarnContext(ctx, "event publish failed",
				log.FieldEvent, string(e.Type), log.FieldBudget, c.BudgetID, log.FieldError, err)
		}
	}
}

// Budget returns the budget with id.
func (s *Service) Budget(ctx context.Context, budgetID string) (model.Budget, error) {
	var b model.Budget
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		b, err = getBudget(ctx, tx, budgetID)
		return err
	})
	return b, err
}

func getBudget(ctx context.Context, tx store.Tx, budgetID string) (model.Budget, error) {
	b, err := tx.GetBudget(ctx, budgetID)
	if errors.Is(err, store.ErrNotFound) {
		return model.Budget{}, model.NewEntityError("budget", budgetID, ErrBudgetNotFound)
	}
	return b, err
}

func pair(ctx context.Context, tx store.Tx, budget model.Budget, categoryID string) (model.CategoryBudget, error) {
	cb, err := tx.GetCategoryBudget(ctx, budget.ID, categoryID)
	if errors.Is(err, store.ErrNotFound) {
		return cb, model.NewEntityError("category budget", budget.ID+"/"+categoryID, ErrBudgetNotFound)
	}
	return cb, err
}

func lockPair(ctx context.Context, tx store.Tx, budget model.Budget, categoryID string) (model.CategoryBudget, error) {
	cb, err := tx.LockCategoryBudget(ctx, budget.ID, categoryID)
	if errors.Is(err, store.ErrNotFound) {
		return cb, model.NewEntityError("category budget", budget.ID+"/"+categoryID, ErrBudgetNotFound)
	}
	return cb, err
}

func actorOr(actor string) string {
	if actor == "" {
		return SystemActor
	}
	return actor
}
