package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/cleared-dev/pocketledger/internal/model"
)

// Budgets

const budgetColumns = `id, party_id, period, active, rollover_needs_recalc, created_at`

func scanBudget(row interface{ Scan(...any) error }) (model.Budget, error) {
	var (
		b          model.Budget
		period, at string
	)
	if err := row.Scan(&b.ID, &b.PartyID, &period, &b.Active, &b.RolloverNeedsRecalc, &at); err != nil {
		return model.Budget{}, err
	}
	var dec textDecoder
	b.Period = dec.period(period)
	b.CreatedAt = dec.time(at)
	return b, dec.err
}

func (t *tx) CreateBudget(ctx context.Context, b model.Budget) error {
	_, err := t.exec(ctx, `INSERT INTO budgets (`+budgetColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, b.PartyID, fmtPeriod(b.Period), b.Active, b.RolloverNeedsRecalc, fmtTime(b.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert budget: %w", err)
	}
	return nil
}

func (t *tx) GetBudget(ctx context.Context, id string) (model.Budget, error) {
	b, err := scanBudget(t.queryRow(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = ?`, id))
	if err != nil {
		return model.Budget{}, wrapNotFound(err, "budget", id)
	}
	return b, nil
}

func (t *tx) FindBudget(ctx context.Context, partyID string, period model.Period) (model.Budget, error) {
	b, err := scanBudget(t.queryRow(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE party_id = ? AND period = ?`, partyID, fmtPeriod(period)))
	if err != nil {
		return model.Budget{}, wrapNotFound(err, "budget", period.String())
	}
	return b, nil
}

func (t *tx) ListBudgets(ctx context.Context, partyID string) ([]model.Budget, error) {
	rows, err := t.query(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE party_id = ? ORDER BY period`, partyID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []model.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (t *tx) SetBudgetRecalc(ctx context.Context, id string, needsRecalc bool) error {
	res, err := t.exec(ctx, `UPDATE budgets SET rollover_needs_recalc = ? WHERE id = ?`, needsRecalc, id)
	if err != nil {
		return fmt.Errorf("update budget recalc flag: %w", err)
	}
	return mustAffect(res, "budget", id)
}

func (t *tx) DeleteBudget(ctx context.Context, id string) error {
	if _, err := t.exec(ctx, `DELETE FROM category_budgets WHERE budget_id = ?`, id); err != nil {
		return fmt.Errorf("delete category budgets: %w", err)
	}
	res, err := t.exec(ctx, `DELETE FROM budgets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return mustAffect(res, "budget", id)
}

// Category budgets

const categoryBudgetColumns = `budget_id, category_id, budget_amount, rollover_enabled, policy, rollover_percentage,
	max_rollover_amount, rollover_expiry_months, rollover_amount, rollover_origin, state, calculated_at, updated_at`

func scanCategoryBudget(row interface{ Scan(...any) error }) (model.CategoryBudget, error) {
	var (
		cb                                        model.CategoryBudget
		policy, pct, origin, state, calcAt, updAt string
	)
	err := row.Scan(&cb.BudgetID, &cb.CategoryID, &cb.BudgetAmount, &cb.RolloverEnabled, &policy, &pct,
		&cb.MaxRolloverAmount, &cb.RolloverExpiryMonths, &cb.RolloverAmount, &origin, &state, &calcAt, &updAt)
	if err != nil {
		return model.CategoryBudget{}, err
	}
	cb.Policy = model.RolloverPolicy(policy)
	cb.State = model.RolloverState(state)
	var dec textDecoder
	cb.RolloverPercentage = dec.decimal(pct)
	cb.RolloverOrigin = dec.period(origin)
	cb.CalculatedAt = dec.time(calcAt)
	cb.UpdatedAt = dec.time(updAt)
	return cb, dec.err
}

func (t *tx) UpsertCategoryBudget(ctx context.Context, cb model.CategoryBudget) error {
	state := cb.State
	if state == "" {
		state = model.StateNotCalculated
	}
	policy := cb.Policy
	if policy == "" {
		policy = model.RolloverNone
	}
	_, err := t.exec(ctx, `INSERT INTO category_budgets (`+categoryBudgetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (budget_id, category_id) DO UPDATE SET
			budget_amount = excluded.budget_amount,
			rollover_enabled = excluded.rollover_enabled,
			policy = excluded.policy,
			rollover_percentage = excluded.rollover_percentage,
			max_rollover_amount = excluded.max_rollover_amount,
			rollover_expiry_months = excluded.rollover_expiry_months,
			rollover_amount = excluded.rollover_amount,
			rollover_origin = excluded.rollover_origin,
			state = excluded.state,
			calculated_at = excluded.calculated_at,
			updated_at = excluded.updated_at`,
		cb.BudgetID, cb.CategoryID, cb.BudgetAmount, cb.RolloverEnabled, string(policy), cb.RolloverPercentage.String(),
		cb.MaxRolloverAmount, cb.RolloverExpiryMonths, cb.RolloverAmount, fmtPeriod(cb.RolloverOrigin),
		string(state), fmtTime(cb.CalculatedAt), fmtTime(cb.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert category budget: %w", err)
	}
	return nil
}

func (t *tx) GetCategoryBudget(ctx context.Context, budgetID, categoryID string) (model.CategoryBudget, error) {
	cb, err := scanCategoryBudget(t.queryRow(ctx,
		`SELECT `+categoryBudgetColumns+` FROM category_budgets WHERE budget_id = ? AND category_id = ?`,
		budgetID, categoryID))
	if err != nil {
		return model.CategoryBudget{}, wrapNotFound(err, "category budget", budgetID+"/"+categoryID)
	}
	return cb, nil
}

func (t *tx) LockCategoryBudget(ctx context.Context, budgetID, categoryID string) (model.CategoryBudget, error) {
	cb, err := scanCategoryBudget(t.queryRow(ctx,
		`SELECT `+categoryBudgetColumns+` FROM category_budgets WHERE budget_id = ? AND category_id = ?`+t.forUpdate(),
		budgetID, categoryID))
	if err != nil {
		return model.CategoryBudget{}, wrapNotFound(err, "category budget", budgetID+"/"+categoryID)
	}
	return cb, nil
}

func (t *tx) ListCategoryBudgets(ctx context.Context, budgetID string) ([]model.CategoryBudget, error) {
	rows, err := t.query(ctx,
		`SELECT `+categoryBudgetColumns+` FROM category_budgets WHERE budget_id = ? ORDER BY category_id`, budgetID)
	if err != nil {
		return nil, fmt.Errorf("list category budgets: %w", err)
	}
	defer rows.Close()

	var out []model.CategoryBudget
	for rows.Next() {
		cb, err := scanCategoryBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category budget: %w", err)
		}
		out = append(out, cb)
	}
	return out, rows.Err()
}

// Audit

const calculationColumns = `id, budget_id, category_id, period, base_budget, previous_rollover, effective_budget,
	spent_amount, raw_rollover, rollover_amount, policy, origin, reason, created_at`

func scanCalculation(row interface{ Scan(...any) error }) (model.RolloverCalculation, error) {
	var (
		c                          model.RolloverCalculation
		period, policy, origin, at string
	)
	err := row.Scan(&c.ID, &c.BudgetID, &c.CategoryID, &period, &c.BaseBudget, &c.PreviousRollover, &c.EffectiveBudget,
		&c.SpentAmount, &c.RawRollover, &c.RolloverAmount, &policy, &origin, &c.Reason, &at)
	if err != nil {
		return model.RolloverCalculation{}, err
	}
	c.Policy = model.RolloverPolicy(policy)
	var dec textDecoder
	c.Period = dec.period(period)
	c.Origin = dec.period(origin)
	c.CreatedAt = dec.time(at)
	return c, dec.err
}

func (t *tx) InsertCalculation(ctx context.Context, c model.RolloverCalculation) error {
	_, err := t.exec(ctx, `INSERT INTO rollover_calculations (`+calculationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.BudgetID, c.CategoryID, fmtPeriod(c.Period), c.BaseBudget, c.PreviousRollover, c.EffectiveBudget,
		c.SpentAmount, c.RawRollover, c.RolloverAmount, string(c.Policy), fmtPeriod(c.Origin), c.Reason, fmtTime(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert rollover calculation: %w", err)
	}
	return nil
}

func (t *tx) LatestCalculation(ctx context.Context, budgetID, categoryID string) (model.RolloverCalculation, error) {
	c, err := scanCalculation(t.queryRow(ctx, `SELECT `+calculationColumns+` FROM rollover_calculations
		WHERE budget_id = ? AND category_id = ? ORDER BY seq DESC LIMIT 1`, budgetID, categoryID))
	if err != nil {
		return model.RolloverCalculation{}, wrapNotFound(err, "rollover calculation", budgetID+"/"+categoryID)
	}
	return c, nil
}

func (t *tx) ListCalculations(ctx context.Context, budgetID, categoryID string) ([]model.RolloverCalculation, error) {
	rows, err := t.query(ctx, `SELECT `+calculationColumns+` FROM rollover_calculations
		WHERE budget_id = ? AND category_id = ? ORDER BY seq`, budgetID, categoryID)
	if err != nil {
		return nil, fmt.Errorf("list rollover calculations: %w", err)
	}
	defer rows.Close()

	var out []model.RolloverCalculation
	for rows.Next() {
		c, err := scanCalculation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rollover calculation: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const changeLogColumns = `id, budget_id, category_id, period, change_type, old_amount, new_amount, actor, reason, created_at`

func (t *tx) InsertChangeLog(ctx context.Context, l model.RolloverChangeLog) error {
	_, err := t.exec(ctx, `INSERT INTO rollover_change_logs (`+changeLogColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.BudgetID, l.CategoryID, fmtPeriod(l.Period), string(l.ChangeType), l.OldAmount, l.NewAmount,
		l.Actor, l.Reason, fmtTime(l.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert rollover change log: %w", err)
	}
	return nil
}

func (t *tx) ListChangeLogs(ctx context.Context, budgetID, categoryID string) ([]model.RolloverChangeLog, error) {
	rows, err := t.query(ctx, `SELECT `+changeLogColumns+` FROM rollover_change_logs
		WHERE budget_id = ? AND category_id = ? ORDER BY seq`, budgetID, categoryID)
	if err != nil {
		return nil, fmt.Errorf("list rollover change logs: %w", err)
	}
	defer rows.Close()

	var out []model.RolloverChangeLog
	for rows.Next() {
		var (
			l                      model.RolloverChangeLog
			period, changeType, at string
		)
		if err := rows.Scan(&l.ID, &l.BudgetID, &l.CategoryID, &period, &changeType, &l.OldAmount, &l.NewAmount,
			&l.Actor, &l.Reason, &at); err != nil {
			return nil, fmt.Errorf("scan rollover change log: %w", err)
		}
		l.ChangeType = model.ChangeType(changeType)
		var dec textDecoder
		l.Period = dec.period(period)
		l.CreatedAt = dec.time(at)
		if dec.err != nil {
			return nil, dec.err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (t *tx) PruneAudit(ctx context.Context, before time.Time) (int64, error) {
	cutoff := fmtTime(before)
	var total int64
	for _, table := range []string{"rollover_calculations", "rollover_change_logs"} {
		res, err := t.exec(ctx, `DELETE FROM `+table+` WHERE created_at < ?`, cutoff)
		if err != nil {
			return total, fmt.Errorf("prune %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
