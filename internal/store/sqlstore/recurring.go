package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/cleared-dev/pocketledger/internal/model"
)

const templateColumns = `id, party_id, description, direction, category_id, source_account_id, amount, is_variable,
	estimated_min, estimated_max, frequency, flexibility, range_start, range_end, preference, priority,
	start_date, end_date, next_due_date, last_run_date, active, created_at, updated_at`

func scanTemplate(row interface{ Scan(...any) error }) (model.RecurringTemplate, error) {
	var (
		rt                                           model.RecurringTemplate
		direction, freq, flex, pref, prio            string
		start, end, next, last, createdAt, updatedAt string
	)
	err := row.Scan(&rt.ID, &rt.PartyID, &rt.Description, &direction, &rt.CategoryID, &rt.SourceAccountID,
		&rt.Amount, &rt.IsVariable, &rt.EstimatedMin, &rt.EstimatedMax, &freq, &flex, &rt.RangeStart, &rt.RangeEnd,
		&pref, &prio, &start, &end, &next, &last, &rt.Active, &createdAt, &updatedAt)
	if err != nil {
		return model.RecurringTemplate{}, err
	}
	rt.Direction = model.TemplateDirection(direction)
	rt.Frequency = model.Frequency(freq)
	rt.Flexibility = model.DateFlexibility(flex)
	rt.Preference = model.DatePreference(pref)
	rt.Priority = model.Priority(prio)
	var dec textDecoder
	rt.StartDate = dec.date(start)
	rt.EndDate = dec.date(end)
	rt.NextDueDate = dec.date(next)
	rt.LastRunDate = dec.date(last)
	rt.CreatedAt = dec.time(createdAt)
	rt.UpdatedAt = dec.time(updatedAt)
	return rt, dec.err
}

func templateArgs(rt model.RecurringTemplate) []any {
	return []any{
		rt.PartyID, rt.Description, string(rt.Direction), rt.CategoryID, rt.SourceAccountID, rt.Amount, rt.IsVariable,
		rt.EstimatedMin, rt.EstimatedMax, string(rt.Frequency), string(rt.Flexibility), rt.RangeStart, rt.RangeEnd,
		string(rt.Preference), string(rt.Priority), fmtDate(rt.StartDate), fmtDate(rt.EndDate),
		fmtDate(rt.NextDueDate), fmtDate(rt.LastRunDate), rt.Active, fmtTime(rt.CreatedAt), fmtTime(rt.UpdatedAt),
	}
}

func (t *tx) CreateTemplate(ctx context.Context, rt model.RecurringTemplate) error {
	args := append([]any{rt.ID}, templateArgs(rt)...)
	_, err := t.exec(ctx, `INSERT INTO recurring_templates (`+templateColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		return fmt.Errorf("insert recurring template: %w", err)
	}
	return nil
}

func (t *tx) GetTemplate(ctx context.Context, id string) (model.RecurringTemplate, error) {
	rt, err := scanTemplate(t.queryRow(ctx, `SELECT `+templateColumns+` FROM recurring_templates WHERE id = ?`, id))
	if err != nil {
		return model.RecurringTemplate{}, wrapNotFound(err, "template", id)
	}
	return rt, nil
}

func (t *tx) UpdateTemplate(ctx context.Context, rt model.RecurringTemplate) error {
	args := append(templateArgs(rt), rt.ID)
	res, err := t.exec(ctx, `UPDATE recurring_templates SET
		party_id = ?, description = ?, direction = ?, category_id = ?, source_account_id = ?, amount = ?, is_variable = ?,
		estimated_min = ?, estimated_max = ?, frequency = ?, flexibility = ?, range_start = ?, range_end = ?,
		preference = ?, priority = ?, start_date = ?, end_date = ?, next_due_date = ?, last_run_date = ?,
		active = ?, created_at = ?, updated_at = ?
		WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update recurring template: %w", err)
	}
	return mustAffect(res, "template", rt.ID)
}

func (t *tx) listTemplates(ctx context.Context, where string, args ...any) ([]model.RecurringTemplate, error) {
	rows, err := t.query(ctx, `SELECT `+templateColumns+` FROM recurring_templates WHERE `+where+
		` ORDER BY next_due_date, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list recurring templates: %w", err)
	}
	defer rows.Close()

	var out []model.RecurringTemplate
	for rows.Next() {
		rt, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring template: %w", err)
		}
		out = append(out, rt)
	}
	return out, rows.Err()
}

func (t *tx) ListDueTemplates(ctx context.Context, asOf time.Time) ([]model.RecurringTemplate, error) {
	return t.listTemplates(ctx, `active = ? AND next_due_date <= ?`, true, fmtDate(asOf))
}

func (t *tx) ListActiveTemplates(ctx context.Context, partyID string) ([]model.RecurringTemplate, error) {
	return t.listTemplates(ctx, `active = ? AND party_id = ?`, true, partyID)
}
