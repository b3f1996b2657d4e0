// Package recurring turns recurring templates into posted transactions.
package recurring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cleared-dev/pocketledger/internal/events"
	"github.com/cleared-dev/pocketledger/internal/id"
	"github.com/cleared-dev/pocketledger/internal/journal"
	"github.com/cleared-dev/pocketledger/internal/log"
	"github.com/cleared-dev/pocketledger/internal/model"
	"github.com/cleared-dev/pocketledger/internal/money"
	"github.com/cleared-dev/pocketledger/internal/store"
)

var (
	ErrTemplateInactive = errors.New("recurring template is inactive")
	ErrUnresolvedSeason = errors.New("seasonal template has no resolved date range")
	ErrInvalidTemplate  = errors.New("invalid recurring template")
)

// maxCatchUp bounds how many overdue occurrences one template may post in a
// single ProcessDue run.
const maxCatchUp = 366

// SeasonResolver maps a SEASONAL template's due date to a day range within
// the due month. ok is false when the season does not cover that month.
type SeasonResolver func(t model.RecurringTemplate, due time.Time) (first, last int, ok bool)

// Service materializes recurring templates through the journal.
type Service struct {
	store     store.Store
	journal   *journal.Service
	publisher events.Publisher
	logger    *log.Logger
	now       func() time.Time
	seasons   SeasonResolver
}

// NewService creates a recurring Service. publisher and logger may be nil.
func NewService(st store.Store, j *journal.Service, publisher events.Publisher, logger *log.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:     st,
		journal:   j,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentRecurring),
		now:       time.Now,
	}
}

func (s *Service) SetClock(now func() time.Time) { s.now = now }

// SetSeasonResolver installs the season lookup used for SEASONAL templates.
func (s *Service) SetSeasonResolver(r SeasonResolver) { s.seasons = r }

// CreateTemplate validates and stores a new template. NextDueDate defaults
// to StartDate.
func (s *Service) CreateTemplate(ctx context.Context, t model.RecurringTemplate) (model.RecurringTemplate, error) {
	if t.ID == "" {
		t.ID = id.New()
	}
	if t.NextDueDate.IsZero() {
		t.NextDueDate = t.StartDate
	}
	t.StartDate, t.NextDueDate = day(t.StartDate), day(t.NextDueDate)
	if !t.EndDate.IsZero() {
		t.EndDate = day(t.EndDate)
	}
	if t.Priority == "" {
		t.Priority = model.PriorityMedium
	}
	if t.Direction == "" {
		t.Direction = model.DirectionExpense
	}
	t.Active = true
	t.CreatedAt = s.now().UTC()
	t.UpdatedAt = t.CreatedAt

	if err := Validate(t); err != nil {
		return model.RecurringTemplate{}, err
	}
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetParty(ctx, t.PartyID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return model.NewEntityError("party", t.PartyID, err)
			}
			return err
		}
		cat, err := tx.GetAccount(ctx, t.CategoryID)
		if errors.Is(err, store.ErrNotFound) || (err == nil && cat.PartyID != t.PartyID) {
			return model.NewEntityError("account", t.CategoryID, store.ErrNotFound)
		}
		if err != nil {
			return err
		}
		want := model.AccountTypeExpense
		if t.Direction == model.DirectionIncome {
			want = model.AccountTypeIncome
		}
		if cat.Type != want {
			return model.NewEntityError("account", cat.ID, journal.ErrAccountTypeMismatch)
		}
		return tx.CreateTemplate(ctx, t)
	})
	if err != nil {
		return model.RecurringTemplate{}, err
	}
	return t, nil
}

// Deactivate stops a template from firing. It is kept for its history.
func (s *Service) Deactivate(ctx context.Context, templateID string) error {
	return s.store.InTx(ctx, func(tx store.Tx) error {
		t, err := getTemplate(ctx, tx, templateID)
		if err != nil {
			return err
		}
		t.Active = false
		t.UpdatedAt = s.now().UTC()
		return tx.UpdateTemplate(ctx, t)
	})
}

// Materialize posts the occurrence of templateID due on due (the template's
// next due date when zero), advances the schedule and records the run, all
// in one unit of work. actual overrides the template amount.
func (s *Service) Materialize(ctx context.Context, templateID string, due time.Time, actual *money.Amount) (model.Transaction, error) {
	var (
		txn model.Transaction
		t   model.RecurringTemplate
	)
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		t, err = getTemplate(ctx, tx, templateID)
		if err != nil {
			return err
		}
		if !t.Active {
			return model.NewEntityError("template", t.ID, ErrTemplateInactive)
		}
		if due.IsZero() {
			due = t.NextDueDate
		}
		due = day(due)

		date, err := s.resolveDate(t, due)
		if err != nil {
			return err
		}
		dir := journal.DirectionExpense
		if t.Direction == model.DirectionIncome {
			dir = journal.DirectionIncome
		}
		txn, err = s.journal.PostTx(ctx, tx, journal.Simple{
			Header: journal.Header{
				PartyID:             t.PartyID,
				Date:                date,
				Description:         t.Description,
				ExternalID:          occurrenceKey(t.ID, due),
				RecurringTemplateID: t.ID,
			},
			Direction:  dir,
			CategoryID: t.CategoryID,
			AccountID:  t.SourceAccountID,
			Amount:     ResolveAmount(t, actual),
		})
		if err != nil {
			return err
		}

		t.LastRunDate = date
		if !due.Before(t.NextDueDate) {
			t.NextDueDate = NextDue(t, due)
		}
		if !t.EndDate.IsZero() && t.NextDueDate.After(t.EndDate) {
			t.Active = false
		}
		t.UpdatedAt = s.now().UTC()
		return tx.UpdateTemplate(ctx, t)
	})
	if err != nil {
		return model.Transaction{}, err
	}

	s.journal.Posted(ctx, txn)
	s.logger.InfoContext(ctx, "recurring template materialized",
		log.FieldTemplate, t.ID,
		log.FieldTransaction, txn.ID,
		"next_due", t.NextDueDate.Format(time.DateOnly),
		"active", t.Active)
	e := events.Event{
		ID:         id.New(),
		Type:       events.RecurringMaterialized,
		PartyID:    t.PartyID,
		SubjectID:  t.ID,
		OccurredAt: s.now().UTC(),
		Data: map[string]any{
			"transaction_id": txn.ID,
			"due_date":       due.Format(time.DateOnly),
			"next_due_date":  t.NextDueDate.Format(time.DateOnly),
		},
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.WarnContext(ctx, "event publish failed", log.FieldEvent, string(e.Type), log.FieldError, err)
	}
	return txn, nil
}

// RunResult summarizes one ProcessDue pass.
type RunResult struct {
	Posted []model.Transaction
	Failed map[string]error // template id -> first failure
}

// ProcessDue materializes every active template due on or before asOf,
// catching up on missed occurrences. A failing template is logged and
// skipped; only failure to list templates is returned.
func (s *Service) ProcessDue(ctx context.Context, asOf time.Time) (RunResult, error) {
	asOf = day(asOf)
	res := RunResult{Failed: map[string]error{}}

	var due []model.RecurringTemplate
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		due, err = tx.ListDueTemplates(ctx, asOf)
		return err
	})
	if err != nil {
		return res, fmt.Errorf("list due templates: %w", err)
	}

	for _, t := range due {
		next := t.NextDueDate
		for i := 0; i < maxCatchUp && !next.After(asOf); i++ {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			txn, err := s.Materialize(ctx, t.ID, next, nil)
			if err != nil {
				s.logger.WarnContext(ctx, "recurring template skipped",
					log.FieldTemplate, t.ID, log.FieldError, err)
				res.Failed[t.ID] = err
				break
			}
			res.Posted = append(res.Posted, txn)

			var stop bool
			next, stop = s.advanced(ctx, t.ID)
			if stop {
				break
			}
		}
	}

	s.logger.InfoContext(ctx, "recurring run finished",
		"as_of", asOf.Format(time.DateOnly),
		log.FieldCount, len(res.Posted),
		"failed", len(res.Failed))
	return res, nil
}

// advanced rereads the template after a run; stop is true once it can no
// longer fire.
func (s *Service) advanced(ctx context.Context, templateID string) (next time.Time, stop bool) {
	var t model.RecurringTemplate
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		t, err = tx.GetTemplate(ctx, templateID)
		return err
	})
	if err != nil || !t.Active {
		return time.Time{}, true
	}
	return t.NextDueDate, false
}

// Occurrence is one projected firing of a template.
type Occurrence struct {
	TemplateID  string
	Description string
	Direction   model.TemplateDirection
	CategoryID  string
	Due         time.Time
	Date        time.Time
	Amount      money.Amount
	Priority    model.Priority
}

// Project lists the occurrences of the party's active templates in period,
// ordered by date. Seasonal templates without a resolved range are left out.
func (s *Service) Project(ctx context.Context, partyID string, period model.Period) ([]Occurrence, error) {
	var templates []model.RecurringTemplate
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		templates, err = tx.ListActiveTemplates(ctx, partyID)
		return err
	})
	if err != nil {
		return nil, err
	}

	var out []Occurrence
	for _, t := range templates {
		for _, due := range Occurrences(t, period) {
			date, err := s.resolveDate(t, due)
			if err != nil {
				s.logger.DebugContext(ctx, "occurrence not projected", log.FieldTemplate, t.ID, log.FieldError, err)
				continue
			}
			out = append(out, Occurrence{
				TemplateID:  t.ID,
				Description: t.Description,
				Direction:   t.Direction,
				CategoryID:  t.CategoryID,
				Due:         due,
				Date:        date,
				Amount:      ResolveAmount(t, nil),
				Priority:    t.Priority,
			})
		}
	}
	sortOccurrences(out)
	return out, nil
}

func (s *Service) resolveDate(t model.RecurringTemplate, due time.Time) (time.Time, error) {
	if t.Flexibility == model.FlexSeasonal {
		if s.seasons == nil {
			return time.Time{}, model.NewEntityError("template", t.ID, ErrUnresolvedSeason)
		}
		first, last, ok := s.seasons(t, due)
		if !ok {
			return time.Time{}, model.NewEntityError("template", t.ID, ErrUnresolvedSeason)
		}
		t.Flexibility, t.RangeStart, t.RangeEnd = model.FlexCustomRange, first, last
	}
	return ResolveDate(t, due)
}

// Template returns the template with id.
func (s *Service) Template(ctx context.Context, templateID string) (model.RecurringTemplate, error) {
	var t model.RecurringTemplate
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		t, err = getTemplate(ctx, tx, templateID)
		return err
	})
	return t, err
}

func getTemplate(ctx context.Context, tx store.Tx, templateID string) (model.RecurringTemplate, error) {
	t, err := tx.GetTemplate(ctx, templateID)
	if errors.Is(err, store.ErrNotFound) {
		return t, model.NewEntityError("template", templateID, err)
	}
	return t, err
}

// occurrenceKey dedupes repeated materialization of the same due date.
func occurrenceKey(templateID string, due time.Time) string {
	return "recurring:" + templateID + ":" + due.Format(time.DateOnly)
}
