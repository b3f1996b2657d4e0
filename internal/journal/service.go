// Package journal turns transaction intents into balanced ledger postings.
package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cleared-dev/pocketledger/internal/events"
	"github.com/cleared-dev/pocketledger/internal/id"
	"github.com/cleared-dev/pocketledger/internal/log"
	"github.com/cleared-dev/pocketledger/internal/model"
	"github.com/cleared-dev/pocketledger/internal/money"
	"github.com/cleared-dev/pocketledger/internal/store"
)

var (
	ErrUnbalancedTransaction = errors.New("unbalanced transaction")
	ErrNoDefaultAccount      = errors.New("no default account configured")
	ErrAccountNotOwned       = errors.New("account not owned by party")
	ErrAccountTypeMismatch   = errors.New("account type mismatch")
	ErrZeroAmount            = errors.New("zero amount")
	ErrCategoryInactive      = errors.New("category inactive")
	ErrDuplicateTransaction  = errors.New("duplicate transaction")
	ErrTransactionVoided     = errors.New("transaction already voided")
	ErrSameAccount           = errors.New("transfer source and destination are the same account")
	ErrInvalidEntries        = errors.New("invalid entries")
)

// ReimbursableAccountName is the asset account created on first shared expense
// when the party has none designated.
const ReimbursableAccountName = "Reimbursable"

// Service posts and voids transactions.
type Service struct {
	store     store.Store
	publisher events.Publisher
	logger    *log.Logger
	now       func() time.Time
}

// NewService creates a journal Service. publisher and logger may be nil.
func NewService(st store.Store, publisher events.Publisher, logger *log.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:     st,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentJournal),
		now:       time.Now,
	}
}

// SetClock replaces the time source used for default dates and the
// current-period check.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Post validates intent, writes the transaction and its entries in one unit
// of work, and publishes a TransactionPosted event after commit.
func (s *Service) Post(ctx context.Context, intent Intent) (model.Transaction, error) {
	var txn model.Transaction
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		txn, err = s.PostTx(ctx, tx, intent)
		return err
	})
	if err != nil {
		return model.Transaction{}, err
	}
	s.Posted(ctx, txn)
	return txn, nil
}

// Posted logs and publishes a committed transaction. Callers of PostTx
// invoke it once their unit of work has committed.
func (s *Service) Posted(ctx context.Context, txn model.Transaction) {
	s.logger.InfoContext(ctx, "transaction posted",
		log.FieldTransaction, txn.ID,
		log.FieldParty, txn.PartyID,
		log.FieldKind, string(txn.Kind),
		log.FieldAmount, txn.Total().String())
	s.publish(ctx, events.TransactionPosted, txn)
}

// PostTx is Post inside a caller-owned unit of work. No event is published.
func (s *Service) PostTx(ctx context.Context, tx store.Tx, intent Intent) (model.Transaction, error) {
	txn, accounts, err := s.build(ctx, tx, intent)
	if err != nil {
		return model.Transaction{}, err
	}

	if verrs := ValidateTransaction(txn, accounts); len(verrs) > 0 {
		return model.Transaction{}, validationFailure(verrs)
	}

	if err := tx.InsertTransaction(ctx, txn); err != nil {
		return model.Transaction{}, err
	}
	if err := s.markRecalc(ctx, tx, txn); err != nil {
		return model.Transaction{}, err
	}
	return txn, nil
}

// Void marks a transaction VOIDED. Its entries stop counting toward
// balances and spending; the rows are kept.
func (s *Service) Void(ctx context.Context, partyID, txnID string) (model.Transaction, error) {
	var txn model.Transaction
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		txn, err = tx.GetTransaction(ctx, txnID)
		if err != nil {
			return err
		}
		if txn.PartyID != partyID {
			return fmt.Errorf("transaction %s: %w", txnID, store.ErrNotFound)
		}
		if !txn.IsActive() {
			return model.NewEntityError("transaction", txnID, ErrTransactionVoided)
		}
		if err := tx.SetTransactionStatus(ctx, txnID, model.StatusVoided); err != nil {
			return err
		}
		txn.Status = model.StatusVoided
		return s.markRecalc(ctx, tx, txn)
	})
	if err != nil {
		return model.Transaction{}, err
	}

	s.logger.InfoContext(ctx, "transaction voided", log.FieldTransaction, txn.ID, log.FieldParty, partyID)
	s.publish(ctx, events.TransactionVoided, txn)
	return txn, nil
}

// Balance returns the debit-positive sum of the account's active entries
// dated on or before asOf. A zero asOf means all time.
func (s *Service) Balance(ctx context.Context, partyID, accountID string, asOf time.Time) (money.Amount, error) {
	var bal money.Amount
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		a, err := tx.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if a.PartyID != partyID {
			return model.NewEntityError("account", accountID, ErrAccountNotOwned)
		}
		bal, err = tx.SumEntries(ctx, store.EntrySum{AccountID: accountID, To: asOf})
		return err
	})
	return bal, err
}

// markRecalc flags the budget of an earlier, already-calculated month whose
// spending this transaction changes.
func (s *Service) markRecalc(ctx context.Context, tx store.Tx, txn model.Transaction) error {
	period := model.PeriodOf(txn.Date)
	if !period.Before(model.PeriodOf(s.now())) {
		return nil
	}
	budget, err := tx.FindBudget(ctx, txn.PartyID, period)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if budget.RolloverNeedsRecalc {
		return nil
	}

	for _, accountID := range txn.AccountIDs() {
		cb, err := tx.GetCategoryBudget(ctx, budget.ID, accountID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if cb.Calculated() {
			s.logger.DebugContext(ctx, "budget flagged for rollover recalculation",
				log.FieldBudget, budget.ID, log.FieldPeriod, period.String())
			return tx.SetBudgetRecalc(ctx, budget.ID, true)
		}
	}
	return nil
}

func (s *Service) publish(ctx context.Context, typ events.Type, txn model.Transaction) {
	e := events.Event{
		ID:         id.New(),
		Type:       typ,
		PartyID:    txn.PartyID,
		SubjectID:  txn.ID,
		OccurredAt: s.now().UTC(),
		Data: map[string]any{
			"kind":   string(txn.Kind),
			"date":   txn.Date.Format(dateFormat),
			"amount": txn.Total().String(),
		},
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.WarnContext(ctx, "event publish failed",
			log.FieldEvent, string(typ), log.FieldTransaction, txn.ID, log.FieldError, err)
	}
}
