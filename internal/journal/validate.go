package journal

import (
	"fmt"
	"strings"

	"github.com/cleared-dev/pocketledger/internal/id"
	"github.com/cleared-dev/pocketledger/internal/model"
	"github.com/cleared-dev/pocketledger/internal/money"
)

// Invariants checked by ValidateTransaction.
const (
	InvBalanced     = 1 // entries sum to zero within one cent
	InvMinEntries   = 2 // at least two entries
	InvNonZero      = 3 // no zero-amount entry
	InvAccountOwned = 4 // every account exists and belongs to the transaction's party
	InvEntryIDs     = 5 // entry IDs unique and derived from the transaction ID
	InvDated        = 6 // transaction has a date
)

// ValidationError describes a single invariant violation.
type ValidationError struct {
	Invariant     int
	TransactionID string
	EntryID       string
	Description   string
}

func (e ValidationError) Error() string {
	ref := e.TransactionID
	if e.EntryID != "" {
		ref = e.EntryID
	}
	return fmt.Sprintf("invariant %d [%s]: %s", e.Invariant, ref, e.Description)
}

// AccountChecker resolves an account referenced by an entry.
type AccountChecker interface {
	Account(id string) (model.Account, bool)
}

// accountSet is an AccountChecker over accounts already loaded for a posting.
type accountSet map[string]model.Account

func (s accountSet) Account(id string) (model.Account, bool) {
	a, ok := s[id]
	return a, ok
}

func (s accountSet) add(a model.Account) model.Account {
	s[a.ID] = a
	return a
}

// ValidateTransaction enforces the posting invariants on a fully built transaction.
func ValidateTransaction(txn model.Transaction, accounts AccountChecker) []ValidationError {
	var errs []ValidationError
	fail := func(inv int, entryID, format string, args ...any) {
		errs = append(errs, ValidationError{
			Invariant:     inv,
			TransactionID: txn.ID,
			EntryID:       entryID,
			Description:   fmt.Sprintf(format, args...),
		})
	}

	if bal := txn.Balance(); bal.Abs() > money.Tolerance {
		fail(InvBalanced, "", "entries sum to %s, want 0.00", bal)
	}

	if len(txn.Entries) < 2 {
		fail(InvMinEntries, "", "need at least 2 entries, got %d", len(txn.Entries))
	}

	if txn.Date.IsZero() {
		fail(InvDated, "", "transaction has no date")
	}

	seen := make(map[string]bool, len(txn.Entries))
	for _, e := range txn.Entries {
		if e.Amount.IsZero() {
			fail(InvNonZero, e.ID, "entry amount is zero")
		}

		a, ok := accounts.Account(e.AccountID)
		switch {
		case !ok:
			fail(InvAccountOwned, e.ID, "unknown account %s", e.AccountID)
		case a.PartyID != txn.PartyID:
			fail(InvAccountOwned, e.ID, "account %s belongs to another party", e.AccountID)
		}

		if seen[e.ID] {
			fail(InvEntryIDs, e.ID, "duplicate entry ID")
		}
		seen[e.ID] = true
		if e.TransactionID != txn.ID || id.TransactionOf(e.ID) != txn.ID {
			fail(InvEntryIDs, e.ID, "entry does not belong to transaction %s", txn.ID)
		}
	}

	return errs
}

// validationFailure folds violations into one error wrapping the sentinel
// for the first violated invariant.
func validationFailure(verrs []ValidationError) error {
	kind := ErrUnbalancedTransaction
	switch verrs[0].Invariant {
	case InvNonZero:
		kind = ErrZeroAmount
	case InvAccountOwned:
		kind = ErrAccountNotOwned
	case InvEntryIDs, InvDated:
		kind = ErrInvalidEntries
	}
	msgs := make([]string, len(verrs))
	for i, ve := range verrs {
		msgs[i] = ve.Error()
	}
	return fmt.Errorf("%w: %s", kind, strings.Join(msgs, "; "))
}
