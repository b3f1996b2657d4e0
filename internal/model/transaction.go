package model

import (
	"time"

	"github.com/cleared-dev/pocketledger/internal/money"
)

// TransactionStatus is the lifecycle state of a transaction.
type TransactionStatus string

const (
	StatusActive TransactionStatus = "ACTIVE"
	StatusVoided TransactionStatus = "VOIDED"
)

// TransactionKind records which intent produced a transaction.
type TransactionKind string

const (
	KindSimple   TransactionKind = "SIMPLE"
	KindTransfer TransactionKind = "TRANSFER"
	KindSplit    TransactionKind = "SPLIT"
	KindShared   TransactionKind = "SHARED"
)

// Transaction is the header of a ledger event. Its value lives in Entries.
type Transaction struct {
	ID                  string
	PartyID             string
	Date                time.Time
	Description         string
	ExternalID          string // dedupe key for imports
	RecurringTemplateID string
	Kind                TransactionKind
	Status              TransactionStatus
	Entries             []Entry
	CreatedAt           time.Time
}

// Entry is one signed posting: positive = debit, negative = credit.
type Entry struct {
	ID            string // "<txn id>#a", "<txn id>#b", ...
	TransactionID string
	AccountID     string
	Amount        money.Amount
	Reportable    bool // false for legs excluded from spending reports
	Memo          string
}

// Balance returns the sum of all entry amounts. Zero for a balanced transaction.
func (t Transaction) Balance() money.Amount {
	var sum money.Amount
	for _, e := range t.Entries {
		sum += e.Amount
	}
	return sum
}

// Total returns the sum of the debit side.
func (t Transaction) Total() money.Amount {
	var sum money.Amount
	for _, e := range t.Entries {
		if e.Amount > 0 {
			sum += e.Amount
		}
	}
	return sum
}

// IsActive reports whether the transaction's entries count toward balances.
func (t Transaction) IsActive() bool {
	return t.Status == StatusActive
}

// AccountIDs returns the distinct accounts touched, in entry order.
func (t Transaction) AccountIDs() []string {
	seen := make(map[string]bool, len(t.Entries))
	var ids []string
	for _, e := range t.Entries {
		if !seen[e.AccountID] {
			seen[e.AccountID] = true
			ids = append(ids, e.AccountID)
		}
	}
	return ids
}
