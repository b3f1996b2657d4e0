package journal

import (
	"time"

	"github.com/cleared-dev/pocketledger/internal/model"
	"github.com/cleared-dev/pocketledger/internal/money"
	"github.com/cleared-dev/pocketledger/internal/share"
	"github.com/cleared-dev/pocketledger/internal/split"
)

// Intent is one of Simple, Transfer, Split or Shared.
type Intent interface {
	Kind() model.TransactionKind
	header() Header
}

// Header carries the fields common to every intent.
type Header struct {
	PartyID             string
	Date                time.Time // zero = today
	Description         string
	ExternalID          string // dedupe key; "" = none
	RecurringTemplateID string
}

func (h Header) header() Header { return h }

// Direction says which way a simple intent moves money.
type Direction string

const (
	DirectionExpense Direction = "expense"
	DirectionIncome  Direction = "income"
)

// Simple is a single expense paid from AccountID, or income received into it.
type Simple struct {
	Header
	Direction  Direction // "" = expense
	CategoryID string
	AccountID  string // "" = party default
	Amount     money.Amount
}

// Transfer moves Amount between two of the party's asset or liability accounts.
type Transfer struct {
	Header
	FromAccountID string
	ToAccountID   string
	Amount        money.Amount
}

// Split is one payment divided across several expense categories.
type Split struct {
	Header
	SourceAccountID string // "" = party default
	Total           money.Amount
	Lines           []split.Line
}

// Shared is an expense partly owed back by others.
type Shared struct {
	Header
	SourceAccountID string // "" = party default
	CategoryID      string
	Total           money.Amount
	Share           share.Config
}

func (Simple) Kind() model.TransactionKind   { return model.KindSimple }
func (Transfer) Kind() model.TransactionKind { return model.KindTransfer }
func (Split) Kind() model.TransactionKind    { return model.KindSplit }
func (Shared) Kind() model.TransactionKind   { return model.KindShared }
