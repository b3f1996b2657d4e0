package model

import "time"

// AccountType classifies accounts in a party's chart.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeIncome    AccountType = "INCOME"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Valid reports whether t is one of the four known account types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeIncome, AccountTypeExpense:
		return true
	}
	return false
}

// HoldsValue reports whether the account is a balance-sheet account
// (asset or liability) that money can be moved in and out of.
func (t AccountType) HoldsValue() bool {
	return t == AccountTypeAsset || t == AccountTypeLiability
}

// IsCategory reports whether the account is an income or expense category.
func (t AccountType) IsCategory() bool {
	return t == AccountTypeIncome || t == AccountTypeExpense
}

// Account is a typed bucket of value owned by a Party.
// Type is immutable once created.
type Account struct {
	ID        string
	PartyID   string
	Name      string
	Type      AccountType
	ParentID  string // "" = top-level
	Active    bool
	CreatedAt time.Time
}

// PartyType distinguishes individual users from households.
type PartyType string

const (
	PartyTypeUser      PartyType = "USER"
	PartyTypeHousehold PartyType = "HOUSEHOLD"
)

// Party is the economic actor that owns accounts and transactions.
type Party struct {
	ID                    string
	Type                  PartyType
	Name                  string
	DefaultAccountID      string // source when a posting names none
	ReimbursableAccountID string // receives the reimbursable leg of shared expenses
	CreatedAt             time.Time
}
