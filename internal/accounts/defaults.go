package accounts

import "github.com/cleared-dev/pocketledger/internal/model"

// Role marks a chart entry the party uses implicitly.
type Role string

const (
	RoleNone         Role = ""
	RoleDefault      Role = "default"      // source when a posting names none
	RoleReimbursable Role = "reimbursable" // receives shared-expense reimbursements
)

// ChartEntry is one account in a chart template. Keys are local to the
// chart and only used to resolve parents.
type ChartEntry struct {
	Key       string
	Name      string
	Type      model.AccountType
	ParentKey string
	Role      Role
}

// DefaultChart returns the personal chart a new party starts with.
func DefaultChart() []ChartEntry {
	return []ChartEntry{
		{Key: "cash", Name: "Cash", Type: model.AccountTypeAsset, Role: RoleDefault},
		{Key: "checking", Name: "Checking", Type: model.AccountTypeAsset},
		{Key: "savings", Name: "Savings", Type: model.AccountTypeAsset},
		{Key: "credit_card", Name: "Credit Card", Type: model.AccountTypeLiability},
		{Key: "reimbursable", Name: "Reimbursable", Type: model.AccountTypeAsset, Role: RoleReimbursable},
		{Key: "salary", Name: "Salary", Type: model.AccountTypeIncome},
		{Key: "groceries", Name: "Groceries", Type: model.AccountTypeExpense},
		{Key: "dining", Name: "Dining", Type: model.AccountTypeExpense},
		{Key: "housing", Name: "Housing", Type: model.AccountTypeExpense},
		{Key: "utilities", Name: "Utilities", Type: model.AccountTypeExpense},
		{Key: "transportation", Name: "Transportation", Type: model.AccountTypeExpense},
		{Key: "clothing", Name: "Clothing", Type: model.AccountTypeExpense},
		{Key: "uncategorized", Name: "Uncategorized", Type: model.AccountTypeExpense},
	}
}
