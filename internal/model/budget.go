package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/pocketledger/internal/money"
)

// Budget is a party's plan for one month. It owns its CategoryBudgets.
type Budget struct {
	ID                  string
	PartyID             string
	Period              Period
	Active              bool
	RolloverNeedsRecalc bool // set when a posting touches an already-calculated earlier month
	CreatedAt           time.Time
}

// RolloverPolicy selects which part of the period result carries forward.
type RolloverPolicy string

const (
	RolloverNone      RolloverPolicy = "NONE"
	RolloverRemaining RolloverPolicy = "REMAINING" // surplus only
	RolloverOverspend RolloverPolicy = "OVERSPEND" // deficit only
	RolloverBoth      RolloverPolicy = "BOTH"
)

// Valid reports whether p is a known policy.
func (p RolloverPolicy) Valid() bool {
	switch p {
	case RolloverNone, RolloverRemaining, RolloverOverspend, RolloverBoth:
		return true
	}
	return false
}

// PolicyFromFlags maps the legacy rollover_unused / rollover_overspend flags.
func PolicyFromFlags(unused, overspend bool) RolloverPolicy {
	switch {
	case unused && overspend:
		return RolloverBoth
	case unused:
		return RolloverRemaining
	case overspend:
		return RolloverOverspend
	}
	return RolloverNone
}

// RolloverState tracks whether a period's rollover has been computed.
type RolloverState string

const (
	StateNotCalculated RolloverState = "NOT_CALCULATED"
	StateCalculated    RolloverState = "CALCULATED"
)

// DefaultRolloverPercentage is the share of a surplus that carries forward.
var DefaultRolloverPercentage = decimal.NewFromInt(100)

// CategoryBudget allocates part of a Budget to one category account.
type CategoryBudget struct {
	BudgetID        string
	CategoryID      string
	BudgetAmount    money.Amount
	RolloverEnabled bool
	Policy          RolloverPolicy
	// RolloverPercentage (0..100) scales a positive carry.
	RolloverPercentage decimal.Decimal
	// MaxRolloverAmount caps |rollover|; zero means uncapped.
	MaxRolloverAmount money.Amount
	// RolloverExpiryMonths drops a carry older than this many months; zero means never.
	RolloverExpiryMonths int

	RolloverAmount money.Amount // computed result carried into the next period
	RolloverOrigin Period       // month the carried amount was first earned
	State          RolloverState
	CalculatedAt   time.Time
	UpdatedAt      time.Time
}

// EffectivePolicy returns the policy in force, NONE when rollover is disabled.
func (cb CategoryBudget) EffectivePolicy() RolloverPolicy {
	if !cb.RolloverEnabled || !cb.Policy.Valid() {
		return RolloverNone
	}
	return cb.Policy
}

// Calculated reports whether the period's rollover has been computed.
func (cb CategoryBudget) Calculated() bool {
	return cb.State == StateCalculated
}

// RolloverCalculation is the immutable audit record of one computation.
type RolloverCalculation struct {
	ID               string
	BudgetID         string
	CategoryID       string
	Period           Period
	BaseBudget       money.Amount
	PreviousRollover money.Amount
	EffectiveBudget  money.Amount
	SpentAmount      money.Amount
	RawRollover      money.Amount
	RolloverAmount   money.Amount
	Policy           RolloverPolicy
	Origin           Period
	Reason           string
	CreatedAt        time.Time
}

// ChangeType says why a stored rollover amount changed.
type ChangeType string

const (
	ChangeRecalculation     ChangeType = "recalculation"
	ChangeManualOverride    ChangeType = "manual_override"
	ChangeTransactionUpdate ChangeType = "transaction_update"
	ChangeBudgetUpdate      ChangeType = "budget_update"
)

// RolloverChangeLog is an append-only record of a rollover amount change.
type RolloverChangeLog struct {
	ID         string
	BudgetID   string
	CategoryID string
	Period     Period
	ChangeType ChangeType
	OldAmount  money.Amount
	NewAmount  money.Amount
	Actor      string
	Reason     string
	CreatedAt  time.Time
}
