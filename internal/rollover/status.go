package rollover

import "github.com/cleared-dev/pocketledger/internal/model"

// Status classifies spending against the effective budget.
type Status string

const (
	UnderBudget      Status = "under_budget"
	ApproachingLimit Status = "approaching_limit"
	OverBudget       Status = "over_budget"
)

// DefaultThreshold is the percent of the effective budget at which spending
// counts as approaching the limit.
const DefaultThreshold = 75

// StatusOf classifies an audit record. thresholdPct outside 1..99 uses
// DefaultThreshold.
func StatusOf(c model.RolloverCalculation, thresholdPct int) Status {
	if thresholdPct <= 0 || thresholdPct >= 100 {
		thresholdPct = DefaultThreshold
	}
	effective, spent := c.EffectiveBudget.Cents(), c.SpentAmount.Cents()
	if effective <= 0 {
		if spent > 0 {
			return OverBudget
		}
		return UnderBudget
	}
	switch {
	case spent >= effective:
		return OverBudget
	case spent*100 >= effective*int64(thresholdPct):
		return ApproachingLimit
	}
	return UnderBudget
}
