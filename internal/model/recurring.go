package model

import (
	"time"

	"github.com/cleared-dev/pocketledger/internal/money"
)

// Frequency is how often a recurring template fires.
type Frequency string

const (
	FrequencyDaily      Frequency = "DAILY"
	FrequencyWeekly     Frequency = "WEEKLY"
	FrequencyBiweekly   Frequency = "BIWEEKLY"
	FrequencyFourWeekly Frequency = "FOUR_WEEKLY"
	FrequencyMonthly    Frequency = "MONTHLY"
	FrequencyYearly     Frequency = "YEARLY"
)

// DateFlexibility controls how a due date becomes the posted date.
type DateFlexibility string

const (
	FlexExact       DateFlexibility = "EXACT"
	FlexCustomRange DateFlexibility = "CUSTOM_RANGE"
	FlexMonthRange  DateFlexibility = "MONTH_RANGE"
	FlexSeasonal    DateFlexibility = "SEASONAL"
	FlexEarlyMonth  DateFlexibility = "EARLY_MONTH"
	FlexMidMonth    DateFlexibility = "MID_MONTH"
	FlexLateMonth   DateFlexibility = "LATE_MONTH"
	FlexWeekday     DateFlexibility = "WEEKDAY"
	FlexWeekend     DateFlexibility = "WEEKEND"
)

// DatePreference picks a day inside a flexible range.
type DatePreference string

const (
	PreferEarliest DatePreference = "earliest"
	PreferLatest   DatePreference = "latest"
	PreferMid      DatePreference = "mid"
)

// Priority orders expenses in the allocation planner.
type Priority string

const (
	PriorityCritical Priority = "CRITICAL"
	PriorityHigh     Priority = "HIGH"
	PriorityMedium   Priority = "MEDIUM"
	PriorityLow      Priority = "LOW"
)

// Rank returns a sortable weight; higher is more urgent. Unknown values rank as MEDIUM.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityLow:
		return 1
	}
	return 2
}

// TemplateDirection says whether a template is money out or money in.
type TemplateDirection string

const (
	DirectionExpense TemplateDirection = "EXPENSE"
	DirectionIncome  TemplateDirection = "INCOME"
)

// RecurringTemplate describes a transaction that repeats on a schedule.
// Templates are deactivated, never deleted, so generated transactions keep their link.
type RecurringTemplate struct {
	ID              string
	PartyID         string
	Description     string
	Direction       TemplateDirection
	CategoryID      string
	SourceAccountID string // "" = party default

	Amount       money.Amount
	IsVariable   bool
	EstimatedMin money.Amount
	EstimatedMax money.Amount

	Frequency   Frequency
	Flexibility DateFlexibility
	RangeStart  int // day of month, for range modes
	RangeEnd    int
	Preference  DatePreference
	Priority    Priority

	StartDate   time.Time
	EndDate     time.Time // zero = open-ended
	NextDueDate time.Time
	LastRunDate time.Time // zero = never run

	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
