package recurring

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/cleared-dev/pocketledger/internal/model"
	"github.com/cleared-dev/pocketledger/internal/money"
)

// Validate checks a template's schedule and amount fields. All problems are
// reported together, each wrapping ErrInvalidTemplate.
func Validate(t model.RecurringTemplate) error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidTemplate}, args...)...))
	}

	if t.PartyID == "" {
		bad("party is required")
	}
	if t.CategoryID == "" {
		bad("category is required")
	}
	if strings.TrimSpace(t.Description) == "" {
		bad("description is required")
	}
	switch t.Direction {
	case model.DirectionExpense, model.DirectionIncome:
	default:
		bad("direction %q", t.Direction)
	}
	switch t.Frequency {
	case model.FrequencyDaily, model.FrequencyWeekly, model.FrequencyBiweekly,
		model.FrequencyFourWeekly, model.FrequencyMonthly, model.FrequencyYearly:
	default:
		bad("frequency %q", t.Frequency)
	}

	switch t.Flexibility {
	case "", model.FlexExact, model.FlexSeasonal, model.FlexEarlyMonth, model.FlexMidMonth,
		model.FlexLateMonth, model.FlexWeekday, model.FlexWeekend, model.FlexMonthRange:
	case model.FlexCustomRange:
		if t.RangeStart < 1 || t.RangeEnd > 31 || t.RangeEnd < t.RangeStart {
			bad("custom range %d..%d", t.RangeStart, t.RangeEnd)
		}
	default:
		bad("flexibility %q", t.Flexibility)
	}
	switch t.Preference {
	case "", model.PreferEarliest, model.PreferLatest, model.PreferMid:
	default:
		bad("preference %q", t.Preference)
	}

	if t.IsVariable {
		if t.EstimatedMin.IsNegative() || t.EstimatedMax < t.EstimatedMin || !t.EstimatedMax.IsPositive() {
			bad("estimate range %s..%s", t.EstimatedMin, t.EstimatedMax)
		}
	} else if !t.Amount.IsPositive() {
		errs = append(errs, fmt.Errorf("%w: amount %s", money.ErrInvalidAmount, t.Amount))
	}

	if t.StartDate.IsZero() {
		bad("start date is required")
	}
	if !t.EndDate.IsZero() && t.EndDate.Before(t.StartDate) {
		bad("end date before start date")
	}
	return errors.Join(errs...)
}

func sortOccurrences(out []Occurrence) {
	slices.SortStableFunc(out, func(a, b Occurrence) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return strings.Compare(a.TemplateID, b.TemplateID)
	})
}
