package recurring

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/pocketledger/internal/model"
	"github.com/cleared-dev/pocketledger/internal/money"
)

var half = decimal.NewFromFloat(0.5)

// ResolveDate turns a due date into the posting date according to the
// template's flexibility. SEASONAL templates must be resolved to a day
// range first and fail with ErrUnresolvedSeason here.
func ResolveDate(t model.RecurringTemplate, due time.Time) (time.Time, error) {
	due = day(due)
	switch t.Flexibility {
	case model.FlexExact, "":
		return due, nil
	case model.FlexCustomRange, model.FlexMonthRange:
		first, last := t.RangeStart, t.RangeEnd
		if t.Flexibility == model.FlexMonthRange && first == 0 && last == 0 {
			first, last = 1, daysIn(due)
		}
		if first < 1 || last < first {
			return time.Time{}, fmt.Errorf("%w: range %d..%d", ErrInvalidTemplate, first, last)
		}
		first, last = clampDay(due, first), clampDay(due, last)
		var d int
		switch t.Preference {
		case model.PreferLatest:
			d = last
		case model.PreferMid:
			d = (first + last) / 2
		default:
			d = first
		}
		return onDay(due, d), nil
	case model.FlexSeasonal:
		return time.Time{}, model.NewEntityError("template", t.ID, ErrUnresolvedSeason)
	case model.FlexEarlyMonth:
		return onDay(due, 1), nil
	case model.FlexMidMonth:
		return onDay(due, 15), nil
	case model.FlexLateMonth:
		return onDay(due, 28), nil
	case model.FlexWeekday:
		for weekend(due) {
			due = due.AddDate(0, 0, 1)
		}
		return due, nil
	case model.FlexWeekend:
		for !weekend(due) {
			due = due.AddDate(0, 0, 1)
		}
		return due, nil
	}
	return time.Time{}, fmt.Errorf("%w: flexibility %q", ErrInvalidTemplate, t.Flexibility)
}

// ResolveAmount returns actual when given, the midpoint of the estimate
// range for variable templates, and the fixed amount otherwise.
func ResolveAmount(t model.RecurringTemplate, actual *money.Amount) money.Amount {
	if actual != nil {
		return *actual
	}
	if t.IsVariable {
		return (t.EstimatedMin + t.EstimatedMax).MulDecimal(half)
	}
	return t.Amount
}

// NextDue advances from by one frequency unit. Monthly and yearly
// schedules keep the start date's day of month, clamped to short months.
func NextDue(t model.RecurringTemplate, from time.Time) time.Time {
	from = day(from)
	switch t.Frequency {
	case model.FrequencyDaily:
		return from.AddDate(0, 0, 1)
	case model.FrequencyWeekly:
		return from.AddDate(0, 0, 7)
	case model.FrequencyBiweekly:
		return from.AddDate(0, 0, 14)
	case model.FrequencyFourWeekly:
		return from.AddDate(0, 0, 28)
	case model.FrequencyYearly:
		return addMonths(from, 12, anchorDay(t, from))
	}
	return addMonths(from, 1, anchorDay(t, from))
}

// Occurrences lists the due dates of t that fall in period, starting at
// the template's next due date and stopping at its end date.
func Occurrences(t model.RecurringTemplate, period model.Period) []time.Time {
	if !t.Active || t.NextDueDate.IsZero() {
		return nil
	}
	var out []time.Time
	due := day(t.NextDueDate)
	for i := 0; i < 400 && !due.After(period.End()); i++ {
		if !t.EndDate.IsZero() && due.After(day(t.EndDate)) {
			break
		}
		if period.Contains(due) {
			out = append(out, due)
		}
		due = NextDue(t, due)
	}
	return out
}

func anchorDay(t model.RecurringTemplate, from time.Time) int {
	if !t.StartDate.IsZero() {
		return t.StartDate.Day()
	}
	return from.Day()
}

func addMonths(from time.Time, n, anchor int) time.Time {
	first := time.Date(from.Year(), from.Month()+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	return onDay(first, anchor)
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func daysIn(t time.Time) int {
	return model.PeriodOf(t).Days()
}

func clampDay(t time.Time, d int) int {
	return min(d, daysIn(t))
}

func onDay(t time.Time, d int) time.Time {
	return time.Date(t.Year(), t.Month(), clampDay(t, d), 0, 0, 0, 0, time.UTC)
}

func weekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}
