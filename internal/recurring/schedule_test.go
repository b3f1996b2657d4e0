package recurring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/pocketledger/internal/model"
	"github.com/cleared-dev/pocketledger/internal/money"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func amt(s string) money.Amount { return money.MustParse(s) }

func TestResolveDate(t *testing.T) {
	wed := date(2025, 3, 5)
	tpl := func(flex model.DateFlexibility, first, last int, pref model.DatePreference) model.RecurringTemplate {
		return model.RecurringTemplate{ID: "t1", Flexibility: flex, RangeStart: first, RangeEnd: last, Preference: pref}
	}
	tests := []struct {
		name string
		tpl  model.RecurringTemplate
		due  time.Time
		want time.Time
	}{
		{"exact", tpl(model.FlexExact, 0, 0, ""), wed, wed},
		{"exact drops clock", tpl(model.FlexExact, 0, 0, ""), wed.Add(15 * time.Hour), wed},
		{"custom earliest", tpl(model.FlexCustomRange, 10, 20, model.PreferEarliest), wed, date(2025, 3, 10)},
		{"custom latest", tpl(model.FlexCustomRange, 10, 20, model.PreferLatest), wed, date(2025, 3, 20)},
		{"custom mid", tpl(model.FlexCustomRange, 10, 20, model.PreferMid), wed, date(2025, 3, 15)},
		{"custom mid rounds down", tpl(model.FlexCustomRange, 10, 13, model.PreferMid), wed, date(2025, 3, 11)},
		{"custom default earliest", tpl(model.FlexCustomRange, 10, 20, ""), wed, date(2025, 3, 10)},
		{"custom clamps short month", tpl(model.FlexCustomRange, 25, 31, model.PreferLatest), date(2025, 2, 5), date(2025, 2, 28)},
		{"custom mid short month", tpl(model.FlexCustomRange, 25, 31, model.PreferMid), date(2025, 2, 5), date(2025, 2, 26)},
		{"month range whole month latest", tpl(model.FlexMonthRange, 0, 0, model.PreferLatest), wed, date(2025, 3, 31)},
		{"month range whole month mid", tpl(model.FlexMonthRange, 0, 0, model.PreferMid), wed, date(2025, 3, 16)},
		{"month range bounded", tpl(model.FlexMonthRange, 5, 9, model.PreferLatest), wed, date(2025, 3, 9)},
		{"early month", tpl(model.FlexEarlyMonth, 0, 0, ""), wed, date(2025, 3, 1)},
		{"mid month", tpl(model.FlexMidMonth, 0, 0, ""), wed, date(2025, 3, 15)},
		{"late month", tpl(model.FlexLateMonth, 0, 0, ""), wed, date(2025, 3, 28)},
		{"weekday from saturday", tpl(model.FlexWeekday, 0, 0, ""), date(2025, 3, 1), date(2025, 3, 3)},
		{"weekday unchanged", tpl(model.FlexWeekday, 0, 0, ""), wed, wed},
		{"weekend from wednesday", tpl(model.FlexWeekend, 0, 0, ""), wed, date(2025, 3, 8)},
		{"weekend unchanged", tpl(model.FlexWeekend, 0, 0, ""), date(2025, 3, 1), date(2025, 3, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveDate(tt.tpl, tt.due)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveDate_Errors(t *testing.T) {
	_, err := ResolveDate(model.RecurringTemplate{ID: "s", Flexibility: model.FlexSeasonal}, date(2025, 7, 1))
	require.ErrorIs(t, err, ErrUnresolvedSeason)

	_, err = ResolveDate(model.RecurringTemplate{Flexibility: model.FlexCustomRange}, date(2025, 7, 1))
	require.ErrorIs(t, err, ErrInvalidTemplate)

	_, err = ResolveDate(model.RecurringTemplate{Flexibility: "WHENEVER"}, date(2025, 7, 1))
	require.ErrorIs(t, err, ErrInvalidTemplate)
}

func TestNextDue(t *testing.T) {
	tests := []struct {
		name  string
		freq  model.Frequency
		start time.Time
		from  time.Time
		want  time.Time
	}{
		{"daily", model.FrequencyDaily, time.Time{}, date(2025, 3, 5), date(2025, 3, 6)},
		{"weekly", model.FrequencyWeekly, time.Time{}, date(2025, 3, 5), date(2025, 3, 12)},
		{"biweekly", model.FrequencyBiweekly, time.Time{}, date(2025, 3, 5), date(2025, 3, 19)},
		{"four weekly", model.FrequencyFourWeekly, time.Time{}, date(2025, 3, 5), date(2025, 4, 2)},
		{"monthly", model.FrequencyMonthly, date(2025, 1, 5), date(2025, 3, 5), date(2025, 4, 5)},
		{"monthly clamps", model.FrequencyMonthly, date(2025, 1, 31), date(2025, 1, 31), date(2025, 2, 28)},
		{"monthly returns to anchor", model.FrequencyMonthly, date(2025, 1, 31), date(2025, 2, 28), date(2025, 3, 31)},
		{"monthly across year", model.FrequencyMonthly, date(2024, 12, 15), date(2024, 12, 15), date(2025, 1, 15)},
		{"yearly leap day", model.FrequencyYearly, date(2024, 2, 29), date(2024, 2, 29), date(2025, 2, 28)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl := model.RecurringTemplate{Frequency: tt.freq, StartDate: tt.start}
			assert.Equal(t, tt.want, NextDue(tpl, tt.from))
		})
	}
}

func TestResolveAmount(t *testing.T) {
	fixed := model.RecurringTemplate{Amount: amt("45.00")}
	assert.Equal(t, amt("45.00"), ResolveAmount(fixed, nil))

	variable := model.RecurringTemplate{IsVariable: true, EstimatedMin: amt("80"), EstimatedMax: amt("121.01")}
	assert.Equal(t, amt("100.51"), ResolveAmount(variable, nil))

	actual := amt("97.12")
	assert.Equal(t, actual, ResolveAmount(variable, &actual))
}

func TestOccurrences(t *testing.T) {
	march := model.NewPeriod(2025, time.March)
	weekly := model.RecurringTemplate{
		Frequency:   model.FrequencyWeekly,
		StartDate:   date(2025, 2, 24),
		NextDueDate: date(2025, 2, 24),
		Active:      true,
	}
	assert.Equal(t, []time.Time{
		date(2025, 3, 3), date(2025, 3, 10), date(2025, 3, 17), date(2025, 3, 24), date(2025, 3, 31),
	}, Occurrences(weekly, march))

	ended := weekly
	ended.EndDate = date(2025, 3, 12)
	assert.Equal(t, []time.Time{date(2025, 3, 3), date(2025, 3, 10)}, Occurrences(ended, march))

	inactive := weekly
	inactive.Active = false
	assert.Empty(t, Occurrences(inactive, march))

	later := weekly
	later.NextDueDate = date(2025, 4, 7)
	assert.Empty(t, Occurrences(later, march))
}

func TestValidate(t *testing.T) {
	valid := model.RecurringTemplate{
		PartyID:     "p",
		CategoryID:  "c",
		Description: "Rent",
		Direction:   model.DirectionExpense,
		Amount:      amt("1200"),
		Frequency:   model.FrequencyMonthly,
		Flexibility: model.FlexExact,
		StartDate:   date(2025, 1, 1),
	}
	require.NoError(t, Validate(valid))

	tests := []struct {
		name   string
		mutate func(*model.RecurringTemplate)
		want   error
	}{
		{"no frequency", func(t *model.RecurringTemplate) { t.Frequency = "" }, ErrInvalidTemplate},
		{"bad flexibility", func(t *model.RecurringTemplate) { t.Flexibility = "SOMETIMES" }, ErrInvalidTemplate},
		{"inverted range", func(t *model.RecurringTemplate) {
			t.Flexibility = model.FlexCustomRange
			t.RangeStart, t.RangeEnd = 20, 10
		}, ErrInvalidTemplate},
		{"zero amount", func(t *model.RecurringTemplate) { t.Amount = 0 }, money.ErrInvalidAmount},
		{"inverted estimate", func(t *model.RecurringTemplate) {
			t.IsVariable = true
			t.EstimatedMin, t.EstimatedMax = amt("50"), amt("40")
		}, ErrInvalidTemplate},
		{"no start", func(t *model.RecurringTemplate) { t.StartDate = time.Time{} }, ErrInvalidTemplate},
		{"end before start", func(t *model.RecurringTemplate) { t.EndDate = date(2024, 1, 1) }, ErrInvalidTemplate},
		{"blank description", func(t *model.RecurringTemplate) { t.Description = "  " }, ErrInvalidTemplate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl := valid
			tt.mutate(&tpl)
			require.ErrorIs(t, Validate(tpl), tt.want)
		})
	}
}
