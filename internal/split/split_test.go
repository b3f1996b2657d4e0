package split

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/pocketledger/internal/money"
)

func amt(s string) money.Amount { return money.MustParse(s) }

type mockCategories map[string]bool

func (m mockCategories) CategoryExists(id string) bool { return m[id] }

func TestValidate(t *testing.T) {
	lines := []Line{
		{CategoryID: "groceries", Amount: amt("100")},
		{CategoryID: "clothing", Amount: amt("50")},
	}
	got, err := Validate(amt("150"), lines, mockCategories{"groceries": true, "clothing": true})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, amt("100"), got[0].Amount)
	assert.Equal(t, amt("50"), got[1].Amount)
}

func TestValidate_AbsorbsOneCent(t *testing.T) {
	tests := []struct {
		name  string
		total string
		last  string
	}{
		{"under by a cent", "100.00", "33.34"},
		{"over by a cent", "99.98", "33.32"},
		{"exact", "99.99", "33.33"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := []Line{
				{CategoryID: "a", Amount: amt("33.33")},
				{CategoryID: "b", Amount: amt("33.33")},
				{CategoryID: "c", Amount: amt("33.33")},
			}
			got, err := Validate(amt(tt.total), lines, nil)
			require.NoError(t, err)
			assert.Equal(t, amt(tt.last), got[2].Amount)

			var sum money.Amount
			for _, l := range got {
				sum += l.Amount
			}
			assert.Equal(t, amt(tt.total), sum)
			// input untouched
			assert.Equal(t, amt("33.33"), lines[2].Amount)
		})
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name  string
		total string
		lines []Line
		want  error
	}{
		{"empty", "10", nil, ErrEmptySplit},
		{"mismatch", "150", []Line{{CategoryID: "groceries", Amount: amt("100")}, {CategoryID: "clothing", Amount: amt("49.98")}}, ErrSplitMismatch},
		{"blank category", "10", []Line{{CategoryID: " ", Amount: amt("10")}}, ErrInvalidSplitCategory},
		{"unknown category", "10", []Line{{CategoryID: "travel", Amount: amt("10")}}, ErrInvalidSplitCategory},
		{"zero line", "10", []Line{{CategoryID: "groceries", Amount: amt("10")}, {CategoryID: "clothing", Amount: 0}}, money.ErrInvalidAmount},
		{"negative line", "10", []Line{{CategoryID: "groceries", Amount: amt("11")}, {CategoryID: "clothing", Amount: amt("-1")}}, money.ErrInvalidAmount},
	}
	checker := mockCategories{"groceries": true, "clothing": true}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(amt(tt.total), tt.lines, checker)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
