package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	a, b := New(), New()
	assert.NotEqual(t, a, b)
	assert.True(t, Valid(a))
	assert.False(t, Valid("not-an-id"))
}

func TestFormatLegID(t *testing.T) {
	tests := []struct {
		txnID string
		leg   int
		want  string
	}{
		{"4f1c", 0, "4f1c#a"},
		{"4f1c", 1, "4f1c#b"},
		{"4f1c", 2, "4f1c#c"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatLegID(tt.txnID, tt.leg))
	}
}

func TestParseLegID(t *testing.T) {
	txn := "0d6c7e0e-8f4b-4c1e-9d7a-2b1f3c4d5e6f"
	got, leg, err := ParseLegID(FormatLegID(txn, 3))
	require.NoError(t, err)
	assert.Equal(t, txn, got)
	assert.Equal(t, 3, leg)
}

func TestParseLegID_Errors(t *testing.T) {
	for _, input := range []string{"", "#a", "abc", "abc#", "abc#1", "abc#ab"} {
		_, _, err := ParseLegID(input)
		assert.Error(t, err, "expected error for input: %s", input)
	}
}

func TestTransactionOf(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"abc-def#a", "abc-def"},
		{"abc-def#b", "abc-def"},
		{"abc-def", "abc-def"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TransactionOf(tt.input))
	}
}
