package accounts

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/pocketledger/internal/model"
)

func TestWriteRead(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteChart(&buf, DefaultChart()))
	assert.True(t, strings.HasPrefix(buf.String(), Header+"\n"))
	assert.Contains(t, buf.String(), "cash,Cash,ASSET,,default\n")

	got, err := ReadChart(&buf)
	require.NoError(t, err)
	assert.Equal(t, DefaultChart(), got)
}

func TestUnmarshalEntry(t *testing.T) {
	e, err := UnmarshalEntry([]string{" rent ", "Rent", "expense", "housing", ""})
	require.NoError(t, err)
	assert.Equal(t, ChartEntry{Key: "rent", Name: "Rent", Type: model.AccountTypeExpense, ParentKey: "housing"}, e)

	_, err = UnmarshalEntry([]string{"x", "X", "EQUITY", "", ""})
	require.ErrorIs(t, err, ErrInvalidType)

	_, err = UnmarshalEntry([]string{"x", "X", "ASSET", "", "primary"})
	require.ErrorIs(t, err, ErrInvalidRole)

	_, err = UnmarshalEntry([]string{"", "X", "ASSET", "", ""})
	require.Error(t, err)

	_, err = UnmarshalEntry([]string{"x", "X"})
	require.Error(t, err)
}

func TestReadChart_Errors(t *testing.T) {
	_, err := ReadChart(strings.NewReader(Header + "\ncash,Cash,ASSET\n"))
	require.Error(t, err)

	_, err = ReadChart(strings.NewReader(Header + "\ncash,Cash,STOCK,,\n"))
	require.ErrorIs(t, err, ErrInvalidType)
	assert.Contains(t, err.Error(), "row 2")

	entries, err := ReadChart(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReadTestdata(t *testing.T) {
	f, err := os.Open("testdata/chart.csv")
	require.NoError(t, err)
	defer f.Close()

	entries, err := ReadChart(f)
	require.NoError(t, err)
	require.Len(t, entries, 13)

	types := make(map[model.AccountType]bool)
	for _, e := range entries {
		types[e.Type] = true
	}
	assert.True(t, types[model.AccountTypeAsset])
	assert.True(t, types[model.AccountTypeLiability])
	assert.True(t, types[model.AccountTypeIncome])
	assert.True(t, types[model.AccountTypeExpense])
	assert.Equal(t, "housing", entries[9].ParentKey)
}
