package accounts

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/cleared-dev/pocketledger/internal/model"
)

const (
	numFields = 5
	colKey    = 0
	colName   = 1
	colType   = 2
	colParent = 3
	colRole   = 4
)

// Header is the first row of a chart CSV.
const Header = "account_key,name,type,parent_key,role"

// ReadChart reads a chart CSV.
func ReadChart(r io.Reader) ([]ChartEntry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading chart CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	var entries []ChartEntry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// WriteChart writes a chart CSV.
func WriteChart(w io.Writer, entries []ChartEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalEntry converts a ChartEntry to a CSV row.
func MarshalEntry(e ChartEntry) []string {
	row := make([]string, numFields)
	row[colKey] = e.Key
	row[colName] = e.Name
	row[colType] = string(e.Type)
	row[colParent] = e.ParentKey
	row[colRole] = string(e.Role)
	return row
}

// UnmarshalEntry converts a CSV row to a ChartEntry.
func UnmarshalEntry(record []string) (ChartEntry, error) {
	if len(record) != numFields {
		return ChartEntry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	e := ChartEntry{
		Key:       strings.TrimSpace(record[colKey]),
		Name:      strings.TrimSpace(record[colName]),
		Type:      model.AccountType(strings.ToUpper(strings.TrimSpace(record[colType]))),
		ParentKey: strings.TrimSpace(record[colParent]),
		Role:      Role(strings.ToLower(strings.TrimSpace(record[colRole]))),
	}
	if e.Key == "" || e.Name == "" {
		return ChartEntry{}, fmt.Errorf("account_key and name are required")
	}
	if !e.Type.Valid() {
		return ChartEntry{}, fmt.Errorf("%w: %q", ErrInvalidType, record[colType])
	}
	switch e.Role {
	case RoleNone, RoleDefault, RoleReimbursable:
	default:
		return ChartEntry{}, fmt.Errorf("%w: %q", ErrInvalidRole, record[colRole])
	}
	return e, nil
}
