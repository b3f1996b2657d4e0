package journal

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cleared-dev/pocketledger/internal/model"
	"github.com/cleared-dev/pocketledger/internal/store"
)

// CSVHeader is the CSV header of a journal export.
const CSVHeader = "transaction_id,entry_id,date,account_id,account_name,description,debit,credit,reportable,kind,status,external_id,memo"

const (
	numFields   = 13
	dateFormat  = "2006-01-02"
	colTxnID    = 0
	colEntryID  = 1
	colDate     = 2
	colAcctID   = 3
	colAcctName = 4
	colDesc     = 5
	colDebit    = 6
	colCredit   = 7
	colReport   = 8
	colKind     = 9
	colStatus   = 10
	colExtID    = 11
	colMemo     = 12
)

// MarshalEntry converts one entry of txn to a CSV row.
func MarshalEntry(txn model.Transaction, e model.Entry, accountName string) []string {
	row := make([]string, numFields)
	row[colTxnID] = txn.ID
	row[colEntryID] = e.ID
	row[colDate] = txn.Date.Format(dateFormat)
	row[colAcctID] = e.AccountID
	row[colAcctName] = accountName
	row[colDesc] = txn.Description

	if e.Amount.IsPositive() {
		row[colDebit] = e.Amount.String()
	}
	if e.Amount.IsNegative() {
		row[colCredit] = e.Amount.Neg().String()
	}

	row[colReport] = strconv.FormatBool(e.Reportable)
	row[colKind] = string(txn.Kind)
	row[colStatus] = string(txn.Status)
	row[colExtID] = txn.ExternalID
	row[colMemo] = e.Memo
	return row
}

// WriteTransactions writes txns (including header) one row per entry.
// names maps account IDs to display names; missing IDs are left blank.
func WriteTransactions(w io.Writer, txns []model.Transaction, names map[string]string) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(CSVHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	row := 1
	for _, txn := range txns {
		for _, e := range txn.Entries {
			row++
			if err := cw.Write(MarshalEntry(txn, e, names[e.AccountID])); err != nil {
				return fmt.Errorf("writing row %d: %w", row, err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// Export writes the party's postings dated within period. Voided
// transactions are included only when includeVoided is set.
func (s *Service) Export(ctx context.Context, w io.Writer, partyID string, period model.Period, includeVoided bool) error {
	var (
		txns  []model.Transaction
		names = map[string]string{}
	)
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		all, err := tx.ListTransactions(ctx, partyID, period.Start(), period.End())
		if err != nil {
			return err
		}
		for _, t := range all {
			if t.IsActive() || includeVoided {
				txns = append(txns, t)
			}
		}
		accts, err := tx.ListAccounts(ctx, partyID)
		if err != nil {
			return err
		}
		for _, a := range accts {
			names[a.ID] = a.Name
		}
		return nil
	})
	if err != nil {
		return err
	}
	return WriteTransactions(w, txns, names)
}
