package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cleared-dev/pocketledger/internal/model"
	"github.com/cleared-dev/pocketledger/internal/money"
	"github.com/cleared-dev/pocketledger/internal/store"
)

// Parties

const partyColumns = `id, type, name, default_account_id, reimbursable_account_id, created_at`

func (t *tx) CreateParty(ctx context.Context, p model.Party) error {
	_, err := t.exec(ctx, `INSERT INTO parties (`+partyColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, string(p.Type), p.Name, p.DefaultAccountID, p.ReimbursableAccountID, fmtTime(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert party: %w", err)
	}
	return nil
}

func (t *tx) GetParty(ctx context.Context, id string) (model.Party, error) {
	var (
		p       model.Party
		typ, at string
	)
	err := t.queryRow(ctx, `SELECT `+partyColumns+` FROM parties WHERE id = ?`, id).
		Scan(&p.ID, &typ, &p.Name, &p.DefaultAccountID, &p.ReimbursableAccountID, &at)
	if err != nil {
		return model.Party{}, wrapNotFound(err, "party", id)
	}
	p.Type = model.PartyType(typ)
	p.CreatedAt, err = parseTime(at)
	return p, err
}

func (t *tx) UpdateParty(ctx context.Context, p model.Party) error {
	res, err := t.exec(ctx, `UPDATE parties SET type = ?, name = ?, default_account_id = ?, reimbursable_account_id = ? WHERE id = ?`,
		string(p.Type), p.Name, p.DefaultAccountID, p.ReimbursableAccountID, p.ID)
	if err != nil {
		return fmt.Errorf("update party: %w", err)
	}
	return mustAffect(res, "party", p.ID)
}

// Accounts

const accountColumns = `id, party_id, name, type, parent_id, active, created_at`

func scanAccount(row interface{ Scan(...any) error }) (model.Account, error) {
	var (
		a       model.Account
		typ, at string
	)
	if err := row.Scan(&a.ID, &a.PartyID, &a.Name, &typ, &a.ParentID, &a.Active, &at); err != nil {
		return model.Account{}, err
	}
	a.Type = model.AccountType(typ)
	var err error
	a.CreatedAt, err = parseTime(at)
	return a, err
}

func (t *tx) CreateAccount(ctx context.Context, a model.Account) error {
	_, err := t.exec(ctx, `INSERT INTO accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.PartyID, a.Name, string(a.Type), a.ParentID, a.Active, fmtTime(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (t *tx) GetAccount(ctx context.Context, id string) (model.Account, error) {
	a, err := scanAccount(t.queryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
	if err != nil {
		return model.Account{}, wrapNotFound(err, "account", id)
	}
	return a, nil
}

func (t *tx) FindAccountByName(ctx context.Context, partyID, name string) (model.Account, error) {
	a, err := scanAccount(t.queryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE party_id = ? AND name = ? ORDER BY id LIMIT 1`, partyID, name))
	if err != nil {
		return model.Account{}, wrapNotFound(err, "account", name)
	}
	return a, nil
}

func (t *tx) ListAccounts(ctx context.Context, partyID string) ([]model.Account, error) {
	rows, err := t.query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE party_id = ? ORDER BY name, id`, partyID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (t *tx) UpdateAccount(ctx context.Context, a model.Account) error {
	res, err := t.exec(ctx, `UPDATE accounts SET name = ?, parent_id = ?, active = ? WHERE id = ?`,
		a.Name, a.ParentID, a.Active, a.ID)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	return mustAffect(res, "account", a.ID)
}

// Transactions

const transactionColumns = `id, party_id, date, description, external_id, recurring_template_id, kind, status, created_at`

func (t *tx) InsertTransaction(ctx context.Context, txn model.Transaction) error {
	_, err := t.exec(ctx, `INSERT INTO transactions (`+transactionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.PartyID, fmtDate(txn.Date), txn.Description, txn.ExternalID, txn.RecurringTemplateID,
		string(txn.Kind), string(txn.Status), fmtTime(txn.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	for i, e := range txn.Entries {
		_, err := t.exec(ctx, `INSERT INTO entries (id, transaction_id, position, account_id, amount, reportable, memo) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.ID, txn.ID, i, e.AccountID, e.Amount, e.Reportable, e.Memo)
		if err != nil {
			return fmt.Errorf("insert entry %s: %w", e.ID, err)
		}
	}
	return nil
}

func scanTransaction(row interface{ Scan(...any) error }) (model.Transaction, error) {
	var (
		txn                 model.Transaction
		d, kind, status, at string
	)
	err := row.Scan(&txn.ID, &txn.PartyID, &d, &txn.Description, &txn.ExternalID, &txn.RecurringTemplateID, &kind, &status, &at)
	if err != nil {
		return model.Transaction{}, err
	}
	txn.Kind = model.TransactionKind(kind)
	txn.Status = model.TransactionStatus(status)
	var dec textDecoder
	txn.Date = dec.date(d)
	txn.CreatedAt = dec.time(at)
	return txn, dec.err
}

func (t *tx) loadEntries(ctx context.Context, txns []model.Transaction) error {
	if len(txns) == 0 {
		return nil
	}
	idx := make(map[string]int, len(txns))
	args := make([]any, len(txns))
	for i, txn := range txns {
		idx[txn.ID] = i
		args[i] = txn.ID
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(txns)), ", ")
	rows, err := t.query(ctx, `SELECT id, transaction_id, account_id, amount, reportable, memo FROM entries
		WHERE transaction_id IN (`+placeholders+`) ORDER BY transaction_id, position`, args...)
	if err != nil {
		return fmt.Errorf("load entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e model.Entry
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.AccountID, &e.Amount, &e.Reportable, &e.Memo); err != nil {
			return fmt.Errorf("scan entry: %w", err)
		}
		i := idx[e.TransactionID]
		txns[i].Entries = append(txns[i].Entries, e)
	}
	return rows.Err()
}

func (t *tx) getTransactionWhere(ctx context.Context, where string, args ...any) (model.Transaction, error) {
	txn, err := scanTransaction(t.queryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE `+where, args...))
	if err != nil {
		return model.Transaction{}, err
	}
	one := []model.Transaction{txn}
	if err := t.loadEntries(ctx, one); err != nil {
		return model.Transaction{}, err
	}
	return one[0], nil
}

func (t *tx) GetTransaction(ctx context.Context, id string) (model.Transaction, error) {
	txn, err := t.getTransactionWhere(ctx, `id = ?`, id)
	if err != nil {
		return model.Transaction{}, wrapNotFound(err, "transaction", id)
	}
	return txn, nil
}

func (t *tx) FindTransactionByExternalID(ctx context.Context, partyID, externalID string) (model.Transaction, error) {
	if externalID == "" {
		return model.Transaction{}, fmt.Errorf("transaction external id: %w", store.ErrNotFound)
	}
	txn, err := t.getTransactionWhere(ctx, `party_id = ? AND external_id = ?`, partyID, externalID)
	if err != nil {
		return model.Transaction{}, wrapNotFound(err, "transaction external id", externalID)
	}
	return txn, nil
}

func (t *tx) SetTransactionStatus(ctx context.Context, id string, status model.TransactionStatus) error {
	res, err := t.exec(ctx, `UPDATE transactions SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}
	return mustAffect(res, "transaction", id)
}

func (t *tx) ListTransactions(ctx context.Context, partyID string, from, to time.Time) ([]model.Transaction, error) {
	q := `SELECT ` + transactionColumns + ` FROM transactions WHERE party_id = ?`
	args := []any{partyID}
	if !from.IsZero() {
		q += ` AND date >= ?`
		args = append(args, fmtDate(from))
	}
	if !to.IsZero() {
		q += ` AND date <= ?`
		args = append(args, fmtDate(to))
	}
	q += ` ORDER BY date, created_at, id`

	rows, err := t.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	var out []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, txn)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}

	if err := t.loadEntries(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *tx) SumEntries(ctx context.Context, q store.EntrySum) (money.Amount, error) {
	query := `SELECT COALESCE(SUM(e.amount), 0) FROM entries e
		JOIN transactions t ON t.id = e.transaction_id
		WHERE e.account_id = ? AND t.status = ?`
	args := []any{q.AccountID, string(model.StatusActive)}
	if q.ReportableOnly {
		query += ` AND e.reportable = ?`
		args = append(args, true)
	}
	if !q.From.IsZero() {
		query += ` AND t.date >= ?`
		args = append(args, fmtDate(q.From))
	}
	if !q.To.IsZero() {
		query += ` AND t.date <= ?`
		args = append(args, fmtDate(q.To))
	}

	var sum sql.NullInt64
	if err := t.queryRow(ctx, query, args...).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum entries: %w", err)
	}
	return money.Amount(sum.Int64), nil
}
