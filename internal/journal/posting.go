package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cleared-dev/pocketledger/internal/id"
	"github.com/cleared-dev/pocketledger/internal/model"
	"github.com/cleared-dev/pocketledger/internal/money"
	"github.com/cleared-dev/pocketledger/internal/share"
	"github.com/cleared-dev/pocketledger/internal/split"
	"github.com/cleared-dev/pocketledger/internal/store"
)

type leg struct {
	account    model.Account
	amount     money.Amount
	reportable bool
	memo       string
}

// resolver loads and checks the accounts an intent refers to.
type resolver struct {
	ctx      context.Context
	tx       store.Tx
	party    model.Party
	accounts accountSet
	now      time.Time
}

func (s *Service) build(ctx context.Context, tx store.Tx, intent Intent) (model.Transaction, accountSet, error) {
	h := intent.header()
	if strings.TrimSpace(h.PartyID) == "" {
		return model.Transaction{}, nil, fmt.Errorf("%w: party is required", ErrAccountNotOwned)
	}
	party, err := tx.GetParty(ctx, h.PartyID)
	if err != nil {
		return model.Transaction{}, nil, err
	}

	if h.ExternalID != "" {
		existing, err := tx.FindTransactionByExternalID(ctx, party.ID, h.ExternalID)
		switch {
		case err == nil:
			return model.Transaction{}, nil, model.NewEntityError("transaction", existing.ID,
				fmt.Errorf("%w: external id %q", ErrDuplicateTransaction, h.ExternalID))
		case !errors.Is(err, store.ErrNotFound):
			return model.Transaction{}, nil, err
		}
	}

	r := &resolver{ctx: ctx, tx: tx, party: party, accounts: accountSet{}, now: s.now()}

	var legs []leg
	switch in := intent.(type) {
	case Simple:
		legs, err = r.simple(in)
	case *Simple:
		legs, err = r.simple(*in)
	case Transfer:
		legs, err = r.transfer(in)
	case *Transfer:
		legs, err = r.transfer(*in)
	case Split:
		legs, err = r.split(in)
	case *Split:
		legs, err = r.split(*in)
	case Shared:
		legs, err = r.shared(in)
	case *Shared:
		legs, err = r.shared(*in)
	default:
		err = fmt.Errorf("unsupported intent %T", intent)
	}
	if err != nil {
		return model.Transaction{}, nil, err
	}

	d := h.Date
	if d.IsZero() {
		d = r.now
	}
	txnID := id.New()
	txn := model.Transaction{
		ID:                  txnID,
		PartyID:             party.ID,
		Date:                time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC),
		Description:         strings.TrimSpace(h.Description),
		ExternalID:          h.ExternalID,
		RecurringTemplateID: h.RecurringTemplateID,
		Kind:                intent.Kind(),
		Status:              model.StatusActive,
		CreatedAt:           r.now.UTC(),
	}
	for i, l := range legs {
		txn.Entries = append(txn.Entries, model.Entry{
			ID:            id.FormatLegID(txnID, i),
			TransactionID: txnID,
			AccountID:     l.account.ID,
			Amount:        l.amount,
			Reportable:    l.reportable,
			Memo:          l.memo,
		})
	}
	return txn, r.accounts, nil
}

func checkAmount(a money.Amount) error {
	switch {
	case a.IsZero():
		return ErrZeroAmount
	case a.IsNegative():
		return fmt.Errorf("%w: %s is negative", money.ErrInvalidAmount, a)
	}
	return nil
}

func (r *resolver) simple(in Simple) ([]leg, error) {
	if err := checkAmount(in.Amount); err != nil {
		return nil, err
	}
	acct, err := r.holding(in.AccountID)
	if err != nil {
		return nil, err
	}

	if in.Direction == DirectionIncome {
		cat, err := r.category(in.CategoryID, model.AccountTypeIncome)
		if err != nil {
			return nil, err
		}
		return []leg{
			{account: acct, amount: in.Amount, reportable: true},
			{account: cat, amount: -in.Amount, reportable: true},
		}, nil
	}
	if in.Direction != "" && in.Direction != DirectionExpense {
		return nil, fmt.Errorf("unknown direction %q", in.Direction)
	}

	cat, err := r.category(in.CategoryID, model.AccountTypeExpense)
	if err != nil {
		return nil, err
	}
	return []leg{
		{account: acct, amount: -in.Amount, reportable: true},
		{account: cat, amount: in.Amount, reportable: true},
	}, nil
}

func (r *resolver) transfer(in Transfer) ([]leg, error) {
	if err := checkAmount(in.Amount); err != nil {
		return nil, err
	}
	if in.FromAccountID == "" || in.ToAccountID == "" {
		return nil, fmt.Errorf("%w: transfer needs both accounts", ErrAccountTypeMismatch)
	}
	if in.FromAccountID == in.ToAccountID {
		return nil, model.NewEntityError("account", in.FromAccountID, ErrSameAccount)
	}
	from, err := r.holding(in.FromAccountID)
	if err != nil {
		return nil, err
	}
	to, err := r.holding(in.ToAccountID)
	if err != nil {
		return nil, err
	}
	return []leg{
		{account: to, amount: in.Amount, reportable: true},
		{account: from, amount: -in.Amount, reportable: true},
	}, nil
}

func (r *resolver) split(in Split) ([]leg, error) {
	if err := checkAmount(in.Total); err != nil {
		return nil, err
	}
	lines, err := split.Validate(in.Total, in.Lines, r)
	if err != nil {
		return nil, err
	}
	source, err := r.holding(in.SourceAccountID)
	if err != nil {
		return nil, err
	}

	legs := []leg{{account: source, amount: -in.Total, reportable: true}}
	for _, l := range lines {
		cat, err := r.category(l.CategoryID, model.AccountTypeExpense)
		if err != nil {
			return nil, err
		}
		legs = append(legs, leg{account: cat, amount: l.Amount, reportable: true, memo: l.Memo})
	}
	return legs, nil
}

func (r *resolver) shared(in Shared) ([]leg, error) {
	if err := checkAmount(in.Total); err != nil {
		return nil, err
	}
	res, err := share.Calculate(in.Total, in.Share)
	if err != nil {
		return nil, err
	}
	source, err := r.holding(in.SourceAccountID)
	if err != nil {
		return nil, err
	}
	cat, err := r.category(in.CategoryID, model.AccountTypeExpense)
	if err != nil {
		return nil, err
	}

	legs := []leg{{account: source, amount: -in.Total, reportable: true}}
	if res.Personal.IsPositive() {
		legs = append(legs, leg{account: cat, amount: res.Personal, reportable: true})
	}
	if res.Reimbursable.IsPositive() {
		reimb, err := r.reimbursable()
		if err != nil {
			return nil, err
		}
		legs = append(legs, leg{account: reimb, amount: res.Reimbursable, memo: "reimbursable"})
	}
	return legs, nil
}

// CategoryExists lets split.Validate resolve category references.
func (r *resolver) CategoryExists(accountID string) bool {
	_, err := r.tx.GetAccount(r.ctx, accountID)
	return err == nil
}

func (r *resolver) load(accountID string) (model.Account, error) {
	if a, ok := r.accounts[accountID]; ok {
		return a, nil
	}
	a, err := r.tx.GetAccount(r.ctx, accountID)
	if err != nil {
		return model.Account{}, err
	}
	if a.PartyID != r.party.ID {
		return model.Account{}, model.NewEntityError("account", accountID, ErrAccountNotOwned)
	}
	return r.accounts.add(a), nil
}

// holding resolves an asset or liability account, falling back to the
// party's default when accountID is empty.
func (r *resolver) holding(accountID string) (model.Account, error) {
	if accountID == "" {
		accountID = r.party.DefaultAccountID
		if accountID == "" {
			return model.Account{}, model.NewEntityError("party", r.party.ID, ErrNoDefaultAccount)
		}
	}
	a, err := r.load(accountID)
	if err != nil {
		return model.Account{}, err
	}
	if !a.Type.HoldsValue() {
		return model.Account{}, model.NewEntityError("account", accountID,
			fmt.Errorf("%w: %s account cannot hold a balance", ErrAccountTypeMismatch, a.Type))
	}
	return a, nil
}

// category resolves an active income or expense account of type want.
func (r *resolver) category(accountID string, want model.AccountType) (model.Account, error) {
	if accountID == "" {
		return model.Account{}, fmt.Errorf("%w: category is required", ErrAccountTypeMismatch)
	}
	a, err := r.load(accountID)
	if err != nil {
		return model.Account{}, err
	}
	if a.Type != want {
		return model.Account{}, model.NewEntityError("account", accountID,
			fmt.Errorf("%w: want %s, got %s", ErrAccountTypeMismatch, want, a.Type))
	}
	if !a.Active {
		return model.Account{}, model.NewEntityError("category", accountID, ErrCategoryInactive)
	}
	return a, nil
}

// reimbursable returns the party's reimbursable asset account, creating and
// designating one if needed.
func (r *resolver) reimbursable() (model.Account, error) {
	if r.party.ReimbursableAccountID != "" {
		return r.holding(r.party.ReimbursableAccountID)
	}

	a, err := r.tx.FindAccountByName(r.ctx, r.party.ID, ReimbursableAccountName)
	switch {
	case err == nil && a.Type == model.AccountTypeAsset:
	case err == nil || errors.Is(err, store.ErrNotFound):
		a = model.Account{
			ID:        id.New(),
			PartyID:   r.party.ID,
			Name:      ReimbursableAccountName,
			Type:      model.AccountTypeAsset,
			Active:    true,
			CreatedAt: r.now.UTC(),
		}
		if err := r.tx.CreateAccount(r.ctx, a); err != nil {
			return model.Account{}, err
		}
	default:
		return model.Account{}, err
	}

	r.party.ReimbursableAccountID = a.ID
	if err := r.tx.UpdateParty(r.ctx, r.party); err != nil {
		return model.Account{}, err
	}
	return r.accounts.add(a), nil
}
